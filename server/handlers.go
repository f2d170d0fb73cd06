package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"househunters/models"
	"househunters/session"
	"househunters/storage"
	"househunters/view"
	"househunters/zillow"
)

type handlers struct {
	deps Deps
}

func (h *handlers) errorJSON(w http.ResponseWriter, req *http.Request, status int, code, detail string) {
	render.Status(req, status)
	render.JSON(w, req, map[string]any{"error": code, "detail": detail})
}

func (h *handlers) search(w http.ResponseWriter, req *http.Request) {
	var body SearchRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		h.errorJSON(w, req, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if err := body.Validate(); err != nil {
		h.errorJSON(w, req, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	bounds, err := zillow.ParseSearchURL(body.ZillowURL)
	if err != nil {
		h.errorJSON(w, req, http.StatusBadRequest, "invalid_url",
			"could not parse map bounds from the Zillow URL; make sure it is a search URL")
		return
	}

	kind, err := body.Kind(zillow.DetectKind(body.ZillowURL))
	if err != nil {
		h.errorJSON(w, req, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	criteria := body.Criteria(kind)

	results, err := h.deps.Listings.Search(req.Context(), bounds, criteria)
	if err != nil {
		// One search-level failure; no partial results.
		h.errorJSON(w, req, http.StatusBadGateway, "upstream_error", err.Error())
		return
	}

	sess := session.New(criteria, h.mortgageSettings(req.Context()))
	sess.SetResults(criteria, results)
	h.deps.Sessions.Add(sess)

	if h.deps.Store != nil {
		if _, err := h.deps.Store.SaveSearch(req.Context(), string(kind), body.ZillowURL, criteria, results); err != nil {
			log.Printf("Search: failed to archive search: %v", err)
		}
		if err := h.deps.Store.SetPreference(req.Context(), "last_filters", body); err != nil {
			log.Printf("Search: failed to persist last filters: %v", err)
		}
	}

	if h.deps.Enricher != nil {
		h.deps.Enricher.Start(h.baseCtx(), sess)
	}

	render.JSON(w, req, map[string]any{
		"ok":         true,
		"session_id": sess.ID,
		"kind":       kind,
		"count":      len(results),
		"results":    sess.Filtered(),
	})
}

func (h *handlers) results(w http.ResponseWriter, req *http.Request) {
	sess, ok := h.session(w, req)
	if !ok {
		return
	}

	filtered := sess.Filtered()
	column, desc := sess.SortState()
	if column != "" {
		view.Sort(filtered, column, desc, sess.Mortgage())
	}

	schoolsDone, crimeDone, total := sess.EnrichmentProgress()
	render.JSON(w, req, map[string]any{
		"ok":         true,
		"session_id": sess.ID,
		"count":      len(filtered),
		"total":      total,
		"progress": map[string]int{
			"schools": schoolsDone,
			"crime":   crimeDone,
		},
		"sort":     map[string]any{"column": column, "desc": desc},
		"criteria": sess.Criteria(),
		"results":  filtered,
	})
}

func (h *handlers) sort(w http.ResponseWriter, req *http.Request) {
	sess, ok := h.session(w, req)
	if !ok {
		return
	}

	var body SortRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		h.errorJSON(w, req, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if err := body.Validate(); err != nil {
		h.errorJSON(w, req, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	column, desc := sess.ToggleSort(body.Column)
	render.JSON(w, req, map[string]any{
		"ok":   true,
		"sort": map[string]any{"column": column, "desc": desc},
	})
}

func (h *handlers) selectRows(w http.ResponseWriter, req *http.Request) {
	sess, ok := h.session(w, req)
	if !ok {
		return
	}

	var body SelectRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		h.errorJSON(w, req, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	sess.SetSelection(body.ZPIDs)
	render.JSON(w, req, map[string]any{"ok": true, "selected": sess.SelectionCount()})
}

func (h *handlers) export(w http.ResponseWriter, req *http.Request) {
	sess, ok := h.session(w, req)
	if !ok {
		return
	}

	var body ExportRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		h.errorJSON(w, req, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if err := body.Validate(); err != nil {
		h.errorJSON(w, req, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	columns := body.Columns
	if len(columns) == 0 {
		columns = h.visibleColumns(req.Context())
	}

	exportSet := sess.ExportSet()
	if column, desc := sess.SortState(); column != "" {
		view.Sort(exportSet, column, desc, sess.Mortgage())
	}
	rows := view.Project(exportSet, columns, sess.Mortgage())

	switch body.Format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="properties.csv"`)
		if err := view.WriteCSV(w, rows, columns); err != nil {
			// Headers may already be out; log and surface what we can.
			log.Printf("Export: csv write failed: %v", err)
			h.errorJSON(w, req, http.StatusInternalServerError, "export_error", err.Error())
		}
	default:
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", `attachment; filename="properties.json"`)
		if err := view.WriteJSON(w, rows); err != nil {
			log.Printf("Export: json write failed: %v", err)
			h.errorJSON(w, req, http.StatusInternalServerError, "export_error", err.Error())
		}
	}
}

func (h *handlers) getPreferences(w http.ResponseWriter, req *http.Request) {
	prefs := Preferences{Columns: view.DefaultColumns}
	mortgage := models.DefaultMortgageSettings()
	prefs.Mortgage = &mortgage

	if h.deps.Store != nil {
		var cols []string
		if ok, err := h.deps.Store.Preference(req.Context(), "columns", &cols); err == nil && ok {
			prefs.Columns = cols
		}
		var m models.MortgageSettings
		if ok, err := h.deps.Store.Preference(req.Context(), "mortgage", &m); err == nil && ok {
			prefs.Mortgage = &m
		}
		var last SearchRequest
		if ok, err := h.deps.Store.Preference(req.Context(), "last_filters", &last); err == nil && ok {
			prefs.LastFilters = &last
		}
	}
	render.JSON(w, req, prefs)
}

func (h *handlers) putPreferences(w http.ResponseWriter, req *http.Request) {
	if h.deps.Store == nil {
		h.errorJSON(w, req, http.StatusServiceUnavailable, "no_store", "preferences storage not configured")
		return
	}

	var body Preferences
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		h.errorJSON(w, req, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	if body.Columns != nil {
		if err := h.deps.Store.SetPreference(req.Context(), "columns", body.Columns); err != nil {
			h.errorJSON(w, req, http.StatusInternalServerError, "store_error", err.Error())
			return
		}
	}
	if body.Mortgage != nil {
		if err := h.deps.Store.SetPreference(req.Context(), "mortgage", body.Mortgage); err != nil {
			h.errorJSON(w, req, http.StatusInternalServerError, "store_error", err.Error())
			return
		}
	}
	render.JSON(w, req, map[string]any{"ok": true})
}

func (h *handlers) listSavedSearches(w http.ResponseWriter, req *http.Request) {
	if h.deps.Store == nil {
		render.JSON(w, req, []any{})
		return
	}
	searches, err := h.deps.Store.ListSavedSearches(req.Context(), 20)
	if err != nil {
		h.errorJSON(w, req, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	if searches == nil {
		searches = []storage.SavedSearch{}
	}
	render.JSON(w, req, searches)
}

func (h *handlers) getSavedSearch(w http.ResponseWriter, req *http.Request) {
	if h.deps.Store == nil {
		h.errorJSON(w, req, http.StatusNotFound, "not_found", "no saved searches")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(req, "id"), 10, 64)
	if err != nil {
		h.errorJSON(w, req, http.StatusBadRequest, "invalid_id", "saved search id must be numeric")
		return
	}
	ss, err := h.deps.Store.GetSavedSearch(req.Context(), id)
	if err != nil {
		h.errorJSON(w, req, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	if ss == nil {
		h.errorJSON(w, req, http.StatusNotFound, "not_found", fmt.Sprintf("saved search %d not found", id))
		return
	}
	render.JSON(w, req, ss)
}

func (h *handlers) session(w http.ResponseWriter, req *http.Request) (*session.Session, bool) {
	id, err := uuid.Parse(chi.URLParam(req, "id"))
	if err != nil {
		h.errorJSON(w, req, http.StatusBadRequest, "invalid_id", "session id must be a UUID")
		return nil, false
	}
	sess, ok := h.deps.Sessions.Get(id)
	if !ok {
		h.errorJSON(w, req, http.StatusNotFound, "not_found", "session expired or unknown")
		return nil, false
	}
	return sess, true
}

func (h *handlers) mortgageSettings(ctx context.Context) models.MortgageSettings {
	settings := models.DefaultMortgageSettings()
	if h.deps.Store != nil {
		var m models.MortgageSettings
		if ok, err := h.deps.Store.Preference(ctx, "mortgage", &m); err == nil && ok {
			settings = m
		}
	}
	return settings
}

func (h *handlers) visibleColumns(ctx context.Context) []string {
	if h.deps.Store != nil {
		var cols []string
		if ok, err := h.deps.Store.Preference(ctx, "columns", &cols); err == nil && ok && len(cols) > 0 {
			return cols
		}
	}
	return view.DefaultColumns
}

func (h *handlers) baseCtx() context.Context {
	if h.deps.BaseCtx != nil {
		return h.deps.BaseCtx
	}
	return context.Background()
}

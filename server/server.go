// Package server exposes the search, enrichment, and export operations over
// HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-chi/render"

	"househunters/enrich"
	"househunters/models"
	"househunters/session"
	"househunters/sse"
	"househunters/storage"
	"househunters/zillow"
)

// Searcher is the listings provider contract.
type Searcher interface {
	Search(ctx context.Context, bounds *zillow.Bounds, criteria models.SearchCriteria) ([]*models.Property, error)
}

type Deps struct {
	Sessions *session.Manager
	Listings Searcher
	Enricher *enrich.Enricher
	Store    *storage.Store // optional
	Broker   *sse.Broker

	// BaseCtx bounds the enrichment sweeps; they outlive the request that
	// starts them.
	BaseCtx context.Context
}

func BuildRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(httprate.LimitByIP(120, 1*time.Minute)) // protect upstream quota
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		render.JSON(w, req, map[string]any{"ok": true})
	})

	h := &handlers{deps: d}

	r.Route("/api", func(r chi.Router) {
		r.Post("/search", h.search)
		r.Route("/search/{id}", func(r chi.Router) {
			r.Get("/results", h.results)
			r.Post("/sort", h.sort)
			r.Post("/select", h.selectRows)
			r.Post("/export", h.export)
		})

		r.Get("/preferences", h.getPreferences)
		r.Put("/preferences", h.putPreferences)

		r.Get("/saved-searches", h.listSavedSearches)
		r.Get("/saved-searches/{id}", h.getSavedSearch)

		if d.Broker != nil {
			r.Get("/events", d.Broker.ServeHTTP)
		}
	})

	return r
}

package server

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"househunters/models"
	"househunters/session"
	"househunters/zillow"
)

type fakeSearcher struct {
	results []*models.Property
	err     error
	calls   int
}

func (f *fakeSearcher) Search(_ context.Context, _ *zillow.Bounds, _ models.SearchCriteria) ([]*models.Property, error) {
	f.calls++
	return f.results, f.err
}

func i(v int) *int { return &v }

func sampleResults() []*models.Property {
	return []*models.Property{
		{ZPID: "1", Address: "512 Maple Ave", Zip: "37206", Price: i(550000), HomeType: "SINGLE_FAMILY"},
		{ZPID: "2", Address: "77 Church St", Zip: "37219", Price: i(300000), HomeType: "CONDO"},
	}
}

func searchURL() string {
	state := `{"mapBounds":{"north":36.3,"east":-86.5,"south":36.0,"west":-87.0},"mapZoom":11}`
	return "https://www.zillow.com/nashville-tn/?searchQueryState=" + url.QueryEscape(state)
}

func newTestServer(t *testing.T, searcher Searcher) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(BuildRouter(Deps{
		Sessions: session.NewManager(),
		Listings: searcher,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func startSearch(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp := postJSON(t, srv.URL+"/api/search", map[string]any{"zillow_url": searchURL()})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search returned %d", resp.StatusCode)
	}
	body := decode(t, resp)
	id, _ := body["session_id"].(string)
	if id == "" {
		t.Fatalf("no session_id in response %v", body)
	}
	return id
}

func TestSearch_CreatesSession(t *testing.T) {
	searcher := &fakeSearcher{results: sampleResults()}
	srv := newTestServer(t, searcher)

	resp := postJSON(t, srv.URL+"/api/search", map[string]any{"zillow_url": searchURL()})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decode(t, resp)
	if body["count"] != 2.0 {
		t.Fatalf("expected count 2, got %v", body["count"])
	}
	if body["kind"] != "for-sale" {
		t.Fatalf("expected kind for-sale, got %v", body["kind"])
	}
	if searcher.calls != 1 {
		t.Fatalf("expected one upstream search, got %d", searcher.calls)
	}
}

func TestSearch_AppliesFilters(t *testing.T) {
	srv := newTestServer(t, &fakeSearcher{results: sampleResults()})

	resp := postJSON(t, srv.URL+"/api/search", map[string]any{
		"zillow_url": searchURL(),
		"min_price":  400000,
	})
	body := decode(t, resp)

	results := body["results"].([]any)
	if len(results) != 1 {
		t.Fatalf("expected 1 filtered result, got %d", len(results))
	}
	// count reflects the full fetch, results the filtered view.
	if body["count"] != 2.0 {
		t.Fatalf("expected raw count 2, got %v", body["count"])
	}
}

func TestSearch_AllFilteredOutIsEmptyArray(t *testing.T) {
	srv := newTestServer(t, &fakeSearcher{results: sampleResults()})

	resp := postJSON(t, srv.URL+"/api/search", map[string]any{
		"zillow_url": searchURL(),
		"min_price":  1000000,
	})
	body := decode(t, resp)

	results, ok := body["results"].([]any)
	if !ok {
		t.Fatalf("results must be a JSON array, got %T (%v)", body["results"], body["results"])
	}
	if len(results) != 0 {
		t.Fatalf("expected empty results, got %d", len(results))
	}
}

func TestResults_EchoesCriteria(t *testing.T) {
	srv := newTestServer(t, &fakeSearcher{results: sampleResults()})

	resp := postJSON(t, srv.URL+"/api/search", map[string]any{
		"zillow_url": searchURL(),
		"min_price":  400000,
	})
	id := decode(t, resp)["session_id"].(string)

	getResp, err := http.Get(srv.URL + "/api/search/" + id + "/results")
	if err != nil {
		t.Fatalf("get results: %v", err)
	}
	defer getResp.Body.Close()
	body := decode(t, getResp)

	criteria, ok := body["criteria"].(map[string]any)
	if !ok {
		t.Fatalf("expected criteria in results payload, got %v", body["criteria"])
	}
	price := criteria["price"].(map[string]any)
	if price["min"] != 400000.0 {
		t.Fatalf("expected echoed min price 400000, got %v", price["min"])
	}
	if criteria["kind"] != "for-sale" {
		t.Fatalf("expected echoed kind, got %v", criteria["kind"])
	}
}

func TestSearch_BadRequests(t *testing.T) {
	srv := newTestServer(t, &fakeSearcher{results: sampleResults()})

	resp := postJSON(t, srv.URL+"/api/search", map[string]any{"zillow_url": ""})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing URL: expected 400, got %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/api/search", map[string]any{"zillow_url": "https://www.zillow.com/nashville-tn/"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("URL without query state: expected 400, got %d", resp.StatusCode)
	}
	if body := decode(t, resp); body["error"] != "invalid_url" {
		t.Fatalf("expected invalid_url, got %v", body["error"])
	}

	resp = postJSON(t, srv.URL+"/api/search", map[string]any{"zillow_url": searchURL(), "search_type": "lease"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad search type: expected 400, got %d", resp.StatusCode)
	}
}

func TestSearch_UpstreamFailure(t *testing.T) {
	srv := newTestServer(t, &fakeSearcher{err: fmt.Errorf("blocked")})

	resp := postJSON(t, srv.URL+"/api/search", map[string]any{"zillow_url": searchURL()})
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
	if body := decode(t, resp); body["error"] != "upstream_error" {
		t.Fatalf("expected upstream_error, got %v", body["error"])
	}
}

func TestResults_UnknownSession(t *testing.T) {
	srv := newTestServer(t, &fakeSearcher{})

	resp, err := http.Get(srv.URL + "/api/search/not-a-uuid/results")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/api/search/00000000-0000-0000-0000-000000000000/results")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown session, got %d", resp.StatusCode)
	}
}

func TestSortToggle(t *testing.T) {
	srv := newTestServer(t, &fakeSearcher{results: sampleResults()})
	id := startSearch(t, srv)

	resp := postJSON(t, srv.URL+"/api/search/"+id+"/sort", map[string]any{"column": "price"})
	body := decode(t, resp)
	sort := body["sort"].(map[string]any)
	if sort["column"] != "price" || sort["desc"] != false {
		t.Fatalf("first toggle should be ascending, got %v", sort)
	}

	resp = postJSON(t, srv.URL+"/api/search/"+id+"/sort", map[string]any{"column": "price"})
	sort = decode(t, resp)["sort"].(map[string]any)
	if sort["desc"] != true {
		t.Fatalf("second toggle should flip to descending, got %v", sort)
	}

	// Sorted order shows up in results.
	getResp, err := http.Get(srv.URL + "/api/search/" + id + "/results")
	if err != nil {
		t.Fatalf("get results: %v", err)
	}
	defer getResp.Body.Close()
	results := decode(t, getResp)["results"].([]any)
	first := results[0].(map[string]any)
	if first["zpid"] != "1" {
		t.Fatalf("expected priciest first when descending, got %v", first["zpid"])
	}
}

func TestSelectAndExportCSV(t *testing.T) {
	srv := newTestServer(t, &fakeSearcher{results: sampleResults()})
	id := startSearch(t, srv)

	resp := postJSON(t, srv.URL+"/api/search/"+id+"/select", map[string]any{"zpids": []string{"2"}})
	if body := decode(t, resp); body["selected"] != 1.0 {
		t.Fatalf("expected 1 selected, got %v", body["selected"])
	}

	resp = postJSON(t, srv.URL+"/api/search/"+id+"/export", map[string]any{
		"format":  "csv",
		"columns": []string{"address", "price"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export returned %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("unexpected content type %s", ct)
	}

	records, err := csv.NewReader(resp.Body).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected header plus selected row, got %d rows", len(records))
	}
	if records[1][0] != "77 Church St" {
		t.Fatalf("expected only the selected property, got %v", records[1])
	}
}

func TestExport_BadFormat(t *testing.T) {
	srv := newTestServer(t, &fakeSearcher{results: sampleResults()})
	id := startSearch(t, srv)

	resp := postJSON(t, srv.URL+"/api/search/"+id+"/export", map[string]any{"format": "xlsx"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unsupported format, got %d", resp.StatusCode)
	}
}

func TestPreferences_NoStore(t *testing.T) {
	srv := newTestServer(t, &fakeSearcher{})

	resp, err := http.Get(srv.URL + "/api/preferences")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body := decode(t, resp)
	if body["columns"] == nil {
		t.Fatalf("expected default columns, got %v", body)
	}

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/preferences", strings.NewReader(`{"columns":["zip"]}`))
	putResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	defer putResp.Body.Close()
	if putResp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a store, got %d", putResp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &fakeSearcher{})
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

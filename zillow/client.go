package zillow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"househunters/config"
	"househunters/httputil"
	"househunters/models"
)

const maxResponseBytes = 8 << 20

// Client queries the Zillow search-page-state endpoint. A search is a single
// operation: any page failing fails the whole search, with no partial
// results.
type Client struct {
	http      *retryablehttp.Client
	searchURL string
	maxPages  int
	limiter   *rate.Limiter
}

func NewClient(clients *httputil.Clients, cfg *config.Config) *Client {
	// Cookie jar so the warm-up page visit carries over to the API call.
	if jar, err := cookiejar.New(nil); err == nil {
		clients.Unlocker.HTTPClient.Jar = jar
	}

	delay := cfg.Search.PageDelayMS
	if delay <= 0 {
		delay = 500
	}

	return &Client{
		http:      clients.Unlocker,
		searchURL: cfg.Providers.ZillowSearchURL,
		maxPages:  cfg.Search.MaxPages,
		limiter:   rate.NewLimiter(rate.Every(time.Duration(delay)*time.Millisecond), 1),
	}
}

// Search fetches every result page for the given bounds and criteria and maps
// them to properties, in upstream order.
func (c *Client) Search(ctx context.Context, bounds *Bounds, criteria models.SearchCriteria) ([]*models.Property, error) {
	c.warmUp(ctx, bounds.OriginalURL)

	payload := buildSearchPayload(bounds, criteria)

	var properties []*models.Property
	totalPages := 1
	for page := 1; page <= totalPages; page++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := c.fetchPage(ctx, payload, page)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}

		for _, lr := range resp.Cat1.SearchResults.ListResults {
			properties = append(properties, mapListResult(lr))
		}

		if page == 1 {
			totalPages = resp.Cat1.SearchList.TotalPages
			if c.maxPages > 0 && totalPages > c.maxPages {
				log.Printf("Zillow: capping %d result pages at %d", totalPages, c.maxPages)
				totalPages = c.maxPages
			}
		}
		log.Printf("Zillow: page %d/%d: %d listings (total: %d)",
			page, totalPages, len(resp.Cat1.SearchResults.ListResults), len(properties))
	}

	return properties, nil
}

// warmUp visits the original search page so the session has site cookies.
// Failures are tolerable; the API call may still succeed without them.
func (c *Client) warmUp(ctx context.Context, originalURL string) {
	if originalURL == "" {
		return
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, originalURL, nil)
	if err != nil {
		return
	}
	req.Header.Set("User-Agent", browserUA)
	resp, err := c.http.Do(req)
	if err != nil {
		log.Printf("Zillow: warm-up visit failed: %v", err)
		return
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
	resp.Body.Close()
}

func (c *Client) fetchPage(ctx context.Context, payload map[string]any, page int) (*searchPageResponse, error) {
	state := payload["searchQueryState"].(map[string]any)
	state["pagination"] = map[string]any{"currentPage": page}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPut, c.searchURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "https://www.zillow.com")
	req.Header.Set("Referer", "https://www.zillow.com/")
	req.Header.Set("User-Agent", browserUA)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("zillow search error %d: %s", resp.StatusCode, snippet)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}

	var parsed searchPageResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return &parsed, nil
}

const browserUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// buildSearchPayload mirrors the payload the site's own frontend sends.
func buildSearchPayload(bounds *Bounds, criteria models.SearchCriteria) map[string]any {
	filterState := map[string]any{}

	if criteria.Kind == models.SearchForRent {
		filterState["sortSelection"] = map[string]any{"value": "priorityscore"}
		for _, flag := range []string{
			"isNewConstruction", "isForSaleForeclosure", "isForSaleByOwner",
			"isForSaleByAgent", "isComingSoon", "isAuction",
		} {
			filterState[flag] = map[string]any{"value": false}
		}
		filterState["isForRent"] = map[string]any{"value": true}
		filterState["isAllHomes"] = map[string]any{"value": true}
	} else {
		filterState["sortSelection"] = map[string]any{"value": "globalrelevanceex"}
		filterState["isAllHomes"] = map[string]any{"value": true}
	}

	setRange := func(key string, r models.Range) {
		if !r.IsSet() {
			return
		}
		bound := map[string]any{}
		if r.Min != nil {
			bound["min"] = *r.Min
		}
		if r.Max != nil {
			bound["max"] = *r.Max
		}
		filterState[key] = bound
	}
	setRange("beds", criteria.Beds)
	setRange("baths", criteria.Baths)
	setRange("price", criteria.Price)
	setRange("built", criteria.Year)
	setRange("sqft", criteria.Sqft)

	// Rentals filter on monthly payment alongside price.
	if criteria.Kind == models.SearchForRent && criteria.Price.IsSet() {
		filterState["monthlyPayment"] = filterState["price"]
	}

	for key, include := range criteria.HomeTypes {
		switch key {
		case "sf", "tow", "mf", "con", "land", "apa", "manu", "apco":
			filterState[key] = map[string]any{"value": include}
		}
	}

	state := map[string]any{
		"isMapVisible":  true,
		"isListVisible": true,
		"mapBounds": map[string]any{
			"north": bounds.North,
			"east":  bounds.East,
			"south": bounds.South,
			"west":  bounds.West,
		},
		"filterState": filterState,
		"mapZoom":     bounds.Zoom,
		"pagination":  map[string]any{"currentPage": 1},
	}
	if bounds.CustomRegionID != "" {
		state["customRegionId"] = bounds.CustomRegionID
	}

	return map[string]any{
		"searchQueryState": state,
		"wants": map[string]any{
			"cat1": []string{"listResults", "mapResults"},
			"cat2": []string{"total"},
		},
		"requestId":      10,
		"isDebugRequest": false,
	}
}

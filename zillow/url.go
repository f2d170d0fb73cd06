package zillow

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"househunters/models"
)

// Bounds is the map viewport extracted from a search URL's searchQueryState.
type Bounds struct {
	North float64 `json:"north"`
	East  float64 `json:"east"`
	South float64 `json:"south"`
	West  float64 `json:"west"`

	Zoom           int    `json:"zoom"`
	CustomRegionID string `json:"custom_region_id,omitempty"`
	OriginalURL    string `json:"original_url"`
}

var (
	queryStateRe = regexp.MustCompile(`searchQueryState=([^&#]+)`)
	// Some share links embed the state percent-encoded inside the path.
	embeddedStateRe = regexp.MustCompile(`searchQueryState%22%3A(%7B.+?%7D)(?:&|$)`)
)

type searchQueryState struct {
	MapBounds struct {
		North float64 `json:"north"`
		East  float64 `json:"east"`
		South float64 `json:"south"`
		West  float64 `json:"west"`
	} `json:"mapBounds"`
	MapZoom        int    `json:"mapZoom"`
	CustomRegionID string `json:"customRegionId"`
}

// ParseSearchURL extracts map bounds from a Zillow search URL.
func ParseSearchURL(searchURL string) (*Bounds, error) {
	m := queryStateRe.FindStringSubmatch(searchURL)
	if m == nil {
		m = embeddedStateRe.FindStringSubmatch(searchURL)
	}
	if m == nil {
		return nil, fmt.Errorf("no searchQueryState in URL")
	}

	decoded, err := url.QueryUnescape(m[1])
	if err != nil {
		return nil, fmt.Errorf("decode searchQueryState: %w", err)
	}

	var state searchQueryState
	if err := json.Unmarshal([]byte(decoded), &state); err != nil {
		return nil, fmt.Errorf("parse searchQueryState: %w", err)
	}

	zoom := state.MapZoom
	if zoom == 0 {
		zoom = 12
	}

	return &Bounds{
		North:          state.MapBounds.North,
		East:           state.MapBounds.East,
		South:          state.MapBounds.South,
		West:           state.MapBounds.West,
		Zoom:           zoom,
		CustomRegionID: state.CustomRegionID,
		OriginalURL:    searchURL,
	}, nil
}

// DetectKind infers sale vs rent from the URL's path segments or embedded
// query state; defaults to for-sale.
func DetectKind(searchURL string) models.SearchKind {
	if strings.Contains(searchURL, "/rentals") ||
		strings.Contains(searchURL, "for_rent") ||
		strings.Contains(searchURL, "isForRent") {
		return models.SearchForRent
	}
	return models.SearchForSale
}

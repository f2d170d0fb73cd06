// Package schools fetches school-rating summaries from a property's detail
// page. The page embeds its data as JSON in a __NEXT_DATA__ script tag, with
// the property record double-encoded inside gdpClientCache.
package schools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/go-retryablehttp"

	"househunters/config"
	"househunters/httputil"
	"househunters/models"
)

const maxResponseBytes = 8 << 20

type Client struct {
	http      *retryablehttp.Client
	detailURL string // format string taking a zpid
}

func NewClient(clients *httputil.Clients, cfg *config.Config) *Client {
	return &Client{
		http:      clients.Unlocker,
		detailURL: cfg.Providers.ZillowDetailURL,
	}
}

// Ratings fetches the detail page for a zpid and reduces its schools array to
// one score per level.
func (c *Client) Ratings(ctx context.Context, zpid string) (*models.SchoolRatings, error) {
	u := fmt.Sprintf(c.detailURL, zpid)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch detail page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("detail page status %d for zpid %s", resp.StatusCode, zpid)
	}

	return ParseDetailHTML(io.LimitReader(resp.Body, maxResponseBytes))
}

type schoolEntry struct {
	Name   string   `json:"name"`
	Rating *float64 `json:"rating"`
	Level  string   `json:"level"`
}

// ParseDetailHTML extracts the schools summary from a detail page body.
func ParseDetailHTML(r io.Reader) (*models.SchoolRatings, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	sel := doc.Find("#__NEXT_DATA__").First()
	if sel.Length() == 0 {
		return nil, fmt.Errorf("no __NEXT_DATA__ script tag")
	}

	var nextData struct {
		Props struct {
			PageProps struct {
				ComponentProps struct {
					GDPClientCache string `json:"gdpClientCache"`
				} `json:"componentProps"`
			} `json:"pageProps"`
		} `json:"props"`
	}
	if err := json.Unmarshal([]byte(sel.Text()), &nextData); err != nil {
		return nil, fmt.Errorf("decode __NEXT_DATA__: %w", err)
	}

	cacheRaw := nextData.Props.PageProps.ComponentProps.GDPClientCache
	if cacheRaw == "" {
		return nil, fmt.Errorf("no gdpClientCache in component props")
	}

	var cache map[string]struct {
		Property struct {
			Schools []schoolEntry `json:"schools"`
		} `json:"property"`
	}
	if err := json.Unmarshal([]byte(cacheRaw), &cache); err != nil {
		return nil, fmt.Errorf("decode gdpClientCache: %w", err)
	}

	for _, entry := range cache {
		if entry.Property.Schools != nil {
			return Summarize(entry.Property.Schools), nil
		}
	}
	return nil, fmt.Errorf("no property schools in gdpClientCache")
}

// Summarize keeps the best known rating per level. A property can list
// several schools at one level; the highest-rated one drives the filter.
func Summarize(entries []schoolEntry) *models.SchoolRatings {
	out := &models.SchoolRatings{}

	for _, e := range entries {
		if e.Rating == nil {
			continue
		}
		switch normalizeLevel(e.Level) {
		case "elementary":
			keepMax(&out.Elementary, *e.Rating)
		case "middle":
			keepMax(&out.Middle, *e.Rating)
		case "high":
			keepMax(&out.High, *e.Rating)
		}
	}

	out.Display = models.FormatSchoolDisplay(out.Elementary, out.Middle, out.High)
	out.Total = -1
	for _, v := range []*float64{out.Elementary, out.Middle, out.High} {
		if v != nil {
			if out.Total < 0 {
				out.Total = 0
			}
			out.Total += *v
		}
	}
	return out
}

func normalizeLevel(level string) string {
	switch strings.ToLower(level) {
	case "elementary", "primary":
		return "elementary"
	case "middle":
		return "middle"
	case "high":
		return "high"
	}
	return ""
}

func keepMax(slot **float64, v float64) {
	if *slot == nil || v > **slot {
		*slot = &v
	}
}

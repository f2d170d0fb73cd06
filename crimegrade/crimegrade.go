// Package crimegrade scrapes the letter-grade summary for a postal code from
// crimegrade.org.
package crimegrade

import (
	"context"
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

const maxResponseBytes = 4 << 20

type Client struct {
	http    *retryablehttp.Client
	baseURL string
}

// NewClient uses the direct client; crimegrade.org does not gate plain
// requests the way the listings endpoints do.
func NewClient(clients *httputil.Clients, cfg *config.Config) *Client {
	return &Client{
		http:    clients.Direct,
		baseURL: cfg.Providers.CrimeGradeBaseURL,
	}
}

// Grade fetches and parses the crime grade for one zipcode.
func (c *Client) Grade(ctx context.Context, zipcode string) (*models.CrimeGrade, error) {
	u := fmt.Sprintf("%s/safest-places-in-%s/", c.baseURL, zipcode)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch crime grade: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("crimegrade status %d for zip %s", resp.StatusCode, zipcode)
	}

	return ParseHTML(io.LimitReader(resp.Body, maxResponseBytes))
}

// ParseHTML extracts the overall grade and the per-category component table.
func ParseHTML(r io.Reader) (*models.CrimeGrade, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	section := doc.Find("div.one_half").First()
	if section.Length() == 0 {
		return nil, fmt.Errorf("no crime section in page")
	}

	grade := &models.CrimeGrade{
		Overall: strings.TrimSpace(section.Find("p.overallGradeLetter").First().Text()),
	}

	section.Find("table.gradeComponents tr").Each(func(i int, row *goquery.Selection) {
		category := strings.TrimSpace(row.Find("td:nth-child(1) div.mtr-cell-content").Text())
		value := strings.TrimSpace(row.Find("td:nth-child(2) div.mtr-cell-content span").Text())
		if category == "" || value == "" {
			return
		}

		category = strings.ToLower(strings.TrimSuffix(category, " Grade"))
		switch {
		case strings.Contains(category, "violent"):
			grade.Violent = value
		case strings.Contains(category, "property"):
			grade.Property = value
		case strings.Contains(category, "other"):
			grade.Other = value
		}
	})

	if grade.Overall == "" && grade.Violent == "" && grade.Property == "" && grade.Other == "" {
		return nil, fmt.Errorf("no grades found in page")
	}
	return grade, nil
}

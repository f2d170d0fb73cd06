package crimegrade

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"househunters/config"
	"househunters/httputil"
)

func openFixture(t *testing.T, name string) *os.File {
	t.Helper()
	f, err := os.Open(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("failed to open fixture %s: %v", name, err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestParseHTML_Basic(t *testing.T) {
	grade, err := ParseHTML(openFixture(t, "crime_page_basic.html"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	// Only the first one_half section counts; the sidebar's F must not leak in.
	if grade.Overall != "C+" {
		t.Fatalf("expected overall C+, got %s", grade.Overall)
	}
	if grade.Violent != "D" {
		t.Fatalf("expected violent D, got %s", grade.Violent)
	}
	if grade.Property != "C" {
		t.Fatalf("expected property C, got %s", grade.Property)
	}
	if grade.Other != "B-" {
		t.Fatalf("expected other B-, got %s", grade.Other)
	}
}

func TestParseHTML_OverallOnly(t *testing.T) {
	grade, err := ParseHTML(openFixture(t, "crime_page_overall_only.html"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if grade.Overall != "A-" {
		t.Fatalf("expected overall A-, got %s", grade.Overall)
	}
	if grade.Violent != "" || grade.Property != "" || grade.Other != "" {
		t.Fatalf("expected empty component grades, got %+v", grade)
	}
}

func TestNewClient_GoesDirect(t *testing.T) {
	clients := httputil.NewClients(&config.BrightDataConfig{
		Host: "h", Port: 1, Username: "u", Password: "p", Enabled: true,
	})
	c := NewClient(clients, &config.Config{})
	if c.http != clients.Direct {
		t.Fatalf("crime grade fetches must not route through the unlocker proxy")
	}
}

func TestParseHTML_NoGrades(t *testing.T) {
	if _, err := ParseHTML(strings.NewReader(`<html><body><div class="one_half"></div></body></html>`)); err == nil {
		t.Fatalf("expected error when no grades present")
	}
	if _, err := ParseHTML(strings.NewReader(`<html><body><p>not found</p></body></html>`)); err == nil {
		t.Fatalf("expected error when crime section missing")
	}
}

package session

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"househunters/models"
)

func f(v float64) *float64 { return &v }
func i(v int) *int         { return &v }

func batch(zpids ...string) []*models.Property {
	props := make([]*models.Property, 0, len(zpids))
	for _, z := range zpids {
		props = append(props, &models.Property{ZPID: z, Price: i(100000)})
	}
	return props
}

func TestSetResults_BumpsGenerationAndResetsState(t *testing.T) {
	s := New(models.SearchCriteria{}, models.DefaultMortgageSettings())

	gen1 := s.SetResults(models.SearchCriteria{}, batch("1", "2"))
	s.SetSelection([]string{"1"})
	s.ToggleSort("price")

	gen2 := s.SetResults(models.SearchCriteria{}, batch("3"))
	if gen2 != gen1+1 {
		t.Fatalf("expected generation bump, got %d -> %d", gen1, gen2)
	}
	if s.SelectionCount() != 0 {
		t.Fatalf("selection should reset with new results")
	}
	if col, _ := s.SortState(); col != "" {
		t.Fatalf("sort should reset with new results, got %s", col)
	}
}

func TestApplyIfCurrent_DiscardsStale(t *testing.T) {
	s := New(models.SearchCriteria{}, models.DefaultMortgageSettings())
	gen := s.SetResults(models.SearchCriteria{}, batch("1"))
	old := s.Snapshot()

	// New search arrives while the sweep for the old batch is in flight.
	s.SetResults(models.SearchCriteria{}, batch("2"))

	applied := s.ApplyIfCurrent(gen, func() {
		old[0].Schools = models.SentinelSchoolRatings()
	})
	if applied {
		t.Fatalf("stale generation must not apply")
	}
	if old[0].Schools != nil {
		t.Fatalf("stale sweep result leaked into property")
	}

	if !s.ApplyIfCurrent(s.Generation(), func() {}) {
		t.Fatalf("current generation must apply")
	}
}

func TestInvalidate(t *testing.T) {
	s := New(models.SearchCriteria{}, models.DefaultMortgageSettings())
	gen := s.SetResults(models.SearchCriteria{}, batch("1"))
	s.Invalidate()
	if s.ApplyIfCurrent(gen, func() {}) {
		t.Fatalf("invalidated session must reject the old generation")
	}
}

func TestFiltered_ReevaluatesSchools(t *testing.T) {
	criteria := models.SearchCriteria{MinSchool: models.SchoolMinimums{Elementary: f(6)}}
	s := New(criteria, models.DefaultMortgageSettings())
	props := batch("1", "2")
	s.SetResults(criteria, props)

	if got := len(s.Filtered()); got != 2 {
		t.Fatalf("unenriched properties pass provisionally, got %d", got)
	}

	props[0].Schools = &models.SchoolRatings{Elementary: f(4), Total: 4}
	props[1].Schools = &models.SchoolRatings{Elementary: f(8), Total: 8}

	filtered := s.Filtered()
	if len(filtered) != 1 || filtered[0].ZPID != "2" {
		t.Fatalf("expected only the passing property after enrichment, got %d", len(filtered))
	}
}

func TestFiltered_ReturnsCopies(t *testing.T) {
	s := New(models.SearchCriteria{}, models.DefaultMortgageSettings())
	props := batch("1")
	s.SetResults(models.SearchCriteria{}, props)

	snap := s.Filtered()

	s.ApplyIfCurrent(s.Generation(), func() {
		props[0].Schools = models.SentinelSchoolRatings()
	})
	if snap[0].Schools != nil {
		t.Fatalf("filtered view must not alias the live batch")
	}
	if got := s.Filtered(); got[0].Schools == nil {
		t.Fatalf("fresh read should see the enrichment")
	}
}

func TestFiltered_EmptyIsNotNil(t *testing.T) {
	min := 1000000.0
	criteria := models.SearchCriteria{Price: models.Range{Min: &min}}
	s := New(criteria, models.DefaultMortgageSettings())
	s.SetResults(criteria, batch("1"))

	filtered := s.Filtered()
	if filtered == nil {
		t.Fatalf("empty filtered set must be a non-nil slice")
	}
	if raw, err := json.Marshal(filtered); err != nil || string(raw) != "[]" {
		t.Fatalf("expected [], got %s (%v)", raw, err)
	}
}

// Serializing a filtered view while a sweep keeps publishing enrichments.
// Run with -race; the copies taken under the lock keep reads and writes apart.
func TestFiltered_ConcurrentWithSweepWrites(t *testing.T) {
	props := make([]*models.Property, 200)
	for n := range props {
		price := 100000
		props[n] = &models.Property{ZPID: fmt.Sprintf("%d", n), Zip: "37206", Price: &price}
	}
	s := New(models.SearchCriteria{}, models.DefaultMortgageSettings())
	gen := s.SetResults(models.SearchCriteria{}, props)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for _, p := range props {
			p := p
			s.ApplyIfCurrent(gen, func() {
				p.Schools = &models.SchoolRatings{Display: "7/7/7", Total: 21}
				p.Crime = &models.CrimeGrade{Overall: "B"}
			})
		}
	}()

	for n := 0; n < 50; n++ {
		if _, err := json.Marshal(s.Filtered()); err != nil {
			t.Fatalf("marshal filtered view: %v", err)
		}
	}
	wg.Wait()

	if schools, crime, total := s.EnrichmentProgress(); schools != total || crime != total {
		t.Fatalf("expected full enrichment, got %d/%d of %d", schools, crime, total)
	}
}

func TestExportSet_SelectionIntersectsFilter(t *testing.T) {
	s := New(models.SearchCriteria{}, models.DefaultMortgageSettings())
	s.SetResults(models.SearchCriteria{}, batch("1", "2", "3"))

	if got := len(s.ExportSet()); got != 3 {
		t.Fatalf("no selection exports everything, got %d", got)
	}

	s.SetSelection([]string{"2", "999"})
	set := s.ExportSet()
	if len(set) != 1 || set[0].ZPID != "2" {
		t.Fatalf("expected selection intersected with results, got %d", len(set))
	}
}

func TestToggleSort(t *testing.T) {
	s := New(models.SearchCriteria{}, models.DefaultMortgageSettings())

	col, desc := s.ToggleSort("price")
	if col != "price" || desc {
		t.Fatalf("new column starts ascending, got %s desc=%v", col, desc)
	}
	if _, desc = s.ToggleSort("price"); !desc {
		t.Fatalf("same column flips to descending")
	}
	if col, desc = s.ToggleSort("beds"); col != "beds" || desc {
		t.Fatalf("switching columns resets to ascending, got %s desc=%v", col, desc)
	}
}

func TestEnrichmentProgress(t *testing.T) {
	s := New(models.SearchCriteria{}, models.DefaultMortgageSettings())
	props := batch("1", "2", "3")
	s.SetResults(models.SearchCriteria{}, props)

	props[0].Schools = models.SentinelSchoolRatings()
	props[0].Crime = &models.CrimeGrade{Overall: "B"}
	props[1].Schools = &models.SchoolRatings{Total: 10}

	schools, crime, total := s.EnrichmentProgress()
	if schools != 2 || crime != 1 || total != 3 {
		t.Fatalf("unexpected progress %d/%d of %d", schools, crime, total)
	}
}

func TestManager(t *testing.T) {
	m := NewManager()
	s := New(models.SearchCriteria{}, models.DefaultMortgageSettings())
	m.Add(s)

	if got, ok := m.Get(s.ID); !ok || got != s {
		t.Fatalf("expected to find session by id")
	}
	if m.Count() != 1 {
		t.Fatalf("expected 1 session, got %d", m.Count())
	}

	gen := s.SetResults(models.SearchCriteria{}, batch("1"))
	m.Remove(s.ID)
	if _, ok := m.Get(s.ID); ok {
		t.Fatalf("removed session still resolvable")
	}
	if s.ApplyIfCurrent(gen, func() {}) {
		t.Fatalf("removal must invalidate in-flight sweeps")
	}
}

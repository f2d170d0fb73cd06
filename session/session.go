// Package session holds per-search state. Each search creates a session with
// a generation counter; enrichment sweeps carry the generation they started
// under and late results against an older generation are discarded.
package session

import (
	"time"

	"sync"

	"github.com/google/uuid"

	"househunters/filter"
	"househunters/models"
)

type Session struct {
	ID uuid.UUID

	mu         sync.Mutex
	criteria   models.SearchCriteria
	mortgage   models.MortgageSettings
	results    []*models.Property
	generation uint64
	selected   map[string]struct{}
	sortColumn string
	sortDesc   bool
	lastActive time.Time
}

func New(criteria models.SearchCriteria, mortgage models.MortgageSettings) *Session {
	return &Session{
		ID:         uuid.New(),
		criteria:   criteria,
		mortgage:   mortgage,
		selected:   make(map[string]struct{}),
		lastActive: time.Now(),
	}
}

// SetResults installs a fresh batch and bumps the generation, which
// invalidates any sweep still working on the previous batch. Selection and
// sort state reset with the batch.
func (s *Session) SetResults(criteria models.SearchCriteria, props []*models.Property) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.criteria = criteria
	s.results = props
	s.generation++
	s.selected = make(map[string]struct{})
	s.sortColumn = ""
	s.sortDesc = false
	s.lastActive = time.Now()
	return s.generation
}

func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Invalidate discards the current batch's sweeps without installing results.
func (s *Session) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
}

// ApplyIfCurrent runs fn under the session lock only when gen still matches;
// the caller's enrichment result is dropped otherwise.
func (s *Session) ApplyIfCurrent(gen uint64, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return false
	}
	fn()
	return true
}

// Snapshot returns the batch slice for sweep iteration. Property pointers are
// shared; sweeps must mutate them through ApplyIfCurrent.
func (s *Session) Snapshot() []*models.Property {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Property, len(s.results))
	copy(out, s.results)
	return out
}

func (s *Session) Criteria() models.SearchCriteria {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.criteria
}

func (s *Session) Mortgage() models.MortgageSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mortgage
}

func (s *Session) SetMortgage(m models.MortgageSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mortgage = m
}

// Filtered re-applies the filters, including the school filter over whatever
// ratings have arrived so far. The returned properties are copies taken under
// the lock, so callers can sort and serialize them while the sweeps keep
// writing the live batch. The enrichment payloads themselves (SchoolRatings,
// CrimeGrade) are never mutated after publication, so the copies may share
// them.
func (s *Session) Filtered() []*models.Property {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now()

	out := make([]*models.Property, 0, len(s.results))
	for _, p := range s.results {
		if filter.Matches(p, s.criteria) && filter.MatchesSchools(p, s.criteria) {
			c := *p
			out = append(out, &c)
		}
	}
	return out
}

// ExportSet is the filtered set, restricted to the explicit selection when
// one exists.
func (s *Session) ExportSet() []*models.Property {
	filtered := s.Filtered()

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.selected) == 0 {
		return filtered
	}
	var out []*models.Property
	for _, p := range filtered {
		if _, ok := s.selected[p.ZPID]; ok {
			out = append(out, p)
		}
	}
	return out
}

// SetSelection replaces the explicit row selection.
func (s *Session) SetSelection(zpids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = make(map[string]struct{}, len(zpids))
	for _, z := range zpids {
		s.selected[z] = struct{}{}
	}
	s.lastActive = time.Now()
}

func (s *Session) SelectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.selected)
}

// ToggleSort picks a sort column: choosing the current column flips the
// direction, a new column resets to ascending.
func (s *Session) ToggleSort(column string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if column == s.sortColumn {
		s.sortDesc = !s.sortDesc
	} else {
		s.sortColumn = column
		s.sortDesc = false
	}
	return s.sortColumn, s.sortDesc
}

func (s *Session) SortState() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortColumn, s.sortDesc
}

func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// EnrichmentProgress counts how many properties carry each enrichment.
func (s *Session) EnrichmentProgress() (schools, crime, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.results {
		if p.Schools != nil {
			schools++
		}
		if p.Crime != nil {
			crime++
		}
	}
	return schools, crime, len(s.results)
}

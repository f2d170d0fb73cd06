// Package enrich runs the two asynchronous enrichment sweeps over a search
// batch: school ratings per property and crime grades per zipcode. Within a
// sweep, calls are strictly sequential to bound load on the providers; the
// two sweeps run independently of each other.
package enrich

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"househunters/models"
	"househunters/session"
)

type SchoolProvider interface {
	Ratings(ctx context.Context, zpid string) (*models.SchoolRatings, error)
}

type CrimeProvider interface {
	Grade(ctx context.Context, zipcode string) (*models.CrimeGrade, error)
}

// Cache persists enrichment results across sessions; either method pair may
// return (nil, nil) on a miss.
type Cache interface {
	SchoolRatings(ctx context.Context, zpid string) (*models.SchoolRatings, error)
	PutSchoolRatings(ctx context.Context, zpid string, r *models.SchoolRatings) error
	CrimeGrade(ctx context.Context, zipcode string) (*models.CrimeGrade, error)
	PutCrimeGrade(ctx context.Context, zipcode string, g *models.CrimeGrade) error
}

// Notifier receives enrichment events for UI push. Implementations must not
// block.
type Notifier interface {
	SchoolEnriched(sessionID, zpid string)
	CrimeEnriched(sessionID, zipcode string)
	SweepDone(sessionID, kind string)
}

type Enricher struct {
	schools SchoolProvider
	crime   CrimeProvider
	cache   Cache    // optional
	notify  Notifier // optional

	limiter *rate.Limiter
	group   singleflight.Group
}

func New(schools SchoolProvider, crime CrimeProvider, cache Cache, notify Notifier, delayMS int) *Enricher {
	if delayMS <= 0 {
		delayMS = 500
	}
	return &Enricher{
		schools: schools,
		crime:   crime,
		cache:   cache,
		notify:  notify,
		limiter: rate.NewLimiter(rate.Every(time.Duration(delayMS)*time.Millisecond), 1),
	}
}

// Start launches both sweeps for the session's current batch. The generation
// captured here pins every later write: once a new search bumps it, remaining
// work is discarded.
func (e *Enricher) Start(ctx context.Context, s *session.Session) {
	gen := s.Generation()
	batch := s.Snapshot()
	go e.schoolSweep(ctx, s, gen, batch)
	go e.crimeSweep(ctx, s, gen, batch)
}

func (e *Enricher) schoolSweep(ctx context.Context, s *session.Session, gen uint64, batch []*models.Property) {
	for _, p := range batch {
		if ctx.Err() != nil {
			return
		}
		if s.Generation() != gen {
			log.Printf("Schools: sweep for session %s superseded, stopping", s.ID)
			return
		}
		if p.Schools != nil || p.ZPID == "" {
			continue
		}

		ratings := e.lookupSchools(ctx, p.ZPID)
		if !s.ApplyIfCurrent(gen, func() { p.Schools = ratings }) {
			log.Printf("Schools: discarding late result for zpid %s", p.ZPID)
			return
		}
		if e.notify != nil {
			e.notify.SchoolEnriched(s.ID.String(), p.ZPID)
		}
	}
	if e.notify != nil && s.Generation() == gen {
		e.notify.SweepDone(s.ID.String(), "schools")
	}
}

// lookupSchools resolves one zpid: cache, then network. A failed fetch yields
// the sentinel so the property is not retried and renders as unknown.
func (e *Enricher) lookupSchools(ctx context.Context, zpid string) *models.SchoolRatings {
	if e.cache != nil {
		if cached, err := e.cache.SchoolRatings(ctx, zpid); err == nil && cached != nil {
			return cached
		}
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return models.SentinelSchoolRatings()
	}
	ratings, err := e.schools.Ratings(ctx, zpid)
	if err != nil {
		log.Printf("Schools: fetch failed for zpid %s: %v", zpid, err)
		return models.SentinelSchoolRatings()
	}

	if e.cache != nil {
		if err := e.cache.PutSchoolRatings(ctx, zpid, ratings); err != nil {
			log.Printf("Schools: cache write failed for zpid %s: %v", zpid, err)
		}
	}
	return ratings
}

func (e *Enricher) crimeSweep(ctx context.Context, s *session.Session, gen uint64, batch []*models.Property) {
	for _, zip := range pendingZips(batch) {
		if ctx.Err() != nil {
			return
		}
		if s.Generation() != gen {
			log.Printf("Crime: sweep for session %s superseded, stopping", s.ID)
			return
		}

		grade, err := e.lookupCrime(ctx, zip)
		if err != nil {
			log.Printf("Crime: fetch failed for zip %s: %v", zip, err)
			continue
		}

		// One grade instance fans out to every property in the zip.
		applied := s.ApplyIfCurrent(gen, func() {
			for _, p := range batch {
				if p.Zip == zip && p.Crime == nil {
					p.Crime = grade
				}
			}
		})
		if !applied {
			log.Printf("Crime: discarding late result for zip %s", zip)
			return
		}
		if e.notify != nil {
			e.notify.CrimeEnriched(s.ID.String(), zip)
		}
	}
	if e.notify != nil && s.Generation() == gen {
		e.notify.SweepDone(s.ID.String(), "crime")
	}
}

// lookupCrime resolves one zipcode: cache, then network deduplicated with
// singleflight so overlapping sessions issue at most one fetch per code.
func (e *Enricher) lookupCrime(ctx context.Context, zip string) (*models.CrimeGrade, error) {
	if e.cache != nil {
		if cached, err := e.cache.CrimeGrade(ctx, zip); err == nil && cached != nil {
			return cached, nil
		}
	}

	v, err, _ := e.group.Do(zip, func() (any, error) {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		grade, err := e.crime.Grade(ctx, zip)
		if err != nil {
			return nil, err
		}
		if e.cache != nil {
			if err := e.cache.PutCrimeGrade(ctx, zip, grade); err != nil {
				log.Printf("Crime: cache write failed for zip %s: %v", zip, err)
			}
		}
		return grade, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.CrimeGrade), nil
}

// pendingZips returns the distinct unresolved zipcodes in first-seen order.
func pendingZips(batch []*models.Property) []string {
	seen := make(map[string]struct{})
	var zips []string
	for _, p := range batch {
		if p.Zip == "" || p.Crime != nil {
			continue
		}
		if _, ok := seen[p.Zip]; ok {
			continue
		}
		seen[p.Zip] = struct{}{}
		zips = append(zips, p.Zip)
	}
	return zips
}

// Package scheduler runs the periodic maintenance jobs: pruning idle
// sessions and expiring the crime-grade cache.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"househunters/config"
	"househunters/session"
	"househunters/storage"
)

type Scheduler struct {
	cfg      *config.Config
	sessions *session.Manager
	store    *storage.Store // optional
	cron     *cron.Cron
}

func New(cfg *config.Config, sessions *session.Manager, store *storage.Store) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		sessions: sessions,
		store:    store,
		cron:     cron.New(),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc("@every 10m", func() {
		if n := s.sessions.PruneIdle(s.cfg.Server.SessionTTL); n > 0 {
			log.Printf("Scheduler: pruned %d idle sessions (%d live)", n, s.sessions.Count())
		}
	}); err != nil {
		return err
	}

	if s.store != nil {
		if _, err := s.cron.AddFunc("@daily", func() {
			jobCtx, cancel := context.WithTimeout(ctx, time.Minute)
			defer cancel()
			n, err := s.store.PruneCrimeCache(jobCtx, s.cfg.Sweep.CrimeCacheTTL)
			if err != nil {
				log.Printf("Scheduler: crime cache prune failed: %v", err)
				return
			}
			if n > 0 {
				log.Printf("Scheduler: expired %d crime cache entries", n)
			}
		}); err != nil {
			return err
		}
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"househunters/config"
	"househunters/crimegrade"
	"househunters/enrich"
	"househunters/httputil"
	"househunters/logging"
	"househunters/models"
	"househunters/scheduler"
	"househunters/schools"
	"househunters/server"
	"househunters/session"
	"househunters/sse"
	"househunters/storage"
	"househunters/view"
	"househunters/zillow"
)

func main() {
	cmd := &cli.Command{
		Name:  "househunters",
		Usage: "Personal real-estate search assistant: Zillow search with school-rating and crime-grade enrichment",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API daemon",
				Action: runServe,
			},
			{
				Name:  "search",
				Usage: "Run one search and print the results to stdout",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "url", Usage: "Zillow search URL", Required: true},
					&cli.StringFlag{Name: "format", Usage: "json or csv", Value: "json"},
					&cli.StringFlag{Name: "types", Usage: "comma-separated home-type keys to include (sf,tow,mf,con,land,apa,manu,apco)"},
					&cli.BoolFlag{Name: "enrich", Usage: "run the school and crime sweeps before printing"},
					&cli.FloatFlag{Name: "min-beds"}, &cli.FloatFlag{Name: "max-beds"},
					&cli.FloatFlag{Name: "min-baths"}, &cli.FloatFlag{Name: "max-baths"},
					&cli.FloatFlag{Name: "min-price"}, &cli.FloatFlag{Name: "max-price"},
					&cli.FloatFlag{Name: "min-sqft"}, &cli.FloatFlag{Name: "max-sqft"},
					&cli.FloatFlag{Name: "min-year"}, &cli.FloatFlag{Name: "max-year"},
				},
				Action: runSearch,
			},
		},
		DefaultCommand: "serve",
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func runServe(ctx context.Context, _ *cli.Command) error {
	logFile, err := logging.Setup("daemon.log")
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting househunters...")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := storage.NewStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer store.Close()
	log.Printf("SQLite database: %s", cfg.DBPath)

	clients := httputil.NewClients(&cfg.BrightData)
	if httputil.ProxyURL(&cfg.BrightData) != nil {
		log.Println("Using Bright Data unlocker for upstream requests")
	} else {
		log.Println("Making direct upstream requests (no proxy)")
	}

	broker := sse.NewBroker()
	defer broker.Close()

	enricher := enrich.New(
		schools.NewClient(clients, cfg),
		crimegrade.NewClient(clients, cfg),
		store,
		broker,
		cfg.Sweep.DelayMS,
	)

	sessions := session.NewManager()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched := scheduler.New(cfg, sessions, store)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	router := server.BuildRouter(server.Deps{
		Sessions: sessions,
		Listings: zillow.NewClient(clients, cfg),
		Enricher: enricher,
		Store:    store,
		Broker:   broker,
		BaseCtx:  ctx,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("househunters listening on :%d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
	case <-ctx.Done():
	}

	log.Println("Shutting down...")
	cancel() // sweeps stop dequeuing

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Println("Goodbye!")
	return nil
}

func runSearch(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	searchURL := cmd.String("url")
	bounds, err := zillow.ParseSearchURL(searchURL)
	if err != nil {
		return fmt.Errorf("parse search URL: %w", err)
	}

	criteria := criteriaFromFlags(cmd, zillow.DetectKind(searchURL))

	clients := httputil.NewClients(&cfg.BrightData)
	results, err := zillow.NewClient(clients, cfg).Search(ctx, bounds, criteria)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	log.Printf("Found %d listings", len(results))

	sess := session.New(criteria, models.DefaultMortgageSettings())
	sess.SetResults(criteria, results)

	if cmd.Bool("enrich") {
		if err := runSweepsToCompletion(ctx, cfg, clients, sess); err != nil {
			log.Printf("Warning: enrichment incomplete: %v", err)
		}
	}

	rows := view.Project(sess.Filtered(), nil, models.DefaultMortgageSettings())
	if cmd.String("format") == "csv" {
		return view.WriteCSV(os.Stdout, rows, nil)
	}
	return view.WriteJSON(os.Stdout, rows)
}

// sweepWaiter counts SweepDone callbacks so the one-shot path can block
// until both sweeps finish.
type sweepWaiter struct{ done chan string }

func (w *sweepWaiter) SchoolEnriched(string, string) {}
func (w *sweepWaiter) CrimeEnriched(string, string)  {}
func (w *sweepWaiter) SweepDone(_, kind string)      { w.done <- kind }

func runSweepsToCompletion(ctx context.Context, cfg *config.Config, clients *httputil.Clients, sess *session.Session) error {
	store, err := storage.NewStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	waiter := &sweepWaiter{done: make(chan string, 2)}
	enricher := enrich.New(
		schools.NewClient(clients, cfg),
		crimegrade.NewClient(clients, cfg),
		store,
		waiter,
		cfg.Sweep.DelayMS,
	)
	enricher.Start(ctx, sess)

	for finished := 0; finished < 2; {
		select {
		case kind := <-waiter.done:
			log.Printf("Enrichment: %s sweep done", kind)
			finished++
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Minute):
			return fmt.Errorf("timed out waiting for sweeps")
		}
	}
	return nil
}

func criteriaFromFlags(cmd *cli.Command, kind models.SearchKind) models.SearchCriteria {
	get := func(name string) *float64 {
		if !cmd.IsSet(name) {
			return nil
		}
		v := cmd.Float(name)
		return &v
	}

	criteria := models.SearchCriteria{
		Kind:  kind,
		Beds:  models.Range{Min: get("min-beds"), Max: get("max-beds")},
		Baths: models.Range{Min: get("min-baths"), Max: get("max-baths")},
		Price: models.Range{Min: get("min-price"), Max: get("max-price")},
		Sqft:  models.Range{Min: get("min-sqft"), Max: get("max-sqft")},
		Year:  models.Range{Min: get("min-year"), Max: get("max-year")},
	}

	if types := cmd.String("types"); types != "" {
		criteria.HomeTypes = make(map[string]bool)
		for _, t := range strings.Split(types, ",") {
			if t = strings.TrimSpace(t); t != "" {
				criteria.HomeTypes[t] = true
			}
		}
	}
	return criteria
}

package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nbaodds/backfill/internal/backfill"
	"nbaodds/backfill/internal/cache"
	"nbaodds/backfill/internal/client"
	"nbaodds/backfill/internal/config"
	"nbaodds/backfill/internal/metrics"
	"nbaodds/backfill/internal/models"
	"nbaodds/backfill/internal/ratelimit"
	"nbaodds/backfill/internal/repository"
	"nbaodds/backfill/internal/schedule"
	"nbaodds/backfill/internal/scheduler"
	"nbaodds/backfill/internal/server"
	"nbaodds/backfill/internal/snapshot"
	"nbaodds/backfill/internal/storage"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	flags, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		os.Exit(2)
	}

	// Load configuration, flags override the environment
	cfg := config.MustLoad(flags.apply)

	// Setup logger
	setupLogger(cfg)

	log.Info().Msg("Starting NBA historical odds backfill")
	log.Info().
		Str("env", cfg.AppEnv).
		Str("log_level", cfg.LogLevel).
		Str("kind", cfg.Kind).
		Str("strategy", cfg.Strategy).
		Str("seasons", cfg.Seasons).
		Bool("dry_run", cfg.DryRun).
		Msg("Configuration loaded")

	kind, err := models.ParseResourceKind(cfg.Kind)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid resource kind")
	}
	strategy, err := snapshot.ParseStrategy(cfg.Strategy)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid snapshot strategy")
	}
	seasons, err := cfg.SeasonList()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid season list")
	}

	// Create context that listens for cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("Received shutdown signal, finishing current date...")
		cancel()
	}()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open destination store")
	}
	defer closeStore()

	var source schedule.Source = schedule.StoreSource{Store: store}
	if cfg.ScheduleDir != "" {
		source = schedule.FileSource{Dir: cfg.ScheduleDir}
	}

	r := &runner{
		cfg:      cfg,
		kind:     kind,
		strategy: strategy,
		seasons:  seasons,
		ingestor: schedule.NewIngestor(source),
	}

	// Initialize run ledger (optional)
	var (
		ledger backfill.Ledger
		deps   []server.Dependency
	)
	if cfg.DatabaseURL != "" {
		db, err := repository.NewDatabase(ctx, repository.Config{URL: cfg.DatabaseURL})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to database - continuing without ledger")
		} else {
			defer db.Close()
			if err := db.Ledger.EnsureSchema(ctx); err != nil {
				log.Warn().Err(err).Msg("Failed to prepare ledger table - continuing without ledger")
			} else {
				ledger = db.Ledger
				r.ledger = db.Ledger
				deps = append(deps, server.Dependency{
					Name:   "database",
					Health: db.Health,
					Stats:  db.PoolStats,
				})
				log.Info().Msg("Run ledger enabled")
			}
		}
	}

	if cfg.DryRun {
		r.dryRun(ctx)
		return
	}

	// Initialize Redis run lock (optional)
	if cfg.RedisAddr != "" {
		redisCache, err := cache.NewRedisCache(cache.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to Redis - continuing without run lock")
		} else {
			defer redisCache.Close()
			r.locks = redisCache
			log.Info().Msg("Redis run lock enabled")
		}
	}

	scrapeClient := client.NewClient(cfg.ServiceURL, cfg.HTTPTimeout)
	gate := ratelimit.NewGate(cfg.Delay(cfg.Kind), cfg.SkipFirstDelay)

	executor := backfill.NewExecutor(scrapeClient, store, gate, backfill.Options{
		Kind:     kind,
		Strategy: strategy,
		Sport:    cfg.Sport,
		Group:    cfg.ExportGroup,
		Markets:  cfg.MarketsFor(cfg.Kind),
		Regions:  cfg.Regions,
		Timeout:  cfg.HTTPTimeout,
	})
	if ledger != nil {
		executor.WithLedger(ledger)
	}
	r.executor = executor

	// Start status server
	var statusServer *server.Server
	if cfg.EnableMetrics {
		statusServer = server.New(cfg.MetricsPort, executor.Tracker(), deps...)
		statusServer.Start()
	}

	// Update system uptime metric
	startTime := time.Now()
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				metrics.SystemUptime.Set(time.Since(startTime).Seconds())
			case <-ctx.Done():
				return
			}
		}
	}()

	if cfg.Cron == "" {
		r.run(ctx)
	} else {
		r.run(ctx)

		sched := scheduler.NewScheduler(cfg.Cron, func(ctx context.Context) error {
			r.run(ctx)
			return nil
		})
		if err := sched.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to start scheduler")
		}

		// Keep running until context is cancelled
		<-ctx.Done()

		log.Info().Msg("Shutting down scheduler...")
		sched.Stop()
		log.Info().Int64("skipped_ticks", sched.Skipped()).Msg("Scheduled runs finished")
	}

	if statusServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := statusServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Status server shutdown failed")
		}
	}

	log.Info().Msg("Backfill shutdown complete")
}

// setupLogger configures the zerolog logger
func setupLogger(cfg *config.Config) {
	// Pretty console logging in development
	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	// Set log level
	level := zerolog.InfoLevel
	if cfg.LogLevel != "" {
		parsedLevel, err := zerolog.ParseLevel(cfg.LogLevel)
		if err == nil {
			level = parsedLevel
		}
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("level", level.String()).
		Msg("Logger initialized")
}

// openStore opens the configured destination store
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, func(), error) {
	if cfg.StorageBackend == config.StorageLocal {
		log.Info().Str("dir", cfg.LocalDir).Msg("Using local destination store")
		return storage.NewFSStore(cfg.LocalDir), func() {}, nil
	}

	gcs, err := storage.NewGCSStore(ctx, cfg.Bucket)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("bucket", cfg.Bucket).Msg("Using GCS destination store")
	return gcs, func() {
		if err := gcs.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close GCS client")
		}
	}, nil
}

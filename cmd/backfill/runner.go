package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nbaodds/backfill/internal/backfill"
	"nbaodds/backfill/internal/cache"
	"nbaodds/backfill/internal/config"
	"nbaodds/backfill/internal/models"
	"nbaodds/backfill/internal/schedule"
	"nbaodds/backfill/internal/snapshot"

	"github.com/rs/zerolog/log"
)

// failureStates are the ledger states --retry-failed revisits
var failureStates = []string{
	string(backfill.StateFailed),
	string(backfill.StateFailedShared),
	string(backfill.StateFailedNoSuccess),
}

// seasonExecutor runs one season's date list to completion or interrupt
type seasonExecutor interface {
	Run(ctx context.Context, items []models.DateWorkItem) backfill.Summary
}

// runLocker takes per-season run locks
type runLocker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (*cache.Lock, error)
}

// failedDates lists the dates the run ledger recorded in a given state
type failedDates interface {
	ListByState(ctx context.Context, season string, kind models.ResourceKind, states ...string) ([]string, error)
}

// runner drives one backfill pass across all configured seasons
type runner struct {
	cfg      *config.Config
	kind     models.ResourceKind
	strategy snapshot.Strategy
	seasons  []string
	ingestor *schedule.Ingestor
	executor seasonExecutor
	locks    runLocker
	ledger   failedDates
}

// run processes every season in order. Season-level problems are logged and the
// season skipped; an interrupt stops after the in-flight date.
func (r *runner) run(ctx context.Context) {
	for _, season := range r.seasons {
		if ctx.Err() != nil {
			log.Info().Str("season", season).Msg("Run interrupted, remaining seasons not started")
			return
		}

		items, err := r.workItems(ctx, season)
		if err != nil {
			log.Error().Err(err).Str("season", season).Msg("Skipping season")
			continue
		}
		if len(items) == 0 {
			log.Info().Str("season", season).Msg("No dates to process")
			continue
		}

		release, err := r.lock(ctx, season)
		if err != nil {
			log.Warn().Err(err).Str("season", season).Msg("Skipping season")
			continue
		}

		summary := r.executor.Run(ctx, items)
		release()

		if summary.Interrupted {
			log.Info().Str("season", season).Msg("Run interrupted, remaining seasons not started")
			return
		}
	}
}

// dryRun lists every season's work without scrape calls or store checks
func (r *runner) dryRun(ctx context.Context) {
	for _, season := range r.seasons {
		items, err := r.workItems(ctx, season)
		if err != nil {
			log.Error().Err(err).Str("season", season).Msg("Skipping season")
			continue
		}
		backfill.LogPlan(backfill.Plan(items, r.strategy, r.kind))
	}
}

// workItems loads, filters and aggregates one season's schedule
func (r *runner) workItems(ctx context.Context, season string) ([]models.DateWorkItem, error) {
	games, err := r.ingestor.Load(ctx, season)
	if err != nil {
		return nil, err
	}

	kept, excluded := schedule.Filter(games)
	for reason, n := range excluded {
		log.Debug().Str("season", season).Str("reason", reason).Int("games", n).Msg("Games excluded")
	}

	// with --retry-failed the limit applies to the failed dates, not the whole season
	limit := r.cfg.Limit
	if r.cfg.RetryFailed {
		limit = 0
	}

	agg := schedule.Aggregate(kept, season, r.cfg.Floor(r.cfg.Kind), limit)
	log.Info().
		Str("season", season).
		Int("games", len(kept)).
		Int("excluded", len(games)-len(kept)).
		Msgf("Found %d dates, filtered to %d, limited to %d", agg.Found, agg.AfterFloor, agg.Limited)

	if r.cfg.RetryFailed {
		return r.onlyFailed(ctx, season, agg.Items)
	}
	return agg.Items, nil
}

// onlyFailed keeps the items whose date the ledger last recorded as failed
func (r *runner) onlyFailed(ctx context.Context, season string, items []models.DateWorkItem) ([]models.DateWorkItem, error) {
	if r.ledger == nil {
		return nil, fmt.Errorf("retrying failed dates needs the run ledger")
	}

	dates, err := r.ledger.ListByState(ctx, season, r.kind, failureStates...)
	if err != nil {
		return nil, err
	}

	failed := make(map[string]bool, len(dates))
	for _, date := range dates {
		failed[date] = true
	}

	kept := make([]models.DateWorkItem, 0, len(dates))
	for _, item := range items {
		if failed[item.Date] {
			kept = append(kept, item)
		}
	}
	if r.cfg.Limit > 0 && len(kept) > r.cfg.Limit {
		kept = kept[:r.cfg.Limit]
	}

	log.Info().
		Str("season", season).
		Int("failed_dates", len(dates)).
		Int("retrying", len(kept)).
		Msg("Retrying dates the ledger lists as failed")

	return kept, nil
}

// lock takes the season's run lock when Redis is configured
func (r *runner) lock(ctx context.Context, season string) (func(), error) {
	if r.locks == nil {
		return func() {}, nil
	}

	lock, err := r.locks.AcquireLock(ctx, cache.LockKey(string(r.kind), season), r.cfg.LockTTL)
	if errors.Is(err, cache.ErrLockHeld) {
		return nil, fmt.Errorf("another backfill holds the lock: %w", err)
	}
	if err != nil {
		// lock service trouble should not stop the backfill
		log.Warn().Err(err).Str("season", season).Msg("Run lock unavailable, continuing unlocked")
		return func() {}, nil
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil {
			log.Warn().Err(err).Str("key", lock.Key()).Msg("Failed to release run lock")
		}
	}, nil
}

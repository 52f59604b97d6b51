package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// RunFunc performs one backfill pass
type RunFunc func(ctx context.Context) error

// Scheduler re-runs the backfill on a cron schedule. The backfill is resume-safe,
// so each pass only fetches dates that are still missing from the store.
// A pass that is still running when the next tick fires causes that tick to be skipped.
type Scheduler struct {
	spec    string
	run     RunFunc
	cron    *cron.Cron
	entry   cron.EntryID
	running atomic.Bool
	skipped atomic.Int64
}

// NewScheduler creates a new scheduler instance
func NewScheduler(spec string, run RunFunc) *Scheduler {
	return &Scheduler{
		spec: spec,
		run:  run,
		cron: cron.New(),
	}
}

// Start registers the job and starts the cron loop. Passes receive ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	log.Info().Msg("Scheduler starting...")

	entry, err := s.cron.AddFunc(s.spec, s.job(ctx))
	if err != nil {
		return fmt.Errorf("failed to schedule backfill %q: %w", s.spec, err)
	}
	s.entry = entry

	s.cron.Start()
	log.Info().
		Str("schedule", s.spec).
		Time("next_run", s.Next()).
		Msg("Backfill re-runs scheduled")

	return nil
}

// Stop stops the scheduler and waits for a running pass to return
func (s *Scheduler) Stop() {
	log.Info().Msg("Stopping scheduler...")

	if s.cron != nil {
		<-s.cron.Stop().Done()
	}

	log.Info().Msg("Scheduler stopped")
}

// Next returns the time of the next scheduled pass
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

// Skipped returns how many ticks were dropped because a pass was still running
func (s *Scheduler) Skipped() int64 {
	return s.skipped.Load()
}

// job wraps run so overlapping ticks are dropped and a stopped context ends the schedule
func (s *Scheduler) job(ctx context.Context) func() {
	return func() {
		if ctx.Err() != nil {
			return
		}
		if !s.running.CompareAndSwap(false, true) {
			s.skipped.Add(1)
			log.Warn().Msg("Previous backfill pass still running, skipping this tick")
			return
		}
		defer s.running.Store(false)

		start := time.Now()
		log.Info().Msg("Running scheduled backfill pass...")
		if err := s.run(ctx); err != nil {
			log.Error().Err(err).Msg("Scheduled backfill pass failed")
			return
		}
		log.Info().Dur("duration", time.Since(start)).Msg("Scheduled backfill pass complete")
	}
}

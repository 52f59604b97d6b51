// Package backfill walks date work items through the resume-safe fetch state machine.
package backfill

import (
	"context"
	"fmt"
	"time"

	"nbaodds/backfill/internal/client"
	"nbaodds/backfill/internal/events"
	"nbaodds/backfill/internal/metrics"
	"nbaodds/backfill/internal/models"
	"nbaodds/backfill/internal/ratelimit"
	"nbaodds/backfill/internal/snapshot"
	"nbaodds/backfill/internal/storage"

	"github.com/rs/zerolog/log"
)

// Scraper triggers one fetch-and-store operation on the scrape service
type Scraper interface {
	Scrape(ctx context.Context, req client.ScrapeRequest) (*client.ScrapeResponse, error)
}

// Ledger persists one bookkeeping row per finished date
type Ledger interface {
	RecordDate(ctx context.Context, entry models.LedgerEntry) error
}

// Options configures an executor run
type Options struct {
	Kind     models.ResourceKind
	Strategy snapshot.Strategy
	Sport    string
	Group    string
	Markets  string
	Regions  string
	// Timeout bounds every scrape call and store operation
	Timeout time.Duration
}

// Executor processes dates strictly in order, one game at a time
type Executor struct {
	scraper  Scraper
	store    storage.Store
	opts     Options
	tracker  *Tracker
	ledger   Ledger
	resolver *events.Resolver
	now      func() time.Time
}

// NewExecutor creates an executor. Every scrape call, including the events fetch,
// passes through gate first.
func NewExecutor(scraper Scraper, store storage.Store, gate *ratelimit.Gate, opts Options) *Executor {
	return &Executor{
		scraper: &gatedScraper{inner: scraper, gate: gate},
		store:   store,
		opts:    opts,
		tracker: NewTracker(nil),
		now:     time.Now,
	}
}

// WithLedger records every finished date in l
func (e *Executor) WithLedger(l Ledger) *Executor {
	e.ledger = l
	return e
}

// Tracker returns the progress tracker of the current or last run
func (e *Executor) Tracker() *Tracker {
	return e.tracker
}

// Run processes items in order and returns the summary. Cancellation of ctx is only
// observed between dates: the in-flight date finishes and is recorded first, and an
// interrupted run is not an error.
func (e *Executor) Run(ctx context.Context, items []models.DateWorkItem) Summary {
	e.resolver = e.newResolver()
	e.tracker.Start(e.opts.Kind, len(items))

	log.Info().
		Str("kind", string(e.opts.Kind)).
		Str("strategy", string(e.opts.Strategy)).
		Int("dates", len(items)).
		Msg("Starting backfill run")

	for _, item := range items {
		if ctx.Err() != nil {
			log.Info().Str("next_date", item.Date).Msg("Interrupt received, stopping before next date")
			e.tracker.Interrupt()
			break
		}

		result := e.ProcessDate(ctx, item)
		e.tracker.Record(result)
		e.recordLedger(ctx, result)
	}

	summary := e.tracker.Finish()

	status := "success"
	switch {
	case summary.Interrupted:
		status = "interrupted"
	case summary.Failed > 0:
		status = "partial"
	}
	metrics.RecordRun(string(e.opts.Kind), status)

	return summary
}

// ProcessDate runs one date through the state machine. Events fetched by earlier
// calls are reused until the next Run. Panics in inner stages are
// recovered here and recorded as a date failure.
func (e *Executor) ProcessDate(ctx context.Context, item models.DateWorkItem) (result DateResult) {
	started := e.now()
	result = DateResult{
		Date:    item.Date,
		Season:  item.Season,
		Kind:    e.opts.Kind,
		State:   StatePending,
		Started: started,
	}

	if e.resolver == nil {
		e.resolver = e.newResolver()
	}

	// in-flight calls outlive an interrupt; only the date loop observes cancellation
	ioCtx := context.WithoutCancel(ctx)

	defer func() {
		if r := recover(); r != nil {
			result.State = StateFailed
			result.Err = fmt.Errorf("panic while processing %s: %v", item.Date, r)
		}
		result.Duration = e.now().Sub(started)
		e.logDate(result)
	}()

	exists, err := e.exists(ioCtx, e.datePrefix(item.Date))
	if err != nil {
		result.State = StateFailed
		result.Err = fmt.Errorf("existence check: %w", err)
		return result
	}
	if exists {
		result.State = StateSkipped
		return result
	}

	games := item.CompletedGames()
	result.Snapshot, err = e.eventsSnapshot(item.Date, games)
	if err != nil {
		result.State = StateFailed
		result.Err = err
		return result
	}

	evs, err := e.resolver.Events(ioCtx, item.Date, result.Snapshot)
	if err != nil {
		result.State = StateFailedShared
		result.Err = err
		return result
	}

	for _, g := range games {
		result.Games = append(result.Games, e.processGame(ioCtx, item.Date, g, evs))
	}

	if result.Successes() > 0 {
		result.State = StateProcessed
	} else {
		result.State = StateFailedNoSuccess
		result.Err = fmt.Errorf("no successful fetch for %d games", len(games))
	}
	return result
}

func (e *Executor) processGame(ctx context.Context, date string, g models.GameRecord, evs []models.EventRecord) GameResult {
	gr := GameResult{GameID: g.GameID, Matchup: g.Matchup()}
	defer func() {
		metrics.RecordGame(string(e.opts.Kind), string(gr.Outcome))
	}()

	ev, ok := events.Match(g, evs)
	if !ok {
		gr.Outcome = GameNoEvent
		log.Warn().Str("date", date).Str("matchup", gr.Matchup).Msg("No event found for game, skipping")
		return gr
	}
	gr.EventID = ev.ID

	commence := g.CommenceTime
	if commence == "" {
		commence = ev.CommenceTime
	}

	snap, err := snapshot.Compute(commence, date, e.opts.Strategy, e.opts.Kind)
	if err != nil {
		gr.Outcome = GameNoSnapshot
		gr.Err = err
		log.Warn().Err(err).Str("date", date).Str("matchup", gr.Matchup).Msg("Cannot compute snapshot, skipping game")
		return gr
	}
	gr.Snapshot = snap

	if e.opts.Kind == models.ResourcePlayerProps {
		stored, err := e.exists(ctx, storage.PlayerPropsEventKeyPrefix(date, ev.ID))
		if err != nil {
			log.Warn().Err(err).Str("date", date).Str("event_id", ev.ID).Msg("Event existence check failed, fetching anyway")
		} else if stored {
			gr.Outcome = GameAlreadyStored
			log.Debug().Str("date", date).Str("event_id", ev.ID).Msg("Props already stored for event")
			return gr
		}
	}

	callCtx, cancel := e.withTimeout(ctx)
	defer cancel()

	_, err = e.scraper.Scrape(callCtx, client.ScrapeRequest{
		Scraper:           e.scraperName(),
		Sport:             e.opts.Sport,
		EventID:           ev.ID,
		GameDate:          date,
		SnapshotTimestamp: snap,
		Markets:           e.opts.Markets,
		Regions:           e.opts.Regions,
		Group:             e.opts.Group,
	})
	if err != nil {
		gr.Outcome = GameFetchFailed
		gr.Err = err
		log.Warn().Err(err).Str("date", date).Str("matchup", gr.Matchup).Str("event_id", ev.ID).Msg("Game fetch failed")
		return gr
	}

	gr.Outcome = GameCollected
	return gr
}

// eventsSnapshot picks the instant for the shared events fetch: the earliest game
// snapshot of the date, or the typical-start estimate when no game has a start time.
func (e *Executor) eventsSnapshot(date string, games []models.GameRecord) (string, error) {
	instants := make([]string, 0, len(games))
	for _, g := range games {
		if g.CommenceTime == "" {
			continue
		}
		if _, err := snapshot.ParseCommenceTime(g.CommenceTime); err != nil {
			continue
		}
		if s, err := snapshot.Compute(g.CommenceTime, date, e.opts.Strategy, e.opts.Kind); err == nil {
			instants = append(instants, s)
		}
	}
	if earliest, ok := snapshot.Earliest(instants); ok {
		return earliest, nil
	}
	return snapshot.DateSnapshot(date, e.opts.Strategy, e.opts.Kind)
}

func (e *Executor) newResolver() *events.Resolver {
	return events.NewResolver(e.scraper, e.store, events.Options{
		Sport:   e.opts.Sport,
		Group:   e.opts.Group,
		Timeout: e.opts.Timeout,
	})
}

func (e *Executor) exists(ctx context.Context, prefix string) (bool, error) {
	callCtx, cancel := e.withTimeout(ctx)
	defer cancel()

	exists, err := e.store.Exists(callCtx, prefix)
	if err != nil {
		metrics.RecordStoreOperation("exists", "error")
		return false, err
	}
	metrics.RecordStoreOperation("exists", "success")
	return exists, nil
}

func (e *Executor) recordLedger(ctx context.Context, result DateResult) {
	if e.ledger == nil {
		return
	}
	callCtx, cancel := e.withTimeout(context.WithoutCancel(ctx))
	defer cancel()

	if err := e.ledger.RecordDate(callCtx, result.LedgerEntry()); err != nil {
		log.Warn().Err(err).Str("date", result.Date).Msg("Failed to record date in ledger")
	}
}

func (e *Executor) datePrefix(date string) string {
	if e.opts.Kind == models.ResourcePlayerProps {
		return storage.PlayerPropsKeyPrefix(date)
	}
	return storage.GameLinesKeyPrefix(date)
}

func (e *Executor) scraperName() string {
	if e.opts.Kind == models.ResourcePlayerProps {
		return client.ScraperPlayerProps
	}
	return client.ScraperGameLines
}

func (e *Executor) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.opts.Timeout)
}

func (e *Executor) logDate(result DateResult) {
	event := log.Info()
	if result.State.IsFailure() {
		event = log.Warn().AnErr("error", result.Err)
	}
	event.
		Str("date", result.Date).
		Str("season", result.Season).
		Str("state", string(result.State)).
		Int("games", len(result.Games)).
		Int("collected", result.Successes()).
		Dur("duration", result.Duration).
		Msg("Date finished")
}

// gatedScraper holds every call behind the rate gate and reports its completion,
// so the configured pause follows each call however long the call itself took
type gatedScraper struct {
	inner Scraper
	gate  *ratelimit.Gate
}

func (g *gatedScraper) Scrape(ctx context.Context, req client.ScrapeRequest) (*client.ScrapeResponse, error) {
	if g.gate == nil {
		return g.inner.Scrape(ctx, req)
	}
	if err := g.gate.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate gate: %w", err)
	}
	defer g.gate.Done()
	return g.inner.Scrape(ctx, req)
}

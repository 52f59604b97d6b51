// Package events resolves schedule games to upstream wagering-market event ids.
package events

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"nbaodds/backfill/internal/client"
	"nbaodds/backfill/internal/metrics"
	"nbaodds/backfill/internal/models"
	"nbaodds/backfill/internal/storage"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Scraper triggers a fetch-and-store operation on the scrape service
type Scraper interface {
	Scrape(ctx context.Context, req client.ScrapeRequest) (*client.ScrapeResponse, error)
}

// Options configures the events request
type Options struct {
	Sport   string
	Group   string
	Timeout time.Duration
}

type cachedEvents struct {
	events []models.EventRecord
	err    error
}

// Resolver fetches each date's events exactly once per run and matches games against them
type Resolver struct {
	scraper Scraper
	store   storage.Store
	opts    Options

	flight singleflight.Group
	cache  sync.Map // date -> cachedEvents
}

// NewResolver creates a resolver with an empty cache
func NewResolver(scraper Scraper, store storage.Store, opts Options) *Resolver {
	return &Resolver{
		scraper: scraper,
		store:   store,
		opts:    opts,
	}
}

// Events returns the events stored for date, triggering the shared fetch on first use.
// A failed fetch is remembered and returned for the rest of the run.
func (r *Resolver) Events(ctx context.Context, date, snapshotTimestamp string) ([]models.EventRecord, error) {
	if cached, ok := r.cache.Load(date); ok {
		metrics.RecordCacheHit()
		c := cached.(cachedEvents)
		return c.events, c.err
	}

	v, _, _ := r.flight.Do(date, func() (interface{}, error) {
		if cached, ok := r.cache.Load(date); ok {
			return cached.(cachedEvents), nil
		}
		metrics.RecordCacheMiss()

		events, err := r.fetch(ctx, date, snapshotTimestamp)
		c := cachedEvents{events: events, err: err}
		r.cache.Store(date, c)
		return c, nil
	})

	c := v.(cachedEvents)
	return c.events, c.err
}

func (r *Resolver) fetch(ctx context.Context, date, snapshotTimestamp string) ([]models.EventRecord, error) {
	callCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	resp, err := r.scraper.Scrape(callCtx, client.ScrapeRequest{
		Scraper:           client.ScraperEvents,
		Sport:             r.opts.Sport,
		GameDate:          date,
		SnapshotTimestamp: snapshotTimestamp,
		Group:             r.opts.Group,
	})
	if err != nil {
		return nil, fmt.Errorf("events fetch for %s: %w", date, err)
	}

	readCtx, readCancel := r.withTimeout(ctx)
	defer readCancel()

	data, obj, err := storage.ReadLatest(readCtx, r.store, storage.EventsKeyPrefix(date))
	if err != nil {
		metrics.RecordStoreOperation("read_latest", "error")
		return nil, fmt.Errorf("events read-back for %s: %w", date, err)
	}
	metrics.RecordStoreOperation("read_latest", "success")

	events, err := models.ParseEvents(data)
	if err != nil {
		return nil, fmt.Errorf("events payload %s: %w", obj.Key, err)
	}

	log.Info().
		Str("date", date).
		Str("snapshot", snapshotTimestamp).
		Str("key", obj.Key).
		Str("message", resp.Message).
		Int("events", len(events)).
		Msg("Events fetched")

	return events, nil
}

func (r *Resolver) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.opts.Timeout)
}

// Match finds the event for a game. Exact full-name matches on both sides win over
// case-insensitive team code containment; within each rule the first event in order wins.
func Match(game models.GameRecord, events []models.EventRecord) (models.EventRecord, bool) {
	homeName, homeOK := models.TeamName(game.HomeTeam)
	awayName, awayOK := models.TeamName(game.AwayTeam)

	if homeOK && awayOK {
		for _, ev := range events {
			if ev.HomeTeam == homeName && ev.AwayTeam == awayName {
				return ev, true
			}
		}
	}

	home := strings.ToLower(game.HomeTeam)
	away := strings.ToLower(game.AwayTeam)
	if home == "" || away == "" {
		return models.EventRecord{}, false
	}
	for _, ev := range events {
		if strings.Contains(strings.ToLower(ev.HomeTeam), home) && strings.Contains(strings.ToLower(ev.AwayTeam), away) {
			return ev, true
		}
	}

	return models.EventRecord{}, false
}

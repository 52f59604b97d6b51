package backfill

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"nbaodds/backfill/internal/client"
	"nbaodds/backfill/internal/models"
	"nbaodds/backfill/internal/ratelimit"
	"nbaodds/backfill/internal/snapshot"
	"nbaodds/backfill/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDate = "2024-04-10"

const testEvents = `{"timestamp": "2024-04-10T19:30:00Z", "data": [
	{"id": "evt-bos-mil", "commence_time": "2024-04-10T23:30:00Z", "home_team": "Milwaukee Bucks", "away_team": "Boston Celtics"},
	{"id": "evt-chi-nyk", "commence_time": "2024-04-10T23:30:00Z", "home_team": "New York Knicks", "away_team": "Chicago Bulls"},
	{"id": "evt-lal-den", "commence_time": "2024-04-11T02:00:00Z", "home_team": "Denver Nuggets", "away_team": "Los Angeles Lakers"}
]}`

// fakeService stands in for the scrape service: events calls export the canned
// payload into the store, per-game calls succeed unless their event is listed in fail.
type fakeService struct {
	mu        sync.Mutex
	store     *storage.FSStore
	eventsErr error
	payload   string
	fail      map[string]bool
	onGame    func(req client.ScrapeRequest)
	calls     []client.ScrapeRequest
}

func (f *fakeService) Scrape(ctx context.Context, req client.ScrapeRequest) (*client.ScrapeResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	if req.Scraper == client.ScraperEvents {
		if f.eventsErr != nil {
			return nil, f.eventsErr
		}
		payload := f.payload
		if payload == "" {
			payload = testEvents
		}
		key := storage.EventsKeyPrefix(req.GameDate) + "events.json"
		if err := f.store.Write(key, []byte(payload)); err != nil {
			return nil, err
		}
		return &client.ScrapeResponse{Message: "events stored"}, nil
	}

	if f.onGame != nil {
		f.onGame(req)
	}
	if f.fail[req.EventID] {
		return nil, client.ErrScrapeFailed
	}
	return &client.ScrapeResponse{Message: "stored"}, nil
}

func (f *fakeService) count(scraper string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Scraper == scraper {
			n++
		}
	}
	return n
}

func (f *fakeService) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type memLedger struct {
	entries []models.LedgerEntry
}

func (l *memLedger) RecordDate(ctx context.Context, entry models.LedgerEntry) error {
	l.entries = append(l.entries, entry)
	return nil
}

func completedGame(id, away, home, commence string) models.GameRecord {
	return models.GameRecord{
		Date:         testDate,
		GameID:       id,
		AwayTeam:     away,
		HomeTeam:     home,
		Completed:    true,
		CommenceTime: commence,
	}
}

func testItem(date string) models.DateWorkItem {
	return models.DateWorkItem{
		Date:   date,
		Season: "2023-24",
		Games: []models.GameRecord{
			completedGame("0022301171", "BOS", "MIL", "2024-04-10T23:30:00Z"),
			completedGame("0022301172", "CHI", "NYK", "2024-04-10T23:30:00Z"),
			completedGame("0022301173", "LAL", "DEN", "2024-04-11T02:00:00Z"),
		},
	}
}

func newTestExecutor(t *testing.T, kind models.ResourceKind) (*Executor, *fakeService, *storage.FSStore) {
	store := storage.NewFSStore(t.TempDir())
	svc := &fakeService{store: store, fail: map[string]bool{}}
	exec := NewExecutor(svc, store, ratelimit.NewGate(0, true), Options{
		Kind:     kind,
		Strategy: snapshot.Conservative,
		Sport:    "basketball_nba",
		Group:    "prod",
		Timeout:  5 * time.Second,
	})
	return exec, svc, store
}

func TestExecutor_ProcessesDateWithOneFailedGame(t *testing.T) {
	exec, svc, _ := newTestExecutor(t, models.ResourceGameLines)
	svc.fail["evt-lal-den"] = true
	ledger := &memLedger{}
	exec.WithLedger(ledger)

	summary := exec.Run(context.Background(), []models.DateWorkItem{testItem(testDate)})

	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 2, summary.GamesCollected)
	assert.Equal(t, 1, summary.GamesNotCollected)
	assert.Equal(t, 1.0, summary.SuccessRate)
	assert.False(t, summary.Interrupted)

	assert.Equal(t, 1, svc.count(client.ScraperEvents))
	assert.Equal(t, 3, svc.count(client.ScraperGameLines))

	require.Len(t, ledger.entries, 1)
	assert.Equal(t, string(StateProcessed), ledger.entries[0].State)
	assert.Equal(t, 2, ledger.entries[0].GamesCollected)
	assert.Equal(t, 1, ledger.entries[0].GamesMissed)
}

func TestExecutor_RequestsCarrySnapshotsAndEventIDs(t *testing.T) {
	exec, svc, _ := newTestExecutor(t, models.ResourceGameLines)

	exec.Run(context.Background(), []models.DateWorkItem{testItem(testDate)})

	require.Len(t, svc.calls, 4)
	events := svc.calls[0]
	assert.Equal(t, client.ScraperEvents, events.Scraper)
	assert.Empty(t, events.EventID)
	// earliest game snapshot of the date: 23:30 - 4h
	assert.Equal(t, "2024-04-10T19:30:00Z", events.SnapshotTimestamp)

	first := svc.calls[1]
	assert.Equal(t, "evt-bos-mil", first.EventID)
	assert.Equal(t, testDate, first.GameDate)
	assert.Equal(t, "2024-04-10T19:30:00Z", first.SnapshotTimestamp)
	assert.Equal(t, "prod", first.Group)

	late := svc.calls[3]
	assert.Equal(t, "evt-lal-den", late.EventID)
	assert.Equal(t, "2024-04-10T22:00:00Z", late.SnapshotTimestamp)
}

func TestExecutor_SkipsStoredDateWithoutCalls(t *testing.T) {
	exec, svc, store := newTestExecutor(t, models.ResourceGameLines)
	require.NoError(t, store.Write(storage.GameLinesKeyPrefix(testDate)+"evt-bos-mil/lines.json", []byte(`{}`)))

	summary := exec.Run(context.Background(), []models.DateWorkItem{testItem(testDate)})

	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.Processed)
	assert.Equal(t, 0, svc.total())
}

func TestExecutor_SharedFetchFailureFailsWholeDate(t *testing.T) {
	exec, svc, _ := newTestExecutor(t, models.ResourceGameLines)
	svc.eventsErr = errors.New("events endpoint down")

	summary := exec.Run(context.Background(), []models.DateWorkItem{testItem(testDate)})

	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.FailedShared)
	assert.Equal(t, 0, summary.FailedNoSuccess)
	assert.Equal(t, []string{testDate}, summary.FailedDates)
	assert.Equal(t, 1, svc.count(client.ScraperEvents))
	assert.Equal(t, 0, svc.count(client.ScraperGameLines))
}

func TestExecutor_NoSuccessIsDistinctFailure(t *testing.T) {
	exec, svc, _ := newTestExecutor(t, models.ResourceGameLines)
	svc.fail["evt-bos-mil"] = true
	svc.fail["evt-chi-nyk"] = true
	svc.fail["evt-lal-den"] = true

	result := exec.runOne(t, testItem(testDate))

	assert.Equal(t, StateFailedNoSuccess, result.State)
	assert.Len(t, result.Games, 3)
	assert.Equal(t, 0, result.Successes())
	assert.Error(t, result.Err)
}

func TestExecutor_UnmatchedGameSkippedOnly(t *testing.T) {
	exec, svc, _ := newTestExecutor(t, models.ResourceGameLines)
	item := testItem(testDate)
	item.Games = append(item.Games, completedGame("0022301174", "PHX", "SAC", "2024-04-11T02:00:00Z"))

	result := exec.runOne(t, item)

	assert.Equal(t, StateProcessed, result.State)
	require.Len(t, result.Games, 4)
	assert.Equal(t, GameNoEvent, result.Games[3].Outcome)
	assert.Equal(t, 3, svc.count(client.ScraperGameLines))
}

func TestExecutor_PlayerProps(t *testing.T) {
	exec, svc, _ := newTestExecutor(t, models.ResourcePlayerProps)
	item := testItem(testDate)
	// no schedule start time: the matched event's commence time is used
	item.Games[0].CommenceTime = ""

	result := exec.runOne(t, item)

	assert.Equal(t, StateProcessed, result.State)
	assert.Equal(t, 3, svc.count(client.ScraperPlayerProps))
	assert.Equal(t, 0, svc.count(client.ScraperGameLines))
	// 23:30 - 2h
	assert.Equal(t, "2024-04-10T21:30:00Z", result.Games[0].Snapshot)
	assert.Equal(t, GameCollected, result.Games[0].Outcome)
}

func TestExecutor_PlayerPropsRequireCommenceTime(t *testing.T) {
	exec, svc, _ := newTestExecutor(t, models.ResourcePlayerProps)
	item := models.DateWorkItem{
		Date:   testDate,
		Season: "2023-24",
		Games:  []models.GameRecord{completedGame("0022301174", "PHX", "SAC", "")},
	}
	svc.payload = `[{"id": "evt-phx-sac", "home_team": "Sacramento Kings", "away_team": "Phoenix Suns"}]`
	svc.onGame = func(client.ScrapeRequest) { t.Error("no per-game call expected") }

	result := exec.runOne(t, item)

	require.Len(t, result.Games, 1)
	assert.Equal(t, GameNoSnapshot, result.Games[0].Outcome)
	assert.ErrorIs(t, result.Games[0].Err, snapshot.ErrCommenceTimeRequired)
	assert.Equal(t, StateFailedNoSuccess, result.State)
}

func TestExecutor_InterruptFinishesInFlightDate(t *testing.T) {
	exec, svc, _ := newTestExecutor(t, models.ResourceGameLines)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.onGame = func(client.ScrapeRequest) { cancel() }

	summary := exec.Run(ctx, []models.DateWorkItem{testItem(testDate), testItem("2024-04-11")})

	assert.True(t, summary.Interrupted)
	assert.Equal(t, 1, summary.Done)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 3, summary.GamesCollected, "Games already in flight are not cut short")
	assert.Equal(t, 1, svc.count(client.ScraperEvents))
}

func TestExecutor_CancelledBeforeStart(t *testing.T) {
	exec, svc, _ := newTestExecutor(t, models.ResourceGameLines)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary := exec.Run(ctx, []models.DateWorkItem{testItem(testDate)})

	assert.True(t, summary.Interrupted)
	assert.Equal(t, 0, summary.Done)
	assert.Equal(t, 0, svc.total())
}

func TestExecutor_PanicRecordedAsDateFailure(t *testing.T) {
	exec, svc, _ := newTestExecutor(t, models.ResourceGameLines)
	svc.onGame = func(req client.ScrapeRequest) {
		if req.GameDate == testDate {
			panic("boom")
		}
	}

	summary := exec.Run(context.Background(), []models.DateWorkItem{testItem(testDate), testItem("2024-04-11")})

	assert.Equal(t, 2, summary.Done)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, []string{testDate}, summary.FailedDates)
}

func TestExecutor_GateSpacesEveryCall(t *testing.T) {
	store := storage.NewFSStore(t.TempDir())
	svc := &fakeService{store: store, fail: map[string]bool{}}

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	var sleeps []time.Duration
	gate := ratelimit.NewGate(time.Second, true,
		ratelimit.WithClock(func() time.Time { return now }),
		ratelimit.WithSleep(func(ctx context.Context, d time.Duration) error {
			sleeps = append(sleeps, d)
			now = now.Add(d)
			return nil
		}),
	)
	exec := NewExecutor(svc, store, gate, Options{Kind: models.ResourceGameLines, Strategy: snapshot.Pregame})

	exec.Run(context.Background(), []models.DateWorkItem{testItem(testDate)})

	assert.Equal(t, 4, svc.total())
	// the first call of the run goes straight through, the other three wait a full interval
	assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second}, sleeps)
}

func TestExecutor_GatePausesAfterSlowCalls(t *testing.T) {
	store := storage.NewFSStore(t.TempDir())
	svc := &fakeService{store: store, fail: map[string]bool{}}

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	var sleeps []time.Duration
	gate := ratelimit.NewGate(time.Second, true,
		ratelimit.WithClock(func() time.Time { return now }),
		ratelimit.WithSleep(func(ctx context.Context, d time.Duration) error {
			sleeps = append(sleeps, d)
			now = now.Add(d)
			return nil
		}),
	)
	// every per-game scrape takes longer than the interval
	svc.onGame = func(client.ScrapeRequest) { now = now.Add(3 * time.Second) }
	exec := NewExecutor(svc, store, gate, Options{Kind: models.ResourceGameLines, Strategy: snapshot.Pregame})

	exec.Run(context.Background(), []models.DateWorkItem{testItem(testDate)})

	assert.Equal(t, 4, svc.total())
	assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second}, sleeps)
}

func (e *Executor) runOne(t *testing.T, item models.DateWorkItem) DateResult {
	t.Helper()
	return e.ProcessDate(context.Background(), item)
}

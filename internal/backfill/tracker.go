package backfill

import (
	"sync"
	"time"

	"nbaodds/backfill/internal/metrics"
	"nbaodds/backfill/internal/models"

	"github.com/rs/zerolog/log"
)

const (
	progressEvery  = 10
	maxFailedDates = 10
)

// Summary is the tracker's view of a run, served while running and logged at the end
type Summary struct {
	Kind              models.ResourceKind `json:"kind"`
	Total             int                 `json:"total"`
	Done              int                 `json:"done"`
	Processed         int                 `json:"processed"`
	Skipped           int                 `json:"skipped"`
	Failed            int                 `json:"failed"`
	FailedShared      int                 `json:"failed_shared"`
	FailedNoSuccess   int                 `json:"failed_no_success"`
	GamesCollected    int                 `json:"games_collected"`
	GamesNotCollected int                 `json:"games_not_collected"`
	SuccessRate       float64             `json:"success_rate"`
	PercentComplete   float64             `json:"percent_complete"`
	ETAHours          float64             `json:"eta_hours"`
	DatesPerMinute    float64             `json:"dates_per_minute"`
	Duration          time.Duration       `json:"duration"`
	FailedDates       []string            `json:"failed_dates"`
	Running           bool                `json:"running"`
	Interrupted       bool                `json:"interrupted"`
}

// Tracker counts date outcomes, emits periodic progress and builds the final summary.
// It is safe for concurrent use so the status server can read it mid-run.
type Tracker struct {
	mu  sync.Mutex
	now func() time.Time

	summary Summary
	started time.Time
}

// NewTracker creates an idle tracker. A nil clock means time.Now.
func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{now: now}
}

// Start resets the counters for a run of total dates
func (t *Tracker) Start(kind models.ResourceKind, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.started = t.now()
	t.summary = Summary{Kind: kind, Total: total, Running: true, FailedDates: []string{}}
	metrics.UpdateRunProgress(total, 0)
}

// Record adds one finished date
func (t *Tracker) Record(result DateResult) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := &t.summary
	s.Done++

	switch result.State {
	case StateProcessed:
		s.Processed++
	case StateSkipped:
		s.Skipped++
	case StateFailedShared:
		s.FailedShared++
	case StateFailedNoSuccess:
		s.FailedNoSuccess++
	}
	if result.State.IsFailure() {
		s.Failed++
		if len(s.FailedDates) < maxFailedDates {
			s.FailedDates = append(s.FailedDates, result.Date)
		}
	}

	s.GamesCollected += result.Successes()
	s.GamesNotCollected += result.Misses()

	metrics.RecordDate(string(result.Kind), string(result.State), result.Duration.Seconds())
	metrics.UpdateRunProgress(s.Total, s.Done)

	// every finished date counts toward the cadence, skipped and failed ones included
	if s.Done%progressEvery == 0 {
		t.refresh()
		log.Info().
			Str("kind", string(s.Kind)).
			Float64("percent", round(s.PercentComplete, 1)).
			Int("done", s.Done).
			Int("total", s.Total).
			Float64("eta_hours", round(s.ETAHours, 2)).
			Float64("dates_per_minute", round(s.DatesPerMinute, 2)).
			Msg("Backfill progress")
	}
}

// Interrupt marks the run as stopped by the operator
func (t *Tracker) Interrupt() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.summary.Interrupted = true
}

// Finish closes the run and logs the summary
func (t *Tracker) Finish() Summary {
	t.mu.Lock()
	t.summary.Running = false
	t.refresh()
	s := t.copySummary()
	t.mu.Unlock()

	event := log.Info()
	if s.Failed > 0 {
		event = log.Warn()
	}
	event.
		Str("kind", string(s.Kind)).
		Int("total", s.Total).
		Int("processed", s.Processed).
		Int("skipped", s.Skipped).
		Int("failed", s.Failed).
		Int("failed_shared", s.FailedShared).
		Int("failed_no_success", s.FailedNoSuccess).
		Int("games_collected", s.GamesCollected).
		Int("games_not_collected", s.GamesNotCollected).
		Float64("success_rate", round(s.SuccessRate, 3)).
		Dur("duration", s.Duration).
		Strs("failed_dates", s.FailedDates).
		Bool("interrupted", s.Interrupted).
		Msg("Backfill summary")

	return s
}

// Snapshot returns the current counters
func (t *Tracker) Snapshot() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.summary.Running {
		t.refresh()
	}
	return t.copySummary()
}

// refresh recomputes the derived fields; callers hold mu
func (t *Tracker) refresh() {
	s := &t.summary
	elapsed := t.now().Sub(t.started)
	s.Duration = elapsed

	s.SuccessRate = 0
	s.PercentComplete = 0
	if s.Total > 0 {
		s.SuccessRate = float64(s.Processed) / float64(s.Total)
		s.PercentComplete = float64(s.Done) / float64(s.Total) * 100
	}

	s.ETAHours = 0
	s.DatesPerMinute = 0
	if s.Done > 0 {
		perDate := elapsed / time.Duration(s.Done)
		s.ETAHours = (perDate * time.Duration(s.Total-s.Done)).Hours()
		if elapsed > 0 {
			s.DatesPerMinute = float64(s.Done) / elapsed.Minutes()
		}
	}
}

func (t *Tracker) copySummary() Summary {
	s := t.summary
	s.FailedDates = append([]string{}, t.summary.FailedDates...)
	return s
}

func round(v float64, places int) float64 {
	p := 1.0
	for i := 0; i < places; i++ {
		p *= 10
	}
	return float64(int64(v*p+0.5)) / p
}

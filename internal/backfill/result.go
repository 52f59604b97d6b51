package backfill

import (
	"time"

	"nbaodds/backfill/internal/models"
)

// DateState is where a date ended up after one pass of the executor
type DateState string

const (
	StatePending   DateState = "pending"
	StateSkipped   DateState = "skipped"
	StateProcessed DateState = "processed"
	// StateFailed covers date-level errors outside the fetch steps: a failing
	// existence check or a recovered panic.
	StateFailed DateState = "failed"
	// StateFailedShared means the events fetch failed and no game was attempted
	StateFailedShared DateState = "failed_shared"
	// StateFailedNoSuccess means the events fetch worked but every game fetch missed
	StateFailedNoSuccess DateState = "failed_no_success"
)

// IsFailure reports whether the state counts toward failed dates
func (s DateState) IsFailure() bool {
	return s == StateFailed || s == StateFailedShared || s == StateFailedNoSuccess
}

// GameOutcome is the result of one per-game fetch attempt
type GameOutcome string

const (
	GameCollected     GameOutcome = "collected"
	GameAlreadyStored GameOutcome = "already_stored"
	GameNoEvent       GameOutcome = "no_event"
	GameNoSnapshot    GameOutcome = "no_snapshot"
	GameFetchFailed   GameOutcome = "fetch_failed"
)

// GameResult describes what happened to one game of a date
type GameResult struct {
	GameID   string
	Matchup  string
	EventID  string
	Snapshot string
	Outcome  GameOutcome
	Err      error
}

// Succeeded reports whether the game's resource is now in the destination store
func (g GameResult) Succeeded() bool {
	return g.Outcome == GameCollected || g.Outcome == GameAlreadyStored
}

// DateResult is the explicit outcome of processing one date
type DateResult struct {
	Date     string
	Season   string
	Kind     models.ResourceKind
	State    DateState
	Snapshot string // instant used for the events fetch
	Games    []GameResult
	Err      error
	Started  time.Time
	Duration time.Duration
}

// Successes counts games whose resource was collected or already stored
func (d DateResult) Successes() int {
	n := 0
	for _, g := range d.Games {
		if g.Succeeded() {
			n++
		}
	}
	return n
}

// Misses counts attempted games that were not collected
func (d DateResult) Misses() int {
	return len(d.Games) - d.Successes()
}

// LedgerEntry converts the result to its bookkeeping row
func (d DateResult) LedgerEntry() models.LedgerEntry {
	entry := models.LedgerEntry{
		Season:          d.Season,
		Kind:            d.Kind,
		Date:            d.Date,
		State:           string(d.State),
		GamesCollected:  d.Successes(),
		GamesMissed:     d.Misses(),
		StartedAt:       d.Started,
		FinishedAt:      d.Started.Add(d.Duration),
		DurationSeconds: d.Duration.Seconds(),
	}
	if d.Err != nil {
		entry.Detail = d.Err.Error()
	}
	return entry
}

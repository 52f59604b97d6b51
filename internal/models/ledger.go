package models

import "time"

// LedgerEntry is the bookkeeping row kept for one (season, kind, date) of a backfill.
// It records what the run did, never the scraped market data itself.
type LedgerEntry struct {
	Season          string       `json:"season" db:"season"`
	Kind            ResourceKind `json:"kind" db:"kind"`
	Date            string       `json:"date" db:"game_date"`
	State           string       `json:"state" db:"state"`
	GamesCollected  int          `json:"games_collected" db:"games_collected"`
	GamesMissed     int          `json:"games_missed" db:"games_missed"`
	Detail          string       `json:"detail,omitempty" db:"detail"`
	StartedAt       time.Time    `json:"started_at" db:"started_at"`
	FinishedAt      time.Time    `json:"finished_at" db:"finished_at"`
	DurationSeconds float64      `json:"duration_seconds" db:"duration_seconds"`
}

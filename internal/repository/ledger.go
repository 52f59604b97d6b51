package repository

import (
	"context"
	"fmt"

	"nbaodds/backfill/internal/models"
)

const ledgerSchema = `
	CREATE TABLE IF NOT EXISTS backfill_dates (
		season           TEXT NOT NULL,
		kind             TEXT NOT NULL,
		game_date        DATE NOT NULL,
		state            TEXT NOT NULL,
		games_collected  INTEGER NOT NULL DEFAULT 0,
		games_missed     INTEGER NOT NULL DEFAULT 0,
		detail           TEXT NOT NULL DEFAULT '',
		started_at       TIMESTAMPTZ NOT NULL,
		finished_at      TIMESTAMPTZ NOT NULL,
		duration_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
		attempts         INTEGER NOT NULL DEFAULT 1,
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (season, kind, game_date)
	)
`

// LedgerRepository keeps one bookkeeping row per backfilled date
type LedgerRepository struct {
	db *Database
}

// EnsureSchema creates the ledger table if it does not exist
func (r *LedgerRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Pool.Exec(ctx, ledgerSchema); err != nil {
		return fmt.Errorf("failed to create ledger table: %w", err)
	}
	return nil
}

// RecordDate inserts or updates the row for a date, counting attempts
func (r *LedgerRepository) RecordDate(ctx context.Context, entry models.LedgerEntry) error {
	query := `
		INSERT INTO backfill_dates (
			season, kind, game_date, state, games_collected, games_missed,
			detail, started_at, finished_at, duration_seconds
		) VALUES ($1, $2, $3::date, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (season, kind, game_date) DO UPDATE SET
			state = EXCLUDED.state,
			games_collected = EXCLUDED.games_collected,
			games_missed = EXCLUDED.games_missed,
			detail = EXCLUDED.detail,
			started_at = EXCLUDED.started_at,
			finished_at = EXCLUDED.finished_at,
			duration_seconds = EXCLUDED.duration_seconds,
			attempts = backfill_dates.attempts + 1,
			updated_at = NOW()
	`

	_, err := r.db.Pool.Exec(ctx, query,
		entry.Season, string(entry.Kind), entry.Date, entry.State,
		entry.GamesCollected, entry.GamesMissed,
		entry.Detail, entry.StartedAt, entry.FinishedAt, entry.DurationSeconds,
	)
	if err != nil {
		return fmt.Errorf("failed to record ledger entry for %s: %w", entry.Date, err)
	}

	return nil
}

// ListByState returns the dates of a season and kind whose last attempt ended in
// one of states, oldest first
func (r *LedgerRepository) ListByState(ctx context.Context, season string, kind models.ResourceKind, states ...string) ([]string, error) {
	query := `
		SELECT to_char(game_date, 'YYYY-MM-DD')
		FROM backfill_dates
		WHERE season = $1 AND kind = $2 AND state = ANY($3)
		ORDER BY game_date ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, season, string(kind), states)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger dates: %w", err)
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var date string
		if err := rows.Scan(&date); err != nil {
			return nil, fmt.Errorf("failed to scan ledger date: %w", err)
		}
		dates = append(dates, date)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger dates: %w", err)
	}

	return dates, nil
}

package backfill

import (
	"nbaodds/backfill/internal/models"
	"nbaodds/backfill/internal/snapshot"

	"github.com/rs/zerolog/log"
)

// PlannedGame is one game as a dry run would request it
type PlannedGame struct {
	GameID   string `json:"game_id"`
	Matchup  string `json:"matchup"`
	Snapshot string `json:"snapshot,omitempty"`
	Note     string `json:"note,omitempty"`
}

// PlannedDate is one date of a dry run
type PlannedDate struct {
	Date   string        `json:"date"`
	Season string        `json:"season"`
	Games  []PlannedGame `json:"games"`
}

// Plan lists the work a run would do without touching the scrape service or the store.
// Snapshots come from schedule start times only; games that need the event's start
// time are noted instead.
func Plan(items []models.DateWorkItem, strategy snapshot.Strategy, kind models.ResourceKind) []PlannedDate {
	planned := make([]PlannedDate, 0, len(items))
	for _, item := range items {
		pd := PlannedDate{Date: item.Date, Season: item.Season}
		for _, g := range item.CompletedGames() {
			pg := PlannedGame{GameID: g.GameID, Matchup: g.Matchup()}
			snap, err := snapshot.Compute(g.CommenceTime, item.Date, strategy, kind)
			if err != nil {
				pg.Note = err.Error()
			} else {
				pg.Snapshot = snap
			}
			pd.Games = append(pd.Games, pg)
		}
		planned = append(planned, pd)
	}
	return planned
}

// LogPlan writes a dry-run listing, one line per game
func LogPlan(planned []PlannedDate) {
	games := 0
	for _, pd := range planned {
		for _, pg := range pd.Games {
			event := log.Info().
				Str("date", pd.Date).
				Str("season", pd.Season).
				Str("game_id", pg.GameID).
				Str("matchup", pg.Matchup)
			if pg.Snapshot != "" {
				event = event.Str("snapshot", pg.Snapshot)
			}
			if pg.Note != "" {
				event = event.Str("note", pg.Note)
			}
			event.Msg("[DRY RUN] Would fetch")
			games++
		}
	}
	log.Info().
		Int("dates", len(planned)).
		Int("games", games).
		Msg("[DRY RUN] Complete, no scrape calls made")
}

package models

import "fmt"

// GameStatusFinal is the schedule status code for a completed game
const GameStatusFinal = 3

// GameType is the classifier's label for a scheduled game
type GameType string

const (
	GameTypeRegularSeason  GameType = "regular_season"
	GameTypePlayoff        GameType = "playoff"
	GameTypePlayIn         GameType = "play_in"
	GameTypeSpecialRegular GameType = "special_regular"
	GameTypeAllStarSpecial GameType = "all_star_special"
)

// GameRecord represents one scheduled game extracted from a season schedule
type GameRecord struct {
	Date         string   `json:"date"` // civil date, YYYY-MM-DD
	GameCode     string   `json:"game_code"`
	GameID       string   `json:"game_id"`
	AwayTeam     string   `json:"away_team"`
	HomeTeam     string   `json:"home_team"`
	GameStatus   int      `json:"game_status"`
	Completed    bool     `json:"completed"`
	CommenceTime string   `json:"commence_time"` // UTC instant as published, may be empty
	WeekNumber   int      `json:"week_number"`
	WeekName     string   `json:"week_name"`
	GameLabel    string   `json:"game_label"`
	GameSubLabel string   `json:"game_sub_label"`
	GameType     GameType `json:"game_type"`
}

// Matchup returns the AWAY@HOME form used in logs and dry-run listings
func (g GameRecord) Matchup() string {
	return fmt.Sprintf("%s@%s", g.AwayTeam, g.HomeTeam)
}

// DateWorkItem is one calendar date's unit of backfill work
type DateWorkItem struct {
	Date   string       `json:"date"`
	Season string       `json:"season"`
	Games  []GameRecord `json:"games"`
}

// CompletedGames returns the games on this date that have finished
func (d DateWorkItem) CompletedGames() []GameRecord {
	completed := make([]GameRecord, 0, len(d.Games))
	for _, g := range d.Games {
		if g.Completed {
			completed = append(completed, g)
		}
	}
	return completed
}

package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"nbaodds/backfill/internal/models"
	"nbaodds/backfill/internal/storage"

	"github.com/rs/zerolog/log"
)

// ErrScheduleNotFound is returned when no schedule document exists for a season
var ErrScheduleNotFound = errors.New("schedule not found")

// gameDateLayouts are the observed formats of a schedule's gameDate value, tried in order
var gameDateLayouts = []string{
	"01/02/2006 15:04:05",
	"01/02/2006",
	time.RFC3339,
	"2006-01-02",
}

// Source returns the raw schedule document for a season
type Source interface {
	Fetch(ctx context.Context, season string) ([]byte, error)
}

// StoreSource reads the most recent schedule export from the destination store
type StoreSource struct {
	Store storage.Store
}

// Fetch implements Source
func (s StoreSource) Fetch(ctx context.Context, season string) ([]byte, error) {
	data, obj, err := storage.ReadLatest(ctx, s.Store, storage.ScheduleKeyPrefix(season))
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, fmt.Errorf("season %s: %w", season, ErrScheduleNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read schedule for season %s: %w", season, err)
	}

	log.Debug().Str("season", season).Str("key", obj.Key).Msg("Schedule document loaded")
	return data, nil
}

// FileSource reads {Dir}/{season}.json from local disk
type FileSource struct {
	Dir string
}

// Fetch implements Source
func (s FileSource) Fetch(ctx context.Context, season string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.Dir, season+".json"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("season %s: %w", season, ErrScheduleNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read schedule for season %s: %w", season, err)
	}
	return data, nil
}

// scheduleDocument is the league schedule payload
type scheduleDocument struct {
	LeagueSchedule *struct {
		SeasonYear string         `json:"seasonYear"`
		GameDates  []scheduleDate `json:"gameDates"`
	} `json:"leagueSchedule"`
	GameDates []scheduleDate `json:"gameDates"`
}

type scheduleDate struct {
	GameDate string         `json:"gameDate"`
	Games    []scheduleGame `json:"games"`
}

type scheduleGame struct {
	GameID          string       `json:"gameId"`
	GameCode        string       `json:"gameCode"`
	GameStatus      int          `json:"gameStatus"`
	GameDateTimeUTC string       `json:"gameDateTimeUTC"`
	WeekNumber      int          `json:"weekNumber"`
	WeekName        string       `json:"weekName"`
	GameLabel       string       `json:"gameLabel"`
	GameSubLabel    string       `json:"gameSubLabel"`
	HomeTeam        scheduleTeam `json:"homeTeam"`
	AwayTeam        scheduleTeam `json:"awayTeam"`
}

type scheduleTeam struct {
	TeamTricode string `json:"teamTricode"`
}

// Ingestor turns a season's schedule document into classified game records
type Ingestor struct {
	source Source
}

// NewIngestor creates an ingestor reading from source
func NewIngestor(source Source) *Ingestor {
	return &Ingestor{source: source}
}

// Load returns every game in the season's schedule, classified but not filtered
func (i *Ingestor) Load(ctx context.Context, season string) ([]models.GameRecord, error) {
	data, err := i.source.Fetch(ctx, season)
	if err != nil {
		return nil, err
	}

	games, err := ParseSchedule(data)
	if err != nil {
		return nil, fmt.Errorf("season %s: %w", season, err)
	}

	log.Info().
		Str("season", season).
		Int("games", len(games)).
		Msg("Schedule ingested")

	return games, nil
}

// ParseSchedule extracts game records from a schedule document.
// Date groups with an unparsable date and games without a stable code are skipped.
func ParseSchedule(data []byte) ([]models.GameRecord, error) {
	var doc scheduleDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schedule: %w", err)
	}

	dates := doc.GameDates
	if doc.LeagueSchedule != nil {
		dates = doc.LeagueSchedule.GameDates
	}

	var games []models.GameRecord
	for _, group := range dates {
		date, err := ParseGameDate(group.GameDate)
		if err != nil {
			log.Warn().Err(err).Str("game_date", group.GameDate).Msg("Skipping date group with unparsable date")
			continue
		}

		for _, g := range group.Games {
			if !strings.Contains(g.GameCode, "/") {
				log.Debug().
					Str("date", date).
					Str("game_id", g.GameID).
					Str("game_code", g.GameCode).
					Msg("Skipping game without stable code")
				continue
			}

			games = append(games, models.GameRecord{
				Date:         date,
				GameCode:     g.GameCode,
				GameID:       g.GameID,
				AwayTeam:     g.AwayTeam.TeamTricode,
				HomeTeam:     g.HomeTeam.TeamTricode,
				GameStatus:   g.GameStatus,
				Completed:    g.GameStatus == models.GameStatusFinal,
				CommenceTime: g.GameDateTimeUTC,
				WeekNumber:   g.WeekNumber,
				WeekName:     g.WeekName,
				GameLabel:    g.GameLabel,
				GameSubLabel: g.GameSubLabel,
				GameType:     Classify(g.GameLabel, g.GameSubLabel),
			})
		}
	}

	return games, nil
}

// ParseGameDate normalizes a schedule date value to YYYY-MM-DD.
// The first matching layout wins.
func ParseGameDate(value string) (string, error) {
	value = strings.TrimSpace(value)
	for _, layout := range gameDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("unrecognized game date format %q", value)
}

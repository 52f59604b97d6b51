package storage

import (
	"fmt"
	"strings"
)

// Key prefixes written by the scrape service exporters
const (
	SchedulePrefix    = "nba-com/schedule"
	EventsPrefix      = "odds-api/events-history"
	GameLinesPrefix   = "odds-api/game-lines-history"
	PlayerPropsPrefix = "odds-api/player-props-history"
)

// ScheduleKeyPrefix returns the prefix holding a season's schedule documents
func ScheduleKeyPrefix(season string) string {
	return fmt.Sprintf("%s/%s/", SchedulePrefix, season)
}

// EventsKeyPrefix returns the date-scoped prefix for the events payload
func EventsKeyPrefix(date string) string {
	return fmt.Sprintf("%s/%s/", EventsPrefix, date)
}

// GameLinesKeyPrefix returns the date-scoped prefix for game lines
func GameLinesKeyPrefix(date string) string {
	return fmt.Sprintf("%s/%s/", GameLinesPrefix, date)
}

// PlayerPropsKeyPrefix returns the date-scoped prefix for player props
func PlayerPropsKeyPrefix(date string) string {
	return fmt.Sprintf("%s/%s/", PlayerPropsPrefix, date)
}

// PlayerPropsEventKeyPrefix returns the date- and event-scoped prefix for player props
func PlayerPropsEventKeyPrefix(date, eventID string) string {
	return fmt.Sprintf("%s/%s/%s/", PlayerPropsPrefix, date, eventID)
}

// ensureTrailingSlash keeps prefix listings from matching sibling keys
// (2024-04-1 must not match 2024-04-10).
func ensureTrailingSlash(prefix string) string {
	if prefix == "" || strings.HasSuffix(prefix, "/") {
		return prefix
	}
	return prefix + "/"
}

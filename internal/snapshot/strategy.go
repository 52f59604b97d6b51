// Package snapshot computes the historical snapshot instant requested for a game.
//
// The historical odds API only serves snapshots on 5-minute boundaries, so every
// computed instant is floored before use.
package snapshot

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"nbaodds/backfill/internal/models"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Layout is the wire format accepted by the historical API
const Layout = "2006-01-02T15:04:05Z"

const dateLayout = "2006-01-02"

// Strategy names how long before tip-off the snapshot is taken
type Strategy string

const (
	Conservative Strategy = "conservative"
	Pregame      Strategy = "pregame"
	Final        Strategy = "final"
)

var (
	// ErrUnknownStrategy is returned for strategy names outside the offset tables
	ErrUnknownStrategy = errors.New("unknown snapshot strategy")
	// ErrCommenceTimeRequired is returned for player props when no start time is known
	ErrCommenceTimeRequired = errors.New("commence time required for player props")
)

// Game lines are available earlier than props, so the two resources use separate tables.
var (
	gameLinesOffsets = map[Strategy]time.Duration{
		Conservative: -4 * time.Hour,
		Pregame:      -2 * time.Hour,
		Final:        -1 * time.Hour,
	}
	playerPropsOffsets = map[Strategy]time.Duration{
		Conservative: -2 * time.Hour,
		Pregame:      -1 * time.Hour,
		Final:        -30 * time.Minute,
	}
)

const (
	// typicalStartHour is the assumed tip-off (UTC) when a date has no known start times
	typicalStartHour = 23
	// fallbackHour is the fixed time of day used when a game's start time is missing or unparsable
	fallbackHour = 15
)

// commenceLayouts are tried in order when parsing a game's start time
var commenceLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04Z",
}

// Strategies returns every valid strategy name, sorted
func Strategies() []string {
	names := make([]string, 0, len(gameLinesOffsets))
	for s := range gameLinesOffsets {
		names = append(names, string(s))
	}
	sort.Strings(names)
	return names
}

// ParseStrategy validates a strategy name. Unknown names get the closest valid suggestion.
func ParseStrategy(name string) (Strategy, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if _, ok := gameLinesOffsets[Strategy(normalized)]; ok {
		return Strategy(normalized), nil
	}

	ranks := fuzzy.RankFindNormalizedFold(normalized, Strategies())
	if normalized != "" && len(ranks) > 0 {
		sort.Sort(ranks)
		return "", fmt.Errorf("%w %q (did you mean %q?)", ErrUnknownStrategy, name, ranks[0].Target)
	}
	return "", fmt.Errorf("%w %q (valid: %s)", ErrUnknownStrategy, name, strings.Join(Strategies(), ", "))
}

// Offset returns the offset from tip-off for a strategy and resource kind
func Offset(strategy Strategy, kind models.ResourceKind) (time.Duration, error) {
	table := gameLinesOffsets
	if kind == models.ResourcePlayerProps {
		table = playerPropsOffsets
	}
	offset, ok := table[strategy]
	if !ok {
		return 0, fmt.Errorf("%w %q", ErrUnknownStrategy, strategy)
	}
	return offset, nil
}

// Compute returns the snapshot instant for a game.
//
// A known start time is offset by the strategy. Game lines with a missing or
// unparsable start time fall back to a fixed time of day on the game date. Player
// props require a start time; an unparsable one falls back the same way.
func Compute(commenceTime, date string, strategy Strategy, kind models.ResourceKind) (string, error) {
	offset, err := Offset(strategy, kind)
	if err != nil {
		return "", err
	}

	commenceTime = strings.TrimSpace(commenceTime)
	if commenceTime == "" {
		if kind == models.ResourcePlayerProps {
			return "", ErrCommenceTimeRequired
		}
		return fallback(date)
	}

	start, err := ParseCommenceTime(commenceTime)
	if err != nil {
		return fallback(date)
	}

	return Format(start.Add(offset)), nil
}

// DateSnapshot returns the snapshot instant for a whole date, assuming a typical evening tip-off
func DateSnapshot(date string, strategy Strategy, kind models.ResourceKind) (string, error) {
	offset, err := Offset(strategy, kind)
	if err != nil {
		return "", err
	}
	day, err := time.Parse(dateLayout, date)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", date, err)
	}
	start := day.Add(typicalStartHour * time.Hour)
	return Format(start.Add(offset)), nil
}

// ParseCommenceTime parses a start time in any of the accepted layouts, as UTC
func ParseCommenceTime(value string) (time.Time, error) {
	for _, layout := range commenceLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable commence time %q", value)
}

// Floor rounds t down to the preceding 5-minute boundary in UTC
func Floor(t time.Time) time.Time {
	t = t.UTC()
	minute := t.Minute() - t.Minute()%5
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), minute, 0, 0, time.UTC)
}

// Format floors t and renders it in the API layout
func Format(t time.Time) string {
	return Floor(t).Format(Layout)
}

// Earliest returns the earliest of a set of formatted instants
func Earliest(instants []string) (string, bool) {
	earliest := ""
	for _, instant := range instants {
		// the layout is fixed-width UTC, so lexical order is chronological
		if earliest == "" || instant < earliest {
			earliest = instant
		}
	}
	return earliest, earliest != ""
}

func fallback(date string) (string, error) {
	day, err := time.Parse(dateLayout, date)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", date, err)
	}
	return Format(day.Add(fallbackHour * time.Hour)), nil
}

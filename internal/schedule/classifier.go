package schedule

import (
	"strings"

	"nbaodds/backfill/internal/models"
)

// AllStarWeekName is the week designator the schedule uses for All-Star weekend
const AllStarWeekName = "All-Star"

// Order matters: Classify checks these lists in declaration order and the first hit wins.
var (
	allStarEvents = []string{
		"Rising Stars Semifinal",
		"Rising Stars Final",
		"Rising Stars Championship",
		"All-Star Game",
		"All-Star Championship",
		"Celebrity Game",
		"Skills Challenge",
		"Three-Point Contest",
		"Slam Dunk Contest",
		"HBCU Classic",
	}

	playInIndicator = "Play-In"

	playoffRounds = []string{
		"First Round",
		"Conf. Semifinals",
		"Conf. Finals",
		"NBA Finals",
	}

	specialRegularEvents = []string{
		"NBA Mexico City Game",
		"NBA Paris Game",
		"NBA London Game",
		"NBA Abu Dhabi Game",
		"NBA Berlin Game",
		"Emirates NBA Cup",
		"In-Season Tournament",
	}
)

// Classify labels a game from its schedule label and sub-label
func Classify(label, subLabel string) models.GameType {
	if containsAny(label, allStarEvents) || containsAny(subLabel, allStarEvents) {
		return models.GameTypeAllStarSpecial
	}
	if strings.Contains(label, playInIndicator) {
		return models.GameTypePlayIn
	}
	if containsAny(label, playoffRounds) {
		return models.GameTypePlayoff
	}
	if containsAny(label+" "+subLabel, specialRegularEvents) {
		return models.GameTypeSpecialRegular
	}
	return models.GameTypeRegularSeason
}

// Exclusion reasons reported by Include
const (
	ReasonAllStarWeek    = "all_star_week"
	ReasonAllStarSpecial = "all_star_special"
	ReasonPreseason      = "preseason"
	ReasonInvalidTeam    = "invalid_team"
)

// Include decides whether a classified game belongs in the backfill.
// The returned reason is empty for included games.
func Include(g models.GameRecord) (bool, string) {
	if g.WeekName == AllStarWeekName {
		return false, ReasonAllStarWeek
	}
	if g.GameType == models.GameTypeAllStarSpecial {
		return false, ReasonAllStarSpecial
	}
	if g.WeekNumber == 0 && g.GameType != models.GameTypePlayoff && g.GameType != models.GameTypePlayIn {
		return false, ReasonPreseason
	}
	if !models.IsValidTeam(g.HomeTeam) || !models.IsValidTeam(g.AwayTeam) {
		return false, ReasonInvalidTeam
	}
	return true, ""
}

// Filter keeps the games Include accepts and counts exclusions by reason
func Filter(games []models.GameRecord) ([]models.GameRecord, map[string]int) {
	kept := make([]models.GameRecord, 0, len(games))
	excluded := make(map[string]int)
	for _, g := range games {
		if ok, reason := Include(g); ok {
			kept = append(kept, g)
		} else {
			excluded[reason]++
		}
	}
	return kept, excluded
}

func containsAny(s string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}

package schedule

import (
	"sort"

	"nbaodds/backfill/internal/models"
)

// Aggregation is the ordered work list plus the counts reported at startup
type Aggregation struct {
	Items      []models.DateWorkItem
	Found      int // dates with at least one completed game
	AfterFloor int // dates on or after the availability floor
	Limited    int // dates left after the item limit
}

// Aggregate groups completed games by date, drops dates before floor and keeps
// the first limit dates. A limit of zero or less means no cap.
func Aggregate(games []models.GameRecord, season, floor string, limit int) Aggregation {
	byDate := make(map[string][]models.GameRecord)
	for _, g := range games {
		if !g.Completed {
			continue
		}
		byDate[g.Date] = append(byDate[g.Date], g)
	}

	items := make([]models.DateWorkItem, 0, len(byDate))
	for date, dateGames := range byDate {
		items = append(items, models.DateWorkItem{Date: date, Season: season, Games: dateGames})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Date < items[j].Date })

	agg := Aggregation{Found: len(items)}

	items = FilterByFloor(items, floor)
	agg.AfterFloor = len(items)

	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	agg.Limited = len(items)
	agg.Items = items

	return agg
}

// FilterByFloor drops items dated strictly before floor. An empty floor keeps everything.
func FilterByFloor(items []models.DateWorkItem, floor string) []models.DateWorkItem {
	if floor == "" {
		return items
	}
	kept := make([]models.DateWorkItem, 0, len(items))
	for _, item := range items {
		if item.Date >= floor {
			kept = append(kept, item)
		}
	}
	return kept
}

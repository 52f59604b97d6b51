package models

import (
	"encoding/json"
	"fmt"
)

// EventRecord is one upstream wagering-market event
type EventRecord struct {
	ID           string `json:"id"`
	SportKey     string `json:"sport_key"`
	CommenceTime string `json:"commence_time"`
	HomeTeam     string `json:"home_team"`
	AwayTeam     string `json:"away_team"`
}

// eventsEnvelope is the historical endpoint shape: {"timestamp": ..., "data": [...]}
type eventsEnvelope struct {
	Timestamp string        `json:"timestamp"`
	Data      []EventRecord `json:"data"`
}

// ParseEvents decodes a stored events payload. Both the historical envelope
// and a bare array of events are accepted.
func ParseEvents(data []byte) ([]EventRecord, error) {
	var envelope eventsEnvelope
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Data != nil {
		return envelope.Data, nil
	}

	var events []EventRecord
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("failed to unmarshal events: %w", err)
	}
	return events, nil
}

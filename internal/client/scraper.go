package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"nbaodds/backfill/internal/metrics"

	"github.com/rs/zerolog/log"
)

// Scraper names understood by the scrape service
const (
	ScraperEvents      = "oddsa_events_his"
	ScraperGameLines   = "oddsa_game_lines_his"
	ScraperPlayerProps = "oddsa_player_props_his"
)

// ErrScrapeFailed is returned when the scrape service answers with a non-200 status
var ErrScrapeFailed = errors.New("scrape failed")

// maxErrorBody bounds how much of an error response is kept in the error message
const maxErrorBody = 512

// ScrapeRequest is the body of POST /scrape
type ScrapeRequest struct {
	Scraper           string `json:"scraper"`
	Sport             string `json:"sport,omitempty"`
	EventID           string `json:"event_id,omitempty"`
	GameDate          string `json:"game_date"`
	SnapshotTimestamp string `json:"snapshot_timestamp"`
	Markets           string `json:"markets,omitempty"`
	Regions           string `json:"regions,omitempty"`
	Group             string `json:"group"`
}

// ScrapeResponse is the scrape service's reply
type ScrapeResponse struct {
	Message string                 `json:"message"`
	Scraper string                 `json:"scraper,omitempty"`
	Stats   map[string]interface{} `json:"stats,omitempty"`
}

// Client calls the scrape service. Retries and backoff live inside the service;
// this client makes exactly one attempt per call with a bounded timeout.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new scrape service client
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Scrape asks the service to fetch and store one resource
func (c *Client) Scrape(ctx context.Context, req ScrapeRequest) (*ScrapeResponse, error) {
	url := fmt.Sprintf("%s/scrape", c.baseURL)
	start := time.Now()

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal scrape request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "nba-odds-backfill/1.0")

	log.Debug().
		Str("url", url).
		Str("scraper", req.Scraper).
		Str("game_date", req.GameDate).
		Str("event_id", req.EventID).
		Str("snapshot", req.SnapshotTimestamp).
		Msg("Calling scrape service")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.RecordScrapeCall(req.Scraper, "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("scrape request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RecordScrapeCall(req.Scraper, "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	metrics.RecordScrapeCall(req.Scraper, fmt.Sprintf("%d", resp.StatusCode), time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned status %d: %s", ErrScrapeFailed, req.Scraper, resp.StatusCode, truncate(string(body), maxErrorBody))
	}

	var result ScrapeResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scrape response: %w", err)
	}

	log.Debug().
		Str("scraper", req.Scraper).
		Str("message", result.Message).
		Dur("duration", time.Since(start)).
		Msg("Scrape call successful")

	return &result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

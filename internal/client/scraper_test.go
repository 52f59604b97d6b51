package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Scrape(t *testing.T) {
	var received ScrapeRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/scrape", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"message": "stored 1 object"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL+"/", 5*time.Second)
	resp, err := c.Scrape(context.Background(), ScrapeRequest{
		Scraper:           ScraperGameLines,
		Sport:             "basketball_nba",
		EventID:           "evt-1",
		GameDate:          "2024-04-10",
		SnapshotTimestamp: "2024-04-10T19:30:00Z",
		Markets:           "h2h,spreads,totals",
		Group:             "prod",
	})
	require.NoError(t, err)
	assert.Equal(t, "stored 1 object", resp.Message)

	assert.Equal(t, ScraperGameLines, received.Scraper)
	assert.Equal(t, "evt-1", received.EventID)
	assert.Equal(t, "2024-04-10", received.GameDate)
	assert.Equal(t, "2024-04-10T19:30:00Z", received.SnapshotTimestamp)
	assert.Equal(t, "prod", received.Group)
}

func TestClient_ScrapeOmitsEmptyEventID(t *testing.T) {
	var raw map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		w.Write([]byte(`{"message": "ok"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, 5*time.Second)
	_, err := c.Scrape(context.Background(), ScrapeRequest{Scraper: ScraperEvents, GameDate: "2024-04-10", Group: "prod"})
	require.NoError(t, err)

	_, hasEventID := raw["event_id"]
	assert.False(t, hasEventID, "Events requests should not carry an event id")
	assert.Equal(t, "2024-04-10", raw["game_date"])
}

func TestClient_ScrapeNon200IsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(strings.Repeat("x", 2000)))
	}))
	defer server.Close()

	c := NewClient(server.URL, 5*time.Second)
	_, err := c.Scrape(context.Background(), ScrapeRequest{Scraper: ScraperEvents})
	require.ErrorIs(t, err, ErrScrapeFailed)
	assert.Contains(t, err.Error(), "status 502")
	assert.Less(t, len(err.Error()), 700, "Error body should be truncated")
}

func TestClient_ScrapeTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"message": "late"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, 50*time.Millisecond)
	_, err := c.Scrape(context.Background(), ScrapeRequest{Scraper: ScraperEvents})
	assert.Error(t, err)
}

func TestClient_ScrapeInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	c := NewClient(server.URL, 5*time.Second)
	_, err := c.Scrape(context.Background(), ScrapeRequest{Scraper: ScraperEvents})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrScrapeFailed)
}

package main

import (
	"testing"

	"nbaodds/backfill/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags_OnlySetFlagsOverride(t *testing.T) {
	f, err := parseFlags([]string{"--seasons", "2023-24", "--limit", "3", "--dry-run"})
	require.NoError(t, err)

	cfg := &config.Config{
		Seasons:        "2021-22",
		Strategy:       "pregame",
		Kind:           "props",
		ServiceURL:     "http://env:8080",
		StorageBackend: config.StorageGCS,
	}
	f.apply(cfg)

	assert.Equal(t, "2023-24", cfg.Seasons)
	assert.Equal(t, 3, cfg.Limit)
	assert.True(t, cfg.DryRun)
	assert.Equal(t, "pregame", cfg.Strategy)
	assert.Equal(t, "props", cfg.Kind)
	assert.Equal(t, "http://env:8080", cfg.ServiceURL)
}

func TestParseFlags_StoreSelection(t *testing.T) {
	f, err := parseFlags([]string{"-local-dir", "/tmp/data", "-service-url=http://localhost:8080"})
	require.NoError(t, err)

	cfg := &config.Config{StorageBackend: config.StorageGCS, Bucket: "nba-scraped-data"}
	f.apply(cfg)

	assert.Equal(t, config.StorageLocal, cfg.StorageBackend)
	assert.Equal(t, "/tmp/data", cfg.LocalDir)
	assert.Equal(t, "http://localhost:8080", cfg.ServiceURL)
}

func TestParseFlags_RetryFailed(t *testing.T) {
	f, err := parseFlags([]string{"--retry-failed", "--kind", "props"})
	require.NoError(t, err)

	cfg := &config.Config{Kind: "lines"}
	f.apply(cfg)

	assert.True(t, cfg.RetryFailed)
	assert.Equal(t, "props", cfg.Kind)
}

func TestParseFlags_Errors(t *testing.T) {
	_, err := parseFlags([]string{"--limit", "many"})
	assert.Error(t, err)

	_, err = parseFlags([]string{"--unknown"})
	assert.Error(t, err)

	_, err = parseFlags([]string{"extra"})
	assert.Error(t, err)
}

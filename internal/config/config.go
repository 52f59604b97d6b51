package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-andiamo/splitter"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Storage backends
const (
	StorageGCS   = "gcs"
	StorageLocal = "local"
)

var seasonPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)

// Config holds all application configuration
type Config struct {
	// Scrape service
	ServiceURL  string        `envconfig:"SCRAPER_SERVICE_URL"`
	HTTPTimeout time.Duration `envconfig:"SCRAPER_TIMEOUT" default:"30s"`
	ExportGroup string        `envconfig:"EXPORT_GROUP" default:"prod"`
	Sport       string        `envconfig:"ODDS_SPORT" default:"basketball_nba"`
	Markets     string        `envconfig:"ODDS_MARKETS" default:"h2h,spreads,totals"`
	PropMarkets string        `envconfig:"ODDS_PROP_MARKETS" default:"player_points,player_rebounds,player_assists"`
	Regions     string        `envconfig:"ODDS_REGIONS" default:"us"`

	// Destination store
	StorageBackend string `envconfig:"STORAGE_BACKEND" default:"gcs"`
	Bucket         string `envconfig:"STORAGE_BUCKET" default:"nba-scraped-data"`
	LocalDir       string `envconfig:"STORAGE_LOCAL_DIR" default:"./data"`

	// Schedule source: empty reads schedules from the destination store
	ScheduleDir string `envconfig:"SCHEDULE_DIR"`

	// Backfill
	Seasons     string `envconfig:"BACKFILL_SEASONS" default:"2021-22,2022-23,2023-24"`
	Kind        string `envconfig:"BACKFILL_KIND" default:"lines"`
	Strategy    string `envconfig:"BACKFILL_STRATEGY" default:"conservative"`
	Limit       int    `envconfig:"BACKFILL_LIMIT" default:"0"`
	DryRun      bool   `envconfig:"BACKFILL_DRY_RUN" default:"false"`
	RetryFailed bool   `envconfig:"BACKFILL_RETRY_FAILED" default:"false"`

	// Rate gate: fixed spacing between scrape calls, per resource kind
	LinesDelay     time.Duration `envconfig:"LINES_DELAY" default:"1s"`
	PropsDelay     time.Duration `envconfig:"PROPS_DELAY" default:"2500ms"`
	SkipFirstDelay bool          `envconfig:"SKIP_FIRST_DELAY" default:"true"`

	// Earliest dates the historical API serves, per resource kind
	LinesFloor string `envconfig:"LINES_FLOOR" default:"2020-06-06"`
	PropsFloor string `envconfig:"PROPS_FLOOR" default:"2023-05-03"`

	// Run ledger (optional)
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// Run lock (optional)
	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	LockTTL       time.Duration `envconfig:"LOCK_TTL" default:"12h"`

	// Scheduled re-runs (optional)
	Cron string `envconfig:"BACKFILL_CRON"`

	// Application
	AppEnv   string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Monitoring
	EnableMetrics bool `envconfig:"ENABLE_METRICS" default:"true"`
	MetricsPort   int  `envconfig:"METRICS_PORT" default:"9090"`
}

// Override adjusts a loaded configuration before validation, e.g. from CLI flags
type Override func(*Config)

// Load loads configuration from environment variables
// It first attempts to load from .env file if in development mode
func Load(overrides ...Override) (*Config, error) {
	// Try to load .env file (ignore error if doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	for _, override := range overrides {
		override(&cfg)
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration.
// A missing service URL is only an error for runs that call the scrape service.
func (c *Config) Validate() error {
	if c.ServiceURL == "" && !c.DryRun {
		return fmt.Errorf("SCRAPER_SERVICE_URL is required")
	}

	if c.Kind != "lines" && c.Kind != "props" {
		return fmt.Errorf("BACKFILL_KIND must be lines or props, got %q", c.Kind)
	}

	switch c.StorageBackend {
	case StorageGCS:
		if c.Bucket == "" {
			return fmt.Errorf("STORAGE_BUCKET is required for the gcs backend")
		}
	case StorageLocal:
		if c.LocalDir == "" {
			return fmt.Errorf("STORAGE_LOCAL_DIR is required for the local backend")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be %s or %s, got %q", StorageGCS, StorageLocal, c.StorageBackend)
	}

	if c.Limit < 0 {
		return fmt.Errorf("BACKFILL_LIMIT must not be negative")
	}

	if c.RetryFailed && c.DatabaseURL == "" {
		return fmt.Errorf("BACKFILL_RETRY_FAILED needs the run ledger (DATABASE_URL)")
	}

	if c.LinesDelay < 0 || c.PropsDelay < 0 {
		return fmt.Errorf("delays must not be negative")
	}

	for _, floor := range []string{c.LinesFloor, c.PropsFloor} {
		if floor == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", floor); err != nil {
			return fmt.Errorf("invalid floor date %q: %w", floor, err)
		}
	}

	if _, err := c.SeasonList(); err != nil {
		return err
	}

	return nil
}

// SeasonList splits the comma-separated season list. Quoted entries and
// surrounding whitespace are tolerated.
func (c *Config) SeasonList() ([]string, error) {
	return ParseSeasons(c.Seasons)
}

// ParseSeasons splits and validates a comma-separated list of seasons like 2023-24
func ParseSeasons(value string) ([]string, error) {
	commaSplitter, err := splitter.NewSplitter(',', splitter.DoubleQuotes)
	if err != nil {
		return nil, fmt.Errorf("failed to build season splitter: %w", err)
	}

	parts, err := commaSplitter.Split(value)
	if err != nil {
		return nil, fmt.Errorf("invalid season list %q: %w", value, err)
	}

	seasons := make([]string, 0, len(parts))
	for _, part := range parts {
		season := strings.Trim(strings.TrimSpace(part), `"`)
		if season == "" {
			continue
		}
		if !seasonPattern.MatchString(season) {
			return nil, fmt.Errorf("invalid season %q (expected YYYY-YY)", season)
		}
		seasons = append(seasons, season)
	}

	if len(seasons) == 0 {
		return nil, fmt.Errorf("no seasons given")
	}
	return seasons, nil
}

// Delay returns the rate gate interval for a resource kind
func (c *Config) Delay(kind string) time.Duration {
	if kind == "props" {
		return c.PropsDelay
	}
	return c.LinesDelay
}

// Floor returns the earliest date the historical API serves for a resource kind
func (c *Config) Floor(kind string) string {
	if kind == "props" {
		return c.PropsFloor
	}
	return c.LinesFloor
}

// MarketsFor returns the market selection for a resource kind
func (c *Config) MarketsFor(kind string) string {
	if kind == "props" {
		return c.PropMarkets
	}
	return c.Markets
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// MustLoad loads configuration or panics on error
// Use this in main() where we want to fail fast
func MustLoad(overrides ...Override) *Config {
	cfg, err := Load(overrides...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

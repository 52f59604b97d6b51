package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the backfill worker

var (
	// Scrape service call metrics
	ScrapeCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nba_backfill_scrape_calls_total",
			Help: "Total number of scrape service calls",
		},
		[]string{"scraper", "status"},
	)

	ScrapeCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nba_backfill_scrape_call_duration_seconds",
			Help:    "Duration of scrape service calls in seconds",
			Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"scraper"},
	)

	// Destination store metrics
	StoreOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nba_backfill_store_operations_total",
			Help: "Total number of destination store operations",
		},
		[]string{"operation", "status"},
	)

	// Events cache metrics
	EventsCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nba_backfill_events_cache_hits_total",
			Help: "Total number of events cache hits",
		},
	)

	EventsCacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nba_backfill_events_cache_misses_total",
			Help: "Total number of events cache misses",
		},
	)

	// Work item metrics
	DatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nba_backfill_dates_total",
			Help: "Total number of dates handled, by outcome",
		},
		[]string{"kind", "outcome"},
	)

	GamesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nba_backfill_games_total",
			Help: "Total number of games handled, by outcome",
		},
		[]string{"kind", "outcome"},
	)

	DateDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nba_backfill_date_duration_seconds",
			Help:    "Duration of processing one date in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"kind"},
	)

	// Run progress
	RunDatesPlanned = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nba_backfill_run_dates_planned",
			Help: "Number of dates planned in the current run",
		},
	)

	RunDatesDone = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nba_backfill_run_dates_done",
			Help: "Number of dates finished in the current run",
		},
	)

	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nba_backfill_runs_total",
			Help: "Total number of backfill runs",
		},
		[]string{"kind", "status"},
	)

	// System metrics
	SystemUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nba_backfill_system_uptime_seconds",
			Help: "System uptime in seconds",
		},
	)

	LastSuccessfulRun = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nba_backfill_last_successful_run_timestamp",
			Help: "Timestamp of the last backfill run that finished without interruption",
		},
	)
)

// RecordScrapeCall records a scrape service call
func RecordScrapeCall(scraper, status string, duration float64) {
	ScrapeCallsTotal.WithLabelValues(scraper, status).Inc()
	ScrapeCallDuration.WithLabelValues(scraper).Observe(duration)
}

// RecordStoreOperation records a destination store operation
func RecordStoreOperation(operation, status string) {
	StoreOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordCacheHit records an events cache hit
func RecordCacheHit() {
	EventsCacheHitsTotal.Inc()
}

// RecordCacheMiss records an events cache miss
func RecordCacheMiss() {
	EventsCacheMissesTotal.Inc()
}

// RecordDate records the outcome of one date
func RecordDate(kind, outcome string, duration float64) {
	DatesTotal.WithLabelValues(kind, outcome).Inc()
	DateDuration.WithLabelValues(kind).Observe(duration)
}

// RecordGame records the outcome of one game
func RecordGame(kind, outcome string) {
	GamesTotal.WithLabelValues(kind, outcome).Inc()
}

// UpdateRunProgress updates the progress gauges
func UpdateRunProgress(planned, done int) {
	RunDatesPlanned.Set(float64(planned))
	RunDatesDone.Set(float64(done))
}

// RecordRun records the end of a backfill run
func RecordRun(kind, status string) {
	RunsTotal.WithLabelValues(kind, status).Inc()

	if status == "success" {
		LastSuccessfulRun.SetToCurrentTime()
	}
}

package main

import (
	"flag"
	"fmt"

	"nbaodds/backfill/internal/config"
)

// cliFlags holds command-line values. Only flags given explicitly override the environment.
type cliFlags struct {
	seasons     string
	limit       int
	dryRun      bool
	strategy    string
	kind        string
	serviceURL  string
	bucket      string
	scheduleDir string
	localDir    string
	cron        string
	retryFailed bool

	set map[string]bool
}

func parseFlags(args []string) (*cliFlags, error) {
	f := &cliFlags{set: make(map[string]bool)}

	fs := flag.NewFlagSet("backfill", flag.ContinueOnError)
	fs.StringVar(&f.seasons, "seasons", "", "Comma-separated seasons, e.g. 2022-23,2023-24. Env: BACKFILL_SEASONS")
	fs.IntVar(&f.limit, "limit", 0, "Process at most this many dates per season (0 = all). Env: BACKFILL_LIMIT")
	fs.BoolVar(&f.dryRun, "dry-run", false, "List the work without calling the scrape service. Env: BACKFILL_DRY_RUN")
	fs.StringVar(&f.strategy, "strategy", "", "Snapshot strategy: conservative, pregame or final. Env: BACKFILL_STRATEGY")
	fs.StringVar(&f.kind, "kind", "", "Resource to collect: lines or props. Env: BACKFILL_KIND")
	fs.StringVar(&f.serviceURL, "service-url", "", "Scrape service base URL. Env: SCRAPER_SERVICE_URL")
	fs.StringVar(&f.bucket, "bucket", "", "Destination bucket. Env: STORAGE_BUCKET")
	fs.StringVar(&f.scheduleDir, "schedule-dir", "", "Read season schedules from {dir}/{season}.json instead of the store. Env: SCHEDULE_DIR")
	fs.StringVar(&f.localDir, "local-dir", "", "Use a local directory as the destination store. Env: STORAGE_LOCAL_DIR")
	fs.StringVar(&f.cron, "cron", "", "Re-run on this cron schedule until interrupted. Env: BACKFILL_CRON")
	fs.BoolVar(&f.retryFailed, "retry-failed", false, "Only revisit dates the run ledger lists as failed. Env: BACKFILL_RETRY_FAILED")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })
	return f, nil
}

// apply overrides cfg with the flags that were given
func (f *cliFlags) apply(cfg *config.Config) {
	if f.set["seasons"] {
		cfg.Seasons = f.seasons
	}
	if f.set["limit"] {
		cfg.Limit = f.limit
	}
	if f.set["dry-run"] {
		cfg.DryRun = f.dryRun
	}
	if f.set["strategy"] {
		cfg.Strategy = f.strategy
	}
	if f.set["kind"] {
		cfg.Kind = f.kind
	}
	if f.set["service-url"] {
		cfg.ServiceURL = f.serviceURL
	}
	if f.set["bucket"] {
		cfg.Bucket = f.bucket
		cfg.StorageBackend = config.StorageGCS
	}
	if f.set["local-dir"] {
		cfg.LocalDir = f.localDir
		cfg.StorageBackend = config.StorageLocal
	}
	if f.set["schedule-dir"] {
		cfg.ScheduleDir = f.scheduleDir
	}
	if f.set["cron"] {
		cfg.Cron = f.cron
	}
	if f.set["retry-failed"] {
		cfg.RetryFailed = f.retryFailed
	}
}

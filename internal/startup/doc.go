// Package startup handles configuration loading, validation and the
// startup/shutdown log output.
//
// # Configuration
//
// [LoadConfig] loads an optional .env file with godotenv and decodes the
// environment into [Config] with envconfig. Values already present in the
// environment win over the file. The main variables are:
//
//   - PHOTOINDEX_URL, PHOTOINDEX_TOKEN: photo index base URL and API token
//   - ORIGINALS_DIR: local mount of the index's originals (default: /originals)
//   - WATCH_DIR: directory followed in watch mode (default: ORIGINALS_DIR)
//   - POLL_INTERVAL: target time between poll cycles (default: 30s)
//   - PAGE_SIZE: candidates requested per poll cycle (default: 100)
//   - LABELER_WORKERS: worker pool size (default: 2 per CPU, at most 16)
//   - UID_RETRY_ATTEMPTS, UID_RETRY_DELAY: UID lookup budget for local files
//   - STABLE_INTERVAL, STABLE_TIMEOUT: file size stability wait
//   - REQUEST_TIMEOUT, REQUEST_RATE, REQUEST_BURST: photo index client limits
//   - MARKER_LABEL: label marking a photo as processed (default: sd-labeled)
//   - STOPWORDS_FILE: YAML stopword list replacing or extending the defaults
//   - DATABASE_PATH: outcome ledger location (default: /data/labeler.db)
//   - METRICS_ADDR, METRICS_ENABLED: ops server listen address and switch
//   - DRY_RUN: log intended mutations instead of sending them
//
// [Config.Validate] checks only what the selected mode needs and wraps
// [ErrMissingRequired] for absent settings, so inspect works without any
// index configuration.
//
// # Build Information
//
// Version, Commit and BuildTime are injected via ldflags and exposed by
// [GetBuildInfo].
//
// # Lifecycle Logging
//
// [LogConfig] prints the banner, system information and every setting;
// the Log* helpers print one section per initialization step so that a
// container log reads top to bottom like a checklist.
package startup

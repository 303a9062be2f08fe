package startup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/knsan189/imageLabeler/internal/workers"
)

// ErrMissingRequired is returned by Validate when a setting the mode needs
// is empty.
var ErrMissingRequired = errors.New("missing required configuration")

// Run modes accepted by Validate.
const (
	ModePoll    = "poll"
	ModeWatch   = "watch"
	ModeScan    = "scan"
	ModeLabel   = "label"
	ModeInspect = "inspect"
	ModeLedger  = "ledger"
)

// Config holds all application configuration.
type Config struct {
	// Photo index
	IndexURL       string        `envconfig:"PHOTOINDEX_URL"`
	IndexToken     string        `envconfig:"PHOTOINDEX_TOKEN"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	RequestRate    float64       `envconfig:"REQUEST_RATE" default:"10"`
	RequestBurst   int           `envconfig:"REQUEST_BURST" default:"5"`
	CandidateQuery string        `envconfig:"CANDIDATE_QUERY" default:"caption:false"`

	// Files
	OriginalsDir   string        `envconfig:"ORIGINALS_DIR" default:"/originals"`
	WatchDir       string        `envconfig:"WATCH_DIR"`
	StableInterval time.Duration `envconfig:"STABLE_INTERVAL" default:"1s"`
	StableTimeout  time.Duration `envconfig:"STABLE_TIMEOUT" default:"60s"`
	WatchDebounce  time.Duration `envconfig:"WATCH_DEBOUNCE" default:"500ms"`
	ExiftoolPath   string        `envconfig:"EXIFTOOL_PATH" default:"exiftool"`
	ExiftoolOn     bool          `envconfig:"EXIFTOOL_ENABLED" default:"true"`

	// Loop and pool
	PollInterval     time.Duration `envconfig:"POLL_INTERVAL" default:"30s"`
	PageSize         int           `envconfig:"PAGE_SIZE" default:"100"`
	Workers          int           `envconfig:"LABELER_WORKERS"`
	UIDRetryAttempts int           `envconfig:"UID_RETRY_ATTEMPTS" default:"5"`
	UIDRetryDelay    time.Duration `envconfig:"UID_RETRY_DELAY" default:"10s"`

	// Labels
	MarkerLabel      string `envconfig:"MARKER_LABEL" default:"sd-labeled"`
	StopwordsFile    string `envconfig:"STOPWORDS_FILE"`
	LabelLimit       int    `envconfig:"LABEL_LIMIT" default:"0"`
	LabelPriority    int    `envconfig:"LABEL_PRIORITY" default:"10"`
	LabelUncertainty int    `envconfig:"LABEL_UNCERTAINTY" default:"0"`
	UpdateCaption    bool   `envconfig:"UPDATE_CAPTION" default:"true"`
	DryRun           bool   `envconfig:"DRY_RUN" default:"false"`

	// Ledger
	DatabasePath    string        `envconfig:"DATABASE_PATH" default:"/data/labeler.db"`
	LedgerRetention time.Duration `envconfig:"LEDGER_RETENTION" default:"720h"`

	// Ops server
	MetricsAddr     string            `envconfig:"METRICS_ADDR" default:":9090"`
	MetricsEnabled  bool              `envconfig:"METRICS_ENABLED" default:"true"`
	LogHealthChecks bool              `envconfig:"LOG_HEALTH_CHECKS" default:"false"`
	Volumes         map[string]string `envconfig:"VOLUMES"`
}

// LoadConfig reads envFile (or ./.env when envFile is empty and the file
// exists) into the environment and decodes the configuration from it.
// Variables already set in the environment win over the file.
func LoadConfig(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	} else {
		// Missing .env is normal in containers.
		_ = godotenv.Load(".env")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.WatchDir == "" {
		c.WatchDir = c.OriginalsDir
	}
	if c.Workers <= 0 {
		c.Workers = workers.Size(workers.IOBound, 16)
	}
	if c.UIDRetryAttempts < 1 {
		c.UIDRetryAttempts = 1
	}
	if c.Volumes == nil {
		c.Volumes = map[string]string{}
	}
	if _, ok := c.Volumes["originals"]; !ok && c.OriginalsDir != "" {
		c.Volumes["originals"] = c.OriginalsDir
	}
	if _, ok := c.Volumes["watch"]; !ok && c.WatchDir != c.OriginalsDir {
		c.Volumes["watch"] = c.WatchDir
	}
}

// Validate checks the settings that mode depends on.
func (c *Config) Validate(mode string) error {
	switch mode {
	case ModePoll, ModeWatch, ModeScan, ModeLabel:
		if c.IndexURL == "" {
			return fmt.Errorf("%w: PHOTOINDEX_URL", ErrMissingRequired)
		}
	case ModeInspect, ModeLedger:
		return nil
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}

	switch mode {
	case ModePoll:
		if c.OriginalsDir == "" {
			return fmt.Errorf("%w: ORIGINALS_DIR", ErrMissingRequired)
		}
		if c.PollInterval <= 0 {
			return fmt.Errorf("POLL_INTERVAL must be positive, got %v", c.PollInterval)
		}
		if c.PageSize < 1 {
			return fmt.Errorf("PAGE_SIZE must be at least 1, got %d", c.PageSize)
		}
	case ModeWatch:
		if c.WatchDir == "" {
			return fmt.Errorf("%w: WATCH_DIR", ErrMissingRequired)
		}
	}

	if c.MarkerLabel == "" {
		return fmt.Errorf("%w: MARKER_LABEL", ErrMissingRequired)
	}
	if c.StableInterval <= 0 || c.StableTimeout < c.StableInterval {
		return fmt.Errorf("STABLE_INTERVAL (%v) must be positive and not exceed STABLE_TIMEOUT (%v)",
			c.StableInterval, c.StableTimeout)
	}
	return nil
}

// DatabaseDir returns the directory holding the ledger file.
func (c *Config) DatabaseDir() string {
	return filepath.Dir(c.DatabasePath)
}

// PrepareDatabaseDir creates the ledger directory and checks it is writable.
func (c *Config) PrepareDatabaseDir() error {
	dir, err := filepath.Abs(c.DatabaseDir())
	if err != nil {
		return fmt.Errorf("failed to resolve database directory path: %w", err)
	}
	if err := ensureDirectory(dir, "database"); err != nil {
		return fmt.Errorf("database directory error: %w", err)
	}
	if err := testWriteAccess(dir); err != nil {
		return fmt.Errorf("database directory is not writable: %w", err)
	}
	return nil
}

func maskSecret(s string) string {
	switch {
	case s == "":
		return "(not set)"
	case len(s) <= 4:
		return "****"
	default:
		return s[:2] + "****" + s[len(s)-2:]
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

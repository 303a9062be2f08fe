package startup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/knsan189/imageLabeler/internal/logging"

	"github.com/gorilla/mux"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// LogConfig prints the banner, system information and every setting used
// by mode.
func LogConfig(cfg *Config, mode string) {
	printBanner()
	logSystemInfo()

	section("CONFIGURATION (" + strings.ToUpper(mode) + ")")

	logging.Info("  PHOTOINDEX_URL:      %s", cfg.IndexURL)
	logging.Info("  PHOTOINDEX_TOKEN:    %s", maskSecret(cfg.IndexToken))
	logging.Info("  REQUEST_TIMEOUT:     %v", cfg.RequestTimeout)
	logging.Info("  REQUEST_RATE:        %.1f/s (burst %d)", cfg.RequestRate, cfg.RequestBurst)
	if cfg.CandidateQuery != "" {
		logging.Info("  CANDIDATE_QUERY:     %s", cfg.CandidateQuery)
	}
	logging.Info("  ORIGINALS_DIR:       %s", cfg.OriginalsDir)
	if mode == ModeWatch {
		logging.Info("  WATCH_DIR:           %s", cfg.WatchDir)
		logging.Info("  WATCH_DEBOUNCE:      %v", cfg.WatchDebounce)
	}
	logging.Info("  STABLE_INTERVAL:     %v", cfg.StableInterval)
	logging.Info("  STABLE_TIMEOUT:      %v", cfg.StableTimeout)
	if mode == ModePoll {
		logging.Info("  POLL_INTERVAL:       %v", cfg.PollInterval)
		logging.Info("  PAGE_SIZE:           %d", cfg.PageSize)
	}
	logging.Info("  LABELER_WORKERS:     %d", cfg.Workers)
	logging.Info("  UID_RETRY_ATTEMPTS:  %d", cfg.UIDRetryAttempts)
	logging.Info("  UID_RETRY_DELAY:     %v", cfg.UIDRetryDelay)
	logging.Info("  MARKER_LABEL:        %s", cfg.MarkerLabel)
	logging.Info("  LABEL_LIMIT:         %d", cfg.LabelLimit)
	logging.Info("  LABEL_PRIORITY:      %d", cfg.LabelPriority)
	logging.Info("  UPDATE_CAPTION:      %v", cfg.UpdateCaption)
	if cfg.StopwordsFile != "" {
		logging.Info("  STOPWORDS_FILE:      %s", cfg.StopwordsFile)
	}
	logging.Info("  DATABASE_PATH:       %s", cfg.DatabasePath)
	logging.Info("  LEDGER_RETENTION:    %v", cfg.LedgerRetention)
	logging.Info("  METRICS_ENABLED:     %v", cfg.MetricsEnabled)
	if cfg.MetricsEnabled {
		logging.Info("  METRICS_ADDR:        %s", cfg.MetricsAddr)
	}
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())
	logging.Info("  LOG_FORMAT:          %s", envOrDefault("LOG_FORMAT", "auto"))

	if cfg.DryRun {
		logging.Warn("  DRY_RUN is enabled: the photo index will not be modified")
	}

	if len(cfg.Volumes) > 0 {
		names := make([]string, 0, len(cfg.Volumes))
		for name := range cfg.Volumes {
			names = append(names, name)
		}
		sort.Strings(names)
		logging.Debug("  Volumes:")
		for _, name := range names {
			logging.Debug("    %-12s %s", name, cfg.Volumes[name])
		}
	}
	logging.Info("")
}

// LogDatabaseInit logs ledger initialization
func LogDatabaseInit(duration time.Duration) {
	section("LEDGER INITIALIZATION")
	logging.Info("  [OK] Ledger opened in %v", duration)
}

// LogExtractorInit logs the extractor chain and checks the exiftool binary.
func LogExtractorInit(cfg *Config, extractors []string) {
	section("EXTRACTOR INITIALIZATION")
	logging.Info("  Chain: %s", strings.Join(extractors, " -> "))

	if !cfg.ExiftoolOn {
		logging.Info("  exiftool disabled (EXIFTOOL_ENABLED=false)")
		return
	}
	if err := checkExiftool(cfg.ExiftoolPath); err != nil {
		logging.Warn("  exiftool check failed: %v", err)
		logging.Warn("  Only PNG text chunks will be read")
	} else {
		logging.Info("  [OK] exiftool is available")
	}
}

// LogIndexCheck logs the result of the startup connectivity check.
func LogIndexCheck(baseURL string, err error) {
	section("PHOTO INDEX")
	if err != nil {
		logging.Warn("  %s is not reachable yet: %v", baseURL, err)
		logging.Warn("  Requests will be retried every cycle")
		return
	}
	logging.Info("  [OK] %s is reachable", baseURL)
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}
		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs the ops server routes at debug level.
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	section("OPS SERVER SETUP")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}
		sort.Slice(routes, func(i, j int) bool { return routes[i].Path < routes[j].Path })

		logging.Debug("  Registered routes (%d total):", len(routes))
		for _, route := range routes {
			logging.Debug("    %-6s %s", route.Method, route.Path)
		}
	}

	if logHealthChecks {
		logging.Info("  Health check logging: ON")
	} else {
		logging.Info("  Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// ServerConfig holds configuration for the startup summary
type ServerConfig struct {
	Mode            string
	Workers         int
	MetricsAddr     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs the startup summary
func LogServerStarted(config ServerConfig) {
	section("LABELER STARTED")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("  Mode:            %s", config.Mode)
	logging.Info("  Workers:         %d", config.Workers)
	if config.MetricsEnabled {
		logging.Info("  Ops server:      http://%s", displayAddr(config.MetricsAddr))
		logging.Info("  Metrics:         http://%s/metrics", displayAddr(config.MetricsAddr))
	} else {
		logging.Info("  Ops server:      DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

func displayAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(reason string) {
	section("SHUTDOWN INITIATED (" + reason + ")")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// Helper functions

func section(title string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("%s", title)
	logging.Info("------------------------------------------------------------")
}

func printBanner() {
	banner := `
------------------------------------------------------------
    _                              __          __         __
   (_)___ ___  ____ _____ ____    / /   ____ _/ /_  ___  / /
  / / __ '__ \/ __ '/ __ '/ _ \  / /   / __ '/ __ \/ _ \/ /
 / / / / / / / /_/ / /_/ /  __/ / /___/ /_/ / /_/ /  __/ /
/_/_/ /_/ /_/\__,_/\__, /\___/ /_____/\__,_/_.___/\___/_/
                  /____/
------------------------------------------------------------`
	fmt.Fprintln(os.Stderr, banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func checkExiftool(binary string) error {
	path, err := exec.LookPath(binary)
	if err != nil {
		return fmt.Errorf("%s not found in PATH", binary)
	}
	logging.Debug("  exiftool path: %s", path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, path, "-ver").Output()
	if err != nil {
		return fmt.Errorf("failed to get exiftool version: %w", err)
	}
	logging.Debug("  exiftool version: %s", strings.TrimSpace(string(output)))
	return nil
}

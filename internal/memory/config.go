package memory

import (
	"fmt"
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"github.com/knsan189/imageLabeler/internal/logging"
	"github.com/knsan189/imageLabeler/internal/metrics"
)

// DefaultMemoryRatio is the share of the container limit given to the heap.
const DefaultMemoryRatio = 0.85

// Sources reported in Result.Source.
const (
	SourceNone        = "none"
	SourceGoMemLimit  = "GOMEMLIMIT"
	SourceMemoryLimit = "MEMORY_LIMIT"
)

// Result describes the limit that was applied.
type Result struct {
	Configured     bool
	Source         string
	ContainerLimit int64
	GoMemLimit     int64
	Ratio          float64
}

// String renders r for the startup log.
func (r Result) String() string {
	switch r.Source {
	case SourceGoMemLimit:
		return fmt.Sprintf("%s (GOMEMLIMIT)", formatBytes(r.GoMemLimit))
	case SourceMemoryLimit:
		return fmt.Sprintf("%s (%.0f%% of %s)", formatBytes(r.GoMemLimit), r.Ratio*100, formatBytes(r.ContainerLimit))
	default:
		return "not set"
	}
}

// ConfigureFromEnv applies the limit described by the process environment.
// Call it before the ledger and the worker pool are created.
func ConfigureFromEnv() Result {
	return Configure(os.Getenv)
}

// Configure applies the limit described by getenv.
func Configure(getenv func(string) string) Result {
	if v := getenv("GOMEMLIMIT"); v != "" {
		res := Result{Source: SourceGoMemLimit}
		// The runtime already parsed it at startup; read it back.
		if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
			res.Configured = true
			res.GoMemLimit = limit
			metrics.GoMemoryLimitBytes.Set(float64(limit))
		}
		logging.Debug("GOMEMLIMIT set via environment: %s", v)
		return res
	}

	raw := getenv("MEMORY_LIMIT")
	if raw == "" {
		logging.Debug("MEMORY_LIMIT not set, leaving GOMEMLIMIT unconfigured")
		return Result{Source: SourceNone}
	}
	limit, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || limit <= 0 {
		logging.Warn("Ignoring MEMORY_LIMIT %q: not a positive byte count", raw)
		return Result{Source: SourceNone}
	}

	ratio := parseRatio(getenv("MEMORY_RATIO"))
	goLimit := int64(float64(limit) * ratio)
	debug.SetMemoryLimit(goLimit)
	metrics.GoMemoryLimitBytes.Set(float64(goLimit))

	return Result{
		Configured:     true,
		Source:         SourceMemoryLimit,
		ContainerLimit: limit,
		GoMemLimit:     goLimit,
		Ratio:          ratio,
	}
}

func parseRatio(s string) float64 {
	if s == "" {
		return DefaultMemoryRatio
	}
	r, err := strconv.ParseFloat(s, 64)
	if err != nil {
		logging.Warn("Failed to parse MEMORY_RATIO %q: %v, using %.2f", s, err, DefaultMemoryRatio)
		return DefaultMemoryRatio
	}
	if r <= 0 || r > 1 {
		logging.Warn("MEMORY_RATIO %q out of range (0.0-1.0], using %.2f", s, DefaultMemoryRatio)
		return DefaultMemoryRatio
	}
	return r
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}

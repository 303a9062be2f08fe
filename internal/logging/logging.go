package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/term"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	// LevelDebug is the debug log level
	LevelDebug LogLevel = iota
	// LevelInfo is the info log level
	LevelInfo
	// LevelWarn is the warning log level
	LevelWarn
	// LevelError is the error log level
	LevelError
)

var (
	currentLevel atomic.Int32
	levelOnce    sync.Once
)

// initLevel initializes the log level from environment variables
func initLevel() {
	levelOnce.Do(func() {
		currentLevel.Store(int32(levelFromEnv(os.Getenv("DEBUG"), os.Getenv("LOG_LEVEL"))))
	})
}

// levelFromEnv resolves DEBUG and LOG_LEVEL values. DEBUG wins when truthy.
func levelFromEnv(debug, level string) LogLevel {
	switch strings.ToLower(debug) {
	case "1", "true", "yes", "on":
		return LevelDebug
	}
	return ParseLevel(level)
}

// ParseLevel converts a level name to a LogLevel. Unknown names map to info.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// GetLevel returns the current log level
func GetLevel() LogLevel {
	initLevel()
	return LogLevel(currentLevel.Load())
}

// SetLevel overrides the level derived from the environment.
func SetLevel(l LogLevel) {
	initLevel()
	currentLevel.Store(int32(l))
}

// IsDebugEnabled returns true if debug logging is enabled
func IsDebugEnabled() bool {
	return GetLevel() <= LevelDebug
}

// Setup installs the process-wide slog handler. format is "json", "text" or
// empty; empty picks text for terminals and json otherwise.
func Setup(w io.Writer, format string) {
	if format == "" {
		format = "json"
		if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			format = "text"
		}
	}

	// Level gating happens in logf, so the handler accepts everything.
	opts := &slog.HandlerOptions{Level: slog.LevelDebug}

	var h slog.Handler
	if strings.EqualFold(format, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	slog.SetDefault(slog.New(NewContextHandler(h)))
}

func logf(ctx context.Context, level LogLevel, format string, args ...interface{}) {
	if GetLevel() > level {
		return
	}
	slog.Default().Log(ctx, level.slogLevel(), fmt.Sprintf(format, args...))
}

// Debug logs a debug message (only if DEBUG=true or LOG_LEVEL=debug)
func Debug(format string, args ...interface{}) {
	logf(context.Background(), LevelDebug, format, args...)
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	logf(context.Background(), LevelInfo, format, args...)
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	logf(context.Background(), LevelWarn, format, args...)
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	logf(context.Background(), LevelError, format, args...)
}

// DebugContext logs a debug message carrying the attributes stored in ctx.
func DebugContext(ctx context.Context, format string, args ...interface{}) {
	logf(ctx, LevelDebug, format, args...)
}

// InfoContext logs an info message carrying the attributes stored in ctx.
func InfoContext(ctx context.Context, format string, args ...interface{}) {
	logf(ctx, LevelInfo, format, args...)
}

// WarnContext logs a warning carrying the attributes stored in ctx.
func WarnContext(ctx context.Context, format string, args ...interface{}) {
	logf(ctx, LevelWarn, format, args...)
}

// ErrorContext logs an error carrying the attributes stored in ctx.
func ErrorContext(ctx context.Context, format string, args ...interface{}) {
	logf(ctx, LevelError, format, args...)
}

// Fatal logs an error message and exits
func Fatal(format string, args ...interface{}) {
	slog.Default().Log(context.Background(), slog.LevelError, "[FATAL] "+fmt.Sprintf(format, args...))
	os.Exit(1)
}

// Printf logs at info level regardless of the configured level.
func Printf(format string, args ...interface{}) {
	slog.Default().Log(context.Background(), slog.LevelInfo, fmt.Sprintf(format, args...))
}

// NewTaskID returns a short random identifier used to correlate the log lines
// of one task or cycle.
func NewTaskID() string {
	return uuid.NewString()[:8]
}

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", l)
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

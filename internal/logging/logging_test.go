package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected LogLevel
	}{
		{name: "Debug", value: "debug", expected: LevelDebug},
		{name: "Info", value: "info", expected: LevelInfo},
		{name: "Warn", value: "warn", expected: LevelWarn},
		{name: "Error", value: "error", expected: LevelError},
		{name: "Case insensitive", value: "DEBUG", expected: LevelDebug},
		{name: "Warning alias", value: "warning", expected: LevelWarn},
		{name: "Padded", value: "  error ", expected: LevelError},
		{name: "Unknown defaults to info", value: "verbose", expected: LevelInfo},
		{name: "Empty defaults to info", value: "", expected: LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.value); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.value, got, tt.expected)
			}
		})
	}
}

func TestLevelFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		debug    string
		level    string
		expected LogLevel
	}{
		{name: "DEBUG=true wins", debug: "true", level: "error", expected: LevelDebug},
		{name: "DEBUG=1", debug: "1", level: "", expected: LevelDebug},
		{name: "DEBUG=false falls through", debug: "false", level: "warn", expected: LevelWarn},
		{name: "nothing set", debug: "", level: "", expected: LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := levelFromEnv(tt.debug, tt.level); got != tt.expected {
				t.Errorf("levelFromEnv(%q, %q) = %v, want %v", tt.debug, tt.level, got, tt.expected)
			}
		})
	}
}

func TestLogLevelConstants(t *testing.T) {
	if LevelDebug >= LevelInfo {
		t.Error("LevelDebug should be less than LevelInfo")
	}
	if LevelInfo >= LevelWarn {
		t.Error("LevelInfo should be less than LevelWarn")
	}
	if LevelWarn >= LevelError {
		t.Error("LevelWarn should be less than LevelError")
	}
}

func TestLogLevelString(t *testing.T) {
	if LevelWarn.String() != "warn" {
		t.Errorf("LevelWarn.String() = %q", LevelWarn.String())
	}
	if got := LogLevel(42).String(); got != "unknown(42)" {
		t.Errorf("LogLevel(42).String() = %q", got)
	}
}

func TestContextAttrsReachOutput(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	defer slog.SetDefault(prev)

	Setup(&buf, "json")
	prevLevel := GetLevel()
	SetLevel(LevelDebug)
	defer SetLevel(prevLevel)

	ctx := WithAttrs(context.Background(), slog.String("uid", "pq1"))
	ctx = WithAttrs(ctx, slog.String("file", "cat.png"))
	WarnContext(ctx, "skipping %s", "item")

	var record map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &record); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if record["msg"] != "skipping item" {
		t.Errorf("msg = %v", record["msg"])
	}
	if record["uid"] != "pq1" || record["file"] != "cat.png" {
		t.Errorf("context attributes missing: %v", record)
	}
	if record["level"] != "WARN" {
		t.Errorf("level = %v, want WARN", record["level"])
	}
}

func TestLevelGate(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	defer slog.SetDefault(prev)

	Setup(&buf, "text")
	prevLevel := GetLevel()
	SetLevel(LevelWarn)
	defer SetLevel(prevLevel)

	Info("hidden")
	Debug("hidden")
	Error("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("messages below the level leaked: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("error message missing: %q", out)
	}
}

func TestNewTaskID(t *testing.T) {
	a, b := NewTaskID(), NewTaskID()
	if len(a) != 8 {
		t.Errorf("task id length = %d, want 8", len(a))
	}
	if a == b {
		t.Error("task ids should differ")
	}
}

package extract

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/barasher/go-exiftool"

	"github.com/knsan189/imageLabeler/internal/logging"
	"github.com/knsan189/imageLabeler/internal/textchunk"
)

// PriorityFields are the exiftool tags that may carry generation text, most
// specific first.
var PriorityFields = []string{
	"Parameters",
	"Prompt",
	"Workflow",
	"UserComment",
	"ImageDescription",
	"Description",
	"Comment",
	"XPComment",
	"Software",
}

// Exiftool extracts text through a long-running exiftool process. The process
// is started on first use and shared; calls are serialized because the
// underlying stay-open protocol handles one request at a time.
type Exiftool struct {
	binary string

	mu      sync.Mutex
	et      *exiftool.Exiftool
	initErr error
}

// NewExiftool returns an extractor using binary, or the exiftool found on
// PATH when binary is empty.
func NewExiftool(binary string) *Exiftool {
	return &Exiftool{binary: binary}
}

// Name implements Extractor.
func (e *Exiftool) Name() string { return "exiftool" }

// Extract runs exiftool on path and returns the priority fields it reports.
func (e *Exiftool) Extract(ctx context.Context, path string) (textchunk.Map, error) {
	if err := ctx.Err(); err != nil {
		return textchunk.Map{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	et, err := e.startLocked()
	if err != nil {
		return textchunk.Map{}, err
	}

	results := et.ExtractMetadata(path)
	if len(results) == 0 {
		return textchunk.Map{}, nil
	}
	if results[0].Err != nil {
		return textchunk.Map{}, fmt.Errorf("exiftool %s: %w", path, results[0].Err)
	}
	return FieldsToMap(results[0].Fields), nil
}

// Close stops the exiftool process if it was started.
func (e *Exiftool) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.et == nil {
		return nil
	}
	err := e.et.Close()
	e.et = nil
	return err
}

func (e *Exiftool) startLocked() (*exiftool.Exiftool, error) {
	if e.et != nil {
		return e.et, nil
	}
	if e.initErr != nil {
		return nil, e.initErr
	}

	var opts []func(*exiftool.Exiftool) error
	if e.binary != "" {
		opts = append(opts, exiftool.SetExiftoolBinaryPath(e.binary))
	}
	et, err := exiftool.NewExiftool(opts...)
	if err != nil {
		// A missing binary will not appear later; remember the failure.
		e.initErr = fmt.Errorf("start exiftool: %w", err)
		logging.Warn("exiftool unavailable, falling back to native extraction only: %v", err)
		return nil, e.initErr
	}
	e.et = et
	return et, nil
}

// FieldsToMap picks PriorityFields out of an exiftool field set, in priority
// order. Lists are joined with newlines and other values are formatted with
// fmt. Blank values are skipped.
func FieldsToMap(fields map[string]interface{}) textchunk.Map {
	var m textchunk.Map
	for _, name := range PriorityFields {
		v, ok := fields[name]
		if !ok {
			continue
		}
		if s := fieldString(v); strings.TrimSpace(s) != "" {
			m.Add(name, s)
		}
	}
	return m
}

func fieldString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, fieldString(item))
		}
		return strings.Join(parts, "\n")
	default:
		return fmt.Sprint(t)
	}
}

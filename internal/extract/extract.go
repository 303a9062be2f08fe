package extract

import (
	"context"
	"errors"
	"fmt"

	"github.com/knsan189/imageLabeler/internal/filesystem"
	"github.com/knsan189/imageLabeler/internal/logging"
	"github.com/knsan189/imageLabeler/internal/textchunk"
)

// Extractor returns the embedded text of an image. An empty map with a nil
// error means the file carries no text.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, path string) (textchunk.Map, error)
}

// Func adapts a function to the Extractor interface.
type Func func(ctx context.Context, path string) (textchunk.Map, error)

// Name implements Extractor.
func (f Func) Name() string { return "func" }

// Extract implements Extractor.
func (f Func) Extract(ctx context.Context, path string) (textchunk.Map, error) {
	return f(ctx, path)
}

// Native decodes PNG text chunks in-process.
type Native struct {
	Retry filesystem.RetryConfig
}

// NewNative returns a Native extractor with the default retry settings.
func NewNative() *Native {
	return &Native{Retry: filesystem.DefaultRetryConfig()}
}

// Name implements Extractor.
func (n *Native) Name() string { return "native" }

// Extract reads path and decodes its text chunks. Non-PNG files yield an empty map.
func (n *Native) Extract(ctx context.Context, path string) (textchunk.Map, error) {
	if err := ctx.Err(); err != nil {
		return textchunk.Map{}, err
	}
	data, err := filesystem.ReadFileWithRetry(path, n.Retry)
	if err != nil {
		return textchunk.Map{}, fmt.Errorf("read %s: %w", path, err)
	}
	return textchunk.Decode(data), nil
}

// Chain tries extractors in order.
type Chain struct {
	extractors []Extractor
	accept     func(textchunk.Map) bool
}

// NewChain builds a chain. accept decides whether a result is good enough to
// stop; nil accepts any map with content.
func NewChain(accept func(textchunk.Map) bool, extractors ...Extractor) *Chain {
	if accept == nil {
		accept = textchunk.Map.HasContent
	}
	return &Chain{extractors: extractors, accept: accept}
}

// Name implements Extractor.
func (c *Chain) Name() string { return "chain" }

// Extract returns the first accepted result. When nothing is accepted it
// returns the first map that had any content, or an empty map. Extractor
// errors are only returned when no extractor produced content.
func (c *Chain) Extract(ctx context.Context, path string) (textchunk.Map, error) {
	var (
		fallback textchunk.Map
		errs     []error
	)
	for _, e := range c.extractors {
		m, err := e.Extract(ctx, path)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return textchunk.Map{}, ctxErr
			}
			logging.DebugContext(ctx, "extractor %s failed for %s: %v", e.Name(), path, err)
			errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
			continue
		}
		if c.accept(m) {
			return m, nil
		}
		if fallback.Len() == 0 && m.HasContent() {
			fallback = m
		}
	}
	if fallback.Len() > 0 {
		return fallback, nil
	}
	return textchunk.Map{}, errors.Join(errs...)
}

// Extractors returns the names of the chained extractors.
func (c *Chain) Extractors() []string {
	names := make([]string, 0, len(c.extractors))
	for _, e := range c.extractors {
		names = append(names, e.Name())
	}
	return names
}

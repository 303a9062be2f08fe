package filesystem

import (
	"context"
	"errors"
	"io/fs"
	"time"
)

// Stability is the outcome of WaitStable.
type Stability int

const (
	// Stable means two consecutive size reads matched.
	Stable Stability = iota
	// Vanished means the file disappeared while waiting.
	Vanished
	// TimedOut means the size kept changing until the timeout; callers
	// proceed as if the file were stable.
	TimedOut
)

func (s Stability) String() string {
	switch s {
	case Stable:
		return "stable"
	case Vanished:
		return "vanished"
	case TimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// WaitStable polls the size of path every interval until two consecutive
// reads match, the file disappears or timeout elapses. The only error returned
// is ctx's, or a stat failure other than "not exist" on the first read.
func WaitStable(ctx context.Context, path string, interval, timeout time.Duration) (Stability, error) {
	start := time.Now()
	result, err := waitStable(ctx, path, interval, timeout)
	reportOp("stable", volumes().Label(path), start, err)
	return result, err
}

func waitStable(ctx context.Context, path string, interval, timeout time.Duration) (Stability, error) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	info, err := StatWithRetry(path, DefaultRetryConfig())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Vanished, nil
		}
		return Stable, err
	}
	last := info.Size()

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return Stable, ctx.Err()
		case <-deadline:
			return TimedOut, nil
		case <-ticker.C:
		}

		info, err := StatWithRetry(path, DefaultRetryConfig())
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return Vanished, nil
			}
			// Transient stat failures count as "still changing".
			continue
		}
		size := info.Size()
		if size == last {
			return Stable, nil
		}
		last = size
	}
}

package filesystem

import (
	"errors"
	"os"
	"syscall"
	"time"

	"github.com/knsan189/imageLabeler/internal/logging"
)

// RetryConfig configures retry behavior for filesystem operations
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// Volumes overrides the package-level volume table for metric labels.
	Volumes Volumes
}

// DefaultRetryConfig returns sensible defaults for NFS retry behavior
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

func (c *RetryConfig) volume(path string) string {
	if c.Volumes != nil {
		return c.Volumes.Label(path)
	}
	return volumes().Label(path)
}

// isNFSStaleError checks if an error is an NFS stale file handle error
func isNFSStaleError(err error) bool {
	if err == nil {
		return false
	}

	// ESTALE is errno 116 on Linux
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.ESTALE
	}

	return false
}

// withRetry runs fn, retrying with exponential backoff while it fails with
// ESTALE. Every call is reported as one operation named op.
func withRetry[T any](op, path string, config RetryConfig, fn func() (T, error)) (v T, err error) {
	start := time.Now()
	volume := config.volume(path)
	defer func() { reportOp(op, volume, start, err) }()

	backoff := config.InitialBackoff
	for attempt := 0; ; attempt++ {
		v, err = fn()
		if err == nil {
			if attempt > 0 {
				logging.Info("NFS %s of %s recovered after %d retries", op, path, attempt)
				reportRetry(RetryRecovered, op, volume)
			}
			return v, nil
		}
		if !isNFSStaleError(err) {
			return v, err
		}
		reportRetry(RetryStale, op, volume)
		if attempt >= config.MaxRetries {
			break
		}

		reportRetry(RetryBackoff, op, volume)
		logging.Debug("NFS %s stale file handle for %s, retrying in %v (attempt %d/%d)",
			op, path, backoff, attempt+1, config.MaxRetries)
		time.Sleep(backoff)
		backoff = min(backoff*2, config.MaxBackoff)
	}

	logging.Warn("NFS %s failed after %d retries for %s: %v", op, config.MaxRetries, path, err)
	reportRetry(RetryExhausted, op, volume)
	return v, err
}

// StatWithRetry is os.Stat with ESTALE retries.
func StatWithRetry(path string, config RetryConfig) (os.FileInfo, error) {
	return withRetry("stat", path, config, func() (os.FileInfo, error) {
		return os.Stat(path)
	})
}

// OpenWithRetry is os.Open with ESTALE retries.
func OpenWithRetry(path string, config RetryConfig) (*os.File, error) {
	return withRetry("open", path, config, func() (*os.File, error) {
		return os.Open(path)
	})
}

// ReadFileWithRetry is os.ReadFile with ESTALE retries.
func ReadFileWithRetry(path string, config RetryConfig) ([]byte, error) {
	return withRetry("read", path, config, func() ([]byte, error) {
		return os.ReadFile(path)
	})
}

// ReadDirWithRetry is os.ReadDir with ESTALE retries.
func ReadDirWithRetry(dir string, config RetryConfig) ([]os.DirEntry, error) {
	return withRetry("readdir", dir, config, func() ([]os.DirEntry, error) {
		return os.ReadDir(dir)
	})
}

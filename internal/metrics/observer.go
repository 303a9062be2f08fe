package metrics

import "github.com/knsan189/imageLabeler/internal/filesystem"

type filesystemObserver struct{}

// NewFilesystemObserver returns the filesystem.Observer that feeds the
// Filesystem* series. Install it with filesystem.SetObserver.
func NewFilesystemObserver() filesystem.Observer {
	return filesystemObserver{}
}

func (filesystemObserver) ObserveOp(op filesystem.Op) {
	FilesystemOperationDuration.WithLabelValues(op.Volume, op.Name).Observe(op.Elapsed.Seconds())
	if op.Err != nil {
		FilesystemOperationErrors.WithLabelValues(op.Volume, op.Name).Inc()
	}
}

func (filesystemObserver) ObserveRetry(event filesystem.RetryEvent, name, volume string) {
	FilesystemRetryEvents.WithLabelValues(name, volume, string(event)).Inc()
}

/*
Package filesystem provides the file access helpers used by the labeler:
retrying stat/open/read for NFS-mounted originals, resolving remote file names
to local paths, and waiting for files that are still being written.

# NFS retries

StatWithRetry, OpenWithRetry, ReadFileWithRetry and ReadDirWithRetry wrap the
os equivalents with exponential backoff on ESTALE (stale file handle) errors.
All other errors fail immediately.

	data, err := filesystem.ReadFileWithRetry(path, filesystem.DefaultRetryConfig())

Defaults: 3 retries, 50ms initial backoff, 500ms cap.

# Name resolution

Resolve maps a file name reported by the photo index to a file on disk. It
tries, in order: the exact name; NFC/NFD and percent-decoded spellings with a
doubled extension removed; a directory scan comparing case-folded normalized
names; and a scan comparing stems among supported images.

# Stability

WaitStable polls a file's size until two consecutive reads agree. A file that
disappears reports Vanished; a timeout reports TimedOut and callers continue.

# Metrics

Register an Observer with SetObserver to receive every operation and ESTALE
retry event. Paths are labeled with the volume names installed by SetVolumes
so metric series stay few. Without an Observer nothing is recorded.
*/
package filesystem

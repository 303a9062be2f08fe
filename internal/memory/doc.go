// Package memory sets the Go runtime soft memory limit from the container
// limit. Kubernetes exposes the limit through the Downward API as
// MEMORY_LIMIT; MEMORY_RATIO (default 0.85) decides how much of it the Go
// heap may use, leaving the rest to the exiftool subprocess and the SQLite
// page cache. An explicit GOMEMLIMIT always wins.
package memory

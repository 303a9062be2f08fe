// Package handlers serves the labeler's ops endpoints: health, liveness and
// readiness probes, build information, Prometheus metrics, a JSON status
// snapshot of the loop, pool and ledger, and a trigger that starts the next
// poll cycle or directory scan immediately.
package handlers

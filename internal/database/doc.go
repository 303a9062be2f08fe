// Package database provides the SQLite outcome ledger for the image labeler.
//
// It records:
//   - the last outcome per candidate (photo UID, or path for local-only items),
//     so the reconciliation loop can skip candidates that reached a terminal
//     outcome
//   - the files the watcher already queued, keyed by a blake2b fingerprint of
//     path, size and modification time
//   - small key/value metadata such as the schema version and the time of the
//     last reconciliation cycle
//
// The database uses WAL mode and creates its schema on open.
package database

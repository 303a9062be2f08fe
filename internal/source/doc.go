// Package source produces local candidates for watch and scan modes.
//
// Scan lists the supported images under a directory. Watcher follows a
// directory tree with fsnotify, adds new subdirectories as they appear and
// emits an image path once its create and write events have been quiet for
// the debounce period. Gate consults the ledger's seen table so that a file
// already handled at its current size and modification time is not queued
// again after a restart.
package source

// Package logging provides the leveled logging interface used across the
// image labeler.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions, including per-item skips
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the DEBUG and LOG_LEVEL environment
// variables. Output goes through log/slog; Setup picks a JSON or text handler
// and the *Context variants attach the attributes stored with WithAttrs, so
// every line about a candidate carries its uid, file and task id.
package logging

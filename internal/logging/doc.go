// Package logging builds slog loggers with mimic's console and JSON
// handlers and provides the standardized attribute vocabulary used across
// the daemon, worker, and pipeline.
package logging

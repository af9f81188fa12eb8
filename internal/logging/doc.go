// Package logging assembles the structured slog loggers used across adscribe.
//
// It owns the console and JSON handlers, level and output plumbing, per-stage
// level overrides, and context helpers that tag records with job IDs, stage
// names, and correlation IDs. A no-op logger is provided for tests and for
// wiring code that cannot fail.
package logging

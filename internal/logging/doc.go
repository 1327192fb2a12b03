// Package logging assembles structured slog loggers and formatting helpers used
// across fileconv.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so job polling code can tag log
// lines with job identifiers. The package also provides a no-op logger for
// tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits data with the same shape. Credentials and passwords are never passed
// to a logger.
package logging

// Package logging assembles structured slog loggers and formatting helpers used
// across markad.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pass code can automatically
// tag log lines with run IDs, recordings, and pass names. Heuristic outcomes go
// through Decision so every accept/reject line carries the same attribute shape.
// The package also provides a no-op logger for tests and wiring code that
// cannot fail.
package logging

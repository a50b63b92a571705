// Package history records analysis runs and their final marks in SQLite.
//
// Each run gets a UUID that also tags its log lines (run_id), so a history
// entry can be matched with the log of the run that produced it. The schema
// is versioned in schema.go; a mismatching database must be deleted, the
// history is diagnostic data, not a source of truth for the marks file.
package history

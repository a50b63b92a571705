// Package metrics exposes analysis counters and pass timings as Prometheus
// metrics. A nil *Recorder is valid and records nothing, so callers never
// branch on whether metrics are enabled.
package metrics

package preflight

import (
	"context"

	"markad/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the checks that must pass before analysing recording.
// An empty recording skips the recording check.
func RunAll(ctx context.Context, cfg *config.Config, recording string) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	if recording != "" {
		results = append(results, CheckRecording(recording))
	}

	// Logo masks are read and, after extraction, written here.
	if cfg.Logo.Enabled && cfg.Paths.LogoDir != "" {
		results = append(results, CheckDirectoryAccess("Logo directory", cfg.Paths.LogoDir))
	}

	if cfg.Metrics.Listen != "" {
		results = append(results, CheckListen(ctx, "Metrics endpoint", cfg.Metrics.Listen))
	}

	return results
}

// Failed returns the checks that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

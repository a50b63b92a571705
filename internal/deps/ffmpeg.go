package deps

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Requirements lists the binaries the analysis pipeline executes.
func Requirements(ffmpegBinary, ffprobeBinary string) []Requirement {
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     ffmpegBinary,
			Description: "Required for decoding recordings",
		},
		{
			Name:        "FFprobe",
			Command:     ffprobeBinary,
			Description: "Required for stream inspection and the key frame index",
		},
	}
}

// CheckFFmpegFilters reports whether the ffmpeg binary provides every named
// filter. It parses the table printed by "ffmpeg -filters", whose rows hold
// the flags, the filter name and its description.
func CheckFFmpegFilters(ctx context.Context, binary string, filters ...string) Status {
	result := Status{
		Name:        "FFmpeg filters",
		Command:     strings.TrimSpace(binary),
		Description: "Silence snapping needs " + strings.Join(filters, ", "),
		Optional:    true,
	}
	if result.Command == "" {
		result.Detail = "command not configured"
		return result
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	output, err := exec.CommandContext(checkCtx, result.Command, "-hide_banner", "-filters").Output() //nolint:gosec
	if err != nil {
		result.Detail = fmt.Sprintf("list filters: %v", err)
		return result
	}

	available := ParseFilters(string(output))
	var missing []string
	for _, f := range filters {
		if !available[f] {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		result.Detail = "missing " + strings.Join(missing, ", ")
		return result
	}
	result.Available = true
	return result
}

// ParseFilters returns the filter names listed in "ffmpeg -filters" output.
func ParseFilters(output string) map[string]bool {
	names := make(map[string]bool)
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 || !strings.Contains(fields[2], "->") {
			continue
		}
		names[fields[1]] = true
	}
	return names
}

package ffprobe

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

// KeyFrame is one key frame of the first video stream.
type KeyFrame struct {
	// Time is the presentation time in seconds, container start included.
	Time   float64
	Width  int
	Height int
	// SARNum and SARDen are the sample aspect ratio, 0 when unknown.
	SARNum int
	SARDen int
}

// ChannelChange marks the first audio frame with a new channel count.
type ChannelChange struct {
	Time     float64
	Channels int
}

// KeyFrames decodes only the key frames of the first video stream.
func KeyFrames(ctx context.Context, binary, path string) ([]KeyFrame, error) {
	var out []KeyFrame
	err := scanEntries(ctx, binary, []string{
		"-skip_frame", "nokey", "-select_streams", "v:0", "-show_entries",
		"frame=best_effort_timestamp_time,width,height,sample_aspect_ratio",
	}, path, func(e map[string]string) {
		t, err := strconv.ParseFloat(e["best_effort_timestamp_time"], 64)
		if err != nil {
			return
		}
		kf := KeyFrame{Time: t}
		kf.Width, _ = strconv.Atoi(e["width"])
		kf.Height, _ = strconv.Atoi(e["height"])
		if num, den, ok := ParseRatio(e["sample_aspect_ratio"], ":"); ok {
			kf.SARNum, kf.SARDen = num, den
		}
		out = append(out, kf)
	})
	return out, err
}

// AudioChannels decodes the first audio stream and returns every change of
// its channel count, starting with the first frame.
func AudioChannels(ctx context.Context, binary, path string) ([]ChannelChange, error) {
	var out []ChannelChange
	err := scanEntries(ctx, binary, []string{
		"-select_streams", "a:0", "-show_entries", "frame=best_effort_timestamp_time,channels",
	}, path, func(e map[string]string) {
		t, err := strconv.ParseFloat(e["best_effort_timestamp_time"], 64)
		if err != nil {
			return
		}
		channels, err := strconv.Atoi(e["channels"])
		if err != nil {
			return
		}
		if len(out) > 0 && out[len(out)-1].Channels == channels {
			return
		}
		out = append(out, ChannelChange{Time: t, Channels: channels})
	})
	return out, err
}

// scanEntries runs ffprobe with compact output and calls fn per line.
func scanEntries(ctx context.Context, binary string, args []string, path string, fn func(map[string]string)) error {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	full := append([]string{"-v", "error", "-hide_banner"}, args...)
	full = append(full, "-of", "compact=p=0", "--", path)
	cmd := exec.CommandContext(ctx, binary, full...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffprobe stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffprobe: %w", err)
	}
	if err := ParseCompact(stdout, fn); err != nil {
		_ = cmd.Wait()
		return fmt.Errorf("read ffprobe output: %w", err)
	}
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("ffprobe scan: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// ParseCompact reads "key=value|key=value" lines as written by
// "-of compact=p=0".
func ParseCompact(r io.Reader, fn func(map[string]string)) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		entry := make(map[string]string)
		for _, field := range strings.Split(line, "|") {
			if key, value, ok := strings.Cut(field, "="); ok {
				entry[key] = value
			}
		}
		fn(entry)
	}
	return scanner.Err()
}

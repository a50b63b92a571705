package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Result is the subset of "ffprobe -show_format -show_streams" output
// markad reads.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes one elementary stream.
type Stream struct {
	Index     int    `json:"index"`
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Channels  int    `json:"channels"`

	RFrameRate         string `json:"r_frame_rate"`
	AvgFrameRate       string `json:"avg_frame_rate"`
	NBFrames           string `json:"nb_frames"`
	DisplayAspectRatio string `json:"display_aspect_ratio"`
	SampleAspectRatio  string `json:"sample_aspect_ratio"`
}

// Format holds container level fields. ffprobe reports numbers as strings.
type Format struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	StartTime  string `json:"start_time"`
}

// Inspect runs ffprobe on path and decodes its JSON report.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	if binary = strings.TrimSpace(binary); binary == "" {
		binary = "ffprobe"
	}
	if path = strings.TrimSpace(path); path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return Result{}, fmt.Errorf("ffprobe inspect %s: %w: %s", path, err, strings.TrimSpace(string(output)))
	}
	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse %s: %w", path, err)
	}
	return result, nil
}

// StreamsOf returns the streams of one codec type ("video", "audio", ...).
func (r Result) StreamsOf(kind string) []Stream {
	var out []Stream
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, kind) {
			out = append(out, stream)
		}
	}
	return out
}

// Video returns the first video stream.
func (r Result) Video() (Stream, bool) {
	if streams := r.StreamsOf("video"); len(streams) > 0 {
		return streams[0], true
	}
	return Stream{}, false
}

// HasAudio reports whether the container carries an audio stream.
func (r Result) HasAudio() bool {
	return len(r.StreamsOf("audio")) > 0
}

// StartSeconds returns the container start time.
func (r Result) StartSeconds() float64 {
	return parsePositive(r.Format.StartTime)
}

// DurationSeconds returns the container duration, or 0 when ffprobe did
// not report a usable one.
func (r Result) DurationSeconds() float64 {
	return parsePositive(r.Format.Duration)
}

// SizeBytes returns the container size in bytes.
func (r Result) SizeBytes() int64 {
	return int64(parsePositive(r.Format.Size))
}

// FrameRate returns the stream frame rate from r_frame_rate, falling back
// to avg_frame_rate. It returns 0 when neither parses.
func (s Stream) FrameRate() float64 {
	for _, value := range []string{s.RFrameRate, s.AvgFrameRate} {
		if num, den, ok := ParseRatio(value, "/"); ok {
			return float64(num) / float64(den)
		}
	}
	return 0
}

// FrameCount returns nb_frames, or 0 when the container does not report it.
func (s Stream) FrameCount() int {
	n, err := strconv.Atoi(strings.TrimSpace(s.NBFrames))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// ParseRatio parses "num<sep>den" with positive terms, e.g. "25/1" or "16:9".
func ParseRatio(value, sep string) (int, int, bool) {
	left, right, found := strings.Cut(strings.TrimSpace(value), sep)
	if !found {
		return 0, 0, false
	}
	num, err := strconv.Atoi(left)
	if err != nil || num <= 0 {
		return 0, 0, false
	}
	den, err := strconv.Atoi(right)
	if err != nil || den <= 0 {
		return 0, 0, false
	}
	return num, den, true
}

// parsePositive maps missing, "N/A", negative and non-finite values to 0.
func parsePositive(value string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

package ffmpeg

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"markad/internal/logging"
	"markad/internal/media/frame"
)

var (
	silenceStartRe = regexp.MustCompile(`silence_start:\s*(-?\d+\.?\d*)`)
	silenceEndRe   = regexp.MustCompile(`silence_end:\s*(-?\d+\.?\d*)`)
)

// Silences runs silencedetect over the frames [from, to] of the first audio
// stream and returns intervals relative to the recording start.
func (s *Source) Silences(ctx context.Context, from, to int) ([]frame.Interval, error) {
	if to <= from {
		return nil, nil
	}
	offset := s.index.TimeOffset(from)
	length := s.index.TimeOffset(to) - offset
	binary := strings.TrimSpace(s.opts.FFmpeg)
	if binary == "" {
		binary = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, binary, s.silenceArgs(offset, length)...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg silencedetect: %w: %s", err, lastLine(string(output)))
	}
	intervals, err := ParseSilenceDetect(strings.NewReader(string(output)), offset, offset+length)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("silence scan",
		logging.Frame(from), logging.Int("to", to), logging.Int("silences", len(intervals)))
	return intervals, nil
}

func (s *Source) silenceArgs(offset, length time.Duration) []string {
	filter := fmt.Sprintf("silencedetect=noise=%gdB:d=%g", s.opts.SilenceThresholdDB, s.opts.SilenceMinSeconds)
	return []string{
		"-hide_banner", "-nostdin", "-nostats",
		"-ss", seconds(offset),
		"-t", seconds(length),
		"-i", s.path,
		"-map", "0:a:0", "-vn", "-sn",
		"-af", filter,
		"-f", "null", "-",
	}
}

// ParseSilenceDetect reads silencedetect log lines. Times in the log are
// relative to the seek offset; a silence still open at the end of the
// output is closed at end.
func ParseSilenceDetect(r io.Reader, offset, end time.Duration) ([]frame.Interval, error) {
	var out []frame.Interval
	var start time.Duration
	open := false
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if m := silenceStartRe.FindStringSubmatch(line); m != nil {
			start = offset + parseSeconds(m[1])
			open = true
			continue
		}
		if m := silenceEndRe.FindStringSubmatch(line); m != nil && open {
			out = append(out, frame.Interval{Start: max(start, offset), End: offset + parseSeconds(m[1])})
			open = false
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read silencedetect output: %w", err)
	}
	if open && end > start {
		out = append(out, frame.Interval{Start: max(start, offset), End: end})
	}
	return out, nil
}

func parseSeconds(value string) time.Duration {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(v) {
		return 0
	}
	return time.Duration(math.Round(v * float64(time.Second)))
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

func lastLine(output string) string {
	output = strings.TrimSpace(output)
	if i := strings.LastIndexByte(output, '\n'); i >= 0 {
		return output[i+1:]
	}
	return output
}

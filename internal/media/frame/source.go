package frame

import (
	"context"
	"errors"
	"math"
	"time"
)

// ErrSeek reports a seek target the source cannot reach.
var ErrSeek = errors.New("seek failed")

// StreamInfo describes the primary video stream.
type StreamInfo struct {
	FrameRate float64
	Width     int
	Height    int
	Codec     string
	// Frames is the total number of video frames, 0 when unknown.
	Frames int
}

// IsH264Family reports whether the codec uses the wider overlap cutoff.
func (s StreamInfo) IsH264Family() bool {
	switch s.Codec {
	case "h264", "hevc", "h265":
		return true
	default:
		return false
	}
}

// Source delivers decoded frames in presentation order. ReadFrame returns
// io.EOF after the last frame. Seek positions the source so the next video
// frame returned has a number >= n.
type Source interface {
	ReadFrame(ctx context.Context) (*Frame, error)
	Seek(ctx context.Context, n int) error
	FrameNumber() int
	Info() StreamInfo
}

// Index converts between frame numbers and recording time.
type Index interface {
	FrameBefore(d time.Duration) int
	FrameAfter(d time.Duration) int
	TimeOffset(n int) time.Duration
}

// ConstantRate is an Index for constant frame rate recordings.
type ConstantRate struct {
	FPS float64
}

// FrameBefore returns the last frame starting at or before d.
func (c ConstantRate) FrameBefore(d time.Duration) int {
	if d <= 0 || c.FPS <= 0 {
		return 0
	}
	return int(math.Floor(d.Seconds()*c.FPS + 1e-9))
}

// FrameAfter returns the first frame starting at or after d.
func (c ConstantRate) FrameAfter(d time.Duration) int {
	if d <= 0 || c.FPS <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()*c.FPS - 1e-9))
}

// TimeOffset returns the presentation offset of frame n.
func (c ConstantRate) TimeOffset(n int) time.Duration {
	if c.FPS <= 0 || n <= 0 {
		return 0
	}
	return time.Duration(math.Round(float64(n) / c.FPS * float64(time.Second)))
}

// Interval is a time span within the recording.
type Interval struct {
	Start time.Duration
	End   time.Duration
}

// SilenceFinder locates silent audio stretches between two frames.
type SilenceFinder interface {
	Silences(ctx context.Context, from, to int) ([]Interval, error)
}

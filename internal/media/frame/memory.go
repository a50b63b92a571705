package frame

import (
	"context"
	"fmt"
	"io"
	"sort"
)

// MemorySource replays a prepared frame sequence. It implements Source and,
// through SilenceIntervals, SilenceFinder.
type MemorySource struct {
	frames []*Frame
	pos    int
	info   StreamInfo
	last   int

	// SilenceIntervals is returned (filtered to the queried range) by Silences.
	SilenceIntervals []Interval
	index            Index
}

// NewMemorySource returns a source over frames, which must be ordered by
// Number with audio packets following the video frame they accompany.
func NewMemorySource(info StreamInfo, frames []*Frame) *MemorySource {
	if info.Frames == 0 {
		for _, f := range frames {
			if f.IsVideo() {
				info.Frames = max(info.Frames, f.Number+1)
			}
		}
	}
	return &MemorySource{frames: frames, info: info, last: -1, index: ConstantRate{FPS: info.FrameRate}}
}

func (m *MemorySource) ReadFrame(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.pos >= len(m.frames) {
		return nil, io.EOF
	}
	f := m.frames[m.pos]
	m.pos++
	if f.IsVideo() {
		m.last = f.Number
	}
	return f, nil
}

func (m *MemorySource) Seek(ctx context.Context, n int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n < 0 || (m.info.Frames > 0 && n >= m.info.Frames) {
		return fmt.Errorf("%w: frame %d outside [0,%d)", ErrSeek, n, m.info.Frames)
	}
	m.pos = sort.Search(len(m.frames), func(i int) bool { return m.frames[i].Number >= n })
	m.last = n - 1
	return nil
}

// FrameNumber returns the number of the last video frame read.
func (m *MemorySource) FrameNumber() int { return m.last }

func (m *MemorySource) Info() StreamInfo { return m.info }

func (m *MemorySource) Silences(ctx context.Context, from, to int) ([]Interval, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lo, hi := m.index.TimeOffset(from), m.index.TimeOffset(to)
	var out []Interval
	for _, iv := range m.SilenceIntervals {
		if iv.End >= lo && iv.Start <= hi {
			out = append(out, iv)
		}
	}
	return out, nil
}

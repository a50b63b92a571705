package overlap

import (
	"markad/internal/config"
	"markad/internal/media/frame"
)

// histogramStep samples every fourth pixel in both directions.
const histogramStep = 4

// Options tunes the matcher.
type Options struct {
	// Cutoff is the largest normalised distance still counted as similar,
	// as a share of the sample count.
	Cutoff float64
	// MinRun is the number of consecutive similar pairs needed to accept a run.
	MinRun int
}

// OptionsFromConfig picks the codec dependent cutoff and converts the run
// length to frames.
func OptionsFromConfig(c config.Overlap, info frame.StreamInfo) Options {
	cutoff := c.Cutoff
	if info.IsH264Family() {
		cutoff = c.CutoffH264
	}
	return Options{Cutoff: cutoff, MinRun: max(int(c.MinRunSeconds*info.FrameRate+0.5), 1)}
}

// Sample is the histogram of one frame.
type Sample struct {
	Frame int
	Hist  frame.Histogram
}

// Result is an accepted overlap: Before and After are the first matched frames
// of the repeated run, Length its frame count.
type Result struct {
	Before int
	After  int
	Length int
}

// Matcher buffers histograms of the window before a stop and the window after
// the following start.
type Matcher struct {
	opts   Options
	before []Sample
	after  []Sample
}

func NewMatcher(opts Options) *Matcher {
	return &Matcher{opts: opts}
}

// AddBefore records a frame of the window preceding the stop.
func (m *Matcher) AddBefore(n int, p *frame.Plane) {
	m.before = append(m.before, Sample{Frame: n, Hist: p.Histogram(histogramStep)})
}

// AddAfter records a frame of the window following the start.
func (m *Matcher) AddAfter(n int, p *frame.Plane) {
	m.after = append(m.after, Sample{Frame: n, Hist: p.Histogram(histogramStep)})
}

// Len returns the buffered frame counts.
func (m *Matcher) Len() (before, after int) { return len(m.before), len(m.after) }

// Reset drops both windows.
func (m *Matcher) Reset() {
	m.before = m.before[:0]
	m.after = m.after[:0]
}

// Match scans the buffered windows.
func (m *Matcher) Match() (Result, bool) {
	return Match(m.before, m.after, m.opts)
}

// Similar reports whether two histograms are within the cutoff.
func Similar(a, b *frame.Histogram, cutoff float64) bool {
	samples := max(a.Samples, b.Samples)
	if samples == 0 {
		return false
	}
	return float64(a.Distance(b)) < cutoff*float64(samples)
}

// Match compares every before×after pair. Consecutive similar pairs along a
// diagonal (both windows advancing together) form a run; the longest run of
// at least opts.MinRun pairs wins, the earliest on equal length, and its first
// pair is returned. Isolated similar pairs never qualify.
func Match(before, after []Sample, opts Options) (Result, bool) {
	minRun := max(opts.MinRun, 1)
	var best Result
	found := false
	better := func(r Result) bool {
		if !found || r.Length > best.Length {
			return true
		}
		if r.Length < best.Length {
			return false
		}
		return r.Before < best.Before || (r.Before == best.Before && r.After < best.After)
	}
	// Each diagonal is identified by the offset j-i.
	for offset := -(len(before) - 1); offset < len(after); offset++ {
		i := max(0, -offset)
		run, runStart := 0, 0
		for ; i < len(before) && i+offset < len(after); i++ {
			j := i + offset
			if Similar(&before[i].Hist, &after[j].Hist, opts.Cutoff) {
				if run == 0 {
					runStart = i
				}
				run++
				continue
			}
			if run >= minRun {
				if r := (Result{Before: before[runStart].Frame, After: after[runStart+offset].Frame, Length: run}); better(r) {
					best, found = r, true
				}
			}
			run = 0
		}
		if run >= minRun {
			if r := (Result{Before: before[runStart].Frame, After: after[runStart+offset].Frame, Length: run}); better(r) {
				best, found = r, true
			}
		}
	}
	return best, found
}

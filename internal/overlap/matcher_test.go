package overlap

import (
	"math/rand/v2"
	"testing"

	"markad/internal/config"
	"markad/internal/media/frame"
	"markad/internal/testsupport"
)

func spike(bin int) frame.Histogram {
	var h frame.Histogram
	h.Bins[bin] = 1000
	h.Samples = 1000
	return h
}

// windows builds before/after windows of distinct histograms numbered from
// the given first frames.
func windows(t *testing.T, n, firstBefore, firstAfter int) ([]Sample, []Sample) {
	t.Helper()
	rng := rand.New(rand.NewPCG(7, 11))
	bins := rng.Perm(256)
	before := make([]Sample, n)
	after := make([]Sample, n)
	for i := 0; i < n; i++ {
		before[i] = Sample{Frame: firstBefore + i, Hist: spike(bins[i])}
		after[i] = Sample{Frame: firstAfter + i, Hist: spike(bins[n+i])}
	}
	return before, after
}

func TestMatchPicksRunNotOutlier(t *testing.T) {
	before, after := windows(t, 100, 1000, 5000)
	// An isolated identical pair early in the windows.
	after[3].Hist = before[80].Hist
	// A ten frame repeated run.
	for k := 0; k < 10; k++ {
		after[40+k].Hist = before[30+k].Hist
	}

	got, ok := Match(before, after, Options{Cutoff: 0.15, MinRun: 5})
	if !ok {
		t.Fatal("no overlap found")
	}
	want := Result{Before: 1030, After: 5040, Length: 10}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestMatchRejectsShortRuns(t *testing.T) {
	before, after := windows(t, 60, 0, 100)
	for k := 0; k < 4; k++ {
		after[10+k].Hist = before[20+k].Hist
	}
	if got, ok := Match(before, after, Options{Cutoff: 0.15, MinRun: 5}); ok {
		t.Fatalf("short run accepted: %+v", got)
	}
}

func TestMatchPrefersLongestThenEarliest(t *testing.T) {
	before, after := windows(t, 100, 0, 200)
	for k := 0; k < 6; k++ {
		after[5+k].Hist = before[10+k].Hist
		after[70+k].Hist = before[60+k].Hist
	}
	got, ok := Match(before, after, Options{Cutoff: 0.15, MinRun: 5})
	if !ok || got.Before != 10 || got.After != 205 {
		t.Fatalf("equal runs: got %+v ok=%v, want earliest", got, ok)
	}

	for k := 0; k < 8; k++ {
		after[80+k].Hist = before[85+k].Hist
	}
	got, ok = Match(before, after, Options{Cutoff: 0.15, MinRun: 5})
	if !ok || got.Before != 85 || got.After != 280 || got.Length != 8 {
		t.Fatalf("longest run: got %+v ok=%v", got, ok)
	}
}

func TestSimilarCutoff(t *testing.T) {
	a := spike(10)
	b := a
	b.Bins[10] -= 100
	b.Bins[11] += 100
	// Distance 200 of 1000 samples.
	if Similar(&a, &b, 0.15) {
		t.Fatal("0.2 distance accepted at cutoff 0.15")
	}
	if !Similar(&a, &b, 0.25) {
		t.Fatal("0.2 distance rejected at cutoff 0.25")
	}
	var empty frame.Histogram
	if Similar(&empty, &empty, 1) {
		t.Fatal("empty histograms reported similar")
	}
}

func TestOptionsFromConfig(t *testing.T) {
	c := config.Default().Overlap
	tests := []struct {
		codec  string
		cutoff float64
	}{
		{codec: "mpeg2video", cutoff: c.Cutoff},
		{codec: "h264", cutoff: c.CutoffH264},
		{codec: "hevc", cutoff: c.CutoffH264},
	}
	for _, tt := range tests {
		t.Run(tt.codec, func(t *testing.T) {
			opts := OptionsFromConfig(c, frame.StreamInfo{FrameRate: 25, Codec: tt.codec})
			if opts.Cutoff != tt.cutoff {
				t.Fatalf("cutoff = %v, want %v", opts.Cutoff, tt.cutoff)
			}
			if opts.MinRun != 10 {
				t.Fatalf("min run = %d, want 10", opts.MinRun)
			}
		})
	}
}

func TestMatcherBuffersPlanes(t *testing.T) {
	m := NewMatcher(Options{Cutoff: 0.15, MinRun: 3})
	scenes := []testsupport.Segment{
		{Luma: 40}, {Luma: 40, Pattern: 2}, {Luma: 90}, {Luma: 140, Pattern: 5}, {Luma: 200},
	}
	for i, seg := range scenes {
		m.AddBefore(100+i, &testsupport.Picture(seg)[0])
	}
	after := []testsupport.Segment{{Luma: 10}, scenes[2], scenes[3], scenes[4], {Luma: 250}}
	for i, seg := range after {
		m.AddAfter(900+i, &testsupport.Picture(seg)[0])
	}
	if b, a := m.Len(); b != 5 || a != 5 {
		t.Fatalf("buffered %d/%d", b, a)
	}
	got, ok := m.Match()
	if !ok || got.Before != 102 || got.After != 901 || got.Length != 3 {
		t.Fatalf("got %+v ok=%v", got, ok)
	}
	m.Reset()
	if _, ok := m.Match(); ok {
		t.Fatal("match after reset")
	}
}

package detect

import (
	"testing"

	"markad/internal/config"
	"markad/internal/logging"
	"markad/internal/marks"
	"markad/internal/media/frame"
	"markad/internal/testsupport"
)

func extractTestMask(t *testing.T) *LogoMask {
	t.Helper()
	ex := NewExtractor(ExtractOptionsFromConfig(config.Default().Logo, config.Default().Black))
	f := testsupport.VideoFrame(0, testsupport.Segment{Luma: 100, Logo: true})
	for i := 0; i < 20; i++ {
		if !ex.Add(f) {
			t.Fatalf("frame %d rejected by extractor", i)
		}
	}
	mask, err := ex.Result()
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	return mask
}

func testLogoOptions() LogoOptions {
	opts := LogoOptionsFromConfig(config.Default().Logo)
	opts.VisibleFrames = 5
	opts.InvisibleFrames = 8
	return opts
}

func TestLogoScore(t *testing.T) {
	d := NewLogo(extractTestMask(t), testLogoOptions(), logging.NewNop())

	tests := []struct {
		name    string
		seg     testsupport.Segment
		wantMin float64
		wantMax float64
	}{
		{name: "logo", seg: testsupport.Segment{Luma: 100, Logo: true}, wantMin: 0.99, wantMax: 1},
		{name: "plain", seg: testsupport.Segment{Luma: 100}, wantMin: 0, wantMax: 0.01},
		{name: "black", seg: testsupport.Segment{Luma: 16}, wantMin: 0, wantMax: 0.01},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ratio, ok := d.Score(testsupport.VideoFrame(0, tt.seg))
			if !ok {
				t.Fatal("frame reported ambiguous")
			}
			if ratio < tt.wantMin || ratio > tt.wantMax {
				t.Fatalf("ratio %.3f outside [%.2f, %.2f]", ratio, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestLogoScoreInvalidBand(t *testing.T) {
	opts := testLogoOptions()
	opts.InvalidBands = []config.BrightnessBand{{BrightnessMin: 90, BrightnessMax: 255, ContrastMin: 0, ContrastMax: 255}}
	d := NewLogo(extractTestMask(t), opts, logging.NewNop())
	if _, ok := d.Score(testsupport.VideoFrame(0, testsupport.Segment{Luma: 100})); ok {
		t.Fatal("expected frame in invalid band to be ambiguous")
	}
}

func TestLogoHysteresisStep(t *testing.T) {
	d := NewLogo(extractTestMask(t), testLogoOptions(), logging.NewNop())
	plain := testsupport.Segment{Luma: 100}
	logo := testsupport.Segment{Luma: 100, Logo: true}

	type step struct {
		seg   testsupport.Segment
		count int
	}
	steps := []step{{plain, 10}, {logo, 10}, {plain, 10}}
	var events []Event
	var firedAt []int
	n := 0
	for _, s := range steps {
		for i := 0; i < s.count; i++ {
			if ev, ok := d.Detect(testsupport.VideoFrame(n, s.seg)); ok {
				events = append(events, ev)
				firedAt = append(firedAt, n)
			}
			n++
		}
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %v", events)
	}
	if events[0].Kind != marks.Start || events[0].Frame != 10 || firedAt[0] != 14 {
		t.Fatalf("start event %v fired at %d, want start@10 fired at 14", events[0], firedAt[0])
	}
	if events[1].Kind != marks.Stop || events[1].Frame != 20 || firedAt[1] != 27 {
		t.Fatalf("stop event %v fired at %d, want stop@20 fired at 27", events[1], firedAt[1])
	}
	if d.Status() != StatusInvisible {
		t.Fatalf("status = %s", d.Status())
	}
}

func TestLogoInterruptedStreakRestarts(t *testing.T) {
	d := NewLogo(extractTestMask(t), testLogoOptions(), logging.NewNop())
	plain := testsupport.Segment{Luma: 100}
	logo := testsupport.Segment{Luma: 100, Logo: true}
	seq := []testsupport.Segment{}
	for i := 0; i < 8; i++ {
		seq = append(seq, plain)
	}
	// Four logo frames, a dropout, then a steady logo.
	for i := 0; i < 4; i++ {
		seq = append(seq, logo)
	}
	seq = append(seq, plain)
	for i := 0; i < 6; i++ {
		seq = append(seq, logo)
	}
	var got []Event
	for n, seg := range seq {
		if ev, ok := d.Detect(testsupport.VideoFrame(n, seg)); ok {
			got = append(got, ev)
		}
	}
	if len(got) != 1 || got[0].Kind != marks.Start || got[0].Frame != 13 {
		t.Fatalf("expected start@13, got %v", got)
	}
}

func TestLogoInitialVisible(t *testing.T) {
	d := NewLogo(extractTestMask(t), testLogoOptions(), logging.NewNop())
	var got []Event
	for n := 0; n < 6; n++ {
		if ev, ok := d.Detect(testsupport.VideoFrame(n, testsupport.Segment{Luma: 100, Logo: true})); ok {
			got = append(got, ev)
		}
	}
	if len(got) != 1 || got[0].Frame != 0 || got[0].Kind != marks.Start {
		t.Fatalf("expected start@0, got %v", got)
	}
	d.Reset()
	if d.Status() != StatusUninitialized {
		t.Fatalf("reset left status %s", d.Status())
	}
}

func TestLogoIgnoresAudio(t *testing.T) {
	d := NewLogo(extractTestMask(t), testLogoOptions(), logging.NewNop())
	if _, ok := d.Detect(&frame.Frame{Kind: frame.KindAudio, Channels: 2}); ok {
		t.Fatal("audio packet produced a logo event")
	}
}

func TestColorInsensitiveMaskMatchesChroma(t *testing.T) {
	mask := extractTestMask(t).ColorInsensitive()
	if mask.Planes[1].Pixels() == 0 || mask.Planes[2].Pixels() == 0 {
		t.Fatal("chroma planes carry no edge pixels")
	}
	if mask.Planes[1].Width != mask.Planes[0].Width/2 {
		t.Fatalf("chroma width %d, luma width %d", mask.Planes[1].Width, mask.Planes[0].Width)
	}
	// Synthetic chroma is flat, so only the luma plane matches.
	d := NewLogo(mask, testLogoOptions(), logging.NewNop())
	ratio, ok := d.Score(testsupport.VideoFrame(0, testsupport.Segment{Luma: 100, Logo: true}))
	if !ok {
		t.Fatal("ambiguous")
	}
	if ratio <= 0.3 || ratio >= 0.9 {
		t.Fatalf("ratio %.2f, expected partial match", ratio)
	}
}

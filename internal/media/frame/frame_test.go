package frame

import (
	"context"
	"errors"
	"image"
	"io"
	"testing"
	"time"
)

func solid(n, w, h int, luma byte) *Frame {
	data := make([]byte, w*h)
	for i := range data {
		data[i] = luma
	}
	return &Frame{Number: n, Kind: KindVideo, Key: true, Planes: []Plane{{Data: data, Stride: w, Width: w, Height: h}}}
}

func TestConstantRateRoundTrip(t *testing.T) {
	idx := ConstantRate{FPS: 25}
	if got := idx.FrameAfter(10 * time.Second); got != 250 {
		t.Fatalf("FrameAfter(10s) = %d", got)
	}
	if got := idx.FrameBefore(10*time.Second + 30*time.Millisecond); got != 250 {
		t.Fatalf("FrameBefore(10.03s) = %d", got)
	}
	if got := idx.FrameAfter(10*time.Second + 30*time.Millisecond); got != 251 {
		t.Fatalf("FrameAfter(10.03s) = %d", got)
	}
	if got := idx.TimeOffset(250); got != 10*time.Second {
		t.Fatalf("TimeOffset(250) = %v", got)
	}
}

func TestRatioEqual(t *testing.T) {
	if !(Ratio{Num: 32, Den: 18}).Equal(Ratio16x9) {
		t.Fatal("expected 32:18 to equal 16:9")
	}
	if Ratio16x9.Is4x3() {
		t.Fatal("16:9 is not 4:3")
	}
	if !(Ratio{}).Equal(Ratio{}) || (Ratio{}).Equal(Ratio4x3) {
		t.Fatal("unexpected zero ratio comparison")
	}
}

func TestRegionStats(t *testing.T) {
	f := solid(0, 8, 8, 40)
	p := f.Luma()
	p.Data[0] = 200
	st := p.RegionStats(image.Rect(0, 0, 2, 2), 1)
	if st.Max != 200 || st.Min != 40 || st.Samples != 4 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if st.Mean != (200+40*3)/4 {
		t.Fatalf("unexpected mean %d", st.Mean)
	}
}

func TestHistogramDistance(t *testing.T) {
	a := solid(0, 4, 4, 10).Luma().Histogram(1)
	b := solid(1, 4, 4, 10).Luma().Histogram(1)
	c := solid(2, 4, 4, 200).Luma().Histogram(1)
	if d := a.Distance(&b); d != 0 {
		t.Fatalf("identical frames distance %d", d)
	}
	if d := a.NormalizedDistance(&c); d != 2 {
		t.Fatalf("disjoint frames normalized distance %v", d)
	}
}

func TestMemorySourceSeekAndRead(t *testing.T) {
	frames := []*Frame{solid(0, 2, 2, 0), solid(1, 2, 2, 0), {Number: 1, Kind: KindAudio, Channels: 2}, solid(2, 2, 2, 0)}
	src := NewMemorySource(StreamInfo{FrameRate: 25}, frames)
	ctx := context.Background()

	if err := src.Seek(ctx, 1); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	f, err := src.ReadFrame(ctx)
	if err != nil || f.Number != 1 || !f.IsVideo() {
		t.Fatalf("expected video frame 1, got %+v %v", f, err)
	}
	if f, _ = src.ReadFrame(ctx); f.Kind != KindAudio {
		t.Fatalf("expected audio packet, got %v", f.Kind)
	}
	if _, err := src.ReadFrame(ctx); err != nil {
		t.Fatalf("read frame 2: %v", err)
	}
	if _, err := src.ReadFrame(ctx); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
	if err := src.Seek(ctx, 9); !errors.Is(err, ErrSeek) {
		t.Fatalf("expected ErrSeek, got %v", err)
	}
}

func TestMemorySourceHonoursCancellation(t *testing.T) {
	src := NewMemorySource(StreamInfo{FrameRate: 25}, []*Frame{solid(0, 2, 2, 0)})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.ReadFrame(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

package ffmpeg

import (
	"bytes"
	"errors"
	"io"
	"slices"
	"strings"
	"testing"
	"time"

	"markad/internal/media/ffprobe"
	"markad/internal/media/frame"
)

const silenceLog = `Input #0, mpegts, from 'rec.ts':
[silencedetect @ 0x55d] silence_start: 1.5
[silencedetect @ 0x55d] silence_end: 2.25 | silence_duration: 0.75
size=N/A time=00:00:10.00 bitrate=N/A speed= 400x
[silencedetect @ 0x55d] silence_start: 8.8
`

func TestParseSilenceDetect(t *testing.T) {
	got, err := ParseSilenceDetect(strings.NewReader(silenceLog), 100*time.Second, 110*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	want := []frame.Interval{
		{Start: 101500 * time.Millisecond, End: 102250 * time.Millisecond},
		{Start: 108800 * time.Millisecond, End: 110 * time.Second},
	}
	if !slices.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseSilenceDetectClampsNegativeStart(t *testing.T) {
	log := "[silencedetect @ 0x1] silence_start: -0.02\n[silencedetect @ 0x1] silence_end: 0.5 | silence_duration: 0.52\n"
	got, err := ParseSilenceDetect(strings.NewReader(log), 5*time.Second, 6*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Start != 5*time.Second || got[0].End != 5500*time.Millisecond {
		t.Fatalf("got %v", got)
	}
}

func TestBuildIndex(t *testing.T) {
	keys := []ffprobe.KeyFrame{
		{Time: 10.0, Width: 720, Height: 576, SARNum: 16, SARDen: 15},
		{Time: 10.48, Width: 720, Height: 576, SARNum: 16, SARDen: 15},
		{Time: 12.0, Width: 720, Height: 576, SARNum: 64, SARDen: 45},
	}
	changes := []ffprobe.ChannelChange{{Time: 10, Channels: 2}, {Time: 11, Channels: 6}}
	idx := buildIndex(keys, changes, 10, 25)

	if !idx.keys[0] || !idx.keys[12] || !idx.keys[50] || idx.keys[1] {
		t.Fatalf("key frames %v", idx.keys)
	}
	if len(idx.aspects) != 2 {
		t.Fatalf("aspect runs %v", idx.aspects)
	}
	tests := []struct {
		frame    int
		aspect   frame.Ratio
		channels int
	}{
		{0, frame.Ratio4x3, 2},
		{24, frame.Ratio4x3, 2},
		{25, frame.Ratio4x3, 6},
		{49, frame.Ratio4x3, 6},
		{50, frame.Ratio16x9, 6},
		{5000, frame.Ratio16x9, 6},
	}
	for _, tt := range tests {
		if got := idx.aspect(tt.frame); !got.Equal(tt.aspect) {
			t.Fatalf("frame %d: aspect %s, want %s", tt.frame, got, tt.aspect)
		}
		if got := idx.channelCount(tt.frame); got != tt.channels {
			t.Fatalf("frame %d: channels %d, want %d", tt.frame, got, tt.channels)
		}
	}
}

func TestEmptyIndex(t *testing.T) {
	var idx streamIndex
	if !idx.aspect(10).IsZero() || idx.channelCount(10) != 0 {
		t.Fatal("empty index reported properties")
	}
}

func TestDisplayAspect(t *testing.T) {
	tests := []struct {
		kf   ffprobe.KeyFrame
		want frame.Ratio
	}{
		{ffprobe.KeyFrame{Width: 1920, Height: 1080}, frame.Ratio16x9},
		{ffprobe.KeyFrame{Width: 1440, Height: 1080, SARNum: 4, SARDen: 3}, frame.Ratio16x9},
		{ffprobe.KeyFrame{Width: 720, Height: 576, SARNum: 12, SARDen: 11}, frame.Ratio4x3},
		{ffprobe.KeyFrame{Width: 1920, Height: 870}, frame.Ratio{Num: 221, Den: 100}},
		{ffprobe.KeyFrame{}, frame.Ratio{}},
	}
	for _, tt := range tests {
		if got := displayAspect(tt.kf); got != tt.want {
			t.Fatalf("%+v: got %s, want %s", tt.kf, got, tt.want)
		}
	}
}

func TestReadPicture(t *testing.T) {
	w, h := 5, 3
	size := frameSize(w, h)
	if size != 15+2*3*2 {
		t.Fatalf("frame size %d", size)
	}
	data := make([]byte, 2*size)
	for i := range data {
		data[i] = byte(i)
	}
	r := bytes.NewReader(data)
	planes, err := readPicture(r, w, h)
	if err != nil {
		t.Fatal(err)
	}
	if len(planes) != 3 || planes[1].Width != 3 || planes[1].Height != 2 {
		t.Fatalf("planes %+v", planes)
	}
	if planes[0].At(4, 2) != 14 || planes[1].At(0, 0) != 15 || planes[2].At(0, 0) != 21 {
		t.Fatal("plane offsets wrong")
	}
	if _, err := readPicture(r, w, h); err != nil {
		t.Fatalf("second picture: %v", err)
	}
	if _, err := readPicture(r, w, h); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
	if _, err := readPicture(bytes.NewReader(data[:4]), w, h); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected unexpected EOF, got %v", err)
	}
}

func TestDecodeArgs(t *testing.T) {
	s := &Source{path: "rec.ts", info: frame.StreamInfo{FrameRate: 25}}
	args := strings.Join(s.decodeArgs(0), " ")
	if strings.Contains(args, "-ss") {
		t.Fatalf("seek at frame 0: %s", args)
	}
	args = strings.Join(s.decodeArgs(250), " ")
	if !strings.Contains(args, "-ss 10.000000 -i rec.ts") {
		t.Fatalf("seek must precede input: %s", args)
	}
	if !strings.HasSuffix(args, "-f rawvideo -pix_fmt yuv420p pipe:1") {
		t.Fatalf("output args: %s", args)
	}
}

func TestSilenceArgs(t *testing.T) {
	s := &Source{path: "rec.ts", opts: Options{SilenceThresholdDB: -50, SilenceMinSeconds: 0.2}}
	args := strings.Join(s.silenceArgs(90*time.Second, 30*time.Second), " ")
	for _, want := range []string{"-ss 90.000 -t 30.000 -i rec.ts", "-af silencedetect=noise=-50dB:d=0.2", "-f null -"} {
		if !strings.Contains(args, want) {
			t.Fatalf("%q missing from %s", want, args)
		}
	}
}

func TestTailBuffer(t *testing.T) {
	b := &tailBuffer{limit: 8}
	_, _ = b.Write([]byte("first line\n"))
	_, _ = b.Write([]byte("error!"))
	if got := b.String(); got != "e\nerror!" {
		t.Fatalf("tail %q", got)
	}
	var nilBuf *tailBuffer
	if nilBuf.String() != "" {
		t.Fatal("nil buffer")
	}
}

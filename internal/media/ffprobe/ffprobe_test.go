package ffprobe

import (
	"strings"
	"testing"
)

func TestResultFormatFields(t *testing.T) {
	tests := []struct {
		name     string
		format   Format
		duration float64
		size     int64
		start    float64
	}{
		{"valid", Format{Duration: "123.45", Size: "1000", StartTime: "1.400000"}, 123.45, 1000, 1.4},
		{"missing", Format{}, 0, 0, 0},
		{"invalid", Format{Duration: "N/A", Size: "-1", StartTime: "bad"}, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Result{Format: tt.format}
			if got := result.DurationSeconds(); got != tt.duration {
				t.Fatalf("duration = %v, want %v", got, tt.duration)
			}
			if got := result.SizeBytes(); got != tt.size {
				t.Fatalf("size = %d, want %d", got, tt.size)
			}
			if got := result.StartSeconds(); got != tt.start {
				t.Fatalf("start = %v, want %v", got, tt.start)
			}
		})
	}
}

func TestResultStreamsOf(t *testing.T) {
	result := Result{Streams: []Stream{
		{Index: 0, CodecType: "video"},
		{Index: 1, CodecType: "audio"},
		{Index: 2, CodecType: "Audio"},
		{Index: 3, CodecType: "subtitle"},
	}}
	audio := result.StreamsOf("audio")
	if len(audio) != 2 || audio[1].Index != 2 {
		t.Fatalf("unexpected audio streams %+v", audio)
	}
	if !result.HasAudio() {
		t.Fatal("expected audio")
	}
	if (Result{Streams: []Stream{{CodecType: "video"}}}).HasAudio() {
		t.Fatal("video-only result reported audio")
	}
}

func TestStreamFrameRate(t *testing.T) {
	tests := []struct {
		stream Stream
		want   float64
	}{
		{Stream{RFrameRate: "25/1"}, 25},
		{Stream{RFrameRate: "30000/1001"}, 30000.0 / 1001},
		{Stream{RFrameRate: "0/0", AvgFrameRate: "50/1"}, 50},
		{Stream{}, 0},
	}
	for _, tt := range tests {
		if got := tt.stream.FrameRate(); got != tt.want {
			t.Errorf("FrameRate(%+v) = %v, want %v", tt.stream, got, tt.want)
		}
	}
}

func TestResultVideo(t *testing.T) {
	result := Result{
		Streams: []Stream{{CodecType: "audio"}, {CodecType: "video", CodecName: "h264", NBFrames: "1500"}},
	}
	video, ok := result.Video()
	if !ok || video.CodecName != "h264" || video.FrameCount() != 1500 {
		t.Fatalf("unexpected video stream %+v", video)
	}
	if _, ok := (Result{}).Video(); ok {
		t.Fatal("expected no video stream")
	}
}

func TestParseRatio(t *testing.T) {
	if num, den, ok := ParseRatio("64:45", ":"); !ok || num != 64 || den != 45 {
		t.Fatalf("got %d:%d %v", num, den, ok)
	}
	for _, bad := range []string{"", "0:1", "N/A", "16:"} {
		if _, _, ok := ParseRatio(bad, ":"); ok {
			t.Errorf("ParseRatio(%q) accepted", bad)
		}
	}
}

func TestParseCompact(t *testing.T) {
	input := "best_effort_timestamp_time=1.400000|width=720|height=576|sample_aspect_ratio=64:45\n\n" +
		"best_effort_timestamp_time=1.880000|width=720|height=576|sample_aspect_ratio=16:15\n"
	var entries []map[string]string
	if err := ParseCompact(strings.NewReader(input), func(e map[string]string) { entries = append(entries, e) }); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[1]["sample_aspect_ratio"] != "16:15" || entries[0]["width"] != "720" {
		t.Fatalf("unexpected entries %v", entries)
	}
}

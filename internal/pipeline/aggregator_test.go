package pipeline

import (
	"testing"

	"markad/internal/detect"
	"markad/internal/logging"
	"markad/internal/marks"
	"markad/internal/media/frame"
)

// scripted emits prepared events when it sees their frame.
type scripted struct {
	class  marks.Class
	events map[int]marks.Kind
	seen   []int
	resets int
}

func (s *scripted) Class() marks.Class { return s.class }

func (s *scripted) Reset() { s.resets++ }

func (s *scripted) Detect(f *frame.Frame) (detect.Event, bool) {
	s.seen = append(s.seen, f.Number)
	kind, ok := s.events[f.Number]
	if !ok {
		return detect.Event{}, false
	}
	return detect.Event{Class: s.class, Kind: kind, Frame: f.Number}, true
}

func newTestAggregator(full bool, ds ...detect.Detector) (*Aggregator, *marks.Store, *marks.Store, *marks.Store) {
	logger := logging.NewNop()
	store := marks.NewStore(logger)
	black := marks.NewSideList(logger)
	scene := marks.NewSideList(logger)
	agg := NewAggregator(store, black, scene, ds, AggregatorOptions{
		Window:      30 * 25,
		StartWindow: 2 * 25,
		FullDecode:  full,
		Index:       frame.ConstantRate{FPS: 25},
	}, nil, logger)
	return agg, store, black, scene
}

func video(n int) *frame.Frame {
	return &frame.Frame{Number: n, Kind: frame.KindVideo, Key: true}
}

func feed(agg *Aggregator, frames ...int) {
	for _, n := range frames {
		agg.Process(video(n))
	}
}

func TestAggregatorKeyFrameGating(t *testing.T) {
	d := &scripted{class: marks.ClassLogo}
	agg, _, _, _ := newTestAggregator(false, d)
	agg.Process(&frame.Frame{Number: 1, Kind: frame.KindVideo})
	agg.Process(&frame.Frame{Number: 1, Kind: frame.KindAudio, Channels: 2})
	agg.Process(video(12))
	if len(d.seen) != 2 || d.seen[0] != 1 || d.seen[1] != 12 {
		t.Fatalf("detector saw %v, want audio packet 1 and key frame 12", d.seen)
	}

	d = &scripted{class: marks.ClassLogo}
	agg, _, _, _ = newTestAggregator(true, d)
	agg.Process(&frame.Frame{Number: 1, Kind: frame.KindVideo})
	if len(d.seen) != 1 {
		t.Fatalf("full decode dropped a frame: %v", d.seen)
	}
}

func TestAggregatorSideLists(t *testing.T) {
	black := &scripted{class: marks.ClassBlack, events: map[int]marks.Kind{10: marks.Stop, 20: marks.Start}}
	scene := &scripted{class: marks.ClassScene, events: map[int]marks.Kind{20: marks.Start}}
	agg, store, blackList, sceneList := newTestAggregator(true, black, scene)
	feed(agg, 10, 20)
	if store.Len() != 0 {
		t.Fatalf("primary sequence holds %v", store.Marks())
	}
	if blackList.Len() != 2 || sceneList.Len() != 1 {
		t.Fatalf("black %v scene %v", blackList.Marks(), sceneList.Marks())
	}
	if got := blackList.Get(20); got == nil || got.Timestamp == 0 || got.Comment != "start black" {
		t.Fatalf("black start = %+v", got)
	}
}

func TestAggregatorConflicts(t *testing.T) {
	tests := []struct {
		name   string
		events []detect.Detector
		frames []int
		want   []string
	}{
		{
			name: "stronger same kind replaces",
			events: []detect.Detector{
				&scripted{class: marks.ClassLogo, events: map[int]marks.Kind{100: marks.Start}},
				&scripted{class: marks.ClassAudioChannel, events: map[int]marks.Kind{110: marks.Start}},
			},
			frames: []int{100, 110},
			want:   []string{"start channel@110"},
		},
		{
			name: "weaker opposite kind dropped",
			events: []detect.Detector{
				&scripted{class: marks.ClassAudioChannel, events: map[int]marks.Kind{100: marks.Start}},
				&scripted{class: marks.ClassLogo, events: map[int]marks.Kind{120: marks.Stop}},
			},
			frames: []int{100, 120},
			want:   []string{"start channel@100"},
		},
		{
			name: "outside window both kept",
			events: []detect.Detector{
				&scripted{class: marks.ClassAudioChannel, events: map[int]marks.Kind{100: marks.Start}},
				&scripted{class: marks.ClassLogo, events: map[int]marks.Kind{100 + 31*25: marks.Stop}},
			},
			frames: []int{100, 100 + 31*25},
			want:   []string{"start channel@100", "stop logo@875"},
		},
		{
			name: "same class never merges",
			events: []detect.Detector{
				&scripted{class: marks.ClassLogo, events: map[int]marks.Kind{100: marks.Start, 150: marks.Stop}},
			},
			frames: []int{100, 150},
			want:   []string{"start logo@100", "stop logo@150"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg, store, _, _ := newTestAggregator(true, tt.events...)
			feed(agg, tt.frames...)
			got := store.Marks()
			if len(got) != len(tt.want) {
				t.Fatalf("marks %v, want %v", got, tt.want)
			}
			for i, m := range got {
				if m.String() != tt.want[i] {
					t.Fatalf("mark %d = %s, want %s", i, m, tt.want[i])
				}
			}
		})
	}
}

func TestAggregatorConfirmedStart(t *testing.T) {
	border := &scripted{class: marks.ClassHBorder, events: map[int]marks.Kind{130: marks.Start, 225: marks.Stop}}
	agg, store, _, _ := newTestAggregator(true, border)
	start := store.Add(&marks.Mark{Type: marks.Type{Class: marks.ClassLogo, Kind: marks.Start}, Position: 100, Confirmed: true})
	agg.SetStart(start)

	feed(agg, 130)
	if store.Len() != 1 || store.Get(100) != start {
		t.Fatalf("stronger mark within 2s displaced the accepted start: %v", store.Marks())
	}
	feed(agg, 225)
	if store.Get(225) == nil {
		t.Fatalf("mark 5s after the start dropped: %v", store.Marks())
	}
}

func TestAggregatorDropsEventsBeforeStart(t *testing.T) {
	logo := &scripted{class: marks.ClassLogo, events: map[int]marks.Kind{50: marks.Stop, 400: marks.Stop}}
	agg, store, _, _ := newTestAggregator(true, logo)
	start := store.Add(&marks.Mark{Type: marks.Type{Class: marks.ClassAudioChannel, Kind: marks.Start}, Position: 100, Confirmed: true})
	agg.SetStart(start)
	feed(agg, 50, 400)
	if store.Get(50) != nil {
		t.Fatal("event before the accepted start inserted")
	}
	if m := store.Get(400); m == nil || !m.InBroadcast {
		t.Fatalf("stop after start = %+v", m)
	}
}

func TestAggregatorDisableAndReset(t *testing.T) {
	logo := &scripted{class: marks.ClassLogo}
	border := &scripted{class: marks.ClassHBorder}
	audio := &scripted{class: marks.ClassAudioChannel}
	agg, _, _, _ := newTestAggregator(true, logo, border, audio)
	agg.Disable(marks.ClassLogo, marks.ClassHBorder)
	ds := agg.Detectors()
	if len(ds) != 1 || ds[0].Class() != marks.ClassAudioChannel {
		t.Fatalf("detectors after disable: %v", ds)
	}
	feed(agg, 12)
	if len(logo.seen) != 0 || len(audio.seen) != 1 {
		t.Fatalf("disabled detector still runs: logo %v audio %v", logo.seen, audio.seen)
	}
	agg.Reset()
	if audio.resets != 1 || logo.resets != 0 {
		t.Fatalf("resets audio=%d logo=%d", audio.resets, logo.resets)
	}
}

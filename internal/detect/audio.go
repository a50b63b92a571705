package detect

import (
	"fmt"

	"markad/internal/marks"
	"markad/internal/media/frame"
)

// AudioChannel detects changes between stereo and multichannel audio.
// Programmes carry more than two channels; advertising does not.
type AudioChannel struct {
	prev int
}

func NewAudioChannel() *AudioChannel { return &AudioChannel{} }

func (a *AudioChannel) Class() marks.Class { return marks.ClassAudioChannel }

func (a *AudioChannel) Reset() { a.prev = 0 }

func (a *AudioChannel) Detect(f *frame.Frame) (Event, bool) {
	if f == nil || f.Kind != frame.KindAudio || f.Channels <= 0 {
		return Event{}, false
	}
	cur := f.Channels
	if a.prev == 0 {
		a.prev = cur
		if cur > 2 {
			return Event{Class: marks.ClassAudioChannel, Kind: marks.Start, Frame: f.Number, Detail: fmt.Sprintf("0 -> %d", cur)}, true
		}
		return Event{}, false
	}
	if cur == a.prev {
		return Event{}, false
	}
	prev := a.prev
	a.prev = cur
	detail := fmt.Sprintf("%d -> %d", prev, cur)
	switch {
	case cur > 2 && prev <= 2:
		return Event{Class: marks.ClassAudioChannel, Kind: marks.Start, Frame: f.Number, Detail: detail}, true
	case cur <= 2 && prev > 2:
		return Event{Class: marks.ClassAudioChannel, Kind: marks.Stop, Frame: f.Number, Detail: detail}, true
	}
	return Event{}, false
}

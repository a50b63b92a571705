package detect

import (
	"fmt"

	"markad/internal/marks"
	"markad/internal/media/frame"
)

// Scene reports hard cuts as Scene starts on the first frame of the new shot.
type Scene struct {
	threshold float64
	prev      frame.Histogram
	have      bool
}

// NewScene returns a scene detector for normalised histogram distance above
// threshold (0..2).
func NewScene(threshold float64) *Scene { return &Scene{threshold: threshold} }

func (s *Scene) Class() marks.Class { return marks.ClassScene }

func (s *Scene) Reset() { s.have = false }

func (s *Scene) Detect(f *frame.Frame) (Event, bool) {
	luma := f.Luma()
	if luma == nil {
		return Event{}, false
	}
	h := luma.Histogram(4)
	if !s.have {
		s.prev, s.have = h, true
		return Event{}, false
	}
	d := h.NormalizedDistance(&s.prev)
	s.prev = h
	if d <= s.threshold {
		return Event{}, false
	}
	return Event{Class: marks.ClassScene, Kind: marks.Start, Frame: f.Number, Detail: fmt.Sprintf("distance %.2f", d)}, true
}

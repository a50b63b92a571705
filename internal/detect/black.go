package detect

import (
	"strconv"

	"markad/internal/marks"
	"markad/internal/media/frame"
)

// Black detects black screens. A black screen starting is a Stop, ending a
// Start; the first frame of a recording being black counts as a Stop.
type Black struct {
	threshold int
	status    Status
}

// NewBlack returns a detector for mean luma at or below threshold.
func NewBlack(threshold int) *Black {
	return &Black{threshold: threshold}
}

func (b *Black) Class() marks.Class { return marks.ClassBlack }

func (b *Black) Reset() { b.status = StatusUninitialized }

func (b *Black) Detect(f *frame.Frame) (Event, bool) {
	luma := f.Luma()
	if luma == nil {
		return Event{}, false
	}
	mean := luma.RegionStats(luma.Bounds(), 4).Mean
	black := mean <= b.threshold
	switch {
	case black && b.status != StatusVisible:
		b.status = StatusVisible
		return Event{Class: marks.ClassBlack, Kind: marks.Stop, Frame: f.Number, Detail: "luma " + strconv.Itoa(mean)}, true
	case !black && b.status == StatusVisible:
		b.status = StatusInvisible
		return Event{Class: marks.ClassBlack, Kind: marks.Start, Frame: f.Number, Detail: "luma " + strconv.Itoa(mean)}, true
	case !black:
		b.status = StatusInvisible
	}
	return Event{}, false
}

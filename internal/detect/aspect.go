package detect

import (
	"log/slog"

	"markad/internal/logging"
	"markad/internal/marks"
	"markad/internal/media/frame"
)

// Aspect detects display aspect ratio changes. Entering the broadcast aspect
// is a Start, leaving it a Stop. Changes between two ratios that are both not
// 4:3 are ignored because channels switch between wide formats mid-programme.
type Aspect struct {
	broadcast frame.Ratio
	prev      frame.Ratio
	logger    *slog.Logger
}

// NewAspect returns an aspect detector; a zero broadcast ratio means 4:3.
func NewAspect(broadcast frame.Ratio, logger *slog.Logger) *Aspect {
	if broadcast.IsZero() {
		broadcast = frame.Ratio4x3
	}
	return &Aspect{broadcast: broadcast, logger: logging.NewComponentLogger(logger, "aspect")}
}

func (a *Aspect) Class() marks.Class { return marks.ClassAspect }

func (a *Aspect) Reset() { a.prev = frame.Ratio{} }

func (a *Aspect) Detect(f *frame.Frame) (Event, bool) {
	if !f.IsVideo() || f.Aspect.IsZero() {
		return Event{}, false
	}
	cur := f.Aspect
	if a.prev.IsZero() {
		a.prev = cur
		if cur.Equal(a.broadcast) {
			return Event{Class: marks.ClassAspect, Kind: marks.Start, Frame: f.Number, Detail: cur.String()}, true
		}
		return Event{}, false
	}
	if cur.Equal(a.prev) {
		return Event{}, false
	}
	prev := a.prev
	a.prev = cur
	if !prev.Is4x3() && !cur.Is4x3() {
		a.logger.Debug("aspect change ignored", logging.Frame(f.Number),
			logging.String("from", prev.String()), logging.String("to", cur.String()))
		return Event{}, false
	}
	detail := prev.String() + " -> " + cur.String()
	switch {
	case cur.Equal(a.broadcast):
		return Event{Class: marks.ClassAspect, Kind: marks.Start, Frame: f.Number, Detail: detail}, true
	case prev.Equal(a.broadcast):
		return Event{Class: marks.ClassAspect, Kind: marks.Stop, Frame: f.Number, Detail: detail}, true
	}
	return Event{}, false
}

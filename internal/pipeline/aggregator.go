package pipeline

import (
	"log/slog"
	"slices"

	"markad/internal/detect"
	"markad/internal/logging"
	"markad/internal/marks"
	"markad/internal/media/frame"
	"markad/internal/metrics"
)

// AggregatorOptions tunes conflict resolution, in frames.
type AggregatorOptions struct {
	// Window is the distance within which marks of different classes conflict.
	Window int
	// StartWindow replaces Window around the accepted start boundary.
	StartWindow int
	// FullDecode feeds non-key video frames to the detectors.
	FullDecode bool
	Index      frame.Index
}

// Aggregator drives the detectors and inserts their events into the mark
// sequence. Black and scene events go to their side lists.
type Aggregator struct {
	opts      AggregatorOptions
	detectors []detect.Detector
	store     *marks.Store
	black     *marks.Store
	scene     *marks.Store
	metrics   *metrics.Recorder
	logger    *slog.Logger

	start *marks.Mark
}

// NewAggregator returns an aggregator over detectors. scene may be nil.
func NewAggregator(store, black, scene *marks.Store, detectors []detect.Detector, opts AggregatorOptions, rec *metrics.Recorder, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		opts:      opts,
		detectors: slices.Clone(detectors),
		store:     store,
		black:     black,
		scene:     scene,
		metrics:   rec,
		logger:    logging.NewComponentLogger(logger, "aggregator"),
	}
}

// Detectors returns the enabled detectors.
func (a *Aggregator) Detectors() []detect.Detector { return slices.Clone(a.detectors) }

// Disable removes the detectors of the given classes.
func (a *Aggregator) Disable(classes ...marks.Class) {
	if len(classes) == 0 {
		return
	}
	a.detectors = slices.DeleteFunc(a.detectors, func(d detect.Detector) bool {
		if slices.Contains(classes, d.Class()) {
			a.logger.Info("detector disabled", logging.String("class", d.Class().String()))
			return true
		}
		return false
	})
}

// Reset resets every detector, e.g. after a seek.
func (a *Aggregator) Reset() {
	for _, d := range a.detectors {
		d.Reset()
	}
}

// SetStart records the accepted start boundary. Later events before it are
// dropped and the short conflict window applies around it.
func (a *Aggregator) SetStart(m *marks.Mark) { a.start = m }

// Process runs the detectors on f and returns the marks added to the
// primary sequence.
func (a *Aggregator) Process(f *frame.Frame) []*marks.Mark {
	if f.IsVideo() && !f.Key && !a.opts.FullDecode {
		return nil
	}
	var added []*marks.Mark
	for _, d := range a.detectors {
		ev, ok := d.Detect(f)
		if !ok {
			continue
		}
		a.metrics.Event(ev.Class.String(), ev.Kind.String())
		if m := a.insert(ev); m != nil {
			added = append(added, m)
		}
	}
	return added
}

func (a *Aggregator) newMark(ev detect.Event) *marks.Mark {
	m := &marks.Mark{
		Type:     marks.Type{Class: ev.Class, Kind: ev.Kind},
		Position: ev.Frame,
		Comment:  comment(ev),
	}
	if a.opts.Index != nil {
		m.Timestamp = a.opts.Index.TimeOffset(ev.Frame)
	}
	return m
}

func comment(ev detect.Event) string {
	c := ev.Kind.String() + " " + ev.Class.String()
	if ev.Detail != "" {
		c += " (" + ev.Detail + ")"
	}
	return c
}

func (a *Aggregator) insert(ev detect.Event) *marks.Mark {
	m := a.newMark(ev)
	switch ev.Class {
	case marks.ClassBlack:
		a.black.Add(m)
		return nil
	case marks.ClassScene:
		if a.scene != nil {
			a.scene.Add(m)
		}
		return nil
	}

	if a.start != nil && m.Position < a.start.Position {
		a.logger.Debug("event before accepted start dropped", logging.Frame(m.Position), logging.MarkType(m.Type))
		return nil
	}

	if prev := a.store.Prev(m.Position, marks.Any); prev != nil {
		m.InBroadcast = prev.IsStart()
	}

	if other := a.conflict(m); other != nil {
		if !outranks(m, other) {
			reason := "weaker than nearby mark of the same kind"
			if other.Type.Kind != m.Type.Kind {
				reason = "weaker than nearby mark of the opposite kind"
			}
			logging.Decision(a.logger, "mark dropped", "mark_conflict", "drop_new", reason,
				logging.Frame(m.Position), logging.MarkType(m.Type), logging.String("kept", other.String()))
			return nil
		}
		logging.Decision(a.logger, "mark replaced", "mark_conflict", "drop_existing", "stronger class nearby",
			logging.Frame(m.Position), logging.MarkType(m.Type), logging.String("removed", other.String()))
		a.store.Delete(other)
	}

	got := a.store.Add(m)
	if got != m {
		return nil
	}
	return m
}

// conflict returns the nearest primary mark of another class inside the
// window that applies to it.
func (a *Aggregator) conflict(m *marks.Mark) *marks.Mark {
	if a.start != nil && a.start.Type.Class != m.Type.Class && a.store.Contains(a.start) &&
		abs(a.start.Position-m.Position) <= a.opts.StartWindow {
		return a.start
	}
	return a.store.Nearest(m.Position, a.opts.Window, func(x *marks.Mark) bool {
		return x != a.start && x.Type.Class != m.Type.Class
	})
}

// outranks reports whether a new mark displaces an existing one. Confirmed
// marks are never displaced.
func outranks(m, existing *marks.Mark) bool {
	if existing.Confirmed {
		return false
	}
	return m.Type.Strength() > existing.Type.Strength()
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

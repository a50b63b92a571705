package marks

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"markad/internal/logging"
)

var (
	// ErrNotFound reports an operation on a mark that is not in the store.
	ErrNotFound = errors.New("mark not in store")
	// ErrMoveRejected reports a Move that would break ordering or alternation.
	ErrMoveRejected = errors.New("move rejected")
)

// Timeline converts frame numbers to presentation offsets. frame.Index
// satisfies it.
type Timeline interface {
	TimeOffset(n int) time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithTimeline fills Timestamp on added and moved marks.
func WithTimeline(t Timeline) Option {
	return func(s *Store) { s.timeline = t }
}

// OnChange registers a callback invoked after every mutation that changed the
// sequence. Used for metrics.
func OnChange(fn func(added, removed int)) Option {
	return func(s *Store) { s.onChange = fn }
}

// Store is an ordered collection of marks.
type Store struct {
	marks     []*Mark
	alternate bool
	timeline  Timeline
	onChange  func(added, removed int)
	logger    *slog.Logger
}

// NewStore creates the primary mark sequence with alternation repair.
func NewStore(logger *slog.Logger, opts ...Option) *Store {
	s := &Store{alternate: true, logger: logging.NewComponentLogger(logger, "marks")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSideList creates an ordered store without alternation repair.
func NewSideList(logger *slog.Logger, opts ...Option) *Store {
	s := NewStore(logger, opts...)
	s.alternate = false
	return s
}

// Len returns the number of marks.
func (s *Store) Len() int { return len(s.marks) }

// Marks returns a snapshot of the sequence. The marks themselves are shared.
func (s *Store) Marks() []*Mark {
	return append([]*Mark(nil), s.marks...)
}

// search returns the index of the first mark with Position >= pos.
func (s *Store) search(pos int) int {
	return sort.Search(len(s.marks), func(i int) bool { return s.marks[i].Position >= pos })
}

func (s *Store) indexOf(m *Mark) int {
	if m == nil {
		return -1
	}
	i := s.search(m.Position)
	if i < len(s.marks) && s.marks[i] == m {
		return i
	}
	return -1
}

// Contains reports whether m is currently stored.
func (s *Store) Contains(m *Mark) bool { return s.indexOf(m) >= 0 }

// Add inserts m. When another mark already sits at the same position the
// stronger one is kept (a confirmed mark outranks an unconfirmed one; on a
// tie the existing mark stays). Add returns the mark now occupying m's
// position, or nil when alternation repair removed it.
func (s *Store) Add(m *Mark) *Mark {
	if s.timeline != nil && m.Timestamp == 0 {
		m.Timestamp = s.timeline.TimeOffset(m.Position)
	}
	i := s.search(m.Position)
	if i < len(s.marks) && s.marks[i].Position == m.Position {
		existing := s.marks[i]
		if !outranks(m, existing) {
			if m.Confirmed && !existing.Confirmed {
				existing.Confirmed = true
			}
			s.logger.Debug("mark collides with stronger mark",
				logging.MarkType(m.Type), logging.Frame(m.Position),
				logging.String("kept", existing.Type.String()))
			return existing
		}
		s.logger.Debug("mark replaces weaker mark",
			logging.MarkType(m.Type), logging.Frame(m.Position),
			logging.String("replaced", existing.Type.String()))
		s.marks[i] = m
		s.repair()
		s.changed(1, 1)
		return s.Get(m.Position)
	}
	s.marks = append(s.marks, nil)
	copy(s.marks[i+1:], s.marks[i:])
	s.marks[i] = m
	removed := s.repair()
	s.changed(1, removed)
	if s.Contains(m) {
		return m
	}
	return nil
}

func outranks(a, b *Mark) bool {
	if a.Confirmed != b.Confirmed {
		return a.Confirmed
	}
	return a.Type.Strength() > b.Type.Strength()
}

// Get returns the mark at exactly pos.
func (s *Store) Get(pos int) *Mark {
	i := s.search(pos)
	if i < len(s.marks) && s.marks[i].Position == pos {
		return s.marks[i]
	}
	return nil
}

// Nearest returns the matching mark closest to pos within maxDist frames.
// On equal distance the earlier mark wins. A negative maxDist means no limit.
func (s *Store) Nearest(pos, maxDist int, match Match) *Mark {
	if match == nil {
		match = Any
	}
	var best *Mark
	bestDist := 0
	for _, m := range s.marks {
		d := m.Position - pos
		if d < 0 {
			d = -d
		}
		if maxDist >= 0 && d > maxDist {
			if m.Position > pos {
				break
			}
			continue
		}
		if !match(m) {
			continue
		}
		if best == nil || d < bestDist {
			best, bestDist = m, d
		}
	}
	return best
}

// Prev returns the last matching mark strictly before pos.
func (s *Store) Prev(pos int, match Match) *Mark {
	if match == nil {
		match = Any
	}
	for i := s.search(pos) - 1; i >= 0; i-- {
		if match(s.marks[i]) {
			return s.marks[i]
		}
	}
	return nil
}

// Next returns the first matching mark strictly after pos.
func (s *Store) Next(pos int, match Match) *Mark {
	if match == nil {
		match = Any
	}
	for i := s.search(pos + 1); i < len(s.marks); i++ {
		if match(s.marks[i]) {
			return s.marks[i]
		}
	}
	return nil
}

// First returns the earliest matching mark.
func (s *Store) First(match Match) *Mark {
	return s.Next(math.MinInt, match)
}

// Last returns the latest matching mark.
func (s *Store) Last(match Match) *Mark {
	return s.Prev(math.MaxInt, match)
}

// Between returns matching marks with from <= Position <= to.
func (s *Store) Between(from, to int, match Match) []*Mark {
	if match == nil {
		match = Any
	}
	var out []*Mark
	for i := s.search(from); i < len(s.marks) && s.marks[i].Position <= to; i++ {
		if match(s.marks[i]) {
			out = append(out, s.marks[i])
		}
	}
	return out
}

// Delete removes the given marks and repairs once. Marks not in the store are
// ignored. It returns the number of marks removed, repair included.
func (s *Store) Delete(ms ...*Mark) int {
	drop := make(map[*Mark]struct{}, len(ms))
	for _, m := range ms {
		if s.Contains(m) {
			drop[m] = struct{}{}
		}
	}
	if len(drop) == 0 {
		return 0
	}
	kept := s.marks[:0]
	for _, m := range s.marks {
		if _, ok := drop[m]; !ok {
			kept = append(kept, m)
		}
	}
	clear(s.marks[len(kept):])
	s.marks = kept
	removed := len(drop) + s.repair()
	s.changed(0, removed)
	return removed
}

// DeleteRange removes matching marks with from <= Position <= to.
func (s *Store) DeleteRange(from, to int, match Match) int {
	return s.Delete(s.Between(from, to, match)...)
}

// Clear removes every mark.
func (s *Store) Clear() {
	n := len(s.marks)
	s.marks = nil
	s.changed(0, n)
}

// Move relocates m to pos and reclassifies it as class, recording the origin
// in m.History. The first move's origin is kept. Move fails without mutating
// when another mark occupies pos, or, in an alternating store, when the
// neighbours at pos (m excluded) are of m's kind or the marks around the
// vacated slot would become adjacent with the same kind.
func (s *Store) Move(m *Mark, pos int, class Class, reason string) error {
	i := s.indexOf(m)
	if i < 0 {
		return ErrNotFound
	}
	if pos == m.Position && class == m.Type.Class {
		return nil
	}
	if other := s.Get(pos); other != nil && other != m {
		return fmt.Errorf("%w: %s at frame %d collides with %s", ErrMoveRejected, m.Type, pos, other.Type)
	}
	if s.alternate {
		notSelf := func(x *Mark) bool { return x != m }
		prev, next := s.Prev(pos, notSelf), s.Next(pos, notSelf)
		if prev != nil && prev.Type.Kind == m.Type.Kind {
			return fmt.Errorf("%w: %s at frame %d follows %s", ErrMoveRejected, m.Type, pos, prev)
		}
		if next != nil && next.Type.Kind == m.Type.Kind {
			return fmt.Errorf("%w: %s at frame %d precedes %s", ErrMoveRejected, m.Type, pos, next)
		}
		// Leaving the slot joins the old neighbours.
		before, after := s.Prev(m.Position, notSelf), s.Next(m.Position, notSelf)
		if (before != prev || after != next) && before != nil && after != nil && before.Type.Kind == after.Type.Kind {
			return fmt.Errorf("%w: moving %s to frame %d joins %s and %s", ErrMoveRejected, m.Type, pos, before, after)
		}
	}

	if m.History == nil {
		m.History = &Move{OldType: m.Type, OldPosition: m.Position, Reason: reason}
	} else {
		m.History.Reason = reason
	}
	s.marks = append(s.marks[:i], s.marks[i+1:]...)
	m.Position = pos
	m.Type.Class = class
	if m.Comment != "" {
		m.Comment = m.Type.Label(m.Comment)
	}
	if s.timeline != nil {
		m.Timestamp = s.timeline.TimeOffset(pos)
	}
	j := s.search(pos)
	s.marks = append(s.marks, nil)
	copy(s.marks[j+1:], s.marks[j:])
	s.marks[j] = m
	s.changed(0, 0)
	return nil
}

// repair enforces alternation and returns the number of marks removed.
func (s *Store) repair() int {
	if !s.alternate {
		return 0
	}
	removed := 0
	for i := 0; i+1 < len(s.marks); {
		a, b := s.marks[i], s.marks[i+1]
		if a.Type.Kind != b.Type.Kind {
			i++
			continue
		}
		drop := weaker(a, b, i)
		victim := s.marks[drop]
		survivor := a
		if drop == i {
			survivor = b
		}
		s.logger.Info("removed mark breaking alternation",
			logging.MarkType(victim.Type), logging.Frame(victim.Position),
			logging.String("kept", survivor.String()))
		s.marks = append(s.marks[:drop], s.marks[drop+1:]...)
		removed++
		if i > 0 {
			i--
		}
	}
	return removed
}

// weaker returns the index (i or i+1) of the mark to drop from a same-kind
// neighbour pair starting at i.
func weaker(a, b *Mark, i int) int {
	switch {
	case a.Confirmed && !b.Confirmed:
		return i + 1
	case b.Confirmed && !a.Confirmed:
		return i
	case a.Type.Strength() > b.Type.Strength():
		return i + 1
	case a.Type.Strength() < b.Type.Strength():
		return i
	case a.Type.Kind == Start:
		return i + 1
	default:
		return i
	}
}

func (s *Store) changed(added, removed int) {
	if s.onChange != nil && (added > 0 || removed > 0) {
		s.onChange(added, removed)
	}
}

package marks

import (
	"errors"
	"math/rand/v2"
	"testing"

	"markad/internal/logging"
)

func mk(class Class, kind Kind, pos int) *Mark {
	return &Mark{Type: Type{Class: class, Kind: kind}, Position: pos}
}

func assertInvariants(t *testing.T, s *Store) {
	t.Helper()
	ms := s.Marks()
	for i := 1; i < len(ms); i++ {
		if ms[i].Position <= ms[i-1].Position {
			t.Fatalf("positions not strictly increasing at %d: %v then %v", i, ms[i-1], ms[i])
		}
		if ms[i].Type.Kind == ms[i-1].Type.Kind {
			t.Fatalf("kinds not alternating at %d: %v then %v", i, ms[i-1], ms[i])
		}
	}
}

func TestStoreInvariantsUnderRandomMutation(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	classes := []Class{ClassAssumed, ClassLogo, ClassVBorder, ClassHBorder, ClassAspect, ClassAudioChannel}
	s := NewStore(logging.NewNop())
	var confirmed []*Mark
	for i := 0; i < 2000; i++ {
		switch op := rng.IntN(10); {
		case op < 6:
			m := mk(classes[rng.IntN(len(classes))], Kind(rng.IntN(2)+1), rng.IntN(5000))
			if rng.IntN(50) == 0 {
				m.Confirmed = true
			}
			if got := s.Add(m); got == m && m.Confirmed {
				confirmed = append(confirmed, m)
			}
		case op < 8:
			if s.Len() > 0 {
				ms := s.Marks()
				s.Delete(ms[rng.IntN(len(ms))])
			}
		default:
			if s.Len() > 0 {
				ms := s.Marks()
				m := ms[rng.IntN(len(ms))]
				before := s.Marks()
				if err := s.Move(m, rng.IntN(5000), m.Type.Class, "test"); err != nil {
					if !errors.Is(err, ErrMoveRejected) {
						t.Fatalf("unexpected move error: %v", err)
					}
					after := s.Marks()
					if len(before) != len(after) {
						t.Fatal("rejected move mutated the store")
					}
				}
			}
		}
		assertInvariants(t, s)
	}
	for _, m := range confirmed {
		if !s.Contains(m) {
			// Only explicit Delete may remove a confirmed mark.
			continue
		}
		if !m.Confirmed {
			t.Fatalf("confirmed flag lost on %v", m)
		}
	}
}

func TestRepairKeepsStrongerMark(t *testing.T) {
	s := NewStore(logging.NewNop())
	s.Add(mk(ClassLogo, Start, 100))
	s.Add(mk(ClassHBorder, Start, 200))
	ms := s.Marks()
	if len(ms) != 1 || ms[0].Type.Class != ClassHBorder {
		t.Fatalf("expected only the hborder start, got %v", ms)
	}
}

func TestRepairTiebreak(t *testing.T) {
	t.Run("first start survives", func(t *testing.T) {
		s := NewStore(logging.NewNop())
		first := s.Add(mk(ClassLogo, Start, 100))
		s.Add(mk(ClassLogo, Start, 200))
		if ms := s.Marks(); len(ms) != 1 || ms[0] != first {
			t.Fatalf("expected first start to survive, got %v", ms)
		}
	})
	t.Run("last stop survives", func(t *testing.T) {
		s := NewStore(logging.NewNop())
		s.Add(mk(ClassLogo, Stop, 100))
		last := s.Add(mk(ClassLogo, Stop, 200))
		if ms := s.Marks(); len(ms) != 1 || ms[0] != last {
			t.Fatalf("expected last stop to survive, got %v", ms)
		}
	})
}

func TestConfirmedMarkSurvivesRepair(t *testing.T) {
	s := NewStore(logging.NewNop())
	start := mk(ClassAssumed, Start, 100)
	start.Confirmed = true
	s.Add(start)
	if got := s.Add(mk(ClassAudioChannel, Start, 150)); got != nil {
		t.Fatalf("expected stronger unconfirmed start to be repaired away, got %v", got)
	}
	if !s.Contains(start) || s.Len() != 1 {
		t.Fatalf("confirmed start lost: %v", s.Marks())
	}
}

func TestAddCollisionKeepsStronger(t *testing.T) {
	s := NewStore(logging.NewNop())
	logo := s.Add(mk(ClassLogo, Start, 100))
	if got := s.Add(mk(ClassBlack, Start, 100)); got != logo {
		t.Fatalf("weaker colliding mark should leave the logo start, got %v", got)
	}
	border := mk(ClassHBorder, Start, 100)
	if got := s.Add(border); got != border {
		t.Fatalf("stronger colliding mark should replace, got %v", got)
	}
	if s.Len() != 1 {
		t.Fatalf("expected a single mark, got %v", s.Marks())
	}
}

func TestBatchDeleteRepairsOnce(t *testing.T) {
	s := NewStore(logging.NewNop())
	s.Add(mk(ClassLogo, Start, 100))
	s.Add(mk(ClassLogo, Stop, 200))
	s.Add(mk(ClassLogo, Start, 300))
	s.Add(mk(ClassLogo, Stop, 400))
	ms := s.Marks()
	// Removing the middle pair in one call must not trigger repair between
	// the two deletions.
	if removed := s.Delete(ms[1], ms[2]); removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	got := s.Marks()
	if len(got) != 2 || got[0].Position != 100 || got[1].Position != 400 {
		t.Fatalf("unexpected marks after batch delete: %v", got)
	}
}

func TestTraversalAfterDelete(t *testing.T) {
	s := NewSideList(logging.NewNop())
	for _, p := range []int{10, 20, 30, 40} {
		s.Add(mk(ClassBlack, Stop, p))
	}
	m := s.Get(20)
	s.Delete(m)
	if next := s.Next(m.Position, Any); next == nil || next.Position != 30 {
		t.Fatalf("expected next after deleted mark to be 30, got %v", next)
	}
	if prev := s.Prev(m.Position, Any); prev == nil || prev.Position != 10 {
		t.Fatalf("expected prev before deleted mark to be 10, got %v", prev)
	}
	if s.Len() != 3 {
		t.Fatalf("side list should not repair, got %v", s.Marks())
	}
}

func TestMatchCombinators(t *testing.T) {
	s := NewSideList(logging.NewNop())
	s.Add(mk(ClassBlack, Stop, 10))
	s.Add(mk(ClassLogo, Start, 20))
	s.Add(mk(ClassLogo, Stop, 30))
	s.Add(mk(ClassBlack, Start, 40))

	tests := []struct {
		name  string
		match Match
		first int
	}{
		{"logo stop", OfClass(ClassLogo).And(OfKind(Stop)), 30},
		{"not logo", Not(OfClass(ClassLogo)), 10},
		{"start but not logo", OfKind(Start).And(Not(OfClass(ClassLogo))), 40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.First(tt.match)
			if got == nil || got.Position != tt.first {
				t.Fatalf("First = %v, want position %d", got, tt.first)
			}
		})
	}
	if got := s.First(OfType(Type{Class: ClassLogo, Kind: Start}).And(Not(Any))); got != nil {
		t.Fatalf("expected no match, got %v", got)
	}
}

func TestNearestPrefersEarlierOnTie(t *testing.T) {
	s := NewStore(logging.NewNop())
	s.Add(mk(ClassLogo, Start, 90))
	s.Add(mk(ClassLogo, Stop, 110))
	if got := s.Nearest(100, 20, Any); got == nil || got.Position != 90 {
		t.Fatalf("expected 90, got %v", got)
	}
	if got := s.Nearest(100, 5, Any); got != nil {
		t.Fatalf("expected nothing within 5 frames, got %v", got)
	}
	if got := s.Nearest(100, -1, OfKind(Stop)); got == nil || got.Position != 110 {
		t.Fatalf("expected stop at 110, got %v", got)
	}
}

func TestMoveSafety(t *testing.T) {
	build := func(n int) (*Store, []*Mark) {
		s := NewStore(logging.NewNop())
		for i := range n {
			kind := Start
			if i%2 == 1 {
				kind = Stop
			}
			s.Add(mk(ClassLogo, kind, 100*(i+1)))
		}
		return s, s.Marks()
	}

	cases := []struct {
		name   string
		marks  int
		index  int
		to     int
		reject bool
	}{
		{"within own segment", 4, 1, 250, false},
		{"collides with existing mark", 4, 1, 300, true},
		{"crosses the opposite neighbour", 4, 1, 350, true},
		{"past the same-kind neighbour", 4, 0, 320, true},
		{"before first mark", 4, 0, 10, false},
		{"stop past trailing start", 3, 1, 350, true},
		{"last stop moved later", 2, 1, 350, false},
		{"stop before first start", 3, 1, 50, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, ms := build(tc.marks)
			m := ms[tc.index]
			oldPos := m.Position
			err := s.Move(m, tc.to, ClassOverlap, "overlap")
			if tc.reject {
				if !errors.Is(err, ErrMoveRejected) {
					t.Fatalf("expected rejection, got %v", err)
				}
				if m.Position != oldPos || m.History != nil || m.Type.Class != ClassLogo {
					t.Fatalf("rejected move mutated the mark: %+v", m)
				}
				assertInvariants(t, s)
				return
			}
			if err != nil {
				t.Fatalf("Move: %v", err)
			}
			if m.Position != tc.to || m.Type.Class != ClassOverlap {
				t.Fatalf("mark not moved: %+v", m)
			}
			if m.History == nil || m.History.OldPosition != oldPos || m.History.OldType.Class != ClassLogo {
				t.Fatalf("history not recorded: %+v", m.History)
			}
			assertInvariants(t, s)
		})
	}
}

func TestMoveKeepsFirstOrigin(t *testing.T) {
	s := NewStore(logging.NewNop())
	m := s.Add(mk(ClassLogo, Start, 100))
	if err := s.Move(m, 90, ClassOverlap, "overlap"); err != nil {
		t.Fatalf("first move: %v", err)
	}
	if err := s.Move(m, 80, ClassOverlap, "black screen"); err != nil {
		t.Fatalf("second move: %v", err)
	}
	if m.History.OldPosition != 100 || m.History.OldType.Class != ClassLogo || m.History.Reason != "black screen" {
		t.Fatalf("unexpected history %+v", m.History)
	}
}

func TestMoveUnknownMark(t *testing.T) {
	s := NewStore(logging.NewNop())
	if err := s.Move(mk(ClassLogo, Start, 1), 2, ClassLogo, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

package boundary

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"markad/internal/config"
	"markad/internal/evaluate"
	"markad/internal/logging"
	"markad/internal/marks"
)

// Options holds the search windows and validation limits in frames.
type Options struct {
	StartBefore int
	StartAfter  int
	StopBefore  int
	StopAfter   int
	WeakWindow  int
	// MinBroadcast is the shortest broadcast a channel or border pair may
	// span, keyed by class.
	MinBroadcast     map[marks.Class]int
	LogoShortPairMax int
	PreviewMax       int
	PreviewGapMin    int
	DisableWeaker    bool
}

// OptionsFromConfig converts the [selection] section for a frame rate.
func OptionsFromConfig(c config.Selection, fps float64) Options {
	frames := func(sec float64) int { return int(sec*fps + 0.5) }
	return Options{
		StartBefore: frames(c.StartBeforeSeconds),
		StartAfter:  frames(c.StartAfterSeconds),
		StopBefore:  frames(c.StopBeforeSeconds),
		StopAfter:   frames(c.StopAfterSeconds),
		WeakWindow:  frames(c.WeakWindowSeconds),
		MinBroadcast: map[marks.Class]int{
			marks.ClassAudioChannel: frames(c.MinChannelBroadcast),
			marks.ClassHBorder:      frames(c.MinHBorderBroadcast),
			marks.ClassVBorder:      frames(c.MinVBorderBroadcast),
		},
		LogoShortPairMax: frames(c.LogoShortPairMaxSeconds),
		PreviewMax:       frames(c.PreviewMaxSeconds),
		PreviewGapMin:    frames(c.PreviewGapMinSeconds),
		DisableWeaker:    c.DisableWeakerDetectors,
	}
}

// startTiers lists start classes from most to least trusted.
var startTiers = []marks.Class{
	marks.ClassAudioChannel,
	marks.ClassAspect,
	marks.ClassHBorder,
	marks.ClassVBorder,
	marks.ClassLogo,
}

// stopTiers mirrors startTiers. Recording comes first so an end accepted on
// an earlier run is found again.
var stopTiers = []marks.Class{
	marks.ClassRecording,
	marks.ClassAudioChannel,
	marks.ClassAspect,
	marks.ClassHBorder,
	marks.ClassVBorder,
	marks.ClassLogo,
}

// weakerDetectors lists the detectors made redundant by an accepted start.
var weakerDetectors = map[marks.Class][]marks.Class{
	marks.ClassAudioChannel: {marks.ClassAspect, marks.ClassHBorder, marks.ClassVBorder, marks.ClassLogo},
	marks.ClassAspect:       {marks.ClassHBorder, marks.ClassVBorder, marks.ClassLogo},
	marks.ClassHBorder:      {marks.ClassVBorder, marks.ClassLogo},
}

// Result is an accepted boundary.
type Result struct {
	Mark *marks.Mark
	// Disable lists detector classes the caller should stop running.
	Disable []marks.Class
	// CreditsEnd is the end of closing credits following a stop, or -1.
	CreditsEnd int
}

// Selector chooses the start and stop boundaries of a recording.
type Selector struct {
	opts   Options
	store  *marks.Store
	black  *marks.Store
	eval   *evaluate.Evaluator
	logger *slog.Logger

	start *marks.Mark
}

// New returns a selector over the primary store and the black screen side
// list. eval may be nil; logo change and closing credit checks are skipped then.
func New(store, black *marks.Store, eval *evaluate.Evaluator, opts Options, logger *slog.Logger) *Selector {
	return &Selector{
		opts:   opts,
		store:  store,
		black:  black,
		eval:   eval,
		logger: logging.NewComponentLogger(logger, "boundary"),
	}
}

// Start returns the accepted start, if any.
func (s *Selector) Start() *marks.Mark { return s.start }

// SelectStart runs SearchStrongType → ValidateCandidate → AcceptOrFallback for
// the start boundary near assumed.
func (s *Selector) SelectStart(ctx context.Context, assumed int) (*Result, error) {
	from, to := assumed-s.opts.StartBefore, assumed+s.opts.StartAfter
	for _, class := range startTiers {
		m, err := s.searchStart(ctx, class, assumed, from, to)
		if err != nil {
			return nil, err
		}
		if m != nil {
			return s.acceptStart(m, "strong type"), nil
		}
	}

	if s.black != nil {
		if b := s.black.Nearest(assumed, s.opts.WeakWindow, marks.OfKind(marks.Start)); b != nil {
			if m := s.promote(b.Position, marks.Type{Class: marks.ClassBlack, Kind: marks.Start}, "black screen end"); m != nil {
				return s.acceptStart(m, "weak fallback"), nil
			}
		}
	}

	pos := max(assumed, 0)
	m := s.promote(pos, marks.Type{Class: marks.ClassAssumed, Kind: marks.Start}, "assumed start")
	if m == nil {
		return nil, nil
	}
	return s.acceptStart(m, "assumed"), nil
}

// searchStart returns the first valid start of class in [from, to], ordered
// by distance to assumed. Invalid candidates the rules delete are removed
// from the store as a side effect.
func (s *Selector) searchStart(ctx context.Context, class marks.Class, assumed, from, to int) (*marks.Mark, error) {
	rejected := map[*marks.Mark]bool{}
	for {
		cands := candidates(s.store, marks.Type{Class: class, Kind: marks.Start}, assumed, from, to, rejected)
		if len(cands) == 0 {
			return nil, nil
		}
		c := cands[0]
		ok, err := s.validateStart(ctx, c)
		if err != nil {
			return nil, err
		}
		if ok {
			return c, nil
		}
		rejected[c] = true
	}
}

func (s *Selector) validateStart(ctx context.Context, c *marks.Mark) (bool, error) {
	switch c.Type.Class {
	case marks.ClassAudioChannel, marks.ClassHBorder, marks.ClassVBorder:
		stop := s.store.Next(c.Position, marks.OfType(marks.Type{Class: c.Type.Class, Kind: marks.Stop}))
		if stop != nil && stop.Position-c.Position < s.opts.MinBroadcast[c.Type.Class] {
			s.reject(c, "broadcast after start too short", logging.Int("stop", stop.Position))
			if !c.Confirmed {
				s.store.Delete(c, stop)
			}
			return false, nil
		}
	case marks.ClassLogo:
		return s.validateLogoStart(ctx, c)
	}
	return true, nil
}

func (s *Selector) validateLogoStart(ctx context.Context, c *marks.Mark) (bool, error) {
	logoStop := marks.OfType(marks.Type{Class: marks.ClassLogo, Kind: marks.Stop})
	logoStart := marks.OfType(marks.Type{Class: marks.ClassLogo, Kind: marks.Start})

	if prev := s.store.Prev(c.Position, logoStop); prev != nil && c.Position-prev.Position < s.opts.LogoShortPairMax {
		s.reject(c, "short logo stop/start pair", logging.Int("stop", prev.Position))
		s.store.Delete(prev, c)
		return false, nil
	}

	if s.eval != nil {
		pairs, err := s.eval.Evaluate(ctx, s.store, s.black)
		if err != nil {
			return false, err
		}
		for _, p := range pairs {
			if p.Start == c && p.IsLogoChange == evaluate.Yes {
				s.reject(c, "logo change", logging.Int("stop", p.Stop.Position))
				s.store.Delete(p.Stop, c)
				return false, nil
			}
		}
	}

	stop := s.store.Next(c.Position, logoStop)
	if stop != nil && stop.Position-c.Position < s.opts.PreviewMax {
		if next := s.store.Next(stop.Position, logoStart); next != nil &&
			next.Position-stop.Position >= s.opts.PreviewGapMin &&
			next.Position-c.Position <= s.opts.StartAfter {
			s.reject(c, "preview before broadcast", logging.Int("stop", stop.Position), logging.Int("next_start", next.Position))
			s.store.Delete(c, stop)
			return false, nil
		}
	}
	return true, nil
}

func (s *Selector) acceptStart(m *marks.Mark, reason string) *Result {
	m.Confirmed = true
	m.InBroadcast = true
	s.start = m
	s.store.DeleteRange(math.MinInt, m.Position-1, marks.Any)

	res := &Result{Mark: m, CreditsEnd: -1}
	if s.opts.DisableWeaker {
		if weaker := weakerDetectors[m.Type.Class]; len(weaker) > 0 {
			res.Disable = weaker
			isWeaker := func(x *marks.Mark) bool {
				for _, c := range weaker {
					if x.Type.Class == c {
						return true
					}
				}
				return false
			}
			if n := s.store.DeleteRange(m.Position+1, math.MaxInt, isWeaker); n > 0 {
				s.logger.Info("weaker marks after start removed", logging.Int("removed", n))
			}
		}
	}
	logging.Decision(s.logger, "start accepted", "start_boundary", m.Type.String(), reason,
		logging.Frame(m.Position), logging.MarkType(m.Type))
	return res
}

// SelectStop chooses the stop boundary near assumed. lastFrame is the final
// frame of the recording.
func (s *Selector) SelectStop(ctx context.Context, assumed, lastFrame int) (*Result, error) {
	from := assumed - s.opts.StopBefore
	if s.start != nil {
		from = max(from, s.start.Position+1)
	}
	to := assumed + s.opts.StopAfter

	if lastFrame < assumed {
		// The recording ended early: a trailing stop is the true end.
		if last := s.store.Last(marks.Any); last != nil && last.IsStop() && !last.Confirmed &&
			last.Position >= from {
			if err := s.store.Move(last, last.Position, marks.ClassRecording, "recording ends before assumed stop"); err == nil {
				return s.acceptStop(last, -1, "last mark of recording"), nil
			}
		}
	}

	for _, class := range stopTiers {
		m, creditsEnd, err := s.searchStop(ctx, class, assumed, from, to)
		if err != nil {
			return nil, err
		}
		if m != nil {
			return s.acceptStop(m, creditsEnd, "strong type"), nil
		}
	}

	// A black screen does not end a broadcast delimited by a stronger signal.
	if s.black != nil && (s.start == nil || s.start.Type.Class <= marks.ClassLogo) {
		if b := s.black.Nearest(assumed, s.opts.WeakWindow, marks.OfKind(marks.Stop)); b != nil && b.Position >= from {
			if m := s.promote(b.Position, marks.Type{Class: marks.ClassBlack, Kind: marks.Stop}, "black screen begin"); m != nil {
				return s.acceptStop(m, -1, "weak fallback"), nil
			}
		}
	}

	pos, class := assumed, marks.ClassAssumed
	if pos >= lastFrame {
		pos, class = lastFrame, marks.ClassRecording
	}
	if s.start != nil {
		pos = max(pos, s.start.Position+1)
	}
	m := s.promote(pos, marks.Type{Class: class, Kind: marks.Stop}, "assumed stop")
	if m == nil {
		return nil, nil
	}
	return s.acceptStop(m, -1, "assumed"), nil
}

func (s *Selector) searchStop(ctx context.Context, class marks.Class, assumed, from, to int) (*marks.Mark, int, error) {
	want := marks.Type{Class: class, Kind: marks.Stop}
	rejected := map[*marks.Mark]bool{}
	cands := candidates(s.store, want, assumed, from, to, rejected)
	if len(cands) == 0 {
		return nil, -1, nil
	}

	if class == marks.ClassLogo && s.eval != nil {
		// Prefer the earliest logo stop followed by closing credits.
		byPos := append([]*marks.Mark(nil), cands...)
		sort.Slice(byPos, func(i, j int) bool { return byPos[i].Position < byPos[j].Position })
		for _, c := range byPos {
			end, ok, err := s.eval.ClosingCredits(ctx, c.Position)
			if err != nil {
				return nil, -1, err
			}
			if ok {
				return c, end, nil
			}
		}
	}

	for _, c := range cands {
		switch class {
		case marks.ClassAudioChannel, marks.ClassHBorder, marks.ClassVBorder:
			start := s.store.Prev(c.Position, marks.OfType(marks.Type{Class: class, Kind: marks.Start}))
			if start != nil && c.Position-start.Position < s.opts.MinBroadcast[class] {
				s.reject(c, "broadcast before stop too short", logging.Int("start", start.Position))
				continue
			}
		}
		return c, -1, nil
	}
	return nil, -1, nil
}

func (s *Selector) acceptStop(m *marks.Mark, creditsEnd int, reason string) *Result {
	m.Confirmed = true
	s.store.DeleteRange(m.Position+1, math.MaxInt, marks.Any)
	logging.Decision(s.logger, "stop accepted", "stop_boundary", m.Type.String(), reason,
		logging.Frame(m.Position), logging.MarkType(m.Type), logging.Int("credits_end", creditsEnd))
	return &Result{Mark: m, CreditsEnd: creditsEnd}
}

// promote inserts a confirmed boundary of type t at pos after clearing the
// marks on the far side of it. An existing mark at pos is kept and confirmed.
func (s *Selector) promote(pos int, t marks.Type, comment string) *marks.Mark {
	if t.Kind == marks.Start {
		s.store.DeleteRange(math.MinInt, pos-1, marks.Any)
	} else {
		s.store.DeleteRange(pos+1, math.MaxInt, marks.Any)
	}
	m := &marks.Mark{Type: t, Position: pos, Comment: t.String() + " (" + comment + ")", Confirmed: true}
	return s.store.Add(m)
}

func (s *Selector) reject(c *marks.Mark, reason string, attrs ...logging.Attr) {
	attrs = append([]logging.Attr{logging.Frame(c.Position), logging.MarkType(c.Type)}, attrs...)
	logging.Decision(s.logger, "candidate rejected", "boundary_candidate", "reject", reason, attrs...)
}

// candidates returns marks of type t in [from, to] not in skip, nearest to
// assumed first; earlier marks win ties.
func candidates(store *marks.Store, t marks.Type, assumed, from, to int, skip map[*marks.Mark]bool) []*marks.Mark {
	var out []*marks.Mark
	for _, m := range store.Between(from, to, marks.OfType(t)) {
		if !skip[m] {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := abs(out[i].Position-assumed), abs(out[j].Position-assumed)
		if di != dj {
			return di < dj
		}
		return out[i].Position < out[j].Position
	})
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

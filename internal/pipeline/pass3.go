package pipeline

import (
	"context"

	"markad/internal/logging"
	"markad/internal/marks"
	"markad/internal/media/frame"
)

// pass3 snaps weak marks to nearby black screens, silence or scene cuts and
// extends the stop over closing credits.
func (p *Pipeline) pass3(ctx context.Context) error {
	window := p.frames(p.profile.SnapWindowSeconds(p.cfg))
	logger := logging.WithContext(ctx, p.logger)

	for _, m := range p.store.Marks() {
		if m.Type.Class >= marks.ClassVBorder || !p.between(m) {
			continue
		}
		var target int
		var reason string
		var ok bool
		var err error
		if m.IsStart() {
			target, reason, ok, err = p.snapStart(ctx, m, window)
		} else {
			target, reason, ok, err = p.snapStop(ctx, m, window)
		}
		if err != nil {
			return err
		}
		if !ok || target == m.Position {
			continue
		}
		from := m.Position
		if err := p.store.Move(m, target, m.Type.Class, reason); err != nil {
			logger.Info("snap rejected", logging.Frame(from), logging.Error(err))
			continue
		}
		logging.Decision(logger, "mark snapped", "refine", "moved", reason,
			logging.Frame(from), logging.MarkType(m.Type), logging.Int("to", target))
	}

	if p.stop != nil && p.creditsEnd > p.stop.Position {
		from := p.stop.Position
		if err := p.store.Move(p.stop, p.creditsEnd, p.stop.Type.Class, "closing credits"); err != nil {
			logger.Info("credits extension rejected", logging.Error(err))
		} else {
			logging.Decision(logger, "stop extended", "closing_credits", "moved", "closing credits after stop",
				logging.Frame(from), logging.Int("to", p.creditsEnd))
		}
	}
	return nil
}

// snapStart looks strictly before a start for the end of a black screen, the
// end of silence, or for logo starts a scene cut.
func (p *Pipeline) snapStart(ctx context.Context, m *marks.Mark, window int) (int, string, bool, error) {
	lo := m.Position - window
	if b := p.black.Prev(m.Position, marks.OfKind(marks.Start)); b != nil && b.Position >= lo {
		return b.Position, "black screen end", true, nil
	}
	silences, err := p.silences(ctx, lo, m.Position)
	if err != nil {
		return 0, "", false, err
	}
	best := -1
	for _, iv := range silences {
		if n := p.index.FrameAfter(iv.End); n >= lo && n < m.Position {
			best = max(best, n)
		}
	}
	if best >= 0 {
		return best, "silence end", true, nil
	}
	if m.Type.Class == marks.ClassLogo {
		if s := p.scene.Prev(m.Position, marks.Any); s != nil && s.Position >= lo {
			return s.Position, "scene change", true, nil
		}
	}
	return 0, "", false, nil
}

// snapStop searches both directions from a stop, preferring candidates at
// or after it.
func (p *Pipeline) snapStop(ctx context.Context, m *marks.Mark, window int) (int, string, bool, error) {
	lo, hi := m.Position-window, m.Position+window
	if n, ok := nearSide(p.black, m.Position, lo, hi, marks.OfKind(marks.Stop)); ok {
		return n, "black screen begin", true, nil
	}
	silences, err := p.silences(ctx, lo, hi)
	if err != nil {
		return 0, "", false, err
	}
	after, before := -1, -1
	for _, iv := range silences {
		n := p.index.FrameBefore(iv.Start)
		switch {
		case n >= m.Position && n <= hi && (after < 0 || n < after):
			after = n
		case n < m.Position && n >= lo:
			before = max(before, n)
		}
	}
	if after >= 0 {
		return after, "silence start", true, nil
	}
	if before >= 0 {
		return before, "silence start", true, nil
	}
	if n, ok := nearSide(p.scene, m.Position, lo, hi, marks.Any); ok {
		return n, "scene change", true, nil
	}
	return 0, "", false, nil
}

// nearSide returns the first side-list mark at or after pos within hi, else
// the last one before pos within lo.
func nearSide(side *marks.Store, pos, lo, hi int, match marks.Match) (int, bool) {
	if side == nil {
		return 0, false
	}
	if n := side.Next(pos-1, match); n != nil && n.Position <= hi {
		return n.Position, true
	}
	if n := side.Prev(pos, match); n != nil && n.Position >= lo {
		return n.Position, true
	}
	return 0, false
}

func (p *Pipeline) silences(ctx context.Context, from, to int) ([]frame.Interval, error) {
	if p.silence == nil {
		return nil, nil
	}
	ivs, err := p.silence.Silences(ctx, max(from, 0), to)
	if err != nil {
		return nil, wrapSource("find silence", err)
	}
	return ivs, nil
}

package pipeline

import (
	"context"
	"errors"
	"io"

	"markad/internal/logging"
	"markad/internal/marks"
	"markad/internal/media/frame"
	"markad/internal/overlap"
)

// pass2 compares the content before each inner stop with the content after
// the following start and cuts repeated footage out of the broadcast.
func (p *Pipeline) pass2(ctx context.Context) error {
	window := p.frames(p.cfg.Overlap.WindowSeconds)
	if window <= 0 {
		return nil
	}
	matcher := overlap.NewMatcher(overlap.OptionsFromConfig(p.cfg.Overlap, p.info))
	logger := logging.WithContext(ctx, p.logger)

	for _, pr := range p.innerPairs() {
		stop, start := pr[0], pr[1]
		from := stop.Position - window
		if prev := p.store.Prev(stop.Position, marks.OfKind(marks.Start)); prev != nil {
			from = max(from, prev.Position+1)
		}
		to := start.Position + window
		if next := p.store.Next(start.Position, marks.OfKind(marks.Stop)); next != nil {
			to = min(to, next.Position-1)
		}

		matcher.Reset()
		if err := p.readWindow(ctx, PassOverlap, max(from, 0), stop.Position, func(f *frame.Frame) {
			matcher.AddBefore(f.Number, f.Luma())
		}); err != nil {
			return err
		}
		if err := p.readWindow(ctx, PassOverlap, start.Position, to, func(f *frame.Frame) {
			matcher.AddAfter(f.Number, f.Luma())
		}); err != nil {
			return err
		}

		res, ok := matcher.Match()
		if !ok {
			logging.Decision(logger, "no overlap", "overlap", "none", "no similar run around advertising",
				logging.Frame(stop.Position), logging.Int("start", start.Position))
			continue
		}
		if err := p.movePair(stop, start, res.Before, res.After); err != nil {
			logger.Info("overlap move rejected", logging.Frame(stop.Position), logging.Error(err))
			continue
		}
		logging.Decision(logger, "overlap found", "overlap", "moved", "repeated content around advertising",
			logging.Frame(res.Before), logging.Int("start", res.After), logging.Int("length", res.Length))
	}
	return nil
}

// movePair moves stop to before and start to after as one correction. When
// the stop cannot move, the start is put back where it was.
func (p *Pipeline) movePair(stop, start *marks.Mark, before, after int) error {
	origin, class := start.Position, start.Type.Class
	var history *marks.Move
	if start.History != nil {
		h := *start.History
		history = &h
	}
	// Move the start first so the stop never lands behind it.
	if err := p.store.Move(start, after, marks.ClassOverlap, "overlap after advertising"); err != nil {
		return err
	}
	err := p.store.Move(stop, before, marks.ClassOverlap, "overlap before advertising")
	if err == nil {
		return nil
	}
	if restoreErr := p.store.Move(start, origin, class, "overlap undone"); restoreErr != nil {
		return errors.Join(err, restoreErr)
	}
	start.History = history
	return err
}

// innerPairs returns the stop/start pairs of the primary sequence strictly
// inside the accepted boundaries.
func (p *Pipeline) innerPairs() [][2]*marks.Mark {
	var out [][2]*marks.Mark
	ms := p.store.Marks()
	for i := 0; i+1 < len(ms); i++ {
		stop, start := ms[i], ms[i+1]
		if !stop.IsStop() || !start.IsStart() || stop == p.stop || start == p.start {
			continue
		}
		if !p.between(stop) || !p.between(start) {
			continue
		}
		out = append(out, [2]*marks.Mark{stop, start})
	}
	return out
}

// readWindow seeks to from and calls fn for every video frame up to to.
func (p *Pipeline) readWindow(ctx context.Context, pass string, from, to int, fn func(*frame.Frame)) error {
	if to < from {
		return nil
	}
	if err := p.src.Seek(ctx, from); err != nil {
		return wrapSource("seek", err)
	}
	for {
		f, err := p.src.ReadFrame(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return wrapSource("read frame", err)
		}
		if !f.IsVideo() || f.Number < from {
			continue
		}
		if f.Number > to {
			return nil
		}
		p.reportProgress(pass, f.Number)
		fn(f)
	}
}

package pipeline

import (
	"context"
	"errors"
	"io"

	"markad/internal/boundary"
	"markad/internal/detect"
	"markad/internal/evaluate"
	"markad/internal/logging"
	"markad/internal/marks"
)

// Conflict windows of the aggregator, in seconds.
const (
	conflictWindowSeconds = 30
	startWindowSeconds    = 2
)

// pass1 decodes the recording once, selects both boundaries and removes
// logo change and info logo pairs.
func (p *Pipeline) pass1(ctx context.Context) error {
	logger := logging.WithContext(ctx, p.logger)
	if err := p.src.Seek(ctx, 0); err != nil {
		return wrapSource("rewind", err)
	}
	mask, err := p.prepareLogo(ctx)
	if err != nil {
		return err
	}
	p.mask = mask
	if err := p.src.Seek(ctx, 0); err != nil {
		return wrapSource("rewind", err)
	}

	p.agg = NewAggregator(p.store, p.black, p.scene, p.detectors(), AggregatorOptions{
		Window:      p.frames(conflictWindowSeconds),
		StartWindow: p.frames(startWindowSeconds),
		FullDecode:  p.cfg.Decoder.FullDecode,
		Index:       p.index,
	}, p.metrics, p.logger)

	p.eval = evaluate.New(evaluate.OptionsFromConfig(p.cfg.Evaluation, p.cfg.Logo, p.fps), p.analyzer(), p.logger)
	selOpts := boundary.OptionsFromConfig(p.cfg.Selection, p.fps)
	p.selector = boundary.New(p.store, p.black, p.eval, selOpts, p.logger)

	p.assumedStart = p.index.FrameAfter(p.rec.AssumedStart)
	startDeadline := p.assumedStart + selOpts.StartAfter
	startDone := false

	for {
		f, err := p.src.ReadFrame(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return wrapSource("read frame", err)
		}
		if f.IsVideo() {
			if !startDone && f.Number > startDeadline {
				startDone = true
				if err := p.selectStart(ctx); err != nil {
					return err
				}
				if p.analysis == nil {
					// Frame checks read the shared source; resume where we were.
					if err := p.src.Seek(ctx, f.Number); err != nil {
						return wrapSource("resume after start selection", err)
					}
					continue
				}
			}
			p.lastFrame = f.Number
			p.metrics.Frame()
			p.reportProgress(PassDetect, f.Number)
		}
		p.agg.Process(f)
	}
	if p.lastFrame < 0 {
		return wrapSource("read frame", errors.New("recording has no video frames"))
	}

	if !startDone {
		if err := p.selectStart(ctx); err != nil {
			return err
		}
	}
	if err := p.selectStop(ctx); err != nil {
		return err
	}

	pairs, err := p.eval.Evaluate(ctx, p.store, p.black)
	if err != nil {
		return err
	}
	removed := p.eval.Apply(p.store, unconfirmed(pairs))
	logger.Info("detection finished",
		logging.String(logging.FieldEventType, "detection_finished"),
		logging.Int("last_frame", p.lastFrame),
		logging.Int("marks", p.store.Len()),
		logging.Int("pairs_removed", removed),
		logging.String("start", describe(p.start)),
		logging.String("stop", describe(p.stop)),
	)
	return nil
}

// detectors builds the enabled detectors. Stronger classes come later so
// that their events on the same frame replace weaker ones.
func (p *Pipeline) detectors() []detect.Detector {
	var ds []detect.Detector
	if p.mask != nil {
		p.logo = detect.NewLogo(p.mask, detect.LogoOptionsFromConfig(p.cfg.Logo), p.logger)
		ds = append(ds, p.logo)
	}
	if p.cfg.Border.Enabled {
		opts := detect.BorderOptionsFromConfig(p.cfg.Border, p.cfg.Black, p.fps)
		ds = append(ds, detect.NewBorder(detect.Horizontal, opts), detect.NewBorder(detect.Vertical, opts))
	}
	if p.cfg.Black.Enabled {
		ds = append(ds, detect.NewBlack(p.cfg.Black.Threshold))
	}
	if p.cfg.Aspect.Enabled {
		ds = append(ds, detect.NewAspect(p.profile.BroadcastAspect(p.cfg), p.logger))
	}
	if p.cfg.Audio.Enabled {
		ds = append(ds, detect.NewAudioChannel())
	}
	if p.cfg.Scene.Enabled {
		ds = append(ds, detect.NewScene(p.cfg.Scene.Threshold))
	}
	return ds
}

// analyzer returns the frame analyzer for pair checks. It gets its own logo
// detector so the live detector's hysteresis is not disturbed.
func (p *Pipeline) analyzer() evaluate.FrameAnalyzer {
	src := p.analysis
	if src == nil {
		src = p.src
	}
	var logo *detect.Logo
	if p.mask != nil {
		logo = detect.NewLogo(p.mask, detect.LogoOptionsFromConfig(p.cfg.Logo), p.logger)
	}
	return evaluate.NewCornerAnalyzer(src, logo, evaluate.CornerOptionsFromConfig(p.cfg))
}

func (p *Pipeline) selectStart(ctx context.Context) error {
	res, err := p.selector.SelectStart(ctx, p.assumedStart)
	if err != nil {
		return err
	}
	if res == nil || res.Mark == nil {
		logging.WarnWithContext(logging.WithContext(ctx, p.logger), "no start boundary", "start_missing")
		return nil
	}
	p.start = res.Mark
	p.agg.SetStart(res.Mark)
	p.agg.Disable(res.Disable...)
	p.metrics.Decision("start", res.Mark.Type.Class.String())
	p.checkpoint(ctx, false)
	return nil
}

func (p *Pipeline) selectStop(ctx context.Context) error {
	p.assumedStop = p.lastFrame
	if p.rec.Length > 0 {
		p.assumedStop = p.index.FrameAfter(p.rec.AssumedStart + p.rec.Length)
	}
	p.eval.SetAssumedStop(p.assumedStop)
	res, err := p.selector.SelectStop(ctx, p.assumedStop, p.lastFrame)
	if err != nil {
		return err
	}
	if res == nil || res.Mark == nil {
		logging.WarnWithContext(logging.WithContext(ctx, p.logger), "no stop boundary", "stop_missing")
		return nil
	}
	p.stop = res.Mark
	p.creditsEnd = res.CreditsEnd
	p.metrics.Decision("stop", res.Mark.Type.Class.String())
	return nil
}

// unconfirmed drops pairs touching an accepted boundary.
func unconfirmed(pairs []*evaluate.Pair) []*evaluate.Pair {
	out := pairs[:0:0]
	for _, pr := range pairs {
		if !pr.Stop.Confirmed && !pr.Start.Confirmed {
			out = append(out, pr)
		}
	}
	return out
}

// between reports whether m lies inside the accepted boundaries.
func (p *Pipeline) between(m *marks.Mark) bool {
	if p.start != nil && m.Position < p.start.Position {
		return false
	}
	if p.stop != nil && m.Position > p.stop.Position {
		return false
	}
	return true
}

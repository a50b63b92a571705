package evaluate

import (
	"context"
	"fmt"

	"markad/internal/logging"
)

// minStaticCorners is how many corners must be static for a frame to count
// as part of closing credits (text on a still background).
const minStaticCorners = 3

// ClosingCredits scans ClosingCreditsScan frames from stop for a run of
// near-static frames lasting at least ClosingCreditsMin. It returns the last
// frame of the first such run.
func (e *Evaluator) ClosingCredits(ctx context.Context, stop int) (int, bool, error) {
	if e.analyzer == nil || e.opts.ClosingCreditsMin <= 0 {
		return 0, false, nil
	}
	infos, err := e.analyzer.Frames(ctx, stop, stop+e.opts.ClosingCreditsScan)
	if err != nil {
		return 0, false, fmt.Errorf("analyse closing credits after %d: %w", stop, err)
	}
	end, ok := creditsRun(infos, e.opts.ClosingCreditsMin)
	result := "none"
	if ok {
		result = "found"
	}
	logging.Decision(e.logger, "closing credits check", "closing_credits", result,
		"static corners after stop", logging.Frame(stop), logging.Int("credits_end", end))
	return end, ok, nil
}

func creditsRun(infos []FrameInfo, minFrames int) (int, bool) {
	runStart := -1
	for i, fi := range infos {
		if fi.StaticCorners() >= minStaticCorners {
			if runStart < 0 {
				runStart = i
			}
			continue
		}
		if runStart >= 0 && infos[i-1].Frame-infos[runStart].Frame >= minFrames {
			return infos[i-1].Frame, true
		}
		runStart = -1
	}
	if runStart >= 0 && infos[len(infos)-1].Frame-infos[runStart].Frame >= minFrames {
		return infos[len(infos)-1].Frame, true
	}
	return 0, false
}

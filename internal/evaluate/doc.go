// Package evaluate classifies logo stop/start pairs.
//
// A logo disappearing and reappearing is not always an advertising break:
// channels recolour their logo, replace it with an info graphic for a few
// seconds, or hide it during closing credits. Evaluator assigns each pair
// tri-state verdicts from durations and nearby black screens, optionally
// refined by frame checks through a FrameAnalyzer, and Apply removes the
// pairs that are not real boundaries.
package evaluate

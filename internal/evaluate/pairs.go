package evaluate

import (
	"context"
	"fmt"
	"log/slog"

	"markad/internal/config"
	"markad/internal/logging"
	"markad/internal/marks"
)

// Options holds the classification thresholds converted to frames.
type Options struct {
	FPS                   float64
	LogoChangeMin         int
	LogoChangeMax         int
	AdvertisingMin        int
	NextStopMin           int
	BroadcastMin          int
	InfoLogoMin           int
	InfoLogoMax           int
	InfoLogoBlackMin      int
	InfoLogoBlackDistance int
	ClosingCreditsMin     int
	ClosingCreditsScan    int

	// Frame check thresholds.
	InfoLogoStaticRatio float64
	LogoChangeRatio     float64
	VisibleRatio        float64
	FrameChecks         bool
}

// OptionsFromConfig converts the [evaluation] section for a frame rate.
func OptionsFromConfig(c config.Evaluation, logo config.Logo, fps float64) Options {
	frames := func(sec float64) int { return int(sec*fps + 0.5) }
	return Options{
		FPS:                   fps,
		LogoChangeMin:         frames(c.LogoChangeMin),
		LogoChangeMax:         frames(c.LogoChangeMax),
		AdvertisingMin:        frames(c.AdvertisingMin),
		NextStopMin:           frames(c.NextStopMin),
		BroadcastMin:          frames(c.BroadcastMin),
		InfoLogoMin:           frames(c.InfoLogoMin),
		InfoLogoMax:           frames(c.InfoLogoMax),
		InfoLogoBlackMin:      frames(c.InfoLogoBlackMin),
		InfoLogoBlackDistance: frames(c.InfoLogoBlackDistance),
		ClosingCreditsMin:     frames(c.ClosingCreditsMin),
		ClosingCreditsScan:    frames(c.ClosingCreditsScan),
		InfoLogoStaticRatio:   c.InfoLogoStaticRatio,
		LogoChangeRatio:       c.LogoChangeRatio,
		VisibleRatio:          logo.VisibleRatio,
		FrameChecks:           c.FrameChecks,
	}
}

// Pair is a stop mark followed by a start mark of the same class. Pairs are
// derived from the current store and must not be kept across mutations.
type Pair struct {
	Stop  *marks.Mark
	Start *marks.Mark

	IsAdvertising      Verdict
	IsLogoChange       Verdict
	IsInfoLogo         Verdict
	IsClosingCredits   Verdict
	IsStartInBroadcast Verdict
	// Protected pairs bridge an advertising pair and the broadcast that
	// follows it; Apply never deletes them.
	Protected bool
	// CreditsEnd is the last static frame when IsClosingCredits is Yes.
	CreditsEnd int
}

// Frames is the distance from stop to start.
func (p *Pair) Frames() int { return p.Start.Position - p.Stop.Position }

func (p *Pair) String() string {
	return fmt.Sprintf("%d-%d ad=%s change=%s info=%s credits=%s broadcast=%s protected=%t",
		p.Stop.Position, p.Start.Position, p.IsAdvertising, p.IsLogoChange, p.IsInfoLogo,
		p.IsClosingCredits, p.IsStartInBroadcast, p.Protected)
}

// Evaluator classifies stop/start pairs.
type Evaluator struct {
	opts     Options
	analyzer FrameAnalyzer
	logger   *slog.Logger

	assumedStop int
}

// New returns an evaluator. analyzer may be nil, in which case verdicts that
// need frame checks stay Unknown.
func New(opts Options, analyzer FrameAnalyzer, logger *slog.Logger) *Evaluator {
	return &Evaluator{opts: opts, analyzer: analyzer, logger: logging.NewComponentLogger(logger, "evaluate"), assumedStop: -1}
}

// Options returns the thresholds in use.
func (e *Evaluator) Options() Options { return e.opts }

// SetAssumedStop enables closing credit checks for pairs whose stop lies
// within the credits scan window of n. A negative n disables them.
func (e *Evaluator) SetAssumedStop(n int) { e.assumedStop = n }

// Pairs builds the stop/start pairs of class in position order. A stop pairs
// with the next mark of the class when that mark is a start.
func Pairs(store *marks.Store, class marks.Class) []*Pair {
	var out []*Pair
	ofClass := marks.OfClass(class)
	for m := store.First(ofClass); m != nil; m = store.Next(m.Position, ofClass) {
		if !m.IsStop() {
			continue
		}
		next := store.Next(m.Position, ofClass)
		if next == nil {
			break
		}
		if next.IsStart() {
			out = append(out, &Pair{Stop: m, Start: next})
		}
	}
	return out
}

// Evaluate builds and classifies the logo pairs of store. black is the black
// screen side list and may be nil.
func (e *Evaluator) Evaluate(ctx context.Context, store, black *marks.Store) ([]*Pair, error) {
	pairs := Pairs(store, marks.ClassLogo)
	logoStop := marks.OfType(marks.Type{Class: marks.ClassLogo, Kind: marks.Stop})
	for _, p := range pairs {
		e.classify(p, store.Next(p.Start.Position, logoStop), black)
	}
	protect(pairs)

	if e.analyzer != nil && e.opts.FrameChecks {
		for _, p := range pairs {
			if err := e.frameChecks(ctx, p); err != nil {
				return pairs, err
			}
		}
	}
	for _, p := range pairs {
		e.logger.Debug("logo pair evaluated", logging.String("pair", p.String()))
	}
	return pairs, nil
}

func (e *Evaluator) classify(p *Pair, nextStop *marks.Mark, black *marks.Store) {
	d := p.Frames()
	o := e.opts

	switch {
	case d >= o.AdvertisingMin:
		p.IsAdvertising = Yes
		p.IsLogoChange = No
		p.IsInfoLogo = No
	default:
		p.IsAdvertising = No
	}

	if p.IsLogoChange == Unknown {
		switch {
		case d < o.LogoChangeMin:
			p.IsLogoChange = No
		case d > o.LogoChangeMax:
			p.IsLogoChange = No
		}
	}
	if p.IsInfoLogo == Unknown && (d < o.InfoLogoMin || d > o.InfoLogoMax) {
		p.IsInfoLogo = No
	}

	if nextStop != nil {
		gap := nextStop.Position - p.Start.Position
		if gap < o.NextStopMin {
			p.IsLogoChange = No
		}
		if gap >= o.BroadcastMin {
			p.IsStartInBroadcast = Yes
		}
	}

	if p.IsInfoLogo == Unknown && black != nil && e.longBlackNear(p, black) {
		p.IsInfoLogo = No
	}
}

// longBlackNear reports a black screen of at least InfoLogoBlackMin frames
// overlapping the pair widened by InfoLogoBlackDistance. Info graphics are
// inserted without black screens; advertising breaks have them.
func (e *Evaluator) longBlackNear(p *Pair, black *marks.Store) bool {
	from := p.Stop.Position - e.opts.InfoLogoBlackDistance
	to := p.Start.Position + e.opts.InfoLogoBlackDistance
	begin := marks.OfKind(marks.Stop)
	for _, b := range black.Between(from-e.opts.InfoLogoMax, to, begin) {
		end := black.Next(b.Position, marks.OfKind(marks.Start))
		if end == nil || end.Position < from {
			continue
		}
		if end.Position-b.Position >= e.opts.InfoLogoBlackMin {
			return true
		}
	}
	return false
}

// protect marks every pair after an advertising pair up to and including the
// next pair whose start is in broadcast.
func protect(pairs []*Pair) {
	for i, p := range pairs {
		if p.IsAdvertising != Yes {
			continue
		}
		k := -1
		for j := i + 1; j < len(pairs); j++ {
			if pairs[j].IsStartInBroadcast == Yes {
				k = j
				break
			}
		}
		for j := i + 1; j <= k; j++ {
			pairs[j].Protected = true
		}
	}
}

func (e *Evaluator) frameChecks(ctx context.Context, p *Pair) error {
	needChange := p.IsLogoChange == Unknown
	needInfo := p.IsInfoLogo == Unknown
	needCredits := p.IsClosingCredits == Unknown && e.assumedStop >= 0 &&
		abs(p.Stop.Position-e.assumedStop) <= e.opts.ClosingCreditsScan
	if !needChange && !needInfo && !needCredits {
		return nil
	}
	if needChange || needInfo {
		infos, err := e.analyzer.Frames(ctx, p.Stop.Position, p.Start.Position)
		if err != nil {
			return fmt.Errorf("analyse pair %d-%d: %w", p.Stop.Position, p.Start.Position, err)
		}
		if needChange {
			p.IsLogoChange = e.logoChange(infos)
			logging.Decision(e.logger, "logo change check", "logo_change", p.IsLogoChange.String(),
				"logo match ratio inside pair", logging.Frame(p.Stop.Position))
		}
		if needInfo {
			p.IsInfoLogo = e.infoLogo(infos)
			logging.Decision(e.logger, "info logo check", "info_logo", p.IsInfoLogo.String(),
				"logo corner static inside pair", logging.Frame(p.Stop.Position))
		}
	}
	if needCredits {
		end, ok, err := e.ClosingCredits(ctx, p.Stop.Position)
		if err != nil {
			return err
		}
		p.IsClosingCredits = No
		if ok {
			p.IsClosingCredits = Yes
			p.CreditsEnd = end
		}
	}
	return nil
}

// logoChange is Yes when most judged frames match the mask partially, the
// signature of a recoloured logo rather than an absent one.
func (e *Evaluator) logoChange(infos []FrameInfo) Verdict {
	judged, partial := 0, 0
	for _, fi := range infos {
		if fi.LogoRatio < 0 {
			continue
		}
		judged++
		if fi.LogoRatio >= e.opts.LogoChangeRatio && fi.LogoRatio < e.opts.VisibleRatio {
			partial++
		}
	}
	if judged == 0 {
		return Unknown
	}
	if partial*2 > judged {
		return Yes
	}
	return No
}

// infoLogo is Yes when the logo corner stays static for most of the pair
// while some other corner carries moving content.
func (e *Evaluator) infoLogo(infos []FrameInfo) Verdict {
	if len(infos) < 2 || e.analyzer == nil {
		return Unknown
	}
	corner, ok := e.analyzer.LogoCorner()
	if !ok {
		return Unknown
	}
	var static [4]int
	for _, fi := range infos[1:] {
		for c, s := range fi.Static {
			if s {
				static[c]++
			}
		}
	}
	n := float64(len(infos) - 1)
	if float64(static[corner])/n < e.opts.InfoLogoStaticRatio {
		return No
	}
	for c := range static {
		if c != int(corner) && float64(static[c])/n < 0.5 {
			return Yes
		}
	}
	return No
}

// Apply deletes unprotected pairs classified as logo change or info logo and
// returns the number of marks removed.
func (e *Evaluator) Apply(store *marks.Store, pairs []*Pair) int {
	var doomed []*marks.Mark
	for _, p := range pairs {
		if p.Protected || p.IsClosingCredits == Yes {
			continue
		}
		reason := ""
		switch {
		case p.IsLogoChange == Yes:
			reason = "logo change"
		case p.IsInfoLogo == Yes:
			reason = "info logo"
		default:
			continue
		}
		logging.Decision(e.logger, "logo pair removed", "pair_cleanup", "delete", reason,
			logging.Frame(p.Stop.Position), logging.Int("start", p.Start.Position))
		doomed = append(doomed, p.Stop, p.Start)
	}
	if len(doomed) == 0 {
		return 0
	}
	return store.Delete(doomed...)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

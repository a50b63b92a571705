package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"markad/internal/boundary"
	"markad/internal/channel"
	"markad/internal/config"
	"markad/internal/detect"
	"markad/internal/evaluate"
	"markad/internal/logging"
	"markad/internal/marks"
	"markad/internal/media/frame"
	"markad/internal/metrics"
	"markad/internal/services"
)

// Pass names, also used as the "pass" log field.
const (
	PassDetect  = "detect"
	PassOverlap = "overlap"
	PassRefine  = "refine"
	PassFinal   = "final"
)

// Recording describes what is analysed.
type Recording struct {
	Path    string
	Channel string
	// AssumedStart is the broadcast start offset from the timer.
	AssumedStart time.Duration
	// Length is the scheduled broadcast length; zero means until the end.
	Length time.Duration
	// MarksPath receives checkpoint saves; empty disables saving.
	MarksPath string
	// Growing reports whether the recording is still being written.
	Growing func() bool
}

// Progress is called for every video frame a pass reads.
type Progress func(pass string, frame, total int)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithMetrics records counters and pass timings on rec.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(p *Pipeline) { p.metrics = rec }
}

// WithSilenceFinder enables silence snapping in Pass 3.
func WithSilenceFinder(f frame.SilenceFinder) Option {
	return func(p *Pipeline) { p.silence = f }
}

// WithAnalysisSource gives frame checks their own source so Pass 1 need not
// re-seek after evaluating pairs.
func WithAnalysisSource(src frame.Source) Option {
	return func(p *Pipeline) { p.analysis = src }
}

// WithIndex replaces the constant frame rate index.
func WithIndex(idx frame.Index) Option {
	return func(p *Pipeline) { p.index = idx }
}

// WithProgress registers a progress callback.
func WithProgress(fn Progress) Option {
	return func(p *Pipeline) { p.progress = fn }
}

// PassResult summarises one pass.
type PassResult struct {
	Name     string
	Duration time.Duration
	Marks    int
	Skipped  bool
	Err      error
}

// Result is the outcome of a run.
type Result struct {
	Marks      []*marks.Mark
	Start      *marks.Mark
	Stop       *marks.Mark
	LastFrame  int
	FrameRate  float64
	CreditsEnd int
	Logo       *detect.LogoMask
	Passes     []PassResult
}

// Pipeline analyses one recording. It is not safe for concurrent use.
type Pipeline struct {
	cfg      *config.Config
	rec      Recording
	src      frame.Source
	analysis frame.Source
	silence  frame.SilenceFinder
	index    frame.Index
	logger   *slog.Logger
	metrics  *metrics.Recorder
	progress Progress

	info    frame.StreamInfo
	fps     float64
	profile channel.Profile
	file    *marks.File

	store *marks.Store
	black *marks.Store
	scene *marks.Store

	mask     *detect.LogoMask
	logo     *detect.Logo
	agg      *Aggregator
	eval     *evaluate.Evaluator
	selector *boundary.Selector

	assumedStart int
	assumedStop  int
	lastFrame    int
	start        *marks.Mark
	stop         *marks.Mark
	creditsEnd   int
}

// New prepares a pipeline reading src.
func New(cfg *config.Config, src frame.Source, rec Recording, opts ...Option) *Pipeline {
	p := &Pipeline{cfg: cfg, rec: rec, src: src, creditsEnd: -1, lastFrame: -1}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logging.NewNop()
	}
	if p.silence == nil {
		if sf, ok := src.(frame.SilenceFinder); ok {
			p.silence = sf
		}
	}
	return p
}

// Store returns the primary mark sequence.
func (p *Pipeline) Store() *marks.Store { return p.store }

// BlackScreens returns the black screen side list.
func (p *Pipeline) BlackScreens() *marks.Store { return p.black }

// Scenes returns the scene change side list.
func (p *Pipeline) Scenes() *marks.Store { return p.scene }

// Run executes all enabled passes. Only a Pass 1 failure is returned as an
// error; later pass failures are reported in Result.Passes.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	if err := p.init(); err != nil {
		return nil, err
	}
	ctx = services.WithRecording(ctx, p.rec.Path)

	res := &Result{FrameRate: p.fps}
	pr := p.runPass(ctx, PassDetect, p.pass1)
	res.Passes = append(res.Passes, pr)
	if pr.Err != nil {
		return res, pr.Err
	}

	optional := []struct {
		name    string
		enabled bool
		fn      func(context.Context) error
	}{
		{PassOverlap, p.cfg.Passes.Overlap, p.pass2},
		{PassRefine, p.cfg.Passes.Refine, p.pass3},
	}
	for _, o := range optional {
		if !o.enabled {
			res.Passes = append(res.Passes, PassResult{Name: o.name, Skipped: true})
			continue
		}
		pr := p.runPass(ctx, o.name, o.fn)
		if pr.Err != nil {
			if errors.Is(pr.Err, context.Canceled) || errors.Is(pr.Err, context.DeadlineExceeded) {
				res.Passes = append(res.Passes, pr)
				return res, pr.Err
			}
			logging.WarnWithContext(logging.WithContext(services.WithPass(ctx, o.name), p.logger),
				"pass failed", "pass_failed", logging.Error(pr.Err))
		}
		res.Passes = append(res.Passes, pr)
	}

	pr = p.runPass(ctx, PassFinal, p.finalize)
	res.Passes = append(res.Passes, pr)
	res.Marks = p.store.Marks()
	res.Start, res.Stop = p.start, p.stop
	res.LastFrame = p.lastFrame
	res.CreditsEnd = p.creditsEnd
	res.Logo = p.mask
	return res, pr.Err
}

func (p *Pipeline) init() error {
	p.info = p.src.Info()
	p.fps = p.info.FrameRate
	if p.fps <= 0 {
		return services.Wrap(services.ErrValidation, PassDetect, "stream info", "frame rate unknown", nil)
	}
	if p.index == nil {
		p.index = frame.ConstantRate{FPS: p.fps}
	}
	p.profile = channel.Resolve(p.cfg, p.rec.Channel)

	timeline := marks.WithTimeline(p.index)
	p.store = marks.NewStore(p.logger, timeline, marks.OnChange(p.metrics.MarksChanged))
	p.black = marks.NewSideList(p.logger, timeline)
	p.scene = marks.NewSideList(p.logger, timeline)
	if p.rec.MarksPath != "" {
		p.file = marks.NewFile(p.rec.MarksPath, p.fps, p.logger)
		p.file.Growing = p.rec.Growing
	}
	return nil
}

func (p *Pipeline) runPass(ctx context.Context, name string, fn func(context.Context) error) PassResult {
	ctx = services.WithPass(ctx, name)
	logger := logging.WithContext(ctx, p.logger)
	logger.Info("pass started", logging.String(logging.FieldEventType, "pass_start"))
	began := time.Now()
	err := fn(ctx)
	pr := PassResult{Name: name, Duration: time.Since(began), Marks: p.store.Len(), Err: err}
	p.metrics.Pass(name, pr.Duration)
	if err == nil && name != PassFinal {
		p.checkpoint(ctx, false)
	}
	logger.Info("pass completed",
		logging.String(logging.FieldEventType, "pass_complete"),
		logging.Duration("duration", pr.Duration),
		logging.Int("marks", pr.Marks),
		logging.Bool("failed", err != nil),
	)
	return pr
}

// checkpoint saves the marks file. Unforced save failures are logged only.
func (p *Pipeline) checkpoint(ctx context.Context, force bool) error {
	if p.file == nil {
		return nil
	}
	_, err := p.file.Save(p.store, force)
	if err == nil {
		return nil
	}
	err = services.Wrap(services.ErrTransient, "checkpoint", "save marks", p.file.Path, err)
	if !force {
		logging.WarnWithContext(logging.WithContext(ctx, p.logger), "marks checkpoint failed", "checkpoint_failed",
			logging.Error(err), logging.String(logging.FieldImpact, "marks file reflects the previous save"))
	}
	return err
}

func (p *Pipeline) reportProgress(pass string, n int) {
	if p.progress != nil {
		p.progress(pass, n, p.info.Frames)
	}
}

// frames converts seconds to frames at the stream rate.
func (p *Pipeline) frames(sec float64) int { return int(sec*p.fps + 0.5) }

func wrapSource(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return services.Wrap(services.ErrExternalTool, "decode", op, "", err)
}

func describe(m *marks.Mark) string {
	if m == nil {
		return "none"
	}
	return fmt.Sprintf("%s@%d", m.Type, m.Position)
}

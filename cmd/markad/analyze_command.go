package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"markad/internal/config"
	"markad/internal/deps"
	"markad/internal/history"
	"markad/internal/logging"
	"markad/internal/marks"
	"markad/internal/metrics"
	"markad/internal/pipeline"
	"markad/internal/preflight"
	"markad/internal/services"
)

type analyzeOptions struct {
	channel   string
	start     time.Duration
	length    time.Duration
	marksPath string
	noHistory bool
	progress  string
	jsonOut   bool
}

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var opts analyzeOptions

	cmd := &cobra.Command{
		Use:   "analyze <recording>",
		Short: "Detect marks in a recording and write its marks file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, ctx, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.channel, "channel", "", "Channel name used for logo and profile lookup")
	cmd.Flags().DurationVar(&opts.start, "start", 0, "Offset of the scheduled broadcast start from the recording start")
	cmd.Flags().DurationVar(&opts.length, "length", 0, "Scheduled broadcast length (0 analyses until the end)")
	cmd.Flags().StringVar(&opts.marksPath, "marks", "", "Marks file to write (default next to the recording)")
	cmd.Flags().BoolVar(&opts.noHistory, "no-history", false, "Do not record the run in the history database")
	cmd.Flags().StringVar(&opts.progress, "progress", "auto", "Progress bar: auto, always, or never")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Print the result as JSON")
	return cmd
}

func runAnalyze(cmd *cobra.Command, ctx *commandContext, target string, opts analyzeOptions) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}
	path, err := config.ExpandPath(target)
	if err != nil {
		return fmt.Errorf("resolve recording path: %w", err)
	}
	runCtx := cmd.Context()
	if runCtx == nil {
		runCtx = context.Background()
	}

	if err := checkEnvironment(runCtx, cfg, path); err != nil {
		return err
	}

	marksPath := strings.TrimSpace(opts.marksPath)
	if marksPath == "" {
		marksPath = marks.DefaultPath(path)
	}

	rec := metrics.New()
	if cfg.Metrics.Listen != "" {
		serveCtx, stopServe := context.WithCancel(runCtx)
		defer stopServe()
		rec.Serve(serveCtx, cfg.Metrics.Listen, logger)
	}

	var store *history.Store
	var run *history.Run
	if !opts.noHistory {
		store, err = history.Open(cfg.Paths.HistoryDB)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer store.Close()
		if run, err = store.Begin(runCtx, path, opts.channel); err != nil {
			return err
		}
	}
	runID := uuid.NewString()
	if run != nil {
		runID = run.ID
	}
	runCtx = services.WithRunID(runCtx, runID)

	res, runErr := analyzeRecording(runCtx, cmd.ErrOrStderr(), cfg, logger, rec, pipeline.Recording{
		Path:         path,
		Channel:      opts.channel,
		AssumedStart: opts.start,
		Length:       opts.length,
		MarksPath:    marksPath,
		Growing:      growing(path, time.Duration(cfg.Decoder.GrowingWindowSeconds)*time.Second),
	}, opts.progress)

	status := services.RunStatus(runErr)
	markCount := 0
	if res != nil {
		markCount = len(res.Marks)
	}
	rec.Run(status, markCount)

	if run != nil {
		finishRun(run, res, runErr)
		// Record the outcome even when the run was cancelled.
		if err := store.Finish(context.WithoutCancel(runCtx), run); err != nil {
			logging.WarnWithContext(logging.WithContext(runCtx, logger), "run history not updated", "history_failed",
				logging.Error(err), logging.String(logging.FieldImpact, "run missing from markad history"))
		}
	}
	if runErr != nil {
		logging.ErrorWithContext(logging.WithContext(runCtx, logger), "analysis failed", "run_failed",
			logging.Error(runErr), logging.String("status", status))
		return runErr
	}

	if opts.jsonOut {
		return writeJSON(cmd, analyzeJSON(runID, marksPath, res))
	}
	renderAnalyzeResult(cmd.OutOrStdout(), runID, marksPath, res)
	return nil
}

// checkEnvironment runs the preflight checks and fails on the first required
// problem.
func checkEnvironment(ctx context.Context, cfg *config.Config, path string) error {
	if failed := preflight.Failed(preflight.RunAll(ctx, cfg, path)); len(failed) > 0 {
		parts := make([]string, 0, len(failed))
		for _, f := range failed {
			parts = append(parts, fmt.Sprintf("%s: %s", f.Name, f.Detail))
		}
		return services.Wrap(services.ErrConfiguration, "preflight", "check environment", strings.Join(parts, "; "), nil)
	}
	if missing := deps.MissingRequired(preflight.CheckSystemDeps(ctx, cfg)); len(missing) > 0 {
		return services.Wrap(services.ErrConfiguration, "preflight", "check "+missing[0].Name, missing[0].Detail, nil)
	}
	return nil
}

func analyzeRecording(ctx context.Context, progressOut io.Writer, cfg *config.Config, logger *slog.Logger, rec *metrics.Recorder, recording pipeline.Recording, progressMode string) (*pipeline.Result, error) {
	dec, err := openDecoder(ctx, cfg, recording.Path, logger)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "decode", "open recording", recording.Path, err)
	}
	defer dec.close()

	opts := []pipeline.Option{pipeline.WithLogger(logger), pipeline.WithMetrics(rec)}
	if dec.analysis != nil {
		opts = append(opts, pipeline.WithAnalysisSource(dec.analysis))
	}
	if dec.index != nil {
		opts = append(opts, pipeline.WithIndex(dec.index))
	}
	bar := newPassProgress(progressOut, progressMode)
	if bar != nil {
		opts = append(opts, pipeline.WithProgress(bar.update))
		defer bar.finish()
	}
	return pipeline.New(cfg, dec.src, recording, opts...).Run(ctx)
}

func finishRun(run *history.Run, res *pipeline.Result, err error) {
	run.Status = history.Status(services.RunStatus(err))
	if err != nil {
		run.ErrorMessage = err.Error()
	}
	if res == nil {
		return
	}
	run.FrameRate = res.FrameRate
	run.Frames = res.LastFrame + 1
	run.Marks = history.FromMarks(res.Marks)
	for _, pr := range res.Passes {
		pt := history.PassTiming{Name: pr.Name, Duration: pr.Duration, Marks: pr.Marks, Skipped: pr.Skipped}
		if pr.Err != nil {
			pt.Error = pr.Err.Error()
		}
		run.Passes = append(run.Passes, pt)
	}
}

// passProgress draws one bar per pass.
type passProgress struct {
	out  io.Writer
	pass string
	bar  *progressbar.ProgressBar
}

func newPassProgress(out io.Writer, mode string) *passProgress {
	switch mode {
	case "never":
		return nil
	case "always":
	default:
		file, ok := out.(*os.File)
		if !ok || !(isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())) {
			return nil
		}
	}
	return &passProgress{out: out}
}

func (p *passProgress) update(pass string, n, total int) {
	if p.bar == nil || pass != p.pass {
		p.finish()
		if total <= 0 {
			total = -1
		}
		p.pass = pass
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(p.out),
			progressbar.OptionSetDescription(pass),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("frames"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionSetRenderBlankState(true),
		)
	}
	_ = p.bar.Set(n + 1)
}

func (p *passProgress) finish() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
	fmt.Fprintln(p.out)
	p.bar = nil
}

func renderAnalyzeResult(out io.Writer, runID, marksPath string, res *pipeline.Result) {
	fmt.Fprintf(out, "Run:        %s\n", runID)
	fmt.Fprintf(out, "Marks file: %s\n", marksPath)
	fmt.Fprintf(out, "Frames:     %s at %.2f fps\n", humanize.Comma(int64(res.LastFrame+1)), res.FrameRate)
	fmt.Fprintf(out, "Start:      %s\n", describeMark(res.Start))
	fmt.Fprintf(out, "Stop:       %s\n", describeMark(res.Stop))
	if res.Logo != nil {
		fmt.Fprintf(out, "Logo:       %s corner, %s\n", res.Logo.Corner, res.Logo.Aspect)
	}
	for _, pr := range res.Passes {
		state := pr.Duration.Round(time.Millisecond).String()
		switch {
		case pr.Skipped:
			state = "skipped"
		case pr.Err != nil:
			state = "failed: " + pr.Err.Error()
		}
		fmt.Fprintf(out, "Pass %-7s %s\n", pr.Name+":", state)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderMarks(res.Marks, res.FrameRate))
}

func describeMark(m *marks.Mark) string {
	if m == nil {
		return "none"
	}
	return m.String()
}

type analyzeResultJSON struct {
	RunID     string     `json:"run_id"`
	MarksFile string     `json:"marks_file"`
	FrameRate float64    `json:"frame_rate"`
	Frames    int        `json:"frames"`
	Marks     []markJSON `json:"marks"`
	Passes    []passJSON `json:"passes"`
}

type markJSON struct {
	Position    int    `json:"position"`
	Time        string `json:"time"`
	Kind        string `json:"kind"`
	Class       string `json:"class"`
	Comment     string `json:"comment,omitempty"`
	OldClass    string `json:"old_class,omitempty"`
	OldPosition *int   `json:"old_position,omitempty"`
}

type passJSON struct {
	Name       string `json:"name"`
	DurationMS int64  `json:"duration_ms"`
	Marks      int    `json:"marks"`
	Skipped    bool   `json:"skipped,omitempty"`
	Error      string `json:"error,omitempty"`
}

func analyzeJSON(runID, marksPath string, res *pipeline.Result) analyzeResultJSON {
	out := analyzeResultJSON{
		RunID:     runID,
		MarksFile: marksPath,
		FrameRate: res.FrameRate,
		Frames:    res.LastFrame + 1,
		Marks:     marksToJSON(history.FromMarks(res.Marks), res.FrameRate),
	}
	for _, pr := range res.Passes {
		pj := passJSON{Name: pr.Name, DurationMS: pr.Duration.Milliseconds(), Marks: pr.Marks, Skipped: pr.Skipped}
		if pr.Err != nil {
			pj.Error = pr.Err.Error()
		}
		out.Passes = append(out.Passes, pj)
	}
	return out
}

func marksToJSON(ms []history.Mark, fps float64) []markJSON {
	out := make([]markJSON, 0, len(ms))
	for _, m := range ms {
		mj := markJSON{
			Position: m.Position,
			Time:     formatFrame(m.Position, fps),
			Kind:     m.Kind,
			Class:    m.Class,
			Comment:  m.Comment,
		}
		if m.Moved() {
			old := m.OldPosition
			mj.OldClass = m.OldClass
			mj.OldPosition = &old
		}
		out = append(out, mj)
	}
	return out
}

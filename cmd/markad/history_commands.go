package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"markad/internal/config"
	"markad/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded analysis runs",
	}
	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryShowCommand(ctx))
	historyCmd.AddCommand(newHistoryPruneCommand(ctx))
	return historyCmd
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var recording string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if recording != "" {
				expanded, err := config.ExpandPath(recording)
				if err != nil {
					return err
				}
				recording = expanded
			}
			return ctx.withHistory(func(store *history.Store) error {
				runs, err := store.List(cmd.Context(), recording, limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				rows := make([][]string, 0, len(runs))
				for _, run := range runs {
					rows = append(rows, []string{
						shortID(run.ID),
						humanize.Time(run.StartedAt),
						string(run.Status),
						run.Channel,
						humanize.Comma(int64(run.Frames)),
						formatRunDuration(run),
						run.Recording,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Started", "Status", "Channel", "Frames", "Took", "Recording"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&recording, "recording", "", "Only runs of this recording")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs")
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run with its final marks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(store *history.Store) error {
				run, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if run == nil {
					return fmt.Errorf("run %s not found", args[0])
				}
				if jsonOut {
					return writeJSON(cmd, runToJSON(run))
				}
				renderRun(cmd, run)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the run as JSON")
	return cmd
}

func newHistoryPruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete runs older than a cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return errors.New("--older-than must be positive")
			}
			return ctx.withHistory(func(store *history.Store) error {
				removed, err := store.Prune(cmd.Context(), time.Now().Add(-olderThan))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d run(s)\n", removed)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Delete runs started before now minus this duration")
	return cmd
}

func renderRun(cmd *cobra.Command, run *history.Run) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:       %s\n", run.ID)
	fmt.Fprintf(out, "Recording: %s\n", run.Recording)
	if run.Channel != "" {
		fmt.Fprintf(out, "Channel:   %s\n", run.Channel)
	}
	fmt.Fprintf(out, "Status:    %s\n", run.Status)
	if run.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:     %s\n", run.ErrorMessage)
	}
	fmt.Fprintf(out, "Started:   %s (%s)\n", run.StartedAt.Local().Format(time.DateTime), humanize.Time(run.StartedAt))
	fmt.Fprintf(out, "Took:      %s\n", formatRunDuration(run))
	if run.FrameRate > 0 {
		fmt.Fprintf(out, "Frames:    %s at %.2f fps\n", humanize.Comma(int64(run.Frames)), run.FrameRate)
	}
	if len(run.Passes) > 0 {
		rows := make([][]string, 0, len(run.Passes))
		for _, p := range run.Passes {
			took := p.Duration.Round(time.Millisecond).String()
			if p.Skipped {
				took = "skipped"
			}
			rows = append(rows, []string{p.Name, took, strconv.Itoa(p.Marks), p.Error})
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderTable([]string{"Pass", "Took", "Marks", "Error"}, rows,
			[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft}))
	}
	fmt.Fprintln(out)
	if len(run.Marks) == 0 {
		fmt.Fprintln(out, "No marks")
		return
	}
	rows := make([][]string, 0, len(run.Marks))
	for _, m := range run.Marks {
		moved := ""
		if m.Moved() {
			moved = m.OldClass + "@" + strconv.Itoa(m.OldPosition)
		}
		rows = append(rows, []string{formatFrame(m.Position, run.FrameRate), strconv.Itoa(m.Position), m.Kind, m.Class, moved, m.Comment})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Time", "Frame", "Kind", "Class", "Moved From", "Comment"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
	))
}

type runJSON struct {
	ID         string     `json:"id"`
	Recording  string     `json:"recording"`
	Channel    string     `json:"channel,omitempty"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
	FrameRate  float64    `json:"frame_rate"`
	Frames     int        `json:"frames"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Passes     []passJSON `json:"passes,omitempty"`
	Marks      []markJSON `json:"marks"`
}

func runToJSON(run *history.Run) runJSON {
	out := runJSON{
		ID:        run.ID,
		Recording: run.Recording,
		Channel:   run.Channel,
		Status:    string(run.Status),
		Error:     run.ErrorMessage,
		FrameRate: run.FrameRate,
		Frames:    run.Frames,
		StartedAt: run.StartedAt,
		Marks:     marksToJSON(run.Marks, run.FrameRate),
	}
	if !run.FinishedAt.IsZero() {
		finished := run.FinishedAt
		out.FinishedAt = &finished
	}
	for _, p := range run.Passes {
		out.Passes = append(out.Passes, passJSON{
			Name:       p.Name,
			DurationMS: p.Duration.Milliseconds(),
			Marks:      p.Marks,
			Skipped:    p.Skipped,
			Error:      p.Error,
		})
	}
	return out
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatRunDuration(run *history.Run) string {
	if d := run.Duration(); d > 0 {
		return d.Round(time.Second).String()
	}
	return "-"
}

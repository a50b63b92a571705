package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"markad/internal/config"
	"markad/internal/marks"
	"markad/internal/media/ffprobe"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var fps float64

	cmd := &cobra.Command{
		Use:   "show <recording|marks-file>",
		Short: "Display the marks file of a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			target, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			recording, marksPath := resolveMarksTarget(target)

			out := cmd.OutOrStdout()
			if recording != "" && fps <= 0 {
				probe, err := ffprobe.Inspect(cmd.Context(), cfg.Decoder.FFprobeBinary, recording)
				if err != nil {
					return fmt.Errorf("probe recording (pass --fps to skip): %w", err)
				}
				if video, ok := probe.Video(); ok {
					fps = video.FrameRate()
					fmt.Fprintf(out, "Recording: %s\n", recording)
					fmt.Fprintf(out, "Video:     %s %dx%d @ %.2f fps\n", video.CodecName, video.Width, video.Height, fps)
				}
				if d := probe.DurationSeconds(); d > 0 {
					fmt.Fprintf(out, "Duration:  %s\n", formatFrame(int(d*fps), fps))
				}
				if size := probe.SizeBytes(); size > 0 {
					fmt.Fprintf(out, "Size:      %s\n", humanize.IBytes(uint64(size)))
				}
			}
			if fps <= 0 {
				return fmt.Errorf("frame rate of %s unknown; pass --fps", marksPath)
			}

			ms, err := marks.NewFile(marksPath, fps, nil).Load()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Marks:     %s (%d)\n\n", marksPath, len(ms))
			fmt.Fprintln(out, renderMarks(ms, fps))
			return nil
		},
	}

	cmd.Flags().Float64Var(&fps, "fps", 0, "Frame rate of the recording (probed when omitted)")
	return cmd
}

// resolveMarksTarget accepts a recording or a marks file and returns both
// paths; recording is empty when target is a marks file.
func resolveMarksTarget(target string) (recording, marksPath string) {
	base := filepath.Base(target)
	if base == "marks" || strings.HasSuffix(base, ".marks") {
		if info, err := os.Stat(target); err == nil && !info.IsDir() {
			return "", target
		}
	}
	return target, marks.DefaultPath(target)
}

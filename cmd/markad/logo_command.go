package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"markad/internal/config"
	"markad/internal/detect"
	"markad/internal/media/frame"
	"markad/internal/pipeline"
)

func newLogoCommand(ctx *commandContext) *cobra.Command {
	logoCmd := &cobra.Command{
		Use:   "logo",
		Short: "Channel logo mask tools",
	}
	logoCmd.AddCommand(newLogoExtractCommand(ctx))
	return logoCmd
}

func newLogoExtractCommand(ctx *commandContext) *cobra.Command {
	var channelName string
	var from time.Duration
	var dir string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "extract <recording>",
		Short: "Extract the channel logo mask from a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			channelName = strings.TrimSpace(channelName)
			if channelName == "" && !dryRun {
				return errors.New("--channel is required to save a logo mask")
			}
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			target := cfg.Paths.LogoDir
			if dir != "" {
				if target, err = config.ExpandPath(dir); err != nil {
					return err
				}
			}

			dec, err := openDecoder(cmd.Context(), cfg, path, logger)
			if err != nil {
				return fmt.Errorf("open recording: %w", err)
			}
			defer dec.close()
			if from > 0 {
				info := dec.src.Info()
				if err := dec.src.Seek(cmd.Context(), frame.ConstantRate{FPS: info.FrameRate}.FrameAfter(from)); err != nil {
					return fmt.Errorf("seek to %s: %w", from, err)
				}
			}

			mask, err := pipeline.ExtractLogo(cmd.Context(), dec.src, cfg, logger)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Logo found in %s corner (%s), %d edge pixels at %d,%d\n",
				mask.Corner, mask.Aspect, mask.Planes[0].Pixels(), mask.X, mask.Y)
			if dryRun {
				return nil
			}
			if err := mask.Save(target, channelName); err != nil {
				return err
			}
			fmt.Fprintf(out, "Wrote %s\n", filepath.Join(target, detect.MaskFileName(channelName, mask.Aspect, mask.Corner, 0)))
			return nil
		},
	}

	cmd.Flags().StringVar(&channelName, "channel", "", "Channel name the mask is stored under")
	cmd.Flags().DurationVar(&from, "from", 0, "Start extraction at this offset")
	cmd.Flags().StringVar(&dir, "dir", "", "Logo directory (default paths.logo_dir)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report the logo without saving it")
	return cmd
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"markad/internal/config"
	"markad/internal/history"
	"markad/internal/logging"
	"markad/internal/media/ffmpeg"
	"markad/internal/media/frame"
)

type commandContext struct {
	configFlag *string
	verbose    *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string, verbose *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		verbose:    verbose,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.verbose != nil && *c.verbose {
			cfg.Logging.Level = "debug"
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

// withHistory opens the run history database for the duration of fn.
func (c *commandContext) withHistory(fn func(*history.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := history.Open(cfg.Paths.HistoryDB)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()
	return fn(store)
}

// decoder is what analysis needs from an opened recording. analysis may be
// nil, in which case frame checks share the primary source.
type decoder struct {
	src      frame.Source
	analysis frame.Source
	// index is nil for sources without their own timing; the pipeline then
	// assumes a constant frame rate.
	index    frame.Index
	close    func()
}

// openDecoder opens a recording for analysis. Tests replace it with a
// synthetic source.
var openDecoder = func(ctx context.Context, cfg *config.Config, path string, logger *slog.Logger) (*decoder, error) {
	src, err := ffmpeg.Open(ctx, path, ffmpeg.OptionsFromConfig(cfg, logger))
	if err != nil {
		return nil, err
	}
	analysis := src.Fork()
	return &decoder{
		src:      src,
		analysis: analysis,
		index:    src.Index(),
		close: func() {
			_ = analysis.Close()
			_ = src.Close()
		},
	}, nil
}

// growing reports whether path was modified within window.
func growing(path string, window time.Duration) func() bool {
	if window <= 0 {
		return nil
	}
	return func() bool {
		info, err := os.Stat(path)
		if err != nil {
			return false
		}
		return time.Since(info.ModTime()) < window
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}


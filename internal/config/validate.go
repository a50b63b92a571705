package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateLogo(); err != nil {
		return err
	}
	if err := c.validateDetectors(); err != nil {
		return err
	}
	if err := c.validateSelection(); err != nil {
		return err
	}
	if err := c.validateEvaluation(); err != nil {
		return err
	}
	if err := c.validateOverlap(); err != nil {
		return err
	}
	if err := c.validateRefine(); err != nil {
		return err
	}
	return c.validateChannels()
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateLogo() error {
	l := c.Logo
	if l.VisibleRatio <= 0 || l.VisibleRatio > 1 {
		return errors.New("logo.visible_ratio must be in (0, 1]")
	}
	if l.InvisibleRatio < 0 || l.InvisibleRatio >= l.VisibleRatio {
		return errors.New("logo.invisible_ratio must be in [0, visible_ratio)")
	}
	if l.VisibleFrames <= 0 || l.InvisibleFrames <= 0 {
		return errors.New("logo.visible_frames and logo.invisible_frames must be positive")
	}
	if l.EdgeThreshold <= 0 {
		return errors.New("logo.edge_threshold must be positive")
	}
	for i, band := range l.InvalidBands {
		if band.BrightnessMin > band.BrightnessMax || band.ContrastMin > band.ContrastMax {
			return fmt.Errorf("logo.invalid_bands[%d]: min exceeds max", i)
		}
	}
	if l.Extract {
		if l.ExtractFrames <= 0 {
			return errors.New("logo.extract_frames must be positive")
		}
		if l.ExtractStableRatio <= 0 || l.ExtractStableRatio > 1 {
			return errors.New("logo.extract_stable_ratio must be in (0, 1]")
		}
		if l.ExtractCornerRatio <= 0 || l.ExtractCornerRatio > 0.5 {
			return errors.New("logo.extract_corner_ratio must be in (0, 0.5]")
		}
	}
	return nil
}

func (c *Config) validateDetectors() error {
	if c.Border.MinSeconds < 0 {
		return errors.New("border.min_seconds must be non-negative")
	}
	if c.Border.StripRatio <= 0 || c.Border.StripRatio >= 0.5 {
		return errors.New("border.strip_ratio must be in (0, 0.5)")
	}
	if c.Black.Threshold <= 0 || c.Black.Threshold > 255 {
		return errors.New("black.threshold must be in (0, 255]")
	}
	if c.Scene.Threshold <= 0 || c.Scene.Threshold > 2 {
		return errors.New("scene.threshold must be in (0, 2]")
	}
	if _, _, err := ParseAspect(c.Aspect.Broadcast); err != nil {
		return fmt.Errorf("aspect.broadcast: %w", err)
	}
	if c.Decoder.GrowingWindowSeconds < 0 {
		return errors.New("decoder.growing_window_seconds must be non-negative")
	}
	return nil
}

func (c *Config) validateSelection() error {
	s := c.Selection
	values := map[string]float64{
		"selection.start_before_seconds":        s.StartBeforeSeconds,
		"selection.start_after_seconds":         s.StartAfterSeconds,
		"selection.stop_before_seconds":         s.StopBeforeSeconds,
		"selection.stop_after_seconds":          s.StopAfterSeconds,
		"selection.weak_window_seconds":         s.WeakWindowSeconds,
		"selection.logo_short_pair_max_seconds": s.LogoShortPairMaxSeconds,
	}
	return ensureNonNegative(values)
}

func (c *Config) validateEvaluation() error {
	e := c.Evaluation
	if e.LogoChangeMin > e.LogoChangeMax {
		return errors.New("evaluation.logo_change_min_seconds exceeds logo_change_max_seconds")
	}
	if e.InfoLogoMin > e.InfoLogoMax {
		return errors.New("evaluation.info_logo_min_seconds exceeds info_logo_max_seconds")
	}
	if e.AdvertisingMin <= e.LogoChangeMax {
		return errors.New("evaluation.advertising_min_seconds must exceed logo_change_max_seconds")
	}
	for key, ratio := range map[string]float64{
		"evaluation.info_logo_static_ratio":   e.InfoLogoStaticRatio,
		"evaluation.logo_change_ratio":        e.LogoChangeRatio,
		"evaluation.corner_static_similarity": e.CornerStaticSimilarity,
	} {
		if ratio < 0 || ratio > 1 {
			return fmt.Errorf("%s must be in [0, 1]", key)
		}
	}
	if e.LogoChangeRatio >= c.Logo.VisibleRatio {
		return errors.New("evaluation.logo_change_ratio must be below logo.visible_ratio")
	}
	return nil
}

func (c *Config) validateOverlap() error {
	o := c.Overlap
	if o.WindowSeconds <= 0 || o.MinRunSeconds <= 0 {
		return errors.New("overlap.window_seconds and overlap.min_run_seconds must be positive")
	}
	if o.Cutoff <= 0 || o.CutoffH264 < o.Cutoff {
		return errors.New("overlap.cutoff must be positive and not exceed overlap.cutoff_h264")
	}
	return nil
}

func (c *Config) validateRefine() error {
	if err := validateSnapWindow("refine.snap_window_seconds", c.Refine.SnapWindowSeconds); err != nil {
		return err
	}
	if c.Refine.SilenceThresholdDB >= 0 {
		return errors.New("refine.silence_threshold_db must be negative")
	}
	return nil
}

func (c *Config) validateChannels() error {
	for name, profile := range c.Channels {
		if strings.TrimSpace(name) == "" {
			return errors.New("channels: empty channel name")
		}
		if profile.SnapWindowSeconds != 0 {
			if err := validateSnapWindow(fmt.Sprintf("channels.%q.snap_window_seconds", name), profile.SnapWindowSeconds); err != nil {
				return err
			}
		}
		if profile.BroadcastAspect != "" {
			if _, _, err := ParseAspect(profile.BroadcastAspect); err != nil {
				return fmt.Errorf("channels.%q.broadcast_aspect: %w", name, err)
			}
		}
	}
	return nil
}

func validateSnapWindow(key string, value float64) error {
	if value < minSnapWindowSeconds || value > maxSnapWindowSeconds {
		return fmt.Errorf("%s must be between %.0f and %.0f", key, minSnapWindowSeconds, maxSnapWindowSeconds)
	}
	return nil
}

func ensureNonNegative(values map[string]float64) error {
	for key, value := range values {
		if value < 0 {
			return fmt.Errorf("%s must be non-negative", key)
		}
	}
	return nil
}

// ParseAspect parses "16:9" style ratios.
func ParseAspect(value string) (int, int, error) {
	num, den, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid aspect %q: expected <num>:<den>", value)
	}
	n, err := strconv.Atoi(strings.TrimSpace(num))
	if err != nil || n <= 0 {
		return 0, 0, fmt.Errorf("invalid aspect numerator %q", num)
	}
	d, err := strconv.Atoi(strings.TrimSpace(den))
	if err != nil || d <= 0 {
		return 0, 0, fmt.Errorf("invalid aspect denominator %q", den)
	}
	return n, d, nil
}

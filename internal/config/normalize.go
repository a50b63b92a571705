package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDecoder()
	c.normalizeLogging()
	c.normalizeChannels()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.LogoDir, err = expandPath(c.Paths.LogoDir); err != nil {
		return fmt.Errorf("paths.logo_dir: %w", err)
	}
	if c.Paths.HistoryDB, err = expandPath(c.Paths.HistoryDB); err != nil {
		return fmt.Errorf("paths.history_db: %w", err)
	}
	return nil
}

func (c *Config) normalizeDecoder() {
	c.Decoder.FFmpegBinary = strings.TrimSpace(c.Decoder.FFmpegBinary)
	if c.Decoder.FFmpegBinary == "" {
		c.Decoder.FFmpegBinary = "ffmpeg"
	}
	c.Decoder.FFprobeBinary = strings.TrimSpace(c.Decoder.FFprobeBinary)
	if c.Decoder.FFprobeBinary == "" {
		c.Decoder.FFprobeBinary = "ffprobe"
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	c.Aspect.Broadcast = strings.TrimSpace(c.Aspect.Broadcast)
	if c.Aspect.Broadcast == "" {
		c.Aspect.Broadcast = "4:3"
	}
}

func (c *Config) normalizeChannels() {
	if c.Channels == nil {
		c.Channels = map[string]ChannelProfile{}
	}
	for name, profile := range c.Channels {
		profile.BroadcastAspect = strings.TrimSpace(profile.BroadcastAspect)
		c.Channels[name] = profile
	}
}

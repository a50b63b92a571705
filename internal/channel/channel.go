// Package channel resolves per-channel profiles from configuration. Channel
// names arrive from recording metadata with inconsistent case and spacing, so
// lookups fold both sides.
package channel

import (
	"strings"

	"golang.org/x/text/cases"

	"markad/internal/config"
	"markad/internal/media/frame"
)

var folder = cases.Fold()

// Key normalises a channel name for comparison.
func Key(name string) string {
	return folder.String(strings.Join(strings.Fields(name), " "))
}

// Profile is the effective per-channel configuration.
type Profile struct {
	Name string
	config.ChannelProfile
	// Known is false when no profile matched and defaults apply.
	Known bool
}

// Resolve returns the profile configured for name.
func Resolve(cfg *config.Config, name string) Profile {
	p := Profile{Name: strings.TrimSpace(name)}
	if p.Name == "" {
		return p
	}
	want := Key(name)
	for configured, profile := range cfg.Channels {
		if Key(configured) == want {
			p.ChannelProfile = profile
			p.Known = true
			return p
		}
	}
	return p
}

// SnapWindowSeconds returns the Pass 3 snap window: the profile override,
// else the configured default.
func (p Profile) SnapWindowSeconds(cfg *config.Config) float64 {
	if p.ChannelProfile.SnapWindowSeconds > 0 {
		return p.ChannelProfile.SnapWindowSeconds
	}
	return cfg.Refine.SnapWindowSeconds
}

// BroadcastAspect returns the aspect ratio that delimits broadcast content.
func (p Profile) BroadcastAspect(cfg *config.Config) frame.Ratio {
	value := cfg.Aspect.Broadcast
	if p.ChannelProfile.BroadcastAspect != "" {
		value = p.ChannelProfile.BroadcastAspect
	}
	num, den, err := config.ParseAspect(value)
	if err != nil {
		return frame.Ratio4x3
	}
	return frame.Ratio{Num: num, Den: den}
}

// LogoEnabled reports whether logo detection runs for this channel.
func (p Profile) LogoEnabled(cfg *config.Config) bool {
	return cfg.Logo.Enabled && !p.DisableLogo
}

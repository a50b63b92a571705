package config

const (
	defaultConfigPath = "~/.config/markad/config.toml"
	defaultLogDir     = "~/.local/state/markad/logs"
	defaultLogoDir    = "~/.local/share/markad/logos"
	defaultHistoryDB  = "~/.local/share/markad/history.db"

	// Snap windows outside this range either miss the black screen that
	// belongs to the boundary or reach into the neighbouring scene.
	minSnapWindowSeconds = 5.0
	maxSnapWindowSeconds = 12.0
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:    defaultLogDir,
			LogoDir:   defaultLogoDir,
			HistoryDB: defaultHistoryDB,
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
		Decoder: Decoder{
			FFmpegBinary:         "ffmpeg",
			FFprobeBinary:        "ffprobe",
			GrowingWindowSeconds: 60,
		},
		Logo: Logo{
			Enabled:         true,
			VisibleRatio:    0.5,
			InvisibleRatio:  0.15,
			VisibleFrames:   5,
			InvisibleFrames: 8,
			EdgeThreshold:   100,
			BrightnessLimit: 180,
			InvalidBands: []BrightnessBand{
				{BrightnessMin: 200, BrightnessMax: 255, ContrastMin: 0, ContrastMax: 20},
			},
			Extract:            true,
			ExtractFrames:      250,
			ExtractStableRatio: 0.8,
			ExtractCornerRatio: 0.25,
		},
		Border: Border{
			Enabled:    true,
			Brightness: 24,
			MinSeconds: 10,
			StripRatio: 0.08,
		},
		Black: Black{
			Enabled:   true,
			Threshold: 22,
		},
		Scene: Scene{
			Enabled:   true,
			Threshold: 0.55,
		},
		Aspect: Aspect{
			Enabled:   true,
			Broadcast: "4:3",
		},
		Audio: Audio{
			Enabled: true,
		},
		Selection: Selection{
			StartBeforeSeconds:      300,
			StartAfterSeconds:       480,
			StopBeforeSeconds:       600,
			StopAfterSeconds:        600,
			WeakWindowSeconds:       60,
			MinChannelBroadcast:     60,
			MinHBorderBroadcast:     120,
			MinVBorderBroadcast:     120,
			LogoShortPairMaxSeconds: 13,
			PreviewMaxSeconds:       60,
			PreviewGapMinSeconds:    5,
			DisableWeakerDetectors:  true,
		},
		Evaluation: Evaluation{
			LogoChangeMin:          11,
			LogoChangeMax:          21,
			AdvertisingMin:         300,
			NextStopMin:            7,
			BroadcastMin:           240,
			InfoLogoMin:            4,
			InfoLogoMax:            17,
			InfoLogoBlackMin:       1,
			InfoLogoBlackDistance:  5,
			InfoLogoStaticRatio:    0.8,
			LogoChangeRatio:        0.2,
			CornerStaticSimilarity: 0.85,
			ClosingCreditsMin:      6,
			ClosingCreditsScan:     60,
			FrameChecks:            true,
		},
		Overlap: Overlap{
			WindowSeconds: 120,
			MinRunSeconds: 0.4,
			Cutoff:        0.15,
			CutoffH264:    0.25,
		},
		Refine: Refine{
			SnapWindowSeconds:  maxSnapWindowSeconds,
			SilenceThresholdDB: -50,
			SilenceMinSeconds:  0.2,
		},
		Passes: Passes{
			Overlap: true,
			Refine:  true,
		},
		Channels: map[string]ChannelProfile{},
	}
}

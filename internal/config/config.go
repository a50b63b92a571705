package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and database locations.
type Paths struct {
	LogDir    string `toml:"log_dir"`
	LogoDir   string `toml:"logo_dir"`
	HistoryDB string `toml:"history_db"`
}

// Logging selects the slog handler and level.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Decoder configures the ffmpeg/ffprobe adapter.
type Decoder struct {
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
	// FullDecode feeds every video frame to the video detectors instead of
	// key frames only.
	FullDecode bool `toml:"full_decode"`
	// GrowingWindowSeconds treats a recording modified within this window as
	// still being written; checkpoint saves are skipped while it grows.
	GrowingWindowSeconds int `toml:"growing_window_seconds"`
}

// BrightnessBand is a (brightness, contrast) rectangle in which logo
// detection results are discarded as unreliable.
type BrightnessBand struct {
	BrightnessMin int `toml:"brightness_min"`
	BrightnessMax int `toml:"brightness_max"`
	ContrastMin   int `toml:"contrast_min"`
	ContrastMax   int `toml:"contrast_max"`
}

// Logo configures the logo detector and the mask extractor.
type Logo struct {
	Enabled            bool             `toml:"enabled"`
	VisibleRatio       float64          `toml:"visible_ratio"`
	InvisibleRatio     float64          `toml:"invisible_ratio"`
	VisibleFrames      int              `toml:"visible_frames"`
	InvisibleFrames    int              `toml:"invisible_frames"`
	EdgeThreshold      int              `toml:"edge_threshold"`
	BrightnessLimit    int              `toml:"brightness_limit"`
	InvalidBands       []BrightnessBand `toml:"invalid_bands"`
	Extract            bool             `toml:"extract"`
	ExtractFrames      int              `toml:"extract_frames"`
	ExtractStableRatio float64          `toml:"extract_stable_ratio"`
	ExtractCornerRatio float64          `toml:"extract_corner_ratio"`
}

// Border configures the horizontal and vertical border detectors.
type Border struct {
	Enabled    bool    `toml:"enabled"`
	Brightness int     `toml:"brightness"`
	MinSeconds float64 `toml:"min_seconds"`
	StripRatio float64 `toml:"strip_ratio"`
}

// Black configures the black screen detector.
type Black struct {
	Enabled   bool `toml:"enabled"`
	Threshold int  `toml:"threshold"`
}

// Scene configures the scene change detector used by refinement.
type Scene struct {
	Enabled   bool    `toml:"enabled"`
	Threshold float64 `toml:"threshold"`
}

// Aspect configures the aspect ratio detector.
type Aspect struct {
	Enabled bool `toml:"enabled"`
	// Broadcast is the aspect ratio that marks broadcast content, e.g. "4:3".
	Broadcast string `toml:"broadcast"`
}

// Audio configures the audio channel detector.
type Audio struct {
	Enabled bool `toml:"enabled"`
}

// Selection holds the BoundarySelector search windows, in seconds.
type Selection struct {
	StartBeforeSeconds      float64 `toml:"start_before_seconds"`
	StartAfterSeconds       float64 `toml:"start_after_seconds"`
	StopBeforeSeconds       float64 `toml:"stop_before_seconds"`
	StopAfterSeconds        float64 `toml:"stop_after_seconds"`
	WeakWindowSeconds       float64 `toml:"weak_window_seconds"`
	MinChannelBroadcast     float64 `toml:"min_channel_broadcast_seconds"`
	MinHBorderBroadcast     float64 `toml:"min_hborder_broadcast_seconds"`
	MinVBorderBroadcast     float64 `toml:"min_vborder_broadcast_seconds"`
	LogoShortPairMaxSeconds float64 `toml:"logo_short_pair_max_seconds"`
	PreviewMaxSeconds       float64 `toml:"preview_max_seconds"`
	PreviewGapMinSeconds    float64 `toml:"preview_gap_min_seconds"`
	DisableWeakerDetectors  bool    `toml:"disable_weaker_detectors"`
}

// Evaluation holds the PairEvaluator thresholds, in seconds unless noted.
type Evaluation struct {
	LogoChangeMin          float64 `toml:"logo_change_min_seconds"`
	LogoChangeMax          float64 `toml:"logo_change_max_seconds"`
	AdvertisingMin         float64 `toml:"advertising_min_seconds"`
	NextStopMin            float64 `toml:"next_stop_min_seconds"`
	BroadcastMin           float64 `toml:"broadcast_min_seconds"`
	InfoLogoMin            float64 `toml:"info_logo_min_seconds"`
	InfoLogoMax            float64 `toml:"info_logo_max_seconds"`
	InfoLogoBlackMin       float64 `toml:"info_logo_black_min_seconds"`
	InfoLogoBlackDistance  float64 `toml:"info_logo_black_distance_seconds"`
	InfoLogoStaticRatio    float64 `toml:"info_logo_static_ratio"`
	LogoChangeRatio        float64 `toml:"logo_change_ratio"`
	CornerStaticSimilarity float64 `toml:"corner_static_similarity"`
	ClosingCreditsMin      float64 `toml:"closing_credits_min_seconds"`
	ClosingCreditsScan     float64 `toml:"closing_credits_scan_seconds"`
	FrameChecks            bool    `toml:"frame_checks"`
}

// Overlap configures repeated-content detection around ad breaks.
type Overlap struct {
	WindowSeconds float64 `toml:"window_seconds"`
	MinRunSeconds float64 `toml:"min_run_seconds"`
	// Cutoff and CutoffH264 are the maximum L1 histogram distance per sampled
	// pixel for two frames to count as similar.
	Cutoff     float64 `toml:"cutoff"`
	CutoffH264 float64 `toml:"cutoff_h264"`
}

// Refine configures snapping to black screens, silence, and scene changes.
type Refine struct {
	SnapWindowSeconds  float64 `toml:"snap_window_seconds"`
	SilenceThresholdDB float64 `toml:"silence_threshold_db"`
	SilenceMinSeconds  float64 `toml:"silence_min_seconds"`
}

// Passes toggles the optional refinement passes.
type Passes struct {
	Overlap bool `toml:"overlap"`
	Refine  bool `toml:"refine"`
}

// Metrics configures the optional Prometheus endpoint.
type Metrics struct {
	Listen string `toml:"listen"`
}

// ChannelProfile carries per-channel overrides keyed by channel name.
type ChannelProfile struct {
	ColorInsensitiveLogo bool    `toml:"color_insensitive_logo"`
	SnapWindowSeconds    float64 `toml:"snap_window_seconds"`
	BroadcastAspect      string  `toml:"broadcast_aspect"`
	DisableLogo          bool    `toml:"disable_logo"`
}

// Config encapsulates all configuration values for markad.
type Config struct {
	Paths      Paths                     `toml:"paths"`
	Logging    Logging                   `toml:"logging"`
	Decoder    Decoder                   `toml:"decoder"`
	Logo       Logo                      `toml:"logo"`
	Border     Border                    `toml:"border"`
	Black      Black                     `toml:"black"`
	Scene      Scene                     `toml:"scene"`
	Aspect     Aspect                    `toml:"aspect"`
	Audio      Audio                     `toml:"audio"`
	Selection  Selection                 `toml:"selection"`
	Evaluation Evaluation                `toml:"evaluation"`
	Overlap    Overlap                   `toml:"overlap"`
	Refine     Refine                    `toml:"refine"`
	Passes     Passes                    `toml:"passes"`
	Metrics    Metrics                   `toml:"metrics"`
	Channels   map[string]ChannelProfile `toml:"channels"`
}

// DefaultConfigPath returns the absolute path to the default configuration file.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load reads configuration from disk, applying defaults and normalization.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("markad.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the log and logo directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.LogoDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Paths.HistoryDB != "" {
		if err := os.MkdirAll(filepath.Dir(c.Paths.HistoryDB), 0o755); err != nil {
			return fmt.Errorf("create history directory: %w", err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath expands a user path (including ~) to an absolute path.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the provided path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"markad/internal/config"
	"markad/internal/detect"
	"markad/internal/logging"
	"markad/internal/media/frame"
	"markad/internal/services"
)

// ExtractLogo scans src from its current position and derives a logo mask
// from up to Logo.ExtractFrames usable frames. Non-key frames are skipped
// unless full decode is enabled.
func ExtractLogo(ctx context.Context, src frame.Source, cfg *config.Config, logger *slog.Logger) (*detect.LogoMask, error) {
	logger = logging.NewComponentLogger(logger, "logo-extract")
	ex := detect.NewExtractor(detect.ExtractOptionsFromConfig(cfg.Logo, cfg.Black))
	for ex.Frames() < cfg.Logo.ExtractFrames {
		f, err := src.ReadFrame(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, wrapSource("read frame for logo extraction", err)
		}
		if !f.IsVideo() || (!f.Key && !cfg.Decoder.FullDecode) {
			continue
		}
		ex.Add(f)
	}
	mask, err := ex.Result()
	if err != nil {
		return nil, fmt.Errorf("extract logo after %d frames: %w", ex.Frames(), err)
	}
	logger.Info("logo extracted",
		logging.String(logging.FieldEventType, "logo_extracted"),
		logging.String("corner", mask.Corner.String()),
		logging.String("aspect", mask.Aspect.String()),
		logging.Int("frames", ex.Frames()),
	)
	return mask, nil
}

// prepareLogo loads or extracts the channel logo. A missing logo disables
// the logo detector; it is never fatal.
func (p *Pipeline) prepareLogo(ctx context.Context) (*detect.LogoMask, error) {
	if !p.profile.LogoEnabled(p.cfg) {
		return nil, nil
	}
	logger := logging.WithContext(ctx, p.logger)
	first, err := firstVideoFrame(ctx, p.src)
	if err != nil {
		return nil, err
	}
	if first == nil {
		return nil, nil
	}
	defer func() {
		if err := p.src.Seek(ctx, 0); err != nil {
			logger.Debug("rewind after logo preparation failed", logging.Error(err))
		}
	}()

	mask, err := detect.LoadMask(p.cfg.Paths.LogoDir, p.profile.Name, first.Aspect)
	switch {
	case err == nil:
		logger.Info("logo mask loaded", logging.String("corner", mask.Corner.String()))
	case errors.Is(err, detect.ErrNoMask) && p.cfg.Logo.Extract:
		if err := p.src.Seek(ctx, 0); err != nil {
			return nil, wrapSource("rewind for logo extraction", err)
		}
		mask, err = ExtractLogo(ctx, p.src, p.cfg, p.logger)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if err != nil {
			logger.Info("no logo found, logo detection disabled", logging.Error(err))
			return nil, nil
		}
		if p.profile.Name != "" {
			if err := mask.Save(p.cfg.Paths.LogoDir, p.profile.Name); err != nil {
				logging.WarnWithContext(logger, "logo mask not saved", "logo_save_failed",
					logging.Error(services.Wrap(services.ErrTransient, PassDetect, "save logo", p.cfg.Paths.LogoDir, err)))
			}
		}
	case errors.Is(err, detect.ErrNoMask):
		logger.Info("no logo mask, logo detection disabled", logging.String("aspect", first.Aspect.String()))
		return nil, nil
	default:
		logging.WarnWithContext(logger, "logo mask unreadable", "logo_load_failed", logging.Error(err))
		return nil, nil
	}
	if p.profile.ColorInsensitiveLogo {
		mask = mask.ColorInsensitive()
	}
	return mask, nil
}

func firstVideoFrame(ctx context.Context, src frame.Source) (*frame.Frame, error) {
	for {
		f, err := src.ReadFrame(ctx)
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		if err != nil {
			return nil, wrapSource("read first frame", err)
		}
		if f.IsVideo() {
			return f, nil
		}
	}
}

package evaluate

import (
	"context"
	"errors"
	"fmt"
	"io"

	"markad/internal/config"
	"markad/internal/detect"
	"markad/internal/media/frame"
)

// FrameInfo describes one analysed frame.
type FrameInfo struct {
	Frame int
	// LogoRatio is the logo mask match ratio, or -1 when it could not be judged.
	LogoRatio float64
	// Static reports per corner (detect.Corners order) whether the edges
	// match the previous analysed frame.
	Static [4]bool
}

// StaticCorners counts static corners.
func (fi FrameInfo) StaticCorners() int {
	n := 0
	for _, s := range fi.Static {
		if s {
			n++
		}
	}
	return n
}

// FrameAnalyzer reads a frame range and reports per-frame corner statistics.
type FrameAnalyzer interface {
	Frames(ctx context.Context, from, to int) ([]FrameInfo, error)
	// LogoCorner returns the corner that carries the logo, if known.
	LogoCorner() (detect.Corner, bool)
}

// CornerOptions tunes a CornerAnalyzer.
type CornerOptions struct {
	EdgeThreshold int
	CornerRatio   float64
	// Similarity is the smallest edge Jaccard index counted as static.
	Similarity float64
	// KeyOnly restricts analysis to key frames.
	KeyOnly bool
}

// CornerOptionsFromConfig maps the [logo], [evaluation] and [decoder] sections.
func CornerOptionsFromConfig(cfg *config.Config) CornerOptions {
	return CornerOptions{
		EdgeThreshold: cfg.Logo.EdgeThreshold,
		CornerRatio:   cfg.Logo.ExtractCornerRatio,
		Similarity:    cfg.Evaluation.CornerStaticSimilarity,
		KeyOnly:       !cfg.Decoder.FullDecode,
	}
}

// CornerAnalyzer implements FrameAnalyzer by seeking a Source and comparing
// corner edge maps of consecutive frames.
type CornerAnalyzer struct {
	src  frame.Source
	logo *detect.Logo
	opts CornerOptions

	prev [4][]byte
	cur  [4][]byte
}

// NewCornerAnalyzer returns an analyzer reading src. logo may be nil; then
// LogoRatio is always -1.
func NewCornerAnalyzer(src frame.Source, logo *detect.Logo, opts CornerOptions) *CornerAnalyzer {
	return &CornerAnalyzer{src: src, logo: logo, opts: opts}
}

func (a *CornerAnalyzer) LogoCorner() (detect.Corner, bool) {
	if a.logo == nil {
		return 0, false
	}
	return a.logo.Mask().Corner, true
}

func (a *CornerAnalyzer) Frames(ctx context.Context, from, to int) ([]FrameInfo, error) {
	if to < from {
		return nil, nil
	}
	if err := a.src.Seek(ctx, max(from, 0)); err != nil {
		return nil, fmt.Errorf("seek to frame %d: %w", from, err)
	}
	var out []FrameInfo
	have := false
	for {
		f, err := a.src.ReadFrame(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return out, fmt.Errorf("read frame: %w", err)
		}
		if !f.IsVideo() || (a.opts.KeyOnly && !f.Key) || f.Luma() == nil {
			continue
		}
		if f.Number > to {
			break
		}
		fi := FrameInfo{Frame: f.Number, LogoRatio: -1}
		if a.logo != nil {
			if ratio, ok := a.logo.Score(f); ok {
				fi.LogoRatio = ratio
			}
		}
		luma := f.Luma()
		cw := int(float64(luma.Width) * a.opts.CornerRatio)
		ch := int(float64(luma.Height) * a.opts.CornerRatio)
		for i, c := range detect.Corners {
			r := detect.CornerRect(c, luma.Width, luma.Height, cw, ch)
			a.cur[i], _ = detect.EdgeMap(luma, r, a.opts.EdgeThreshold, a.cur[i])
			if have && len(a.prev[i]) == len(a.cur[i]) {
				fi.Static[i] = jaccard(a.prev[i], a.cur[i]) >= a.opts.Similarity
			}
		}
		a.prev, a.cur = a.cur, a.prev
		have = true
		out = append(out, fi)
	}
	return out, nil
}

// jaccard is the edge set similarity of two maps (edges are 0). Two maps
// without edges are identical.
func jaccard(a, b []byte) float64 {
	inter, union := 0, 0
	for i := range a {
		ea, eb := a[i] == 0, b[i] == 0
		if ea && eb {
			inter++
		}
		if ea || eb {
			union++
		}
	}
	if union == 0 {
		return 1
	}
	return float64(inter) / float64(union)
}

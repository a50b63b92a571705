package detect

import (
	"errors"
	"image"

	"markad/internal/config"
	"markad/internal/media/frame"
)

// ErrNoLogoFound reports that no corner held stable edges.
var ErrNoLogoFound = errors.New("no stable logo found")

// ExtractOptions tunes logo extraction.
type ExtractOptions struct {
	EdgeThreshold  int
	StableRatio    float64
	CornerRatio    float64
	BlackThreshold int
	// MinPixels is the smallest edge pixel count accepted as a logo.
	MinPixels int
	// Margin widens the cropped bounding box on every side.
	Margin int
}

// ExtractOptionsFromConfig maps the [logo] and [black] sections.
func ExtractOptionsFromConfig(c config.Logo, black config.Black) ExtractOptions {
	return ExtractOptions{
		EdgeThreshold:  c.EdgeThreshold,
		StableRatio:    c.ExtractStableRatio,
		CornerRatio:    c.ExtractCornerRatio,
		BlackThreshold: black.Threshold,
		MinPixels:      50,
		Margin:         2,
	}
}

// Extractor accumulates corner edges over many frames and derives a mask
// from the corner whose edges are most stable.
type Extractor struct {
	opts    ExtractOptions
	width   int
	height  int
	rects   [4]image.Rectangle
	counts  [4][]uint16
	frames  int
	aspect  frame.Ratio
	scratch []byte
}

// NewExtractor returns an empty extractor.
func NewExtractor(opts ExtractOptions) *Extractor {
	if opts.Margin < 0 {
		opts.Margin = 0
	}
	return &Extractor{opts: opts}
}

// Frames returns how many frames were accumulated.
func (e *Extractor) Frames() int { return e.frames }

// Add accumulates f. Black frames and frames of a different size than the
// first one are skipped. It reports whether the frame was used.
func (e *Extractor) Add(f *frame.Frame) bool {
	luma := f.Luma()
	if luma == nil {
		return false
	}
	if e.frames == 0 && e.width == 0 {
		e.width, e.height = luma.Width, luma.Height
		e.aspect = f.Aspect
		cw := int(float64(luma.Width) * e.opts.CornerRatio)
		ch := int(float64(luma.Height) * e.opts.CornerRatio)
		for i, c := range Corners {
			e.rects[i] = CornerRect(c, luma.Width, luma.Height, cw, ch)
			e.counts[i] = make([]uint16, cw*ch)
		}
	}
	if luma.Width != e.width || luma.Height != e.height {
		return false
	}
	if luma.RegionStats(luma.Bounds(), 8).Mean <= e.opts.BlackThreshold {
		return false
	}
	for i, r := range e.rects {
		var edges []byte
		edges, _ = EdgeMap(luma, r, e.opts.EdgeThreshold, e.scratch)
		e.scratch = edges
		counts := e.counts[i]
		for j, v := range edges {
			if v == edgePixel && counts[j] < 0xffff {
				counts[j]++
			}
		}
	}
	e.frames++
	return true
}

// Result picks the corner with the most stable edge pixels and returns its
// cropped mask.
func (e *Extractor) Result() (*LogoMask, error) {
	if e.frames == 0 {
		return nil, ErrNoLogoFound
	}
	need := uint16(max(int(float64(e.frames)*e.opts.StableRatio+0.5), 1))
	best, bestPixels := -1, 0
	for i := range e.counts {
		n := 0
		for _, v := range e.counts[i] {
			if v >= need {
				n++
			}
		}
		if n > bestPixels {
			best, bestPixels = i, n
		}
	}
	if best < 0 || bestPixels < e.opts.MinPixels {
		return nil, ErrNoLogoFound
	}

	r := e.rects[best]
	w := r.Dx()
	counts := e.counts[best]
	box := image.Rectangle{Min: image.Pt(w, r.Dy()), Max: image.Pt(-1, -1)}
	for j, v := range counts {
		if v < need {
			continue
		}
		x, y := j%w, j/w
		box.Min.X, box.Min.Y = min(box.Min.X, x), min(box.Min.Y, y)
		box.Max.X, box.Max.Y = max(box.Max.X, x+1), max(box.Max.Y, y+1)
	}
	box = box.Inset(-e.opts.Margin).Intersect(image.Rect(0, 0, w, r.Dy()))
	// Keep even offsets and sizes so chroma planes line up at half size.
	box.Min.X &^= 1
	box.Min.Y &^= 1
	box.Max.X = min(box.Max.X+(box.Dx()&1), w)
	box.Max.Y = min(box.Max.Y+(box.Dy()&1), r.Dy())

	mw, mh := box.Dx(), box.Dy()
	data := make([]byte, mw*mh)
	for y := 0; y < mh; y++ {
		for x := 0; x < mw; x++ {
			v := byte(backgroundPixel)
			if counts[(box.Min.Y+y)*w+box.Min.X+x] >= need {
				v = edgePixel
			}
			data[y*mw+x] = v
		}
	}
	return &LogoMask{
		Corner: Corners[best],
		Aspect: e.aspect,
		X:      r.Min.X + box.Min.X,
		Y:      r.Min.Y + box.Min.Y,
		Planes: [3]MaskPlane{{Data: data, Width: mw, Height: mh}},
	}, nil
}

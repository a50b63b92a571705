package detect

import (
	"fmt"
	"image"
	"log/slog"

	"markad/internal/config"
	"markad/internal/logging"
	"markad/internal/marks"
	"markad/internal/media/frame"
)

// LogoOptions tunes the logo detector.
type LogoOptions struct {
	VisibleRatio    float64
	InvisibleRatio  float64
	VisibleFrames   int
	InvisibleFrames int
	EdgeThreshold   int
	BrightnessLimit int
	InvalidBands    []config.BrightnessBand
}

// LogoOptionsFromConfig maps the [logo] section.
func LogoOptionsFromConfig(c config.Logo) LogoOptions {
	return LogoOptions{
		VisibleRatio:    c.VisibleRatio,
		InvisibleRatio:  c.InvisibleRatio,
		VisibleFrames:   c.VisibleFrames,
		InvisibleFrames: c.InvisibleFrames,
		EdgeThreshold:   c.EdgeThreshold,
		BrightnessLimit: c.BrightnessLimit,
		InvalidBands:    c.InvalidBands,
	}
}

// Logo detects the channel logo by matching Sobel edges of the logo area
// against a LogoMask.
type Logo struct {
	opts   LogoOptions
	mask   *LogoMask
	pixels [3]int
	logger *slog.Logger

	status    Status
	pending   Status
	counter   int
	candidate int
	scratch   [3][]byte
	stretch   []byte

	// LastBrightness is the corner brightness of the last scored frame.
	LastBrightness int
}

// NewLogo returns a logo detector for mask.
func NewLogo(mask *LogoMask, opts LogoOptions, logger *slog.Logger) *Logo {
	d := &Logo{opts: opts, mask: mask, logger: logging.NewComponentLogger(logger, "logo")}
	for p := range mask.Planes {
		d.pixels[p] = mask.Planes[p].Pixels()
	}
	return d
}

func (d *Logo) Class() marks.Class { return marks.ClassLogo }

// Mask returns the mask in use.
func (d *Logo) Mask() *LogoMask { return d.mask }

// Status returns the confirmed visibility.
func (d *Logo) Status() Status { return d.status }

func (d *Logo) Reset() {
	d.status = StatusUninitialized
	d.pending = StatusUninitialized
	d.counter = 0
	d.candidate = 0
}

// Score returns the share of mask edge pixels matched by f. ok is false when
// the frame cannot be judged: no luma, mask outside the picture, or corner
// brightness and contrast inside an invalid band.
func (d *Logo) Score(f *frame.Frame) (ratio float64, ok bool) {
	luma := f.Luma()
	if luma == nil || d.pixels[0] == 0 {
		return 0, false
	}
	area := d.mask.Rect(0)
	if !area.In(luma.Bounds()) {
		return 0, false
	}
	st := luma.RegionStats(area, 2)
	d.LastBrightness = st.Mean
	for _, band := range d.opts.InvalidBands {
		if st.Mean >= band.BrightnessMin && st.Mean <= band.BrightnessMax &&
			st.Contrast() >= band.ContrastMin && st.Contrast() <= band.ContrastMax {
			return 0, false
		}
	}

	ratio = d.match(f, area)
	if ratio < d.opts.VisibleRatio && d.opts.BrightnessLimit > 0 && st.Mean > d.opts.BrightnessLimit && st.Contrast() > 0 {
		// Bright backgrounds wash out logo edges; stretch the corner to the
		// full range and try the luma plane once more.
		if retry := d.matchStretched(luma, area, st); retry > ratio {
			d.logger.Debug("logo matched after brightness normalisation",
				logging.Frame(f.Number), logging.Int("brightness", st.Mean),
				logging.Float64("ratio", retry))
			ratio = retry
		}
	}
	return ratio, true
}

func (d *Logo) match(f *frame.Frame, lumaArea image.Rectangle) float64 {
	matched, total := 0, 0
	for p := range d.mask.Planes {
		if d.pixels[p] == 0 || p >= len(f.Planes) {
			continue
		}
		area := lumaArea
		if p > 0 {
			area = d.mask.Rect(p)
		}
		plane := &f.Planes[p]
		if !area.In(plane.Bounds()) {
			continue
		}
		var edges []byte
		edges, _ = EdgeMap(plane, area, d.opts.EdgeThreshold, d.scratch[p])
		d.scratch[p] = edges
		matched += countMatches(d.mask.Planes[p].Data, edges)
		total += d.pixels[p]
	}
	if total == 0 {
		return 0
	}
	return float64(matched) / float64(total)
}

func (d *Logo) matchStretched(luma *frame.Plane, area image.Rectangle, st frame.Stats) float64 {
	w, h := area.Dx(), area.Dy()
	if cap(d.stretch) < w*h {
		d.stretch = make([]byte, w*h)
	}
	buf := d.stretch[:w*h]
	span := st.Contrast()
	for y := 0; y < h; y++ {
		row := luma.Data[(area.Min.Y+y)*luma.Stride+area.Min.X:]
		for x := 0; x < w; x++ {
			v := (int(row[x]) - st.Min) * 255 / span
			buf[y*w+x] = byte(min(max(v, 0), 255))
		}
	}
	plane := frame.Plane{Data: buf, Stride: w, Width: w, Height: h}
	edges, _ := EdgeMap(&plane, plane.Bounds(), d.opts.EdgeThreshold, d.scratch[0])
	d.scratch[0] = edges
	return float64(countMatches(d.mask.Planes[0].Data, edges)) / float64(d.pixels[0])
}

func countMatches(mask, edges []byte) int {
	n := 0
	for i, m := range mask {
		if m == edgePixel && i < len(edges) && edges[i] == edgePixel {
			n++
		}
	}
	return n
}

// Detect applies hysteresis to Score. Ratios between the invisible and
// visible thresholds leave the counters untouched.
func (d *Logo) Detect(f *frame.Frame) (Event, bool) {
	if !f.IsVideo() {
		return Event{}, false
	}
	ratio, ok := d.Score(f)
	if !ok {
		d.logger.Debug("logo frame ambiguous", logging.Frame(f.Number), logging.Int("brightness", d.LastBrightness))
		return Event{}, false
	}
	var obs Status
	switch {
	case ratio >= d.opts.VisibleRatio:
		obs = StatusVisible
	case ratio <= d.opts.InvisibleRatio:
		obs = StatusInvisible
	default:
		return Event{}, false
	}

	if obs == d.status {
		d.counter = 0
		d.pending = StatusUninitialized
		return Event{}, false
	}
	if obs != d.pending {
		d.pending = obs
		d.counter = 0
		d.candidate = f.Number
	}
	d.counter++
	need := d.opts.InvisibleFrames
	if obs == StatusVisible {
		need = d.opts.VisibleFrames
	}
	if d.counter < need {
		return Event{}, false
	}

	prev := d.status
	d.status = obs
	d.pending = StatusUninitialized
	d.counter = 0
	if prev == StatusUninitialized && obs == StatusInvisible {
		return Event{}, false
	}
	kind := marks.Start
	if obs == StatusInvisible {
		kind = marks.Stop
	}
	return Event{
		Class:  marks.ClassLogo,
		Kind:   kind,
		Frame:  d.candidate,
		Detail: fmt.Sprintf("%s ratio %.2f", d.mask.Corner, ratio),
	}, true
}

package detect

import (
	"fmt"
	"image"

	"markad/internal/config"
	"markad/internal/marks"
	"markad/internal/media/frame"
)

// Orientation selects which picture edges a Border detector inspects.
type Orientation int

const (
	// Horizontal borders are bars above and below the picture (letterbox).
	Horizontal Orientation = iota
	// Vertical borders are bars left and right of the picture (pillarbox).
	Vertical
)

// BorderOptions tunes a Border detector.
type BorderOptions struct {
	// Brightness is the highest mean luma a bar may have.
	Brightness int
	// MinFrames is how long bars must persist before a start is declared.
	MinFrames int
	// StripRatio is the share of height (or width) sampled on each side.
	StripRatio float64
	// BlackThreshold marks fully black pictures, which are ambiguous.
	BlackThreshold int
}

// BorderOptionsFromConfig converts the [border] section for a frame rate.
func BorderOptionsFromConfig(c config.Border, black config.Black, fps float64) BorderOptions {
	return BorderOptions{
		Brightness:     c.Brightness,
		MinFrames:      int(c.MinSeconds * fps),
		StripRatio:     c.StripRatio,
		BlackThreshold: black.Threshold,
	}
}

// Border detects letterbox or pillarbox bars.
type Border struct {
	orientation Orientation
	opts        BorderOptions

	status    Status
	candidate int
	last      int
}

// NewBorder returns a border detector for the given orientation.
func NewBorder(o Orientation, opts BorderOptions) *Border {
	b := &Border{orientation: o, opts: opts}
	b.Reset()
	return b
}

func (b *Border) Class() marks.Class {
	if b.orientation == Vertical {
		return marks.ClassVBorder
	}
	return marks.ClassHBorder
}

func (b *Border) Reset() {
	b.status = StatusUninitialized
	b.candidate = -1
	b.last = -1
}

func (b *Border) strips(p *frame.Plane) (image.Rectangle, image.Rectangle, image.Rectangle) {
	if b.orientation == Vertical {
		sw := max(int(float64(p.Width)*b.opts.StripRatio), 1)
		return image.Rect(0, 0, sw, p.Height),
			image.Rect(p.Width-sw, 0, p.Width, p.Height),
			image.Rect(p.Width/4, p.Height/4, p.Width*3/4, p.Height*3/4)
	}
	sh := max(int(float64(p.Height)*b.opts.StripRatio), 1)
	return image.Rect(0, 0, p.Width, sh),
		image.Rect(0, p.Height-sh, p.Width, p.Height),
		image.Rect(p.Width/4, p.Height/4, p.Width*3/4, p.Height*3/4)
}

func (b *Border) Detect(f *frame.Frame) (Event, bool) {
	luma := f.Luma()
	if luma == nil {
		return Event{}, false
	}
	first, second, center := b.strips(luma)
	if luma.RegionStats(center, 4).Mean <= b.opts.BlackThreshold {
		return Event{}, false
	}
	a, c := luma.RegionStats(first, 4), luma.RegionStats(second, 4)
	bars := a.Mean <= b.opts.Brightness && c.Mean <= b.opts.Brightness

	if bars {
		b.last = f.Number
		if b.status == StatusVisible {
			return Event{}, false
		}
		if b.candidate < 0 {
			b.candidate = f.Number
		}
		if f.Number-b.candidate < b.opts.MinFrames {
			return Event{}, false
		}
		b.status = StatusVisible
		return Event{
			Class:  b.Class(),
			Kind:   marks.Start,
			Frame:  b.candidate,
			Detail: fmt.Sprintf("bars %d/%d", a.Mean, c.Mean),
		}, true
	}

	b.candidate = -1
	if b.status != StatusVisible {
		b.status = StatusInvisible
		return Event{}, false
	}
	b.status = StatusInvisible
	return Event{Class: b.Class(), Kind: marks.Stop, Frame: b.last}, true
}

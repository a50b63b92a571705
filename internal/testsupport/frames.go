package testsupport

import (
	"image"

	"markad/internal/media/frame"
)

// Synthetic recordings use a small picture so tests stay fast.
const (
	FrameWidth  = 160
	FrameHeight = 120
	KeyInterval = 12
)

// LogoRect is where synthetic frames draw the channel logo (top right).
var LogoRect = image.Rect(FrameWidth-36, 8, FrameWidth-8, 30)

// Segment describes a run of identical synthetic frames.
type Segment struct {
	Frames int
	Luma   byte
	Logo   bool
	// Aspect defaults to 16:9.
	Aspect frame.Ratio
	// Channels adds one audio packet per video frame when positive.
	Channels int
	// HBars and VBars paint black letterbox or pillarbox bars.
	HBars bool
	VBars bool
	// Pattern draws a diagonal test pattern whose phase is set by the
	// value, giving segments distinct histograms.
	Pattern byte
}

// Recording renders segments into a MemorySource. Frames of one segment
// share their pixel buffers.
func Recording(fps float64, segs ...Segment) *frame.MemorySource {
	var frames []*frame.Frame
	n := 0
	for _, seg := range segs {
		planes := Picture(seg)
		aspect := seg.Aspect
		if aspect.IsZero() {
			aspect = frame.Ratio16x9
		}
		for i := 0; i < seg.Frames; i++ {
			frames = append(frames, &frame.Frame{
				Number: n,
				Kind:   frame.KindVideo,
				Key:    n%KeyInterval == 0,
				Planes: planes,
				Aspect: aspect,
			})
			if seg.Channels > 0 {
				frames = append(frames, &frame.Frame{Number: n, Kind: frame.KindAudio, Channels: seg.Channels})
			}
			n++
		}
	}
	return frame.NewMemorySource(frame.StreamInfo{
		FrameRate: fps,
		Width:     FrameWidth,
		Height:    FrameHeight,
		Codec:     "mpeg2video",
		Frames:    n,
	}, frames)
}

// Picture renders the planes of one segment frame.
func Picture(seg Segment) []frame.Plane {
	luma := make([]byte, FrameWidth*FrameHeight)
	for y := 0; y < FrameHeight; y++ {
		for x := 0; x < FrameWidth; x++ {
			v := seg.Luma
			if seg.Pattern > 0 {
				v = byte(int(seg.Luma) + (x+y+int(seg.Pattern)*7)%64)
			}
			luma[y*FrameWidth+x] = v
		}
	}
	p := frame.Plane{Data: luma, Stride: FrameWidth, Width: FrameWidth, Height: FrameHeight}
	if seg.HBars {
		Fill(&p, image.Rect(0, 0, FrameWidth, FrameHeight/8), 16)
		Fill(&p, image.Rect(0, FrameHeight-FrameHeight/8, FrameWidth, FrameHeight), 16)
	}
	if seg.VBars {
		Fill(&p, image.Rect(0, 0, FrameWidth/8, FrameHeight), 16)
		Fill(&p, image.Rect(FrameWidth-FrameWidth/8, 0, FrameWidth, FrameHeight), 16)
	}
	if seg.Logo {
		DrawLogo(&p, LogoRect)
	}
	chroma := func() frame.Plane {
		data := make([]byte, FrameWidth/2*FrameHeight/2)
		for i := range data {
			data[i] = 128
		}
		return frame.Plane{Data: data, Stride: FrameWidth / 2, Width: FrameWidth / 2, Height: FrameHeight / 2}
	}
	return []frame.Plane{p, chroma(), chroma()}
}

// Fill paints r with v.
func Fill(p *frame.Plane, r image.Rectangle, v byte) {
	r = r.Intersect(p.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			p.Data[y*p.Stride+x] = v
		}
	}
}

// DrawLogo paints a bright two pixel frame with a bar through the middle
// inside r, a shape with plenty of edges in both directions.
func DrawLogo(p *frame.Plane, r image.Rectangle) {
	const bright = 235
	Fill(p, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+2), bright)
	Fill(p, image.Rect(r.Min.X, r.Max.Y-2, r.Max.X, r.Max.Y), bright)
	Fill(p, image.Rect(r.Min.X, r.Min.Y, r.Min.X+2, r.Max.Y), bright)
	Fill(p, image.Rect(r.Max.X-2, r.Min.Y, r.Max.X, r.Max.Y), bright)
	mid := (r.Min.Y + r.Max.Y) / 2
	Fill(p, image.Rect(r.Min.X+5, mid-1, r.Max.X-5, mid+1), bright)
}

// VideoFrame returns a single synthetic video frame numbered n.
func VideoFrame(n int, seg Segment) *frame.Frame {
	aspect := seg.Aspect
	if aspect.IsZero() {
		aspect = frame.Ratio16x9
	}
	return &frame.Frame{Number: n, Kind: frame.KindVideo, Key: true, Planes: Picture(seg), Aspect: aspect}
}

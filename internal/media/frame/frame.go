package frame

import "fmt"

// Kind distinguishes decoded video frames from audio packets.
type Kind int

const (
	KindVideo Kind = iota + 1
	KindAudio
)

func (k Kind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// Ratio is a display aspect ratio. The zero value means unknown.
type Ratio struct {
	Num int
	Den int
}

var (
	Ratio4x3  = Ratio{Num: 4, Den: 3}
	Ratio16x9 = Ratio{Num: 16, Den: 9}
)

// IsZero reports whether the ratio is unknown.
func (r Ratio) IsZero() bool { return r.Num == 0 || r.Den == 0 }

// Equal compares ratios by value, so 32:18 equals 16:9.
func (r Ratio) Equal(o Ratio) bool {
	if r.IsZero() || o.IsZero() {
		return r.IsZero() && o.IsZero()
	}
	return r.Num*o.Den == o.Num*r.Den
}

// Is4x3 reports whether the ratio is exactly 4:3.
func (r Ratio) Is4x3() bool { return r.Equal(Ratio4x3) }

func (r Ratio) String() string {
	if r.IsZero() {
		return "unknown"
	}
	return fmt.Sprintf("%d:%d", r.Num, r.Den)
}

// Plane is one image plane. Data holds Height rows of Stride bytes each.
type Plane struct {
	Data   []byte
	Stride int
	Width  int
	Height int
}

// At returns the sample at (x, y). Coordinates outside the plane are clamped.
func (p *Plane) At(x, y int) byte {
	x = min(max(x, 0), p.Width-1)
	y = min(max(y, 0), p.Height-1)
	return p.Data[y*p.Stride+x]
}

// Row returns the visible samples of row y.
func (p *Plane) Row(y int) []byte {
	off := y * p.Stride
	return p.Data[off : off+p.Width]
}

// Frame is one decoded unit handed to the detectors. Video frames carry
// planes (luma first, then the two chroma planes when available); audio
// packets carry the channel count and the number of the video frame they
// accompany.
type Frame struct {
	Number   int
	Kind     Kind
	Key      bool
	Planes   []Plane
	Aspect   Ratio
	Channels int
}

// Luma returns the luma plane or nil for audio packets.
func (f *Frame) Luma() *Plane {
	if f == nil || f.Kind != KindVideo || len(f.Planes) == 0 {
		return nil
	}
	return &f.Planes[0]
}

// IsVideo reports whether the frame carries pictures.
func (f *Frame) IsVideo() bool { return f != nil && f.Kind == KindVideo }

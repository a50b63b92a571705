package detect

import (
	"image"

	"markad/internal/media/frame"
)

// Edge maps use 0 for edge pixels and 255 for background, the same
// convention as the PGM logo masks.
const (
	edgePixel       = 0
	backgroundPixel = 255
)

// EdgeMap runs 3x3 Sobel kernels over r of p and writes a binary map of
// r.Dx()*r.Dy() bytes into dst (allocated when too small). A pixel is an edge
// when |Gx|+|Gy| reaches threshold. It returns the map and its edge count.
func EdgeMap(p *frame.Plane, r image.Rectangle, threshold int, dst []byte) ([]byte, int) {
	r = r.Intersect(p.Bounds())
	w, h := r.Dx(), r.Dy()
	if cap(dst) < w*h {
		dst = make([]byte, w*h)
	}
	dst = dst[:w*h]
	edges := 0
	for y := 0; y < h; y++ {
		py := r.Min.Y + y
		for x := 0; x < w; x++ {
			px := r.Min.X + x
			tl, t, tr := int(p.At(px-1, py-1)), int(p.At(px, py-1)), int(p.At(px+1, py-1))
			l, rr := int(p.At(px-1, py)), int(p.At(px+1, py))
			bl, b, br := int(p.At(px-1, py+1)), int(p.At(px, py+1)), int(p.At(px+1, py+1))
			gx := (tr + 2*rr + br) - (tl + 2*l + bl)
			gy := (bl + 2*b + br) - (tl + 2*t + tr)
			if abs(gx)+abs(gy) >= threshold {
				dst[y*w+x] = edgePixel
				edges++
			} else {
				dst[y*w+x] = backgroundPixel
			}
		}
	}
	return dst, edges
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

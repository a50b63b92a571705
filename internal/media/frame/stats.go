package frame

import "image"

// Stats holds the mean and extremes of a plane region.
type Stats struct {
	Mean     int
	Min, Max int
	Samples  int
}

// Contrast is the spread between the brightest and darkest sample.
func (s Stats) Contrast() int { return s.Max - s.Min }

// RegionStats samples every step-th pixel of r (clipped to the plane).
func (p *Plane) RegionStats(r image.Rectangle, step int) Stats {
	if step <= 0 {
		step = 1
	}
	r = r.Intersect(image.Rect(0, 0, p.Width, p.Height))
	st := Stats{Min: 255}
	if r.Empty() {
		return Stats{}
	}
	sum := 0
	for y := r.Min.Y; y < r.Max.Y; y += step {
		row := p.Data[y*p.Stride:]
		for x := r.Min.X; x < r.Max.X; x += step {
			v := int(row[x])
			sum += v
			st.Min = min(st.Min, v)
			st.Max = max(st.Max, v)
			st.Samples++
		}
	}
	st.Mean = sum / st.Samples
	return st
}

// Bounds returns the full plane rectangle.
func (p *Plane) Bounds() image.Rectangle { return image.Rect(0, 0, p.Width, p.Height) }

// Histogram is a 256 bin luma histogram over sampled pixels.
type Histogram struct {
	Bins    [256]int
	Samples int
}

// Histogram counts every step-th pixel in both directions.
func (p *Plane) Histogram(step int) Histogram {
	if step <= 0 {
		step = 1
	}
	var h Histogram
	for y := 0; y < p.Height; y += step {
		row := p.Data[y*p.Stride:]
		for x := 0; x < p.Width; x += step {
			h.Bins[row[x]]++
			h.Samples++
		}
	}
	return h
}

// Distance is the L1 distance between two histograms.
func (h *Histogram) Distance(o *Histogram) int {
	d := 0
	for i := range h.Bins {
		diff := h.Bins[i] - o.Bins[i]
		if diff < 0 {
			diff = -diff
		}
		d += diff
	}
	return d
}

// NormalizedDistance scales Distance by the sample count so the result lies
// in [0, 2] regardless of resolution.
func (h *Histogram) NormalizedDistance(o *Histogram) float64 {
	if h.Samples == 0 || o.Samples == 0 {
		return 0
	}
	return float64(h.Distance(o)) / float64(max(h.Samples, o.Samples))
}

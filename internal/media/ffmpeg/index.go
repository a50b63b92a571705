package ffmpeg

import (
	"math"
	"sort"

	"markad/internal/media/ffprobe"
	"markad/internal/media/frame"
)

type aspectAt struct {
	frame  int
	aspect frame.Ratio
}

type channelsAt struct {
	frame    int
	channels int
}

// streamIndex maps frame numbers to probed per-frame properties.
type streamIndex struct {
	keys     map[int]bool
	aspects  []aspectAt
	channels []channelsAt
}

func frameNumber(t, start, fps float64) int {
	return max(int(math.Round((t-start)*fps)), 0)
}

func buildIndex(keyFrames []ffprobe.KeyFrame, changes []ffprobe.ChannelChange, start, fps float64) streamIndex {
	idx := streamIndex{keys: make(map[int]bool, len(keyFrames))}
	for _, kf := range keyFrames {
		n := frameNumber(kf.Time, start, fps)
		idx.keys[n] = true
		aspect := displayAspect(kf)
		if len(idx.aspects) > 0 && idx.aspects[len(idx.aspects)-1].aspect.Equal(aspect) {
			continue
		}
		idx.aspects = append(idx.aspects, aspectAt{frame: n, aspect: aspect})
	}
	sort.Slice(idx.aspects, func(i, j int) bool { return idx.aspects[i].frame < idx.aspects[j].frame })
	for _, c := range changes {
		idx.channels = append(idx.channels, channelsAt{frame: frameNumber(c.Time, start, fps), channels: c.Channels})
	}
	return idx
}

// displayAspect reduces SAR × width/height to the nearest broadcast ratio.
func displayAspect(kf ffprobe.KeyFrame) frame.Ratio {
	if kf.Width <= 0 || kf.Height <= 0 {
		return frame.Ratio{}
	}
	num, den := kf.SARNum, kf.SARDen
	if num <= 0 || den <= 0 {
		num, den = 1, 1
	}
	dar := float64(kf.Width*num) / float64(kf.Height*den)
	best, bestDiff := frame.Ratio{}, math.Inf(1)
	for _, r := range []frame.Ratio{frame.Ratio4x3, frame.Ratio16x9, {Num: 221, Den: 100}} {
		if d := math.Abs(dar - float64(r.Num)/float64(r.Den)); d < bestDiff {
			best, bestDiff = r, d
		}
	}
	return best
}

func (idx streamIndex) aspect(n int) frame.Ratio {
	i := sort.Search(len(idx.aspects), func(i int) bool { return idx.aspects[i].frame > n })
	if i == 0 {
		if len(idx.aspects) > 0 {
			return idx.aspects[0].aspect
		}
		return frame.Ratio{}
	}
	return idx.aspects[i-1].aspect
}

func (idx streamIndex) channelCount(n int) int {
	i := sort.Search(len(idx.channels), func(i int) bool { return idx.channels[i].frame > n })
	if i == 0 {
		if len(idx.channels) > 0 {
			return idx.channels[0].channels
		}
		return 0
	}
	return idx.channels[i-1].channels
}

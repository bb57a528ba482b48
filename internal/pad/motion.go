package pad

import (
	"image"
	"math"
)

// Motion bucket outputs. Higher means more spoof-like.
const (
	MotionStaticScore    = 1.0 // mean difference below the low threshold
	MotionExcessiveScore = 0.7 // mean difference above the high threshold
	MotionNaturalScore   = 0.2
)

// Default motion thresholds in 8-bit gray levels.
const (
	DefaultMotionLowThreshold  = 2.0
	DefaultMotionHighThreshold = 20.0
)

// Motion scores the mean absolute gray-level difference between consecutive frames.
// Fewer than two frames carry no signal and yield 0.
func Motion(frames []image.Image, low, high float64) float64 {
	if len(frames) < 2 {
		return 0
	}

	var sum float64
	prev := toGray(frames[0])
	for _, frame := range frames[1:] {
		cur := toGray(frame)
		sum += meanAbsDiff(prev, cur)
		prev = cur
	}
	meanDiff := sum / float64(len(frames)-1)

	switch {
	case meanDiff < low:
		return MotionStaticScore
	case meanDiff > high:
		return MotionExcessiveScore
	default:
		return MotionNaturalScore
	}
}

// meanAbsDiff compares the overlapping area of two gray images.
func meanAbsDiff(a, b *image.Gray) float64 {
	h := min(a.Bounds().Dy(), b.Bounds().Dy())
	w := min(a.Bounds().Dx(), b.Bounds().Dx())
	if h == 0 || w == 0 {
		return 0
	}
	var sum float64
	for y := 0; y < h; y++ {
		ra := a.Pix[y*a.Stride : y*a.Stride+w]
		rb := b.Pix[y*b.Stride : y*b.Stride+w]
		for x := 0; x < w; x++ {
			sum += math.Abs(float64(ra[x]) - float64(rb[x]))
		}
	}
	return sum / float64(h*w)
}

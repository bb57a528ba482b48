package pad

import (
	"image"
	"math"
)

// EntropyCeiling is the empirical upper bound of uniform-LBP entropy (nats)
// observed on natural face texture. Entropy at or above it saturates to 1.
const EntropyCeiling = 2.5

// Texture scores micro-texture with a rotation invariant uniform LBP histogram.
// The score is the histogram's Shannon entropy divided by EntropyCeiling, clipped to [0,1].
// A zero-size image yields 0.
func Texture(face image.Image, points, radius int) float64 {
	if isEmpty(face) || points < 1 {
		return 0
	}
	gray := toGray(face)
	hist := lbpHistogram(gray, points, float64(radius))

	var total float64
	for _, c := range hist {
		total += c
	}
	total += epsilon

	var entropy float64
	for _, c := range hist {
		p := c / total
		entropy -= p * math.Log(p+epsilon)
	}
	return clip01(entropy / EntropyCeiling)
}

// lbpHistogram counts uniform patterns into points+2 bins. Patterns with at most
// two 0/1 transitions map to their number of set bits; everything else goes to
// the last bin. Neighbors are bilinearly sampled on a circle, zero outside the image.
func lbpHistogram(gray *image.Gray, points int, radius float64) []float64 {
	hist := make([]float64, points+2)
	rows, cols := gray.Bounds().Dy(), gray.Bounds().Dx()

	offR := make([]float64, points)
	offC := make([]float64, points)
	for p := 0; p < points; p++ {
		angle := 2 * math.Pi * float64(p) / float64(points)
		offR[p] = round5(-radius * math.Sin(angle))
		offC[p] = round5(radius * math.Cos(angle))
	}

	bits := make([]int, points)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			center := grayAt(gray, r, c, 0)
			ones := 0
			for p := 0; p < points; p++ {
				v := bilinear(gray, float64(r)+offR[p], float64(c)+offC[p])
				if v-center >= 0 {
					bits[p] = 1
					ones++
				} else {
					bits[p] = 0
				}
			}
			changes := 0
			for p := 0; p < points-1; p++ {
				if bits[p] != bits[p+1] {
					changes++
				}
			}
			if bits[0] != bits[points-1] {
				changes++
			}
			if changes <= 2 {
				hist[ones]++
			} else {
				hist[points+1]++
			}
		}
	}
	return hist
}

func bilinear(gray *image.Gray, r, c float64) float64 {
	minR, minC := math.Floor(r), math.Floor(c)
	maxR, maxC := math.Ceil(r), math.Ceil(c)
	dr, dc := r-minR, c-minC

	tl := grayAt(gray, int(minR), int(minC), 0)
	tr := grayAt(gray, int(minR), int(maxC), 0)
	bl := grayAt(gray, int(maxR), int(minC), 0)
	br := grayAt(gray, int(maxR), int(maxC), 0)

	top := (1-dc)*tl + dc*tr
	bottom := (1-dc)*bl + dc*br
	return (1-dr)*top + dr*bottom
}

func round5(v float64) float64 {
	return math.Round(v*1e5) / 1e5
}

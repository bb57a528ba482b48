// Package pad implements presentation attack detection signals and their fusion.
//
// Every analyzer takes already-cropped face images and returns a suspicion
// score in [0,1], higher meaning more likely a spoof. Analyzers are pure and
// safe to call from any number of goroutines.
package pad

import (
	"image"

	"golang.org/x/image/draw"
)

const epsilon = 1e-9

// toGray converts any image to 8-bit luma using ITU-R 601 weights,
// the same conversion OpenCV applies for BGR2GRAY.
func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	if g, ok := img.(*image.Gray); ok && b.Min == (image.Point{}) {
		return g
	}
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}

// grayAt reads a pixel relative to the image origin. Out of range reads return cval.
func grayAt(g *image.Gray, row, col int, cval float64) float64 {
	b := g.Bounds()
	if row < 0 || col < 0 || row >= b.Dy() || col >= b.Dx() {
		return cval
	}
	return float64(g.Pix[row*g.Stride+col])
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func isEmpty(img image.Image) bool {
	return img == nil || img.Bounds().Empty()
}

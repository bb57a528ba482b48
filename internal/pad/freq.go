package pad

import (
	"image"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// DefaultHighFreqRatioThreshold is the high-frequency energy share expected from a genuine capture.
const DefaultHighFreqRatioThreshold = 0.35

// Frequency scores the share of spectral magnitude outside a centered low-frequency
// window of half-width min(h,w)/8. Print and screen artifacts add high-frequency energy,
// so ratios at or above threshold saturate to 1.
func Frequency(face image.Image, threshold float64) float64 {
	if isEmpty(face) {
		return 0
	}
	gray := toGray(face)
	mag := magnitudeSpectrum(gray)

	h, w := len(mag), len(mag[0])
	cy, cx := h/2, w/2
	radius := min(h, w) / 8

	var total, low float64
	for y := 0; y < h; y++ {
		// row y of the shifted spectrum holds original frequency row (y - h/2) mod h
		sy := (y - cy + h) % h
		for x := 0; x < w; x++ {
			sx := (x - cx + w) % w
			m := mag[sy][sx]
			total += m
			if y >= cy-radius && y < cy+radius && x >= cx-radius && x < cx+radius {
				low += m
			}
		}
	}
	highRatio := 1 - low/(total+epsilon)

	return clip01(highRatio / max(threshold, 1e-6))
}

// magnitudeSpectrum returns |DFT| of the image laid out as [row][col], unshifted.
func magnitudeSpectrum(gray *image.Gray) [][]float64 {
	h, w := gray.Bounds().Dy(), gray.Bounds().Dx()

	data := make([][]complex128, h)
	rowFFT := fourier.NewCmplxFFT(w)
	row := make([]complex128, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			row[x] = complex(float64(gray.Pix[y*gray.Stride+x]), 0)
		}
		data[y] = rowFFT.Coefficients(nil, row)
	}

	colFFT := fourier.NewCmplxFFT(h)
	col := make([]complex128, h)
	coeffs := make([]complex128, h)
	mag := make([][]float64, h)
	for y := range mag {
		mag[y] = make([]float64, w)
	}
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			col[y] = data[y][x]
		}
		coeffs = colFFT.Coefficients(coeffs, col)
		for y := 0; y < h; y++ {
			mag[y][x] = cmplx.Abs(coeffs[y])
		}
	}
	return mag
}

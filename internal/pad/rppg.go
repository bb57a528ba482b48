package pad

import (
	"image"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

// SNRNormalizer maps the in-band/out-of-band power ratio onto [0,1]; an SNR of 5
// or more is treated as a clearly present pulse.
const SNRNormalizer = 5.0

// RPPGOptions describes the capture assumptions of the pulse analyzer.
type RPPGOptions struct {
	FPS       float64 // capture rate of the frame sequence
	MinFrames int     // sequences shorter than this carry no signal
	BandLowHz float64 // plausible heart-rate band, inclusive
	BandHiHz  float64
}

// DefaultRPPGOptions assumes 30 fps video and a resting to light-activity heart rate (42-180 bpm).
func DefaultRPPGOptions() RPPGOptions {
	return RPPGOptions{FPS: 30, MinFrames: 30, BandLowHz: 0.7, BandHiHz: 3.0}
}

// RPPG estimates remote photoplethysmography signal presence from the mean green
// channel of each frame. It returns clip(SNR/SNRNormalizer, 0, 1) where SNR is
// heart-band power over out-of-band power.
//
// A strong pulse raises this score, which indicates liveness rather than a spoof.
// The fusion weight configured for this channel decides its polarity.
func RPPG(frames []image.Image, opts RPPGOptions) float64 {
	if len(frames) < opts.MinFrames || len(frames) < 2 || opts.FPS <= 0 {
		return 0
	}

	signal := make([]float64, len(frames))
	for i, frame := range frames {
		signal[i] = meanGreen(frame)
	}
	mean := stat.Mean(signal, nil)
	for i := range signal {
		signal[i] -= mean
	}

	fft := fourier.NewFFT(len(signal))
	coeffs := fft.Coefficients(nil, signal)

	var band, noise float64
	for i, c := range coeffs {
		a := cmplx.Abs(c)
		power := a * a
		hz := fft.Freq(i) * opts.FPS
		if hz >= opts.BandLowHz && hz <= opts.BandHiHz {
			band += power
		} else {
			noise += power
		}
	}

	snr := band / (noise + epsilon)
	return clip01(snr / SNRNormalizer)
}

func meanGreen(img image.Image) float64 {
	if isEmpty(img) {
		return 0
	}
	b := img.Bounds()
	var sum float64
	if rgba, ok := img.(*image.RGBA); ok {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			off := rgba.PixOffset(b.Min.X, y)
			for x := 0; x < b.Dx(); x++ {
				sum += float64(rgba.Pix[off+x*4+1])
			}
		}
	} else {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				_, g, _, _ := img.At(x, y).RGBA()
				sum += float64(g >> 8)
			}
		}
	}
	return sum / float64(b.Dx()*b.Dy())
}

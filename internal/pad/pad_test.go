package pad

import (
	"image"
	"image/color"
	"math"
	"math/rand"
	"testing"
)

func solidFace(size int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, 255
	}
	return img
}

func noiseFace(size int, seed int64) *image.RGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for i := 0; i < len(img.Pix); i += 4 {
		v := uint8(rng.Intn(256))
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = v, v, v, 255
	}
	return img
}

func checkerFace(size int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if (x+y)%2 == 0 {
				img.Set(x, y, color.RGBA{255, 255, 255, 255})
			} else {
				img.Set(x, y, color.RGBA{0, 0, 0, 255})
			}
		}
	}
	return img
}

func TestTexture(t *testing.T) {
	flat := Texture(solidFace(64, color.RGBA{128, 128, 128, 255}), 8, 1)
	noisy := Texture(noiseFace(64, 7), 8, 1)

	for name, score := range map[string]float64{"flat": flat, "noisy": noisy} {
		if score < 0 || score > 1 {
			t.Errorf("%s texture score out of range: %f", name, score)
		}
	}
	// Over-smooth surfaces collapse the LBP histogram into a single bin
	if flat >= noisy {
		t.Errorf("Expected flat texture (%f) to score below noisy texture (%f)", flat, noisy)
	}

	if got := Texture(image.NewRGBA(image.Rect(0, 0, 0, 0)), 8, 1); got != 0 {
		t.Errorf("Expected 0 for an empty image, got %f", got)
	}
}

func TestLBPHistogramUniformBins(t *testing.T) {
	gray := toGray(noiseFace(16, 3))
	hist := lbpHistogram(gray, 8, 1)
	if len(hist) != 10 {
		t.Fatalf("Expected points+2 bins, got %d", len(hist))
	}
	var total float64
	for _, c := range hist {
		total += c
	}
	if total != 16*16 {
		t.Errorf("Expected one pattern per pixel (256), got %v", total)
	}
}

func TestFrequency(t *testing.T) {
	tests := []struct {
		name string
		img  image.Image
		want float64
	}{
		{"Flat image has only DC energy", solidFace(64, color.RGBA{90, 120, 200, 255}), 0},
		{"Checkerboard saturates", checkerFace(64), 1},
		{"Empty image", image.NewRGBA(image.Rect(0, 0, 0, 0)), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Frequency(tt.img, DefaultHighFreqRatioThreshold)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("Frequency() = %v, want %v", got, tt.want)
			}
		})
	}

	// Noise spreads energy across the spectrum but must stay in range
	if got := Frequency(noiseFace(32, 11), DefaultHighFreqRatioThreshold); got < 0 || got > 1 {
		t.Errorf("Frequency() out of range: %f", got)
	}
}

func TestMotion(t *testing.T) {
	gray := func(v uint8) image.Image { return solidFace(32, color.RGBA{v, v, v, 255}) }

	tests := []struct {
		name   string
		frames []image.Image
		want   float64
	}{
		{"No frames", nil, 0},
		{"Single frame", []image.Image{gray(100)}, 0},
		{"Frozen frames", []image.Image{gray(100), gray(100), gray(100)}, MotionStaticScore},
		{"Natural micro-motion", []image.Image{gray(100), gray(110), gray(100)}, MotionNaturalScore},
		{"Flicker", []image.Image{gray(0), gray(255), gray(0)}, MotionExcessiveScore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Motion(tt.frames, DefaultMotionLowThreshold, DefaultMotionHighThreshold)
			if got != tt.want {
				t.Errorf("Motion() = %v, want %v", got, tt.want)
			}
		})
	}
}

func pulseFrames(n int, hz, amplitude float64) []image.Image {
	frames := make([]image.Image, n)
	for i := range frames {
		g := 128 + amplitude*math.Sin(2*math.Pi*hz*float64(i)/30)
		frames[i] = solidFace(8, color.RGBA{100, uint8(math.Round(g)), 100, 255})
	}
	return frames
}

func TestRPPG(t *testing.T) {
	opts := DefaultRPPGOptions()

	if got := RPPG(pulseFrames(29, 1.5, 40), opts); got != 0 {
		t.Errorf("Expected exactly 0 below 30 frames, got %f", got)
	}

	// 1.5 Hz (90 bpm) lands exactly on a DFT bin for 60 frames at 30 fps
	if got := RPPG(pulseFrames(60, 1.5, 40), opts); got < 0.99 {
		t.Errorf("Expected an in-band pulse to saturate, got %f", got)
	}

	// 10 Hz is far outside any plausible heart rate
	if got := RPPG(pulseFrames(60, 10, 40), opts); got > 0.05 {
		t.Errorf("Expected out-of-band oscillation to score near 0, got %f", got)
	}

	if got := RPPG(pulseFrames(60, 0, 0), opts); got != 0 {
		t.Errorf("Expected a constant signal to score 0, got %f", got)
	}
}

func TestFuse(t *testing.T) {
	scores := SignalScores{Texture: 0.4, Freq: 0.8, Motion: 1.0, RPPG: 0.5}

	// Unset weights contribute nothing
	if d := Fuse(scores, Weights{}, 0.3); d.Score != 0 || d.IsSpoof {
		t.Errorf("Expected zero score and live verdict with empty weights, got %+v", d)
	}

	w := Weights{Texture: 0.3, Freq: 0.3, Motion: 0.2, RPPG: 0.2}
	d := Fuse(scores, w, 0.5)
	want := 0.4*0.3 + 0.8*0.3 + 1.0*0.2 + 0.5*0.2
	if math.Abs(d.Score-want) > 1e-12 {
		t.Errorf("Expected fused score %f, got %f", want, d.Score)
	}
	if !d.IsSpoof {
		t.Errorf("Expected spoof at score %f >= 0.5", d.Score)
	}

	// The threshold itself counts as a spoof
	boundary := Fuse(SignalScores{Texture: 0.5}, Weights{Texture: 1}, 0.5)
	if !boundary.IsSpoof {
		t.Error("Expected score == threshold to be flagged as spoof")
	}

	// Negative rPPG weight turns a strong pulse into evidence of liveness
	live := Fuse(SignalScores{RPPG: 1}, Weights{RPPG: -0.5}, 0)
	if live.IsSpoof || live.Score != -0.5 {
		t.Errorf("Expected negative contribution from rPPG, got %+v", live)
	}
}

func TestAnalyzerScoreImageLeavesTemporalChannelsEmpty(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())
	s := a.ScoreImage(noiseFace(32, 5))
	if s.Motion != 0 || s.RPPG != 0 {
		t.Errorf("Expected motion and rppg to be 0 for a still image, got %+v", s)
	}

	frames := pulseFrames(40, 1.5, 40)
	fs := a.ScoreFrames(frames)
	if fs.Motion == 0 {
		t.Error("Expected a motion bucket for a multi-frame track")
	}
	if fs.RPPG <= 0 {
		t.Error("Expected a positive rPPG score for a pulsing track")
	}
}

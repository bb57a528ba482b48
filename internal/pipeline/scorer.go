// Package pipeline connects media loading, the face model and the scoring core.
// It owns the per-sample skip policy: unreadable media and faceless samples are
// dropped, everything else aborts the run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/andresmejia3/aegis/internal/face"
	"github.com/andresmejia3/aegis/internal/match"
	"github.com/andresmejia3/aegis/internal/pad"
	"github.com/andresmejia3/aegis/internal/types"
	"github.com/andresmejia3/aegis/internal/utils"
)

var (
	// ErrNoFace marks a sample in which the detector found nothing.
	ErrNoFace = errors.New("no face detected")
	// ErrNoUsableSamples is returned when every sample of a run was skipped.
	ErrNoUsableSamples = errors.New("no usable samples")
)

// Options configures a Scorer.
type Options struct {
	PAD               pad.Config
	Weights           pad.Weights
	DecisionThreshold float64
	FaceSize          image.Point
	MaxFrames         int
	// Workers bounds how many samples are scored concurrently.
	Workers int
}

// DefaultOptions mirrors the built-in configuration defaults.
func DefaultOptions() Options {
	return Options{
		PAD:               pad.DefaultConfig(),
		Weights:           pad.Weights{Texture: 0.3, Freq: 0.3, Motion: 0.2, RPPG: 0.2},
		DecisionThreshold: 0.5,
		FaceSize:          face.DefaultSize,
		MaxFrames:         face.DefaultMaxFrames,
		Workers:           1,
	}
}

// SampleScore is the liveness verdict for one image or video.
type SampleScore struct {
	Region   types.FaceRegion `json:"region"`
	Frames   int              `json:"frames"`
	Signals  pad.SignalScores `json:"signals"`
	Decision pad.Decision     `json:"decision"`
}

// Scorer scores samples with an injected face model. It holds no mutable state
// and is safe for concurrent use when the Analyzer is.
type Scorer struct {
	faces  face.Analyzer
	pad    *pad.Analyzer
	opts   Options
	logger *slog.Logger

	loadImage  func(path string) (image.Image, error)
	loadFrames func(ctx context.Context, path string, maxFrames int) ([]image.Image, error)
	probeFPS   func(ctx context.Context, path string) (float64, error)
}

// NewScorer builds a Scorer. The caller keeps ownership of faces and closes it.
func NewScorer(faces face.Analyzer, opts Options, logger *slog.Logger) *Scorer {
	if opts.FaceSize == (image.Point{}) {
		opts.FaceSize = face.DefaultSize
	}
	if opts.MaxFrames <= 0 {
		opts.MaxFrames = face.DefaultMaxFrames
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{
		faces:      faces,
		pad:        pad.NewAnalyzer(opts.PAD),
		opts:       opts,
		logger:     logger,
		loadImage:  face.LoadImage,
		loadFrames: face.LoadVideoFrames,
		probeFPS:   utils.GetVideoFPS,
	}
}

// ScoreSample loads an image or video from disk and scores it.
func (s *Scorer) ScoreSample(ctx context.Context, path string) (SampleScore, error) {
	if face.IsVideo(path) {
		frames, err := s.loadFrames(ctx, path, s.opts.MaxFrames)
		if err != nil {
			return SampleScore{}, err
		}
		s.checkFrameRate(ctx, path)
		return s.ScoreFrames(ctx, frames)
	}

	img, err := s.loadImage(path)
	if err != nil {
		return SampleScore{}, err
	}
	return s.ScoreImage(ctx, img)
}

// ScoreImage scores a still image. Motion and rPPG stay at 0.
func (s *Scorer) ScoreImage(ctx context.Context, img image.Image) (SampleScore, error) {
	crop, region, err := s.crop(ctx, img)
	if err != nil {
		return SampleScore{}, err
	}
	return s.decide(region, 1, s.pad.ScoreImage(crop)), nil
}

// ScoreFrames scores a decoded video. The face is located on the first frame and
// the same region is cropped from every frame.
func (s *Scorer) ScoreFrames(ctx context.Context, frames []image.Image) (SampleScore, error) {
	if len(frames) == 0 {
		return SampleScore{}, fmt.Errorf("%w: no frames", face.ErrUnreadable)
	}
	first, region, err := s.crop(ctx, frames[0])
	if err != nil {
		return SampleScore{}, err
	}

	crops := make([]image.Image, len(frames))
	crops[0] = first
	for i := 1; i < len(frames); i++ {
		crops[i] = face.CropAndResize(frames[i], region, s.opts.FaceSize)
	}
	return s.decide(region, len(frames), s.pad.ScoreFrames(crops)), nil
}

// checkFrameRate warns when a clip was not captured at the rate the rPPG analyzer
// assumes. The sample is still scored.
func (s *Scorer) checkFrameRate(ctx context.Context, path string) {
	fps, err := s.probeFPS(ctx, path)
	if err != nil {
		s.logger.Debug("could not probe frame rate", "path", path, "error", err)
		return
	}
	if math.Abs(fps-s.opts.PAD.RPPG.FPS) > 0.5 {
		s.logger.Warn("video frame rate differs from pad.rppg.fps", "path", path, "fps", fps, "rppg_fps", s.opts.PAD.RPPG.FPS)
	}
}

func (s *Scorer) decide(region types.FaceRegion, frames int, signals pad.SignalScores) SampleScore {
	return SampleScore{
		Region:   region,
		Frames:   frames,
		Signals:  signals,
		Decision: pad.Fuse(signals, s.opts.Weights, s.opts.DecisionThreshold),
	}
}

func (s *Scorer) crop(ctx context.Context, img image.Image) (*image.RGBA, types.FaceRegion, error) {
	crop, region, ok, err := face.Crop(ctx, s.faces, img, s.opts.FaceSize)
	if err != nil {
		return nil, types.FaceRegion{}, fmt.Errorf("detect: %w", err)
	}
	if !ok {
		return nil, types.FaceRegion{}, ErrNoFace
	}
	return crop, region, nil
}

// Embed loads a still image, crops its largest face and embeds it.
func (s *Scorer) Embed(ctx context.Context, path string) ([]float64, error) {
	img, err := s.loadImage(path)
	if err != nil {
		return nil, err
	}
	return s.EmbedImage(ctx, img)
}

// EmbedImage crops the largest face in img and embeds it.
func (s *Scorer) EmbedImage(ctx context.Context, img image.Image) ([]float64, error) {
	crop, _, err := s.crop(ctx, img)
	if err != nil {
		return nil, err
	}
	emb, err := s.faces.Embed(ctx, crop)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	return emb, nil
}

// ScorePair returns the cosine similarity between the largest faces of two images.
func (s *Scorer) ScorePair(ctx context.Context, pathA, pathB string) (float64, error) {
	a, err := s.Embed(ctx, pathA)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", pathA, err)
	}
	b, err := s.Embed(ctx, pathB)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", pathB, err)
	}
	return match.CosineSimilarity(a, b), nil
}

// Skippable reports whether err is a per-sample failure that should drop the
// sample rather than abort the run.
func Skippable(err error) bool {
	return errors.Is(err, ErrNoFace) || errors.Is(err, face.ErrUnreadable)
}

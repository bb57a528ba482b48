package config

import (
	"github.com/andresmejia3/aegis/internal/face"
	"github.com/andresmejia3/aegis/internal/metrics"
	"github.com/andresmejia3/aegis/internal/pad"
)

// Default returns the configuration the heuristics were tuned with.
func Default() Config {
	rppg := pad.DefaultRPPGOptions()
	return Config{
		Detector: Detector{
			Backend:        "retinaface",
			Command:        []string{"python3", "-u", "python/face_worker.py"},
			TimeoutSeconds: 60,
		},
		PAD: PAD{
			Texture: Texture{LBPPoints: 8, LBPRadius: 1},
			Freq:    Freq{HighFreqRatioThreshold: pad.DefaultHighFreqRatioThreshold},
			Motion: Motion{
				MeanDiffLowThreshold:  pad.DefaultMotionLowThreshold,
				MeanDiffHighThreshold: pad.DefaultMotionHighThreshold,
			},
			RPPG: RPPG{
				FPS:        rppg.FPS,
				MinFrames:  rppg.MinFrames,
				BandLowHz:  rppg.BandLowHz,
				BandHighHz: rppg.BandHiHz,
			},
		},
		Fusion: Fusion{
			Weights:           Weights{Texture: 0.3, Freq: 0.3, Motion: 0.2, RPPG: 0.2},
			DecisionThreshold: 0.5,
		},
		Recognition: Recognition{CosineThreshold: 0.40},
		Evaluation: Evaluation{
			MatchGridPoints: metrics.MatchGridPoints,
			PADGridPoints:   metrics.LivenessGridPoints,
			Workers:         1,
			MaxFrames:       face.DefaultMaxFrames,
			FaceSize:        face.DefaultSize.X,
		},
		Cache:   Cache{Backend: "memory", RedisAddr: "localhost:6379"},
		Logging: Logging{Level: "info"},
	}
}

package config

import (
	"errors"
	"fmt"
	"math"
)

var validBackends = map[string]bool{"retinaface": true, "mtcnn": true, "haar": true}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDetector(); err != nil {
		return err
	}
	if err := c.validatePAD(); err != nil {
		return err
	}
	if err := c.validateFusion(); err != nil {
		return err
	}
	if err := c.validateEvaluation(); err != nil {
		return err
	}
	return c.validateCache()
}

func (c *Config) validateDetector() error {
	if !validBackends[c.Detector.Backend] {
		return fmt.Errorf("detector.backend must be one of: retinaface, mtcnn, haar (got %q)", c.Detector.Backend)
	}
	if len(c.Detector.Command) == 0 {
		return errors.New("detector.command must not be empty")
	}
	if c.Detector.TimeoutSeconds < 0 {
		return errors.New("detector.timeout_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validatePAD() error {
	if c.PAD.Texture.LBPPoints < 1 {
		return errors.New("pad.texture.lbp_points must be >= 1")
	}
	if c.PAD.Texture.LBPRadius < 1 {
		return errors.New("pad.texture.lbp_radius must be >= 1")
	}
	if c.PAD.Freq.HighFreqRatioThreshold <= 0 || c.PAD.Freq.HighFreqRatioThreshold > 1 {
		return errors.New("pad.freq.high_freq_ratio_threshold must be in (0, 1]")
	}
	if c.PAD.Motion.MeanDiffLowThreshold < 0 {
		return errors.New("pad.motion.mean_diff_low_threshold must be >= 0")
	}
	if c.PAD.Motion.MeanDiffHighThreshold < c.PAD.Motion.MeanDiffLowThreshold {
		return errors.New("pad.motion.mean_diff_high_threshold must be >= mean_diff_low_threshold")
	}
	if c.PAD.RPPG.FPS <= 0 {
		return errors.New("pad.rppg.fps must be > 0")
	}
	if c.PAD.RPPG.MinFrames < 2 {
		return errors.New("pad.rppg.min_frames must be >= 2")
	}
	if c.PAD.RPPG.BandLowHz < 0 || c.PAD.RPPG.BandHighHz <= c.PAD.RPPG.BandLowHz {
		return errors.New("pad.rppg band must satisfy 0 <= band_low_hz < band_high_hz")
	}
	return nil
}

// Negative weights are accepted: they invert a channel's polarity (typically rppg).
func (c *Config) validateFusion() error {
	w := c.Fusion.Weights
	for name, v := range map[string]float64{"texture": w.Texture, "freq": w.Freq, "motion": w.Motion, "rppg": w.RPPG} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("fusion.weights.%s must be finite", name)
		}
	}
	if math.IsNaN(c.Fusion.DecisionThreshold) {
		return errors.New("fusion.decision_threshold must be a number")
	}
	return nil
}

func (c *Config) validateEvaluation() error {
	if c.Evaluation.MatchGridPoints < 2 {
		return errors.New("evaluation.match_grid_points must be >= 2")
	}
	if c.Evaluation.PADGridPoints < 2 {
		return errors.New("evaluation.pad_grid_points must be >= 2")
	}
	if c.Evaluation.MaxFrames < 1 {
		return errors.New("evaluation.max_frames must be >= 1")
	}
	if c.Evaluation.FaceSize < 8 {
		return errors.New("evaluation.face_size must be >= 8")
	}
	return nil
}

func (c *Config) validateCache() error {
	switch c.Cache.Backend {
	case "memory", "none", "":
		return nil
	case "redis":
		if c.Cache.RedisAddr == "" {
			return errors.New("cache.redis_addr must be set when cache.backend is redis")
		}
		return nil
	default:
		return fmt.Errorf("cache.backend must be one of: memory, redis, none (got %q)", c.Cache.Backend)
	}
}

// Package config loads the process-wide, read-only scoring configuration.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/andresmejia3/aegis/internal/pad"
	"gopkg.in/yaml.v3"
)

//go:embed sample_config.yaml
var sampleConfig string

// ErrUnknownKey is wrapped by Load when the file contains a key this version does not know.
var ErrUnknownKey = errors.New("unknown configuration key")

// Detector selects and launches the face model sidecar. Backend is forwarded to the
// sidecar untouched; the scoring core never looks at it.
type Detector struct {
	Backend        string   `yaml:"backend"`
	Command        []string `yaml:"command"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

type Texture struct {
	LBPPoints int `yaml:"lbp_points"`
	LBPRadius int `yaml:"lbp_radius"`
}

type Freq struct {
	HighFreqRatioThreshold float64 `yaml:"high_freq_ratio_threshold"`
}

type Motion struct {
	MeanDiffLowThreshold  float64 `yaml:"mean_diff_low_threshold"`
	MeanDiffHighThreshold float64 `yaml:"mean_diff_high_threshold"`
}

type RPPG struct {
	FPS        float64 `yaml:"fps"`
	MinFrames  int     `yaml:"min_frames"`
	BandLowHz  float64 `yaml:"band_low_hz"`
	BandHighHz float64 `yaml:"band_high_hz"`
}

// PAD groups the signal analyzer parameters.
type PAD struct {
	Texture Texture `yaml:"texture"`
	Freq    Freq    `yaml:"freq"`
	Motion  Motion  `yaml:"motion"`
	RPPG    RPPG    `yaml:"rppg"`
}

// Fusion holds the channel weights and the spoof decision threshold.
type Fusion struct {
	Weights           Weights `yaml:"weights"`
	DecisionThreshold float64 `yaml:"decision_threshold"`
}

// Recognition holds the identity match threshold used by callers of the match scorer.
type Recognition struct {
	CosineThreshold float64 `yaml:"cosine_threshold"`
}

// Evaluation controls offline batch runs.
type Evaluation struct {
	MatchGridPoints int `yaml:"match_grid_points"`
	PADGridPoints   int `yaml:"pad_grid_points"`
	Workers         int `yaml:"workers"`
	MaxFrames       int `yaml:"max_frames"`
	FaceSize        int `yaml:"face_size"`
}

// Cache configures the embedding cache. Backend is "memory", "redis" or "none".
type Cache struct {
	Backend    string `yaml:"backend"`
	RedisAddr  string `yaml:"redis_addr"`
	TTLMinutes int    `yaml:"ttl_minutes"`
}

// Database configures optional run persistence.
type Database struct {
	URL string `yaml:"url"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// Config encapsulates all configuration values.
//
// Sections:
//   - Detector: face model sidecar selection
//   - PAD: texture, frequency, motion and rPPG analyzer parameters
//   - Fusion: channel weights and decision threshold
//   - Recognition: cosine match threshold
//   - Evaluation: EER grid resolution, parallelism, video decoding limits
//   - Cache, Database, Logging: ambient services
type Config struct {
	Detector    Detector    `yaml:"detector"`
	PAD         PAD         `yaml:"pad"`
	Fusion      Fusion      `yaml:"fusion"`
	Recognition Recognition `yaml:"recognition"`
	Evaluation  Evaluation  `yaml:"evaluation"`
	Cache       Cache       `yaml:"cache"`
	Database    Database    `yaml:"database"`
	Logging     Logging     `yaml:"logging"`
}

// Load reads and validates a YAML configuration file. An empty path returns the
// defaults. Keys missing from the file keep their defaults, except fusion weights:
// a weights block replaces the default weights entirely and unset channels weigh 0.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return &cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	if err := cfg.decode(bytes.NewReader(data)); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		if errors.Is(err, io.EOF) {
			return nil // empty file
		}
		if strings.Contains(err.Error(), "not found in type") {
			return fmt.Errorf("parse config: %w: %v", ErrUnknownKey, err)
		}
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func (c *Config) normalize() {
	c.Detector.Backend = strings.ToLower(strings.TrimSpace(c.Detector.Backend))
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Evaluation.Workers < 1 {
		c.Evaluation.Workers = 1
	}
}

// PADConfig converts the analyzer section into pad parameters.
func (c *Config) PADConfig() pad.Config {
	return pad.Config{
		LBPPoints:              c.PAD.Texture.LBPPoints,
		LBPRadius:              c.PAD.Texture.LBPRadius,
		HighFreqRatioThreshold: c.PAD.Freq.HighFreqRatioThreshold,
		MotionLowThreshold:     c.PAD.Motion.MeanDiffLowThreshold,
		MotionHighThreshold:    c.PAD.Motion.MeanDiffHighThreshold,
		RPPG: pad.RPPGOptions{
			FPS:       c.PAD.RPPG.FPS,
			MinFrames: c.PAD.RPPG.MinFrames,
			BandLowHz: c.PAD.RPPG.BandLowHz,
			BandHiHz:  c.PAD.RPPG.BandHighHz,
		},
	}
}

// FusionWeights converts the configured weights for the fusion engine.
func (c *Config) FusionWeights() pad.Weights {
	return pad.Weights(c.Fusion.Weights)
}

// WorkerTimeout is the per-request sidecar timeout.
func (c *Config) WorkerTimeout() time.Duration {
	return time.Duration(c.Detector.TimeoutSeconds) * time.Second
}

// CacheTTL is the lifetime of cached embeddings; zero means no expiry.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLMinutes) * time.Minute
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

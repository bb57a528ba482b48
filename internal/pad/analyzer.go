package pad

import "image"

// Config carries the tunable parameters of every signal analyzer.
type Config struct {
	LBPPoints              int
	LBPRadius              int
	HighFreqRatioThreshold float64
	MotionLowThreshold     float64
	MotionHighThreshold    float64
	RPPG                   RPPGOptions
}

// DefaultConfig returns the analyzer parameters the heuristics were tuned with.
func DefaultConfig() Config {
	return Config{
		LBPPoints:              8,
		LBPRadius:              1,
		HighFreqRatioThreshold: DefaultHighFreqRatioThreshold,
		MotionLowThreshold:     DefaultMotionLowThreshold,
		MotionHighThreshold:    DefaultMotionHighThreshold,
		RPPG:                   DefaultRPPGOptions(),
	}
}

// Analyzer runs the four signal analyzers with a fixed configuration.
// The zero value is not useful; build one with NewAnalyzer.
type Analyzer struct {
	cfg Config
}

func NewAnalyzer(cfg Config) *Analyzer {
	return &Analyzer{cfg: cfg}
}

// ScoreImage scores a single still face. Temporal channels are left at 0.
func (a *Analyzer) ScoreImage(face image.Image) SignalScores {
	return SignalScores{
		Texture: Texture(face, a.cfg.LBPPoints, a.cfg.LBPRadius),
		Freq:    Frequency(face, a.cfg.HighFreqRatioThreshold),
	}
}

// ScoreFrames scores a face track. Spatial channels use the first frame.
func (a *Analyzer) ScoreFrames(frames []image.Image) SignalScores {
	if len(frames) == 0 {
		return SignalScores{}
	}
	scores := a.ScoreImage(frames[0])
	scores.Motion = Motion(frames, a.cfg.MotionLowThreshold, a.cfg.MotionHighThreshold)
	scores.RPPG = RPPG(frames, a.cfg.RPPG)
	return scores
}

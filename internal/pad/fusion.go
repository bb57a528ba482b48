package pad

// SignalScores holds one score per PAD channel for a single sample.
// Channels that were not computed (motion and rPPG on a still image) are 0.
type SignalScores struct {
	Texture float64 `json:"texture"`
	Freq    float64 `json:"freq"`
	Motion  float64 `json:"motion"`
	RPPG    float64 `json:"rppg"`
}

// Weights are the per-channel fusion weights. They are not normalized and an unset
// channel contributes nothing. A negative weight flips a channel's polarity.
type Weights struct {
	Texture float64 `json:"texture"`
	Freq    float64 `json:"freq"`
	Motion  float64 `json:"motion"`
	RPPG    float64 `json:"rppg"`
}

// Decision is the fused PAD verdict for one sample.
type Decision struct {
	Score   float64 `json:"score"`
	IsSpoof bool    `json:"is_spoof"`
}

// Fuse computes the weighted sum of the channel scores. The sample is a spoof when
// the sum reaches threshold (inclusive).
func Fuse(scores SignalScores, weights Weights, threshold float64) Decision {
	total := scores.Texture*weights.Texture +
		scores.Freq*weights.Freq +
		scores.Motion*weights.Motion +
		scores.RPPG*weights.RPPG
	return Decision{Score: total, IsSpoof: total >= threshold}
}

package metrics

import "github.com/andresmejia3/aegis/internal/types"

// Liveness labels: 1 = attack (spoof), 0 = bona fide presentation.
const (
	LabelBonafide = 0
	LabelAttack   = 1
)

// LivenessRates are the PAD classification error rates at one fused-score threshold.
type LivenessRates struct {
	APCER float64 // attacks classified as bona fide
	BPCER float64 // bona fide presentations classified as attacks
}

// LivenessRatesAt computes APCER and BPCER for fused PAD scores.
func LivenessRatesAt(pairs []types.ScoreLabelPair, threshold float64) LivenessRates {
	r := RatesAt(pairs, threshold)
	return LivenessRates{APCER: r.PositiveReject, BPCER: r.NegativeAccept}
}

// LivenessEER searches a points-wide grid for the APCER/BPCER crossing.
func LivenessEER(pairs []types.ScoreLabelPair, points int) EER {
	return SearchEER(pairs, Grid(points))
}

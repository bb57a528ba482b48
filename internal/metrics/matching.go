package metrics

import "github.com/andresmejia3/aegis/internal/types"

// Matching labels: 1 = same identity (genuine), 0 = different identity (impostor).
const (
	LabelImpostor = 0
	LabelGenuine  = 1
)

// MatchRates are the verification error rates at one similarity threshold.
type MatchRates struct {
	FAR float64 // impostor pairs accepted
	FRR float64 // genuine pairs rejected
}

// MatchRatesAt computes FAR and FRR for similarity scores.
func MatchRatesAt(pairs []types.ScoreLabelPair, threshold float64) MatchRates {
	r := RatesAt(pairs, threshold)
	return MatchRates{FAR: r.NegativeAccept, FRR: r.PositiveReject}
}

// MatchEER searches a points-wide grid for the FAR/FRR equal error point.
func MatchEER(pairs []types.ScoreLabelPair, points int) EER {
	return SearchEER(pairs, Grid(points))
}

package cmd

import (
	"fmt"
	"io"

	"github.com/andresmejia3/aegis/internal/metrics"
	"github.com/andresmejia3/aegis/internal/types"
)

// matchReport is the outcome of an identity-matching evaluation.
type matchReport struct {
	Pairs     int
	Threshold float64
	Rates     metrics.MatchRates
	EER       metrics.EER
}

// livenessReport is the outcome of a liveness evaluation.
type livenessReport struct {
	Samples   int
	Threshold float64
	Rates     metrics.LivenessRates
	EER       metrics.EER
}

func computeMatchReport(pairs []types.ScoreLabelPair, threshold float64, gridPoints int) matchReport {
	return matchReport{
		Pairs:     len(pairs),
		Threshold: threshold,
		Rates:     metrics.MatchRatesAt(pairs, threshold),
		EER:       metrics.MatchEER(pairs, gridPoints),
	}
}

func computeLivenessReport(pairs []types.ScoreLabelPair, threshold float64, gridPoints int) livenessReport {
	return livenessReport{
		Samples:   len(pairs),
		Threshold: threshold,
		Rates:     metrics.LivenessRatesAt(pairs, threshold),
		EER:       metrics.LivenessEER(pairs, gridPoints),
	}
}

// The 201-point matching grid steps by 0.005, so its EER threshold needs three decimals.
func (r matchReport) print(w io.Writer) {
	fmt.Fprintf(w, "Pairs: %d\n", r.Pairs)
	fmt.Fprintf(w, "FAR@%.2f: %.4f\n", r.Threshold, r.Rates.FAR)
	fmt.Fprintf(w, "FRR@%.2f: %.4f\n", r.Threshold, r.Rates.FRR)
	fmt.Fprintf(w, "EER: %.4f at threshold %.3f\n", r.EER.Value, r.EER.Threshold)
}

func (r livenessReport) print(w io.Writer) {
	fmt.Fprintf(w, "Samples: %d\n", r.Samples)
	fmt.Fprintf(w, "APCER@%.2f: %.4f\n", r.Threshold, r.Rates.APCER)
	fmt.Fprintf(w, "BPCER@%.2f: %.4f\n", r.Threshold, r.Rates.BPCER)
	fmt.Fprintf(w, "EER-like: %.4f at threshold %.2f\n", r.EER.Value, r.EER.Threshold)
}

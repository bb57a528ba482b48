// Package metrics turns labeled scores into operating-point error rates.
//
// All scores follow one polarity: higher means "more positive" (same identity for
// matching, attack for liveness). A label-1 sample is rejected when its score falls
// below the threshold; a label-0 sample is accepted when its score reaches it.
package metrics

import (
	"math"
	"runtime"

	"github.com/andresmejia3/aegis/internal/types"
	"golang.org/x/sync/errgroup"
)

// Default grid resolutions over [0,1].
const (
	MatchGridPoints    = 201
	LivenessGridPoints = 101
)

// Rates are the two error rates of a binary detector at one threshold.
type Rates struct {
	// NegativeAccept is the share of label-0 samples scoring >= threshold.
	NegativeAccept float64
	// PositiveReject is the share of label-1 samples scoring < threshold.
	PositiveReject float64
}

// EER is the grid point where the two error rates are closest.
type EER struct {
	Value     float64 // mean of the two rates at Threshold
	Threshold float64
}

// RatesAt computes both error rates at threshold. An empty class has its denominator
// floored at 1, so its rate reads 0; validate class composition upstream.
func RatesAt(pairs []types.ScoreLabelPair, threshold float64) Rates {
	var negAccepted, posRejected, neg, pos int
	for _, p := range pairs {
		if p.Label == 1 {
			pos++
			if p.Score < threshold {
				posRejected++
			}
		} else {
			neg++
			if p.Score >= threshold {
				negAccepted++
			}
		}
	}
	return Rates{
		NegativeAccept: float64(negAccepted) / float64(max(neg, 1)),
		PositiveReject: float64(posRejected) / float64(max(pos, 1)),
	}
}

// Grid returns points evenly spaced thresholds covering [0,1] inclusive.
func Grid(points int) []float64 {
	if points < 2 {
		return []float64{0}
	}
	grid := make([]float64, points)
	for i := range grid {
		grid[i] = float64(i) / float64(points-1)
	}
	return grid
}

// SearchEER sweeps the grid and returns the threshold with the smallest gap between
// the two rates. Ties go to the lowest threshold. Grid points are evaluated in
// parallel and folded in ascending order, so the result is deterministic.
func SearchEER(pairs []types.ScoreLabelPair, grid []float64) EER {
	if len(grid) == 0 {
		return EER{}
	}
	rates := make([]Rates, len(grid))

	workers := runtime.GOMAXPROCS(0)
	chunk := (len(grid) + workers - 1) / workers
	var g errgroup.Group
	for start := 0; start < len(grid); start += chunk {
		end := min(start+chunk, len(grid))
		g.Go(func() error {
			for i := start; i < end; i++ {
				rates[i] = RatesAt(pairs, grid[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	best := 0
	bestGap := math.Abs(rates[0].NegativeAccept - rates[0].PositiveReject)
	for i := 1; i < len(rates); i++ {
		gap := math.Abs(rates[i].NegativeAccept - rates[i].PositiveReject)
		if gap < bestGap {
			best, bestGap = i, gap
		}
	}
	r := rates[best]
	return EER{
		Value:     (r.NegativeAccept + r.PositiveReject) / 2,
		Threshold: grid[best],
	}
}

// Pairs zips parallel score and label slices. Extra elements of the longer slice are dropped.
func Pairs(scores []float64, labels []int) []types.ScoreLabelPair {
	n := min(len(scores), len(labels))
	out := make([]types.ScoreLabelPair, n)
	for i := 0; i < n; i++ {
		out[i] = types.ScoreLabelPair{Score: scores[i], Label: labels[i]}
	}
	return out
}

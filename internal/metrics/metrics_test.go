package metrics

import (
	"math"
	"testing"

	"github.com/andresmejia3/aegis/internal/types"
)

func TestRatesAt(t *testing.T) {
	pairs := Pairs(
		[]float64{0.9, 0.6, 0.3, 0.7, 0.2, 0.1},
		[]int{1, 1, 1, 0, 0, 0},
	)

	tests := []struct {
		threshold float64
		want      Rates
	}{
		{0.0, Rates{NegativeAccept: 1, PositiveReject: 0}},
		{0.5, Rates{NegativeAccept: 1.0 / 3, PositiveReject: 1.0 / 3}},
		{0.6, Rates{NegativeAccept: 1.0 / 3, PositiveReject: 1.0 / 3}}, // 0.6 is not rejected
		{1.0, Rates{NegativeAccept: 0, PositiveReject: 1}},
	}

	for _, tt := range tests {
		got := RatesAt(pairs, tt.threshold)
		if math.Abs(got.NegativeAccept-tt.want.NegativeAccept) > 1e-12 ||
			math.Abs(got.PositiveReject-tt.want.PositiveReject) > 1e-12 {
			t.Errorf("RatesAt(%v) = %+v, want %+v", tt.threshold, got, tt.want)
		}
	}
}

func TestRatesAtEmptyClass(t *testing.T) {
	// Only positives: the negative rate denominator is floored at 1
	pairs := Pairs([]float64{0.2, 0.8}, []int{1, 1})
	got := RatesAt(pairs, 0.5)
	if got.NegativeAccept != 0 {
		t.Errorf("Expected 0 negative-accept rate for an empty class, got %v", got.NegativeAccept)
	}
	if got.PositiveReject != 0.5 {
		t.Errorf("Expected 0.5 positive-reject rate, got %v", got.PositiveReject)
	}

	if r := RatesAt(nil, 0.5); r != (Rates{}) {
		t.Errorf("Expected zero rates for no data, got %+v", r)
	}
}

func TestNegativeAcceptMonotonic(t *testing.T) {
	pairs := Pairs(
		[]float64{0.05, 0.33, 0.5, 0.51, 0.77, 0.9, 0.12, 0.64},
		[]int{0, 0, 0, 0, 0, 1, 1, 1},
	)
	prev := math.Inf(1)
	for _, thr := range Grid(MatchGridPoints) {
		r := RatesAt(pairs, thr)
		if r.NegativeAccept > prev {
			t.Fatalf("Negative-accept rate increased at threshold %v: %v > %v", thr, r.NegativeAccept, prev)
		}
		prev = r.NegativeAccept
	}
}

func TestGrid(t *testing.T) {
	g := Grid(LivenessGridPoints)
	if len(g) != 101 || g[0] != 0 || g[100] != 1 {
		t.Fatalf("Unexpected grid bounds: len=%d first=%v last=%v", len(g), g[0], g[len(g)-1])
	}
	if math.Abs(g[50]-0.5) > 1e-12 {
		t.Errorf("Expected midpoint 0.5, got %v", g[50])
	}
	if g := Grid(1); len(g) != 1 {
		t.Errorf("Expected a degenerate single-point grid, got %v", g)
	}
}

func TestSearchEER(t *testing.T) {
	t.Run("Fully separable", func(t *testing.T) {
		pairs := Pairs([]float64{0.8, 0.85, 0.95, 0.1, 0.2, 0.3}, []int{1, 1, 1, 0, 0, 0})
		eer := MatchEER(pairs, MatchGridPoints)
		if eer.Value > 1e-12 {
			t.Errorf("Expected EER ~0, got %v", eer.Value)
		}
		if eer.Threshold <= 0.3 || eer.Threshold > 0.8 {
			t.Errorf("Expected threshold between the classes, got %v", eer.Threshold)
		}
	})

	t.Run("Fully overlapping", func(t *testing.T) {
		scores := []float64{0.1, 0.3, 0.5, 0.7, 0.9}
		var all []float64
		var labels []int
		for _, s := range scores {
			all = append(all, s, s)
			labels = append(labels, 1, 0)
		}
		eer := LivenessEER(Pairs(all, labels), LivenessGridPoints)
		if math.Abs(eer.Value-0.5) > 1e-9 {
			t.Errorf("Expected EER ~0.5, got %v", eer.Value)
		}
	})

	t.Run("Ties resolve to the lowest threshold", func(t *testing.T) {
		// Every grid point in (0.10, 0.92] separates the classes perfectly
		pairs := Pairs([]float64{0.92, 0.10}, []int{1, 0})
		eer := SearchEER(pairs, Grid(MatchGridPoints))
		if math.Abs(eer.Threshold-0.105) > 1e-9 {
			t.Errorf("Expected first zero-gap threshold 0.105, got %v", eer.Threshold)
		}
	})

	t.Run("Empty grid", func(t *testing.T) {
		if got := SearchEER(nil, nil); got != (EER{}) {
			t.Errorf("Expected zero EER, got %+v", got)
		}
	})
}

func TestMatchScenario(t *testing.T) {
	// a.jpg/b.jpg are the same person (0.92), a.jpg/c.jpg are not (0.10)
	pairs := []types.ScoreLabelPair{
		{Score: 0.92, Label: LabelGenuine},
		{Score: 0.10, Label: LabelImpostor},
	}
	r := MatchRatesAt(pairs, 0.40)
	if r.FAR != 0 || r.FRR != 0 {
		t.Errorf("Expected FAR=0 FRR=0, got %+v", r)
	}
	eer := MatchEER(pairs, MatchGridPoints)
	if eer.Value != 0 {
		t.Errorf("Expected EER 0, got %v", eer.Value)
	}
	if eer.Threshold <= 0.10 || eer.Threshold >= 0.92 {
		t.Errorf("Expected EER threshold in (0.10, 0.92), got %v", eer.Threshold)
	}
}

func TestLivenessScenario(t *testing.T) {
	pairs := Pairs([]float64{0.9, 0.85, 0.1, 0.15}, []int{LabelAttack, LabelAttack, LabelBonafide, LabelBonafide})
	r := LivenessRatesAt(pairs, 0.5)
	if r.APCER != 0 || r.BPCER != 0 {
		t.Errorf("Expected APCER=0 BPCER=0, got %+v", r)
	}

	// Lowering the threshold below every bona fide score rejects all of them
	r = LivenessRatesAt(pairs, 0.05)
	if r.BPCER != 1 || r.APCER != 0 {
		t.Errorf("Expected BPCER=1 APCER=0 at 0.05, got %+v", r)
	}
}

package pipeline

import (
	"context"

	"github.com/andresmejia3/aegis/internal/records"
	"github.com/andresmejia3/aegis/internal/types"
	"golang.org/x/sync/errgroup"
)

// PairResult is a scored identity pair.
type PairResult struct {
	Pair       records.Pair
	Similarity float64
}

// SampleResult is a scored liveness sample.
type SampleResult struct {
	Sample records.Sample
	Score  SampleScore
}

// Progress is called once per input record, whether it was scored or skipped.
type Progress func()

// EvaluatePairs scores every pair, skipping unreadable or faceless ones.
// Results keep input order. ErrNoUsableSamples is returned when nothing survived.
func (s *Scorer) EvaluatePairs(ctx context.Context, pairs []records.Pair, progress Progress) ([]PairResult, error) {
	slots := make([]*PairResult, len(pairs))
	err := s.fanOut(ctx, len(pairs), progress, func(ctx context.Context, i int) error {
		p := pairs[i]
		sim, err := s.ScorePair(ctx, p.PathA, p.PathB)
		if err != nil {
			return s.skipOrFail(err, "line", p.Line, "path_a", p.PathA, "path_b", p.PathB)
		}
		slots[i] = &PairResult{Pair: p, Similarity: sim}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return compact(slots)
}

// EvaluateLiveness scores every sample, skipping unreadable or faceless ones.
// Results keep input order. ErrNoUsableSamples is returned when nothing survived.
func (s *Scorer) EvaluateLiveness(ctx context.Context, samples []records.Sample, progress Progress) ([]SampleResult, error) {
	slots := make([]*SampleResult, len(samples))
	err := s.fanOut(ctx, len(samples), progress, func(ctx context.Context, i int) error {
		smp := samples[i]
		score, err := s.ScoreSample(ctx, smp.Path)
		if err != nil {
			return s.skipOrFail(err, "line", smp.Line, "path", smp.Path)
		}
		slots[i] = &SampleResult{Sample: smp, Score: score}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return compact(slots)
}

func (s *Scorer) fanOut(ctx context.Context, n int, progress Progress, fn func(ctx context.Context, i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			err := fn(gctx, i)
			if err == nil && progress != nil {
				progress()
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	// The caller's context may have been cancelled before any sample failed.
	return ctx.Err()
}

func (s *Scorer) skipOrFail(err error, attrs ...any) error {
	if !Skippable(err) {
		return err
	}
	s.logger.Warn("skipping sample", append(attrs, "reason", err.Error())...)
	return nil
}

func compact[T any](slots []*T) ([]T, error) {
	out := make([]T, 0, len(slots))
	for _, r := range slots {
		if r != nil {
			out = append(out, *r)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoUsableSamples
	}
	return out, nil
}

// Similarities converts pair results into matching score/label pairs.
func Similarities(results []PairResult) []types.ScoreLabelPair {
	out := make([]types.ScoreLabelPair, len(results))
	for i, r := range results {
		out[i] = types.ScoreLabelPair{Score: r.Similarity, Label: r.Pair.Label}
	}
	return out
}

// FusedScores converts sample results into liveness score/label pairs.
func FusedScores(results []SampleResult) []types.ScoreLabelPair {
	out := make([]types.ScoreLabelPair, len(results))
	for i, r := range results {
		out[i] = types.ScoreLabelPair{Score: r.Score.Decision.Score, Label: r.Sample.Label}
	}
	return out
}

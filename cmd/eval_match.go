package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/andresmejia3/aegis/internal/config"
	"github.com/andresmejia3/aegis/internal/face"
	"github.com/andresmejia3/aegis/internal/pipeline"
	"github.com/andresmejia3/aegis/internal/records"
	"github.com/andresmejia3/aegis/internal/store"
	"github.com/spf13/cobra"
)

// EvalOptions holds the flags shared by eval-match and eval-pad
type EvalOptions struct {
	InputPath string
	Threshold float64
	Workers   int
	Persist   bool
}

// runSaver persists a finished evaluation. *store.Store satisfies it.
type runSaver interface {
	CreateRun(ctx context.Context, run store.Run, samples []store.Sample) (store.Run, error)
}

var matchOpts EvalOptions

var evalMatchCmd = &cobra.Command{
	Use:   "eval-match",
	Short: "Compute FAR/FRR/EER for identity matching from labeled image pairs",
	Long: `Reads a pairs file with one "path_a, path_b, label" record per line (label 1 = same
identity, 0 = different). Lines starting with '#' and blank lines are ignored.
Pairs whose images are unreadable or contain no face are skipped.`,
	Run: func(cmd *cobra.Command, args []string) {
		opts := resolveEvalOptions(cmd, matchOpts, Cfg.Recognition.CosineThreshold)
		faces, saver, stop := prepareEval(cmd.Context(), opts)
		defer stop()

		_, err := runEvalMatch(cmd.Context(), Cfg, opts, faces, saver, cmd.OutOrStdout())
		if err != nil {
			stop()
			exitOn("Matching evaluation failed", err)
		}
	},
}

func init() {
	evalMatchCmd.Flags().StringVarP(&matchOpts.InputPath, "pairs", "p", "", "Pairs file: path_a,path_b,label (1=same, 0=different)")
	evalMatchCmd.Flags().Float64VarP(&matchOpts.Threshold, "threshold", "t", 0.40, "Cosine similarity threshold (default: recognition.cosine_threshold)")
	evalMatchCmd.Flags().IntVarP(&matchOpts.Workers, "workers", "w", 1, "Number of parallel face model engines (default: evaluation.workers)")
	evalMatchCmd.Flags().BoolVar(&matchOpts.Persist, "persist", false, "Store the run and its per-pair scores in PostgreSQL")

	evalMatchCmd.MarkFlagRequired("pairs")
	rootCmd.AddCommand(evalMatchCmd)
}

// runEvalMatch scores every pair, prints the report and optionally stores the run.
func runEvalMatch(ctx context.Context, cfg *config.Config, opts EvalOptions, faces face.Analyzer, saver runSaver, out io.Writer) (matchReport, error) {
	pairs, err := records.LoadPairs(opts.InputPath)
	if err != nil {
		return matchReport{}, err
	}

	scorer := pipeline.NewScorer(faces, scorerOptions(cfg, opts.Workers), logger)
	progress, done := newProgress(len(pairs), "🔍 Scoring pairs")
	results, err := scorer.EvaluatePairs(ctx, pairs, progress)
	done()
	if errors.Is(err, pipeline.ErrNoUsableSamples) {
		fmt.Fprintln(out, "No valid pairs processed")
		return matchReport{}, err
	}
	if err != nil {
		return matchReport{}, err
	}

	report := computeMatchReport(pipeline.Similarities(results), opts.Threshold, cfg.Evaluation.MatchGridPoints)
	report.print(out)

	if saver != nil {
		samples := make([]store.Sample, len(results))
		for i, r := range results {
			samples[i] = store.Sample{
				Position: i,
				SampleID: sampleID(r.Pair.PathA),
				Path:     r.Pair.PathA,
				PathB:    r.Pair.PathB,
				Label:    r.Pair.Label,
				Score:    r.Similarity,
			}
		}
		run, err := saver.CreateRun(ctx, store.Run{Kind: store.KindMatch, InputPath: opts.InputPath, Threshold: opts.Threshold}, samples)
		if err != nil {
			return report, fmt.Errorf("persist run: %w", err)
		}
		fmt.Fprintf(os.Stderr, "💾 Saved run %s\n", run.ID)
	}
	return report, nil
}

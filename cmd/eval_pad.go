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

var padOpts EvalOptions

var evalPadCmd = &cobra.Command{
	Use:   "eval-pad",
	Short: "Compute APCER/BPCER and the EER-like point for liveness detection",
	Long: `Reads a samples file with one "path, label" record per line (label 1 = attack,
0 = bonafide). Images and videos (.mp4 .avi .mov .mkv) are both accepted.
Samples that are unreadable or contain no face are skipped.`,
	Run: func(cmd *cobra.Command, args []string) {
		opts := resolveEvalOptions(cmd, padOpts, Cfg.Fusion.DecisionThreshold)
		faces, saver, stop := prepareEval(cmd.Context(), opts)
		defer stop()

		_, err := runEvalPAD(cmd.Context(), Cfg, opts, faces, saver, cmd.OutOrStdout())
		if err != nil {
			stop()
			exitOn("Liveness evaluation failed", err)
		}
	},
}

func init() {
	evalPadCmd.Flags().StringVarP(&padOpts.InputPath, "samples", "s", "", "Samples file: path,label (1=attack, 0=bonafide)")
	evalPadCmd.Flags().Float64VarP(&padOpts.Threshold, "threshold", "t", 0.5, "Decision threshold (default: fusion.decision_threshold)")
	evalPadCmd.Flags().IntVarP(&padOpts.Workers, "workers", "w", 1, "Number of parallel face model engines (default: evaluation.workers)")
	evalPadCmd.Flags().BoolVar(&padOpts.Persist, "persist", false, "Store the run and its per-sample signal scores in PostgreSQL")

	evalPadCmd.MarkFlagRequired("samples")
	rootCmd.AddCommand(evalPadCmd)
}

// runEvalPAD scores every sample, prints the report and optionally stores the run.
// The fused score is compared against opts.Threshold; the per-sample spoof verdict
// stored with --persist uses the configured decision threshold.
func runEvalPAD(ctx context.Context, cfg *config.Config, opts EvalOptions, faces face.Analyzer, saver runSaver, out io.Writer) (livenessReport, error) {
	samples, err := records.LoadSamples(opts.InputPath)
	if err != nil {
		return livenessReport{}, err
	}

	scorer := pipeline.NewScorer(faces, scorerOptions(cfg, opts.Workers), logger)
	progress, done := newProgress(len(samples), "🛡️  Scoring samples")
	results, err := scorer.EvaluateLiveness(ctx, samples, progress)
	done()
	if errors.Is(err, pipeline.ErrNoUsableSamples) {
		fmt.Fprintln(out, "No valid samples processed")
		return livenessReport{}, err
	}
	if err != nil {
		return livenessReport{}, err
	}

	report := computeLivenessReport(pipeline.FusedScores(results), opts.Threshold, cfg.Evaluation.PADGridPoints)
	report.print(out)

	if saver != nil {
		rows := make([]store.Sample, len(results))
		for i, r := range results {
			signals := r.Score.Signals
			spoof := r.Score.Decision.IsSpoof
			rows[i] = store.Sample{
				Position: i,
				SampleID: sampleID(r.Sample.Path),
				Path:     r.Sample.Path,
				Label:    r.Sample.Label,
				Score:    r.Score.Decision.Score,
				Signals:  &signals,
				IsSpoof:  &spoof,
			}
		}
		run, err := saver.CreateRun(ctx, store.Run{Kind: store.KindLiveness, InputPath: opts.InputPath, Threshold: opts.Threshold}, rows)
		if err != nil {
			return report, fmt.Errorf("persist run: %w", err)
		}
		fmt.Fprintf(os.Stderr, "💾 Saved run %s\n", run.ID)
	}
	return report, nil
}

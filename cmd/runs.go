package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/andresmejia3/aegis/internal/store"
	"github.com/andresmejia3/aegis/internal/types"
	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

// runReader is the read side of the run store. *store.Store satisfies it.
type runReader interface {
	ListRuns(ctx context.Context, limit int) ([]store.Run, error)
	GetRun(ctx context.Context, id uuid.UUID) (store.Run, error)
	RunScores(ctx context.Context, id uuid.UUID) ([]types.ScoreLabelPair, error)
}

var (
	runsLimit       int
	reportThreshold float64
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored evaluation runs",
	Run: func(cmd *cobra.Command, args []string) {
		db, err := openStore(cmd.Context())
		if err != nil {
			exitOn("Database unavailable", err)
		}
		if err := runList(cmd.Context(), db, runsLimit, cmd.OutOrStdout()); err != nil {
			exitOn("Failed to list runs", err)
		}
	},
}

var reportCmd = &cobra.Command{
	Use:   "report <run-id>",
	Short: "Recompute metrics for a stored run without touching the media",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := uuid.Parse(args[0])
		if err != nil {
			exitOn("Invalid run id", err)
		}
		db, err := openStore(cmd.Context())
		if err != nil {
			exitOn("Database unavailable", err)
		}

		var threshold *float64
		if cmd.Flags().Changed("threshold") {
			threshold = &reportThreshold
		}
		if err := runReport(cmd.Context(), db, id, threshold, cmd.OutOrStdout()); err != nil {
			exitOn("Failed to build report", err)
		}
	},
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Maximum number of runs to show (0 = all)")
	reportCmd.Flags().Float64VarP(&reportThreshold, "threshold", "t", 0, "Operating threshold (default: the threshold the run was recorded with)")
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(reportCmd)
}

func runList(ctx context.Context, db runReader, limit int, out io.Writer) error {
	runs, err := db.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No evaluation runs found in database.")
		return nil
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"RUN ID", "KIND", "INPUT", "SAMPLES", "THRESHOLD", "CREATED"})
	for _, r := range runs {
		tw.AppendRow(table.Row{
			r.ID.String(),
			r.Kind,
			r.InputPath,
			strconv.Itoa(r.Samples),
			strconv.FormatFloat(r.Threshold, 'f', 2, 64),
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 5, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	fmt.Fprintln(out, tw.Render())
	return nil
}

// runReport reprints a stored run's metrics. A nil threshold reuses the recorded one.
func runReport(ctx context.Context, db runReader, id uuid.UUID, threshold *float64, out io.Writer) error {
	run, err := db.GetRun(ctx, id)
	if err != nil {
		return err
	}
	pairs, err := db.RunScores(ctx, id)
	if err != nil {
		return err
	}

	thr := run.Threshold
	if threshold != nil {
		thr = *threshold
	}

	switch run.Kind {
	case store.KindMatch:
		computeMatchReport(pairs, thr, Cfg.Evaluation.MatchGridPoints).print(out)
	case store.KindLiveness:
		computeLivenessReport(pairs, thr, Cfg.Evaluation.PADGridPoints).print(out)
	default:
		return fmt.Errorf("run %s has unknown kind %q", id, run.Kind)
	}
	return nil
}

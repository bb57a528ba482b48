package cmd

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"

	"github.com/andresmejia3/aegis/internal/cache"
	"github.com/andresmejia3/aegis/internal/config"
	"github.com/andresmejia3/aegis/internal/face"
	"github.com/andresmejia3/aegis/internal/pipeline"
	"github.com/andresmejia3/aegis/internal/utils"
	"github.com/andresmejia3/aegis/internal/worker"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// faceFactory starts the face model. Tests replace it with a fake.
var faceFactory = startFaceModel

// startFaceModel launches engines sidecar processes, optionally behind the embedding
// cache. The returned cleanup stops everything and must always be called.
func startFaceModel(ctx context.Context, cfg *config.Config, engines int) (face.Analyzer, func(), error) {
	pool, err := worker.NewPool(ctx, engines, worker.Config{
		Command:     cfg.Detector.Command,
		Backend:     cfg.Detector.Backend,
		ReadTimeout: cfg.WorkerTimeout(),
	})
	if err != nil {
		return nil, nil, err
	}

	embeddings, err := cache.Open(ctx, cfg.Cache.Backend, cfg.Cache.RedisAddr, cfg.CacheTTL())
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	if embeddings == nil {
		return pool, pool.Close, nil
	}

	cached := cache.NewAnalyzer(pool, embeddings, cfg.Detector.Backend, logger)
	return cached, func() {
		embeddings.Close()
		pool.Close()
	}, nil
}

func scorerOptions(cfg *config.Config, workers int) pipeline.Options {
	return pipeline.Options{
		PAD:               cfg.PADConfig(),
		Weights:           cfg.FusionWeights(),
		DecisionThreshold: cfg.Fusion.DecisionThreshold,
		FaceSize:          image.Pt(cfg.Evaluation.FaceSize, cfg.Evaluation.FaceSize),
		MaxFrames:         cfg.Evaluation.MaxFrames,
		Workers:           workers,
	}
}

// newProgress draws a bar on interactive terminals and does nothing otherwise.
func newProgress(total int, desc string) (pipeline.Progress, func()) {
	if !utils.IsTerminal(os.Stderr) {
		return nil, func() {}
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSetWriter(os.Stderr), // Write bar to Stderr
		progressbar.OptionShowCount(),
	)
	return func() { bar.Add(1) }, func() {
		bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
}

// resolveEvalOptions fills flags the user did not set from the loaded config.
func resolveEvalOptions(cmd *cobra.Command, opts EvalOptions, defaultThreshold float64) EvalOptions {
	if !cmd.Flags().Changed("threshold") {
		opts.Threshold = defaultThreshold
	}
	if !cmd.Flags().Changed("workers") {
		opts.Workers = Cfg.Evaluation.Workers
	}
	return opts
}

// prepareEval starts the face model and, with --persist, the run store.
// Startup failures are fatal.
func prepareEval(ctx context.Context, opts EvalOptions) (face.Analyzer, runSaver, func()) {
	fmt.Fprintf(os.Stderr, "⚙️  Spawning %d face model engine(s)...\n", opts.Workers)
	faces, stop, err := faceFactory(ctx, Cfg, opts.Workers)
	if err != nil {
		utils.Die("Face model startup failed", err, nil)
	}
	if !opts.Persist {
		return faces, nil, stop
	}

	db, err := openStore(ctx)
	if err != nil {
		stop()
		utils.Die("Run persistence unavailable", err, nil)
	}
	return faces, db, stop
}

// sampleID fingerprints a media file. Files that vanished since scoring get no id.
func sampleID(path string) string {
	id, err := utils.GenerateSampleID(path)
	if err != nil {
		return ""
	}
	return id
}

// exitOn terminates the process for a failed command. An empty evaluation set has
// already been reported on stdout and only sets the exit status.
func exitOn(reason string, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, pipeline.ErrNoUsableSamples) {
		os.Exit(1)
	}
	utils.Die(reason, err, nil)
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/andresmejia3/aegis/internal/config"
	"github.com/andresmejia3/aegis/internal/face"
	"github.com/andresmejia3/aegis/internal/match"
	"github.com/andresmejia3/aegis/internal/pipeline"
	"github.com/spf13/cobra"
)

// CheckOptions holds the flags of the check command
type CheckOptions struct {
	ImagePath     string
	VideoPath     string
	ReferencePath string
}

var checkOpts CheckOptions

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Score a single image or video for liveness and optionally match it against a reference",
	Run: func(cmd *cobra.Command, args []string) {
		if (checkOpts.ImagePath == "") == (checkOpts.VideoPath == "") {
			exitOn("Invalid arguments", errors.New("exactly one of --image or --video is required"))
		}

		faces, stop, err := faceFactory(cmd.Context(), Cfg, 1)
		if err != nil {
			exitOn("Face model startup failed", err)
		}
		defer stop()

		if err := runCheck(cmd.Context(), Cfg, checkOpts, faces, cmd.OutOrStdout()); err != nil {
			stop()
			exitOn("Check failed", err)
		}
	},
}

func init() {
	checkCmd.Flags().StringVarP(&checkOpts.ImagePath, "image", "i", "", "Path to a still image")
	checkCmd.Flags().StringVarP(&checkOpts.VideoPath, "video", "v", "", "Path to a video clip")
	checkCmd.Flags().StringVarP(&checkOpts.ReferencePath, "reference", "r", "", "Reference image to match the subject against")
	rootCmd.AddCommand(checkCmd)
}

// runCheck prints the liveness verdict and, with a reference, the identity match.
// For videos the subject is embedded from the first frame.
func runCheck(ctx context.Context, cfg *config.Config, opts CheckOptions, faces face.Analyzer, out io.Writer) error {
	scorer := pipeline.NewScorer(faces, scorerOptions(cfg, 1), logger)

	var (
		subject image.Image
		score   pipeline.SampleScore
		err     error
	)
	if opts.VideoPath != "" {
		frames, ferr := face.LoadVideoFrames(ctx, opts.VideoPath, cfg.Evaluation.MaxFrames)
		if ferr != nil {
			return fmt.Errorf("failed to read video: %w", ferr)
		}
		subject = frames[0]
		score, err = scorer.ScoreFrames(ctx, frames)
	} else {
		img, ierr := face.LoadImage(opts.ImagePath)
		if ierr != nil {
			return fmt.Errorf("failed to read image: %w", ierr)
		}
		subject = img
		score, err = scorer.ScoreImage(ctx, subject)
	}
	if err != nil {
		return err
	}

	logger.Debug("signal scores",
		"texture", score.Signals.Texture,
		"freq", score.Signals.Freq,
		"motion", score.Signals.Motion,
		"rppg", score.Signals.RPPG,
		"frames", score.Frames)
	fmt.Fprintf(out, "PAD score: %.3f, spoof=%v\n", score.Decision.Score, score.Decision.IsSpoof)

	if opts.ReferencePath == "" {
		return nil
	}

	emb, err := scorer.EmbedImage(ctx, subject)
	if err != nil {
		return err
	}
	ref, err := scorer.Embed(ctx, opts.ReferencePath)
	if errors.Is(err, pipeline.ErrNoFace) {
		return errors.New("no face in reference")
	}
	if err != nil {
		return fmt.Errorf("failed to read reference image: %w", err)
	}

	sim := match.CosineSimilarity(emb, ref)
	fmt.Fprintf(out, "Cosine similarity: %.3f, match=%v\n", sim, match.IsMatch(sim, cfg.Recognition.CosineThreshold))
	return nil
}

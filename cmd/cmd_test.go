package cmd

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/andresmejia3/aegis/internal/config"
	"github.com/andresmejia3/aegis/internal/pipeline"
	"github.com/andresmejia3/aegis/internal/store"
	"github.com/andresmejia3/aegis/internal/types"
	"github.com/google/uuid"
)

// stubFaces treats every non-black image as one full-frame face and embeds it by
// looking up the red channel of the crop.
type stubFaces struct {
	embeddings map[uint8][]float64
}

func (s stubFaces) Detect(ctx context.Context, img image.Image) ([]types.FaceRegion, error) {
	b := img.Bounds()
	r, _, _, _ := img.At(b.Min.X, b.Min.Y).RGBA()
	if r == 0 {
		return nil, nil
	}
	return []types.FaceRegion{{W: b.Dx(), H: b.Dy(), Score: 0.99}}, nil
}

func (s stubFaces) Embed(ctx context.Context, img image.Image) ([]float64, error) {
	b := img.Bounds()
	r, _, _, _ := img.At(b.Min.X, b.Min.Y).RGBA()
	emb, ok := s.embeddings[uint8(r>>8)]
	if !ok {
		return nil, errors.New("unknown face")
	}
	return emb, nil
}

type memRuns struct {
	runs    []store.Run
	samples map[uuid.UUID][]store.Sample
}

func (m *memRuns) CreateRun(ctx context.Context, run store.Run, samples []store.Sample) (store.Run, error) {
	if m.samples == nil {
		m.samples = make(map[uuid.UUID][]store.Sample)
	}
	run.ID = uuid.New()
	run.Samples = len(samples)
	run.CreatedAt = time.Now()
	m.runs = append(m.runs, run)
	m.samples[run.ID] = samples
	return run, nil
}

func (m *memRuns) ListRuns(ctx context.Context, limit int) ([]store.Run, error) {
	return m.runs, nil
}

func (m *memRuns) GetRun(ctx context.Context, id uuid.UUID) (store.Run, error) {
	for _, r := range m.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return store.Run{}, store.ErrRunNotFound
}

func (m *memRuns) RunScores(ctx context.Context, id uuid.UUID) ([]types.ScoreLabelPair, error) {
	var out []types.ScoreLabelPair
	for _, s := range m.samples[id] {
		out = append(out, types.ScoreLabelPair{Score: s.Score, Label: s.Label})
	}
	return out, nil
}

func writeFace(t *testing.T, dir, name string, red uint8) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 24, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 24; x++ {
			img.Set(x, y, color.RGBA{R: red, G: uint8(x * 10), B: uint8(y * 10), A: 255})
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func unitAt(cos float64) []float64 {
	return []float64{cos, math.Sqrt(1 - cos*cos)}
}

func TestRunEvalMatch(t *testing.T) {
	dir := t.TempDir()
	a := writeFace(t, dir, "a.png", 10)
	b := writeFace(t, dir, "b.png", 20)
	c := writeFace(t, dir, "c.png", 30)
	pairs := writeFile(t, dir, "pairs.csv", "# a,b,label\n"+a+","+b+",1\n"+a+","+c+",0\n")

	cfg := config.Default()
	faces := stubFaces{embeddings: map[uint8][]float64{10: unitAt(1), 20: unitAt(0.92), 30: unitAt(0.10)}}
	saver := &memRuns{}
	var out bytes.Buffer

	report, err := runEvalMatch(context.Background(), &cfg, EvalOptions{InputPath: pairs, Threshold: 0.40, Workers: 2, Persist: true}, faces, saver, &out)
	if err != nil {
		t.Fatalf("runEvalMatch failed: %v", err)
	}
	if report.Pairs != 2 || report.Rates.FAR != 0 || report.Rates.FRR != 0 || report.EER.Value > 1e-9 {
		t.Errorf("unexpected report %+v", report)
	}
	for _, want := range []string{"Pairs: 2\n", "FAR@0.40: 0.0000\n", "FRR@0.40: 0.0000\n", "EER: 0.0000 at threshold "} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}

	if len(saver.runs) != 1 || saver.runs[0].Kind != store.KindMatch || saver.runs[0].Samples != 2 {
		t.Fatalf("run not persisted as expected: %+v", saver.runs)
	}
	stored := saver.samples[saver.runs[0].ID]
	if stored[0].PathB != b || stored[1].Label != 0 || stored[0].Signals != nil {
		t.Errorf("unexpected stored samples %+v", stored)
	}
}

func TestRunEvalMatchNoUsablePairs(t *testing.T) {
	dir := t.TempDir()
	pairs := writeFile(t, dir, "pairs.csv", filepath.Join(dir, "missing.png")+","+filepath.Join(dir, "gone.png")+",1\n")

	cfg := config.Default()
	var out bytes.Buffer
	_, err := runEvalMatch(context.Background(), &cfg, EvalOptions{InputPath: pairs, Threshold: 0.4, Workers: 1}, stubFaces{}, nil, &out)
	if !errors.Is(err, pipeline.ErrNoUsableSamples) {
		t.Fatalf("expected ErrNoUsableSamples, got %v", err)
	}
	if out.String() != "No valid pairs processed\n" {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestRunEvalPAD(t *testing.T) {
	dir := t.TempDir()
	live := writeFace(t, dir, "live.png", 200)
	blank := filepath.Join(dir, "blank.png")
	if err := os.WriteFile(blank, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	samples := writeFile(t, dir, "samples.csv", live+",0\n"+blank+",1\n")

	cfg := config.Default()
	saver := &memRuns{}
	var out bytes.Buffer
	report, err := runEvalPAD(context.Background(), &cfg, EvalOptions{InputPath: samples, Threshold: 0.5, Workers: 1, Persist: true}, stubFaces{}, saver, &out)
	if err != nil {
		t.Fatalf("runEvalPAD failed: %v", err)
	}
	if report.Samples != 1 {
		t.Errorf("unreadable sample should be skipped, got %d samples", report.Samples)
	}
	for _, want := range []string{"Samples: 1\n", "APCER@0.50: 0.0000\n", "BPCER@0.50: ", "EER-like: "} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}

	stored := saver.samples[saver.runs[0].ID]
	if len(stored) != 1 || stored[0].Signals == nil || stored[0].IsSpoof == nil {
		t.Fatalf("liveness samples should carry the signal breakdown: %+v", stored)
	}
	if len(stored[0].SampleID) != 64 {
		t.Errorf("expected a sha256 sample id, got %q", stored[0].SampleID)
	}
	if stored[0].Signals.Motion != 0 || stored[0].Signals.RPPG != 0 {
		t.Errorf("still image should not have temporal signals: %+v", stored[0].Signals)
	}
}

func TestRunEvalPADNoUsableSamples(t *testing.T) {
	dir := t.TempDir()
	samples := writeFile(t, dir, "samples.csv", "# nothing here\n")

	cfg := config.Default()
	var out bytes.Buffer
	_, err := runEvalPAD(context.Background(), &cfg, EvalOptions{InputPath: samples, Threshold: 0.5, Workers: 1}, stubFaces{}, nil, &out)
	if !errors.Is(err, pipeline.ErrNoUsableSamples) {
		t.Fatalf("expected ErrNoUsableSamples, got %v", err)
	}
	if strings.Contains(out.String(), "APCER") || !strings.Contains(out.String(), "No valid samples processed") {
		t.Errorf("no metrics should be printed, got %q", out.String())
	}
}

func TestRunCheck(t *testing.T) {
	dir := t.TempDir()
	subject := writeFace(t, dir, "subject.png", 10)
	same := writeFace(t, dir, "same.png", 20)
	other := writeFace(t, dir, "other.png", 30)
	faceless := writeFace(t, dir, "faceless.png", 0)

	cfg := config.Default()
	faces := stubFaces{embeddings: map[uint8][]float64{10: unitAt(1), 20: unitAt(0.9), 30: unitAt(0.1)}}

	tests := []struct {
		name      string
		reference string
		want      string
		wantErr   string
	}{
		{"liveness only", "", "", ""},
		{"matching reference", same, "Cosine similarity: 0.900, match=true\n", ""},
		{"different reference", other, "Cosine similarity: 0.100, match=false\n", ""},
		{"reference without face", faceless, "", "no face in reference"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := runCheck(context.Background(), &cfg, CheckOptions{ImagePath: subject, ReferencePath: tt.reference}, faces, &out)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("runCheck failed: %v", err)
			}
			if !strings.HasPrefix(out.String(), "PAD score: ") {
				t.Errorf("missing PAD line: %q", out.String())
			}
			if tt.want != "" && !strings.HasSuffix(out.String(), tt.want) {
				t.Errorf("output %q should end with %q", out.String(), tt.want)
			}
		})
	}

	var out bytes.Buffer
	err := runCheck(context.Background(), &cfg, CheckOptions{ImagePath: faceless}, faces, &out)
	if !errors.Is(err, pipeline.ErrNoFace) {
		t.Errorf("expected ErrNoFace for a faceless subject, got %v", err)
	}
}

func TestRunReport(t *testing.T) {
	cfg := config.Default()
	Cfg = &cfg
	defer func() { Cfg = nil }()

	db := &memRuns{}
	ctx := context.Background()
	live, _ := db.CreateRun(ctx, store.Run{Kind: store.KindLiveness, InputPath: "s.csv", Threshold: 0.5}, []store.Sample{
		{Score: 0.9, Label: 1}, {Score: 0.85, Label: 1}, {Score: 0.1, Label: 0}, {Score: 0.15, Label: 0},
	})

	var out bytes.Buffer
	if err := runReport(ctx, db, live.ID, nil, &out); err != nil {
		t.Fatalf("runReport failed: %v", err)
	}
	want := "Samples: 4\nAPCER@0.50: 0.0000\nBPCER@0.50: 0.0000\n"
	if !strings.HasPrefix(out.String(), want) {
		t.Errorf("got %q, want prefix %q", out.String(), want)
	}

	out.Reset()
	thr := 0.95
	if err := runReport(ctx, db, live.ID, &thr, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "APCER@0.95: 1.0000") {
		t.Errorf("threshold override not applied: %q", out.String())
	}

	if err := runReport(ctx, db, uuid.New(), nil, &out); !errors.Is(err, store.ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestRunList(t *testing.T) {
	db := &memRuns{}
	var out bytes.Buffer
	if err := runList(context.Background(), db, 10, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "No evaluation runs") {
		t.Errorf("unexpected empty listing %q", out.String())
	}

	run, _ := db.CreateRun(context.Background(), store.Run{Kind: store.KindMatch, InputPath: "pairs.csv", Threshold: 0.4}, nil)
	out.Reset()
	if err := runList(context.Background(), db, 10, &out); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"RUN ID", run.ID.String(), "match", "pairs.csv", "0.40"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("listing missing %q:\n%s", want, out.String())
		}
	}
}

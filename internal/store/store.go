package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andresmejia3/aegis/internal/pad"
	"github.com/andresmejia3/aegis/internal/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Run kinds.
const (
	KindMatch    = "match"
	KindLiveness = "liveness"
)

// ErrRunNotFound is returned when a run id is not in the database.
var ErrRunNotFound = errors.New("evaluation run not found")

// Store manages the PostgreSQL connection holding evaluation runs.
type Store struct {
	conn *pgx.Conn
}

// Run is one persisted evaluation.
type Run struct {
	ID        uuid.UUID
	Kind      string
	InputPath string
	Threshold float64
	Samples   int
	CreatedAt time.Time
}

// Sample is one scored record of a run. SampleID fingerprints the media at Path so
// re-runs over changed files can be told apart. PathB is empty for liveness runs and
// Signals is nil for match runs.
type Sample struct {
	Position int
	SampleID string
	Path     string
	PathB    string
	Label    int
	Score    float64
	Signals  *pad.SignalScores
	IsSpoof  *bool
}

// New establishes a connection to the database and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	// Initialize schema (Auto-Migration)
	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS evaluation_runs (
			id UUID PRIMARY KEY,
			kind TEXT NOT NULL,
			input_path TEXT NOT NULL,
			threshold DOUBLE PRECISION NOT NULL,
			sample_count INT NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS run_samples (
			id BIGSERIAL PRIMARY KEY,
			run_id UUID NOT NULL REFERENCES evaluation_runs(id) ON DELETE CASCADE,
			position INT NOT NULL,
			sample_id TEXT NOT NULL DEFAULT '',
			path TEXT NOT NULL,
			path_b TEXT NOT NULL DEFAULT '',
			label INT NOT NULL,
			score DOUBLE PRECISION NOT NULL,
			texture DOUBLE PRECISION,
			freq DOUBLE PRECISION,
			motion DOUBLE PRECISION,
			rppg DOUBLE PRECISION,
			is_spoof BOOLEAN
		);
		CREATE INDEX IF NOT EXISTS run_samples_run_id_idx ON run_samples (run_id, position);
	`
	_, err := conn.Exec(ctx, query)
	return err
}

// Close terminates the database connection.
func (s *Store) Close(ctx context.Context) {
	s.conn.Close(ctx)
}

// CreateRun stores a run and all of its samples in one transaction. A zero run.ID
// is replaced with a fresh UUID; the stored run is returned.
func (s *Store) CreateRun(ctx context.Context, run Run, samples []Sample) (Run, error) {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	run.Samples = len(samples)

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return Run{}, err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO evaluation_runs (id, kind, input_path, threshold, sample_count)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, run.ID, run.Kind, run.InputPath, run.Threshold, run.Samples).Scan(&run.CreatedAt)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}

	rows := make([][]any, len(samples))
	for i, smp := range samples {
		var texture, freq, motion, rppg, spoof any
		if smp.Signals != nil {
			texture, freq, motion, rppg = smp.Signals.Texture, smp.Signals.Freq, smp.Signals.Motion, smp.Signals.RPPG
		}
		if smp.IsSpoof != nil {
			spoof = *smp.IsSpoof
		}
		rows[i] = []any{run.ID, smp.Position, smp.SampleID, smp.Path, smp.PathB, smp.Label, smp.Score, texture, freq, motion, rppg, spoof}
	}
	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"run_samples"},
		[]string{"run_id", "position", "sample_id", "path", "path_b", "label", "score", "texture", "freq", "motion", "rppg", "is_spoof"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return Run{}, fmt.Errorf("insert samples: %w", err)
	}

	return run, tx.Commit(ctx)
}

// ListRuns returns the most recent runs first. limit <= 0 returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, kind, input_path, threshold, sample_count, created_at FROM evaluation_runs ORDER BY created_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Kind, &r.InputPath, &r.Threshold, &r.Samples, &r.CreatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun fetches a single run.
func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (Run, error) {
	r := Run{ID: id}
	err := s.conn.QueryRow(ctx, `
		SELECT kind, input_path, threshold, sample_count, created_at FROM evaluation_runs WHERE id = $1
	`, id).Scan(&r.Kind, &r.InputPath, &r.Threshold, &r.Samples, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return r, err
}

// RunScores returns the stored score/label pairs of a run in input order.
func (s *Store) RunScores(ctx context.Context, id uuid.UUID) ([]types.ScoreLabelPair, error) {
	rows, err := s.conn.Query(ctx, `SELECT score, label FROM run_samples WHERE run_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs []types.ScoreLabelPair
	for rows.Next() {
		var p types.ScoreLabelPair
		if err := rows.Scan(&p.Score, &p.Label); err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// DeleteRun removes a run and its samples.
func (s *Store) DeleteRun(ctx context.Context, id uuid.UUID) error {
	tag, err := s.conn.Exec(ctx, "DELETE FROM evaluation_runs WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// Reset drops all application tables to clear the database state.
// This is useful for development to force a schema refresh without migrations.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.conn.Exec(ctx, `
		DROP TABLE IF EXISTS run_samples CASCADE;
		DROP TABLE IF EXISTS evaluation_runs CASCADE;
	`)
	return err
}

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/menta2k/portrait-crop/pkg/types"
)

// ErrRunNotFound is returned when a run id does not exist
var ErrRunNotFound = errors.New("run not found")

// Store records batch runs and per-file outcomes in PostgreSQL.
// It is not safe for concurrent use; pipeline callbacks are already serialized.
type Store struct {
	conn *pgx.Conn
}

// Run is one row of run history
type Run struct {
	ID         int64
	InputRoot  string
	OutputRoot string
	DryRun     bool
	StartedAt  time.Time
	FinishedAt *time.Time
	Totals     Totals
}

// Totals are the per-status counts of a run
type Totals struct {
	Total     int
	Cropped   int
	NoFace    int
	Failed    int
	Cancelled bool
}

// New establishes a connection to the database and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS crop_runs (
			id BIGSERIAL PRIMARY KEY,
			input_root TEXT NOT NULL,
			output_root TEXT NOT NULL,
			dry_run BOOLEAN NOT NULL DEFAULT FALSE,
			started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			finished_at TIMESTAMPTZ,
			total INT NOT NULL DEFAULT 0,
			cropped INT NOT NULL DEFAULT 0,
			no_face INT NOT NULL DEFAULT 0,
			failed INT NOT NULL DEFAULT 0,
			cancelled BOOLEAN NOT NULL DEFAULT FALSE
		);
		CREATE TABLE IF NOT EXISTS crop_files (
			id BIGSERIAL PRIMARY KEY,
			run_id BIGINT NOT NULL REFERENCES crop_runs(id) ON DELETE CASCADE,
			rel_path TEXT NOT NULL,
			status TEXT NOT NULL,
			reason TEXT,
			width INT,
			height INT,
			face INT[],
			crop INT[],
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS crop_files_run_id_idx ON crop_files (run_id);
	`
	_, err := conn.Exec(ctx, query)
	return err
}

// Close terminates the database connection.
func (s *Store) Close(ctx context.Context) {
	s.conn.Close(ctx)
}

// BeginRun inserts a run row and returns its id
func (s *Store) BeginRun(ctx context.Context, inputRoot, outputRoot string, dryRun bool) (int64, error) {
	var id int64
	err := s.conn.QueryRow(ctx, `
		INSERT INTO crop_runs (input_root, output_root, dry_run)
		VALUES ($1, $2, $3)
		RETURNING id
	`, inputRoot, outputRoot, dryRun).Scan(&id)
	return id, err
}

// RecordFile stores the outcome of one file
func (s *Store) RecordFile(ctx context.Context, runID int64, job *types.FileJob) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO crop_files (run_id, rel_path, status, reason, width, height, face, crop)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, runID, relOrPath(job), job.Outcome.Status.String(), nullable(job.Outcome.Reason),
		nullableInt(job.Width), nullableInt(job.Height), faceColumn(job.Face), cropColumn(job.Crop))
	return err
}

// FinishRun stores the final counts of a run
func (s *Store) FinishRun(ctx context.Context, runID int64, totals Totals) error {
	tag, err := s.conn.Exec(ctx, `
		UPDATE crop_runs
		SET finished_at = NOW(), total = $2, cropped = $3, no_face = $4, failed = $5, cancelled = $6
		WHERE id = $1
	`, runID, totals.Total, totals.Cropped, totals.NoFace, totals.Failed, totals.Cancelled)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRunNotFound
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, input_root, output_root, dry_run, started_at, finished_at,
		       total, cropped, no_face, failed, cancelled
		FROM crop_runs
		ORDER BY started_at DESC, id DESC
		LIMIT $1
	`, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.InputRoot, &r.OutputRoot, &r.DryRun, &r.StartedAt, &r.FinishedAt,
			&r.Totals.Total, &r.Totals.Cropped, &r.Totals.NoFace, &r.Totals.Failed, &r.Totals.Cancelled); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	return min(limit, 1000)
}

func relOrPath(job *types.FileJob) string {
	if job.RelPath != "" {
		return job.RelPath
	}
	return job.Path
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableInt(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}

func faceColumn(b *types.BoundingBox) []int32 {
	if b == nil {
		return nil
	}
	return []int32{int32(b.X0), int32(b.Y0), int32(b.X1), int32(b.Y1)}
}

func cropColumn(c *types.CropRect) []int32 {
	if c == nil {
		return nil
	}
	return []int32{int32(c.X0), int32(c.Y0), int32(c.X1), int32(c.Y1)}
}

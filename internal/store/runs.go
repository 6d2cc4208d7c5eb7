package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// StartIngestRun records the beginning of an ingestion for src.
func (s *Store) StartIngestRun(ctx context.Context, src Source) (*IngestRun, error) {
	run := &IngestRun{
		ID:        uuid.NewString(),
		Source:    src,
		Status:    "running",
		StartedAt: s.now(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingest_runs (id, source, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, string(src), run.Status, run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert ingest run: %w", err)
	}
	return run, nil
}

// FinishIngestRun stores the final status and per-segment results of run.
func (s *Store) FinishIngestRun(ctx context.Context, run *IngestRun) error {
	finished := s.now()
	run.FinishedAt = &finished
	return s.RunTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE ingest_runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
			run.Status, run.Error, finished, run.ID,
		); err != nil {
			return fmt.Errorf("update ingest run: %w", err)
		}
		for _, seg := range run.Segments {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO ingest_segments (run_id, segment, row_count, status, error) VALUES (?, ?, ?, ?, ?)`,
				run.ID, seg.Segment, seg.Rows, string(seg.Status), seg.Error,
			); err != nil {
				return fmt.Errorf("insert ingest segment: %w", err)
			}
		}
		return nil
	})
}

// ListIngestRuns returns the most recent runs, newest first, with their
// segment results. An empty src lists every source.
func (s *Store) ListIngestRuns(ctx context.Context, src Source, limit int) ([]IngestRun, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, source, status, error, started_at, finished_at FROM ingest_runs`
	var args []any
	if src != "" {
		query += ` WHERE source = ?`
		args = append(args, string(src))
	}
	query += ` ORDER BY started_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ingest runs: %w", err)
	}
	var runs []IngestRun
	for rows.Next() {
		var (
			r        IngestRun
			source   string
			errText  sql.NullString
			finished sql.NullTime
		)
		if err := rows.Scan(&r.ID, &source, &r.Status, &errText, &r.StartedAt, &finished); err != nil {
			rows.Close()
			return nil, err
		}
		r.Source = Source(source)
		r.Error = errText.String
		if finished.Valid {
			ft := finished.Time
			r.FinishedAt = &ft
		}
		runs = append(runs, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range runs {
		segs, err := s.ingestSegments(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Segments = segs
	}
	return runs, nil
}

func (s *Store) ingestSegments(ctx context.Context, runID string) ([]SegmentResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT segment, row_count, status, error FROM ingest_segments WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("query ingest segments: %w", err)
	}
	defer rows.Close()

	var out []SegmentResult
	for rows.Next() {
		var (
			seg     SegmentResult
			status  string
			errText sql.NullString
		)
		if err := rows.Scan(&seg.Segment, &seg.Rows, &status, &errText); err != nil {
			return nil, err
		}
		seg.Status = SegmentStatus(status)
		seg.Error = errText.String
		out = append(out, seg)
	}
	return out, rows.Err()
}

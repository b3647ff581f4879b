// Package history records completed split jobs in Postgres.
//
// The store is optional: when no database is configured the service runs
// with a nil *Store and recording becomes a no-op. Failures to record are
// logged, never fatal — history is an audit trail, not part of the split
// contract.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Status values for recorded jobs.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Entry is one recorded split job.
type Entry struct {
	JobID     string        `json:"jobId"`
	FileName  string        `json:"fileName"`
	TotalRows int64         `json:"totalRows"`
	Chunks    int           `json:"chunks"`
	Capacity  int           `json:"capacity"`
	Status    string        `json:"status"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	StartedAt time.Time     `json:"startedAt"`
}

// Store persists split job history in a split_jobs table.
type Store struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS split_jobs (
	job_id      uuid PRIMARY KEY,
	file_name   text NOT NULL,
	total_rows  bigint NOT NULL,
	chunks      integer NOT NULL,
	capacity    integer NOT NULL,
	status      text NOT NULL,
	error       text NOT NULL DEFAULT '',
	duration_ms bigint NOT NULL,
	started_at  timestamptz NOT NULL
)`

// New creates a Store and ensures the schema exists.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("history schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Record inserts one job entry. Safe to call on a nil store.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if s == nil {
		return nil
	}

	startedAt := pgtype.Timestamptz{Time: e.StartedAt, Valid: !e.StartedAt.IsZero()}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO split_jobs
			(job_id, file_name, total_rows, chunks, capacity, status, error, duration_ms, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.JobID, e.FileName, e.TotalRows, e.Chunks, e.Capacity,
		e.Status, e.Error, e.Duration.Milliseconds(), startedAt,
	)
	if err != nil {
		return fmt.Errorf("record split job %s: %w", e.JobID, err)
	}
	return nil
}

// Recent returns the most recent entries, newest first. Safe to call on a
// nil store, which returns no entries.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if s == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx,
		`SELECT job_id, file_name, total_rows, chunks, capacity, status, error, duration_ms, started_at
		 FROM split_jobs
		 ORDER BY started_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query split jobs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var durationMs int64
		var startedAt pgtype.Timestamptz
		if err := rows.Scan(&e.JobID, &e.FileName, &e.TotalRows, &e.Chunks, &e.Capacity,
			&e.Status, &e.Error, &durationMs, &startedAt); err != nil {
			return nil, fmt.Errorf("scan split job: %w", err)
		}
		e.Duration = time.Duration(durationMs) * time.Millisecond
		if startedAt.Valid {
			e.StartedAt = startedAt.Time
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

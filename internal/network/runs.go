package network

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Run statuses recorded in the build_runs table.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// BuildRun is one recorded build run.
type BuildRun struct {
	ID          string
	Seeds       []string
	Status      string
	ArtistCount int
	EdgeCount   int
	StartedAt   time.Time
	FinishedAt  *time.Time
}

// RunStore records build runs in the local database.
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates a RunStore on the given database handle.
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

// Begin records the start of a run.
func (s *RunStore) Begin(ctx context.Context, id string, seeds []string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO build_runs (id, seeds, status, started_at) VALUES (?, ?, ?, ?)`,
		id, strings.Join(seeds, ", "), RunStatusRunning, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("recording build run start: %w", err)
	}
	return nil
}

// Complete marks a run as finished and records the final counts.
func (s *RunStore) Complete(ctx context.Context, id string, artistCount, edgeCount int) error {
	return s.finish(ctx, id, RunStatusCompleted, artistCount, edgeCount)
}

// Fail marks a run as failed.
func (s *RunStore) Fail(ctx context.Context, id string) error {
	return s.finish(ctx, id, RunStatusFailed, 0, 0)
}

func (s *RunStore) finish(ctx context.Context, id, status string, artistCount, edgeCount int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE build_runs SET status = ?, artist_count = ?, edge_count = ?, finished_at = ? WHERE id = ?`,
		status, artistCount, edgeCount, time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("recording build run finish: %w", err)
	}
	return nil
}

// Get returns a recorded run by ID.
func (s *RunStore) Get(ctx context.Context, id string) (*BuildRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, seeds, status, artist_count, edge_count, started_at, finished_at
		 FROM build_runs WHERE id = ?`, id)
	return scanRun(row)
}

// Recent returns the most recently started runs, newest first.
func (s *RunStore) Recent(ctx context.Context, limit int) ([]BuildRun, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, seeds, status, artist_count, edge_count, started_at, finished_at
		 FROM build_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing build runs: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var runs []BuildRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*BuildRun, error) {
	var (
		run      BuildRun
		seeds    string
		started  string
		finished sql.NullString
	)
	err := row.Scan(&run.ID, &seeds, &run.Status, &run.ArtistCount, &run.EdgeCount, &started, &finished)
	if err != nil {
		return nil, fmt.Errorf("reading build run: %w", err)
	}
	if seeds != "" {
		run.Seeds = strings.Split(seeds, ", ")
	}
	if t, err := time.Parse(time.RFC3339Nano, started); err == nil {
		run.StartedAt = t
	}
	if finished.Valid {
		if t, err := time.Parse(time.RFC3339Nano, finished.String); err == nil {
			run.FinishedAt = &t
		}
	}
	return &run, nil
}

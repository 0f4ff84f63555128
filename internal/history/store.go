package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"boxrun/internal/domain"
)

const selectRuns = `SELECT run_id, project, started_at, duration_ms, success_flag, total, passed, failed, errored, skipped, interrupted FROM runs`

// RecordRun stores a finished run and the outcome of every regular case.
// Recording the same run ID twice fails on the primary key.
func (s *Store) RecordRun(ctx context.Context, snap domain.ProjectSnapshot, interrupted bool) error {
	if snap.RunID == "" {
		return errors.New("cannot record a run without an ID")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	c := snap.Counters
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, project, started_at, duration_ms, success_flag, total, passed, failed, errored, skipped, interrupted)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.RunID, snap.Name, snap.StartedAt.UnixMilli(), snap.Duration.Milliseconds(), snap.SuccessFlag,
		snap.Counts().Total(), c.Passed, c.Failed, c.Errored, c.Skipped, boolToInt(interrupted))
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", snap.RunID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO case_results (run_id, seq, feature, number, title, status, duration_ms, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare case insert: %w", err)
	}
	defer stmt.Close()

	seq := 0
	for _, f := range snap.Features {
		for _, cs := range f.Cases {
			seq++
			if _, err := stmt.ExecContext(ctx, snap.RunID, seq, f.Name, cs.Number, cs.Title,
				cs.Status.String(), cs.Duration.Milliseconds(), cs.Error); err != nil {
				return fmt.Errorf("failed to insert case %s: %w", cs.Number, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", snap.RunID, err)
	}
	return nil
}

// Recent returns up to limit runs, newest first. An empty project matches
// every project.
func (s *Store) Recent(ctx context.Context, project string, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	query := selectRuns
	args := []interface{}{}
	if project != "" {
		query += ` WHERE project = ?`
		args = append(args, project)
	}
	query += ` ORDER BY started_at DESC, run_id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Cases returns the case outcomes of one run in execution order.
func (s *Store) Cases(ctx context.Context, runID string) ([]domain.CaseRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, seq, feature, number, title, status, duration_ms, error
		 FROM case_results WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cases: %w", err)
	}
	defer rows.Close()

	var cases []domain.CaseRecord
	for rows.Next() {
		var (
			c          domain.CaseRecord
			status     string
			durationMs int64
		)
		if err := rows.Scan(&c.RunID, &c.Seq, &c.Feature, &c.Number, &c.Title, &status, &durationMs, &c.Error); err != nil {
			return nil, fmt.Errorf("failed to scan case: %w", err)
		}
		if c.Status, err = domain.ParseStatus(status); err != nil {
			return nil, err
		}
		c.Duration = time.Duration(durationMs) * time.Millisecond
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

// Get returns one run by ID.
func (s *Store) Get(ctx context.Context, runID string) (domain.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, selectRuns+` WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("run %s not found", runID)
	}
	return r, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (domain.RunRecord, error) {
	var (
		r                     domain.RunRecord
		startedMs, durationMs int64
		interrupted           int
	)
	err := row.Scan(&r.RunID, &r.Project, &startedMs, &durationMs, &r.SuccessFlag,
		&r.Total, &r.Passed, &r.Failed, &r.Errored, &r.Skipped, &interrupted)
	if errors.Is(err, sql.ErrNoRows) {
		return r, err
	}
	if err != nil {
		return r, fmt.Errorf("failed to scan run: %w", err)
	}
	r.StartedAt = time.UnixMilli(startedMs)
	r.Duration = time.Duration(durationMs) * time.Millisecond
	r.Interrupted = interrupted != 0
	return r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

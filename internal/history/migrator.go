package history

import (
	"context"
	"fmt"
)

// Migrator applies the history schema.
type Migrator interface {
	Migrate(ctx context.Context) error
}

var _ Migrator = (*Store)(nil)

// schema is valid for both SQLite and MySQL.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		run_id       VARCHAR(64)  NOT NULL PRIMARY KEY,
		project      VARCHAR(255) NOT NULL,
		started_at   BIGINT       NOT NULL,
		duration_ms  BIGINT       NOT NULL,
		success_flag INTEGER      NOT NULL,
		total        INTEGER      NOT NULL,
		passed       INTEGER      NOT NULL,
		failed       INTEGER      NOT NULL,
		errored      INTEGER      NOT NULL,
		skipped      INTEGER      NOT NULL,
		interrupted  INTEGER      NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS case_results (
		run_id      VARCHAR(64)   NOT NULL,
		seq         INTEGER       NOT NULL,
		feature     VARCHAR(255)  NOT NULL,
		number      VARCHAR(255)  NOT NULL,
		title       VARCHAR(1024) NOT NULL,
		status      VARCHAR(16)   NOT NULL,
		duration_ms BIGINT        NOT NULL,
		error       TEXT          NOT NULL,
		PRIMARY KEY (run_id, seq)
	)`,
}

// Migrate creates the history tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate history schema: %w", err)
		}
	}
	return nil
}

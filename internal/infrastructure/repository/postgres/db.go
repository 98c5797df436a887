// Package postgres persists batches and their per-page graded results.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the tables both services expect at startup.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082701)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS batches (
	id TEXT PRIMARY KEY,
	answer_key_text TEXT NOT NULL,
	page_count INTEGER NOT NULL,
	completed_pages INTEGER NOT NULL DEFAULT 0,
	throttled BOOLEAN NOT NULL DEFAULT FALSE,
	status TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_batches_created_at ON batches(created_at DESC);

CREATE TABLE IF NOT EXISTS graded_results (
	batch_id TEXT NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
	page INTEGER NOT NULL,
	student_name TEXT NOT NULL,
	student_id TEXT NOT NULL,
	class TEXT NOT NULL,
	quiz_code TEXT NOT NULL,
	answers JSONB NOT NULL DEFAULT '[]'::jsonb,
	correct INTEGER NOT NULL,
	total INTEGER NOT NULL,
	score TEXT NOT NULL,
	note TEXT NOT NULL DEFAULT '',
	manual_override BOOLEAN NOT NULL DEFAULT FALSE,
	PRIMARY KEY (batch_id, page)
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

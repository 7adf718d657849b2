// Package history persists run outcomes into an on-disk SQLite database
// so past feature-combination runs can be inspected after the fact.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	createTableStmt = `
CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    recorded_at TEXT NOT NULL,
    package TEXT NOT NULL,
    features TEXT NOT NULL,
    exit_code INTEGER,
    warnings INTEGER NOT NULL,
    errors INTEGER NOT NULL,
    pedantic_success INTEGER NOT NULL
);`
	createIndexStmt = `
CREATE INDEX IF NOT EXISTS idx_runs_package ON runs(package, features);`
	insertStmt = `INSERT INTO runs(recorded_at, package, features, exit_code, warnings, errors, pedantic_success) VALUES(?, ?, ?, ?, ?, ?, ?)`
)

// Entry is a single run outcome persisted to SQLite.
type Entry struct {
	RecordedAt      time.Time
	Package         string
	Features        string
	ExitCode        *int
	Warnings        int
	Errors          int
	PedanticSuccess bool
}

// Recorder appends run entries to a SQLite database.
type Recorder struct {
	db     *sql.DB
	insert *sql.Stmt
}

// Open initializes a Recorder pointing at the given on-disk SQLite file,
// creating parent directories and the schema as needed.
func Open(path string) (*Recorder, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("history path cannot be empty")
	}
	dir := filepath.Dir(p)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, createTableStmt); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure runs table: %w", err)
	}
	if _, err := db.ExecContext(ctx, createIndexStmt); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure runs index: %w", err)
	}
	stmt, err := db.PrepareContext(ctx, insertStmt)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare insert statement: %w", err)
	}
	return &Recorder{db: db, insert: stmt}, nil
}

// Record appends one entry. A zero RecordedAt defaults to now.
func (r *Recorder) Record(ctx context.Context, e Entry) error {
	if r == nil {
		return nil
	}
	recorded := e.RecordedAt
	if recorded.IsZero() {
		recorded = time.Now()
	}
	var exitCode any
	if e.ExitCode != nil {
		exitCode = *e.ExitCode
	}
	_, err := r.insert.ExecContext(ctx,
		recorded.UTC().Format(time.RFC3339Nano),
		e.Package,
		e.Features,
		exitCode,
		e.Warnings,
		e.Errors,
		boolToInt(e.PedanticSuccess),
	)
	if err != nil {
		return fmt.Errorf("record run outcome: %w", err)
	}
	return nil
}

// Close releases the prepared statement and database handle.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	var firstErr error
	if r.insert != nil {
		if err := r.insert.Close(); err != nil {
			firstErr = err
		}
	}
	if r.db != nil {
		if err := r.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const backendSQLite = "sqlite"

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    seq         INTEGER PRIMARY KEY AUTOINCREMENT,
    id          TEXT NOT NULL,
    endpoint    TEXT NOT NULL,
    mode        TEXT NOT NULL,
    policy      TEXT NOT NULL,
    descriptors INTEGER NOT NULL DEFAULT 0,
    records     INTEGER NOT NULL DEFAULT 0,
    failed      INTEGER NOT NULL DEFAULT 0,
    error       TEXT,
    started_at  DATETIME NOT NULL,
    duration_ns INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

// SQLiteStore keeps runs in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and initializes the
// schema.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Save inserts run.
func (s *SQLiteStore) Save(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, endpoint, mode, policy, descriptors, records, failed, error, started_at, duration_ns)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Endpoint, run.Mode, run.Policy, run.Descriptors, run.Records, run.Failed,
		nullString(run.Error), run.StartedAt.UTC(), int64(run.Duration),
	)
	if err != nil {
		HistoryWrites.WithLabelValues(backendSQLite, "error").Inc()
		HistoryErrors.WithLabelValues(backendSQLite, "save").Inc()
		return fmt.Errorf("insert run: %w", err)
	}

	HistoryWrites.WithLabelValues(backendSQLite, "ok").Inc()
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, endpoint, mode, policy, descriptors, records, failed, COALESCE(error, ''), started_at, duration_ns
		 FROM runs ORDER BY seq DESC LIMIT ?`,
		clampLimit(limit),
	)
	if err != nil {
		HistoryErrors.WithLabelValues(backendSQLite, "recent").Inc()
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var durationNS int64
		var startedAt time.Time
		if err := rows.Scan(&run.ID, &run.Endpoint, &run.Mode, &run.Policy, &run.Descriptors,
			&run.Records, &run.Failed, &run.Error, &startedAt, &durationNS); err != nil {
			HistoryErrors.WithLabelValues(backendSQLite, "recent").Inc()
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt = startedAt
		run.Duration = time.Duration(durationNS)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		HistoryErrors.WithLabelValues(backendSQLite, "ping").Inc()
		return err
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

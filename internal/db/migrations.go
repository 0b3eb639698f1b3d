package db

import (
	"database/sql"
	"fmt"
)

type Migration struct {
	Version int
	Name    string
	Up      string
}

var migrations = []Migration{
	{
		Version: 1,
		Name:    "runs_and_counts",
		Up: `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    created_at TEXT NOT NULL,
    source_count INTEGER NOT NULL,
    parsed_records INTEGER NOT NULL DEFAULT 0,
    parse_errors INTEGER NOT NULL DEFAULT 0,
    range_start TEXT,
    range_end TEXT
);

CREATE TABLE IF NOT EXISTS usage_counts (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    kind TEXT NOT NULL,
    name TEXT NOT NULL,
    count INTEGER NOT NULL,
    percentage REAL NOT NULL,
    PRIMARY KEY (run_id, kind, name)
);

CREATE INDEX IF NOT EXISTS idx_usage_counts_name ON usage_counts(kind, name);
`,
	},
	{
		Version: 2,
		Name:    "timeline",
		Up: `
CREATE TABLE IF NOT EXISTS timeline (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    kind TEXT NOT NULL,
    idx INTEGER NOT NULL,
    name TEXT NOT NULL,
    timestamp TEXT NOT NULL,
    PRIMARY KEY (run_id, kind, idx)
);
`,
	},
}

// RunMigrations applies every migration newer than the recorded schema
// version in a single transaction.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("db is nil")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := ensureSchemaVersionTable(tx); err != nil {
		return err
	}

	current, err := currentSchemaVersion(tx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if m.Up == "" {
			return fmt.Errorf("migration %d (%s) has empty Up", m.Version, m.Name)
		}
		if _, err := tx.Exec(m.Up); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Name, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_version(version) VALUES (?)`, m.Version); err != nil {
			return fmt.Errorf("record migration %d (%s): %w", m.Version, m.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func ensureSchemaVersionTable(exec sqlExecutor) error {
	_, err := exec.Exec(`
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`)
	if err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}
	return nil
}

func currentSchemaVersion(query sqlQueryer) (int, error) {
	var v int
	if err := query.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema_version: %w", err)
	}
	return v, nil
}

type sqlExecutor interface {
	Exec(query string, args ...any) (sql.Result, error)
}

type sqlQueryer interface {
	QueryRow(query string, args ...any) *sql.Row
}

// Package db writes analysis runs to a SQLite file for downstream querying.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// DB is an open export file.
type DB struct {
	path string
	conn *sql.DB
}

// pragmas are applied to the single export connection in order.
var pragmas = []struct{ stmt, desc string }{
	{`PRAGMA journal_mode=WAL;`, "journal_mode=WAL"},
	{`PRAGMA foreign_keys=ON;`, "foreign_keys=ON"},
	{`PRAGMA busy_timeout=5000;`, "busy_timeout"},
}

// OpenAt opens or creates the export database at path and applies pending
// migrations. A file that is not a usable database is moved aside to
// <path>.corrupt.<timestamp> and a fresh export started in its place.
func OpenAt(path string) (*DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("export path is required")
	}
	target := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	conn, err := prepare(target)
	if err != nil && isCorruptSQLiteError(err) {
		if qErr := quarantine(target, err); qErr != nil {
			return nil, qErr
		}
		conn, err = prepare(target)
	}
	if err != nil {
		return nil, err
	}
	return &DB{path: target, conn: conn}, nil
}

// quarantine moves an unreadable export and its sidecars out of the way.
func quarantine(path string, cause error) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	backup := fmt.Sprintf("%s.corrupt.%s", path, time.Now().UTC().Format("20060102T150405Z"))
	if err := os.Rename(path, backup); err != nil {
		return fmt.Errorf("export %s is not a database (%v) and could not be moved: %w", path, cause, err)
	}
	if err := renameSQLiteSidecars(path, backup); err != nil {
		return fmt.Errorf("export %s is not a database (%v) and its sidecars could not be moved: %w", path, cause, err)
	}
	return nil
}

// Close folds the WAL back into the main file, so the export can be copied
// as one file, and closes the connection.
func (d *DB) Close() error {
	if d == nil || d.conn == nil {
		return nil
	}
	_, ckErr := d.conn.Exec(`PRAGMA wal_checkpoint(TRUNCATE);`)
	if err := d.conn.Close(); err != nil {
		return err
	}
	if ckErr != nil {
		return fmt.Errorf("wal checkpoint: %w", ckErr)
	}
	return nil
}

// Conn exposes the underlying handle for ad-hoc queries.
func (d *DB) Conn() *sql.DB {
	if d == nil {
		return nil
	}
	return d.conn
}

// Path is the cleaned location of the export file.
func (d *DB) Path() string {
	if d == nil {
		return ""
	}
	return d.path
}

// prepare opens path, applies pragmas and migrations, and closes the
// connection again on any failure.
func prepare(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", "file:"+filepath.ToSlash(path)+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// PRAGMAs are per-connection.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p.stmt); err != nil {
			conn.Close()
			return nil, fmt.Errorf("set %s: %w", p.desc, err)
		}
	}
	if err := RunMigrations(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func isCorruptSQLiteError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrInvalid) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "file is not a database") || strings.Contains(msg, "malformed")
}

func renameSQLiteSidecars(path, backupPath string) error {
	for _, suffix := range []string{"-wal", "-shm"} {
		from := path + suffix
		if _, err := os.Stat(from); os.IsNotExist(err) {
			continue
		} else if err != nil {
			return fmt.Errorf("stat %s: %w", from, err)
		}
		if err := os.Rename(from, backupPath+suffix); err != nil {
			return fmt.Errorf("rename %s: %w", from, err)
		}
	}
	return nil
}

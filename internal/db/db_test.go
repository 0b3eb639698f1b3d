package db

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Dicklesworthstone/cctoolstats/internal/logs"
	"github.com/Dicklesworthstone/cctoolstats/internal/stats"
)

func TestOpenAt_CreatesDBAndRunsMigrations(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "usage.db")

	d, err := OpenAt(path)
	if err != nil {
		t.Fatalf("OpenAt() error = %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("db file stat error = %v", err)
	}
	if d.Path() != path {
		t.Errorf("Path() = %q, want %q", d.Path(), path)
	}

	for _, table := range []string{"schema_version", "runs", "usage_counts", "timeline"} {
		var name string
		if err := d.Conn().QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name); err != nil {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}

	// Migrations should be idempotent.
	if err := RunMigrations(d.Conn()); err != nil {
		t.Fatalf("RunMigrations() second run error = %v", err)
	}

	var version int
	if err := d.Conn().QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version); err != nil {
		t.Fatalf("read schema_version error = %v", err)
	}
	if version != len(migrations) {
		t.Fatalf("schema_version max = %d, want %d", version, len(migrations))
	}
}

func TestOpenAt_EmptyPath(t *testing.T) {
	if _, err := OpenAt("  "); err == nil {
		t.Fatal("OpenAt(blank) should fail")
	}
}

func TestOpenAt_EnablesWALMode(t *testing.T) {
	d, err := OpenAt(filepath.Join(t.TempDir(), "usage.db"))
	if err != nil {
		t.Fatalf("OpenAt() error = %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	var mode string
	if err := d.Conn().QueryRow(`PRAGMA journal_mode;`).Scan(&mode); err != nil {
		t.Fatalf("PRAGMA journal_mode error = %v", err)
	}
	if strings.ToLower(mode) != "wal" {
		t.Fatalf("journal_mode = %q, want %q", mode, "wal")
	}
}

func TestOpenAt_CorruptDB_RenamedAndRecreated(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "usage.db")

	if err := os.WriteFile(path, []byte("not a database"), 0600); err != nil {
		t.Fatalf("write corrupt db: %v", err)
	}

	d, err := OpenAt(path)
	if err != nil {
		t.Fatalf("OpenAt() error = %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	backups, err := filepath.Glob(path + ".corrupt.*")
	if err != nil {
		t.Fatalf("glob corrupt backups: %v", err)
	}
	if len(backups) != 1 {
		t.Fatalf("corrupt backup count = %d, want 1", len(backups))
	}
}

func TestRenameSQLiteSidecars(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "usage.db")
	backup := path + ".corrupt.20260101T000000Z"

	if err := os.WriteFile(path+"-wal", []byte("wal"), 0600); err != nil {
		t.Fatalf("write wal: %v", err)
	}

	if err := renameSQLiteSidecars(path, backup); err != nil {
		t.Fatalf("renameSQLiteSidecars() error = %v", err)
	}

	if data, err := os.ReadFile(backup + "-wal"); err != nil {
		t.Fatalf("read wal backup: %v", err)
	} else if string(data) != "wal" {
		t.Fatalf("wal backup content = %q, want %q", string(data), "wal")
	}
	if _, err := os.Stat(backup + "-shm"); !os.IsNotExist(err) {
		t.Fatalf("missing shm sidecar should be skipped, stat err = %v", err)
	}
}

func TestExportRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.db")
	d, err := OpenAt(path)
	if err != nil {
		t.Fatalf("OpenAt() error = %v", err)
	}

	tools := stats.Fold(logs.KindTool, []logs.Event{
		{Kind: logs.KindTool, Name: "Bash", Timestamp: "2025-01-01T10:00:00Z"},
		{Kind: logs.KindTool, Name: "Bash"},
		{Kind: logs.KindTool, Name: "Read", Timestamp: "2025-01-01T10:05:00Z"},
	})
	subagents := stats.Fold(logs.KindSubagent, []logs.Event{{Kind: logs.KindSubagent, Name: "code-reviewer"}})

	summary, err := d.ExportRun(context.Background(), Run{
		Sources:       2,
		ParsedRecords: 10,
		ParseErrors:   1,
		Since:         time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Results:       []*stats.Result{tools, subagents, nil},
	})
	if err != nil {
		t.Fatalf("ExportRun() error = %v", err)
	}
	if summary.RunID == "" {
		t.Fatal("RunID is empty")
	}
	if summary.CountRows != 3 {
		t.Errorf("CountRows = %d, want 3", summary.CountRows)
	}
	if summary.TimelineRows != 2 {
		t.Errorf("TimelineRows = %d, want 2", summary.TimelineRows)
	}

	var sources, parseErrors int
	var rangeStart string
	var rangeEnd *string
	err = d.Conn().QueryRow(`SELECT source_count, parse_errors, range_start, range_end FROM runs WHERE id = ?`, summary.RunID).
		Scan(&sources, &parseErrors, &rangeStart, &rangeEnd)
	if err != nil {
		t.Fatalf("select run: %v", err)
	}
	if sources != 2 || parseErrors != 1 {
		t.Errorf("run row = (%d, %d), want (2, 1)", sources, parseErrors)
	}
	if rangeStart != "2025-01-01T00:00:00Z" || rangeEnd != nil {
		t.Errorf("range = (%q, %v), want (2025-01-01T00:00:00Z, NULL)", rangeStart, rangeEnd)
	}

	var count int
	var pct float64
	err = d.Conn().QueryRow(`SELECT count, percentage FROM usage_counts WHERE run_id = ? AND kind = 'tool' AND name = 'Bash'`, summary.RunID).
		Scan(&count, &pct)
	if err != nil {
		t.Fatalf("select usage_counts: %v", err)
	}
	if count != 2 || pct != 66.67 {
		t.Errorf("Bash row = (%d, %v), want (2, 66.67)", count, pct)
	}

	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if info, err := os.Stat(path + "-wal"); err == nil && info.Size() != 0 {
		t.Errorf("wal file size after Close = %d, want 0", info.Size())
	}
}

func TestExportRun_SeparateRuns(t *testing.T) {
	d, err := OpenAt(filepath.Join(t.TempDir(), "usage.db"))
	if err != nil {
		t.Fatalf("OpenAt() error = %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	res := stats.Fold(logs.KindTool, []logs.Event{{Kind: logs.KindTool, Name: "Grep"}})
	first, err := d.ExportRun(context.Background(), Run{Results: []*stats.Result{res}})
	if err != nil {
		t.Fatalf("ExportRun() first error = %v", err)
	}
	second, err := d.ExportRun(context.Background(), Run{Results: []*stats.Result{res}})
	if err != nil {
		t.Fatalf("ExportRun() second error = %v", err)
	}
	if first.RunID == second.RunID {
		t.Fatal("run ids should differ")
	}

	var runs int
	if err := d.Conn().QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&runs); err != nil {
		t.Fatalf("count runs: %v", err)
	}
	if runs != 2 {
		t.Errorf("runs = %d, want 2", runs)
	}
}

func TestExportRun_CanceledContext(t *testing.T) {
	d, err := OpenAt(filepath.Join(t.TempDir(), "usage.db"))
	if err != nil {
		t.Fatalf("OpenAt() error = %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.ExportRun(ctx, Run{}); err == nil {
		t.Fatal("ExportRun() with canceled context should fail")
	}
}

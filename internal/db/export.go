package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Dicklesworthstone/cctoolstats/internal/logs"
	"github.com/Dicklesworthstone/cctoolstats/internal/stats"
)

// Run is one analysis to export.
type Run struct {
	Sources       int
	ParsedRecords int
	ParseErrors   int
	Since, Until  time.Time
	Results       []*stats.Result
}

// ExportSummary describes what ExportRun wrote.
type ExportSummary struct {
	RunID        string
	CountRows    int
	TimelineRows int
}

// ExportRun writes run in one transaction and returns its generated id.
func (d *DB) ExportRun(ctx context.Context, run Run) (ExportSummary, error) {
	summary := ExportSummary{RunID: uuid.NewString()}

	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return ExportSummary{}, fmt.Errorf("begin export: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, source_count, parsed_records, parse_errors, range_start, range_end)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		summary.RunID, time.Now().UTC().Format(time.RFC3339), run.Sources,
		run.ParsedRecords, run.ParseErrors, nullTime(run.Since), nullTime(run.Until),
	)
	if err != nil {
		return ExportSummary{}, fmt.Errorf("insert run: %w", err)
	}

	for _, res := range run.Results {
		if res == nil {
			continue
		}
		n, err := insertCounts(ctx, tx, summary.RunID, res)
		if err != nil {
			return ExportSummary{}, err
		}
		summary.CountRows += n

		n, err = insertTimeline(ctx, tx, summary.RunID, res)
		if err != nil {
			return ExportSummary{}, err
		}
		summary.TimelineRows += n
	}

	if err := tx.Commit(); err != nil {
		return ExportSummary{}, fmt.Errorf("commit export: %w", err)
	}
	return summary, nil
}

func insertCounts(ctx context.Context, tx *sql.Tx, runID string, res *stats.Result) (int, error) {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO usage_counts (run_id, kind, name, count, percentage) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare usage_counts: %w", err)
	}
	defer stmt.Close()

	rows := stats.Sorted(res)
	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, runID, kindName(res.Kind), row.Name, row.Count, row.Percentage); err != nil {
			return 0, fmt.Errorf("insert usage_counts %s/%s: %w", res.Kind, row.Name, err)
		}
	}
	return len(rows), nil
}

func insertTimeline(ctx context.Context, tx *sql.Tx, runID string, res *stats.Result) (int, error) {
	if len(res.Timeline) == 0 {
		return 0, nil
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO timeline (run_id, kind, idx, name, timestamp) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare timeline: %w", err)
	}
	defer stmt.Close()

	for _, entry := range res.Timeline {
		if _, err := stmt.ExecContext(ctx, runID, kindName(res.Kind), entry.Index, entry.Name, entry.Timestamp); err != nil {
			return 0, fmt.Errorf("insert timeline %d: %w", entry.Index, err)
		}
	}
	return len(res.Timeline), nil
}

func kindName(k logs.Kind) string {
	if k == "" {
		return "unknown"
	}
	return string(k)
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

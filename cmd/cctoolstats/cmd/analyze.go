package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/cctoolstats/internal/db"
	"github.com/Dicklesworthstone/cctoolstats/internal/jsonl"
	"github.com/Dicklesworthstone/cctoolstats/internal/logs"
	"github.com/Dicklesworthstone/cctoolstats/internal/report"
	"github.com/Dicklesworthstone/cctoolstats/internal/stats"
)

// finder locates transcripts; tests replace it with fixed roots.
var finder = logs.NewFinder()

// analysis is the outcome of one scan.
type analysis struct {
	scan   *logs.ScanResult
	report *report.Report
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	s, err := resolveSettings(cmd, args)
	if err != nil {
		return err
	}
	logger := s.newLogger(cmd)

	files, err := collectTranscripts(cmd.ErrOrStderr(), s)
	if err != nil {
		return err
	}

	a, err := analyze(cmd.Context(), s, files, logger)
	if err != nil {
		return err
	}
	return writeAnalysis(cmd.Context(), cmd.OutOrStdout(), s, a)
}

// collectTranscripts returns the explicit files or the selected project's
// transcripts. An empty selection warns on errOut but is not an error.
func collectTranscripts(errOut io.Writer, s *settings) ([]string, error) {
	if len(s.files) > 0 {
		return s.files, nil
	}

	var files []string
	switch s.selection {
	case selectAll:
		files = finder.All()
	case selectProject:
		files = finder.Project(s.project)
	default:
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working directory: %w", err)
		}
		s.project = cwd
		files = finder.Project(cwd)
	}
	files = logs.FilterPaths(files, s.includePatterns, s.excludePatterns)

	if len(files) == 0 {
		switch s.selection {
		case selectAll:
			fmt.Fprintln(errOut, "No Claude log files found in ~/.claude/projects/ or ~/.config/claude/projects/")
		case selectProject:
			fmt.Fprintf(errOut, "No Claude log files found for project: %s\n", s.project)
		default:
			fmt.Fprintf(errOut, "No Claude log files found for current project: %s\n", s.project)
		}
		fmt.Fprintln(errOut, "Please ensure Claude Code has been used and generated logs.")
	}
	return files, nil
}

// analyze scans files and folds the events into a report.
func analyze(ctx context.Context, s *settings, files []string, logger *slog.Logger) (*analysis, error) {
	opts := s.scanOptions(logger)
	if s.verbose {
		opts.Diagnostics = func(path string, d jsonl.Diagnostic) {
			logger.Debug("skipped line", "path", path, "line", d.Line, "kind", d.Kind.String(), "error", d.Err)
		}
	}

	var scanner logs.Scanner = logs.NewClaudeScanner(opts)
	result, err := scanner.Scan(ctx, files)
	if err != nil {
		return nil, fmt.Errorf("scan transcripts: %w", err)
	}

	logger.Debug("scan complete",
		"files", result.Files,
		"lines", result.TotalLines,
		"records", result.ParsedRecords,
		"parse_errors", result.ParseErrors,
		"events", len(result.Events),
	)

	rep := &report.Report{
		Tools:     stats.Fold(logs.KindTool, result.Events),
		Subagents: stats.Fold(logs.KindSubagent, result.Events),
		Top:       s.top,
	}
	if s.categories {
		rep.Categories = stats.Categorize(rep.Tools)
	}
	if s.durations {
		rep.ToolDurations = stats.DurationStats(logs.KindTool, result.Events)
		rep.SubagentDurations = stats.DurationStats(logs.KindSubagent, result.Events)
	}

	return &analysis{scan: result, report: rep}, nil
}

// writeAnalysis renders a to out or to the output file.
func writeAnalysis(ctx context.Context, out io.Writer, s *settings, a *analysis) error {
	if s.format == "sqlite" {
		return exportSQLite(ctx, out, s, a)
	}

	var buf bytes.Buffer
	if err := report.Render(&buf, a.report, s.format, s.renderOptions()); err != nil {
		return err
	}

	if s.output == "" {
		_, err := out.Write(buf.Bytes())
		return err
	}
	if err := os.WriteFile(s.output, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	fmt.Fprintf(out, "Output saved to %s\n", s.output)
	return nil
}

func exportSQLite(ctx context.Context, out io.Writer, s *settings, a *analysis) error {
	store, err := db.OpenAt(s.output)
	if err != nil {
		return fmt.Errorf("open export database: %w", err)
	}

	summary, err := store.ExportRun(ctx, db.Run{
		Sources:       a.scan.Files,
		ParsedRecords: a.scan.ParsedRecords,
		ParseErrors:   a.scan.ParseErrors,
		Since:         a.scan.Since,
		Until:         a.scan.Until,
		Results:       []*stats.Result{a.report.Tools, a.report.Subagents},
	})
	if closeErr := store.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close export database: %w", closeErr)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Exported run %s to %s (%d counts, %d timeline entries)\n",
		summary.RunID, s.output, summary.CountRows, summary.TimelineRows)
	return nil
}

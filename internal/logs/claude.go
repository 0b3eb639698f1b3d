package logs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Dicklesworthstone/cctoolstats/internal/jsonl"
)

const defaultConcurrency = 4

// ScanOptions tunes a ClaudeScanner.
type ScanOptions struct {
	// MaxLineSize bounds a single transcript line. Zero selects the jsonl default.
	MaxLineSize int

	// Concurrency is the number of transcripts read in parallel.
	Concurrency int

	// Since and Until restrict events to a time window. Zero means unbounded.
	// With a window set, events without a parseable timestamp are dropped.
	Since time.Time
	Until time.Time

	// Logger receives per-file progress and failures. Defaults to slog.Default().
	Logger *slog.Logger

	// Diagnostics, when set, receives every skipped line. It must not block.
	Diagnostics func(path string, d jsonl.Diagnostic)
}

// ClaudeScanner reads Claude Code transcripts and classifies their records.
type ClaudeScanner struct {
	opts ScanOptions
}

// NewClaudeScanner creates a scanner.
func NewClaudeScanner(opts ScanOptions) *ClaudeScanner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &ClaudeScanner{opts: opts}
}

var _ Scanner = (*ClaudeScanner)(nil)

// fileResult is the outcome of one transcript; each is owned by a single goroutine.
type fileResult struct {
	stats  jsonl.Stats
	events []Event
	err    error
}

// Scan reads files concurrently and returns their events in file order.
// A file that cannot be read is recorded in Failures and the scan continues;
// only context cancellation aborts the whole scan.
func (s *ClaudeScanner) Scan(ctx context.Context, files []string) (*ScanResult, error) {
	result := &ScanResult{
		Provider: "claude",
		Since:    s.opts.Since,
		Until:    s.opts.Until,
		Events:   make([]Event, 0),
	}

	perFile := make([]fileResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i, path := range files {
		g.Go(func() error {
			fr := &perFile[i]
			fr.stats, fr.err = s.ScanFile(gctx, path, func(e Event) {
				fr.events = append(fr.events, e)
			})
			if fr.err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}

	for i, fr := range perFile {
		result.TotalLines += fr.stats.Lines
		result.ParsedRecords += fr.stats.Yielded + fr.stats.Filtered
		result.ParseErrors += fr.stats.DecodeErrors + fr.stats.Overlong

		if fr.err != nil {
			s.opts.Logger.Warn("skipping transcript", "path", files[i], "error", fr.err)
			result.Failures = append(result.Failures, SourceError{Path: files[i], Err: fr.err})
			continue
		}
		result.Files++
		result.Events = append(result.Events, fr.events...)
	}

	return result, nil
}

// ScanFile streams one transcript through the decoder and classifier, calling
// emit for each event in line order. Only failures to open or read the file
// are returned.
func (s *ClaudeScanner) ScanFile(ctx context.Context, path string, emit func(Event)) (jsonl.Stats, error) {
	opts := []jsonl.Option{
		jsonl.WithContext(ctx),
		jsonl.WithMaxLineSize(s.opts.MaxLineSize),
	}
	if s.opts.Diagnostics != nil {
		opts = append(opts, jsonl.WithDiagnostics(func(d jsonl.Diagnostic) {
			s.opts.Diagnostics(path, d)
		}))
	}

	fd, err := jsonl.Open(path, opts...)
	if err != nil {
		return jsonl.Stats{}, err
	}
	defer fd.Close()

	s.opts.Logger.Debug("scanning transcript", "path", path)

	for rec := range fd.Records() {
		for _, e := range Classify(rec) {
			if s.inWindow(e) {
				emit(e)
			}
		}
	}

	stats := fd.Stats()
	if err := fd.Err(); err != nil {
		return stats, err
	}
	if stats.Skipped() > 0 {
		s.opts.Logger.Debug("skipped transcript lines", "path", path,
			"decode_errors", stats.DecodeErrors, "overlong", stats.Overlong)
	}
	return stats, nil
}

func (s *ClaudeScanner) inWindow(e Event) bool {
	if s.opts.Since.IsZero() && s.opts.Until.IsZero() {
		return true
	}
	if e.Time.IsZero() {
		return false
	}
	if !s.opts.Since.IsZero() && e.Time.Before(s.opts.Since) {
		return false
	}
	if !s.opts.Until.IsZero() && e.Time.After(s.opts.Until) {
		return false
	}
	return true
}

// FailedPaths returns the paths in Failures.
func (r *ScanResult) FailedPaths() []string {
	paths := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		paths = append(paths, f.Path)
	}
	return paths
}

// IsCanceled reports whether err came from context cancellation.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

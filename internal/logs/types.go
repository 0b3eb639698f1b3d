// Package logs extracts tool and sub-agent invocations from Claude Code
// transcripts.
//
// Transcripts are JSONL files. Several record shapes have been written over
// time and all of them are still found on disk, so classification is purely
// structural: each record is matched against a fixed list of dialects and
// normalized to the common Event type.
package logs

import (
	"context"
	"fmt"
	"time"
)

// Kind identifies what an Event represents.
type Kind string

const (
	KindTool     Kind = "tool"
	KindSubagent Kind = "subagent"
)

// Event is one classified invocation.
type Event struct {
	Kind Kind
	Name string

	// Timestamp is the record's timestamp exactly as written. Time is its
	// parsed form, zero when missing or unparseable.
	Timestamp string
	Time      time.Time

	// SessionID is carried over from the originating record.
	SessionID string

	// Attributes holds passthrough data such as the tool input and id.
	Attributes map[string]any

	// Duration is set only when the record carried a numeric duration.
	Duration *float64
}

// HasTimestamp reports whether the event carried a timestamp.
func (e *Event) HasTimestamp() bool {
	return e.Timestamp != ""
}

// SourceError records a transcript that could not be read.
type SourceError struct {
	Path string
	Err  error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// Scanner reads transcripts into a ScanResult.
type Scanner interface {
	Scan(ctx context.Context, files []string) (*ScanResult, error)
}

// ScanResult contains classified events from a Scanner.
type ScanResult struct {
	// Provider identifies the transcript source (currently always "claude").
	Provider string

	// Files is the number of transcripts that were read to completion.
	Files int

	// TotalLines is the number of lines encountered.
	TotalLines int

	// ParsedRecords is the number of lines that decoded as JSON.
	ParsedRecords int

	// ParseErrors is the number of lines skipped as malformed or overlong.
	ParseErrors int

	// Since and Until bound the scanned time window. Zero means unbounded.
	Since time.Time
	Until time.Time

	// Events holds every classified event in file order, then line order.
	Events []Event

	// Failures lists transcripts that could not be read.
	Failures []SourceError
}

// FilterByKind returns events of the given kind.
func (r *ScanResult) FilterByKind(kind Kind) []Event {
	var filtered []Event
	for _, e := range r.Events {
		if e.Kind == kind {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// Sessions returns the unique session ids in first-seen order.
func (r *ScanResult) Sessions() []string {
	seen := make(map[string]bool)
	var sessions []string
	for _, e := range r.Events {
		if e.SessionID != "" && !seen[e.SessionID] {
			seen[e.SessionID] = true
			sessions = append(sessions, e.SessionID)
		}
	}
	return sessions
}

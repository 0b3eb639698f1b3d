package logs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Dicklesworthstone/cctoolstats/internal/jsonl"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeTranscript(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0600); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
	return path
}

func TestClaudeScanner_ScanValidJSONL(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeTranscript(t, tmpDir, "session.jsonl",
		`{"type":"assistant","timestamp":"2025-01-10T12:00:00Z","sessionId":"s1","message":{"content":[{"type":"tool_use","id":"t1","name":"Bash","input":{"command":"ls"}}]}}`,
		`{"type":"user","timestamp":"2025-01-10T12:00:01Z","message":{"content":[{"type":"tool_result","tool_use_id":"t1","content":"ok"}]}}`,
		`{"invalid`,
		`{"type":"assistant","timestamp":"2025-01-10T12:00:02Z","sessionId":"s1","message":{"content":[{"type":"tool_use","id":"t2","name":"Task","input":{"subagent_type":"code-reviewer"}}]}}`,
	)

	scanner := NewClaudeScanner(ScanOptions{Logger: quietLogger()})
	result, err := scanner.Scan(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if result.Provider != "claude" {
		t.Errorf("Provider = %q, want claude", result.Provider)
	}
	if result.Files != 1 {
		t.Errorf("Files = %d, want 1", result.Files)
	}
	if result.TotalLines != 4 {
		t.Errorf("TotalLines = %d, want 4", result.TotalLines)
	}
	if result.ParsedRecords != 3 {
		t.Errorf("ParsedRecords = %d, want 3", result.ParsedRecords)
	}
	if result.ParseErrors != 1 {
		t.Errorf("ParseErrors = %d, want 1", result.ParseErrors)
	}
	if len(result.Events) != 2 {
		t.Fatalf("Events = %d, want 2", len(result.Events))
	}
	if e := result.Events[0]; e.Kind != KindTool || e.Name != "Bash" {
		t.Errorf("Events[0] = %s/%s, want tool/Bash", e.Kind, e.Name)
	}
	if e := result.Events[1]; e.Kind != KindSubagent || e.Name != "code-reviewer" {
		t.Errorf("Events[1] = %s/%s, want subagent/code-reviewer", e.Kind, e.Name)
	}
	if got := result.Sessions(); len(got) != 1 || got[0] != "s1" {
		t.Errorf("Sessions() = %v, want [s1]", got)
	}
	if got := result.FilterByKind(KindTool); len(got) != 1 {
		t.Errorf("FilterByKind(tool) = %d events, want 1", len(got))
	}
}

func TestClaudeScanner_UnreadableFileDoesNotAbort(t *testing.T) {
	tmpDir := t.TempDir()
	good := writeTranscript(t, tmpDir, "good.jsonl", `{"type":"tool_invocation","tool":"Read"}`)
	missing := filepath.Join(tmpDir, "missing.jsonl")

	scanner := NewClaudeScanner(ScanOptions{Logger: quietLogger()})
	result, err := scanner.Scan(context.Background(), []string{missing, good})
	if err != nil {
		t.Fatalf("Scan() error = %v, want nil", err)
	}

	if len(result.Failures) != 1 {
		t.Fatalf("Failures = %d, want 1", len(result.Failures))
	}
	if result.Failures[0].Path != missing {
		t.Errorf("Failures[0].Path = %q, want %q", result.Failures[0].Path, missing)
	}
	if !os.IsNotExist(result.Failures[0].Err) {
		t.Errorf("Failures[0].Err = %v, want not-exist", result.Failures[0].Err)
	}
	if got := result.FailedPaths(); len(got) != 1 || got[0] != missing {
		t.Errorf("FailedPaths() = %v", got)
	}
	if len(result.Events) != 1 || result.Events[0].Name != "Read" {
		t.Errorf("Events = %+v, want the Read event from good.jsonl", result.Events)
	}
}

func TestClaudeScanner_PreservesFileOrderUnderConcurrency(t *testing.T) {
	tmpDir := t.TempDir()
	var files []string
	for i := 0; i < 12; i++ {
		var lines []string
		for j := 0; j < 50; j++ {
			lines = append(lines, fmt.Sprintf(`{"type":"tool_invocation","tool":"tool-%02d","timestamp":"2025-01-01T00:00:%02dZ"}`, i, j))
		}
		files = append(files, writeTranscript(t, tmpDir, fmt.Sprintf("s%02d.jsonl", i), lines...))
	}

	scanner := NewClaudeScanner(ScanOptions{Concurrency: 6, Logger: quietLogger()})
	result, err := scanner.Scan(context.Background(), files)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(result.Events) != 600 {
		t.Fatalf("Events = %d, want 600", len(result.Events))
	}
	for i, e := range result.Events {
		want := fmt.Sprintf("tool-%02d", i/50)
		if e.Name != want {
			t.Fatalf("Events[%d].Name = %q, want %q", i, e.Name, want)
		}
	}
}

func TestClaudeScanner_TimeWindow(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeTranscript(t, tmpDir, "w.jsonl",
		`{"type":"tool_invocation","tool":"A","timestamp":"2025-01-01T09:00:00Z"}`,
		`{"type":"tool_invocation","tool":"B","timestamp":"2025-01-01T10:00:00Z"}`,
		`{"type":"tool_invocation","tool":"C"}`,
		`{"type":"tool_invocation","tool":"D","timestamp":"2025-01-01T12:00:00Z"}`,
		`{"type":"tool_invocation","tool":"E","timestamp":"2025-01-01T11:15:00"}`,
	)

	scanner := NewClaudeScanner(ScanOptions{
		Since:  time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC),
		Until:  time.Date(2025, 1, 1, 11, 59, 59, 0, time.UTC),
		Logger: quietLogger(),
	})
	result, err := scanner.Scan(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(result.Events) != 2 || result.Events[0].Name != "B" || result.Events[1].Name != "E" {
		t.Errorf("Events = %+v, want B and E", result.Events)
	}
}

func TestClaudeScanner_Diagnostics(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeTranscript(t, tmpDir, "d.jsonl",
		`{"type":"tool_invocation","tool":"A"}`,
		`not json`,
		strings.Repeat("x", 200),
	)

	var mu sync.Mutex
	var got []jsonl.DiagKind
	scanner := NewClaudeScanner(ScanOptions{
		MaxLineSize: 100,
		Logger:      quietLogger(),
		Diagnostics: func(p string, d jsonl.Diagnostic) {
			mu.Lock()
			defer mu.Unlock()
			if p != path {
				t.Errorf("diagnostic path = %q, want %q", p, path)
			}
			got = append(got, d.Kind)
		},
	})
	result, err := scanner.Scan(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if result.ParseErrors != 2 {
		t.Errorf("ParseErrors = %d, want 2", result.ParseErrors)
	}
	if len(got) != 2 || got[0] != jsonl.DiagDecode || got[1] != jsonl.DiagOverlong {
		t.Errorf("diagnostics = %v, want [decode overlong]", got)
	}
}

func TestClaudeScanner_Canceled(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeTranscript(t, tmpDir, "c.jsonl", `{"type":"tool_invocation","tool":"A"}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scanner := NewClaudeScanner(ScanOptions{Logger: quietLogger()})
	_, err := scanner.Scan(ctx, []string{path})
	if !IsCanceled(err) {
		t.Errorf("Scan() error = %v, want context canceled", err)
	}
}

func TestClaudeScanner_NoFiles(t *testing.T) {
	scanner := NewClaudeScanner(ScanOptions{Logger: quietLogger()})
	result, err := scanner.Scan(context.Background(), nil)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if result.Events == nil || len(result.Events) != 0 {
		t.Errorf("Events = %v, want empty non-nil slice", result.Events)
	}
}

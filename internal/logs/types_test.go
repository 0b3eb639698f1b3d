package logs

import (
	"errors"
	"os"
	"testing"
)

func TestEvent_HasTimestamp(t *testing.T) {
	e := Event{Kind: KindTool, Name: "Bash"}
	if e.HasTimestamp() {
		t.Error("HasTimestamp() = true for empty timestamp")
	}
	e.Timestamp = "2025-01-01T00:00:00Z"
	if !e.HasTimestamp() {
		t.Error("HasTimestamp() = false with timestamp set")
	}
}

func TestScanResult_FilterByKind(t *testing.T) {
	result := &ScanResult{
		Events: []Event{
			{Kind: KindTool, Name: "Bash"},
			{Kind: KindSubagent, Name: "reviewer"},
			{Kind: KindTool, Name: "Read"},
		},
	}

	tools := result.FilterByKind(KindTool)
	if len(tools) != 2 || tools[0].Name != "Bash" || tools[1].Name != "Read" {
		t.Errorf("FilterByKind(tool) = %+v", tools)
	}
	if got := result.FilterByKind(KindSubagent); len(got) != 1 {
		t.Errorf("FilterByKind(subagent) = %d events, want 1", len(got))
	}
}

func TestScanResult_Sessions(t *testing.T) {
	result := &ScanResult{
		Events: []Event{
			{SessionID: "b"},
			{SessionID: ""},
			{SessionID: "a"},
			{SessionID: "b"},
		},
	}

	got := result.Sessions()
	if len(got) != 2 || got[0] != "b" || got[1] != "a" {
		t.Errorf("Sessions() = %v, want [b a]", got)
	}
}

func TestScanResult_Empty(t *testing.T) {
	result := &ScanResult{}
	if got := result.FilterByKind(KindTool); len(got) != 0 {
		t.Errorf("FilterByKind() on empty result = %v", got)
	}
	if got := result.Sessions(); len(got) != 0 {
		t.Errorf("Sessions() on empty result = %v", got)
	}
	if got := result.FailedPaths(); len(got) != 0 {
		t.Errorf("FailedPaths() on empty result = %v", got)
	}
}

func TestSourceError(t *testing.T) {
	err := error(&SourceError{Path: "/tmp/x.jsonl", Err: os.ErrPermission})

	if got := err.Error(); got != "/tmp/x.jsonl: permission denied" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, os.ErrPermission) {
		t.Error("errors.Is(err, ErrPermission) = false")
	}

	var se *SourceError
	if !errors.As(err, &se) || se.Path != "/tmp/x.jsonl" {
		t.Errorf("errors.As() = %v", se)
	}
}

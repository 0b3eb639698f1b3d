package logs

import (
	"github.com/Dicklesworthstone/cctoolstats/internal/jsonl"
)

// DelegationTools are the tool names that hand work to a named sub-agent.
// "Task" is the older name, "Agent" the current one.
var DelegationTools = []string{"Task", "Agent"}

// dialect is one record shape. match returns ok=false when the record is not
// of this shape, letting the next dialect try.
type dialect struct {
	name  string
	match func(rec map[string]any) (events []Event, ok bool)
}

// dialects are tried in order; the first match wins.
var dialects = []dialect{
	{name: "tool_use", match: matchToolUse},
	{name: "subagent", match: matchDirectSubagent},
	{name: "legacy_invocation", match: matchLegacyInvocation},
}

// Classify returns the events carried by one decoded record. Records that
// match no dialect produce nil. Classify keeps no state between calls.
func Classify(rec jsonl.Record) []Event {
	m, ok := asMap(rec)
	if !ok {
		return nil
	}
	for _, d := range dialects {
		if events, ok := d.match(m); ok {
			return events
		}
	}
	return nil
}

// Dialect returns the name of the dialect that matches rec, or "".
func Dialect(rec jsonl.Record) string {
	m, ok := asMap(rec)
	if !ok {
		return ""
	}
	for _, d := range dialects {
		if _, ok := d.match(m); ok {
			return d.name
		}
	}
	return ""
}

// matchToolUse handles assistant messages whose content holds tool_use
// blocks, and bare tool_use blocks written as their own record.
func matchToolUse(rec map[string]any) ([]Event, bool) {
	switch extractString(rec, "type") {
	case "assistant":
		msg, ok := asMap(rec["message"])
		if !ok {
			return nil, false
		}
		blocks, ok := asSlice(msg["content"])
		if !ok {
			return nil, false
		}
		var events []Event
		for _, b := range blocks {
			block, ok := asMap(b)
			if !ok || extractString(block, "type") != "tool_use" {
				continue
			}
			if e, ok := toolUseEvent(block, rec); ok {
				events = append(events, e)
			}
		}
		return events, len(events) > 0
	case "tool_use":
		e, ok := toolUseEvent(rec, rec)
		if !ok {
			return nil, false
		}
		return []Event{e}, true
	default:
		return nil, false
	}
}

// toolUseEvent converts a tool_use block. envelope is the record the block
// came from and supplies the timestamp and session.
func toolUseEvent(block, envelope map[string]any) (Event, bool) {
	name := extractString(block, "name")
	if name == "" {
		return Event{}, false
	}

	input, _ := asMap(block["input"])
	e := newEvent(KindTool, name, envelope)
	if agent := delegatedAgent(name, input); agent != "" {
		e.Kind = KindSubagent
		e.Name = agent
	}

	e.Attributes = map[string]any{}
	if id := extractString(block, "id"); id != "" {
		e.Attributes["id"] = id
	}
	if input != nil {
		e.Attributes["input"] = input
	}
	if e.Kind == KindSubagent {
		e.Attributes["tool"] = name
	}

	e.Duration = extractDuration(block, envelope)
	return e, true
}

// delegatedAgent returns the sub-agent type when name is a delegation tool
// and its input names a sub-agent.
func delegatedAgent(name string, input map[string]any) string {
	if input == nil || !IsDelegationTool(name) {
		return ""
	}
	return extractString(input, "subagent_type")
}

// IsDelegationTool reports whether name is one of DelegationTools.
func IsDelegationTool(name string) bool {
	for _, d := range DelegationTools {
		if d == name {
			return true
		}
	}
	return false
}

func matchDirectSubagent(rec map[string]any) ([]Event, bool) {
	if extractString(rec, "type") != "subagent" {
		return nil, false
	}
	name := extractString(rec, "name")
	if name == "" {
		return nil, false
	}
	e := newEvent(KindSubagent, name, rec)
	e.Attributes = passthrough(rec, "prompt", "description", "input")
	e.Duration = extractDuration(rec)
	return []Event{e}, true
}

func matchLegacyInvocation(rec map[string]any) ([]Event, bool) {
	var kind Kind
	var name string
	switch extractString(rec, "type") {
	case "tool_invocation":
		kind, name = KindTool, extractString(rec, "tool")
	case "subagent_invocation":
		kind, name = KindSubagent, extractString(rec, "agent")
	default:
		return nil, false
	}
	if name == "" {
		return nil, false
	}
	e := newEvent(kind, name, rec)
	e.Attributes = passthrough(rec, "input", "parameters", "prompt")
	e.Duration = extractDuration(rec)
	return []Event{e}, true
}

func newEvent(kind Kind, name string, envelope map[string]any) Event {
	e := Event{
		Kind:      kind,
		Name:      name,
		Timestamp: timestampString(envelope["timestamp"]),
		SessionID: extractString(envelope, "sessionId", "session_id"),
	}
	if t, ok := parseTimeAny(envelope["timestamp"]); ok {
		e.Time = t
	}
	return e
}

var durationKeys = []string{"duration", "duration_ms", "durationMs"}

// extractDuration returns the first numeric duration found in sources.
func extractDuration(sources ...map[string]any) *float64 {
	for _, src := range sources {
		if d, ok := extractNumber(src, durationKeys...); ok {
			return &d
		}
	}
	return nil
}

func passthrough(rec map[string]any, keys ...string) map[string]any {
	attrs := map[string]any{}
	for _, key := range keys {
		if v, ok := rec[key]; ok {
			attrs[key] = v
		}
	}
	return attrs
}

package logs

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// TimestampLayouts are the accepted textual timestamp forms, tried in order.
// Layouts without a zone parse as UTC, and fractional seconds are accepted
// after the seconds field of any of them.
var TimestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses s with the first matching TimestampLayouts entry.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range TimestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseTimeAny accepts the TimestampLayouts strings and numeric epochs in
// seconds, milliseconds, microseconds or nanoseconds.
func parseTimeAny(value any) (time.Time, bool) {
	switch v := value.(type) {
	case string:
		v = strings.TrimSpace(v)
		if t, ok := ParseTimestamp(v); ok {
			return t, true
		}
		if num, err := strconv.ParseFloat(v, 64); err == nil {
			return parseUnixTime(num), true
		}
	case float64:
		return parseUnixTime(v), true
	case int64:
		return time.Unix(v, 0), true
	case int:
		return time.Unix(int64(v), 0), true
	case json.Number:
		if num, err := v.Float64(); err == nil {
			return parseUnixTime(num), true
		}
	}
	return time.Time{}, false
}

func parseUnixTime(value float64) time.Time {
	switch {
	case value > 1e18:
		return time.Unix(0, int64(value))
	case value > 1e15:
		return time.Unix(0, int64(value*1e3))
	case value > 1e12:
		return time.Unix(0, int64(value*1e6))
	default:
		sec := int64(value)
		ns := int64((value - float64(sec)) * 1e9)
		return time.Unix(sec, ns)
	}
}

// timestampString returns the raw timestamp text for a record value.
// Numeric epochs are rendered as RFC 3339 so timelines stay uniform.
func timestampString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		if t, ok := parseTimeAny(v); ok {
			return t.UTC().Format(time.RFC3339Nano)
		}
	}
	return ""
}

func extractString(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		if val, ok := raw[key]; ok {
			if s, ok := val.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// extractNumber returns the first numeric value under keys. Strings are not
// treated as numbers.
func extractNumber(raw map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		if val, ok := raw[key]; ok {
			if n, ok := asFloat(val); ok {
				return n, true
			}
		}
	}
	return 0, false
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	case json.Number:
		if n, err := v.Float64(); err == nil {
			return n, true
		}
	}
	return 0, false
}

func asMap(value any) (map[string]any, bool) {
	m, ok := value.(map[string]any)
	return m, ok
}

func asSlice(value any) ([]any, bool) {
	s, ok := value.([]any)
	return s, ok
}

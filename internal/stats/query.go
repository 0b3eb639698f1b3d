package stats

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Dicklesworthstone/cctoolstats/internal/logs"
)

// Ranked is one row of a top-N listing.
type Ranked struct {
	Name       string  `json:"name"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// TopN returns the n most frequent names, highest count first. Equal counts
// keep first-seen order. n <= 0 or n larger than the number of names returns
// every name.
func TopN(r *Result, n int) []Ranked {
	if r == nil {
		return nil
	}
	ranked := make([]Ranked, 0, len(r.order))
	for _, name := range rankOrder(r) {
		ranked = append(ranked, Ranked{
			Name:       name,
			Count:      r.Counts[name],
			Percentage: r.Percentage(name),
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})
	if n > 0 && n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}

// rankOrder returns the first-seen order, falling back to sorted names for
// results that were built by hand or decoded from JSON.
func rankOrder(r *Result) []string {
	if len(r.order) == len(r.Counts) {
		return r.order
	}
	names := make([]string, 0, len(r.Counts))
	for name := range r.Counts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sorted returns every name ranked by count. It is TopN without a limit.
func Sorted(r *Result) []Ranked {
	return TopN(r, 0)
}

// ParseInstant parses a time-range bound using the same layouts as event
// timestamps. Values without a zone are UTC.
func ParseInstant(s string) (time.Time, error) {
	if t, ok := logs.ParseTimestamp(s); ok {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q: want RFC 3339 or YYYY-MM-DD", strings.TrimSpace(s))
}

// FilterByTimeRange returns the events whose timestamp lies within
// [start, end], keeping their order. Events without a parsed timestamp are
// dropped. The result can be passed to Fold.
func FilterByTimeRange(events []logs.Event, start, end time.Time) []logs.Event {
	var out []logs.Event
	for _, e := range events {
		if e.Time.IsZero() {
			continue
		}
		if e.Time.Before(start) || e.Time.After(end) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Category groups tools by what they do.
type Category string

const (
	CategoryExecution      Category = "execution"
	CategoryFileOperations Category = "file_operations"
	CategorySearch         Category = "search"
)

// Categories lists every category in display order.
var Categories = []Category{CategoryExecution, CategoryFileOperations, CategorySearch}

// toolCategories is fixed. Tools missing here belong to no category.
var toolCategories = map[string]Category{
	"Bash":      CategoryExecution,
	"Read":      CategoryFileOperations,
	"Write":     CategoryFileOperations,
	"Edit":      CategoryFileOperations,
	"MultiEdit": CategoryFileOperations,
	"Grep":      CategorySearch,
	"Glob":      CategorySearch,
}

// CategoryOf returns the category for a tool and whether it has one.
func CategoryOf(tool string) (Category, bool) {
	c, ok := toolCategories[tool]
	return c, ok
}

// Categorize groups the tools in r by category. Every category is present,
// possibly empty; uncategorized tools are omitted. Tools within a category
// follow TopN order.
func Categorize(r *Result) map[Category][]string {
	out := make(map[Category][]string, len(Categories))
	for _, c := range Categories {
		out[c] = []string{}
	}
	for _, row := range Sorted(r) {
		if c, ok := toolCategories[row.Name]; ok {
			out[c] = append(out[c], row.Name)
		}
	}
	return out
}

// GroupBySession partitions events by session id, preserving arrival order
// within each session. Events without a session id are omitted.
func GroupBySession(events []logs.Event) map[string][]logs.Event {
	sessions := make(map[string][]logs.Event)
	for _, e := range events {
		if e.SessionID == "" {
			continue
		}
		sessions[e.SessionID] = append(sessions[e.SessionID], e)
	}
	return sessions
}

// DurationStat summarizes the recorded durations of one name.
type DurationStat struct {
	Count   int     `json:"count"`
	Total   float64 `json:"totalDuration"`
	Average float64 `json:"averageDuration"`
	Min     float64 `json:"minDuration"`
	Max     float64 `json:"maxDuration"`
}

// DurationStats summarizes durations per name for events of kind. Events
// without a duration are ignored here but still count in Fold.
func DurationStats(kind logs.Kind, events []logs.Event) map[string]DurationStat {
	out := make(map[string]DurationStat)
	for _, e := range events {
		if e.Kind != kind || e.Duration == nil {
			continue
		}
		d := *e.Duration
		s, ok := out[e.Name]
		if !ok {
			s = DurationStat{Min: math.Inf(1), Max: math.Inf(-1)}
		}
		s.Count++
		s.Total += d
		s.Min = math.Min(s.Min, d)
		s.Max = math.Max(s.Max, d)
		out[e.Name] = s
	}
	for name, s := range out {
		s.Average = s.Total / float64(s.Count)
		out[name] = s
	}
	return out
}

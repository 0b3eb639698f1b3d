// Package stats folds classified events into usage statistics.
package stats

import (
	"math"
	"sync"

	"github.com/Dicklesworthstone/cctoolstats/internal/logs"
)

// TimelineEntry is one timestamped invocation. Index is the position within
// the timeline, not within the event stream.
type TimelineEntry struct {
	Name      string `json:"name"`
	Timestamp string `json:"timestamp"`
	Index     int    `json:"index"`
}

// Result is the aggregate for one event kind.
type Result struct {
	Kind             logs.Kind          `json:"-"`
	TotalInvocations int                `json:"totalInvocations"`
	UniqueNames      int                `json:"uniqueNames"`
	Counts           map[string]int     `json:"counts"`
	Percentages      map[string]float64 `json:"percentages"`
	Timeline         []TimelineEntry    `json:"timeline"`

	// order holds names in first-seen order for deterministic ranking.
	order []string
}

// Percentage returns the share of name, or 0 when name was never seen.
func (r *Result) Percentage(name string) float64 {
	if r == nil {
		return 0
	}
	return r.Percentages[name]
}

// Names returns the observed names in first-seen order.
func (r *Result) Names() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.order...)
}

// Aggregator accumulates events of a single kind. It is safe for concurrent
// use; events added concurrently land in the timeline in lock order.
type Aggregator struct {
	kind logs.Kind

	mu       sync.Mutex
	total    int
	counts   map[string]int
	order    []string
	timeline []TimelineEntry
}

// NewAggregator creates an Aggregator for kind.
func NewAggregator(kind logs.Kind) *Aggregator {
	return &Aggregator{
		kind:   kind,
		counts: make(map[string]int),
	}
}

// Kind returns the event kind this aggregator counts.
func (a *Aggregator) Kind() logs.Kind { return a.kind }

// Add folds one event. Events of another kind are ignored.
func (a *Aggregator) Add(e logs.Event) {
	if e.Kind != a.kind || e.Name == "" {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, seen := a.counts[e.Name]; !seen {
		a.order = append(a.order, e.Name)
	}
	a.counts[e.Name]++
	a.total++

	if e.HasTimestamp() {
		a.timeline = append(a.timeline, TimelineEntry{
			Name:      e.Name,
			Timestamp: e.Timestamp,
			Index:     len(a.timeline),
		})
	}
}

// AddAll folds events in order.
func (a *Aggregator) AddAll(events []logs.Event) {
	for _, e := range events {
		a.Add(e)
	}
}

// Result snapshots the current tallies. The returned value shares no state
// with the aggregator.
func (a *Aggregator) Result() *Result {
	a.mu.Lock()
	defer a.mu.Unlock()

	r := &Result{
		Kind:             a.kind,
		TotalInvocations: a.total,
		UniqueNames:      len(a.counts),
		Counts:           make(map[string]int, len(a.counts)),
		Percentages:      make(map[string]float64, len(a.counts)),
		Timeline:         append(make([]TimelineEntry, 0, len(a.timeline)), a.timeline...),
		order:            append([]string(nil), a.order...),
	}
	for name, count := range a.counts {
		r.Counts[name] = count
	}
	if a.total > 0 {
		for name, count := range a.counts {
			r.Percentages[name] = percent(count, a.total)
		}
	}
	return r
}

// Fold aggregates the events of kind in a single pass.
func Fold(kind logs.Kind, events []logs.Event) *Result {
	a := NewAggregator(kind)
	a.AddAll(events)
	return a.Result()
}

// percent returns count/total as a percentage rounded to two decimals.
func percent(count, total int) float64 {
	return math.Round(float64(count)/float64(total)*100*100) / 100
}

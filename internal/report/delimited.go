package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/Dicklesworthstone/cctoolstats/internal/stats"
)

// jsonReport is the JSON document layout.
type jsonReport struct {
	Tools      *stats.Result               `json:"tools"`
	Subagents  *stats.Result               `json:"subagents"`
	Top        *jsonTop                    `json:"top,omitempty"`
	Categories map[stats.Category][]string `json:"categories,omitempty"`
	Durations  *jsonDurations              `json:"durations,omitempty"`
}

type jsonTop struct {
	Tools     []stats.Ranked `json:"tools"`
	Subagents []stats.Ranked `json:"subagents"`
}

type jsonDurations struct {
	Tools     map[string]stats.DurationStat `json:"tools"`
	Subagents map[string]stats.DurationStat `json:"subagents"`
}

// WriteJSON writes r as an indented JSON document.
func WriteJSON(w io.Writer, r *Report) error {
	doc := jsonReport{
		Tools:      orEmpty(r.Tools),
		Subagents:  orEmpty(r.Subagents),
		Categories: r.Categories,
	}
	if r.Top > 0 {
		doc.Top = &jsonTop{
			Tools:     stats.TopN(doc.Tools, r.Top),
			Subagents: stats.TopN(doc.Subagents, r.Top),
		}
	}
	if r.ToolDurations != nil || r.SubagentDurations != nil {
		doc.Durations = &jsonDurations{
			Tools:     orEmptyDurations(r.ToolDurations),
			Subagents: orEmptyDurations(r.SubagentDurations),
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode json report: %w", err)
	}
	return nil
}

// WriteCSV writes one Type,Name,Count,Percentage row per name, tools first.
func WriteCSV(w io.Writer, r *Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Type", "Name", "Count", "Percentage"}); err != nil {
		return err
	}
	for _, section := range []struct {
		label string
		res   *stats.Result
	}{
		{"Tool", r.Tools},
		{"Subagent", r.Subagents},
	} {
		for _, row := range r.rows(section.res) {
			record := []string{section.label, row.Name, strconv.Itoa(row.Count), formatPercent(row.Percentage)}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write csv report: %w", err)
	}
	return nil
}

func orEmpty(r *stats.Result) *stats.Result {
	if r != nil {
		return r
	}
	return stats.Fold("", nil)
}

func orEmptyDurations(d map[string]stats.DurationStat) map[string]stats.DurationStat {
	if d != nil {
		return d
	}
	return map[string]stats.DurationStat{}
}

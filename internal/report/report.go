// Package report renders usage statistics as tables, JSON or CSV.
package report

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/Dicklesworthstone/cctoolstats/internal/stats"
)

// Report is everything one analysis run produces.
type Report struct {
	Tools     *stats.Result
	Subagents *stats.Result

	// Optional views; nil means not requested.
	Categories        map[stats.Category][]string
	ToolDurations     map[string]stats.DurationStat
	SubagentDurations map[string]stats.DurationStat

	// Top limits table and CSV rows per kind. Zero shows every name.
	Top int
}

// Options control rendering.
type Options struct {
	Color             bool
	ThousandSeparator bool
	// MaxNameWidth truncates long names in tables. Zero uses the default.
	MaxNameWidth int
}

const defaultMaxNameWidth = 48

// Render writes r to w in format. The sqlite format is not rendered here.
func Render(w io.Writer, r *Report, format string, opts Options) error {
	switch format {
	case "table", "":
		return WriteTable(w, r, opts)
	case "json":
		return WriteJSON(w, r)
	case "csv":
		return WriteCSV(w, r)
	default:
		return fmt.Errorf("report: unsupported format %q", format)
	}
}

// ColorEnabled resolves a color mode (auto, always, never) for f.
// NO_COLOR disables auto colors.
func ColorEnabled(mode string, f *os.File) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// rows returns the ranked rows for r honouring the Top limit.
func (r *Report) rows(res *stats.Result) []stats.Ranked {
	return stats.TopN(res, r.Top)
}

func formatCount(n int, separators bool) string {
	if separators {
		return humanize.Comma(int64(n))
	}
	return strconv.Itoa(n)
}

func formatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', 2, 64)
}

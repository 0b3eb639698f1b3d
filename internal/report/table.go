package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"

	"github.com/Dicklesworthstone/cctoolstats/internal/stats"
)

// Dracula palette.
var (
	colorPurple   = lipgloss.Color("#bd93f9")
	colorCyan     = lipgloss.Color("#8be9fd")
	colorGreen    = lipgloss.Color("#50fa7b")
	colorGray     = lipgloss.Color("#6272a4")
	colorDarkGray = lipgloss.Color("#44475a")
)

type styles struct {
	Title  lipgloss.Style
	Header lipgloss.Style
	Cell   lipgloss.Style
	Number lipgloss.Style
	Border lipgloss.Style
	Muted  lipgloss.Style
}

func newStyles(w io.Writer, color bool) styles {
	r := lipgloss.NewRenderer(w)
	if !color {
		r.SetColorProfile(termenv.Ascii)
		plain := r.NewStyle()
		return styles{
			Title:  plain,
			Header: plain.Padding(0, 1),
			Cell:   plain.Padding(0, 1),
			Number: plain.Padding(0, 1).Align(lipgloss.Right),
			Border: plain,
			Muted:  plain,
		}
	}
	r.SetColorProfile(termenv.TrueColor)
	return styles{
		Title:  r.NewStyle().Bold(true).Foreground(colorPurple),
		Header: r.NewStyle().Bold(true).Foreground(colorCyan).Padding(0, 1),
		Cell:   r.NewStyle().Padding(0, 1),
		Number: r.NewStyle().Padding(0, 1).Align(lipgloss.Right).Foreground(colorGreen),
		Border: r.NewStyle().Foreground(colorDarkGray),
		Muted:  r.NewStyle().Foreground(colorGray),
	}
}

// WriteTable renders the tool section, then the subagent section, then any
// optional views.
func WriteTable(w io.Writer, r *Report, opts Options) error {
	st := newStyles(w, opts.Color)
	width := opts.MaxNameWidth
	if width <= 0 {
		width = defaultMaxNameWidth
	}

	sections := []string{
		r.kindSection(st, r.Tools, "Tool", "No tool invocations found", width, opts),
		r.kindSection(st, r.Subagents, "Subagent", "No subagent invocations found", width, opts),
	}
	if r.Categories != nil {
		sections = append(sections, categorySection(st, r.Categories))
	}
	if r.ToolDurations != nil {
		sections = append(sections, durationSection(st, "Tool", r.ToolDurations, width))
	}
	if r.SubagentDurations != nil {
		sections = append(sections, durationSection(st, "Subagent", r.SubagentDurations, width))
	}

	_, err := io.WriteString(w, strings.Join(sections, "\n\n")+"\n")
	return err
}

func (r *Report) kindSection(st styles, res *stats.Result, label, empty string, width int, opts Options) string {
	if res == nil || res.TotalInvocations == 0 {
		return empty
	}

	rows := make([][]string, 0, len(res.Counts))
	for _, row := range r.rows(res) {
		rows = append(rows, []string{
			ansi.Truncate(row.Name, width, "…"),
			formatCount(row.Count, opts.ThousandSeparator),
			formatPercent(row.Percentage) + "%",
		})
	}

	var b strings.Builder
	b.WriteString(st.Title.Render(label+" Usage Statistics") + "\n")
	b.WriteString(strings.Repeat("=", 50) + "\n")
	b.WriteString(renderTable(st, []string{label, "Count", "Percentage"}, rows) + "\n")
	fmt.Fprintf(&b, "Total: %s", formatCount(res.TotalInvocations, opts.ThousandSeparator))
	if r.Top > 0 && r.Top < res.UniqueNames {
		b.WriteString(st.Muted.Render(fmt.Sprintf(" (top %d of %d)", r.Top, res.UniqueNames)))
	}
	return b.String()
}

func categorySection(st styles, cats map[stats.Category][]string) string {
	var b strings.Builder
	b.WriteString(st.Title.Render("Tool Categories") + "\n")
	b.WriteString(strings.Repeat("=", 50))
	for _, c := range stats.Categories {
		names := cats[c]
		list := st.Muted.Render("(none)")
		if len(names) > 0 {
			list = strings.Join(names, ", ")
		}
		fmt.Fprintf(&b, "\n%-16s %s", string(c)+":", list)
	}
	return b.String()
}

func durationSection(st styles, label string, durations map[string]stats.DurationStat, width int) string {
	if len(durations) == 0 {
		return fmt.Sprintf("No %s durations recorded", strings.ToLower(label))
	}

	names := make([]string, 0, len(durations))
	for name := range durations {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		d := durations[name]
		rows = append(rows, []string{
			ansi.Truncate(name, width, "…"),
			fmt.Sprint(d.Count),
			formatDuration(d.Total),
			formatDuration(d.Average),
			formatDuration(d.Min),
			formatDuration(d.Max),
		})
	}

	var b strings.Builder
	b.WriteString(st.Title.Render(label+" Durations") + "\n")
	b.WriteString(strings.Repeat("=", 50) + "\n")
	b.WriteString(renderTable(st, []string{label, "Count", "Total", "Average", "Min", "Max"}, rows))
	return b.String()
}

func formatDuration(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func renderTable(st styles, headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(st.Border).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return st.Header
			case col == 0:
				return st.Cell
			default:
				return st.Number
			}
		}).
		String()
}

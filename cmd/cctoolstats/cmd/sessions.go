package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/cctoolstats/internal/logs"
	"github.com/Dicklesworthstone/cctoolstats/internal/stats"
)

// SessionInfo summarizes the invocations of one session.
type SessionInfo struct {
	ID        string         `json:"id"`
	FirstSeen string         `json:"first_seen,omitempty"`
	LastSeen  string         `json:"last_seen,omitempty"`
	Tools     int            `json:"tools"`
	Subagents int            `json:"subagents"`
	TopTools  []stats.Ranked `json:"top_tools"`
	Agents    []stats.Ranked `json:"subagent_counts"`
}

// SessionsReport contains all session summaries.
type SessionsReport struct {
	Sessions   []SessionInfo `json:"sessions"`
	Unassigned int           `json:"unassigned_events"`
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions [files...]",
	Short: "Break usage down per session",
	Long: `Groups tool and subagent invocations by the session that recorded them.

Transcripts are selected the same way as the root command. Sessions are
listed in the order they first appear.

Examples:
  cctoolstats sessions                 # Sessions of the current project
  cctoolstats sessions --all -f json   # All sessions as JSON`,
	Args: cobra.ArbitraryArgs,
	RunE: runSessions,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
}

func runSessions(cmd *cobra.Command, args []string) error {
	s, err := resolveSettings(cmd, args)
	if err != nil {
		return err
	}
	if s.format != "table" && s.format != "json" {
		return fmt.Errorf("sessions supports table and json formats, not %q", s.format)
	}
	logger := s.newLogger(cmd)

	files, err := collectTranscripts(cmd.ErrOrStderr(), s)
	if err != nil {
		return err
	}
	a, err := analyze(cmd.Context(), s, files, logger)
	if err != nil {
		return err
	}

	limit := s.top
	if limit == 0 {
		limit = 3
	}
	report := collectSessions(a.scan, limit)

	out := cmd.OutOrStdout()
	if s.format == "json" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	printSessionsReport(out, report)
	return nil
}

// collectSessions folds each session's events separately. TopTools keeps
// the limit most used tools.
func collectSessions(scan *logs.ScanResult, limit int) *SessionsReport {
	report := &SessionsReport{Sessions: []SessionInfo{}}
	grouped := stats.GroupBySession(scan.Events)

	for _, e := range scan.Events {
		if e.SessionID == "" {
			report.Unassigned++
		}
	}

	for _, id := range scan.Sessions() {
		events := grouped[id]
		tools := stats.Fold(logs.KindTool, events)
		agents := stats.Fold(logs.KindSubagent, events)

		info := SessionInfo{
			ID:        id,
			Tools:     tools.TotalInvocations,
			Subagents: agents.TotalInvocations,
			TopTools:  stats.TopN(tools, limit),
			Agents:    stats.Sorted(agents),
		}
		info.FirstSeen, info.LastSeen = timeBounds(events)
		report.Sessions = append(report.Sessions, info)
	}
	return report
}

// timeBounds returns the earliest and latest timestamps of events.
func timeBounds(events []logs.Event) (string, string) {
	var stamped []logs.Event
	for _, e := range events {
		if !e.Time.IsZero() {
			stamped = append(stamped, e)
		}
	}
	if len(stamped) == 0 {
		return "", ""
	}
	sort.SliceStable(stamped, func(i, j int) bool {
		return stamped[i].Time.Before(stamped[j].Time)
	})
	return stamped[0].Timestamp, stamped[len(stamped)-1].Timestamp
}

// printSessionsReport prints the sessions report in a human-readable table format.
func printSessionsReport(out io.Writer, report *SessionsReport) {
	if len(report.Sessions) == 0 {
		fmt.Fprintln(out, "No sessions found.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "SESSION\tFIRST SEEN\tTOOLS\tSUBAGENTS\tTOP TOOLS")
	fmt.Fprintln(w, "-------\t----------\t-----\t---------\t---------")

	for _, session := range report.Sessions {
		top := make([]string, 0, len(session.TopTools))
		for _, r := range session.TopTools {
			top = append(top, fmt.Sprintf("%s(%d)", r.Name, r.Count))
		}
		firstSeen := session.FirstSeen
		if firstSeen == "" {
			firstSeen = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
			session.ID,
			firstSeen,
			session.Tools,
			session.Subagents,
			strings.Join(top, ", "),
		)
	}

	fmt.Fprintf(w, "\nTotal sessions: %d\n", len(report.Sessions))
	if report.Unassigned > 0 {
		fmt.Fprintf(w, "Invocations without a session: %d\n", report.Unassigned)
	}
}

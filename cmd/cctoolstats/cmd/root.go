// Package cmd implements the CLI commands for cctoolstats.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "cctoolstats [files...]",
	Short: "Analyze Claude Code tool usage statistics",
	Long: `Counts tool and subagent invocations recorded in Claude Code transcripts.

With no files, transcripts for the current project are read from
~/.config/claude/projects and ~/.claude/projects (or CLAUDE_CONFIG_DIR).

Project Selection:
  --current              Analyze current project only [default]
  --all                  Analyze all projects
  --project <path>       Analyze specific project by path

Examples:
  cctoolstats                                     # Analyze current project
  cctoolstats --all                               # Analyze all projects
  cctoolstats --project /path/to/project          # Analyze specific project
  cctoolstats file1.jsonl file2.jsonl             # Analyze specific files
  cctoolstats --all --format json                 # All projects as JSON
  cctoolstats --output results.csv --format csv   # Save as CSV file
  cctoolstats --all -f sqlite -o usage.db         # Export to SQLite
  cctoolstats --since 2025-01-01 --top 10         # Top 10 since a date`,
	Version:       Version,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runAnalyze,
}

func init() {
	registerFlags(rootCmd)
}

// Execute runs the root command with a context canceled on SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		rootCmd.PrintErrln("Error:", err)
	}
	return err
}

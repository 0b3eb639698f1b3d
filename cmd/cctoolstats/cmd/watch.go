package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/cctoolstats/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch [files...]",
	Short: "Re-render statistics whenever transcripts change",
	Long: `Runs the analysis, then watches the transcript directories and runs it
again each time a transcript is created, appended to or removed.

Writes are debounced per file (watch.debounce in the config file).
Press Ctrl-C to stop.`,
	Args: cobra.ArbitraryArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// clearScreen homes the cursor and clears the terminal.
const clearScreen = "\x1b[H\x1b[2J"

func clearTerminal(out io.Writer) error {
	if _, err := io.WriteString(out, clearScreen); err != nil {
		return fmt.Errorf("clear screen: %w", err)
	}
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	s, err := resolveSettings(cmd, args)
	if err != nil {
		return err
	}
	if s.format == "sqlite" {
		return fmt.Errorf("watch does not support the sqlite format")
	}
	logger := s.newLogger(cmd)
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	roots := watchRoots(s)
	w, err := watcher.NewWithDebounceDelay(s.watchDebounce, roots...)
	if err != nil {
		return fmt.Errorf("watch %v: %w", roots, err)
	}
	defer w.Close()

	redraw := s.output == "" && s.format == "table" && s.renderOptions().Color
	render := func() error {
		files, err := collectTranscripts(errOut, s)
		if err != nil {
			return err
		}
		a, err := analyze(cmd.Context(), s, files, logger)
		if err != nil {
			return err
		}
		if redraw {
			if err := clearTerminal(out); err != nil {
				return err
			}
		}
		return writeAnalysis(cmd.Context(), out, s, a)
	}

	return watchLoop(cmd.Context(), w, render, logger)
}

// eventSource is the part of the watcher the loop needs.
type eventSource interface {
	Events() <-chan watcher.Event
	Errors() <-chan error
}

// watchLoop renders once, then again after each batch of events, until ctx
// ends or the source closes.
func watchLoop(ctx context.Context, src eventSource, render func() error, logger *slog.Logger) error {
	if err := render(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-src.Events():
			if !ok {
				return nil
			}
			logger.Debug("transcript changed", "path", evt.Path, "type", evt.Type.String())
			drain(src.Events())
			if err := render(); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		case err, ok := <-src.Errors():
			if !ok {
				return nil
			}
			logger.Warn("watch error", "error", err)
		}
	}
}

// drain discards events already queued so a burst causes one render.
func drain(ch <-chan watcher.Event) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

// watchRoots picks the directories to watch for s.
func watchRoots(s *settings) []string {
	if len(s.files) > 0 {
		seen := make(map[string]bool)
		var dirs []string
		for _, f := range s.files {
			dir := filepath.Dir(f)
			if !seen[dir] {
				seen[dir] = true
				dirs = append(dirs, dir)
			}
		}
		return dirs
	}

	switch s.selection {
	case selectAll:
		return finder.RootDirs()
	case selectProject:
		return finder.ProjectDirs(s.project)
	default:
		cwd, err := os.Getwd()
		if err != nil {
			return nil
		}
		return finder.ProjectDirs(cwd)
	}
}

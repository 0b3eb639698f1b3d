package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/cctoolstats/internal/config"
	"github.com/Dicklesworthstone/cctoolstats/internal/logging"
	"github.com/Dicklesworthstone/cctoolstats/internal/logs"
	"github.com/Dicklesworthstone/cctoolstats/internal/report"
	"github.com/Dicklesworthstone/cctoolstats/internal/stats"
)

// cliFlags holds raw flag values; settings are derived from them plus config.
type cliFlags struct {
	configPath        string
	format            string
	output            string
	verbose           bool
	color             bool
	noColor           bool
	thousandSeparator bool
	current           bool
	all               bool
	project           string
	since             string
	until             string
	top               int
	categories        bool
	durations         bool
	maxLineSize       int
	concurrency       int
}

var flags cliFlags

func registerFlags(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/cctoolstats/config.yaml)")
	pf.StringVarP(&flags.format, "format", "f", config.DefaultFormat, "output format ("+strings.Join(config.Formats, ", ")+")")
	pf.StringVarP(&flags.output, "output", "o", "", "output to file instead of stdout")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "enable verbose output")
	pf.BoolVar(&flags.color, "color", false, "force colored output")
	pf.BoolVar(&flags.noColor, "no-color", false, "disable colored output")
	pf.BoolVar(&flags.thousandSeparator, "thousand-separator", false, "format numbers with thousand separators")
	pf.BoolVar(&flags.current, "current", false, "analyze current project only (default)")
	pf.BoolVar(&flags.all, "all", false, "analyze all projects")
	pf.StringVar(&flags.project, "project", "", "analyze specific project by path")
	pf.StringVar(&flags.since, "since", "", "only count invocations at or after this time (RFC 3339 or YYYY-MM-DD)")
	pf.StringVar(&flags.until, "until", "", "only count invocations at or before this time")
	pf.IntVar(&flags.top, "top", 0, "show only the N most used names per kind")
	pf.BoolVar(&flags.categories, "categories", false, "group tools by category")
	pf.BoolVar(&flags.durations, "durations", false, "summarize recorded invocation durations")
	pf.IntVar(&flags.maxLineSize, "max-line-size", 0, "maximum transcript line size in bytes")
	pf.IntVar(&flags.concurrency, "concurrency", 0, "number of transcripts read in parallel")
}

// selection is how transcripts are chosen when no files are given.
type selection int

const (
	selectCurrent selection = iota
	selectProject
	selectAll
)

// settings is the effective configuration for one command run.
type settings struct {
	format            string
	output            string
	verbose           bool
	color             string
	thousandSeparator bool

	files     []string
	selection selection
	project   string

	since, until time.Time
	top          int
	categories   bool
	durations    bool

	maxLineSize     int
	concurrency     int
	includePatterns []string
	excludePatterns []string
	watchDebounce   time.Duration
}

// resolveSettings loads config and applies every flag the user set.
func resolveSettings(cmd *cobra.Command, args []string) (*settings, error) {
	var (
		cfg *config.Config
		err error
	)
	if flags.configPath != "" {
		cfg, err = config.LoadFrom(flags.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	s := &settings{
		format:            cfg.Format,
		verbose:           cfg.Verbose,
		color:             cfg.Color,
		thousandSeparator: cfg.ThousandSeparator,
		files:             args,
		maxLineSize:       cfg.MaxLineSize,
		concurrency:       cfg.Concurrency,
		includePatterns:   cfg.IncludePatterns,
		excludePatterns:   cfg.ExcludePatterns,
		watchDebounce:     cfg.Watch.Debounce,
		output:            flags.output,
		top:               flags.top,
		categories:        flags.categories,
		durations:         flags.durations,
	}

	changed := cmd.Flags().Changed
	if changed("format") {
		s.format = strings.ToLower(strings.TrimSpace(flags.format))
	}
	if changed("verbose") {
		s.verbose = flags.verbose
	}
	if changed("thousand-separator") {
		s.thousandSeparator = flags.thousandSeparator
	}
	switch {
	case changed("no-color") && flags.noColor:
		s.color = config.ColorNever
	case changed("color") && flags.color:
		s.color = config.ColorAlways
	}
	if changed("max-line-size") && flags.maxLineSize > 0 {
		s.maxLineSize = flags.maxLineSize
	}
	if changed("concurrency") && flags.concurrency > 0 {
		s.concurrency = flags.concurrency
	}

	if err := config.ValidateFormat(s.format); err != nil {
		return nil, err
	}
	if s.format == "sqlite" && s.output == "" {
		return nil, fmt.Errorf("--output is required for sqlite format")
	}
	if s.top < 0 {
		return nil, fmt.Errorf("--top must not be negative")
	}

	// --all wins over --project, which wins over --current.
	switch {
	case flags.all:
		s.selection = selectAll
	case flags.project != "":
		s.selection = selectProject
		s.project = flags.project
	default:
		s.selection = selectCurrent
	}

	if flags.since != "" {
		if s.since, err = stats.ParseInstant(flags.since); err != nil {
			return nil, fmt.Errorf("--since: %w", err)
		}
	}
	if flags.until != "" {
		if s.until, err = stats.ParseInstant(flags.until); err != nil {
			return nil, fmt.Errorf("--until: %w", err)
		}
		if len(flags.until) == len("2006-01-02") {
			// A bare date includes the whole day.
			s.until = s.until.Add(24*time.Hour - time.Nanosecond)
		}
	}
	if !s.since.IsZero() && !s.until.IsZero() && s.until.Before(s.since) {
		return nil, fmt.Errorf("--until is before --since")
	}

	return s, nil
}

// machineOutput reports whether stdout carries JSON or CSV.
func (s *settings) machineOutput() bool {
	return s.output == "" && (s.format == "json" || s.format == "csv")
}

// logLevelEnv overrides the level chosen by --verbose.
const logLevelEnv = "CCTOOLSTATS_LOG_LEVEL"

// newLogger builds the diagnostics logger for s.
func (s *settings) newLogger(cmd *cobra.Command) *slog.Logger {
	level := logging.Level(s.verbose)
	if env := os.Getenv(logLevelEnv); env != "" {
		level = logging.ParseLevel(env)
	}
	return logging.New(cmd.ErrOrStderr(), s.machineOutput(), level)
}

// renderOptions resolves colors against the real stdout when writing there.
func (s *settings) renderOptions() report.Options {
	color := false
	if s.output == "" {
		color = report.ColorEnabled(s.color, os.Stdout)
	} else if s.color == config.ColorAlways {
		color = true
	}
	return report.Options{Color: color, ThousandSeparator: s.thousandSeparator}
}

// scanOptions maps s onto scanner options.
func (s *settings) scanOptions(logger *slog.Logger) logs.ScanOptions {
	return logs.ScanOptions{
		MaxLineSize: s.maxLineSize,
		Concurrency: s.concurrency,
		Since:       s.since,
		Until:       s.until,
		Logger:      logger,
	}
}

package logs

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Finder locates transcript files under the Claude projects directories.
type Finder struct {
	roots []string
}

// NewFinder creates a finder over the default project roots.
// CLAUDE_CONFIG_DIR (comma-separated) replaces the defaults when set.
func NewFinder() *Finder {
	homeDir, _ := os.UserHomeDir()
	return &Finder{roots: Roots(homeDir, os.Getenv("CLAUDE_CONFIG_DIR"))}
}

// NewFinderWithRoots creates a finder over explicit project roots.
// Useful for testing.
func NewFinderWithRoots(roots ...string) *Finder {
	return &Finder{roots: roots}
}

// Roots returns the project directories to search. The newer XDG location
// comes first, then the legacy ~/.claude location.
func Roots(homeDir, configDirs string) []string {
	if strings.TrimSpace(configDirs) != "" {
		var roots []string
		for _, dir := range strings.Split(configDirs, ",") {
			dir = strings.TrimSpace(dir)
			if dir == "" {
				continue
			}
			roots = append(roots, filepath.Join(dir, "projects"))
		}
		return roots
	}
	return []string{
		filepath.Join(homeDir, ".config", "claude", "projects"),
		filepath.Join(homeDir, ".claude", "projects"),
	}
}

// RootDirs returns the directories this finder searches.
func (f *Finder) RootDirs() []string {
	return append([]string(nil), f.roots...)
}

// All returns every transcript under every root.
func (f *Finder) All() []string {
	var files []string
	for _, root := range f.roots {
		files = append(files, FindTranscripts(root)...)
	}
	return dedupe(files)
}

// Project returns the transcripts recorded for the project at projectPath.
func (f *Finder) Project(projectPath string) []string {
	if abs, err := filepath.Abs(projectPath); err == nil {
		projectPath = abs
	}
	name := ProjectDirName(projectPath)

	var files []string
	for _, root := range f.roots {
		files = append(files, FindTranscripts(filepath.Join(root, name))...)
	}
	return dedupe(files)
}

// ProjectDirs returns the per-project directories that exist for projectPath.
func (f *Finder) ProjectDirs(projectPath string) []string {
	if abs, err := filepath.Abs(projectPath); err == nil {
		projectPath = abs
	}
	name := ProjectDirName(projectPath)

	var dirs []string
	for _, root := range f.roots {
		dir := filepath.Join(root, name)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

// ProjectDirName converts a project path to the directory name Claude Code
// uses under projects/: every run of separators becomes "-" and the result
// always starts with "-".
//
//	/home/user/my-app      -> -home-user-my-app
//	C:\Users\user\project  -> -C-Users-user-project
func ProjectDirName(projectPath string) string {
	parts := strings.FieldsFunc(projectPath, func(r rune) bool {
		return r == '/' || r == '\\' || r == ':'
	})
	return "-" + strings.Join(parts, "-")
}

// FindTranscripts returns all *.jsonl files below dir in lexical order.
// A missing or unreadable directory yields no files.
func FindTranscripts(dir string) []string {
	var files []string
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Best effort: directories may vanish or be unreadable mid-walk.
			if path == dir {
				return filepath.SkipAll
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if d.Type().IsRegular() && strings.HasSuffix(d.Name(), ".jsonl") {
			files = append(files, path)
		}
		return nil
	})
	return files
}

// FilterPaths keeps paths whose base name matches any include pattern (all
// paths when include is empty) and no exclude pattern.
func FilterPaths(paths, include, exclude []string) []string {
	var out []string
	for _, p := range paths {
		base := filepath.Base(p)
		if len(include) > 0 && !matchAny(include, base) {
			continue
		}
		if matchAny(exclude, base) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func matchAny(patterns []string, name string) bool {
	for _, pattern := range patterns {
		if ok, err := filepath.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

func dedupe(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := paths[:0]
	for _, p := range paths {
		clean := filepath.Clean(p)
		if seen[clean] {
			continue
		}
		seen[clean] = true
		out = append(out, clean)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

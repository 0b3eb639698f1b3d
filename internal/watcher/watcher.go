// Package watcher reports changes to transcript files under one or more roots.
package watcher

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// EventType represents the kind of transcript change detected.
type EventType int

const (
	EventTranscriptCreated EventType = iota
	EventTranscriptModified
	EventTranscriptRemoved
)

func (t EventType) String() string {
	switch t {
	case EventTranscriptCreated:
		return "transcript_created"
	case EventTranscriptModified:
		return "transcript_modified"
	case EventTranscriptRemoved:
		return "transcript_removed"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// Event is a change to one transcript file.
type Event struct {
	Type EventType
	Path string
}

// Watcher monitors transcript roots and emits debounced per-file events.
type Watcher struct {
	roots []string

	fsWatcher *fsnotify.Watcher
	events    chan Event
	errors    chan error
	done      chan struct{}
	closeOnce sync.Once

	debouncer *debouncer

	// emitMu guards sends against the channels being closed.
	emitMu sync.RWMutex
	closed bool

	mu      sync.Mutex
	watched map[string]struct{}

	wg sync.WaitGroup
}

const (
	defaultDebounceDelay = 100 * time.Millisecond
	defaultEventsBuffer  = 100
	defaultErrorsBuffer  = 10
	transcriptExt        = ".jsonl"
)

// ErrNoRoots is returned when none of the requested roots exist.
var ErrNoRoots = errors.New("no transcript directories to watch")

// New creates a watcher using the default debounce delay (100ms).
func New(roots ...string) (*Watcher, error) {
	return NewWithDebounceDelay(defaultDebounceDelay, roots...)
}

// NewWithDebounceDelay creates a watcher over every existing root. Missing
// roots are skipped.
func NewWithDebounceDelay(delay time.Duration, roots ...string) (*Watcher, error) {
	var absRoots []string
	for _, root := range roots {
		if root == "" {
			continue
		}
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("abs %s: %w", root, err)
		}
		if !isDirNoSymlink(abs) {
			continue
		}
		absRoots = append(absRoots, abs)
	}
	if len(absRoots) == 0 {
		return nil, ErrNoRoots
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		roots:     absRoots,
		fsWatcher: fsw,
		events:    make(chan Event, defaultEventsBuffer),
		errors:    make(chan error, defaultErrorsBuffer),
		done:      make(chan struct{}),
		debouncer: newDebouncer(delay),
		watched:   make(map[string]struct{}),
	}

	for _, root := range absRoots {
		if err := w.addRecursive(root); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run()
	}()

	return w, nil
}

// Roots returns the directories being watched recursively.
func (w *Watcher) Roots() []string {
	return append([]string(nil), w.roots...)
}

func (w *Watcher) run() {
	defer w.closeChannels()

	for {
		select {
		case <-w.done:
			return
		case evt, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}

			// New project directories appear while sessions start.
			if evt.Op&fsnotify.Create != 0 && isDirNoSymlink(evt.Name) {
				if err := w.addRecursive(evt.Name); err != nil {
					w.emitError(err)
				}
				w.emitExisting(evt.Name)
				continue
			}

			w.dispatch(evt)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.emitError(err)
		}
	}
}

// Events returns a channel of debounced transcript events.
func (w *Watcher) Events() <-chan Event { return w.events }

// Errors returns a channel of watcher errors.
func (w *Watcher) Errors() <-chan error { return w.errors }

// Close stops the watcher and releases OS resources. It is safe to call more
// than once.
func (w *Watcher) Close() error {
	if w == nil {
		return nil
	}

	w.closeOnce.Do(func() {
		close(w.done)
	})

	// Closing the underlying watcher unblocks the run loop.
	err := w.fsWatcher.Close()
	w.wg.Wait()
	return err
}

// closeChannels stops pending debounced events and closes both channels.
func (w *Watcher) closeChannels() {
	w.debouncer.Stop()

	w.emitMu.Lock()
	defer w.emitMu.Unlock()
	w.closed = true
	close(w.events)
	close(w.errors)
}

func (w *Watcher) emitEvent(e Event) {
	w.emitMu.RLock()
	defer w.emitMu.RUnlock()
	if w.closed {
		return
	}
	select {
	case w.events <- e:
	default:
		// Best-effort: drop if consumer is stalled.
	}
}

func (w *Watcher) emitError(err error) {
	w.emitMu.RLock()
	defer w.emitMu.RUnlock()
	if w.closed {
		return
	}
	select {
	case w.errors <- err:
	default:
	}
}

// dispatch emits a transcript event. Writes are held until the file has been
// quiet for the debounce delay, so a burst of appends yields one event that
// follows the last write.
func (w *Watcher) dispatch(e fsnotify.Event) {
	evt := w.translateEvent(e)
	if evt == nil {
		return
	}
	switch evt.Type {
	case EventTranscriptModified:
		ev := *evt
		w.debouncer.Trigger(ev.Path, func() { w.emitEvent(ev) })
	case EventTranscriptRemoved:
		w.debouncer.Cancel(evt.Path)
		w.emitEvent(*evt)
	default:
		w.emitEvent(*evt)
	}
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Paths may race with deletes.
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.Type()&os.ModeSymlink != 0 || !d.IsDir() {
			return nil
		}
		if d.Name() == ".git" {
			return filepath.SkipDir
		}
		return w.addDir(path)
	})
}

func (w *Watcher) addDir(path string) error {
	clean := filepath.Clean(path)

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.watched[clean]; ok {
		return nil
	}

	// Add while holding the lock so the watched set never runs ahead of fsnotify.
	if err := w.fsWatcher.Add(clean); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("watch %s: %w", clean, err)
	}

	w.watched[clean] = struct{}{}
	return nil
}

// emitExisting reports transcripts already present in a directory that was
// created after watching started; their writes may predate the watch.
func (w *Watcher) emitExisting(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !isTranscript(path) {
			return nil
		}
		w.emitEvent(Event{Type: EventTranscriptCreated, Path: filepath.Clean(path)})
		return nil
	})
}

func (w *Watcher) translateEvent(e fsnotify.Event) *Event {
	if w == nil || e.Name == "" {
		return nil
	}

	cleanPath := filepath.Clean(e.Name)
	if !w.withinRoots(cleanPath) || !isTranscript(cleanPath) {
		return nil
	}

	var etype EventType
	switch {
	case e.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		etype = EventTranscriptRemoved
	case e.Op&fsnotify.Create != 0:
		etype = EventTranscriptCreated
	case e.Op&fsnotify.Write != 0:
		etype = EventTranscriptModified
	default:
		return nil
	}

	return &Event{Type: etype, Path: cleanPath}
}

func (w *Watcher) withinRoots(path string) bool {
	for _, root := range w.roots {
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." || rel == "" {
			continue
		}
		if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return true
	}
	return false
}

func isTranscript(path string) bool {
	base := filepath.Base(path)
	return strings.HasSuffix(base, transcriptExt) && !strings.HasPrefix(base, ".")
}

func isDirNoSymlink(path string) bool {
	info, err := os.Lstat(path)
	if err != nil {
		return false
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return false
	}
	return info.IsDir()
}

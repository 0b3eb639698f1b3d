package watcher

import (
	"sync"
	"time"
)

// debouncer coalesces bursts per key. Each Trigger restarts the key's quiet
// period, and fire runs once the key has been quiet for delay.
type debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

func newDebouncer(delay time.Duration) *debouncer {
	if delay <= 0 {
		delay = defaultDebounceDelay
	}
	return &debouncer{
		delay:  delay,
		timers: make(map[string]*time.Timer),
	}
}

// Trigger schedules fire for key after the delay, replacing any pending call
// for the same key. A nil debouncer or an empty key fires immediately.
func (d *debouncer) Trigger(key string, fire func()) {
	if d == nil || key == "" {
		fire()
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if t, ok := d.timers[key]; ok && t.Stop() {
		t.Reset(d.delay)
		return
	}

	var t *time.Timer
	t = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if d.timers[key] == t {
			delete(d.timers, key)
		}
		stopped := d.stopped
		d.mu.Unlock()
		if !stopped {
			fire()
		}
	})
	d.timers[key] = t
}

// Cancel drops a pending call for key.
func (d *debouncer) Cancel(key string) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.timers[key]; ok {
		t.Stop()
		delete(d.timers, key)
	}
}

// Pending returns the number of keys waiting to fire.
func (d *debouncer) Pending() int {
	if d == nil {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

// Stop cancels every pending call. Later Triggers are ignored.
func (d *debouncer) Stop() {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for key, t := range d.timers {
		t.Stop()
		delete(d.timers, key)
	}
}

package watcher

import (
	"sort"
	"sync"
	"time"
)

// Debouncer collects paths and hands them to a callback once no new path has
// arrived for the configured delay.
type Debouncer struct {
	delay   time.Duration
	flush   func(paths []string)
	mu      sync.Mutex
	pending map[string]bool
	timer   *time.Timer
}

func NewDebouncer(delay time.Duration, flush func(paths []string)) *Debouncer {
	return &Debouncer{delay: delay, flush: flush, pending: make(map[string]bool)}
}

// Add queues path and restarts the delay.
func (d *Debouncer) Add(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending[path] = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fire)
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	toProcess := d.pending
	d.pending = make(map[string]bool)
	d.mu.Unlock()

	if len(toProcess) == 0 {
		return
	}
	paths := make([]string, 0, len(toProcess))
	for p := range toProcess {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	d.flush(paths)
}

// Stop cancels a pending flush.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}

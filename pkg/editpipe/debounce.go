package editpipe

import (
	"sort"
	"sync"
	"time"
)

// Debouncer runs at most one task per key once the key has been quiet for
// the configured delay. Triggering a key again cancels and reschedules its
// task, so only the latest task runs.
type Debouncer struct {
	mu      sync.Mutex
	clock   Clock
	delay   time.Duration
	gen     uint64
	pending map[string]*task
	stopped bool
}

type task struct {
	gen   uint64
	timer Timer
	fn    func()
}

// NewDebouncer creates a debouncer. A nil clock uses RealClock.
func NewDebouncer(delay time.Duration, clock Clock) *Debouncer {
	if clock == nil {
		clock = RealClock()
	}
	return &Debouncer{
		clock:   clock,
		delay:   delay,
		pending: make(map[string]*task),
	}
}

// Delay returns the quiet window.
func (d *Debouncer) Delay() time.Duration {
	return d.delay
}

// Trigger schedules fn for key, replacing any pending task of that key.
// It reports whether a pending task was replaced. After Stop it does nothing.
func (d *Debouncer) Trigger(key string, fn func()) (replaced bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return false
	}
	if prev, ok := d.pending[key]; ok {
		prev.timer.Stop()
		replaced = true
	}
	d.gen++
	t := &task{gen: d.gen, fn: fn}
	d.pending[key] = t
	t.timer = d.clock.AfterFunc(d.delay, func() { d.fire(key, t.gen) })
	return replaced
}

func (d *Debouncer) fire(key string, gen uint64) {
	d.mu.Lock()
	t, ok := d.pending[key]
	if !ok || t.gen != gen || d.stopped {
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	d.mu.Unlock()
	t.fn()
}

// Cancel drops the pending task of key, if any.
func (d *Debouncer) Cancel(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.pending[key]; ok {
		t.timer.Stop()
		delete(d.pending, key)
	}
}

// Flush runs every pending task now, in key order.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	keys := make([]string, 0, len(d.pending))
	for k := range d.pending {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fns := make([]func(), 0, len(keys))
	for _, k := range keys {
		t := d.pending[k]
		t.timer.Stop()
		fns = append(fns, t.fn)
		delete(d.pending, k)
	}
	d.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Pending returns the number of scheduled tasks.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Stop cancels all pending tasks. Later triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for k, t := range d.pending {
		t.timer.Stop()
		delete(d.pending, k)
	}
}

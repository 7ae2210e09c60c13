package htmlsync

import (
	"sync"
	"time"
)

// debouncer runs fn once the window has passed without a new trigger.
// Every trigger and cancel bumps a generation so that a timer which already
// fired but has not yet run its callback turns into a no-op.
type debouncer struct {
	window time.Duration
	fn     func(gen uint64)

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	pending bool
}

func newDebouncer(window time.Duration, fn func(gen uint64)) *debouncer {
	return &debouncer{window: window, fn: fn}
}

// trigger (re)starts the window.
func (d *debouncer) trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.pending = true
	d.timer = time.AfterFunc(d.window, func() { d.fn(gen) })
}

// cancel drops the pending run. It reports whether one was pending and is
// safe to call when nothing is scheduled.
func (d *debouncer) cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	was := d.pending
	d.pending = false
	return was
}

// claim marks the run for gen as started. It returns false when gen was
// superseded or cancelled in the meantime.
func (d *debouncer) claim(gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.gen || !d.pending {
		return false
	}
	d.pending = false
	d.timer = nil
	return true
}

func (d *debouncer) isPending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Package debounce coalesces bursts of calls into one trailing call.
package debounce

import (
	"sync"
	"time"
)

// Debouncer runs the most recently triggered function once no new trigger
// has arrived for the configured window.
type Debouncer struct {
	mu      sync.Mutex
	window  time.Duration
	timer   *time.Timer
	pending func()
	gen     uint64
	closed  bool
}

// New returns a Debouncer. A non-positive window runs triggers on the next
// timer tick.
func New(window time.Duration) *Debouncer {
	if window < 0 {
		window = 0
	}
	return &Debouncer{window: window}
}

// Trigger schedules fn, replacing any call still waiting.
func (d *Debouncer) Trigger(fn func()) {
	if fn == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.pending = fn
	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, func() { d.fire(gen) })
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.pending == nil {
		d.mu.Unlock()
		return
	}
	fn := d.pending
	d.pending = nil
	d.mu.Unlock()
	fn()
}

// Flush runs the waiting call synchronously. It reports whether there was
// one.
func (d *Debouncer) Flush() bool {
	fn := d.take()
	if fn == nil {
		return false
	}
	fn()
	return true
}

// Cancel drops the waiting call. It reports whether there was one.
func (d *Debouncer) Cancel() bool {
	return d.take() != nil
}

// Pending reports whether a call is waiting.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

// Close cancels the waiting call and ignores later triggers.
func (d *Debouncer) Close() {
	d.take()
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
}

func (d *Debouncer) take() func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn := d.pending
	d.pending = nil
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	return fn
}

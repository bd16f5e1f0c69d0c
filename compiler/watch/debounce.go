package watch

import (
	"sync"
	"time"
)

// DefaultWait collapses the save bursts of an editor into one dispatch.
const DefaultWait = 100 * time.Millisecond

// Debouncer delays work per key until no new trigger arrived for a wait
// period. A trigger during the wait restarts it and replaces the pending
// work; work that has started runs to completion.
type Debouncer[K comparable] struct {
	wait time.Duration

	mu      sync.Mutex
	pending map[K]*pending
	seq     uint64
	stopped bool
	running sync.WaitGroup
}

type pending struct {
	timer *time.Timer
	gen   uint64
}

// NewDebouncer returns a debouncer that waits for wait, or DefaultWait when
// wait is not positive.
func NewDebouncer[K comparable](wait time.Duration) *Debouncer[K] {
	if wait <= 0 {
		wait = DefaultWait
	}
	return &Debouncer[K]{wait: wait, pending: make(map[K]*pending)}
}

// Trigger schedules fn for key. It reports false once the debouncer is
// stopped.
func (d *Debouncer[K]) Trigger(key K, fn func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return false
	}
	if p, ok := d.pending[key]; ok {
		p.timer.Stop()
	}
	d.seq++
	gen := d.seq
	p := &pending{gen: gen}
	p.timer = time.AfterFunc(d.wait, func() { d.fire(key, gen, fn) })
	d.pending[key] = p
	return true
}

// fire runs fn unless a later trigger for key superseded it.
func (d *Debouncer[K]) fire(key K, gen uint64, fn func()) {
	d.mu.Lock()
	p, ok := d.pending[key]
	if !ok || p.gen != gen || d.stopped {
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	d.running.Add(1)
	d.mu.Unlock()

	defer d.running.Done()
	fn()
}

// Pending returns the number of keys waiting to fire.
func (d *Debouncer[K]) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Flush drops all pending work. Work already running is not affected.
func (d *Debouncer[K]) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, key)
	}
}

// Stop drops all pending work, rejects new triggers and waits for running
// work to return.
func (d *Debouncer[K]) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
	d.Flush()
	d.running.Wait()
}

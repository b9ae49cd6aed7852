package daemon

import (
	"sync"
	"time"
)

// Debouncer collapses bursts of events per key into one call. Each
// Trigger restarts the key's timer; when it fires, fn receives the op of
// the last event in the burst.
type Debouncer struct {
	delay time.Duration
	fn    func(key string, op EventOp)

	mu       sync.Mutex
	pending  map[string]*pendingEvent
	stopped  bool
	inflight sync.WaitGroup
}

type pendingEvent struct {
	timer *time.Timer
	op    EventOp
}

// NewDebouncer returns a debouncer that calls fn after delay of quiet.
func NewDebouncer(delay time.Duration, fn func(key string, op EventOp)) *Debouncer {
	return &Debouncer{
		delay:   delay,
		fn:      fn,
		pending: make(map[string]*pendingEvent),
	}
}

// Trigger records an event for key.
func (d *Debouncer) Trigger(key string, op EventOp) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if prev, ok := d.pending[key]; ok {
		prev.timer.Stop()
	}

	p := &pendingEvent{op: op}
	p.timer = time.AfterFunc(d.delay, func() { d.fire(key, p) })
	d.pending[key] = p
}

func (d *Debouncer) fire(key string, p *pendingEvent) {
	d.mu.Lock()
	// A newer Trigger replaced p after its timer had already fired.
	if d.stopped || d.pending[key] != p {
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	d.inflight.Add(1)
	d.mu.Unlock()

	defer d.inflight.Done()
	d.fn(key, p.op)
}

// Pending returns the number of keys waiting to fire.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Stop drops pending events and waits for running calls to return.
// Triggers after Stop are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	for key, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, key)
	}
	d.mu.Unlock()

	d.inflight.Wait()
}

// Package debounce provides a trailing-edge debouncer bounded by a maximum wait.
//
// Call records the latest value. The value is emitted once Wait has passed without another
// Call, or once MaxWait has passed since the first pending Call, whichever comes first.
// Flush emits a pending value immediately and Cancel drops it.
// Emissions never overlap and happen in the order the values were taken.
package debounce

import (
	"sync"
	"time"
)

// Debouncer coalesces calls and emits the most recent value
type Debouncer[T any] struct {
	// emitMu is held from taking a value until fn returns. It is acquired before mu.
	emitMu  sync.Mutex
	mu      sync.Mutex
	fn      func(T)
	wait    time.Duration
	maxWait time.Duration
	clock   Clock

	pending  bool
	value    T
	trailing Timer
	deadline Timer
	// seq invalidates timer callbacks that lost a race with Call, Flush or Cancel.
	seq   uint64
	epoch uint64
}

// Option configures a Debouncer
type Option func(*options)

type options struct {
	clock Clock
}

// WithClock replaces the real clock
func WithClock(c Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// New creates a Debouncer calling fn. maxWait <= 0 disables the bound.
func New[T any](wait, maxWait time.Duration, fn func(T), opts ...Option) *Debouncer[T] {
	o := options{clock: RealClock()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Debouncer[T]{
		fn:      fn,
		wait:    wait,
		maxWait: maxWait,
		clock:   o.clock,
	}
}

// Call records v as the value to emit
func (d *Debouncer[T]) Call(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.value = v
	if d.trailing != nil {
		d.trailing.Stop()
	}
	d.seq++
	seq := d.seq
	d.trailing = d.clock.AfterFunc(d.wait, func() { d.fire(seq, 0, false) })

	if !d.pending && d.maxWait > 0 {
		epoch := d.epoch
		d.deadline = d.clock.AfterFunc(d.maxWait, func() { d.fire(0, epoch, true) })
	}
	d.pending = true
}

// Flush emits the pending value now, if any. It reports whether a value was emitted.
func (d *Debouncer[T]) Flush() bool {
	d.emitMu.Lock()
	defer d.emitMu.Unlock()

	d.mu.Lock()
	v, ok := d.take()
	d.mu.Unlock()

	if ok {
		d.fn(v)
	}
	return ok
}

// Cancel drops the pending value
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.take()
}

// Pending reports whether a value is waiting to be emitted
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

func (d *Debouncer[T]) fire(seq, epoch uint64, isDeadline bool) {
	d.emitMu.Lock()
	defer d.emitMu.Unlock()

	d.mu.Lock()
	stale := !d.pending || (isDeadline && epoch != d.epoch) || (!isDeadline && seq != d.seq)
	if stale {
		d.mu.Unlock()
		return
	}
	v, _ := d.take()
	d.mu.Unlock()

	d.fn(v)
}

// take must be called with mu held
func (d *Debouncer[T]) take() (T, bool) {
	var zero T
	if !d.pending {
		return zero, false
	}
	v := d.value
	d.value = zero
	d.pending = false
	d.seq++
	d.epoch++
	if d.trailing != nil {
		d.trailing.Stop()
		d.trailing = nil
	}
	if d.deadline != nil {
		d.deadline.Stop()
		d.deadline = nil
	}
	return v, true
}

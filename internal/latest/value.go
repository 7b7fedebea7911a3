// Package latest holds a value produced by asynchronous work where only the
// most recently started work may publish its result.
package latest

import (
	"context"
	"sync"
)

// Snapshot is the published state of a Value.
type Snapshot[T any] struct {
	Value      T
	Pending    bool
	Err        error
	Generation uint64
}

// DiscardFunc is told about results dropped because a newer generation
// started before they settled.
type DiscardFunc func(generation uint64)

// Value is a single-slot container. Every Start or Set takes a new
// generation; a producer whose generation is no longer current never writes.
type Value[T any] struct {
	mu        sync.Mutex
	snap      Snapshot[T]
	cancel    context.CancelFunc
	done      chan struct{}
	onDiscard DiscardFunc
}

// New returns a settled Value holding initial.
func New[T any](initial T) *Value[T] {
	done := make(chan struct{})
	close(done)
	return &Value[T]{
		snap: Snapshot[T]{Value: initial},
		done: done,
	}
}

// NewPending returns a Value holding initial that is pending until the first
// Start settles, or Set or Fail is called. Wait blocks until then.
func NewPending[T any](initial T) *Value[T] {
	return &Value[T]{
		snap: Snapshot[T]{Value: initial, Pending: true},
		done: make(chan struct{}),
	}
}

// OnDiscard registers fn for stale results. Not safe to call concurrently
// with Start.
func (v *Value[T]) OnDiscard(fn DiscardFunc) {
	v.onDiscard = fn
}

// Set publishes value immediately and supersedes any in-flight work.
func (v *Value[T]) Set(value T) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()

	gen := v.advanceLocked()
	v.snap = Snapshot[T]{Value: value, Generation: gen}
	close(v.done)
	return gen
}

// Fail settles the current value with err and supersedes any in-flight work.
// The last published value is kept.
func (v *Value[T]) Fail(err error) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()

	value := v.snap.Value
	gen := v.advanceLocked()
	v.snap = Snapshot[T]{Value: value, Err: err, Generation: gen}
	close(v.done)
	return gen
}

// Start publishes pending as the current value and runs produce in a new
// goroutine. The context handed to produce is cancelled when newer work
// starts or Close is called.
func (v *Value[T]) Start(ctx context.Context, pending T, produce func(ctx context.Context) (T, error)) uint64 {
	v.mu.Lock()
	gen := v.advanceLocked()
	v.snap = Snapshot[T]{Value: pending, Pending: true, Generation: gen}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	v.cancel = cancel
	v.mu.Unlock()

	go func() {
		defer cancel()
		value, err := produce(runCtx)
		v.settle(gen, value, err)
	}()
	return gen
}

// Get returns the current snapshot.
func (v *Value[T]) Get() Snapshot[T] {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snap
}

// Wait blocks until the current generation is settled. If newer work starts
// while waiting, Wait follows it.
func (v *Value[T]) Wait(ctx context.Context) (Snapshot[T], error) {
	for {
		v.mu.Lock()
		snap, done := v.snap, v.done
		v.mu.Unlock()

		if !snap.Pending {
			return snap, nil
		}
		select {
		case <-done:
		case <-ctx.Done():
			return v.Get(), ctx.Err()
		}
	}
}

// Close cancels in-flight work. The last published snapshot stays readable.
func (v *Value[T]) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
}

func (v *Value[T]) settle(gen uint64, value T, err error) {
	v.mu.Lock()
	if gen != v.snap.Generation {
		onDiscard := v.onDiscard
		v.mu.Unlock()
		if onDiscard != nil {
			onDiscard(gen)
		}
		return
	}
	v.snap = Snapshot[T]{Value: value, Err: err, Generation: gen}
	v.cancel = nil
	close(v.done)
	v.mu.Unlock()
}

// advanceLocked cancels the previous generation and wakes its waiters so
// they can follow the new one.
func (v *Value[T]) advanceLocked() uint64 {
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	select {
	case <-v.done:
	default:
		close(v.done)
	}
	v.done = make(chan struct{})
	return v.snap.Generation + 1
}

package featureswitch

import (
	"context"
	"sync"

	"github.com/smallbiznis/console/internal/latest"
)

// State is what a Slot exposes. Err carries the last producer failure,
// which never replaces Value with a partial result.
type State[T any] struct {
	Value   T
	Pending bool
	Err     error
}

// Slot is the reactive form of a Switch: a single value that starts at the
// community or default value and transitions once per Update or Reconfigure.
type Slot[T any] struct {
	value *latest.Value[T]

	mu        sync.Mutex
	sw        *Switch[T]
	community T
}

// NewSlot returns a slot already resolved for community.
func NewSlot[T any](ctx context.Context, sw *Switch[T], community T) *Slot[T] {
	s := &Slot[T]{
		sw:    sw,
		value: latest.New(sw.Initial(community)),
	}
	s.value.OnDiscard(func(uint64) {
		s.mu.Lock()
		opts := s.sw.opts
		s.mu.Unlock()
		if opts.recorder != nil {
			opts.recorder.RecordStaleDiscard(context.Background(), opts.name)
		}
	})
	s.Update(ctx, community)
	return s
}

// Update re-resolves for a new community value. An inactive switch settles
// synchronously; otherwise the in-flight resolution for older inputs is
// cancelled and its result discarded.
func (s *Slot[T]) Update(ctx context.Context, community T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.community = community
	s.resolveLocked(ctx)
}

// Reconfigure swaps the switch, for instance after a license change toggled
// the edition or the enabled flag, and re-resolves the last community value.
func (s *Slot[T]) Reconfigure(ctx context.Context, sw *Switch[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sw = sw
	s.resolveLocked(ctx)
}

func (s *Slot[T]) resolveLocked(ctx context.Context) {
	sw, community := s.sw, s.community
	if !sw.Active() {
		s.value.Set(community)
		return
	}
	s.value.Start(ctx, sw.Initial(community), func(ctx context.Context) (T, error) {
		return sw.Resolve(ctx, community)
	})
}

func (s *Slot[T]) Get() State[T] {
	return toState(s.value.Get())
}

// Wait blocks until the latest Update settled or ctx is done.
func (s *Slot[T]) Wait(ctx context.Context) (State[T], error) {
	snap, err := s.value.Wait(ctx)
	return toState(snap), err
}

func (s *Slot[T]) Close() {
	s.value.Close()
}

func toState[T any](snap latest.Snapshot[T]) State[T] {
	return State[T]{Value: snap.Value, Pending: snap.Pending, Err: snap.Err}
}

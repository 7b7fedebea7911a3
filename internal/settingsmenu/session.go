package settingsmenu

import (
	"context"

	"github.com/smallbiznis/console/internal/appinfo"
	"github.com/smallbiznis/console/internal/latest"
)

// Session is one user's menu. It is Loading while a batch of permission
// checks runs and Ready once every check in the batch settled. A batch that
// settles after a newer Refresh is discarded.
type Session struct {
	resolver *Resolver
	updates  appinfo.UpdateChecker
	value    *latest.Value[Menu]
}

type SessionOption func(*Session)

// WithUpdates resolves the update notification inside each batch.
func WithUpdates(updates appinfo.UpdateChecker) SessionOption {
	return func(s *Session) {
		s.updates = updates
	}
}

// NewSession starts Loading. Wait blocks until the first batch settles or
// Fail is called.
func NewSession(resolver *Resolver, opts ...SessionOption) *Session {
	s := &Session{
		resolver: resolver,
		value:    latest.NewPending(Menu{IsLoading: true, Sections: []Section{}}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Refresh re-enters Loading for in. A contract violation in the inputs is
// returned before any permission check starts and leaves the session as it
// was.
func (s *Session) Refresh(ctx context.Context, in Input) error {
	sections, err := s.resolver.Build(in)
	if err != nil {
		return err
	}

	pending := s.value.Get().Value
	pending.IsLoading = true
	s.value.Start(ctx, pending, func(ctx context.Context) (Menu, error) {
		if s.updates != nil {
			in.ShouldUpdate = s.updates.ShouldUpdate(ctx)
		}
		return Menu{IsLoading: false, Sections: s.resolver.Check(ctx, sections, in)}, nil
	})
	return nil
}

// Fail settles the session with err. Callers blocked in Wait receive err.
func (s *Session) Fail(err error) {
	s.value.Fail(err)
}

// State returns the last complete menu, flagged as loading while a newer
// batch runs.
func (s *Session) State() Menu {
	return s.value.Get().Value
}

// Wait blocks until the session is Ready or ctx is done.
func (s *Session) Wait(ctx context.Context) (Menu, error) {
	snap, err := s.value.Wait(ctx)
	if err != nil {
		return snap.Value, err
	}
	return snap.Value, snap.Err
}

// OnDiscard registers fn for batches dropped as stale.
func (s *Session) OnDiscard(fn func()) {
	s.value.OnDiscard(func(uint64) { fn() })
}

func (s *Session) Close() {
	s.value.Close()
}

// Package featureswitch picks between a community value and an
// asynchronously produced enterprise value without every caller repeating the
// edition check.
package featureswitch

import (
	"context"

	"go.uber.org/zap"
)

// Runtime reports the process edition. edition.Edition satisfies it.
type Runtime interface {
	IsEnterprise() bool
}

// Producer loads the enterprise value.
type Producer[T any] func(ctx context.Context) (T, error)

// Combiner merges the community and the enterprise value.
type Combiner[T any] func(community, enterprise T) T

// Recorder receives load outcomes. *metrics.Metrics satisfies it.
type Recorder interface {
	RecordEnterpriseLoad(ctx context.Context, feature, outcome string)
	RecordStaleDiscard(ctx context.Context, feature string)
}

type options[T any] struct {
	name         string
	defaultValue T
	hasDefault   bool
	combine      Combiner[T]
	enabled      bool
	log          *zap.Logger
	recorder     Recorder
}

type Option[T any] func(*options[T])

// WithDefault sets the value exposed while the enterprise value loads.
// Without it the zero value is exposed.
func WithDefault[T any](value T) Option[T] {
	return func(o *options[T]) {
		o.defaultValue = value
		o.hasDefault = true
	}
}

// WithCombine sets the merge function. The default returns the enterprise
// value unchanged.
func WithCombine[T any](fn Combiner[T]) Option[T] {
	return func(o *options[T]) {
		if fn != nil {
			o.combine = fn
		}
	}
}

// WithEnabled gates the enterprise path. Enabled by default.
func WithEnabled[T any](enabled bool) Option[T] {
	return func(o *options[T]) {
		o.enabled = enabled
	}
}

// WithName labels logs and metrics.
func WithName[T any](name string) Option[T] {
	return func(o *options[T]) {
		o.name = name
	}
}

func WithLogger[T any](log *zap.Logger) Option[T] {
	return func(o *options[T]) {
		if log != nil {
			o.log = log
		}
	}
}

func WithRecorder[T any](recorder Recorder) Option[T] {
	return func(o *options[T]) {
		o.recorder = recorder
	}
}

// Switch resolves a value that differs between editions.
type Switch[T any] struct {
	runtime Runtime
	produce Producer[T]
	opts    options[T]
}

func New[T any](runtime Runtime, produce Producer[T], opts ...Option[T]) *Switch[T] {
	o := options[T]{
		name:    "feature",
		combine: func(_, enterprise T) T { return enterprise },
		enabled: true,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Switch[T]{
		runtime: runtime,
		produce: produce,
		opts:    o,
	}
}

// Active reports whether Resolve will invoke the enterprise producer.
func (s *Switch[T]) Active() bool {
	return s.opts.enabled && s.produce != nil && s.runtime != nil && s.runtime.IsEnterprise()
}

// Initial is the value visible before resolution completes: community when
// inactive, otherwise the configured default.
func (s *Switch[T]) Initial(community T) T {
	if !s.Active() {
		return community
	}
	if s.opts.hasDefault {
		return s.opts.defaultValue
	}
	var zero T
	return zero
}

// Resolve returns community when inactive, otherwise combine(community, E).
// A producer failure is not fatal: community is returned alongside the error.
func (s *Switch[T]) Resolve(ctx context.Context, community T) (T, error) {
	if !s.Active() {
		return community, nil
	}

	enterprise, err := s.produce(ctx)
	if err != nil {
		s.record(ctx, "failed")
		s.opts.log.Warn("enterprise value unavailable, using community value",
			zap.String("feature", s.opts.name),
			zap.Error(err),
		)
		return community, err
	}
	s.record(ctx, "ok")
	return s.opts.combine(community, enterprise), nil
}

func (s *Switch[T]) record(ctx context.Context, outcome string) {
	if s.opts.recorder != nil {
		s.opts.recorder.RecordEnterpriseLoad(ctx, s.opts.name, outcome)
	}
}

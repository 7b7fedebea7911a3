package featureswitch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runtime bool

func (r runtime) IsEnterprise() bool { return bool(r) }

type fakeRecorder struct {
	mu       sync.Mutex
	loads    []string
	discards int
}

func (f *fakeRecorder) RecordEnterpriseLoad(_ context.Context, feature, outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads = append(f.loads, feature+":"+outcome)
}

func (f *fakeRecorder) RecordStaleDiscard(context.Context, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discards++
}

func countingProducer(calls *atomic.Int32, value []string, err error) Producer[[]string] {
	return func(context.Context) ([]string, error) {
		calls.Add(1)
		return value, err
	}
}

func concat(c, e []string) []string {
	out := append([]string{}, c...)
	return append(out, e...)
}

func TestCommunityEditionReturnsCommunityValueWithoutLoading(t *testing.T) {
	for _, community := range [][]string{nil, {}, {"CE"}, {"a", "b"}} {
		var calls atomic.Int32
		sw := New(runtime(false), countingProducer(&calls, []string{"EE"}, nil), WithCombine[[]string](concat))

		assert.Equal(t, community, sw.Initial(community))
		got, err := sw.Resolve(context.Background(), community)
		require.NoError(t, err)
		assert.Equal(t, community, got)

		slot := NewSlot(context.Background(), sw, community)
		state := slot.Get()
		assert.False(t, state.Pending)
		assert.Equal(t, community, state.Value)

		assert.Zero(t, calls.Load())
	}
}

func TestEnterpriseEditionCombinesValues(t *testing.T) {
	var calls atomic.Int32
	sw := New(runtime(true), countingProducer(&calls, []string{"EE"}, nil), WithCombine[[]string](concat))

	got, err := sw.Resolve(context.Background(), []string{"CE"})
	require.NoError(t, err)
	assert.Equal(t, []string{"CE", "EE"}, got)

	slot := NewSlot(context.Background(), sw, []string{"CE"})
	state, err := slot.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"CE", "EE"}, state.Value)
	assert.EqualValues(t, 2, calls.Load())
}

func TestDefaultCombineReturnsEnterpriseValue(t *testing.T) {
	var calls atomic.Int32
	sw := New(runtime(true), countingProducer(&calls, []string{"EE"}, nil))

	got, err := sw.Resolve(context.Background(), []string{"CE"})
	require.NoError(t, err)
	assert.Equal(t, []string{"EE"}, got)
}

func TestDisabledSwitchShortCircuits(t *testing.T) {
	var calls atomic.Int32
	sw := New(runtime(true), countingProducer(&calls, []string{"EE"}, nil), WithEnabled[[]string](false))

	assert.False(t, sw.Active())
	slot := NewSlot(context.Background(), sw, []string{"CE"})
	assert.Equal(t, State[[]string]{Value: []string{"CE"}}, slot.Get())

	slot.Update(context.Background(), []string{"CE2"})
	assert.Equal(t, []string{"CE2"}, slot.Get().Value)
	assert.Zero(t, calls.Load())
}

func TestPendingExposesDefault(t *testing.T) {
	release := make(chan struct{})
	sw := New[string](runtime(true), func(ctx context.Context) (string, error) {
		<-release
		return "ee", nil
	}, WithDefault("loading"))

	slot := NewSlot(context.Background(), sw, "ce")
	state := slot.Get()
	assert.True(t, state.Pending)
	assert.Equal(t, "loading", state.Value)

	close(release)
	state, err := slot.Wait(context.Background())
	require.NoError(t, err)
	assert.False(t, state.Pending)
	assert.Equal(t, "ee", state.Value)
}

func TestPendingWithoutDefaultExposesZeroValue(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	sw := New[*string](runtime(true), func(ctx context.Context) (*string, error) {
		<-release
		v := "ee"
		return &v, nil
	})
	slot := NewSlot(context.Background(), sw, nil)
	defer slot.Close()
	assert.Nil(t, slot.Get().Value)
	assert.True(t, slot.Get().Pending)
}

func TestProducerFailureFallsBackToCommunity(t *testing.T) {
	boom := errors.New("chunk load failed")
	rec := &fakeRecorder{}
	var calls atomic.Int32
	sw := New(runtime(true), countingProducer(&calls, nil, boom),
		WithCombine[[]string](concat),
		WithName[[]string]("settings_links"),
		WithRecorder[[]string](rec),
	)

	got, err := sw.Resolve(context.Background(), []string{"CE"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"CE"}, got)

	slot := NewSlot(context.Background(), sw, []string{"CE"})
	state, err := slot.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"CE"}, state.Value)
	assert.ErrorIs(t, state.Err, boom)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []string{"settings_links:failed", "settings_links:failed"}, rec.loads)
}

func TestSlowStaleResolutionDoesNotOverwriteNewerInputs(t *testing.T) {
	rec := &fakeRecorder{}
	slowStarted := make(chan struct{})
	slowRelease := make(chan struct{})
	var call atomic.Int32

	sw := New[string](runtime(true), func(ctx context.Context) (string, error) {
		if call.Add(1) == 1 {
			close(slowStarted)
			<-slowRelease
			return "stale", nil
		}
		return "fresh", nil
	}, WithCombine[string](func(c, e string) string { return c + "+" + e }), WithRecorder[string](rec))

	slot := NewSlot(context.Background(), sw, "v1")
	<-slowStarted
	slot.Update(context.Background(), "v2")

	state, err := slot.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v2+fresh", state.Value)

	close(slowRelease)
	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return rec.discards == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "v2+fresh", slot.Get().Value)
}

func TestReconfigureReresolvesLastCommunityValue(t *testing.T) {
	var calls atomic.Int32
	produce := countingProducer(&calls, []string{"EE"}, nil)

	slot := NewSlot(context.Background(), New(runtime(false), produce, WithCombine[[]string](concat)), []string{"CE"})
	assert.Equal(t, []string{"CE"}, slot.Get().Value)

	slot.Reconfigure(context.Background(), New(runtime(true), produce, WithCombine[[]string](concat)))
	state, err := slot.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"CE", "EE"}, state.Value)
	assert.EqualValues(t, 1, calls.Load())

	slot.Reconfigure(context.Background(), New(runtime(true), produce, WithEnabled[[]string](false)))
	assert.Equal(t, State[[]string]{Value: []string{"CE"}}, slot.Get())
	assert.EqualValues(t, 1, calls.Load())
}

package latest

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartPublishesPendingThenResult(t *testing.T) {
	v := New("initial")
	release := make(chan struct{})

	gen := v.Start(context.Background(), "pending", func(ctx context.Context) (string, error) {
		<-release
		return "done", nil
	})

	snap := v.Get()
	assert.True(t, snap.Pending)
	assert.Equal(t, "pending", snap.Value)
	assert.Equal(t, gen, snap.Generation)

	close(release)
	snap, err := v.Wait(context.Background())
	require.NoError(t, err)
	assert.False(t, snap.Pending)
	assert.Equal(t, "done", snap.Value)
}

func TestStaleResultIsDiscarded(t *testing.T) {
	v := New(0)
	var discarded atomic.Uint64
	v.OnDiscard(func(gen uint64) { discarded.Store(gen) })

	slowRelease := make(chan struct{})
	slowFinished := make(chan struct{})
	first := v.Start(context.Background(), -1, func(ctx context.Context) (int, error) {
		defer close(slowFinished)
		<-slowRelease
		return 1, nil
	})
	second := v.Start(context.Background(), -1, func(ctx context.Context) (int, error) {
		return 2, nil
	})

	snap, err := v.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Value)
	assert.Equal(t, second, snap.Generation)

	close(slowRelease)
	<-slowFinished
	require.Eventually(t, func() bool { return discarded.Load() == first }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, v.Get().Value)
}

func TestStartCancelsPreviousWork(t *testing.T) {
	v := New("")
	cancelled := make(chan struct{})

	v.Start(context.Background(), "", func(ctx context.Context) (string, error) {
		<-ctx.Done()
		close(cancelled)
		return "", ctx.Err()
	})
	v.Set("manual")

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("previous producer was not cancelled")
	}
	assert.Equal(t, "manual", v.Get().Value)
}

func TestWaitHonoursContext(t *testing.T) {
	v := New("")
	v.Start(context.Background(), "pending", func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	defer v.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	snap, err := v.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, snap.Pending)
}

func TestProducerErrorIsPublished(t *testing.T) {
	v := New("")
	boom := errors.New("boom")
	v.Start(context.Background(), "", func(ctx context.Context) (string, error) {
		return "fallback", boom
	})

	snap, err := v.Wait(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, snap.Err, boom)
	assert.Equal(t, "fallback", snap.Value)
}

func TestNewPendingWaitsForFirstResult(t *testing.T) {
	v := NewPending("loading")
	assert.True(t, v.Get().Pending)

	got := make(chan Snapshot[string], 1)
	go func() {
		snap, _ := v.Wait(context.Background())
		got <- snap
	}()

	select {
	case <-got:
		t.Fatal("Wait returned before any work settled")
	case <-time.After(20 * time.Millisecond):
	}

	v.Start(context.Background(), "loading", func(ctx context.Context) (string, error) {
		return "ready", nil
	})

	select {
	case snap := <-got:
		assert.False(t, snap.Pending)
		assert.Equal(t, "ready", snap.Value)
	case <-time.After(time.Second):
		t.Fatal("Wait did not follow the started work")
	}
}

func TestFailSettlesPendingWaiters(t *testing.T) {
	v := NewPending("loading")
	boom := errors.New("boom")

	got := make(chan Snapshot[string], 1)
	go func() {
		snap, _ := v.Wait(context.Background())
		got <- snap
	}()

	v.Fail(boom)

	select {
	case snap := <-got:
		assert.False(t, snap.Pending)
		assert.ErrorIs(t, snap.Err, boom)
		assert.Equal(t, "loading", snap.Value)
	case <-time.After(time.Second):
		t.Fatal("Fail did not wake the waiter")
	}
}

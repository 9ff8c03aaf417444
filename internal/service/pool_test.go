package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferencePool_BoundsConcurrency(t *testing.T) {
	pool := NewInferencePool(2, false)

	var inFlight, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pool.Do(context.Background(), "m", func(context.Context) error {
				n := inFlight.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				inFlight.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Positive(t, peak.Load())
}

func TestInferencePool_SerializesPerModel(t *testing.T) {
	pool := NewInferencePool(4, true)

	var inFlight, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pool.Do(context.Background(), "same-model", func(context.Context) error {
				n := inFlight.Add(1)
				if n > peak.Load() {
					peak.Store(n)
				}
				time.Sleep(2 * time.Millisecond)
				inFlight.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), peak.Load())
}

func TestInferencePool_CanceledContext(t *testing.T) {
	pool := NewInferencePool(1, false)

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = pool.Do(context.Background(), "m", func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := pool.Do(ctx, "m", func(context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
	close(release)
}

func TestNewInferencePool_MinimumOneWorker(t *testing.T) {
	pool := NewInferencePool(0, false)
	ran := false
	require.NoError(t, pool.Do(context.Background(), "m", func(context.Context) error {
		ran = true
		return nil
	}))
	assert.True(t, ran)
}

func TestInferencePool_CanceledWhileWaitingForModel(t *testing.T) {
	pool := NewInferencePool(4, true)

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = pool.Do(context.Background(), "slow-model", func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	called := false
	done := make(chan error, 1)
	go func() {
		done <- pool.Do(ctx, "slow-model", func(context.Context) error {
			called = true
			return nil
		})
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.False(t, called)
	case <-time.After(time.Second):
		t.Fatal("Do blocked past its context deadline")
	}

	// Other models are not blocked by the busy one.
	require.NoError(t, pool.Do(context.Background(), "other-model", func(context.Context) error { return nil }))
}

package writer

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPool_Defaults(t *testing.T) {
	pool, err := NewPool(0, 0, func(context.Context, int) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, defaultWorkers, pool.Stats().Workers)
	assert.Equal(t, defaultQueueSize, pool.Stats().QueueSize)

	_, err = NewPool[int](1, 1, nil)
	assert.ErrorIs(t, err, ErrNilProcessor)
}

func TestPool_Lifecycle(t *testing.T) {
	var processed int64
	pool, err := NewPool(2, 10, func(context.Context, int) error {
		atomic.AddInt64(&processed, 1)
		return nil
	})
	require.NoError(t, err)

	assert.ErrorIs(t, pool.Submit(1), ErrPoolNotStarted)
	require.NoError(t, pool.Start(context.Background()))
	assert.ErrorIs(t, pool.Start(context.Background()), ErrPoolAlreadyStarted)

	for i := 0; i < 5; i++ {
		require.NoError(t, pool.Submit(i))
	}
	require.NoError(t, pool.Stop(time.Second))
	assert.Equal(t, int64(5), atomic.LoadInt64(&processed))
	assert.ErrorIs(t, pool.Submit(1), ErrPoolStopped)
	assert.NoError(t, pool.Stop(time.Second))
}

func TestPool_DropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	pool, err := NewPool(1, 1, func(context.Context, int) error {
		<-release
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))

	require.NoError(t, pool.Submit(1))
	require.Eventually(t, func() bool { return pool.Stats().Active == 1 }, time.Second, time.Millisecond)
	require.NoError(t, pool.Submit(2))

	start := time.Now()
	assert.ErrorIs(t, pool.Submit(3), ErrQueueFull)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, int64(1), pool.Stats().Dropped)

	close(release)
	require.NoError(t, pool.Stop(time.Second))
	assert.Equal(t, int64(2), pool.Stats().Processed)
}

func TestPool_FailureAndPanicIsolation(t *testing.T) {
	var handled int64
	var ok int64
	pool, err := NewPool(1, 10, func(_ context.Context, n int) error {
		switch n {
		case 1:
			return errors.New("store failed")
		case 2:
			panic("boom")
		}
		atomic.AddInt64(&ok, 1)
		return nil
	}, WithErrorHandler[int](func(_ int, err error) {
		atomic.AddInt64(&handled, 1)
	}))
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))
	for _, n := range []int{1, 2, 3, 4} {
		require.NoError(t, pool.Submit(n))
	}
	require.NoError(t, pool.Stop(time.Second))

	stats := pool.Stats()
	assert.Equal(t, int64(4), stats.Processed)
	assert.Equal(t, int64(2), stats.Failed)
	assert.Equal(t, int64(2), atomic.LoadInt64(&ok))
	assert.Equal(t, int64(2), atomic.LoadInt64(&handled))
}

func TestPool_TaskContextIsDetachedAndBounded(t *testing.T) {
	deadlines := make(chan bool, 1)
	errs := make(chan error, 1)
	pool, err := NewPool(1, 1, func(ctx context.Context, _ int) error {
		_, has := ctx.Deadline()
		deadlines <- has
		<-ctx.Done()
		errs <- ctx.Err()
		return ctx.Err()
	}, WithTaskTimeout[int](20*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))
	require.NoError(t, pool.Submit(1))

	assert.True(t, <-deadlines)
	assert.ErrorIs(t, <-errs, context.DeadlineExceeded)
	require.NoError(t, pool.Stop(time.Second))
}

func TestPool_StopTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	pool, err := NewPool(1, 1, func(context.Context, int) error {
		<-release
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))
	require.NoError(t, pool.Submit(1))
	require.Eventually(t, func() bool { return pool.Stats().Active == 1 }, time.Second, time.Millisecond)
	assert.ErrorIs(t, pool.Stop(10*time.Millisecond), ErrStopTimeout)
}

func TestPool_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	pool, err := NewPool(1, 4, func(context.Context, int) error { return nil },
		WithRegisterer[int](reg, "test_pool"))
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))
	require.NoError(t, pool.Submit(1))
	require.NoError(t, pool.Stop(time.Second))

	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if c := m.GetCounter(); c != nil {
				values[mf.GetName()] = c.GetValue()
			}
		}
	}
	assert.Equal(t, float64(1), values["test_pool_submitted_total"])
	assert.Equal(t, float64(1), values["test_pool_processed_total"])
	assert.Equal(t, float64(0), values["test_pool_dropped_total"])

	_, err = NewPool(1, 4, func(context.Context, int) error { return nil },
		WithRegisterer[int](reg, "test_pool"))
	assert.Error(t, err)
}

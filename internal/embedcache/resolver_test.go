package embedcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/ragcache/internal/ai"
	"github.com/xxxsen/ragcache/internal/event"
	"github.com/xxxsen/ragcache/internal/model"
	"github.com/xxxsen/ragcache/internal/retry"
)

type countingEmbedder struct {
	calls    int32
	failures int32 // number of leading calls that fail
	always   error // when set every call fails with it
	delay    time.Duration
}

func (e *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	n := atomic.AddInt32(&e.calls, 1)
	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if e.always != nil {
		return nil, e.always
	}
	if n <= e.failures {
		return nil, errors.New("temporary failure")
	}
	return ai.HashEmbedding(text, 8), nil
}

func (e *countingEmbedder) ModelName() string { return "counting" }

func fastRetry(attempts int) retry.Config {
	return retry.Config{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Multiplier:      2,
	}
}

func newTestResolver(t *testing.T, e ai.IEmbedder, sink event.Sink) (*Resolver, *Cache) {
	t.Helper()
	c, err := NewCache(8, 0, sink)
	require.NoError(t, err)
	return NewResolver(e, c, ResolverConfig{Retry: fastRetry(3), AttemptTimeout: time.Second, Sink: sink}), c
}

func TestResolve_SecondCallServedFromCache(t *testing.T) {
	e := &countingEmbedder{}
	rec := event.NewRecorder()
	r, c := newTestResolver(t, e, rec)

	first, err := r.Resolve(context.Background(), "hello world")
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), "  hello   world ")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&e.calls))
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 1, rec.Count(event.KindEmbedMiss))
	assert.Equal(t, 1, rec.Count(event.KindEmbedHit))
}

func TestResolve_RetriesTransientFailures(t *testing.T) {
	e := &countingEmbedder{failures: 2}
	rec := event.NewRecorder()
	r, c := newTestResolver(t, e, rec)

	vec, err := r.Resolve(context.Background(), "retry me")
	require.NoError(t, err)
	assert.NotEmpty(t, vec)
	assert.Equal(t, int32(3), atomic.LoadInt32(&e.calls))
	assert.Equal(t, 2, rec.Count(event.KindEmbedRetry))
	assert.Equal(t, 1, c.Len())
}

func TestResolve_ExhaustionReturnsProviderError(t *testing.T) {
	e := &countingEmbedder{always: errors.New("boom")}
	r, c := newTestResolver(t, e, nil)

	_, err := r.Resolve(context.Background(), "never works")
	require.Error(t, err)
	assert.ErrorIs(t, err, ai.ErrProvider)
	assert.Equal(t, int32(3), atomic.LoadInt32(&e.calls))
	assert.Equal(t, 0, c.Len())
}

func TestResolve_UnavailableIsNotRetried(t *testing.T) {
	e := &countingEmbedder{always: ai.ErrUnavailable}
	r, _ := newTestResolver(t, e, nil)

	_, err := r.Resolve(context.Background(), "x")
	assert.ErrorIs(t, err, ai.ErrUnavailable)
	assert.Equal(t, int32(1), atomic.LoadInt32(&e.calls))
}

func TestResolve_AttemptTimeout(t *testing.T) {
	e := &countingEmbedder{delay: 200 * time.Millisecond}
	c, err := NewCache(4, 0, nil)
	require.NoError(t, err)
	r := NewResolver(e, c, ResolverConfig{Retry: fastRetry(2), AttemptTimeout: 10 * time.Millisecond})

	start := time.Now()
	_, err = r.Resolve(context.Background(), "slow")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 150*time.Millisecond)
	assert.Equal(t, int32(2), atomic.LoadInt32(&e.calls))
}

func TestResolve_ConcurrentMissesConverge(t *testing.T) {
	e := &countingEmbedder{delay: 5 * time.Millisecond}
	r, c := newTestResolver(t, e, nil)

	var wg sync.WaitGroup
	results := make([][]float32, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			vec, err := r.Resolve(context.Background(), "same text")
			assert.NoError(t, err)
			results[i] = vec
		}(i)
	}
	wg.Wait()
	for _, vec := range results {
		assert.Equal(t, results[0], vec)
	}
	assert.Equal(t, 1, c.Len())
	assert.GreaterOrEqual(t, atomic.LoadInt32(&e.calls), int32(1))
}

func TestResolve_NoEmbedder(t *testing.T) {
	r := NewResolver(nil, nil, ResolverConfig{})
	_, err := r.Resolve(context.Background(), "x")
	assert.ErrorIs(t, err, ai.ErrUnavailable)
}

type memoryCacheStore struct {
	mu    sync.Mutex
	items map[string][]float32
	err   error
}

func (m *memoryCacheStore) Get(_ context.Context, modelName, contentHash string) ([]float32, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, false, m.err
	}
	vec, ok := m.items[modelName+":"+contentHash]
	return vec, ok, nil
}

func (m *memoryCacheStore) Save(_ context.Context, item *model.EmbeddingCache) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.items[item.ModelName+":"+item.ContentHash] = item.Embedding
	return nil
}

func TestDBEmbedder_PersistsAcrossWrappers(t *testing.T) {
	store := &memoryCacheStore{items: map[string][]float32{}}
	e := &countingEmbedder{}

	first := WrapDBCacheToEmbedder(e, store)
	v1, err := first.Embed(context.Background(), "persist me")
	require.NoError(t, err)

	second := WrapDBCacheToEmbedder(e, store)
	v2, err := second.Embed(context.Background(), "persist me")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&e.calls))
	assert.Equal(t, "counting", second.ModelName())
}

func TestDBEmbedder_StoreFailureFallsThrough(t *testing.T) {
	store := &memoryCacheStore{items: map[string][]float32{}, err: errors.New("db down")}
	e := &countingEmbedder{}
	vec, err := WrapDBCacheToEmbedder(e, store).Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.NotEmpty(t, vec)
}

func TestWrapDBCacheToEmbedder_NilStore(t *testing.T) {
	e := &countingEmbedder{}
	assert.Same(t, ai.IEmbedder(e), WrapDBCacheToEmbedder(e, nil))
}

// Package querycache is the semantic response cache: answers are stored under the
// embedding of the query that produced them and served again for any later query whose
// embedding lies within the distance threshold.
package querycache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/ragcache/internal/event"
	"github.com/xxxsen/ragcache/internal/model"
	"github.com/xxxsen/ragcache/internal/store"
)

const (
	DefaultThreshold    = 0.1
	defaultStoreTimeout = 5 * time.Second
)

type Resolver interface {
	Resolve(ctx context.Context, text string) ([]float32, error)
}

type Config struct {
	// Threshold is the largest cosine distance that still counts as a hit, inclusive.
	Threshold    float64
	StoreTimeout time.Duration
	Sink         event.Sink
}

type QueryCache struct {
	coll      store.Collection
	resolver  Resolver
	threshold float64
	timeout   time.Duration
	sink      event.Sink
}

func New(coll store.Collection, resolver Resolver, cfg Config) *QueryCache {
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	timeout := cfg.StoreTimeout
	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}
	return &QueryCache{
		coll:      coll,
		resolver:  resolver,
		threshold: threshold,
		timeout:   timeout,
		sink:      event.OrNop(cfg.Sink),
	}
}

func (q *QueryCache) Threshold() float64 {
	return q.threshold
}

func (q *QueryCache) Collection() store.Collection {
	return q.coll
}

// Lookup returns the cached answer of the nearest stored query when its distance is
// within the threshold. Every failure is reported to the sink and treated as a miss.
func (q *QueryCache) Lookup(ctx context.Context, query string) (*model.CachedAnswer, bool) {
	vec, err := q.resolver.Resolve(ctx, query)
	if err != nil {
		q.lookupFailed(ctx, query, "", fmt.Errorf("embed query: %w", err))
		return nil, false
	}
	searchCtx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()
	matches, err := q.coll.Nearest(searchCtx, vec, 1)
	if err != nil {
		q.lookupFailed(ctx, query, "", fmt.Errorf("search %s: %w", q.coll.Name(), err))
		return nil, false
	}
	if len(matches) == 0 {
		q.sink.Emit(ctx, event.Event{Kind: event.KindCacheMiss, Query: query, Distance: -1, Detail: "empty"})
		return nil, false
	}
	best := matches[0]
	if best.Distance > q.threshold {
		q.sink.Emit(ctx, event.Event{Kind: event.KindCacheMiss, Query: query, Key: best.ID, Distance: best.Distance})
		return nil, false
	}
	answer, err := DecodePayload(best.Payload)
	if err != nil {
		q.lookupFailed(ctx, query, best.ID, err)
		return nil, false
	}
	q.sink.Emit(ctx, event.Event{Kind: event.KindCacheHit, Query: query, Key: best.ID, Distance: best.Distance})
	return answer, true
}

func (q *QueryCache) lookupFailed(ctx context.Context, query, key string, err error) {
	q.sink.Emit(ctx, event.Event{Kind: event.KindLookupError, Query: query, Key: key, Distance: -1, Err: err})
}

// Store embeds query and inserts answer under a fresh id.
func (q *QueryCache) Store(ctx context.Context, query string, answer *model.CachedAnswer) error {
	id, err := q.store(ctx, query, answer)
	if err != nil {
		q.sink.Emit(ctx, event.Event{Kind: event.KindStoreFailed, Query: query, Err: err})
		return err
	}
	q.sink.Emit(ctx, event.Event{Kind: event.KindStoreOK, Query: query, Key: id})
	return nil
}

func (q *QueryCache) store(ctx context.Context, query string, answer *model.CachedAnswer) (string, error) {
	payload, err := EncodePayload(query, answer)
	if err != nil {
		return "", err
	}
	vec, err := q.resolver.Resolve(ctx, query)
	if err != nil {
		return "", fmt.Errorf("embed query: %w", err)
	}
	id := uuid.NewString()
	storeCtx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()
	if err := q.coll.Insert(storeCtx, id, query, vec, payload); err != nil {
		return "", fmt.Errorf("insert into %s: %w", q.coll.Name(), err)
	}
	return id, nil
}

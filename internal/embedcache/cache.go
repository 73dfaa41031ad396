package embedcache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/ragcache/internal/event"
)

const DefaultMaxEntries = 10000

type lruStore interface {
	Get(key string) ([]float32, bool)
	Add(key string, value []float32) bool
	Len() int
	Keys() []string
	Purge()
}

// Cache is a bounded least-recently-used map from fingerprint to embedding.
// A Get refreshes recency; adding a new key to a full cache evicts the entry that was
// used longest ago. Vectors are copied on the way in and out.
type Cache struct {
	store      lruStore
	maxEntries int
	sink       event.Sink
}

// NewCache builds a cache holding at most maxEntries vectors. A positive ttl also
// expires entries that were not re-added within that window.
func NewCache(maxEntries int, ttl time.Duration, sink event.Sink) (*Cache, error) {
	if maxEntries <= 0 {
		return nil, fmt.Errorf("embedding cache size must be positive, got %d", maxEntries)
	}
	c := &Cache{maxEntries: maxEntries, sink: event.OrNop(sink)}
	if ttl > 0 {
		c.store = expirable.NewLRU[string, []float32](maxEntries, c.onEvict, ttl)
		return c, nil
	}
	store, err := lru.NewWithEvict[string, []float32](maxEntries, c.onEvict)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	c.store = store
	return c, nil
}

func (c *Cache) onEvict(key string, _ []float32) {
	c.sink.Emit(context.Background(), event.Event{Kind: event.KindEviction, Key: key})
}

func (c *Cache) Get(key string) ([]float32, bool) {
	vec, ok := c.store.Get(key)
	if !ok {
		return nil, false
	}
	return cloneEmbedding(vec), true
}

func (c *Cache) Put(key string, vec []float32) {
	if len(vec) == 0 {
		return
	}
	c.store.Add(key, cloneEmbedding(vec))
}

func (c *Cache) Len() int {
	return c.store.Len()
}

// Keys lists cached fingerprints from oldest to newest use.
func (c *Cache) Keys() []string {
	return c.store.Keys()
}

func (c *Cache) MaxEntries() int {
	return c.maxEntries
}

func (c *Cache) Purge() {
	c.store.Purge()
}

func cloneEmbedding(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	clone := make([]float32, len(values))
	copy(clone, values)
	return clone
}

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	appErr "github.com/xxxsen/ragcache/internal/pkg/errors"
)

// MemoryBackend keeps collections in process memory. Search is a linear scan.
type MemoryBackend struct {
	mu          sync.Mutex
	collections map[string]*memoryCollection
	now         func() time.Time
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{collections: map[string]*memoryCollection{}, now: time.Now}
}

func (b *MemoryBackend) Collection(_ context.Context, name string) (Collection, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.collections[name]; ok {
		return c, nil
	}
	c := &memoryCollection{name: name, entries: map[string]*memoryEntry{}, now: b.now}
	b.collections[name] = c
	return c, nil
}

type memoryEntry struct {
	id      string
	content string
	vec     []float32
	payload map[string]string
	ctime   int64
	seq     uint64
}

type memoryCollection struct {
	name    string
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	dims    int
	seq     uint64
	now     func() time.Time
}

func (c *memoryCollection) Name() string {
	return c.name
}

func (c *memoryCollection) Insert(ctx context.Context, id string, content string, vec []float32, payload map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" || len(vec) == 0 {
		return appErr.ErrInvalid
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dims == 0 {
		c.dims = len(vec)
	} else if c.dims != len(vec) {
		return fmt.Errorf("%w: collection %s holds %d, got %d", ErrDimensionMismatch, c.name, c.dims, len(vec))
	}
	c.seq++
	stored := make([]float32, len(vec))
	copy(stored, vec)
	c.entries[id] = &memoryEntry{
		id:      id,
		content: content,
		vec:     stored,
		payload: clonePayload(payload),
		ctime:   c.now().Unix(),
		seq:     c.seq,
	}
	return nil
}

func (c *memoryCollection) Nearest(ctx context.Context, vec []float32, k int) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}
	c.mu.RLock()
	matches := make([]Match, 0, len(c.entries))
	for _, e := range c.entries {
		d, err := CosineDistance(e.vec, vec)
		if err != nil {
			c.mu.RUnlock()
			return nil, err
		}
		matches = append(matches, Match{ID: e.id, Distance: d, Content: e.content, Payload: clonePayload(e.payload)})
	}
	c.mu.RUnlock()
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (c *memoryCollection) DeleteByID(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[id]; !ok {
		return appErr.ErrNotFound
	}
	delete(c.entries, id)
	return nil
}

func (c *memoryCollection) DeleteAll(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := int64(len(c.entries))
	c.entries = map[string]*memoryEntry{}
	return n, nil
}

func (c *memoryCollection) DeleteBefore(_ context.Context, cutoff int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for id, e := range c.entries {
		if e.ctime < cutoff {
			delete(c.entries, id)
			n++
		}
	}
	return n, nil
}

// ListIDs returns ids in insertion order.
func (c *memoryCollection) ListIDs(_ context.Context) ([]string, error) {
	c.mu.RLock()
	items := make([]*memoryEntry, 0, len(c.entries))
	for _, e := range c.entries {
		items = append(items, e)
	}
	c.mu.RUnlock()
	sort.Slice(items, func(i, j int) bool { return items[i].seq < items[j].seq })
	ids := make([]string, 0, len(items))
	for _, e := range items {
		ids = append(ids, e.id)
	}
	return ids, nil
}

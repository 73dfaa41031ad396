package store

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/ragcache/internal/repo"
)

// PGVectorBackend maps collections onto corpora of one pgvector table.
type PGVectorBackend struct {
	repo *repo.VectorRepo
}

// NewPGVectorBackend prepares the schema for vectors of dims dimensions.
func NewPGVectorBackend(ctx context.Context, r *repo.VectorRepo, dims int) (*PGVectorBackend, error) {
	if err := r.EnsureSchema(ctx, dims); err != nil {
		return nil, fmt.Errorf("ensure vector schema: %w", err)
	}
	return &PGVectorBackend{repo: r}, nil
}

func (b *PGVectorBackend) Collection(_ context.Context, name string) (Collection, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}
	return &pgCollection{name: name, repo: b.repo}, nil
}

type pgCollection struct {
	name string
	repo *repo.VectorRepo
}

func (c *pgCollection) Name() string {
	return c.name
}

func (c *pgCollection) Insert(ctx context.Context, id string, content string, vec []float32, payload map[string]string) error {
	return c.repo.Upsert(ctx, &repo.VectorEntry{
		Corpus:    c.name,
		ID:        id,
		Content:   content,
		Embedding: vec,
		Payload:   payload,
		Ctime:     time.Now().Unix(),
	})
}

func (c *pgCollection) Nearest(ctx context.Context, vec []float32, k int) ([]Match, error) {
	items, err := c.repo.Nearest(ctx, c.name, vec, k)
	if err != nil {
		return nil, err
	}
	out := make([]Match, 0, len(items))
	for _, item := range items {
		out = append(out, Match{ID: item.ID, Distance: item.Distance, Content: item.Content, Payload: item.Payload})
	}
	return out, nil
}

func (c *pgCollection) DeleteByID(ctx context.Context, id string) error {
	return c.repo.DeleteByID(ctx, c.name, id)
}

func (c *pgCollection) DeleteAll(ctx context.Context) (int64, error) {
	return c.repo.DeleteAll(ctx, c.name)
}

func (c *pgCollection) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	return c.repo.DeleteBefore(ctx, c.name, cutoff)
}

func (c *pgCollection) ListIDs(ctx context.Context) ([]string, error) {
	return c.repo.ListIDs(ctx, c.name)
}

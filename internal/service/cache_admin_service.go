package service

import (
	"context"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/xxxsen/ragcache/internal/pkg/errors"
	"github.com/xxxsen/ragcache/internal/store"
)

// EmbeddingCacheView is the part of the in-process embedding cache the admin surface reports on.
type EmbeddingCacheView interface {
	Len() int
	MaxEntries() int
}

type CacheStats struct {
	Collection        string `json:"collection"`
	ResponseEntries   int    `json:"response_entries"`
	EmbeddingEntries  int    `json:"embedding_entries"`
	EmbeddingCapacity int    `json:"embedding_capacity"`
}

// CacheAdminService manages entries of the response cache collection.
type CacheAdminService struct {
	coll       store.Collection
	embeddings EmbeddingCacheView
}

func NewCacheAdminService(coll store.Collection, embeddings EmbeddingCacheView) *CacheAdminService {
	return &CacheAdminService{coll: coll, embeddings: embeddings}
}

func (s *CacheAdminService) ClearCacheEntry(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return appErr.ErrInvalid
	}
	if err := s.coll.DeleteByID(ctx, id); err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("cache entry cleared",
		zap.String("collection", s.coll.Name()),
		zap.String("id", id),
	)
	return nil
}

func (s *CacheAdminService) ClearAllCache(ctx context.Context) (int64, error) {
	n, err := s.coll.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	logutil.GetLogger(ctx).Info("cache cleared",
		zap.String("collection", s.coll.Name()),
		zap.Int64("deleted", n),
	)
	return n, nil
}

func (s *CacheAdminService) ListCacheEntries(ctx context.Context) ([]string, error) {
	ids, err := s.coll.ListIDs(ctx)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func (s *CacheAdminService) Stats(ctx context.Context) (*CacheStats, error) {
	ids, err := s.coll.ListIDs(ctx)
	if err != nil {
		return nil, err
	}
	stats := &CacheStats{
		Collection:      s.coll.Name(),
		ResponseEntries: len(ids),
	}
	if s.embeddings != nil {
		stats.EmbeddingEntries = s.embeddings.Len()
		stats.EmbeddingCapacity = s.embeddings.MaxEntries()
	}
	return stats, nil
}

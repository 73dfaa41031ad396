package embedcache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/ragcache/internal/ai"
	"github.com/xxxsen/ragcache/internal/event"
	"github.com/xxxsen/ragcache/internal/retry"
	"go.uber.org/zap"
)

const defaultAttemptTimeout = 10 * time.Second

type ResolverConfig struct {
	Retry          retry.Config
	AttemptTimeout time.Duration
	Sink           event.Sink
}

// Resolver turns text into a vector, consulting the cache before the provider.
type Resolver struct {
	embedder ai.IEmbedder
	cache    *Cache
	retry    retry.Config
	timeout  time.Duration
	sink     event.Sink
}

func NewResolver(embedder ai.IEmbedder, cache *Cache, cfg ResolverConfig) *Resolver {
	timeout := cfg.AttemptTimeout
	if timeout <= 0 {
		timeout = defaultAttemptTimeout
	}
	return &Resolver{
		embedder: embedder,
		cache:    cache,
		retry:    cfg.Retry,
		timeout:  timeout,
		sink:     event.OrNop(cfg.Sink),
	}
}

// Resolve returns the embedding of text. No lock is held while the provider runs, so two
// concurrent misses on the same text may both reach the provider; the cache keeps one.
func (r *Resolver) Resolve(ctx context.Context, text string) ([]float32, error) {
	key := Fingerprint(text)
	if r.cache != nil {
		if vec, ok := r.cache.Get(key); ok {
			r.sink.Emit(ctx, event.Event{Kind: event.KindEmbedHit, Key: key})
			return vec, nil
		}
	}
	r.sink.Emit(ctx, event.Event{Kind: event.KindEmbedMiss, Key: key})
	if r.embedder == nil {
		return nil, ai.ErrUnavailable
	}
	vec, err := retry.DoWithResult(ctx, r.retry, func(ctx context.Context) ([]float32, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		res, err := r.embedder.Embed(attemptCtx, text)
		if err != nil {
			if errors.Is(err, ai.ErrUnavailable) {
				return nil, retry.NonRetryable(err)
			}
			return nil, err
		}
		return res, nil
	}, func(attempt int, err error, next time.Duration) {
		logutil.GetLogger(ctx).Debug("embedding attempt failed",
			zap.Int("attempt", attempt), zap.Duration("next", next), zap.Error(err))
		r.sink.Emit(ctx, event.Event{
			Kind:   event.KindEmbedRetry,
			Key:    key,
			Err:    err,
			Detail: "attempt " + strconv.Itoa(attempt),
		})
	})
	if err != nil {
		if !errors.Is(err, ai.ErrProvider) && !errors.Is(err, ai.ErrUnavailable) {
			err = fmt.Errorf("%w: %w", ai.ErrProvider, err)
		}
		return nil, fmt.Errorf("resolve embedding: %w", err)
	}
	if r.cache != nil {
		r.cache.Put(key, vec)
	}
	return cloneEmbedding(vec), nil
}

func (r *Resolver) ModelName() string {
	if r.embedder == nil {
		return ""
	}
	return r.embedder.ModelName()
}

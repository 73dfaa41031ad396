package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ragcache/internal/ai"
	"github.com/xxxsen/ragcache/internal/config"
	"github.com/xxxsen/ragcache/internal/db"
	"github.com/xxxsen/ragcache/internal/embedcache"
	"github.com/xxxsen/ragcache/internal/event"
	"github.com/xxxsen/ragcache/internal/job"
	"github.com/xxxsen/ragcache/internal/knowledge"
	"github.com/xxxsen/ragcache/internal/metrics"
	"github.com/xxxsen/ragcache/internal/pipeline"
	"github.com/xxxsen/ragcache/internal/querycache"
	"github.com/xxxsen/ragcache/internal/repo"
	"github.com/xxxsen/ragcache/internal/retry"
	"github.com/xxxsen/ragcache/internal/schedule"
	"github.com/xxxsen/ragcache/internal/service"
	"github.com/xxxsen/ragcache/internal/store"
	"github.com/xxxsen/ragcache/internal/writer"
)

type app struct {
	cfg        *config.Config
	db         *sql.DB
	metrics    *metrics.Metrics
	embedCache *embedcache.Cache
	embedRepo  *repo.EmbeddingCacheRepo
	responses  store.Collection
	writer     *writer.Writer
	pipeline   *pipeline.Pipeline
	admin      *service.CacheAdminService
	ingest     *service.IngestService
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, metrics: metrics.New()}
	sink := event.Multi(event.LogSink(), a.metrics)

	if cfg.Database.Configured() {
		conn, err := db.Open(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		a.db = conn
		if err := db.ApplyMigrations(conn); err != nil {
			a.close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}
	if err := a.build(ctx, sink); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) build(ctx context.Context, sink event.Sink) error {
	cfg := a.cfg
	embedder, err := buildEmbedder(cfg.AI.Embedder)
	if err != nil {
		return err
	}
	generator, err := buildGenerator(cfg.AI.Generator)
	if err != nil {
		return err
	}
	if cfg.EmbeddingCache.Persist && a.db != nil {
		a.embedRepo = repo.NewEmbeddingCacheRepo(a.db)
		embedder = embedcache.WrapDBCacheToEmbedder(embedder, a.embedRepo)
	}

	a.embedCache, err = embedcache.NewCache(cfg.EmbeddingCache.MaxEntries, cfg.EmbeddingTTL(), sink)
	if err != nil {
		return fmt.Errorf("init embedding cache: %w", err)
	}
	if err := a.metrics.RegisterGaugeFunc(metrics.SubsystemEmbedding, "cache_entries", "Entries held by the in-process embedding cache.", func() float64 {
		return float64(a.embedCache.Len())
	}); err != nil {
		return fmt.Errorf("register gauge: %w", err)
	}
	resolver := embedcache.NewResolver(embedder, a.embedCache, embedcache.ResolverConfig{
		Retry: retry.Config{
			MaxAttempts:         cfg.Retry.MaxAttempts,
			InitialInterval:     time.Duration(cfg.Retry.InitialIntervalMS) * time.Millisecond,
			MaxInterval:         time.Duration(cfg.Retry.MaxIntervalMS) * time.Millisecond,
			Multiplier:          cfg.Retry.Multiplier,
			RandomizationFactor: cfg.Retry.RandomizationFactor,
		},
		AttemptTimeout: cfg.EmbeddingTimeoutDuration(),
		Sink:           sink,
	})

	backend, err := a.buildBackend(ctx)
	if err != nil {
		return err
	}
	knowledgeColl, err := backend.Collection(ctx, cfg.KnowledgeCorpus)
	if err != nil {
		return fmt.Errorf("open knowledge corpus: %w", err)
	}
	a.responses, err = backend.Collection(ctx, cfg.CacheCorpus)
	if err != nil {
		return fmt.Errorf("open cache corpus: %w", err)
	}
	index := knowledge.NewIndex(knowledgeColl, resolver)

	qc := querycache.New(a.responses, resolver, querycache.Config{
		Threshold:    cfg.Cache.Threshold,
		StoreTimeout: cfg.StoreTimeoutDuration(),
		Sink:         sink,
	})
	a.writer, err = writer.New(qc, writer.Config{
		Workers:     cfg.Writer.Workers,
		QueueSize:   cfg.Writer.QueueSize,
		TaskTimeout: cfg.TaskTimeoutDuration(),
		StopTimeout: cfg.StopTimeoutDuration(),
		Sink:        sink,
		Registerer:  a.metrics.Registry(),
	})
	if err != nil {
		return fmt.Errorf("init writer: %w", err)
	}
	a.pipeline = pipeline.New(qc, index, generator, a.writer, pipeline.Config{
		TopK:            cfg.Retrieval.TopK,
		RetrieveTimeout: cfg.RetrieveTimeoutDuration(),
		GenerateTimeout: cfg.GenerateTimeoutDuration(),
		SystemPrompt:    cfg.Generation.SystemPrompt,
		LinkTemplate:    cfg.Retrieval.LinkTemplate,
		Sink:            sink,
	})
	a.admin = service.NewCacheAdminService(a.responses, a.embedCache)

	if cfg.Source.Data != nil {
		src, err := knowledge.NewSource(ctx, cfg.Source.Type, cfg.Source.Data)
		if err != nil {
			return fmt.Errorf("init knowledge source: %w", err)
		}
		loader := knowledge.NewLoader(src, knowledge.NewChunker(knowledge.DefaultMaxTokens, knowledge.DefaultOverlapTokens))
		a.ingest = service.NewIngestService(loader, index)
	}
	return nil
}

func (a *app) buildBackend(ctx context.Context) (store.Backend, error) {
	switch a.cfg.Store.Type {
	case config.StoreTypePGVector:
		backend, err := store.NewPGVectorBackend(ctx, repo.NewVectorRepo(a.db), a.cfg.Store.Dimensions)
		if err != nil {
			return nil, fmt.Errorf("init pgvector store: %w", err)
		}
		return backend, nil
	default:
		return store.NewMemoryBackend(), nil
	}
}

func buildEmbedder(items []config.AIProviderConfig) (ai.IEmbedder, error) {
	entries := make([]ai.EmbedderEntry, 0, len(items))
	for i, item := range items {
		p, err := ai.NewEmbedProvider(item.Provider, item.Data)
		if err != nil {
			return nil, fmt.Errorf("init embedder %d: %w", i, err)
		}
		entries = append(entries, ai.EmbedderEntry{Name: entryName(item), Embedder: ai.NewEmbedder(p, item.Model)})
	}
	embedder := ai.NewGroupEmbedder(entries)
	if embedder == nil {
		return nil, ai.ErrUnavailable
	}
	return embedder, nil
}

func buildGenerator(items []config.AIProviderConfig) (ai.IGenerator, error) {
	entries := make([]ai.GeneratorEntry, 0, len(items))
	for i, item := range items {
		p, err := ai.NewProvider(item.Provider, item.Data)
		if err != nil {
			return nil, fmt.Errorf("init generator %d: %w", i, err)
		}
		entries = append(entries, ai.GeneratorEntry{Name: entryName(item), Generator: ai.NewGenerator(p, item.Model)})
	}
	generator := ai.NewGroupGenerator(entries)
	if generator == nil {
		return nil, ai.ErrUnavailable
	}
	return generator, nil
}

func entryName(item config.AIProviderConfig) string {
	if item.Name != "" {
		return item.Name
	}
	return item.Provider + "/" + item.Model
}

func (a *app) scheduleJobs(s *schedule.CronScheduler) error {
	if exp, ok := a.responses.(store.Expirer); ok && a.cfg.Cache.RetentionDays > 0 {
		if err := s.AddJob(job.NewCacheRetentionJob(exp, a.cfg.Cache.RetentionDays), a.cfg.Cache.RetentionCron); err != nil {
			return err
		}
	}
	if a.embedRepo != nil {
		if err := s.AddJob(job.NewEmbeddingCacheCleanupJob(a.embedRepo, a.cfg.EmbeddingCache.PersistMaxAgeDays), a.cfg.EmbeddingCache.CleanupCron); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			logutil.GetLogger(context.Background()).Error("close db failed", zap.Error(err))
		}
	}
}

// Package pipeline answers questions: cached answers are returned directly, otherwise
// knowledge documents are retrieved, an answer is generated, and the result is handed to
// the background writer for caching.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/ragcache/internal/ai"
	"github.com/xxxsen/ragcache/internal/event"
	"github.com/xxxsen/ragcache/internal/knowledge"
	"github.com/xxxsen/ragcache/internal/model"
	"github.com/xxxsen/ragcache/internal/writer"
	"go.uber.org/zap"
)

type State string

const (
	StateStart      State = "START"
	StateCacheCheck State = "CACHE_CHECK"
	StateCacheHit   State = "CACHE_HIT"
	StateRetrieve   State = "RETRIEVE"
	StateGenerate   State = "GENERATE"
	StateRespond    State = "RESPOND"
)

const (
	defaultTopK            = 1
	defaultRetrieveTimeout = 10 * time.Second
	defaultGenerateTimeout = 60 * time.Second
)

type Cache interface {
	Lookup(ctx context.Context, query string) (*model.CachedAnswer, bool)
}

type Submitter interface {
	Submit(ctx context.Context, query string, answer *model.CachedAnswer) writer.SubmitResult
}

type Config struct {
	TopK            int
	RetrieveTimeout time.Duration
	GenerateTimeout time.Duration
	SystemPrompt    string
	LinkTemplate    string
	Sink            event.Sink
}

type Result struct {
	Answer *model.CachedAnswer
	Cached bool
	// Submit is the outcome of the background write; only set for generated answers.
	Submit writer.SubmitResult
}

type Pipeline struct {
	cache     Cache
	index     knowledge.DocumentIndex
	generator ai.IGenerator
	submitter Submitter
	cfg       Config
	sink      event.Sink
}

func New(cache Cache, index knowledge.DocumentIndex, generator ai.IGenerator, submitter Submitter, cfg Config) *Pipeline {
	if cfg.TopK <= 0 {
		cfg.TopK = defaultTopK
	}
	if cfg.RetrieveTimeout <= 0 {
		cfg.RetrieveTimeout = defaultRetrieveTimeout
	}
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = defaultGenerateTimeout
	}
	if strings.TrimSpace(cfg.SystemPrompt) == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.LinkTemplate == "" {
		cfg.LinkTemplate = DefaultLinkTemplate
	}
	return &Pipeline{
		cache:     cache,
		index:     index,
		generator: generator,
		submitter: submitter,
		cfg:       cfg,
		sink:      event.OrNop(cfg.Sink),
	}
}

func (p *Pipeline) enter(ctx context.Context, query string, state State) {
	p.sink.Emit(ctx, event.Event{Kind: event.KindStateChange, Query: query, Detail: string(state)})
}

// Ask answers query. Every failure is a *QueryError.
func (p *Pipeline) Ask(ctx context.Context, query string) (*Result, error) {
	logger := logutil.GetLogger(ctx)
	query = strings.TrimSpace(query)
	p.enter(ctx, query, StateStart)
	if query == "" {
		return nil, wrapStage(StageCacheCheck, ErrEmptyQuery)
	}

	p.enter(ctx, query, StateCacheCheck)
	if cached, ok := p.cache.Lookup(ctx, query); ok {
		p.enter(ctx, query, StateCacheHit)
		logger.Debug("answer served from cache", zap.String("query", query))
		return &Result{Answer: cached, Cached: true}, nil
	}

	p.enter(ctx, query, StateRetrieve)
	docs, err := p.retrieve(ctx, query)
	if err != nil {
		return nil, wrapStage(StageRetrieve, err)
	}

	p.enter(ctx, query, StateGenerate)
	text, err := p.generate(ctx, query, docs)
	if err != nil {
		return nil, wrapStage(StageGenerate, err)
	}
	answer := buildAnswer(text, docs, p.cfg.LinkTemplate)

	p.enter(ctx, query, StateRespond)
	res := p.submitter.Submit(ctx, query, answer)
	logger.Debug("answer generated",
		zap.String("query", query),
		zap.Int("docs", len(docs)),
		zap.String("cache_write", res.String()))
	return &Result{Answer: answer, Submit: res}, nil
}

func (p *Pipeline) retrieve(ctx context.Context, query string) ([]model.KnowledgeDoc, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.RetrieveTimeout)
	defer cancel()
	docs, err := p.index.SearchByText(ctx, query, p.cfg.TopK)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNoContext
	}
	return docs, nil
}

func (p *Pipeline) generate(ctx context.Context, query string, docs []model.KnowledgeDoc) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.GenerateTimeout)
	defer cancel()
	return p.generator.Complete(ctx, p.cfg.SystemPrompt, buildUserPrompt(query, docs))
}

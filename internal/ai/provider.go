package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	ErrUnavailable = errors.New("ai provider not configured")
	ErrProvider    = errors.New("ai provider failed")
)

// IAIProvider generates text. The system prompt may be empty.
type IAIProvider interface {
	Name() string
	Complete(ctx context.Context, model string, systemPrompt string, userPrompt string) (string, error)
}

type IEmbedProvider interface {
	Name() string
	Embed(ctx context.Context, model string, text string) ([]float32, error)
}

type IGenerator interface {
	Complete(ctx context.Context, systemPrompt string, userPrompt string) (string, error)
}

type IEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	ModelName() string
}

type generator struct {
	provider IAIProvider
	model    string
}

func NewGenerator(p IAIProvider, model string) IGenerator {
	return &generator{provider: p, model: model}
}

func (g *generator) Complete(ctx context.Context, systemPrompt string, userPrompt string) (string, error) {
	res, err := g.provider.Complete(ctx, g.model, systemPrompt, userPrompt)
	if err != nil {
		return "", wrapProviderErr(g.provider.Name(), err)
	}
	text := strings.TrimSpace(res)
	if text == "" {
		return "", fmt.Errorf("%w: %s: empty response", ErrProvider, g.provider.Name())
	}
	return text, nil
}

type embedder struct {
	provider IEmbedProvider
	model    string
}

func NewEmbedder(p IEmbedProvider, model string) IEmbedder {
	return &embedder{provider: p, model: model}
}

func (e *embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := e.provider.Embed(ctx, e.model, text)
	if err != nil {
		return nil, wrapProviderErr(e.provider.Name(), err)
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("%w: %s: empty embedding", ErrProvider, e.provider.Name())
	}
	return res, nil
}

func (e *embedder) ModelName() string {
	return e.model
}

func wrapProviderErr(name string, err error) error {
	if errors.Is(err, ErrProvider) || errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrProvider, name, err)
}

type ProviderFactory func(args interface{}) (IAIProvider, error)

type EmbedProviderFactory func(args interface{}) (IEmbedProvider, error)

var (
	registryMu    sync.RWMutex
	registry      = map[string]ProviderFactory{}
	embedRegistry = map[string]EmbedProviderFactory{}
)

func Register(name string, factory ProviderFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func RegisterEmbed(name string, factory EmbedProviderFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	embedRegistry[key] = factory
	registryMu.Unlock()
}

func NewProvider(name string, args interface{}) (IAIProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("ai provider name is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported ai provider: %s", name)
	}
	return factory(args)
}

func NewEmbedProvider(name string, args interface{}) (IEmbedProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("embed provider name is required")
	}
	registryMu.RLock()
	factory := embedRegistry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported embed provider: %s", name)
	}
	return factory(args)
}

package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type GeneratorEntry struct {
	Name      string
	Generator IGenerator
}

type EmbedderEntry struct {
	Name     string
	Embedder IEmbedder
}

// fallback calls each member in order until one succeeds. The returned error is the last
// member's, annotated with its name. A cancelled ctx stops the walk.
func fallback[R any](ctx context.Context, role string, names []string, call func(i int) (R, error)) (R, error) {
	var zero R
	if len(names) == 0 {
		return zero, ErrUnavailable
	}
	var lastErr error
	for i, name := range names {
		res, err := call(i)
		if err == nil {
			return res, nil
		}
		lastErr = fmt.Errorf("%s %s: %w", role, name, err)
		logutil.GetLogger(ctx).Warn("ai member failed, trying next",
			zap.String("role", role),
			zap.String("name", name),
			zap.Int("index", i),
			zap.Error(err),
		)
		if ctx.Err() != nil {
			break
		}
	}
	return zero, lastErr
}

type groupGenerator struct {
	names []string
	items []IGenerator
}

// NewGroupGenerator returns nil when no usable generator is given, and the generator
// itself when there is only one.
func NewGroupGenerator(entries []GeneratorEntry) IGenerator {
	g := &groupGenerator{}
	for _, e := range entries {
		if e.Generator == nil {
			continue
		}
		g.names = append(g.names, e.Name)
		g.items = append(g.items, e.Generator)
	}
	switch len(g.items) {
	case 0:
		return nil
	case 1:
		return g.items[0]
	}
	return g
}

func (g *groupGenerator) Complete(ctx context.Context, systemPrompt string, userPrompt string) (string, error) {
	return fallback(ctx, "generator", g.names, func(i int) (string, error) {
		return g.items[i].Complete(ctx, systemPrompt, userPrompt)
	})
}

type groupEmbedder struct {
	names []string
	items []IEmbedder
}

// NewGroupEmbedder falls back across embedders. All members must produce vectors of the
// same dimension, otherwise cached and fresh vectors are not comparable.
func NewGroupEmbedder(entries []EmbedderEntry) IEmbedder {
	g := &groupEmbedder{}
	for _, e := range entries {
		if e.Embedder == nil {
			continue
		}
		g.names = append(g.names, e.Name)
		g.items = append(g.items, e.Embedder)
	}
	switch len(g.items) {
	case 0:
		return nil
	case 1:
		return g.items[0]
	}
	return g
}

func (g *groupEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return fallback(ctx, "embedder", g.names, func(i int) ([]float32, error) {
		return g.items[i].Embed(ctx, text)
	})
}

// ModelName joins member names so a persisted vector is keyed by the whole group.
func (g *groupEmbedder) ModelName() string {
	names := make([]string, 0, len(g.names))
	for _, name := range g.names {
		if name != "" {
			names = append(names, name)
		}
	}
	return strings.Join(names, "|")
}

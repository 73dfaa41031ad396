// Package knowledge holds the document corpus answers are grounded on: loading and
// chunking source files, storing their embeddings, and nearest-neighbour retrieval.
package knowledge

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/ragcache/internal/model"
	"github.com/xxxsen/ragcache/internal/store"
	"go.uber.org/zap"
)

type DocumentIndex interface {
	SearchByText(ctx context.Context, query string, k int) ([]model.KnowledgeDoc, error)
}

type Resolver interface {
	Resolve(ctx context.Context, text string) ([]float32, error)
}

type Index struct {
	coll     store.Collection
	resolver Resolver
}

func NewIndex(coll store.Collection, resolver Resolver) *Index {
	return &Index{coll: coll, resolver: resolver}
}

// SearchByText returns up to k documents closest to query, nearest first.
func (i *Index) SearchByText(ctx context.Context, query string, k int) ([]model.KnowledgeDoc, error) {
	if k <= 0 {
		k = 1
	}
	vec, err := i.resolver.Resolve(ctx, query)
	if err != nil {
		return nil, err
	}
	matches, err := i.coll.Nearest(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", i.coll.Name(), err)
	}
	docs := make([]model.KnowledgeDoc, 0, len(matches))
	for _, m := range matches {
		docs = append(docs, model.KnowledgeDoc{Text: m.Content, Metadata: m.Payload})
	}
	return docs, nil
}

// Ingest embeds and stores docs. Every doc must carry a number; the doc id is taken from
// the id metadata when present and derived from the number otherwise, so re-ingesting the
// same corpus overwrites instead of duplicating.
func (i *Index) Ingest(ctx context.Context, docs []model.KnowledgeDoc) (int, error) {
	logger := logutil.GetLogger(ctx)
	count := 0
	for _, doc := range docs {
		number := strings.TrimSpace(doc.Metadata[model.MetadataNumber])
		if number == "" {
			return count, fmt.Errorf("document without %q metadata", model.MetadataNumber)
		}
		id := strings.TrimSpace(doc.Metadata[MetadataID])
		if id == "" {
			id = "doc-" + number
		}
		vec, err := i.resolver.Resolve(ctx, doc.Text)
		if err != nil {
			return count, fmt.Errorf("embed document %s: %w", id, err)
		}
		if err := i.coll.Insert(ctx, id, doc.Text, vec, doc.Metadata); err != nil {
			return count, fmt.Errorf("insert document %s: %w", id, err)
		}
		count++
		if count%100 == 0 {
			logger.Info("knowledge ingest progress", zap.Int("done", count), zap.Int("total", len(docs)))
		}
	}
	logger.Info("knowledge ingest finished", zap.String("corpus", i.coll.Name()), zap.Int("docs", count))
	return count, nil
}

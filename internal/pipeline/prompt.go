package pipeline

import (
	"strconv"
	"strings"

	"github.com/xxxsen/ragcache/internal/model"
)

const (
	DefaultSystemPrompt = "You are a helpful assistant. Answer the question using only the provided context. " +
		"If the context does not contain the answer, say that you do not know."
	DefaultLinkTemplate = "https://example.link/{number}"
)

func buildUserPrompt(query string, docs []model.KnowledgeDoc) string {
	var sb strings.Builder
	sb.WriteString("Context:\n")
	for i, doc := range docs {
		sb.WriteString("[")
		sb.WriteString(strconv.Itoa(i + 1))
		sb.WriteString("] ")
		sb.WriteString(strings.TrimSpace(doc.Text))
		sb.WriteString("\n\n")
	}
	sb.WriteString("Question: ")
	sb.WriteString(query)
	return sb.String()
}

func referenceLink(template string, doc model.KnowledgeDoc) string {
	return strings.ReplaceAll(template, "{number}", doc.Metadata[model.MetadataNumber])
}

func buildAnswer(text string, docs []model.KnowledgeDoc, linkTemplate string) *model.CachedAnswer {
	texts := make([]string, 0, len(docs))
	metas := make([]map[string]string, 0, len(docs))
	refs := make([]string, 0, len(docs))
	for _, doc := range docs {
		texts = append(texts, doc.Text)
		meta := make(map[string]string, len(doc.Metadata))
		for k, v := range doc.Metadata {
			meta[k] = v
		}
		metas = append(metas, meta)
		refs = append(refs, referenceLink(linkTemplate, doc))
	}
	return &model.CachedAnswer{
		Answer:     text,
		Documents:  [][]string{texts},
		Metadatas:  [][]map[string]string{metas},
		References: refs,
	}
}

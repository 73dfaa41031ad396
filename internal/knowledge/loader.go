package knowledge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/ragcache/internal/model"
	"go.uber.org/zap"
)

const (
	MetadataSource    = "source"
	MetadataHeading   = "heading"
	MetadataChunkType = "chunk_type"
	MetadataID        = "id"

	maxSourceFileSize = 32 << 20
)

func isSupportedFile(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".md", ".markdown", ".json", ".jsonl":
		return true
	}
	return false
}

type rawDoc struct {
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Loader reads every supported file of a source and turns it into knowledge documents.
// Markdown files are chunked; json files hold an array of {text, metadata} objects and
// jsonl files hold one such object per line.
type Loader struct {
	source  Source
	chunker *Chunker
}

func NewLoader(source Source, chunker *Chunker) *Loader {
	if chunker == nil {
		chunker = NewChunker(0, 0)
	}
	return &Loader{source: source, chunker: chunker}
}

// Load returns documents that all carry a unique number. Explicit numbers are kept and
// the rest are numbered from 1, skipping numbers already taken.
func (l *Loader) Load(ctx context.Context) ([]model.KnowledgeDoc, error) {
	keys, err := l.source.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list %s source: %w", l.source.Type(), err)
	}
	var docs []model.KnowledgeDoc
	for _, key := range keys {
		items, err := l.loadFile(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", key, err)
		}
		logutil.GetLogger(ctx).Debug("knowledge file loaded", zap.String("key", key), zap.Int("docs", len(items)))
		docs = append(docs, items...)
	}
	assignNumbers(docs)
	return docs, nil
}

func (l *Loader) loadFile(ctx context.Context, key string) ([]model.KnowledgeDoc, error) {
	rc, err := l.source.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxSourceFileSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxSourceFileSize {
		return nil, fmt.Errorf("file larger than %d bytes", maxSourceFileSize)
	}
	switch strings.ToLower(path.Ext(key)) {
	case ".md", ".markdown":
		return l.markdownDocs(ctx, key, string(data)), nil
	case ".json":
		var raws []rawDoc
		if err := json.Unmarshal(data, &raws); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
		return convertRawDocs(key, raws), nil
	case ".jsonl":
		return jsonlDocs(key, data)
	}
	return nil, nil
}

func (l *Loader) markdownDocs(ctx context.Context, key, content string) []model.KnowledgeDoc {
	chunks := l.chunker.Chunk(ctx, content)
	docs := make([]model.KnowledgeDoc, 0, len(chunks))
	for _, c := range chunks {
		meta := map[string]string{
			MetadataSource:    key,
			MetadataChunkType: string(c.ChunkType),
		}
		if c.Heading != "" {
			meta[MetadataHeading] = c.Heading
		}
		docs = append(docs, model.KnowledgeDoc{Text: c.Content, Metadata: meta})
	}
	return docs
}

func jsonlDocs(key string, data []byte) ([]model.KnowledgeDoc, error) {
	var raws []rawDoc
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxSourceFileSize)
	line := 0
	for scanner.Scan() {
		line++
		b := bytes.TrimSpace(scanner.Bytes())
		if len(b) == 0 {
			continue
		}
		var raw rawDoc
		if err := json.Unmarshal(b, &raw); err != nil {
			return nil, fmt.Errorf("decode line %d: %w", line, err)
		}
		raws = append(raws, raw)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return convertRawDocs(key, raws), nil
}

func convertRawDocs(key string, raws []rawDoc) []model.KnowledgeDoc {
	docs := make([]model.KnowledgeDoc, 0, len(raws))
	for _, raw := range raws {
		if strings.TrimSpace(raw.Text) == "" {
			continue
		}
		meta := make(map[string]string, len(raw.Metadata)+1)
		for k, v := range raw.Metadata {
			meta[k] = stringifyValue(v)
		}
		if _, ok := meta[MetadataSource]; !ok {
			meta[MetadataSource] = key
		}
		docs = append(docs, model.KnowledgeDoc{Text: raw.Text, Metadata: meta})
	}
	return docs
}

func stringifyValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}

func assignNumbers(docs []model.KnowledgeDoc) {
	used := make(map[string]bool, len(docs))
	for _, d := range docs {
		if n := d.Metadata[model.MetadataNumber]; n != "" {
			used[n] = true
		}
	}
	next := 1
	for i := range docs {
		if docs[i].Metadata == nil {
			docs[i].Metadata = map[string]string{}
		}
		if docs[i].Metadata[model.MetadataNumber] != "" {
			continue
		}
		for used[strconv.Itoa(next)] {
			next++
		}
		n := strconv.Itoa(next)
		docs[i].Metadata[model.MetadataNumber] = n
		used[n] = true
		next++
	}
}

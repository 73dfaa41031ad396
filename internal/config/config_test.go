package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimal = `{
	"ai": {
		"embedder": [{"provider": "mock", "model": "mock"}],
		"generator": [{"provider": "mock", "model": "mock"}]
	}
}`

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimal))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, StoreTypeMemory, cfg.Store.Type)
	assert.Equal(t, "knowledge", cfg.KnowledgeCorpus)
	assert.Equal(t, "response_cache", cfg.CacheCorpus)
	assert.Equal(t, 0.1, cfg.Cache.Threshold)
	assert.Equal(t, 10000, cfg.EmbeddingCache.MaxEntries)
	assert.Equal(t, 1, cfg.Retrieval.TopK)
	assert.Equal(t, 4, cfg.Writer.Workers)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, "https://example.link/{number}", cfg.Retrieval.LinkTemplate)
	assert.Equal(t, 30*time.Second, cfg.TaskTimeoutDuration())
	assert.Equal(t, time.Duration(0), cfg.EmbeddingTTL())
	assert.Equal(t, "info", cfg.LogConfig.Level)
}

func TestParse_Overrides(t *testing.T) {
	cfg, err := Parse([]byte(`{
		"port": 9000,
		"store": {"type": "PGVector", "dimensions": 1536},
		"database": {"host": "localhost", "port": 5432},
		"cache": {"threshold": 0.2, "retention_days": 7},
		"writer": {"workers": 8, "queue_size": 16},
		"ai": {
			"embedder": [{"name": "primary", "provider": "openai", "model": "text-embedding-3-small", "data": {"api_key": "k"}}],
			"generator": [{"provider": "anthropic", "model": "claude"}, {"provider": "mock", "model": "mock"}]
		}
	}`))
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, StoreTypePGVector, cfg.Store.Type)
	assert.Equal(t, 0.2, cfg.Cache.Threshold)
	assert.Equal(t, 8, cfg.Writer.Workers)
	assert.Len(t, cfg.AI.Generator, 2)
	data, ok := cfg.AI.Embedder[0].Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "k", data["api_key"])
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"bad json", `{`},
		{"no embedder", `{"ai": {"generator": [{"provider": "mock", "model": "m"}]}}`},
		{"no model", `{"ai": {"embedder": [{"provider": "mock"}], "generator": [{"provider": "mock", "model": "m"}]}}`},
		{"unknown store", `{"store": {"type": "redis"}, "ai": {"embedder": [{"provider": "mock", "model": "m"}], "generator": [{"provider": "mock", "model": "m"}]}}`},
		{"pgvector without db", `{"store": {"type": "pgvector", "dimensions": 3}, "ai": {"embedder": [{"provider": "mock", "model": "m"}], "generator": [{"provider": "mock", "model": "m"}]}}`},
		{"pgvector without dims", `{"store": {"type": "pgvector"}, "database": {"dsn": "x"}, "ai": {"embedder": [{"provider": "mock", "model": "m"}], "generator": [{"provider": "mock", "model": "m"}]}}`},
		{"persist without db", `{"embedding_cache": {"persist": true}, "ai": {"embedder": [{"provider": "mock", "model": "m"}], "generator": [{"provider": "mock", "model": "m"}]}}`},
		{"same corpus", `{"knowledge_corpus": "x", "cache_corpus": "x", "ai": {"embedder": [{"provider": "mock", "model": "m"}], "generator": [{"provider": "mock", "model": "m"}]}}`},
		{"threshold too large", `{"cache": {"threshold": 3}, "ai": {"embedder": [{"provider": "mock", "model": "m"}], "generator": [{"provider": "mock", "model": "m"}]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.raw))
			assert.Error(t, err)
		})
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(minimal), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIComplete_SendsSystemAndUserMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openAIChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "be brief", req.Messages[0].Content)
		assert.Equal(t, "user", req.Messages[1].Role)
		assert.Equal(t, "what is go?", req.Messages[1].Content)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  a language  "}}]}`))
	}))
	defer server.Close()

	p, err := NewProvider("openai", map[string]interface{}{"api_key": "test-key", "base_url": server.URL})
	require.NoError(t, err)
	gen := NewGenerator(p, "gpt-4o-mini")

	res, err := gen.Complete(context.Background(), "be brief", "what is go?")
	require.NoError(t, err)
	assert.Equal(t, "a language", res)
}

func TestOpenAIComplete_OmitsEmptySystemPrompt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openAIChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 1)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer server.Close()

	p, err := NewProvider("openai", map[string]interface{}{"api_key": "k", "base_url": server.URL})
	require.NoError(t, err)
	res, err := p.Complete(context.Background(), "m", "", "hi")
	require.NoError(t, err)
	assert.Equal(t, "ok", res)
}

func TestOpenAIEmbed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		var req openAIEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test text", req.Input)
		assert.Equal(t, "text-embedding-3-small", req.Model)
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer server.Close()

	p, err := NewEmbedProvider("openai", map[string]interface{}{"api_key": "k", "base_url": server.URL})
	require.NoError(t, err)
	emb := NewEmbedder(p, "text-embedding-3-small")

	vec, err := emb.Embed(context.Background(), "test text")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, "text-embedding-3-small", emb.ModelName())
}

func TestOpenAIEmbed_HTTPErrorIsProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "Invalid API key"}}`))
	}))
	defer server.Close()

	p, err := NewEmbedProvider("openai", map[string]interface{}{"api_key": "bad", "base_url": server.URL})
	require.NoError(t, err)
	emb := NewEmbedder(p, "m")

	_, err = emb.Embed(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProvider))
	assert.Contains(t, err.Error(), "401")
}

func TestOpenAIWithoutKeyIsUnavailable(t *testing.T) {
	p, err := NewEmbedProvider("openai", map[string]interface{}{})
	require.NoError(t, err)
	_, err = NewEmbedder(p, "m").Embed(context.Background(), "x")
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestNewProvider_Unknown(t *testing.T) {
	_, err := NewProvider("nope", map[string]interface{}{})
	require.Error(t, err)
	_, err = NewEmbedProvider("", nil)
	require.Error(t, err)
}

func TestOpenRouter_SendsAttributionHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer or-key", r.Header.Get("Authorization"))
		assert.Equal(t, "https://ragcache.local", r.Header.Get("HTTP-Referer"))
		assert.Equal(t, "ragcache", r.Header.Get("X-Title"))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"routed"}}]}`))
	}))
	defer server.Close()

	p, err := NewProvider("openrouter", map[string]interface{}{
		"api_key":      "or-key",
		"base_url":     server.URL + "/",
		"http_referer": "https://ragcache.local",
		"x_title":      "ragcache",
	})
	require.NoError(t, err)
	res, err := p.Complete(context.Background(), "m", "sys", "hi")
	require.NoError(t, err)
	assert.Equal(t, "routed", res)
}

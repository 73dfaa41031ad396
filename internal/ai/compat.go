package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// compatProvider speaks the OpenAI chat/embeddings wire format. openai and openrouter
// differ only in base url and headers.
type compatProvider struct {
	name       string
	baseURL    string
	apiKey     string
	headers    map[string]string
	dimensions int
	client     *http.Client
}

type openAIChatMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatRequest struct {
	Model    string          `json:"model"`
	Messages []openAIChatMsg `json:"messages"`
	Stream   bool            `json:"stream"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type openAIEmbedRequest struct {
	Model      string `json:"model"`
	Input      string `json:"input"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func newCompatProvider(name, baseURL, apiKey string, headers map[string]string, dimensions int) *compatProvider {
	return &compatProvider{
		name:       name,
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     strings.TrimSpace(apiKey),
		headers:    headers,
		dimensions: dimensions,
		client:     http.DefaultClient,
	}
}

func (p *compatProvider) Name() string {
	return p.name
}

func (p *compatProvider) Complete(ctx context.Context, model string, systemPrompt string, userPrompt string) (string, error) {
	msgs := make([]openAIChatMsg, 0, 2)
	if strings.TrimSpace(systemPrompt) != "" {
		msgs = append(msgs, openAIChatMsg{Role: "system", Content: systemPrompt})
	}
	msgs = append(msgs, openAIChatMsg{Role: "user", Content: userPrompt})

	var out openAIChatResponse
	if err := p.post(ctx, "/chat/completions", openAIChatRequest{Model: model, Messages: msgs}, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%s response has no choices", p.name)
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

func (p *compatProvider) Embed(ctx context.Context, model string, text string) ([]float32, error) {
	var out openAIEmbedResponse
	req := openAIEmbedRequest{Model: model, Input: text, Dimensions: p.dimensions}
	if err := p.post(ctx, "/embeddings", req, &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%s response has no embeddings", p.name)
	}
	return out.Data[0].Embedding, nil
}

func (p *compatProvider) post(ctx context.Context, path string, in interface{}, out interface{}) error {
	if p.apiKey == "" {
		return ErrUnavailable
	}
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: %s: %s", p.name, path, resp.Status, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

package ai

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const defaultMockDimensions = 256

type mockConfig struct {
	Dimensions int `json:"dimensions"`
}

// MockProvider runs without any upstream service. Embeddings are hashed bags of words,
// so texts sharing most words land close to each other in cosine distance.
type MockProvider struct {
	dimensions int
}

func NewMockProvider(dimensions int) *MockProvider {
	if dimensions <= 0 {
		dimensions = defaultMockDimensions
	}
	return &MockProvider{dimensions: dimensions}
}

func (m *MockProvider) Name() string {
	return "mock"
}

func (m *MockProvider) Embed(_ context.Context, _ string, text string) ([]float32, error) {
	return HashEmbedding(text, m.dimensions), nil
}

func (m *MockProvider) Complete(_ context.Context, _ string, _ string, userPrompt string) (string, error) {
	summary := strings.Join(strings.Fields(userPrompt), " ")
	if len(summary) > 200 {
		summary = summary[:200]
	}
	return fmt.Sprintf("Based on the provided context: %s", summary), nil
}

// HashEmbedding maps every lowercase word of text to a bucket and L2-normalizes the result.
func HashEmbedding(text string, dims int) []float32 {
	if dims <= 0 {
		dims = defaultMockDimensions
	}
	vec := make([]float32, dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	hasher := fnv.New32a()
	for _, w := range words {
		hasher.Reset()
		_, _ = hasher.Write([]byte(w))
		vec[hasher.Sum32()%uint32(dims)] += 1
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

func newMockFromArgs(args interface{}) *MockProvider {
	cfg := &mockConfig{}
	if args != nil {
		_ = decodeConfig(args, cfg)
	}
	return NewMockProvider(cfg.Dimensions)
}

func init() {
	Register("mock", func(args interface{}) (IAIProvider, error) {
		return newMockFromArgs(args), nil
	})
	RegisterEmbed("mock", func(args interface{}) (IEmbedProvider, error) {
		return newMockFromArgs(args), nil
	})
}

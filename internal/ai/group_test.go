package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	res   string
	err   error
	calls int
}

func (s *stubGenerator) Complete(context.Context, string, string) (string, error) {
	s.calls++
	return s.res, s.err
}

type stubEmbedder struct {
	vec []float32
	err error
}

func (s *stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	return s.vec, s.err
}

func (s *stubEmbedder) ModelName() string {
	return "stub"
}

func TestGroupGenerator_FallsBackInOrder(t *testing.T) {
	first := &stubGenerator{err: errors.New("boom")}
	second := &stubGenerator{res: "answer"}
	third := &stubGenerator{res: "unused"}
	g := NewGroupGenerator([]GeneratorEntry{
		{Name: "a", Generator: first},
		{Name: "b", Generator: second},
		{Name: "c", Generator: third},
	})

	res, err := g.Complete(context.Background(), "", "q")
	require.NoError(t, err)
	assert.Equal(t, "answer", res)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 0, third.calls)
}

func TestGroupGenerator_ReturnsLastError(t *testing.T) {
	last := errors.New("second failed")
	g := NewGroupGenerator([]GeneratorEntry{
		{Name: "a", Generator: &stubGenerator{err: errors.New("first failed")}},
		{Name: "b", Generator: &stubGenerator{err: last}},
	})
	_, err := g.Complete(context.Background(), "", "q")
	assert.ErrorIs(t, err, last)
}

func TestGroupEmbedder(t *testing.T) {
	g := NewGroupEmbedder([]EmbedderEntry{
		{Name: "a", Embedder: &stubEmbedder{err: errors.New("down")}},
		{Name: "b", Embedder: &stubEmbedder{vec: []float32{1}}},
	})
	vec, err := g.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, vec)
	assert.Equal(t, "a|b", g.ModelName())

	assert.Nil(t, NewGroupEmbedder(nil))
}

func TestHashEmbedding_SimilarTextsAreClose(t *testing.T) {
	a := HashEmbedding("What is machine learning?", 128)
	b := HashEmbedding("what is machine learning", 128)
	c := HashEmbedding("How do I bake sourdough bread", 128)

	assert.Len(t, a, 128)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestGroupGenerator_SkipsNilMembers(t *testing.T) {
	only := &stubGenerator{res: "ok"}
	g := NewGroupGenerator([]GeneratorEntry{{Name: "nil"}, {Name: "only", Generator: only}})
	assert.Same(t, only, g)
	assert.Nil(t, NewGroupGenerator([]GeneratorEntry{{Name: "nil"}}))
}

func TestGroupGenerator_StopsOnCancelledContext(t *testing.T) {
	first := &stubGenerator{err: errors.New("boom")}
	second := &stubGenerator{res: "unused"}
	g := NewGroupGenerator([]GeneratorEntry{
		{Name: "a", Generator: first},
		{Name: "b", Generator: second},
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.Complete(ctx, "", "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generator a")
	assert.Equal(t, 0, second.calls)
}

package embedder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicEmbedderIsUnitNormalized(t *testing.T) {
	e := NewDeterministic(32, 7)
	vecs, err := e.EmbedBatch(context.Background(), []string{"thủ tục đăng ký kết hôn"})
	require.NoError(t, err)
	require.Len(t, vecs, 1)

	var sum float64
	for _, x := range vecs[0] {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, sum, 1e-3)
}

func TestDeterministicEmbedderIsDeterministic(t *testing.T) {
	e := NewDeterministic(16, 42)
	a, err := e.EmbedBatch(context.Background(), []string{"đăng ký nghĩa vụ quân sự"})
	require.NoError(t, err)
	b, err := e.EmbedBatch(context.Background(), []string{"đăng ký nghĩa vụ quân sự"})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDeterministicEmbedderEmptyTextIsZeroVector(t *testing.T) {
	e := NewDeterministic(8, 1)
	vecs, err := e.EmbedBatch(context.Background(), []string{""})
	require.NoError(t, err)
	for _, x := range vecs[0] {
		assert.Zero(t, x)
	}
}

func TestNewOpenAIClientReportsModelAndDimension(t *testing.T) {
	e := NewOpenAIClient("test-key", "", "text-embedding-3-small", 1536)
	assert.Equal(t, "text-embedding-3-small", e.Name())
	assert.Equal(t, 1536, e.Dimension())
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 0}, []float32{1, 0}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 0}))
}

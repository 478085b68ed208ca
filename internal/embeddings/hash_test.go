package embeddings_test

import (
	"context"
	"math"
	"testing"

	"github.com/fyrsmithlabs/knowledged/internal/embeddings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHashProvider_Deterministic(t *testing.T) {
	p := embeddings.NewHashProvider(384)
	ctx := context.Background()

	a, err := p.EmbedQuery(ctx, "the sky is blue")
	require.NoError(t, err)
	b, err := p.EmbedQuery(ctx, "the sky is blue")
	require.NoError(t, err)
	c, err := p.EmbedQuery(ctx, "grass is green")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestHashProvider_Dimension(t *testing.T) {
	p := embeddings.NewHashProvider(384)
	assert.Equal(t, 384, p.Dimension())

	v, err := p.EmbedQuery(context.Background(), "text")
	require.NoError(t, err)
	assert.Len(t, v, 384)

	// Nonsense dimension falls back to the default.
	assert.Equal(t, 384, embeddings.NewHashProvider(0).Dimension())
}

func TestHashProvider_UnitNorm(t *testing.T) {
	p := embeddings.NewHashProvider(64)

	v, err := p.EmbedQuery(context.Background(), "some text")
	require.NoError(t, err)

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-4)
}

func TestHashProvider_EmbedDocuments(t *testing.T) {
	p := embeddings.NewHashProvider(384)

	vectors, err := p.EmbedDocuments(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.NotEqual(t, vectors[0], vectors[1])

	_, err = p.EmbedDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, embeddings.ErrEmptyInput)

	_, err = p.EmbedQuery(context.Background(), "")
	assert.ErrorIs(t, err, embeddings.ErrEmptyInput)
}

func TestNewProvider_Hash(t *testing.T) {
	p, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider:   "hash",
		VectorSize: 128,
	}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 128, p.Dimension())
}

func TestNewProvider_Unknown(t *testing.T) {
	_, err := embeddings.NewProvider(embeddings.ProviderConfig{Provider: "quantum"}, zap.NewNop())
	assert.ErrorIs(t, err, embeddings.ErrInvalidConfig)
}

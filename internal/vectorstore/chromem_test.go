package vectorstore_test

import (
	"context"
	"testing"

	"github.com/fyrsmithlabs/knowledged/internal/embeddings"
	"github.com/fyrsmithlabs/knowledged/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// wrongSizeEmbedder returns vectors of a fixed, wrong dimension.
type wrongSizeEmbedder struct {
	size int
}

func (e *wrongSizeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, e.size)
		out[i][0] = 1
	}
	return out, nil
}

func (e *wrongSizeEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	v := make([]float32, e.size)
	v[0] = 1
	return v, nil
}

func newTestStore(t *testing.T) *vectorstore.ChromemStore {
	t.Helper()

	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
		Path:       t.TempDir(),
		Collection: "test_collection",
		VectorSize: 384,
	}, embeddings.NewHashProvider(384), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestChromemConfig_ApplyDefaults(t *testing.T) {
	config := vectorstore.ChromemConfig{}
	config.ApplyDefaults()

	assert.Equal(t, "obsidian_knowledge", config.Collection)
	assert.Equal(t, 384, config.VectorSize)
}

func TestChromemConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		config    vectorstore.ChromemConfig
		wantError bool
	}{
		{
			name: "valid config",
			config: vectorstore.ChromemConfig{
				Path:       "/tmp/test",
				Collection: "test",
				VectorSize: 384,
			},
			wantError: false,
		},
		{
			name: "missing path",
			config: vectorstore.ChromemConfig{
				Collection: "test",
				VectorSize: 384,
			},
			wantError: true,
		},
		{
			name: "negative vector size",
			config: vectorstore.ChromemConfig{
				Path:       "/tmp/test",
				Collection: "test",
				VectorSize: -1,
			},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantError {
				assert.ErrorIs(t, err, vectorstore.ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewChromemStore_RequiresEmbedder(t *testing.T) {
	_, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{Path: t.TempDir()}, nil, nil)
	assert.ErrorIs(t, err, vectorstore.ErrInvalidConfig)
}

func TestChromemStore_AddDocuments(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ids, err := store.AddDocuments(ctx, []vectorstore.Document{
		{Content: "the sky is blue", Metadata: map[string]string{"file_name": "a.md"}},
		{Content: "grass is green", Metadata: map[string]string{"file_name": "b.md"}},
	})
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.NotEmpty(t, ids[0])
	assert.NotEqual(t, ids[0], ids[1])

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestChromemStore_AddDocuments_Empty(t *testing.T) {
	store := newTestStore(t)

	_, err := store.AddDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, vectorstore.ErrEmptyDocuments)
}

func TestChromemStore_AddDocuments_AccumulatesWithoutIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	doc := vectorstore.Document{Content: "same text", Metadata: map[string]string{"file_name": "a.md"}}

	_, err := store.AddDocuments(ctx, []vectorstore.Document{doc})
	require.NoError(t, err)
	_, err = store.AddDocuments(ctx, []vectorstore.Document{doc})
	require.NoError(t, err)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "re-inserting the same content must accumulate, not overwrite")
}

func TestChromemStore_AddDocuments_DimensionMismatch(t *testing.T) {
	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
		Path:       t.TempDir(),
		Collection: "test_collection",
		VectorSize: 384,
	}, &wrongSizeEmbedder{size: 3}, zap.NewNop())
	require.NoError(t, err)

	_, err = store.AddDocuments(context.Background(), []vectorstore.Document{
		{Content: "some text"},
	})
	assert.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)
}

func TestChromemStore_Search(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.AddDocuments(ctx, []vectorstore.Document{
		{Content: "the sky is blue", Metadata: map[string]string{"file_name": "a.md"}},
		{Content: "grass is green", Metadata: map[string]string{"file_name": "b.md"}},
		{Content: "roses are red", Metadata: map[string]string{"file_name": "c.md"}},
	})
	require.NoError(t, err)

	// The hash embedder maps identical text to identical vectors, so
	// the exact phrase is the closest hit.
	results, err := store.Search(ctx, "the sky is blue", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "the sky is blue", results[0].Content)
	assert.Equal(t, "a.md", results[0].Metadata["file_name"])
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestChromemStore_Search_CapsKAtCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.AddDocuments(ctx, []vectorstore.Document{
		{Content: "only entry"},
	})
	require.NoError(t, err)

	results, err := store.Search(ctx, "anything", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestChromemStore_Search_EmptyCollection(t *testing.T) {
	store := newTestStore(t)

	results, err := store.Search(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestChromemStore_Search_InvalidK(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Search(context.Background(), "anything", 0)
	assert.Error(t, err)
}

func TestChromemStore_DeleteWhere(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.AddDocuments(ctx, []vectorstore.Document{
		{Content: "chunk one", Metadata: map[string]string{"file_name": "a.md"}},
		{Content: "chunk two", Metadata: map[string]string{"file_name": "a.md"}},
		{Content: "chunk three", Metadata: map[string]string{"file_name": "b.md"}},
	})
	require.NoError(t, err)

	removed, err := store.DeleteWhere(ctx, map[string]string{"file_name": "a.md"})
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	removed, err = store.DeleteWhere(ctx, map[string]string{"file_name": "a.md"})
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestChromemStore_DeleteWhere_EmptyFilter(t *testing.T) {
	store := newTestStore(t)

	_, err := store.DeleteWhere(context.Background(), nil)
	assert.Error(t, err)
}

func TestChromemStore_Clear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.AddDocuments(ctx, []vectorstore.Document{
		{Content: "chunk one"},
		{Content: "chunk two"},
	})
	require.NoError(t, err)

	require.NoError(t, store.Clear(ctx))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// The collection must be usable again after clearing.
	_, err = store.AddDocuments(ctx, []vectorstore.Document{{Content: "fresh"}})
	require.NoError(t, err)
}

package vector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agent-brain/core/internal/model"
)

func newTestChromemStore(t *testing.T) Store {
	t.Helper()
	store, err := NewChromemStore(t.TempDir(), 3)
	require.NoError(t, err)
	return store
}

func TestChromemStoreUpsertAndGet(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()

	chunk := model.Chunk{
		ChunkID:    "c1",
		Text:       "hello world",
		TokenCount: 2,
		Metadata:   model.ChunkMetadata{ChunkID: "c1", Source: "a.go", SourceType: model.SourceCode},
	}
	emb := model.Embedding{ChunkID: "c1", Vector: []float32{1, 0, 0}}

	require.NoError(t, store.Upsert(ctx, []model.Embedding{emb}, []model.Chunk{chunk}))

	got, ok, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello world", got.Text)
	assert.Equal(t, "a.go", got.Metadata.Source)

	_, ok, err = store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestChromemStoreUpsertDimensionMismatch(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()

	chunk := model.Chunk{ChunkID: "c1", Text: "x", Metadata: model.ChunkMetadata{ChunkID: "c1"}}
	emb := model.Embedding{ChunkID: "c1", Vector: []float32{1, 0}}

	err := store.Upsert(ctx, []model.Embedding{emb}, []model.Chunk{chunk})
	require.Error(t, err)
}

func TestChromemStoreSearchAndCount(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()

	chunks := []model.Chunk{
		{ChunkID: "c1", Text: "alpha", Metadata: model.ChunkMetadata{ChunkID: "c1", Source: "a.go", SourceType: model.SourceCode}},
		{ChunkID: "c2", Text: "beta", Metadata: model.ChunkMetadata{ChunkID: "c2", Source: "b.md", SourceType: model.SourceDoc}},
	}
	embs := []model.Embedding{
		{ChunkID: "c1", Vector: []float32{1, 0, 0}},
		{ChunkID: "c2", Vector: []float32{0, 1, 0}},
	}
	require.NoError(t, store.Upsert(ctx, embs, chunks))

	count, err := store.Count(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	filtered, err := store.Count(ctx, Filter{Eq: map[string]string{"source_type": "doc"}})
	require.NoError(t, err)
	assert.Equal(t, 1, filtered)

	results, err := store.Search(ctx, []float32{1, 0, 0}, 5, 0, Filter{})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "c1", results[0].ChunkID)
}

func TestChromemStoreReset(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()

	chunk := model.Chunk{ChunkID: "c1", Text: "x", Metadata: model.ChunkMetadata{ChunkID: "c1"}}
	emb := model.Embedding{ChunkID: "c1", Vector: []float32{1, 0, 0}}
	require.NoError(t, store.Upsert(ctx, []model.Embedding{emb}, []model.Chunk{chunk}))

	require.NoError(t, store.Reset(ctx))

	count, err := store.Count(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	_, ok, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFilterMatches(t *testing.T) {
	f := Filter{
		Eq: map[string]string{"source_type": "code"},
		In: map[string][]string{"language": {"go", "python"}},
	}
	assert.True(t, f.Matches(map[string]string{"source_type": "code", "language": "go"}))
	assert.False(t, f.Matches(map[string]string{"source_type": "code", "language": "rust"}))
	assert.False(t, f.Matches(map[string]string{"source_type": "doc", "language": "go"}))
}

package tasks

import (
	"context"
	"strconv"
	"testing"

	"github.com/lysyi3m/truth-news/app/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndex_SyncsEachCollectionOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedChunks(t, env, "https://e.com/a")

	p := env.pipeline(Options{IndexBatchSize: 2})
	_, err := p.Embed(ctx, EmbedOptions{})
	require.NoError(t, err)

	stats, err := p.Index(ctx, IndexOptions{})
	require.NoError(t, err)
	assert.Equal(t, IndexStats{Indexed: 3, Batches: 2}, stats)

	collection, err := env.store.Collection(DefaultCollectionName)
	require.NoError(t, err)
	count, err := collection.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	stats, err = p.Index(ctx, IndexOptions{})
	require.NoError(t, err)
	assert.Equal(t, IndexStats{}, stats)

	v2 := env.pipeline(Options{CollectionName: "news_v2"})
	stats, err = v2.Index(ctx, IndexOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Indexed)
	stats, err = v2.Index(ctx, IndexOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Indexed)

	chunks, err := env.chunkRepo.GetChunksByURL(ctx, "https://e.com/a")
	require.NoError(t, err)
	for _, c := range chunks {
		assert.NotNil(t, c.IndexedAt)
		names, err := env.chunkRepo.GetIndexedCollections(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"news_openai_v1", "news_v2"}, names)
	}
}

func TestIndex_StoresDocumentAndMetadata(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedChunks(t, env, "https://e.com/a")

	p := env.pipeline(Options{})
	_, err := p.Embed(ctx, EmbedOptions{})
	require.NoError(t, err)
	_, err = p.Index(ctx, IndexOptions{})
	require.NoError(t, err)

	chunks, err := env.chunkRepo.GetChunksByURL(ctx, "https://e.com/a")
	require.NoError(t, err)
	first := chunks[0]

	collection, err := env.store.Collection(DefaultCollectionName)
	require.NoError(t, err)
	match, err := collection.Get(ctx, strconv.FormatInt(first.ID, 10))
	require.NoError(t, err)
	require.NotNil(t, match)

	assert.Equal(t, first.Text, match.Document)
	assert.Equal(t, "https://e.com/a", match.Metadata["url"])
	assert.Equal(t, "src", match.Metadata["source_id"])
	assert.Equal(t, float64(0), match.Metadata["chunk_index"])
	assert.Equal(t, "title", match.Metadata["title"])
	assert.Equal(t, testModel, match.Metadata["embedding_model"])
	assert.NotContains(t, match.Metadata, "published_at")

	hits, err := collection.Query(ctx, first.Embedding, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, match.ID, hits[0].ID)
	assert.InDelta(t, 0, hits[0].Distance, 1e-6)
}

func TestIndex_ReembeddedChunksAreIndexedAgain(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedChunks(t, env, "https://e.com/a")

	p := env.pipeline(Options{})
	_, err := p.Embed(ctx, EmbedOptions{})
	require.NoError(t, err)
	_, err = p.Index(ctx, IndexOptions{})
	require.NoError(t, err)

	reembed := NewEmbedTask(embedding.NewMockEmbedder("test-embed-v2", 8), env.chunkRepo, 0)
	require.NoError(t, reembed.Execute(ctx))
	require.Equal(t, 3, reembed.Stats.Embedded)

	chunks, err := env.chunkRepo.GetChunksByURL(ctx, "https://e.com/a")
	require.NoError(t, err)
	for _, c := range chunks {
		assert.Nil(t, c.IndexedAt)
	}

	stats, err := p.Index(ctx, IndexOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Indexed)

	collection, err := env.store.Collection(DefaultCollectionName)
	require.NoError(t, err)
	count, err := collection.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count, "upsert replaces records by chunk id")
}

func TestIndex_WithoutVectorStore(t *testing.T) {
	env := newTestEnv(t)
	deps := env.deps()
	deps.VectorStore = nil

	_, err := NewPipeline(deps, Options{}).Index(context.Background(), IndexOptions{})
	assert.ErrorIs(t, err, errNoVectorStore)
}

func TestIndex_CallOptionsSelectCollection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedChunks(t, env, "https://e.com/a")

	p := env.pipeline(Options{})
	_, err := p.Embed(ctx, EmbedOptions{})
	require.NoError(t, err)

	stats, err := p.Index(ctx, IndexOptions{CollectionName: "news_eval", BatchSize: 1})
	require.NoError(t, err)
	assert.Equal(t, IndexStats{Indexed: 3, Batches: 3}, stats)

	collection, err := env.store.Collection("news_eval")
	require.NoError(t, err)
	count, err := collection.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	stats, err = p.Index(ctx, IndexOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Indexed, "the default collection still needs its own copy")
}

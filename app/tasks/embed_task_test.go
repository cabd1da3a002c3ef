package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lysyi3m/truth-news/app/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedChunks stores one 1000 token article and splits it into three chunks
func seedChunks(t *testing.T, env *testEnv, url string) {
	t.Helper()
	env.seedArticle(t, "src", url, words(1000, "w"), time.Now().UTC())
	_, err := env.pipeline(Options{}).Chunk(context.Background())
	require.NoError(t, err)
}

func TestEmbed_OnlyMissingOrStaleVectors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedChunks(t, env, "https://e.com/a")

	stats, err := env.pipeline(Options{EmbedBatchSize: 2}).Embed(ctx, EmbedOptions{})
	require.NoError(t, err)
	assert.Equal(t, EmbedStats{Embedded: 3, Batches: 2}, stats)
	assert.Equal(t, 2, env.embedder.CallCount())

	chunks, err := env.chunkRepo.GetChunksByURL(ctx, "https://e.com/a")
	require.NoError(t, err)
	for _, c := range chunks {
		assert.Equal(t, testModel, c.EmbeddingModel)
		assert.Equal(t, 8, c.EmbeddingDim)
		assert.Equal(t, embedding.DeterministicVector(c.Text, 8), c.Embedding)
		assert.NotNil(t, c.EmbeddingCreatedAt)
	}

	stats, err = env.pipeline(Options{EmbedBatchSize: 2}).Embed(ctx, EmbedOptions{})
	require.NoError(t, err)
	assert.Equal(t, EmbedStats{}, stats)
	assert.Equal(t, 2, env.embedder.CallCount())

	other := embedding.NewMockEmbedder("other-model", 4)
	task := NewEmbedTask(other, env.chunkRepo, 0)
	require.NoError(t, task.Execute(ctx))
	assert.Equal(t, 3, task.Stats.Embedded)

	chunks, err = env.chunkRepo.GetChunksByURL(ctx, "https://e.com/a")
	require.NoError(t, err)
	for _, c := range chunks {
		assert.Equal(t, "other-model", c.EmbeddingModel)
		assert.Equal(t, 4, c.EmbeddingDim)
	}
}

func TestEmbed_CountMismatchIsFatal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedChunks(t, env, "https://e.com/a")

	env.embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1, 0}}, nil
	}

	_, err := env.pipeline(Options{}).Embed(ctx, EmbedOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmbeddingCountMismatch))
	assert.True(t, isPermanent(err))

	chunks, err := env.chunkRepo.GetChunksByURL(ctx, "https://e.com/a")
	require.NoError(t, err)
	for _, c := range chunks {
		assert.Nil(t, c.Embedding)
	}
}

func TestEmbed_ProviderErrorIsPropagated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedChunks(t, env, "https://e.com/a")

	env.embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("rate limited")
	}

	_, err := env.pipeline(Options{}).Embed(ctx, EmbedOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
	assert.False(t, isPermanent(err))
}

func TestEmbed_MissingCredentials(t *testing.T) {
	env := newTestEnv(t)
	seedChunks(t, env, "https://e.com/a")

	task := NewEmbedTask(nil, env.chunkRepo, 0)
	err := task.Execute(context.Background())
	assert.ErrorIs(t, err, embedding.ErrMissingCredentials)
	assert.Equal(t, EmbedStats{}, task.Stats)
}

func TestEmbed_ConcurrentBatches(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedChunks(t, env, "https://e.com/a")
	seedChunks(t, env, "https://e.com/b")

	stats, err := env.pipeline(Options{EmbedBatchSize: 1, BatchConcurrency: 3}).Embed(ctx, EmbedOptions{})
	require.NoError(t, err)
	assert.Equal(t, EmbedStats{Embedded: 6, Batches: 6}, stats)
}

func TestEmbed_CallOptionsOverridePipelineDefaults(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedChunks(t, env, "https://e.com/a")

	p := env.pipeline(Options{EmbedBatchSize: 32})
	stats, err := p.Embed(ctx, EmbedOptions{Model: testModel, Dimensions: 8, BatchSize: 1})
	require.NoError(t, err)
	assert.Equal(t, EmbedStats{Embedded: 3, Batches: 3}, stats)
}

func TestEmbed_ModelMismatchIsPermanent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedChunks(t, env, "https://e.com/a")

	_, err := env.pipeline(Options{EmbeddingModel: "text-embedding-3-large"}).Embed(ctx, EmbedOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmbeddingModelMismatch))
	assert.True(t, isPermanent(err))
	assert.Equal(t, 0, env.embedder.CallCount())
}

func TestEmbed_DimensionMismatchSavesNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedChunks(t, env, "https://e.com/a")

	_, err := env.pipeline(Options{}).Embed(ctx, EmbedOptions{Dimensions: 16})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmbeddingDimensionMismatch))
	assert.True(t, isPermanent(err))

	pending, err := env.chunkRepo.GetChunksForEmbedding(ctx, testModel, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 3)
}

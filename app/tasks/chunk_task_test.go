package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk_SplitsCanonicalArticlesOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	base := time.Now().UTC()

	env.seedArticle(t, "src", "https://e.com/long", words(1000, "w"), base)
	env.seedArticle(t, "src", "https://e.com/short", "Short text.", base.Add(time.Second))
	env.seedArticle(t, "src", "https://e.com/copy", "Short text.", base.Add(time.Minute))

	p := env.pipeline(Options{})
	_, err := p.Dedupe(ctx)
	require.NoError(t, err)

	stats, err := p.Chunk(ctx)
	require.NoError(t, err)
	assert.Equal(t, ChunkStats{Articles: 2, Chunks: 4}, stats)

	chunks, err := env.chunkRepo.GetChunksByURL(ctx, "https://e.com/long")
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkIndex)
		assert.Len(t, c.ChunkHash, 64)
		assert.Nil(t, c.Embedding)
		assert.Equal(t, "src", c.SourceID)
	}
	assert.Equal(t, 420, chunks[0].TokenCount)
	assert.Equal(t, 420, chunks[1].TokenCount)
	assert.Equal(t, 280, chunks[2].TokenCount)
	assert.Contains(t, chunks[1].Text, "w360")
	assert.Contains(t, chunks[0].Text, "w360")

	copies, err := env.chunkRepo.GetChunksByURL(ctx, "https://e.com/copy")
	require.NoError(t, err)
	assert.Empty(t, copies)

	stats, err = p.Chunk(ctx)
	require.NoError(t, err)
	assert.Equal(t, ChunkStats{}, stats)
}

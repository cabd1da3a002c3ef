package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupe_EarliestArticleStaysCanonical(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	env.seedArticle(t, "src", "https://e.com/b", "Same story.", base)
	env.seedArticle(t, "src", "https://e.com/a", "Same story.", base)
	env.seedArticle(t, "src", "https://e.com/c", "Same story.", base.Add(time.Minute))
	env.seedArticle(t, "src", "https://e.com/d", "Different story.", base.Add(2*time.Minute))

	stats, err := env.pipeline(Options{}).Dedupe(ctx)
	require.NoError(t, err)
	assert.Equal(t, DedupeStats{Scanned: 4, Duplicates: 2}, stats)

	expected := map[string]string{
		"https://e.com/a": "",
		"https://e.com/b": "https://e.com/a",
		"https://e.com/c": "https://e.com/a",
		"https://e.com/d": "",
	}
	for url, canonical := range expected {
		article, err := env.articleRepo.GetArticle(ctx, url)
		require.NoError(t, err)
		assert.Equal(t, canonical, article.DuplicateOfURL, url)
	}

	stats, err = env.pipeline(Options{}).Dedupe(ctx)
	require.NoError(t, err)
	assert.Equal(t, DedupeStats{Scanned: 2}, stats)
}

func TestDedupe_LaterCopyAcrossRuns(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	env.seedArticle(t, "src", "https://e.com/first", "Wire story.", base)
	_, err := env.pipeline(Options{}).Dedupe(ctx)
	require.NoError(t, err)

	env.seedArticle(t, "other", "https://other.com/copy", "Wire story.", base.Add(time.Hour))
	stats, err := env.pipeline(Options{}).Dedupe(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Duplicates)

	article, err := env.articleRepo.GetArticle(ctx, "https://other.com/copy")
	require.NoError(t, err)
	assert.Equal(t, "https://e.com/first", article.DuplicateOfURL)
}

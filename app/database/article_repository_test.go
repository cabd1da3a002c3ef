package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArticleRepository_SaveExtractionMarksItem(t *testing.T) {
	db := newTestDB(t)
	seedSource(t, db, "src")
	ctx := context.Background()

	seedArticle(t, db, "https://e.com/a", "h1", time.Now())

	items, err := NewItemRepository(db).GetItemsBySource(ctx, "src")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, ItemStatusExtracted, items[0].Status)

	article, err := NewArticleRepository(db).GetArticle(ctx, "https://e.com/a")
	require.NoError(t, err)
	require.NotNil(t, article)
	assert.Equal(t, "h1", article.TextHash)
	assert.Empty(t, article.DuplicateOfURL)
}

func TestArticleRepository_GetArticlesForDedupe_Order(t *testing.T) {
	db := newTestDB(t)
	seedSource(t, db, "src")
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	seedArticle(t, db, "https://e.com/c", "h", base.Add(2*time.Minute))
	seedArticle(t, db, "https://e.com/b", "h", base)
	seedArticle(t, db, "https://e.com/a", "h", base)

	articles, err := NewArticleRepository(db).GetArticlesForDedupe(ctx)
	require.NoError(t, err)
	require.Len(t, articles, 3)
	assert.Equal(t, "https://e.com/a", articles[0].URL)
	assert.Equal(t, "https://e.com/b", articles[1].URL)
	assert.Equal(t, "https://e.com/c", articles[2].URL)
}

func TestArticleRepository_MarkDuplicateFlattensChains(t *testing.T) {
	db := newTestDB(t)
	seedSource(t, db, "src")
	repo := NewArticleRepository(db)
	ctx := context.Background()

	base := time.Now()
	seedArticle(t, db, "https://e.com/old", "h", base)
	seedArticle(t, db, "https://e.com/mid", "h", base.Add(time.Minute))
	seedArticle(t, db, "https://e.com/new", "h", base.Add(2*time.Minute))

	require.NoError(t, repo.MarkDuplicate(ctx, "https://e.com/new", "https://e.com/mid"))
	require.NoError(t, repo.MarkDuplicate(ctx, "https://e.com/mid", "https://e.com/old"))

	for _, u := range []string{"https://e.com/mid", "https://e.com/new"} {
		a, err := repo.GetArticle(ctx, u)
		require.NoError(t, err)
		assert.Equal(t, "https://e.com/old", a.DuplicateOfURL, u)
	}

	assert.Error(t, repo.MarkDuplicate(ctx, "https://e.com/old", "https://e.com/old"))
}

func TestArticleRepository_FindEarlierCanonical(t *testing.T) {
	db := newTestDB(t)
	seedSource(t, db, "src")
	repo := NewArticleRepository(db)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	seedArticle(t, db, "https://e.com/b", "h", base)
	seedArticle(t, db, "https://e.com/c", "h", base)
	seedArticle(t, db, "https://e.com/a", "h", base.Add(time.Minute))
	seedArticle(t, db, "https://e.com/z", "other", base.Add(-time.Hour))

	url, err := repo.FindEarlierCanonical(ctx, ArticleForDedupe{URL: "https://e.com/a", TextHash: "h", ExtractedAt: base.Add(time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, "https://e.com/b", url)

	url, err = repo.FindEarlierCanonical(ctx, ArticleForDedupe{URL: "https://e.com/c", TextHash: "h", ExtractedAt: base})
	require.NoError(t, err)
	assert.Equal(t, "https://e.com/b", url, "equal extraction times fall back to url order")

	url, err = repo.FindEarlierCanonical(ctx, ArticleForDedupe{URL: "https://e.com/b", TextHash: "h", ExtractedAt: base})
	require.NoError(t, err)
	assert.Empty(t, url)

	require.NoError(t, repo.MarkDuplicate(ctx, "https://e.com/b", "https://e.com/c"))
	url, err = repo.FindEarlierCanonical(ctx, ArticleForDedupe{URL: "https://e.com/a", TextHash: "h", ExtractedAt: base.Add(time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, "https://e.com/c", url, "duplicates are never returned")
}

func TestArticleRepository_ReextractionClearsDuplicatePointer(t *testing.T) {
	db := newTestDB(t)
	seedSource(t, db, "src")
	repo := NewArticleRepository(db)
	ctx := context.Background()

	base := time.Now()
	seedArticle(t, db, "https://e.com/a", "h", base)
	seedArticle(t, db, "https://e.com/b", "h", base.Add(time.Minute))
	require.NoError(t, repo.MarkDuplicate(ctx, "https://e.com/b", "https://e.com/a"))

	seedArticle(t, db, "https://e.com/b", "h2", base.Add(2*time.Minute))

	b, err := repo.GetArticle(ctx, "https://e.com/b")
	require.NoError(t, err)
	assert.Empty(t, b.DuplicateOfURL)
	assert.Equal(t, "h2", b.TextHash)
}

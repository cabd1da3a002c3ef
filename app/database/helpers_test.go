package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewConnection(filepath.Join(t.TempDir(), "news.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedSource(t *testing.T, db *DB, id string) {
	t.Helper()

	err := NewSourceRepository(db).UpsertSource(context.Background(), Source{
		ID:                   id,
		Name:                 "Source " + id,
		Enabled:              true,
		FetchIntervalMinutes: 30,
	})
	require.NoError(t, err)
}

func seedArticle(t *testing.T, db *DB, url, hash string, extractedAt time.Time) {
	t.Helper()

	ctx := context.Background()
	items := NewItemRepository(db)
	require.NoError(t, items.UpsertItem(ctx, FeedItem{SourceID: "src", URL: url, Title: "t"}, extractedAt))

	queued, err := items.GetQueuedItems(ctx, 0)
	require.NoError(t, err)

	var itemID int64
	for _, it := range queued {
		if it.URL == url {
			itemID = it.ID
		}
	}
	require.NotZero(t, itemID)

	err = NewArticleRepository(db).SaveExtraction(ctx, itemID, Article{
		URL:         url,
		SourceID:    "src",
		FinalURL:    url,
		Text:        "text of " + hash,
		ExtractedAt: extractedAt,
		TextHash:    hash,
	})
	require.NoError(t, err)
}

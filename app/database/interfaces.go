package database

import (
	"context"
	"time"
)

type SourceRepository interface {
	UpsertSource(ctx context.Context, source Source) error
	GetSource(ctx context.Context, sourceID string) (*Source, error)
	MarkSourceSuccess(ctx context.Context, sourceID string, at time.Time) error
	MarkSourceError(ctx context.Context, sourceID string, at time.Time, message string) error
	ListSourcesHealth(ctx context.Context) ([]SourceHealth, error)
}

type ItemRepository interface {
	UpsertItem(ctx context.Context, item FeedItem, fetchedAt time.Time) error
	GetItem(ctx context.Context, itemID int64) (*Item, error)
	GetItemsBySource(ctx context.Context, sourceID string) ([]Item, error)
	GetQueuedItems(ctx context.Context, limit int) ([]Item, error)
	MarkItemFailed(ctx context.Context, itemID int64, reason string) error
}

type ArticleRepository interface {
	SaveExtraction(ctx context.Context, itemID int64, article Article) error
	GetArticle(ctx context.Context, url string) (*Article, error)
	GetArticlesForDedupe(ctx context.Context) ([]ArticleForDedupe, error)
	FindEarlierCanonical(ctx context.Context, article ArticleForDedupe) (string, error)
	MarkDuplicate(ctx context.Context, url, canonicalURL string) error
	GetArticlesForChunking(ctx context.Context) ([]ArticleForChunking, error)
}

type ChunkRepository interface {
	InsertChunks(ctx context.Context, chunks []NewChunk, createdAt time.Time) (int, error)
	GetChunksByURL(ctx context.Context, url string) ([]Chunk, error)
	GetChunksForEmbedding(ctx context.Context, model string, limit int) ([]ChunkForEmbedding, error)
	SaveEmbeddings(ctx context.Context, embeddings []ChunkEmbedding, model string, at time.Time) error
	GetChunksForIndexing(ctx context.Context, collectionName string, limit int) ([]ChunkForIndexing, error)
	MarkIndexed(ctx context.Context, chunkIDs []int64, collectionName string, at time.Time) error
	GetIndexedCollections(ctx context.Context, chunkID int64) ([]string, error)
}

type MaintenanceRepository interface {
	GetStats(ctx context.Context) (*StoreStats, error)
	ResetChunksAndIndex(ctx context.Context) error
	ResetAll(ctx context.Context) error
}

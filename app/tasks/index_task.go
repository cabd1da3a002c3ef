package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/lysyi3m/truth-news/app/database"
	"github.com/lysyi3m/truth-news/app/vectorstore"
)

const (
	DefaultCollectionName = "news_openai_v1"
	DefaultIndexBatchSize = 64
)

// IndexTask pushes embedded chunks that are not yet members of the collection to the vector store
type IndexTask struct {
	Task
	Limit       int
	BatchSize   int
	Concurrency int
	Stats       IndexStats

	collection *vectorstore.Collection
	chunkRepo  database.ChunkRepository
	now        func() time.Time
	mu         sync.Mutex
}

func NewIndexTask(collection *vectorstore.Collection, chunkRepo database.ChunkRepository, batchSize int) *IndexTask {
	if batchSize <= 0 {
		batchSize = DefaultIndexBatchSize
	}
	return &IndexTask{
		Task:        NewTask(TaskTypeIndex, collection.Name()),
		BatchSize:   batchSize,
		Concurrency: 1,
		collection:  collection,
		chunkRepo:   chunkRepo,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (t *IndexTask) Execute(ctx context.Context) error {
	chunks, err := t.chunkRepo.GetChunksForIndexing(ctx, t.collection.Name(), t.Limit)
	if err != nil {
		return fmt.Errorf("failed to get chunks for indexing: %w", err)
	}

	batches := splitBatches(chunks, t.BatchSize)
	err = runBatches(ctx, len(batches), t.Concurrency, func(ctx context.Context, i int) error {
		return t.indexBatch(ctx, batches[i])
	})
	if err != nil {
		return err
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"collection", t.collection.Name(),
		"duration", t.GetDuration(),
		"indexed", t.Stats.Indexed,
		"batches", t.Stats.Batches)

	return nil
}

func (t *IndexTask) indexBatch(ctx context.Context, batch []database.ChunkForIndexing) error {
	ids := make([]string, len(batch))
	documents := make([]string, len(batch))
	metadatas := make([]vectorstore.Metadata, len(batch))
	embeddings := make([][]float32, len(batch))
	chunkIDs := make([]int64, len(batch))

	for i, c := range batch {
		ids[i] = strconv.FormatInt(c.ID, 10)
		documents[i] = c.Text
		metadatas[i] = chunkMetadata(c)
		embeddings[i] = c.Embedding
		chunkIDs[i] = c.ID
	}

	if err := t.collection.Upsert(ctx, ids, documents, metadatas, embeddings); err != nil {
		return err
	}
	if err := t.chunkRepo.MarkIndexed(ctx, chunkIDs, t.collection.Name(), t.now()); err != nil {
		return err
	}

	t.mu.Lock()
	t.Stats.Indexed += len(batch)
	t.Stats.Batches++
	t.mu.Unlock()
	return nil
}

// chunkMetadata builds the vector store payload; empty optional values are left out
func chunkMetadata(c database.ChunkForIndexing) vectorstore.Metadata {
	meta := vectorstore.Metadata{
		"url":         c.URL,
		"source_id":   c.SourceID,
		"chunk_index": c.ChunkIndex,
	}
	if c.PublishedAt != "" {
		meta["published_at"] = c.PublishedAt
	}
	if c.Title != "" {
		meta["title"] = c.Title
	}
	if c.EmbeddingModel != "" {
		meta["embedding_model"] = c.EmbeddingModel
	}
	return meta
}

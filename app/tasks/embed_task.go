package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/truth-news/app/database"
	"github.com/lysyi3m/truth-news/app/embedding"
)

// EmbedTask fills in vectors for chunks that have none or were embedded by another model
type EmbedTask struct {
	Task
	// Limit caps the number of chunks selected; zero or negative means all
	Limit int
	// Model and Dimensions, when set, are checked against the embedder and its vectors
	Model       string
	Dimensions  int
	BatchSize   int
	Concurrency int
	Stats       EmbedStats

	embedder  embedding.Embedder
	chunkRepo database.ChunkRepository
	now       func() time.Time
	mu        sync.Mutex
}

func NewEmbedTask(embedder embedding.Embedder, chunkRepo database.ChunkRepository, batchSize int) *EmbedTask {
	if batchSize <= 0 {
		batchSize = embedding.DefaultBatchSize
	}
	return &EmbedTask{
		Task:        NewTask(TaskTypeEmbed, "chunks"),
		BatchSize:   batchSize,
		Concurrency: 1,
		embedder:    embedder,
		chunkRepo:   chunkRepo,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (t *EmbedTask) Execute(ctx context.Context) error {
	if t.embedder == nil {
		return embedding.ErrMissingCredentials
	}
	model := t.embedder.Model()
	if t.Model != "" && t.Model != model {
		return fmt.Errorf("%w: requested %q, embedder produces %q", ErrEmbeddingModelMismatch, t.Model, model)
	}

	chunks, err := t.chunkRepo.GetChunksForEmbedding(ctx, model, t.Limit)
	if err != nil {
		return fmt.Errorf("failed to get chunks for embedding: %w", err)
	}

	batches := splitBatches(chunks, t.BatchSize)
	err = runBatches(ctx, len(batches), t.Concurrency, func(ctx context.Context, i int) error {
		return t.embedBatch(ctx, batches[i], model)
	})
	if err != nil {
		return err
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"duration", t.GetDuration(),
		"model", model,
		"embedded", t.Stats.Embedded,
		"batches", t.Stats.Batches)

	return nil
}

func (t *EmbedTask) embedBatch(ctx context.Context, batch []database.ChunkForEmbedding, model string) error {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Text
	}

	vectors, err := t.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed batch: %w", err)
	}
	if len(vectors) != len(batch) {
		return fmt.Errorf("%w: expected %d got %d", ErrEmbeddingCountMismatch, len(batch), len(vectors))
	}
	if t.Dimensions > 0 {
		for i, v := range vectors {
			if len(v) != t.Dimensions {
				return fmt.Errorf("%w: chunk %d has %d, expected %d",
					ErrEmbeddingDimensionMismatch, batch[i].ID, len(v), t.Dimensions)
			}
		}
	}

	rows := make([]database.ChunkEmbedding, len(batch))
	for i, c := range batch {
		rows[i] = database.ChunkEmbedding{ChunkID: c.ID, Vector: vectors[i]}
	}
	if err := t.chunkRepo.SaveEmbeddings(ctx, rows, model, t.now()); err != nil {
		return err
	}

	t.mu.Lock()
	t.Stats.Embedded += len(rows)
	t.Stats.Batches++
	t.mu.Unlock()
	return nil
}

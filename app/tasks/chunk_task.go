package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/truth-news/app/chunker"
	"github.com/lysyi3m/truth-news/app/database"
)

// ChunkTask splits canonical articles without chunks into overlapping token windows.
// Existing chunks are never rewritten, even when the window parameters change.
type ChunkTask struct {
	Task
	Stats ChunkStats

	chunker     *chunker.Chunker
	articleRepo database.ArticleRepository
	chunkRepo   database.ChunkRepository
	now         func() time.Time
}

func NewChunkTask(c *chunker.Chunker, articleRepo database.ArticleRepository, chunkRepo database.ChunkRepository) *ChunkTask {
	return &ChunkTask{
		Task:        NewTask(TaskTypeChunk, "articles"),
		chunker:     c,
		articleRepo: articleRepo,
		chunkRepo:   chunkRepo,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (t *ChunkTask) Execute(ctx context.Context) error {
	articles, err := t.articleRepo.GetArticlesForChunking(ctx)
	if err != nil {
		return fmt.Errorf("failed to get articles for chunking: %w", err)
	}

	for _, article := range articles {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		t.Stats.Articles++

		pieces := t.chunker.Split(article.URL, article.Text)
		rows := make([]database.NewChunk, 0, len(pieces))
		for _, piece := range pieces {
			if piece.Text == "" {
				continue
			}
			rows = append(rows, database.NewChunk{
				URL:         article.URL,
				SourceID:    article.SourceID,
				Title:       article.Title,
				PublishedAt: article.PublishedAt,
				ChunkIndex:  piece.Index,
				Text:        piece.Text,
				ChunkHash:   piece.Hash,
				TokenCount:  piece.TokenCount,
			})
		}

		inserted, err := t.chunkRepo.InsertChunks(ctx, rows, t.now())
		if err != nil {
			return err
		}
		t.Stats.Chunks += inserted
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"duration", t.GetDuration(),
		"articles", t.Stats.Articles,
		"chunks", t.Stats.Chunks)

	return nil
}

package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/truth-news/app/database"
)

// DedupeTask marks canonical articles whose text hash matches an earlier canonical article.
// Articles are visited oldest first (extracted_at, then url), so the earliest copy stays canonical.
type DedupeTask struct {
	Task
	Stats DedupeStats

	articleRepo database.ArticleRepository
}

func NewDedupeTask(articleRepo database.ArticleRepository) *DedupeTask {
	return &DedupeTask{
		Task:        NewTask(TaskTypeDedupe, "articles"),
		articleRepo: articleRepo,
	}
}

func (t *DedupeTask) Execute(ctx context.Context) error {
	articles, err := t.articleRepo.GetArticlesForDedupe(ctx)
	if err != nil {
		return fmt.Errorf("failed to get articles for dedupe: %w", err)
	}

	canonicalByHash := make(map[string]string)
	for _, article := range articles {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		t.Stats.Scanned++

		canonicalURL, ok := canonicalByHash[article.TextHash]
		if !ok {
			canonicalURL, err = t.articleRepo.FindEarlierCanonical(ctx, article)
			if err != nil {
				return err
			}
			if canonicalURL == "" {
				canonicalByHash[article.TextHash] = article.URL
				continue
			}
			canonicalByHash[article.TextHash] = canonicalURL
		}

		if canonicalURL == article.URL {
			continue
		}
		if err := t.articleRepo.MarkDuplicate(ctx, article.URL, canonicalURL); err != nil {
			return err
		}
		t.Stats.Duplicates++
		slog.Debug("Duplicate article", "url", article.URL, "canonical", canonicalURL)
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"duration", t.GetDuration(),
		"scanned", t.Stats.Scanned,
		"duplicates", t.Stats.Duplicates)

	return nil
}

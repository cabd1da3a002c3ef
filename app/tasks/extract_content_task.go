package tasks

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/truth-news/app/content"
	"github.com/lysyi3m/truth-news/app/database"
	"github.com/lysyi3m/truth-news/app/extract"
)

const DefaultPageTimeout = 30 * time.Second

var errNoText = errors.New("No article text extracted")

// ItemOutcome is the result of extracting one queued item: either an article or a failure reason
type ItemOutcome struct {
	Item    database.Item
	Article *database.Article
	Reason  string
}

func (o ItemOutcome) Ok() bool {
	return o.Article != nil
}

// ExtractContentTask downloads queued items and turns them into articles
type ExtractContentTask struct {
	Task
	// Limit caps the number of queued items processed; zero or negative means all
	Limit int
	Stats ExtractStats

	fetcher     PageFetcher
	parser      extract.HTMLParser
	itemRepo    database.ItemRepository
	articleRepo database.ArticleRepository
	timeout     time.Duration
	now         func() time.Time
}

func NewExtractContentTask(limit int, fetcher PageFetcher, parser extract.HTMLParser,
	itemRepo database.ItemRepository, articleRepo database.ArticleRepository) *ExtractContentTask {
	return &ExtractContentTask{
		Task:        NewTask(TaskTypeExtractContent, "queued"),
		Limit:       limit,
		fetcher:     fetcher,
		parser:      parser,
		itemRepo:    itemRepo,
		articleRepo: articleRepo,
		timeout:     DefaultPageTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (t *ExtractContentTask) Execute(ctx context.Context) error {
	items, err := t.itemRepo.GetQueuedItems(ctx, t.Limit)
	if err != nil {
		return fmt.Errorf("failed to get queued items: %w", err)
	}

	if len(items) == 0 {
		slog.Debug("No queued items to extract")
	}

	for _, item := range items {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		outcome := t.extractItem(ctx, item)
		if !outcome.Ok() && ctx.Err() != nil {
			return ctx.Err()
		}

		if err := t.record(ctx, outcome); err != nil {
			return err
		}
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"duration", t.GetDuration(),
		"processed", t.Stats.Processed,
		"extracted", t.Stats.Extracted,
		"failed", t.Stats.Failed)

	return nil
}

// record persists an outcome. Errors returned here are store failures and abort the run.
func (t *ExtractContentTask) record(ctx context.Context, outcome ItemOutcome) error {
	t.Stats.Processed++

	if outcome.Ok() {
		if err := t.articleRepo.SaveExtraction(ctx, outcome.Item.ID, *outcome.Article); err != nil {
			return fmt.Errorf("failed to save article: %w", err)
		}
		t.Stats.Extracted++
		slog.Debug("Content extracted successfully", "item_id", outcome.Item.ID, "url", outcome.Item.URL,
			"content_length", len(outcome.Article.Text))
		return nil
	}

	if err := t.itemRepo.MarkItemFailed(ctx, outcome.Item.ID, outcome.Reason); err != nil {
		return fmt.Errorf("failed to update extraction status: %w", err)
	}
	t.Stats.Failed++
	slog.Warn("Failed to extract content for item", "item_id", outcome.Item.ID, "url", outcome.Item.URL,
		"error", outcome.Reason)
	return nil
}

func (t *ExtractContentTask) extractItem(ctx context.Context, item database.Item) ItemOutcome {
	article, err := t.extractArticle(ctx, item)
	if err != nil {
		return ItemOutcome{Item: item, Reason: err.Error()}
	}
	return ItemOutcome{Item: item, Article: article}
}

func (t *ExtractContentTask) extractArticle(ctx context.Context, item database.Item) (*database.Article, error) {
	resp, err := t.fetcher.Get(ctx, item.URL, t.timeout)
	if err != nil {
		return nil, err
	}

	doc, err := t.parser.Run(resp.Body, resp.FinalURL)
	if err != nil {
		return nil, fmt.Errorf("failed to extract content: %w", err)
	}

	text := content.Normalize(doc.Text)
	if text == "" {
		return nil, errNoText
	}

	return &database.Article{
		URL:         item.URL,
		SourceID:    item.SourceID,
		FinalURL:    cmp.Or(resp.FinalURL, item.URL),
		Title:       cmp.Or(item.Title, doc.Title),
		PublishedAt: item.PublishedAt,
		Author:      doc.Author,
		Text:        text,
		ExtractedAt: t.now(),
		TextHash:    content.TextHash(text),
	}, nil
}

package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/truth-news/app/database"
	"github.com/lysyi3m/truth-news/app/feed"
	"github.com/lysyi3m/truth-news/app/sources"
)

const DefaultFeedTimeout = 20 * time.Second

// FetchFeedsTask pulls every feed of every enabled source and queues new or updated entries
type FetchFeedsTask struct {
	Task
	Sources []sources.Source
	// Since drops entries published before now-Since; zero or negative keeps everything
	Since time.Duration
	// RespectIntervals skips sources fetched successfully less than fetch_interval_minutes ago
	RespectIntervals bool
	Stats            FetchStats

	fetcher    PageFetcher
	parser     feed.Parser
	sourceRepo database.SourceRepository
	itemRepo   database.ItemRepository
	timeout    time.Duration
	now        func() time.Time
}

func NewFetchFeedsTask(srcs []sources.Source, since time.Duration, fetcher PageFetcher, parser feed.Parser,
	sourceRepo database.SourceRepository, itemRepo database.ItemRepository) *FetchFeedsTask {
	return &FetchFeedsTask{
		Task:       NewTask(TaskTypeFetchFeeds, "all"),
		Sources:    srcs,
		Since:      since,
		fetcher:    fetcher,
		parser:     parser,
		sourceRepo: sourceRepo,
		itemRepo:   itemRepo,
		timeout:    DefaultFeedTimeout,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (t *FetchFeedsTask) Execute(ctx context.Context) error {
	var cutoff *time.Time
	if t.Since > 0 {
		c := t.now().Add(-t.Since)
		cutoff = &c
	}

	for _, src := range t.Sources {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := t.sourceRepo.UpsertSource(ctx, database.Source{
			ID:                   src.ID,
			Name:                 src.Name,
			Country:              src.Country,
			Category:             src.Category,
			Enabled:              src.Enabled,
			FetchIntervalMinutes: src.FetchIntervalMinutes,
			TrustRank:            src.TrustRank,
		})
		if err != nil {
			return err
		}

		if !src.Enabled {
			slog.Debug("Source disabled, skipping", "source", src.ID)
			t.Stats.SkippedSources++
			continue
		}

		if t.RespectIntervals {
			due, err := t.isDue(ctx, src)
			if err != nil {
				return err
			}
			if !due {
				slog.Debug("Source not due for refresh yet", "source", src.ID)
				t.Stats.SkippedSources++
				continue
			}
		}

		t.Stats.Sources++
		for _, feedURL := range src.RSSURLs {
			if err := t.processFeed(ctx, src.ID, feedURL, cutoff); err != nil {
				return err
			}
		}
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"duration", t.GetDuration(),
		"sources", t.Stats.Sources,
		"feeds", t.Stats.Feeds,
		"fetched", t.Stats.FetchedItems,
		"queued", t.Stats.QueuedItems,
		"errors", t.Stats.Errors,
		"skipped", t.Stats.SkippedSources)

	return nil
}

func (t *FetchFeedsTask) isDue(ctx context.Context, src sources.Source) (bool, error) {
	stored, err := t.sourceRepo.GetSource(ctx, src.ID)
	if err != nil {
		return false, err
	}
	if stored == nil || stored.LastSuccessAt == nil {
		return true, nil
	}
	return !stored.LastSuccessAt.Add(src.FetchInterval()).After(t.now()), nil
}

// processFeed handles one feed URL. Fetch and parse failures are recorded on the source and
// counted; only store failures and cancellation are returned.
func (t *FetchFeedsTask) processFeed(ctx context.Context, sourceID, feedURL string, cutoff *time.Time) error {
	t.Stats.Feeds++
	fetchedAt := t.now()

	entries, err := t.fetchEntries(ctx, feedURL)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("Feed fetch failed", "source", sourceID, "feed", feedURL, "error", err)
		t.Stats.Errors++
		return t.sourceRepo.MarkSourceError(ctx, sourceID, fetchedAt, err.Error())
	}

	t.Stats.FetchedItems += len(entries)
	for _, entry := range entries {
		if entry.Link == "" {
			continue
		}
		if cutoff != nil && entry.PublishedAt != nil && entry.PublishedAt.Before(*cutoff) {
			continue
		}

		err := t.itemRepo.UpsertItem(ctx, database.FeedItem{
			SourceID:    sourceID,
			GUID:        entry.GUID,
			URL:         entry.Link,
			Title:       entry.Title,
			PublishedAt: entry.Published,
		}, fetchedAt)
		if err != nil {
			return err
		}
		t.Stats.QueuedItems++
	}

	return t.sourceRepo.MarkSourceSuccess(ctx, sourceID, fetchedAt)
}

func (t *FetchFeedsTask) fetchEntries(ctx context.Context, feedURL string) ([]feed.Entry, error) {
	resp, err := t.fetcher.Get(ctx, feedURL, t.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}

	entries, err := t.parser.Run(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}
	return entries, nil
}

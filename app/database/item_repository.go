package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

var _ ItemRepository = (*ItemRepo)(nil)

// ItemRepo handles database operations for feed items
type ItemRepo struct {
	db *DB
}

func NewItemRepository(db *DB) *ItemRepo {
	return &ItemRepo{db: db}
}

// UpsertItem stores a feed entry as queued. Items are unique per (source, guid) when a guid
// is present and per (source, url) otherwise; a re-fetch refreshes title, published_at and
// fetched_at and clears the error. The stored url is kept.
func (r *ItemRepo) UpsertItem(ctx context.Context, item FeedItem, fetchedAt time.Time) error {
	query := `
		INSERT INTO rss_items (source_id, guid, url, title, published_at, fetched_at, status, error)
		VALUES (?, ?, ?, ?, ?, ?, 'queued', NULL)
		ON CONFLICT(source_id, url) WHERE guid IS NULL DO UPDATE SET
			title = excluded.title,
			published_at = excluded.published_at,
			fetched_at = excluded.fetched_at,
			status = 'queued',
			error = NULL
	`
	if item.GUID != "" {
		query = `
			INSERT INTO rss_items (source_id, guid, url, title, published_at, fetched_at, status, error)
			VALUES (?, ?, ?, ?, ?, ?, 'queued', NULL)
			ON CONFLICT(source_id, guid) WHERE guid IS NOT NULL DO UPDATE SET
				title = excluded.title,
				published_at = excluded.published_at,
				fetched_at = excluded.fetched_at,
				status = 'queued',
				error = NULL
		`
	}

	_, err := r.db.ExecContext(ctx, query, item.SourceID, nullString(item.GUID), item.URL,
		nullString(item.Title), nullString(item.PublishedAt), FormatTime(fetchedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert item: %w", err)
	}
	return nil
}

const itemColumns = `item_id, source_id, COALESCE(guid, ''), url, COALESCE(title, ''),
	COALESCE(published_at, ''), fetched_at, status, COALESCE(error, '')`

func scanItem(row interface{ Scan(...any) error }) (Item, error) {
	var (
		item      Item
		fetchedAt string
		status    string
	)
	err := row.Scan(&item.ID, &item.SourceID, &item.GUID, &item.URL, &item.Title,
		&item.PublishedAt, &fetchedAt, &status, &item.Error)
	if err != nil {
		return item, err
	}
	item.FetchedAt = mustTime(fetchedAt)
	item.Status = ItemStatus(status)
	return item, nil
}

func (r *ItemRepo) GetItem(ctx context.Context, itemID int64) (*Item, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM rss_items WHERE item_id = ?`, itemID)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return &item, nil
}

func (r *ItemRepo) GetItemsBySource(ctx context.Context, sourceID string) ([]Item, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM rss_items WHERE source_id = ? ORDER BY item_id`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get items by source: %w", err)
	}
	return collectItems(rows)
}

// GetQueuedItems returns queued items oldest first; limit <= 0 returns all of them
func (r *ItemRepo) GetQueuedItems(ctx context.Context, limit int) ([]Item, error) {
	query := `SELECT ` + itemColumns + ` FROM rss_items WHERE status = 'queued' ORDER BY item_id ASC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get queued items: %w", err)
	}
	return collectItems(rows)
}

func (r *ItemRepo) MarkItemFailed(ctx context.Context, itemID int64, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE rss_items SET status = 'failed', error = ? WHERE item_id = ?
	`, reason, itemID)
	if err != nil {
		return fmt.Errorf("failed to mark item failed: %w", err)
	}
	return nil
}

func collectItems(rows *sql.Rows) ([]Item, error) {
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item rows: %w", err)
	}
	return items, nil
}

package database

import (
	"context"
	"database/sql"
	"fmt"
)

var _ MaintenanceRepository = (*MaintenanceRepo)(nil)

// MaintenanceRepo covers store-wide statistics and destructive resets
type MaintenanceRepo struct {
	db *DB
}

func NewMaintenanceRepository(db *DB) *MaintenanceRepo {
	return &MaintenanceRepo{db: db}
}

func (r *MaintenanceRepo) GetStats(ctx context.Context) (*StoreStats, error) {
	var s StoreStats
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM sources),
			(SELECT COUNT(*) FROM rss_items),
			(SELECT COUNT(*) FROM rss_items WHERE status = 'queued'),
			(SELECT COUNT(*) FROM rss_items WHERE status = 'extracted'),
			(SELECT COUNT(*) FROM rss_items WHERE status = 'failed'),
			(SELECT COUNT(*) FROM articles),
			(SELECT COUNT(*) FROM articles WHERE duplicate_of_url IS NOT NULL),
			(SELECT COUNT(*) FROM chunks),
			(SELECT COUNT(*) FROM chunks WHERE embedding IS NOT NULL),
			(SELECT COUNT(*) FROM indexed_chunks)
	`).Scan(&s.Sources, &s.Items, &s.QueuedItems, &s.ExtractedItems, &s.FailedItems,
		&s.Articles, &s.DuplicateArticles, &s.Chunks, &s.EmbeddedChunks, &s.IndexMemberships)
	if err != nil {
		return nil, fmt.Errorf("failed to get store stats: %w", err)
	}
	return &s, nil
}

// ResetChunksAndIndex deletes chunks and index membership, keeping items and articles
func (r *MaintenanceRepo) ResetChunksAndIndex(ctx context.Context) error {
	return r.deleteTables(ctx, "indexed_chunks", "chunks")
}

// ResetAll deletes every row the pipeline owns
func (r *MaintenanceRepo) ResetAll(ctx context.Context) error {
	return r.deleteTables(ctx, "indexed_chunks", "chunks", "articles", "rss_items", "sources")
}

func (r *MaintenanceRepo) deleteTables(ctx context.Context, tables ...string) error {
	return r.db.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range tables {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		return nil
	})
}

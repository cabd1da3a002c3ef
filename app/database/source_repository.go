package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

var _ SourceRepository = (*SourceRepo)(nil)

// SourceRepo handles database operations for sources
type SourceRepo struct {
	db *DB
}

func NewSourceRepository(db *DB) *SourceRepo {
	return &SourceRepo{db: db}
}

// UpsertSource inserts or refreshes a source from configuration, keeping its fetch outcome
func (r *SourceRepo) UpsertSource(ctx context.Context, source Source) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sources (source_id, name, country, category, enabled, fetch_interval_minutes, trust_rank)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id) DO UPDATE SET
			name = excluded.name,
			country = excluded.country,
			category = excluded.category,
			enabled = excluded.enabled,
			fetch_interval_minutes = excluded.fetch_interval_minutes,
			trust_rank = excluded.trust_rank
	`, source.ID, source.Name, nullString(source.Country), nullString(source.Category),
		source.Enabled, source.FetchIntervalMinutes, source.TrustRank)
	if err != nil {
		return fmt.Errorf("failed to upsert source: %w", err)
	}
	return nil
}

func (r *SourceRepo) GetSource(ctx context.Context, sourceID string) (*Source, error) {
	var (
		s                        Source
		lastSuccess, lastErrorAt sql.NullString
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT source_id, name, COALESCE(country, ''), COALESCE(category, ''), enabled,
		       fetch_interval_minutes, trust_rank, last_success_at, last_error_at, COALESCE(last_error, '')
		FROM sources
		WHERE source_id = ?
	`, sourceID).Scan(&s.ID, &s.Name, &s.Country, &s.Category, &s.Enabled,
		&s.FetchIntervalMinutes, &s.TrustRank, &lastSuccess, &lastErrorAt, &s.LastError)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}

	s.LastSuccessAt = scanTime(lastSuccess)
	s.LastErrorAt = scanTime(lastErrorAt)
	return &s, nil
}

func (r *SourceRepo) MarkSourceSuccess(ctx context.Context, sourceID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sources SET last_success_at = ?, last_error = NULL WHERE source_id = ?
	`, FormatTime(at), sourceID)
	if err != nil {
		return fmt.Errorf("failed to mark source success: %w", err)
	}
	return nil
}

func (r *SourceRepo) MarkSourceError(ctx context.Context, sourceID string, at time.Time, message string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sources SET last_error_at = ?, last_error = ? WHERE source_id = ?
	`, FormatTime(at), message, sourceID)
	if err != nil {
		return fmt.Errorf("failed to mark source error: %w", err)
	}
	return nil
}

// ListSourcesHealth returns per-source item counts by status, ordered by source id
func (r *SourceRepo) ListSourcesHealth(ctx context.Context) ([]SourceHealth, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.source_id, s.name, s.enabled,
		       COUNT(i.item_id),
		       COALESCE(SUM(CASE WHEN i.status = 'queued' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN i.status = 'extracted' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN i.status = 'failed' THEN 1 ELSE 0 END), 0),
		       s.last_success_at, s.last_error_at, COALESCE(s.last_error, '')
		FROM sources s
		LEFT JOIN rss_items i ON i.source_id = s.source_id
		GROUP BY s.source_id
		ORDER BY s.source_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources health: %w", err)
	}
	defer rows.Close()

	var result []SourceHealth
	for rows.Next() {
		var (
			h                        SourceHealth
			lastSuccess, lastErrorAt sql.NullString
		)
		if err := rows.Scan(&h.SourceID, &h.Name, &h.Enabled, &h.TotalItems, &h.QueuedItems,
			&h.ExtractedItems, &h.FailedItems, &lastSuccess, &lastErrorAt, &h.LastError); err != nil {
			return nil, fmt.Errorf("failed to scan source health row: %w", err)
		}
		h.LastSuccessAt = scanTime(lastSuccess)
		h.LastErrorAt = scanTime(lastErrorAt)
		result = append(result, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source health rows: %w", err)
	}
	return result, nil
}

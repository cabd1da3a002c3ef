package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

var _ ChunkRepository = (*ChunkRepo)(nil)

// ChunkRepo handles database operations for chunks and their index membership
type ChunkRepo struct {
	db *DB
}

func NewChunkRepository(db *DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// InsertChunks inserts the chunks of one article in a single transaction, ignoring rows whose
// chunk_hash already exists, and returns the number of rows actually inserted
func (r *ChunkRepo) InsertChunks(ctx context.Context, chunks []NewChunk, createdAt time.Time) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	inserted := 0
	err := r.db.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO chunks (url, source_id, title, published_at, chunk_index, text, chunk_hash,
			                    token_count, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(chunk_hash) DO NOTHING
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare chunk insert: %w", err)
		}
		defer stmt.Close()

		created := FormatTime(createdAt)
		for _, c := range chunks {
			res, err := stmt.ExecContext(ctx, c.URL, c.SourceID, nullString(c.Title), nullString(c.PublishedAt),
				c.ChunkIndex, c.Text, c.ChunkHash, c.TokenCount, created)
			if err != nil {
				return fmt.Errorf("failed to insert chunk: %w", err)
			}
			if n, err := res.RowsAffected(); err == nil {
				inserted += int(n)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func (r *ChunkRepo) GetChunksByURL(ctx context.Context, url string) ([]Chunk, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT chunk_id, url, source_id, COALESCE(title, ''), COALESCE(published_at, ''), chunk_index,
		       text, chunk_hash, token_count, embedding, COALESCE(embedding_model, ''),
		       COALESCE(embedding_dim, 0), embedding_created_at, created_at, indexed_at
		FROM chunks
		WHERE url = ?
		ORDER BY chunk_index ASC, chunk_id ASC
	`, url)
	if err != nil {
		return nil, fmt.Errorf("failed to get chunks: %w", err)
	}
	defer rows.Close()

	var result []Chunk
	for rows.Next() {
		var (
			c                              Chunk
			embedding, embeddedAt, indexed sql.NullString
			createdAt                      string
		)
		if err := rows.Scan(&c.ID, &c.URL, &c.SourceID, &c.Title, &c.PublishedAt, &c.ChunkIndex,
			&c.Text, &c.ChunkHash, &c.TokenCount, &embedding, &c.EmbeddingModel, &c.EmbeddingDim,
			&embeddedAt, &createdAt, &indexed); err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}
		if embedding.Valid {
			if c.Embedding, err = decodeVector(embedding.String); err != nil {
				return nil, err
			}
		}
		c.EmbeddingCreatedAt = scanTime(embeddedAt)
		c.CreatedAt = mustTime(createdAt)
		c.IndexedAt = scanTime(indexed)
		result = append(result, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chunk rows: %w", err)
	}
	return result, nil
}

// GetChunksForEmbedding selects chunks with no embedding or one produced by a different model
func (r *ChunkRepo) GetChunksForEmbedding(ctx context.Context, model string, limit int) ([]ChunkForEmbedding, error) {
	query := `
		SELECT chunk_id, text
		FROM chunks
		WHERE embedding IS NULL OR embedding_model IS NULL OR embedding_model != ?
		ORDER BY chunk_id ASC
	`
	args := []any{model}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get chunks for embedding: %w", err)
	}
	defer rows.Close()

	var result []ChunkForEmbedding
	for rows.Next() {
		var c ChunkForEmbedding
		if err := rows.Scan(&c.ID, &c.Text); err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}
		result = append(result, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chunk rows: %w", err)
	}
	return result, nil
}

// SaveEmbeddings persists one batch of vectors. Index membership of the affected chunks is
// dropped so the new vectors are pushed to the vector store again.
func (r *ChunkRepo) SaveEmbeddings(ctx context.Context, embeddings []ChunkEmbedding, model string, at time.Time) error {
	if len(embeddings) == 0 {
		return nil
	}

	return r.db.withTx(ctx, func(tx *sql.Tx) error {
		update, err := tx.PrepareContext(ctx, `
			UPDATE chunks
			SET embedding = ?, embedding_model = ?, embedding_dim = ?, embedding_created_at = ?, indexed_at = NULL
			WHERE chunk_id = ?
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare embedding update: %w", err)
		}
		defer update.Close()

		unindex, err := tx.PrepareContext(ctx, `DELETE FROM indexed_chunks WHERE chunk_id = ?`)
		if err != nil {
			return fmt.Errorf("failed to prepare membership delete: %w", err)
		}
		defer unindex.Close()

		created := FormatTime(at)
		for _, e := range embeddings {
			encoded, err := encodeVector(e.Vector)
			if err != nil {
				return err
			}
			if _, err := update.ExecContext(ctx, encoded, model, len(e.Vector), created, e.ChunkID); err != nil {
				return fmt.Errorf("failed to save embedding: %w", err)
			}
			if _, err := unindex.ExecContext(ctx, e.ChunkID); err != nil {
				return fmt.Errorf("failed to drop index membership: %w", err)
			}
		}
		return nil
	})
}

// GetChunksForIndexing selects embedded chunks that have no membership for collectionName
func (r *ChunkRepo) GetChunksForIndexing(ctx context.Context, collectionName string, limit int) ([]ChunkForIndexing, error) {
	query := `
		SELECT c.chunk_id, c.url, c.source_id, COALESCE(c.title, ''), COALESCE(c.published_at, ''),
		       c.chunk_index, c.text, c.embedding, COALESCE(c.embedding_model, '')
		FROM chunks c
		WHERE c.embedding IS NOT NULL
		  AND NOT EXISTS (
		      SELECT 1 FROM indexed_chunks i
		      WHERE i.chunk_id = c.chunk_id AND i.collection_name = ?
		  )
		ORDER BY c.chunk_id ASC
	`
	args := []any{collectionName}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get chunks for indexing: %w", err)
	}
	defer rows.Close()

	var result []ChunkForIndexing
	for rows.Next() {
		var (
			c         ChunkForIndexing
			embedding string
		)
		if err := rows.Scan(&c.ID, &c.URL, &c.SourceID, &c.Title, &c.PublishedAt, &c.ChunkIndex,
			&c.Text, &embedding, &c.EmbeddingModel); err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}
		if c.Embedding, err = decodeVector(embedding); err != nil {
			return nil, err
		}
		result = append(result, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chunk rows: %w", err)
	}
	return result, nil
}

// MarkIndexed records membership of the chunks in collectionName
func (r *ChunkRepo) MarkIndexed(ctx context.Context, chunkIDs []int64, collectionName string, at time.Time) error {
	if len(chunkIDs) == 0 {
		return nil
	}

	return r.db.withTx(ctx, func(tx *sql.Tx) error {
		indexedAt := FormatTime(at)
		for _, id := range chunkIDs {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO indexed_chunks (chunk_id, collection_name, indexed_at)
				VALUES (?, ?, ?)
				ON CONFLICT(chunk_id, collection_name) DO UPDATE SET indexed_at = excluded.indexed_at
			`, id, collectionName, indexedAt)
			if err != nil {
				return fmt.Errorf("failed to record index membership: %w", err)
			}
		}

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunkIDs)), ",")
		args := make([]any, 0, len(chunkIDs)+1)
		args = append(args, indexedAt)
		for _, id := range chunkIDs {
			args = append(args, id)
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE chunks SET indexed_at = ? WHERE chunk_id IN (`+placeholders+`)`, args...)
		if err != nil {
			return fmt.Errorf("failed to update chunk indexed_at: %w", err)
		}
		return nil
	})
}

func (r *ChunkRepo) GetIndexedCollections(ctx context.Context, chunkID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT collection_name FROM indexed_chunks WHERE chunk_id = ? ORDER BY collection_name
	`, chunkID)
	if err != nil {
		return nil, fmt.Errorf("failed to get index membership: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan membership row: %w", err)
		}
		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating membership rows: %w", err)
	}
	return names, nil
}

func encodeVector(v []float32) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode embedding: %w", err)
	}
	return string(data), nil
}

func decodeVector(s string) ([]float32, error) {
	var v []float32
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("failed to decode embedding: %w", err)
	}
	return v, nil
}

package database

import (
	"context"
	"database/sql"
	"fmt"
)

var _ ArticleRepository = (*ArticleRepo)(nil)

// ArticleRepo handles database operations for extracted articles
type ArticleRepo struct {
	db *DB
}

func NewArticleRepository(db *DB) *ArticleRepo {
	return &ArticleRepo{db: db}
}

// SaveExtraction upserts the article and marks its feed item extracted in one transaction.
// Re-extraction clears duplicate_of_url so the next dedupe pass re-evaluates the article.
func (r *ArticleRepo) SaveExtraction(ctx context.Context, itemID int64, article Article) error {
	return r.db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO articles (url, source_id, final_url, title, published_at, author, text, html,
			                      extracted_at, text_hash, duplicate_of_url)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
			ON CONFLICT(url) DO UPDATE SET
				source_id = excluded.source_id,
				final_url = excluded.final_url,
				title = excluded.title,
				published_at = excluded.published_at,
				author = excluded.author,
				text = excluded.text,
				html = excluded.html,
				extracted_at = excluded.extracted_at,
				text_hash = excluded.text_hash,
				duplicate_of_url = NULL
		`, article.URL, article.SourceID, nullString(article.FinalURL), nullString(article.Title),
			nullString(article.PublishedAt), nullString(article.Author), article.Text,
			nullString(article.HTML), FormatTime(article.ExtractedAt), article.TextHash)
		if err != nil {
			return fmt.Errorf("failed to upsert article: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE rss_items SET status = 'extracted', error = NULL WHERE item_id = ?
		`, itemID)
		if err != nil {
			return fmt.Errorf("failed to mark item extracted: %w", err)
		}
		return nil
	})
}

func (r *ArticleRepo) GetArticle(ctx context.Context, url string) (*Article, error) {
	var (
		a           Article
		extractedAt string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT url, source_id, COALESCE(final_url, ''), COALESCE(title, ''), COALESCE(published_at, ''),
		       COALESCE(author, ''), text, COALESCE(html, ''), extracted_at, text_hash,
		       COALESCE(duplicate_of_url, '')
		FROM articles
		WHERE url = ?
	`, url).Scan(&a.URL, &a.SourceID, &a.FinalURL, &a.Title, &a.PublishedAt, &a.Author, &a.Text,
		&a.HTML, &extractedAt, &a.TextHash, &a.DuplicateOfURL)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article: %w", err)
	}
	a.ExtractedAt = mustTime(extractedAt)
	return &a, nil
}

// GetArticlesForDedupe returns canonical articles oldest first. The order decides which URL
// stays canonical, url breaks ties between equal extraction times.
func (r *ArticleRepo) GetArticlesForDedupe(ctx context.Context) ([]ArticleForDedupe, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT url, text_hash, extracted_at
		FROM articles
		WHERE duplicate_of_url IS NULL
		ORDER BY extracted_at ASC, url ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get articles for dedupe: %w", err)
	}
	defer rows.Close()

	var result []ArticleForDedupe
	for rows.Next() {
		var (
			a           ArticleForDedupe
			extractedAt string
		)
		if err := rows.Scan(&a.URL, &a.TextHash, &extractedAt); err != nil {
			return nil, fmt.Errorf("failed to scan article row: %w", err)
		}
		a.ExtractedAt = mustTime(extractedAt)
		result = append(result, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating article rows: %w", err)
	}
	return result, nil
}

// FindEarlierCanonical returns the oldest canonical article sharing the text hash of a that
// sorts before it by (extracted_at, url), or an empty string when a is the earliest.
func (r *ArticleRepo) FindEarlierCanonical(ctx context.Context, a ArticleForDedupe) (string, error) {
	extractedAt := FormatTime(a.ExtractedAt)

	var url string
	err := r.db.QueryRowContext(ctx, `
		SELECT url
		FROM articles
		WHERE text_hash = ? AND duplicate_of_url IS NULL AND url != ?
		  AND (extracted_at < ? OR (extracted_at = ? AND url < ?))
		ORDER BY extracted_at ASC, url ASC
		LIMIT 1
	`, a.TextHash, a.URL, extractedAt, extractedAt, a.URL).Scan(&url)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to find article by text hash: %w", err)
	}
	return url, nil
}

// MarkDuplicate points url at canonicalURL. Articles that pointed at url are repointed too,
// so duplicate_of_url always names a canonical article.
func (r *ArticleRepo) MarkDuplicate(ctx context.Context, url, canonicalURL string) error {
	if url == canonicalURL {
		return fmt.Errorf("article %s cannot be a duplicate of itself", url)
	}

	_, err := r.db.ExecContext(ctx, `
		UPDATE articles SET duplicate_of_url = ? WHERE url = ? OR duplicate_of_url = ?
	`, canonicalURL, url, url)
	if err != nil {
		return fmt.Errorf("failed to mark duplicate: %w", err)
	}
	return nil
}

// GetArticlesForChunking returns canonical articles that have no chunk rows yet
func (r *ArticleRepo) GetArticlesForChunking(ctx context.Context) ([]ArticleForChunking, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.url, a.source_id, COALESCE(a.title, ''), COALESCE(a.published_at, ''), a.text
		FROM articles a
		WHERE a.duplicate_of_url IS NULL
		  AND NOT EXISTS (SELECT 1 FROM chunks c WHERE c.url = a.url)
		ORDER BY a.extracted_at ASC, a.url ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get articles for chunking: %w", err)
	}
	defer rows.Close()

	var result []ArticleForChunking
	for rows.Next() {
		var a ArticleForChunking
		if err := rows.Scan(&a.URL, &a.SourceID, &a.Title, &a.PublishedAt, &a.Text); err != nil {
			return nil, fmt.Errorf("failed to scan article row: %w", err)
		}
		result = append(result, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating article rows: %w", err)
	}
	return result, nil
}

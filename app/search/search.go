package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/lysyi3m/truth-news/app/embedding"
	"github.com/lysyi3m/truth-news/app/vectorstore"
)

const (
	DefaultTopK      = 5
	MaxTopK          = 50
	DefaultCacheSize = 256
)

var ErrEmptyQuery = errors.New("query is empty")

// EvidenceChunk is one retrieved chunk with its provenance
type EvidenceChunk struct {
	ChunkID     int64   `json:"chunk_id"`
	Text        string  `json:"text"`
	URL         string  `json:"url"`
	Title       string  `json:"title,omitempty"`
	SourceID    string  `json:"source_id"`
	PublishedAt string  `json:"published_at,omitempty"`
	Distance    float32 `json:"distance"`
	Similarity  float32 `json:"similarity"`
}

// Searcher embeds query text and looks up the nearest chunks in one collection.
// Query vectors are cached per model and text.
type Searcher struct {
	embedder   embedding.Embedder
	collection *vectorstore.Collection
	cache      *lru.Cache[string, []float32]
	logger     *slog.Logger
}

func New(embedder embedding.Embedder, collection *vectorstore.Collection, cacheSize int) (*Searcher, error) {
	if embedder == nil {
		return nil, embedding.ErrMissingCredentials
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}

	cache, err := lru.New[string, []float32](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create query cache: %w", err)
	}

	return &Searcher{
		embedder:   embedder,
		collection: collection,
		cache:      cache,
		logger:     slog.Default().With("component", "search", "collection", collection.Name()),
	}, nil
}

// Search returns up to topK evidence chunks nearest to query, closest first
func (s *Searcher) Search(ctx context.Context, query string, topK int) ([]EvidenceChunk, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	topK = min(topK, MaxTopK)

	vector, err := s.queryVector(ctx, query)
	if err != nil {
		return nil, err
	}

	matches, err := s.collection.Query(ctx, vector, topK)
	if err != nil {
		return nil, err
	}

	results := make([]EvidenceChunk, 0, len(matches))
	for _, m := range matches {
		chunkID, err := strconv.ParseInt(m.ID, 10, 64)
		if err != nil {
			s.logger.Warn("Skipping record with non-numeric id", "id", m.ID)
			continue
		}
		results = append(results, EvidenceChunk{
			ChunkID:     chunkID,
			Text:        m.Document,
			URL:         metaString(m.Metadata, "url"),
			Title:       metaString(m.Metadata, "title"),
			SourceID:    metaString(m.Metadata, "source_id"),
			PublishedAt: metaString(m.Metadata, "published_at"),
			Distance:    m.Distance,
			Similarity:  Similarity(m.Distance),
		})
	}

	s.logger.Debug("Search completed", "top_k", topK, "results", len(results))
	return results, nil
}

func (s *Searcher) queryVector(ctx context.Context, query string) ([]float32, error) {
	key := s.embedder.Model() + "\x00" + query
	if v, ok := s.cache.Get(key); ok {
		return v, nil
	}

	v, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	s.cache.Add(key, v)
	return v, nil
}

// Similarity maps a squared L2 distance between unit vectors onto [0, 1]
func Similarity(distance float32) float32 {
	return max(0, 1-distance/2)
}

func metaString(meta vectorstore.Metadata, key string) string {
	if v, ok := meta[key].(string); ok {
		return v
	}
	return ""
}

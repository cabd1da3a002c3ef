package database

import (
	"time"
)

type ItemStatus string

const (
	ItemStatusQueued    ItemStatus = "queued"
	ItemStatusExtracted ItemStatus = "extracted"
	ItemStatusFailed    ItemStatus = "failed"
)

// Source mirrors a configured news source plus its last fetch outcome
type Source struct {
	ID                   string
	Name                 string
	Country              string
	Category             string
	Enabled              bool
	FetchIntervalMinutes int
	TrustRank            int
	LastSuccessAt        *time.Time
	LastErrorAt          *time.Time
	LastError            string
}

type SourceHealth struct {
	SourceID       string
	Name           string
	Enabled        bool
	TotalItems     int
	QueuedItems    int
	ExtractedItems int
	FailedItems    int
	LastSuccessAt  *time.Time
	LastErrorAt    *time.Time
	LastError      string
}

// FeedItem is a feed entry as seen by the fetcher, before it gets an item id
type FeedItem struct {
	SourceID    string
	GUID        string // empty when the entry has no guid
	URL         string
	Title       string
	PublishedAt string // UTC RFC3339 or the raw feed value
}

type Item struct {
	ID          int64
	SourceID    string
	GUID        string
	URL         string
	Title       string
	PublishedAt string
	FetchedAt   time.Time
	Status      ItemStatus
	Error       string
}

type Article struct {
	URL            string
	SourceID       string
	FinalURL       string
	Title          string
	PublishedAt    string
	Author         string
	Text           string
	HTML           string
	ExtractedAt    time.Time
	TextHash       string
	DuplicateOfURL string // empty for canonical articles
}

type ArticleForDedupe struct {
	URL         string
	TextHash    string
	ExtractedAt time.Time
}

type ArticleForChunking struct {
	URL         string
	SourceID    string
	Title       string
	PublishedAt string
	Text        string
}

type NewChunk struct {
	URL         string
	SourceID    string
	Title       string
	PublishedAt string
	ChunkIndex  int
	Text        string
	ChunkHash   string
	TokenCount  int
}

type Chunk struct {
	ID                 int64
	URL                string
	SourceID           string
	Title              string
	PublishedAt        string
	ChunkIndex         int
	Text               string
	ChunkHash          string
	TokenCount         int
	Embedding          []float32
	EmbeddingModel     string
	EmbeddingDim       int
	EmbeddingCreatedAt *time.Time
	CreatedAt          time.Time
	IndexedAt          *time.Time
}

type ChunkForEmbedding struct {
	ID   int64
	Text string
}

type ChunkEmbedding struct {
	ChunkID int64
	Vector  []float32
}

type ChunkForIndexing struct {
	ID             int64
	URL            string
	SourceID       string
	Title          string
	PublishedAt    string
	ChunkIndex     int
	Text           string
	Embedding      []float32
	EmbeddingModel string
}

type StoreStats struct {
	Sources           int `json:"sources"`
	Items             int `json:"items"`
	QueuedItems       int `json:"queued_items"`
	ExtractedItems    int `json:"extracted_items"`
	FailedItems       int `json:"failed_items"`
	Articles          int `json:"articles"`
	DuplicateArticles int `json:"duplicate_articles"`
	Chunks            int `json:"chunks"`
	EmbeddedChunks    int `json:"embedded_chunks"`
	IndexMemberships  int `json:"index_memberships"`
}

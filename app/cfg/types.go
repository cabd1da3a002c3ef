package cfg

import "time"

const (
	CommandIngest   = "ingest"
	CommandBackfill = "backfill"
	CommandHealth   = "health"
	CommandReset    = "reset"
	CommandSearch   = "search"
	CommandServe    = "serve"
)

type Cfg struct {
	Command string

	// Storage
	DBPath         string
	SourcesConfig  string
	VectorDir      string
	CollectionName string

	// Fetching and extraction
	UserAgent     string
	FeedTimeout   time.Duration
	PageTimeout   time.Duration
	HostRateLimit float64
	FeedParser    string
	HTMLParser    string

	// Chunking and embedding
	ChunkTargetTokens   int
	ChunkOverlapTokens  int
	EmbeddingModel      string
	EmbeddingDimensions int
	EmbedBatchSize      int
	IndexBatchSize      int
	BatchConcurrency    int
	OpenAIAPIKey        string
	OpenAIBaseURL       string

	Debug   bool
	Version string

	Ingest IngestCfg
	Reset  ResetCfg
	Search SearchCfg
	Serve  ServeCfg
}

// IngestCfg covers both ingest and backfill; backfill only differs in how Since is given
type IngestCfg struct {
	Since       time.Duration
	LimitQueued int
	SkipIndex   bool
}

type ResetCfg struct {
	Full       bool
	ChunksOnly bool
	Yes        bool
}

type SearchCfg struct {
	Query string
	TopK  int
}

type ServeCfg struct {
	Port              string
	APIAccessKey      string
	SchedulerInterval time.Duration
	WorkerCount       int
	TaskTimeout       time.Duration
	NoScheduler       bool
}

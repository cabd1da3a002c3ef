package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

var ErrInvalidOptions = errors.New("invalid options")

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage
	DBPath         string `long:"db-path" env:"DB_PATH" default:"data/news.db" description:"SQLite database file"`
	SourcesConfig  string `long:"sources-config" env:"SOURCES_CONFIG" default:"config/sources.yaml" description:"Source configuration YAML"`
	VectorDir      string `long:"vector-dir" env:"VECTOR_DIR" default:"data/vectors" description:"Vector store directory"`
	CollectionName string `long:"collection" env:"COLLECTION_NAME" default:"news_openai_v1" description:"Vector store collection name"`

	// Fetching and extraction
	UserAgent     string  `long:"user-agent" env:"USER_AGENT" default:"truth-detector-ingest/0.1" description:"User agent string for HTTP requests"`
	FeedTimeout   int     `long:"feed-timeout" env:"FEED_TIMEOUT" default:"20" description:"Feed request timeout in seconds"`
	PageTimeout   int     `long:"page-timeout" env:"PAGE_TIMEOUT" default:"30" description:"Article page request timeout in seconds"`
	HostRateLimit float64 `long:"host-rate-limit" env:"HOST_RATE_LIMIT" default:"0" description:"Maximum requests per second to a single host (0 = unlimited)"`
	FeedParser    string  `long:"feed-parser" env:"FEED_PARSER" default:"auto" choice:"auto" choice:"structured" choice:"xml" description:"Feed parser"`
	HTMLParser    string  `long:"html-parser" env:"HTML_PARSER" default:"auto" choice:"auto" choice:"structured" choice:"regex" description:"Article text extractor"`

	// Chunking and embedding
	ChunkTargetTokens   int    `long:"chunk-target-tokens" env:"CHUNK_TARGET_TOKENS" default:"420" description:"Tokens per chunk"`
	ChunkOverlapTokens  int    `long:"chunk-overlap-tokens" env:"CHUNK_OVERLAP_TOKENS" default:"60" description:"Tokens shared by consecutive chunks"`
	EmbeddingModel      string `long:"embedding-model" env:"EMBEDDING_MODEL" default:"text-embedding-3-small" description:"Embedding model name"`
	EmbeddingDimensions int    `long:"embedding-dimensions" env:"EMBEDDING_DIMENSIONS" default:"0" description:"Requested embedding size (0 = model default)"`
	EmbedBatchSize      int    `long:"embed-batch-size" env:"EMBED_BATCH_SIZE" default:"32" description:"Chunks per embedding request"`
	IndexBatchSize      int    `long:"index-batch-size" env:"INDEX_BATCH_SIZE" default:"64" description:"Chunks per vector store upsert"`
	BatchConcurrency    int    `long:"batch-concurrency" env:"BATCH_CONCURRENCY" default:"1" description:"Embed and index batches in flight"`
	OpenAIAPIKey        string `long:"openai-api-key" env:"OPENAI_API_KEY" description:"OpenAI API key"`
	OpenAIBaseURL       string `long:"openai-base-url" env:"OPENAI_BASE_URL" description:"OpenAI compatible API base URL"`

	Debug bool `long:"debug" env:"DEBUG" description:"Enable debug logging"`

	Ingest   ingestCmd   `command:"ingest" description:"Fetch, extract, dedupe, chunk, embed and index recent items"`
	Backfill backfillCmd `command:"backfill" description:"Ingest with a cutoff measured in days"`
	Health   healthCmd   `command:"health" description:"Print per-source health and store statistics"`
	Reset    resetCmd    `command:"reset" description:"Delete pipeline data"`
	Search   searchCmd   `command:"search" description:"Print the chunks nearest to a query"`
	Serve    serveCmd    `command:"serve" description:"Run the HTTP API and the periodic scheduler"`
}

type ingestCmd struct {
	SinceMinutes int  `long:"since-minutes" default:"60" description:"Only queue items published within this many minutes (0 = no cutoff)"`
	LimitQueued  int  `long:"limit-queued" default:"0" description:"Maximum queued items to extract (0 = all)"`
	SkipIndex    bool `long:"skip-index" description:"Stop after embedding"`
}

type backfillCmd struct {
	Days        int  `long:"days" default:"7" description:"Only queue items published within this many days"`
	LimitQueued int  `long:"limit-queued" default:"0" description:"Maximum queued items to extract (0 = all)"`
	SkipIndex   bool `long:"skip-index" description:"Stop after embedding"`
}

type healthCmd struct{}

type resetCmd struct {
	Full       bool `long:"full" description:"Delete every row and drop vector collections"`
	ChunksOnly bool `long:"chunks-only" description:"Delete chunks and index membership, keep items and articles"`
	Yes        bool `long:"yes" description:"Confirm the reset"`
}

type searchCmd struct {
	TopK int `short:"k" long:"top-k" default:"5" description:"Number of chunks to return"`
	Args struct {
		Query []string `positional-arg-name:"query" required:"1"`
	} `positional-args:"yes" required:"yes"`
}

type serveCmd struct {
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"15" description:"Minutes between scheduled pipeline runs"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"1" description:"Number of background workers"`
	TaskTimeout       int    `long:"task-timeout" env:"TASK_TIMEOUT" default:"30" description:"Minutes a single pipeline run may take"`
	SinceMinutes      int    `long:"since-minutes" env:"SINCE_MINUTES" default:"60" description:"Cutoff applied by scheduled runs (0 = no cutoff)"`
	SkipIndex         bool   `long:"skip-index" description:"Scheduled runs stop after embedding"`
	NoScheduler       bool   `long:"no-scheduler" description:"Serve the API without periodic runs"`
}

// Load parses args (without the program name). It returns nil, nil when help was requested.
func Load(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)
	parser.Name = "truth-news"

	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		Command:             parser.Active.Name,
		DBPath:              raw.DBPath,
		SourcesConfig:       raw.SourcesConfig,
		VectorDir:           raw.VectorDir,
		CollectionName:      raw.CollectionName,
		UserAgent:           raw.UserAgent,
		FeedTimeout:         time.Duration(raw.FeedTimeout) * time.Second,
		PageTimeout:         time.Duration(raw.PageTimeout) * time.Second,
		HostRateLimit:       raw.HostRateLimit,
		FeedParser:          raw.FeedParser,
		HTMLParser:          raw.HTMLParser,
		ChunkTargetTokens:   raw.ChunkTargetTokens,
		ChunkOverlapTokens:  raw.ChunkOverlapTokens,
		EmbeddingModel:      raw.EmbeddingModel,
		EmbeddingDimensions: raw.EmbeddingDimensions,
		EmbedBatchSize:      raw.EmbedBatchSize,
		IndexBatchSize:      raw.IndexBatchSize,
		BatchConcurrency:    raw.BatchConcurrency,
		OpenAIAPIKey:        raw.OpenAIAPIKey,
		OpenAIBaseURL:       raw.OpenAIBaseURL,
		Debug:               raw.Debug,
		Version:             GetVersion(),
	}

	switch cfg.Command {
	case CommandIngest:
		cfg.Ingest = IngestCfg{
			Since:       time.Duration(raw.Ingest.SinceMinutes) * time.Minute,
			LimitQueued: raw.Ingest.LimitQueued,
			SkipIndex:   raw.Ingest.SkipIndex,
		}
	case CommandBackfill:
		if raw.Backfill.Days <= 0 {
			return nil, fmt.Errorf("%w: --days must be > 0", ErrInvalidOptions)
		}
		cfg.Ingest = IngestCfg{
			Since:       time.Duration(raw.Backfill.Days) * 24 * time.Hour,
			LimitQueued: raw.Backfill.LimitQueued,
			SkipIndex:   raw.Backfill.SkipIndex,
		}
	case CommandReset:
		if raw.Reset.Full == raw.Reset.ChunksOnly {
			return nil, fmt.Errorf("%w: reset needs exactly one of --full or --chunks-only", ErrInvalidOptions)
		}
		cfg.Reset = ResetCfg(raw.Reset)
	case CommandSearch:
		cfg.Search = SearchCfg{
			Query: strings.Join(raw.Search.Args.Query, " "),
			TopK:  raw.Search.TopK,
		}
	case CommandServe:
		cfg.Serve = ServeCfg{
			Port:              raw.Serve.Port,
			APIAccessKey:      raw.Serve.APIAccessKey,
			SchedulerInterval: time.Duration(raw.Serve.SchedulerInterval) * time.Minute,
			WorkerCount:       raw.Serve.WorkerCount,
			TaskTimeout:       time.Duration(raw.Serve.TaskTimeout) * time.Minute,
			NoScheduler:       raw.Serve.NoScheduler,
		}
		cfg.Ingest = IngestCfg{
			Since:     time.Duration(raw.Serve.SinceMinutes) * time.Minute,
			SkipIndex: raw.Serve.SkipIndex,
		}
	}

	if cfg.BatchConcurrency <= 0 {
		return nil, fmt.Errorf("%w: --batch-concurrency must be > 0", ErrInvalidOptions)
	}

	return cfg, nil
}

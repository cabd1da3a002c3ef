package tasks

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/truth-news/app/chunker"
	"github.com/lysyi3m/truth-news/app/database"
	"github.com/lysyi3m/truth-news/app/embedding"
	"github.com/lysyi3m/truth-news/app/extract"
	"github.com/lysyi3m/truth-news/app/feed"
	"github.com/lysyi3m/truth-news/app/metrics"
	"github.com/lysyi3m/truth-news/app/sources"
	"github.com/lysyi3m/truth-news/app/vectorstore"
)

var errNoVectorStore = errors.New("vector store is not configured")

type Dependencies struct {
	SourceRepo  database.SourceRepository
	ItemRepo    database.ItemRepository
	ArticleRepo database.ArticleRepository
	ChunkRepo   database.ChunkRepository
	Fetcher     PageFetcher
	FeedParser  feed.Parser
	HTMLParser  extract.HTMLParser
	Chunker     *chunker.Chunker
	// Embedder is nil when no credentials are configured; the embed stage then fails
	Embedder    embedding.Embedder
	VectorStore *vectorstore.Store
}

type Options struct {
	CollectionName string
	// EmbeddingModel and EmbeddingDimensions, when set, must match what the embedder produces
	EmbeddingModel      string
	EmbeddingDimensions int
	EmbedBatchSize      int
	IndexBatchSize      int
	BatchConcurrency    int
	FeedTimeout         time.Duration
	PageTimeout         time.Duration
}

// EmbedOptions override the pipeline options for one embed call; zero values keep them
type EmbedOptions struct {
	Model      string
	Dimensions int
	BatchSize  int
}

// IndexOptions override the pipeline options for one index call; zero values keep them
type IndexOptions struct {
	CollectionName string
	BatchSize      int
}

type RunOptions struct {
	Since            time.Duration
	LimitQueued      int
	SkipIndex        bool
	RespectIntervals bool
}

// Pipeline runs the ingestion stages against the store. Every stage reads only what the
// previous stages committed, so each one can be run, retried or reordered on its own.
// Calls are serialized: one stage or run at a time per Pipeline.
type Pipeline struct {
	deps Dependencies
	opts Options

	mu      sync.Mutex
	lastMu  sync.RWMutex
	lastRun *RunStats
}

func NewPipeline(deps Dependencies, opts Options) *Pipeline {
	if opts.CollectionName == "" {
		opts.CollectionName = DefaultCollectionName
	}
	if opts.EmbedBatchSize <= 0 {
		opts.EmbedBatchSize = embedding.DefaultBatchSize
	}
	if opts.IndexBatchSize <= 0 {
		opts.IndexBatchSize = DefaultIndexBatchSize
	}
	if opts.BatchConcurrency <= 0 {
		opts.BatchConcurrency = 1
	}
	if opts.FeedTimeout <= 0 {
		opts.FeedTimeout = DefaultFeedTimeout
	}
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = DefaultPageTimeout
	}
	return &Pipeline{deps: deps, opts: opts}
}

func (p *Pipeline) CollectionName() string {
	return p.opts.CollectionName
}

// LastRun returns the stats of the most recent completed run, or nil
func (p *Pipeline) LastRun() *RunStats {
	p.lastMu.RLock()
	defer p.lastMu.RUnlock()
	return p.lastRun
}

func (p *Pipeline) Fetch(ctx context.Context, srcs []sources.Source, since time.Duration) (FetchStats, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fetch(ctx, srcs, since, false)
}

func (p *Pipeline) Extract(ctx context.Context, limit int) (ExtractStats, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.extract(ctx, limit)
}

func (p *Pipeline) Dedupe(ctx context.Context) (DedupeStats, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dedupe(ctx)
}

func (p *Pipeline) Chunk(ctx context.Context) (ChunkStats, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chunk(ctx)
}

func (p *Pipeline) Embed(ctx context.Context, opts EmbedOptions) (EmbedStats, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.embed(ctx, opts)
}

func (p *Pipeline) Index(ctx context.Context, opts IndexOptions) (IndexStats, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.index(ctx, opts)
}

// Run executes all stages in order, waiting for any run already in progress
func (p *Pipeline) Run(ctx context.Context, srcs []sources.Source, opts RunOptions) (*RunStats, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.run(ctx, srcs, opts)
}

// TryRun is Run that returns ErrPipelineBusy instead of waiting
func (p *Pipeline) TryRun(ctx context.Context, srcs []sources.Source, opts RunOptions) (*RunStats, error) {
	if !p.mu.TryLock() {
		return nil, ErrPipelineBusy
	}
	defer p.mu.Unlock()
	return p.run(ctx, srcs, opts)
}

func (p *Pipeline) run(ctx context.Context, srcs []sources.Source, opts RunOptions) (*RunStats, error) {
	metrics.SetPipelineRunning(true)
	defer metrics.SetPipelineRunning(false)

	stats := &RunStats{RunID: NewTask(TaskTypePipelineRun, "").ID}
	started := time.Now()
	logger := slog.Default().With("run_id", stats.RunID)
	logger.Info("Pipeline run started", "sources", len(srcs), "since", opts.Since, "skip_index", opts.SkipIndex)

	var err error
	if stats.Fetch, err = p.fetch(ctx, srcs, opts.Since, opts.RespectIntervals); err != nil {
		return stats, err
	}
	if stats.Extract, err = p.extract(ctx, opts.LimitQueued); err != nil {
		return stats, err
	}
	if stats.Dedupe, err = p.dedupe(ctx); err != nil {
		return stats, err
	}
	if stats.Chunk, err = p.chunk(ctx); err != nil {
		return stats, err
	}
	if stats.Embed, err = p.embed(ctx, EmbedOptions{}); err != nil {
		return stats, err
	}
	if !opts.SkipIndex {
		indexStats, err := p.index(ctx, IndexOptions{})
		if err != nil {
			return stats, err
		}
		stats.Index = &indexStats
	}

	p.lastMu.Lock()
	p.lastRun = stats
	p.lastMu.Unlock()

	logger.Info("Pipeline run completed", "duration", time.Since(started))
	return stats, nil
}

func (p *Pipeline) fetch(ctx context.Context, srcs []sources.Source, since time.Duration, respectIntervals bool) (FetchStats, error) {
	task := NewFetchFeedsTask(srcs, since, p.deps.Fetcher, p.deps.FeedParser, p.deps.SourceRepo, p.deps.ItemRepo)
	task.RespectIntervals = respectIntervals
	task.timeout = p.opts.FeedTimeout
	err := execute(ctx, task, func() map[string]int { return task.Stats.Counters() })
	return task.Stats, err
}

func (p *Pipeline) extract(ctx context.Context, limit int) (ExtractStats, error) {
	task := NewExtractContentTask(limit, p.deps.Fetcher, p.deps.HTMLParser, p.deps.ItemRepo, p.deps.ArticleRepo)
	task.timeout = p.opts.PageTimeout
	err := execute(ctx, task, func() map[string]int { return task.Stats.Counters() })
	return task.Stats, err
}

func (p *Pipeline) dedupe(ctx context.Context) (DedupeStats, error) {
	task := NewDedupeTask(p.deps.ArticleRepo)
	err := execute(ctx, task, func() map[string]int { return task.Stats.Counters() })
	return task.Stats, err
}

func (p *Pipeline) chunk(ctx context.Context) (ChunkStats, error) {
	task := NewChunkTask(p.deps.Chunker, p.deps.ArticleRepo, p.deps.ChunkRepo)
	err := execute(ctx, task, func() map[string]int { return task.Stats.Counters() })
	return task.Stats, err
}

func (p *Pipeline) embed(ctx context.Context, opts EmbedOptions) (EmbedStats, error) {
	task := NewEmbedTask(p.deps.Embedder, p.deps.ChunkRepo, cmp.Or(opts.BatchSize, p.opts.EmbedBatchSize))
	task.Model = cmp.Or(opts.Model, p.opts.EmbeddingModel)
	task.Dimensions = cmp.Or(opts.Dimensions, p.opts.EmbeddingDimensions)
	task.Concurrency = p.opts.BatchConcurrency
	err := execute(ctx, task, func() map[string]int { return task.Stats.Counters() })
	return task.Stats, err
}

func (p *Pipeline) index(ctx context.Context, opts IndexOptions) (IndexStats, error) {
	if p.deps.VectorStore == nil {
		return IndexStats{}, errNoVectorStore
	}
	collection, err := p.deps.VectorStore.Collection(cmp.Or(opts.CollectionName, p.opts.CollectionName))
	if err != nil {
		return IndexStats{}, err
	}

	task := NewIndexTask(collection, p.deps.ChunkRepo, cmp.Or(opts.BatchSize, p.opts.IndexBatchSize))
	task.Concurrency = p.opts.BatchConcurrency
	err = execute(ctx, task, func() map[string]int { return task.Stats.Counters() })
	return task.Stats, err
}

func execute(ctx context.Context, task TaskInterface, counters func() map[string]int) error {
	task.Start()
	err := task.Execute(ctx)
	metrics.RecordStage(string(task.GetType()), err, task.GetDuration().Seconds(), counters())
	if err != nil {
		slog.Error("Task failed", "type", string(task.GetType()), "id", task.GetID(), "error", err)
	}
	return err
}

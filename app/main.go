package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/truth-news/app/api"
	"github.com/lysyi3m/truth-news/app/cfg"
	"github.com/lysyi3m/truth-news/app/chunker"
	"github.com/lysyi3m/truth-news/app/database"
	"github.com/lysyi3m/truth-news/app/embedding"
	"github.com/lysyi3m/truth-news/app/extract"
	"github.com/lysyi3m/truth-news/app/feed"
	"github.com/lysyi3m/truth-news/app/httpclient"
	"github.com/lysyi3m/truth-news/app/search"
	"github.com/lysyi3m/truth-news/app/sources"
	"github.com/lysyi3m/truth-news/app/tasks"
	"github.com/lysyi3m/truth-news/app/vectorstore"
	"golang.org/x/sync/errgroup"
)

func main() {
	appConfig, err := cfg.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, cfg.ErrInvalidOptions) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(2)
	}
	if appConfig == nil {
		return
	}

	setupLogging(appConfig.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, appConfig); err != nil {
		slog.Error("Command failed", "command", appConfig.Command, "error", err)
		stop()
		os.Exit(1)
	}
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

type app struct {
	cfg      *cfg.Cfg
	db       *database.DB
	vectors  *vectorstore.Store
	embedder embedding.Embedder
	pipeline *tasks.Pipeline
}

func run(ctx context.Context, c *cfg.Cfg) error {
	slog.Debug("Starting", "version", c.Version, "command", c.Command)

	a, err := newApp(c)
	if err != nil {
		return err
	}
	defer a.close()

	switch c.Command {
	case cfg.CommandIngest, cfg.CommandBackfill:
		return a.ingest(ctx)
	case cfg.CommandHealth:
		return a.health(ctx)
	case cfg.CommandReset:
		return a.reset(ctx)
	case cfg.CommandSearch:
		return a.search(ctx)
	case cfg.CommandServe:
		return a.serve(ctx)
	default:
		return fmt.Errorf("unknown command %q", c.Command)
	}
}

func newApp(c *cfg.Cfg) (*app, error) {
	textChunker, err := chunker.New(c.ChunkTargetTokens, c.ChunkOverlapTokens)
	if err != nil {
		return nil, err
	}

	feedParser, err := feed.NewParser(feed.Mode(c.FeedParser))
	if err != nil {
		return nil, err
	}
	htmlParser, err := extract.NewHTMLParser(extract.Mode(c.HTMLParser))
	if err != nil {
		return nil, err
	}
	slog.Debug("Parsers selected", "feed", feedParser.Name(), "html", htmlParser.Name())

	embedder, err := newEmbedder(c)
	if err != nil {
		return nil, err
	}

	db, err := database.NewConnection(c.DBPath)
	if err != nil {
		return nil, err
	}

	vectors, err := vectorstore.Open(c.VectorDir, false)
	if err != nil {
		db.Close()
		return nil, err
	}

	client := httpclient.New(c.UserAgent,
		httpclient.WithHTTPClient(&http.Client{Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		}}),
		httpclient.WithHostRateLimit(c.HostRateLimit),
	)

	pipeline := tasks.NewPipeline(tasks.Dependencies{
		SourceRepo:  database.NewSourceRepository(db),
		ItemRepo:    database.NewItemRepository(db),
		ArticleRepo: database.NewArticleRepository(db),
		ChunkRepo:   database.NewChunkRepository(db),
		Fetcher:     client,
		FeedParser:  feedParser,
		HTMLParser:  htmlParser,
		Chunker:     textChunker,
		Embedder:    embedder,
		VectorStore: vectors,
	}, tasks.Options{
		CollectionName:      c.CollectionName,
		EmbeddingModel:      c.EmbeddingModel,
		EmbeddingDimensions: c.EmbeddingDimensions,
		EmbedBatchSize:      c.EmbedBatchSize,
		IndexBatchSize:      c.IndexBatchSize,
		BatchConcurrency:    c.BatchConcurrency,
		FeedTimeout:         c.FeedTimeout,
		PageTimeout:         c.PageTimeout,
	})

	return &app{cfg: c, db: db, vectors: vectors, embedder: embedder, pipeline: pipeline}, nil
}

// newEmbedder returns a nil Embedder when no API key is configured; stages that need one fail
// with embedding.ErrMissingCredentials
func newEmbedder(c *cfg.Cfg) (embedding.Embedder, error) {
	e, err := embedding.NewOpenAIEmbedder(embedding.Config{
		APIKey:     c.OpenAIAPIKey,
		BaseURL:    c.OpenAIBaseURL,
		Model:      c.EmbeddingModel,
		Dimensions: c.EmbeddingDimensions,
	})
	if errors.Is(err, embedding.ErrMissingCredentials) {
		slog.Warn("No OpenAI API key configured, embedding is disabled")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (a *app) close() {
	if err := a.vectors.Close(); err != nil {
		slog.Error("Failed to close vector store", "error", err)
	}
	if err := a.db.Close(); err != nil {
		slog.Error("Failed to close database", "error", err)
	}
}

func (a *app) ingest(ctx context.Context) error {
	srcs, err := sources.Load(a.cfg.SourcesConfig)
	if err != nil {
		return err
	}

	stats, err := a.pipeline.Run(ctx, srcs, tasks.RunOptions{
		Since:       a.cfg.Ingest.Since,
		LimitQueued: a.cfg.Ingest.LimitQueued,
		SkipIndex:   a.cfg.Ingest.SkipIndex,
	})
	if stats != nil {
		if printErr := printJSON(stats); printErr != nil {
			return printErr
		}
	}
	return err
}

func (a *app) health(ctx context.Context) error {
	rows, err := database.NewSourceRepository(a.db).ListSourcesHealth(ctx)
	if err != nil {
		return err
	}
	stats, err := database.NewMaintenanceRepository(a.db).GetStats(ctx)
	if err != nil {
		return err
	}

	type sourceRow struct {
		SourceID       string     `json:"source_id"`
		Enabled        bool       `json:"enabled"`
		TotalItems     int        `json:"total_items"`
		QueuedItems    int        `json:"queued_items"`
		ExtractedItems int        `json:"extracted_items"`
		FailedItems    int        `json:"failed_items"`
		LastSuccessAt  *time.Time `json:"last_success_at"`
		LastError      string     `json:"last_error,omitempty"`
	}

	out := struct {
		Sources []sourceRow          `json:"sources"`
		Store   *database.StoreStats `json:"store"`
	}{Sources: make([]sourceRow, 0, len(rows)), Store: stats}

	for _, r := range rows {
		out.Sources = append(out.Sources, sourceRow{
			SourceID:       r.SourceID,
			Enabled:        r.Enabled,
			TotalItems:     r.TotalItems,
			QueuedItems:    r.QueuedItems,
			ExtractedItems: r.ExtractedItems,
			FailedItems:    r.FailedItems,
			LastSuccessAt:  r.LastSuccessAt,
			LastError:      r.LastError,
		})
	}
	return printJSON(out)
}

func (a *app) reset(ctx context.Context) error {
	if !a.cfg.Reset.Yes {
		return fmt.Errorf("%w: refusing to reset without --yes", cfg.ErrInvalidOptions)
	}

	maintenance := database.NewMaintenanceRepository(a.db)
	if a.cfg.Reset.Full {
		if err := maintenance.ResetAll(ctx); err != nil {
			return err
		}
	} else {
		if err := maintenance.ResetChunksAndIndex(ctx); err != nil {
			return err
		}
	}

	collections, err := a.vectors.ListCollections(ctx)
	if err != nil {
		return err
	}
	for _, name := range collections {
		if err := a.vectors.DropCollection(name); err != nil {
			return err
		}
	}

	slog.Info("Reset completed", "full", a.cfg.Reset.Full, "dropped_collections", len(collections))
	return nil
}

func (a *app) search(ctx context.Context) error {
	collection, err := a.vectors.Collection(a.pipeline.CollectionName())
	if err != nil {
		return err
	}
	searcher, err := search.New(a.embedder, collection, 0)
	if err != nil {
		return err
	}

	results, err := searcher.Search(ctx, a.cfg.Search.Query, a.cfg.Search.TopK)
	if err != nil {
		return err
	}
	return printJSON(results)
}

func (a *app) serve(ctx context.Context) error {
	srcs, err := sources.Load(a.cfg.SourcesConfig)
	if err != nil {
		return err
	}

	var scheduler *tasks.Scheduler
	if !a.cfg.Serve.NoScheduler {
		scheduler = tasks.NewScheduler(a.pipeline, srcs, tasks.SchedulerOptions{
			Interval:    a.cfg.Serve.SchedulerInterval,
			WorkerCount: a.cfg.Serve.WorkerCount,
			TaskTimeout: a.cfg.Serve.TaskTimeout,
			Run: tasks.RunOptions{
				Since:     a.cfg.Ingest.Since,
				SkipIndex: a.cfg.Ingest.SkipIndex,
			},
		})
		slog.Info("Starting background scheduler", "workers", a.cfg.Serve.WorkerCount,
			"interval", a.cfg.Serve.SchedulerInterval)
		scheduler.Start()
		defer scheduler.Stop()
	}

	var searcher api.SearcherInterface
	if a.embedder != nil {
		collection, err := a.vectors.Collection(a.pipeline.CollectionName())
		if err != nil {
			return err
		}
		s, err := search.New(a.embedder, collection, 0)
		if err != nil {
			return err
		}
		searcher = s
	}

	var trigger api.RunTriggerInterface
	if scheduler != nil {
		trigger = scheduler
	}

	handler := api.NewHandler(database.NewSourceRepository(a.db), database.NewMaintenanceRepository(a.db),
		searcher, trigger, a.pipeline)

	httpServer := &http.Server{
		Addr:         ":" + a.cfg.Serve.Port,
		Handler:      api.NewServer(handler, a.cfg.Serve.APIAccessKey, a.cfg.Version),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Starting HTTP server", "port", a.cfg.Serve.Port, "sources", len(srcs))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		slog.Info("Shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("Server shutdown complete")
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

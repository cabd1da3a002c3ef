package tasks

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lysyi3m/truth-news/app/chunker"
	"github.com/lysyi3m/truth-news/app/content"
	"github.com/lysyi3m/truth-news/app/database"
	"github.com/lysyi3m/truth-news/app/embedding"
	"github.com/lysyi3m/truth-news/app/extract"
	"github.com/lysyi3m/truth-news/app/feed"
	"github.com/lysyi3m/truth-news/app/httpclient"
	"github.com/lysyi3m/truth-news/app/sources"
	"github.com/lysyi3m/truth-news/app/vectorstore"
	"github.com/stretchr/testify/require"
)

const testModel = "test-embed-v1"

type testEnv struct {
	db          *database.DB
	sourceRepo  *database.SourceRepo
	itemRepo    *database.ItemRepo
	articleRepo *database.ArticleRepo
	chunkRepo   *database.ChunkRepo
	store       *vectorstore.Store
	embedder    *embedding.MockEmbedder
	client      *httpclient.Client
	server      *httptest.Server

	mu       sync.Mutex
	routes   map[string]http.HandlerFunc
	requests map[string]int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.NewConnection(filepath.Join(t.TempDir(), "news.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := vectorstore.Open("", true)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	env := &testEnv{
		db:          db,
		sourceRepo:  database.NewSourceRepository(db),
		itemRepo:    database.NewItemRepository(db),
		articleRepo: database.NewArticleRepository(db),
		chunkRepo:   database.NewChunkRepository(db),
		store:       store,
		embedder:    embedding.NewMockEmbedder(testModel, 8),
		client:      httpclient.New("test-agent", httpclient.WithBackoff(time.Millisecond, time.Millisecond)),
		routes:      make(map[string]http.HandlerFunc),
		requests:    make(map[string]int),
	}

	env.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.mu.Lock()
		env.requests[r.URL.Path]++
		handler, ok := env.routes[r.URL.Path]
		env.mu.Unlock()

		if !ok {
			http.NotFound(w, r)
			return
		}
		handler(w, r)
	}))
	t.Cleanup(env.server.Close)

	return env
}

func (e *testEnv) url(path string) string {
	return e.server.URL + path
}

func (e *testEnv) handle(path string, handler http.HandlerFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.routes[path] = handler
}

func (e *testEnv) serve(path, contentType, body string) {
	e.handle(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		fmt.Fprint(w, body)
	})
}

func (e *testEnv) requestCount(path string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.requests[path]
}

func (e *testEnv) deps() Dependencies {
	c, _ := chunker.New(chunker.DefaultTargetTokens, chunker.DefaultOverlapTokens)
	return Dependencies{
		SourceRepo:  e.sourceRepo,
		ItemRepo:    e.itemRepo,
		ArticleRepo: e.articleRepo,
		ChunkRepo:   e.chunkRepo,
		Fetcher:     e.client,
		FeedParser:  feed.NewStructuredParser(),
		HTMLParser:  extract.NewStructuredParser(),
		Chunker:     c,
		Embedder:    e.embedder,
		VectorStore: e.store,
	}
}

func (e *testEnv) pipeline(opts Options) *Pipeline {
	return NewPipeline(e.deps(), opts)
}

func (e *testEnv) source(id string, feedPaths ...string) sources.Source {
	urls := make([]string, len(feedPaths))
	for i, p := range feedPaths {
		urls[i] = e.url(p)
	}
	return sources.Source{
		ID:                   id,
		Name:                 "Source " + id,
		Country:              "US",
		Category:             "news",
		RSSURLs:              urls,
		Enabled:              true,
		FetchIntervalMinutes: 30,
		TrustRank:            1,
	}
}

// seedArticle queues an item for url and stores an extracted article for it
func (e *testEnv) seedArticle(t *testing.T, sourceID, url, text string, extractedAt time.Time) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, e.sourceRepo.UpsertSource(ctx, database.Source{ID: sourceID, Name: sourceID, Enabled: true}))
	require.NoError(t, e.itemRepo.UpsertItem(ctx, database.FeedItem{SourceID: sourceID, URL: url, Title: "title"}, extractedAt))

	items, err := e.itemRepo.GetItemsBySource(ctx, sourceID)
	require.NoError(t, err)

	var itemID int64
	for _, it := range items {
		if it.URL == url {
			itemID = it.ID
		}
	}
	require.NotZero(t, itemID)

	require.NoError(t, e.articleRepo.SaveExtraction(ctx, itemID, database.Article{
		URL:         url,
		SourceID:    sourceID,
		FinalURL:    url,
		Title:       "title",
		Text:        text,
		ExtractedAt: extractedAt,
		TextHash:    content.TextHash(text),
	}))
}

type testFeedItem struct {
	GUID    string
	Link    string
	Title   string
	PubDate string
}

func rssFeed(items ...testFeedItem) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel><title>Test</title><link>https://example.com</link><description>d</description>`)
	for _, it := range items {
		b.WriteString("<item>")
		if it.GUID != "" {
			fmt.Fprintf(&b, "<guid>%s</guid>", it.GUID)
		}
		if it.Link != "" {
			fmt.Fprintf(&b, "<link>%s</link>", it.Link)
		}
		fmt.Fprintf(&b, "<title>%s</title>", it.Title)
		if it.PubDate != "" {
			fmt.Fprintf(&b, "<pubDate>%s</pubDate>", it.PubDate)
		}
		b.WriteString("</item>")
	}
	b.WriteString("</channel></rss>")
	return b.String()
}

func articlePage(title string, paragraphs ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<html><head><title>%s</title></head><body><nav>Menu</nav><article>", title)
	for _, p := range paragraphs {
		fmt.Fprintf(&b, "<p>%s</p>", p)
	}
	b.WriteString("</article><footer>Footer</footer></body></html>")
	return b.String()
}

// words returns n space separated tokens
func words(n int, word string) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("%s%d", word, i)
	}
	return strings.Join(parts, " ")
}

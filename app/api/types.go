package api

import (
	"context"

	"github.com/lysyi3m/truth-news/app/search"
	"github.com/lysyi3m/truth-news/app/tasks"
)

type SearcherInterface interface {
	Search(ctx context.Context, query string, topK int) ([]search.EvidenceChunk, error)
}

var _ SearcherInterface = (*search.Searcher)(nil)

// RunTriggerInterface queues pipeline runs outside the schedule
type RunTriggerInterface interface {
	Trigger(trigger string) (string, error)
}

var _ RunTriggerInterface = (*tasks.Scheduler)(nil)

type LastRunInterface interface {
	LastRun() *tasks.RunStats
	CollectionName() string
}

var _ LastRunInterface = (*tasks.Pipeline)(nil)

type sourceHealthResponse struct {
	SourceID       string  `json:"source_id"`
	Name           string  `json:"name"`
	Enabled        bool    `json:"enabled"`
	TotalItems     int     `json:"total_items"`
	QueuedItems    int     `json:"queued_items"`
	ExtractedItems int     `json:"extracted_items"`
	FailedItems    int     `json:"failed_items"`
	LastSuccessAt  *string `json:"last_success_at"`
	LastErrorAt    *string `json:"last_error_at"`
	LastError      string  `json:"last_error,omitempty"`
}

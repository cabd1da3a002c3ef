package tasks

import (
	"context"
	"time"

	"github.com/lysyi3m/truth-news/app/httpclient"
)

// TaskSchedulerInterface defines the interface for background task processing.
// Example usage:
//
//	scheduler := NewScheduler(pipeline, sources, SchedulerOptions{Interval: 15 * time.Minute})
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewPipelineRunTask(pipeline, sources, options, "api"))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}

// PageFetcher is the HTTP capability the fetch and extract stages need.
// *httpclient.Client implements it.
type PageFetcher interface {
	Get(ctx context.Context, rawURL string, timeout time.Duration) (*httpclient.Response, error)
}

var _ PageFetcher = (*httpclient.Client)(nil)

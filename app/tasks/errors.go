package tasks

import "errors"

var (
	// ErrEmbeddingCountMismatch means the embedder broke its one-vector-per-text contract
	ErrEmbeddingCountMismatch = errors.New("unexpected embedding count")

	ErrEmbeddingModelMismatch     = errors.New("embedder model does not match the requested model")
	ErrEmbeddingDimensionMismatch = errors.New("unexpected embedding dimensions")

	ErrPipelineBusy     = errors.New("pipeline run already in progress")
	ErrSchedulerStopped = errors.New("scheduler is stopped")
)

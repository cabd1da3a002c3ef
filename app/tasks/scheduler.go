package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/truth-news/app/embedding"
	"github.com/lysyi3m/truth-news/app/sources"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

type SchedulerOptions struct {
	Interval    time.Duration
	WorkerCount int
	TaskTimeout time.Duration
	Run         RunOptions
}

// Scheduler runs the pipeline on a ticker and executes queued tasks on a small worker pool.
// Failed tasks are retried with capped exponential backoff.
type Scheduler struct {
	pipeline    *Pipeline
	sources     []sources.Source
	runOptions  RunOptions
	interval    time.Duration
	workerCount int
	taskTimeout time.Duration
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface

	// mu guards stopped and every send on taskQueue, so nothing is sent after close
	mu      sync.Mutex
	stopped bool
}

func NewScheduler(pipeline *Pipeline, srcs []sources.Source, opts SchedulerOptions) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	if opts.Interval <= 0 {
		opts.Interval = 15 * time.Minute
	}
	if opts.WorkerCount <= 0 {
		opts.WorkerCount = 1
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = 30 * time.Minute
	}

	return &Scheduler{
		pipeline:    pipeline,
		sources:     srcs,
		runOptions:  opts.Run,
		interval:    opts.Interval,
		workerCount: opts.WorkerCount,
		taskTimeout: opts.TaskTimeout,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, 16),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueRun("startup")

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueRun("schedule")
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrSchedulerStopped
	}

	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

// Trigger queues a pipeline run outside the schedule and returns its task id
func (s *Scheduler) Trigger(trigger string) (string, error) {
	task := NewPipelineRunTask(s.pipeline, s.sources, s.runOptions, trigger)
	if err := s.EnqueueTask(task); err != nil {
		return "", err
	}
	return task.GetID(), nil
}

func (s *Scheduler) enqueueRun(trigger string) {
	opts := s.runOptions
	opts.RespectIntervals = true

	task := NewPipelineRunTask(s.pipeline, s.sources, opts, trigger)
	if err := s.EnqueueTask(task); err != nil {
		slog.Warn("Failed to enqueue PipelineRunTask", "trigger", trigger, "error", err)
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, s.taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if isPermanent(err) {
		slog.Error("Task failed with a non-retryable error", "type", string(task.GetType()), "id", task.GetID(), "error", err)
		return
	}

	if !task.CanRetry() {
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		return
	}

	task.IncrementRetryCount()
	retryDelay := retryBackoff(task.GetRetryCount())

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "scope", task.GetScope(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	go func() {
		select {
		case <-time.After(retryDelay):
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
			return
		}
		if retryErr := s.EnqueueTask(task); retryErr != nil {
			slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
		}
	}()
}

// retryBackoff doubles from one second and caps at 30 seconds
func retryBackoff(retryCount int) time.Duration {
	delay := time.Duration(1<<uint(retryCount-1)) * time.Second
	if delay > 30*time.Second {
		delay = 30 * time.Second
	}
	return delay
}

// isPermanent reports configuration and contract errors, which a retry cannot fix
func isPermanent(err error) bool {
	return errors.Is(err, ErrEmbeddingCountMismatch) ||
		errors.Is(err, ErrEmbeddingModelMismatch) ||
		errors.Is(err, ErrEmbeddingDimensionMismatch) ||
		errors.Is(err, embedding.ErrMissingCredentials) ||
		errors.Is(err, context.Canceled)
}

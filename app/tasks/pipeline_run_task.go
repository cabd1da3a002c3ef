package tasks

import (
	"context"
	"log/slog"

	"github.com/lysyi3m/truth-news/app/sources"
)

// PipelineRunTask runs the whole pipeline once; used by the scheduler and API triggers
type PipelineRunTask struct {
	Task
	Options RunOptions
	Stats   *RunStats

	pipeline *Pipeline
	sources  []sources.Source
}

func NewPipelineRunTask(pipeline *Pipeline, srcs []sources.Source, opts RunOptions, trigger string) *PipelineRunTask {
	return &PipelineRunTask{
		Task:     NewTask(TaskTypePipelineRun, trigger),
		Options:  opts,
		pipeline: pipeline,
		sources:  srcs,
	}
}

func (t *PipelineRunTask) Execute(ctx context.Context) error {
	stats, err := t.pipeline.Run(ctx, t.sources, t.Options)
	t.Stats = stats
	if err != nil {
		return err
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"trigger", t.GetScope(),
		"duration", t.GetDuration(),
		"run_id", stats.RunID)

	return nil
}

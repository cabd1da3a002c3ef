// Package metrics exposes Prometheus metrics for pipeline runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "truthnews"

var (
	// StageRunsTotal counts stage executions by outcome.
	StageRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_runs_total",
			Help:      "Total number of pipeline stage runs",
		},
		[]string{"stage", "status"},
	)

	// StageDuration measures stage duration.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"stage"},
	)

	// StageItemsTotal counts the stat counters a stage reports, e.g. fetch/queued_items.
	StageItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_items_total",
			Help:      "Items processed by pipeline stages, by counter",
		},
		[]string{"stage", "counter"},
	)

	// HTTPRetriesTotal counts retried HTTP attempts.
	HTTPRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_retries_total",
			Help:      "Total number of retried HTTP requests",
		},
	)

	// PipelineRunning is 1 while a pipeline run holds the runner lock.
	PipelineRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "Pipeline run in progress (1 = running, 0 = idle)",
		},
	)
)

// RecordStage records one stage execution and its counters.
func RecordStage(stage string, err error, seconds float64, counters map[string]int) {
	status := "success"
	if err != nil {
		status = "error"
	}
	StageRunsTotal.WithLabelValues(stage, status).Inc()
	StageDuration.WithLabelValues(stage).Observe(seconds)

	for name, value := range counters {
		if value > 0 {
			StageItemsTotal.WithLabelValues(stage, name).Add(float64(value))
		}
	}
}

// RecordRetry records one retried HTTP attempt.
func RecordRetry() {
	HTTPRetriesTotal.Inc()
}

func SetPipelineRunning(running bool) {
	if running {
		PipelineRunning.Set(1)
		return
	}
	PipelineRunning.Set(0)
}

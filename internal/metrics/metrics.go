// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Run metrics
	RunsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "glimpse_runs_started_total",
			Help: "Total number of runs started",
		},
	)

	RunsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glimpse_runs_completed_total",
			Help: "Total number of runs completed, by terminal status",
		},
		[]string{"status"},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "glimpse_run_duration_seconds",
			Help:    "Wall-clock duration of a run",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	RunIterations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "glimpse_run_iterations",
			Help:    "Number of iterations a run took",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 50, 100},
		},
	)

	// Loop metrics
	StateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glimpse_state_transitions_total",
			Help: "Control loop state transitions",
		},
		[]string{"from", "to"},
	)

	// Reasoning metrics
	ReasoningDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "glimpse_reasoning_duration_seconds",
			Help:    "Latency of a reasoning step including retries",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 45, 90},
		},
		[]string{"result"},
	)

	ReasoningRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glimpse_reasoning_retries_total",
			Help: "Reasoning attempts retried, by cause",
		},
		[]string{"cause"},
	)

	// Device metrics
	ActionsExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glimpse_actions_total",
			Help: "Actions handed to the executor, by kind and result",
		},
		[]string{"kind", "result"},
	)

	CaptureDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "glimpse_capture_duration_seconds",
			Help:    "Time to capture one screenshot",
			Buckets: prometheus.DefBuckets,
		},
	)

	ScreenshotsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "glimpse_screenshots_dropped_total",
			Help: "Screenshots not persisted because the write queue was full",
		},
	)

	RunLogDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "glimpse_runlog_dropped_total",
			Help: "Run log records dropped because the write queue was full",
		},
	)
)

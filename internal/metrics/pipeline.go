// Package metrics exposes Prometheus collectors for the HTTP layer, the
// resume pipeline and model provider calls.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "showcase",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline stage.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		},
		[]string{"stage", "outcome"},
	)

	jobsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "showcase",
			Subsystem: "pipeline",
			Name:      "jobs_finished_total",
			Help:      "Jobs that reached a terminal status.",
		},
		[]string{"status"},
	)

	jobsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "showcase",
			Subsystem: "pipeline",
			Name:      "jobs_in_progress",
			Help:      "Jobs currently being processed by workers.",
		},
	)

	modelCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "showcase",
			Subsystem: "model",
			Name:      "calls_total",
			Help:      "Model provider calls by operation and outcome.",
		},
		[]string{"model", "operation", "outcome"},
	)

	limiterWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "showcase",
			Subsystem: "model",
			Name:      "limiter_wait_seconds",
			Help:      "Time spent waiting for a provider rate limit token.",
			Buckets:   []float64{0, 0.1, 1, 5, 12, 30, 60, 120},
		},
		[]string{"model"},
	)
)

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveStage records how long a stage ran and whether it failed.
func ObserveStage(stage string, started time.Time, err error) {
	stageDuration.WithLabelValues(stage, outcome(err)).Observe(time.Since(started).Seconds())
}

func JobStarted() {
	jobsInProgress.Inc()
}

// JobFinished records a terminal status for a job started with JobStarted.
func JobFinished(status string) {
	jobsInProgress.Dec()
	jobsFinished.WithLabelValues(status).Inc()
}

func ModelCall(model, operation string, err error) {
	modelCalls.WithLabelValues(model, operation, outcome(err)).Inc()
}

func LimiterWait(model string, waited time.Duration) {
	limiterWait.WithLabelValues(model).Observe(waited.Seconds())
}

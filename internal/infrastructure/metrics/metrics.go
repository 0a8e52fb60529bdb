package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "charstudio"

var (
	// HTTPRequestsTotal counts HTTP requests by method, path and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests processed",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes HTTP request latency by path.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// TasksRegistered counts generation tasks entering the registry by kind.
	TasksRegistered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "registered_total",
			Help:      "Generation tasks registered, by kind",
		},
		[]string{"kind"},
	)

	// TaskTransitions counts task status transitions by kind and new status.
	TaskTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "transitions_total",
			Help:      "Task status transitions, by kind and resulting status",
		},
		[]string{"kind", "status"},
	)

	// TasksTimedOut counts tasks failed by the timeout sweep.
	TasksTimedOut = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "timed_out_total",
			Help:      "Tasks failed because they exceeded the age ceiling",
		},
	)

	// ActiveTasks tracks the number of non-terminal tasks in the registry.
	ActiveTasks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "active",
			Help:      "Non-terminal tasks currently tracked",
		},
	)

	// PollCycles counts completed polling loop iterations by loop name.
	PollCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "cycles_total",
			Help:      "Polling loop iterations, by loop",
		},
		[]string{"loop"},
	)

	// StudioCallDuration observes outbound generation backend call latency.
	StudioCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "studio",
			Name:      "call_duration_seconds",
			Help:      "Generation backend call duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"operation", "outcome"},
	)

	// GalleryRefreshes counts gallery reconciliations by trigger.
	GalleryRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gallery",
			Name:      "refreshes_total",
			Help:      "Gallery refreshes, by trigger",
		},
		[]string{"trigger"},
	)
)

// ObserveStudioCall records one outbound backend call.
func ObserveStudioCall(operation string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	StudioCallDuration.WithLabelValues(operation, outcome).Observe(time.Since(start).Seconds())
}

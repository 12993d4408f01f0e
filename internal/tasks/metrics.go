package tasks

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nhle/tracker/internal/model"
)

var (
	mutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tracker",
		Subsystem: "tasks",
		Name:      "mutations_total",
		Help:      "Task mutations broken down by operation and result kind.",
	}, []string{"op", "result"})

	mutationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tracker",
		Subsystem: "tasks",
		Name:      "mutation_latency_seconds",
		Help:      "Latency distribution for task mutations.",
		Buckets: []float64{
			0.0005, 0.001, 0.002, 0.005,
			0.01, 0.02, 0.05, 0.1,
			0.2, 0.5, 1,
		},
	}, []string{"op"})

	successorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tracker",
		Subsystem: "tasks",
		Name:      "successors_spawned_total",
		Help:      "Recurring task successors created on completion.",
	})
)

func recordMutation(op string, err error, started time.Time) {
	mutationsTotal.With(prometheus.Labels{
		"op":     op,
		"result": model.Kind(err),
	}).Inc()
	mutationLatency.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

package weather

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for fetch orchestration.
var (
	fetchTasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "frost_fetch_tasks_total",
		Help: "Total fetch tasks by mode and outcome",
	}, []string{"mode", "outcome"})

	fetchTaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "frost_fetch_task_duration_seconds",
		Help:    "Fetch task duration in seconds by mode",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"mode"})

	fetchInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "frost_fetch_in_flight",
		Help: "Number of fetch calls currently outstanding",
	})

	fetchRowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "frost_fetch_rows_total",
		Help: "Total observation rows returned by successful runs by mode",
	}, []string{"mode"})
)

package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "frost_ingest_runs_total",
		Help: "Ingest runs by mode and outcome (ok, empty, fetch_failed, sink_failed)",
	}, []string{"mode", "outcome"})

	sinkRowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "frost_sink_rows_written_total",
		Help: "Rows written per sink",
	}, []string{"sink"})
)

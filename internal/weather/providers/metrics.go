package providers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frost_api_requests_total",
			Help: "Frost API requests by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"}, // outcome: ok, no_data, error
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "frost_api_request_duration_seconds",
			Help:    "Frost API request latency including retries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	cacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frost_cache_lookups_total",
			Help: "Observation cache lookups by result",
		},
		[]string{"result"}, // hit, miss, error
	)
)

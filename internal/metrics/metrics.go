// Package metrics defines the Prometheus instrumentation for the scrape
// pipeline. All collectors register on the default registry via promauto;
// expose them with promhttp when a metrics address is configured.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchesTotal counts fetch attempts by terminal result kind
	// ("success" or an error kind).
	FetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mallcrawl_fetches_total",
		Help: "Total fetch attempts by result",
	}, []string{"result"})

	// FetchDurationSeconds observes per-request latency.
	FetchDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mallcrawl_fetch_duration_seconds",
		Help:    "Fetch latency distribution",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	// RetriesTotal counts backoff retries by error kind.
	RetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mallcrawl_retries_total",
		Help: "Total retry attempts by error kind",
	}, []string{"error_kind"})

	// RetryExhaustedTotal counts targets that burned their whole retry budget.
	RetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mallcrawl_retry_exhausted_total",
		Help: "Targets that exhausted all retry attempts by error kind",
	}, []string{"error_kind"})

	// RecordsValidatedTotal counts validation decisions.
	RecordsValidatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mallcrawl_records_validated_total",
		Help: "Validated records by outcome (accepted or rejected)",
	}, []string{"outcome"})

	// InflightFetches tracks concurrent in-flight detail fetches.
	InflightFetches = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mallcrawl_inflight_fetches",
		Help: "Detail fetches currently in flight",
	})
)

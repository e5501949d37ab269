// Package metrics holds the Prometheus collectors for the pipeline and the
// query API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "applyflow"

var (
	// RecordsTotal counts processed records by outcome
	// (succeeded, duplicate, failed).
	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Records processed by the runner, by outcome",
		},
		[]string{"outcome"},
	)

	// DocumentsTotal counts document extractions by kind and outcome
	// (extracted, cached, fetch_failed, extract_failed, empty).
	DocumentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_total",
			Help:      "Documents handled, by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	ExtractionAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_attempts_total",
			Help:      "Calls made to the text recognizer, by kind",
		},
		[]string{"kind"},
	)

	StoreRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_throttle_retries_total",
			Help:      "Writes retried after a throttling signal, by operation",
		},
		[]string{"op"},
	)

	RecordDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "record_duration_seconds",
			Help:      "Time spent processing one record end to end",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
		},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Query API requests, by route and status",
		},
		[]string{"route", "status"},
	)
)

// Package metrics provides Prometheus metrics for the HTTP server, label
// extraction, alternative queries and dataset reloads.
//
// HTTP metrics:
//   - http_request_total: Counter with method, path, and status labels
//   - http_request_duration_seconds: Histogram with method and path labels
//   - http_request_in_flight: Gauge for concurrent requests
//
// All metrics are registered with the Prometheus default registry during
// package initialization.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	RateLimiterBucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Total number of rate limiter buckets (IPs seen in last ~5 minutes)",
		},
	)

	LabelsExtractedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labels_extracted_total",
			Help: "Medication labels run through the feature extractor",
		},
		[]string{"dosage"},
	)

	AlternativesQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alternatives_queries_total",
			Help: "Alternative queries by outcome",
		},
		[]string{"outcome"},
	)

	AlternativesQueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "alternatives_query_duration_seconds",
			Help:    "Time spent ranking and filtering alternatives",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		},
	)

	DatasetReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_reloads_total",
			Help: "Dataset reloads by status",
		},
		[]string{"status"},
	)

	DatasetRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dataset_records",
			Help: "Medications in the served dataset",
		},
	)

	DatasetLastReload = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dataset_last_reload_timestamp_seconds",
			Help: "Unix time of the last successful dataset reload",
		},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(RateLimiterBucketsTotal)
	prometheus.MustRegister(LabelsExtractedTotal)
	prometheus.MustRegister(AlternativesQueriesTotal)
	prometheus.MustRegister(AlternativesQueryDuration)
	prometheus.MustRegister(DatasetReloadsTotal)
	prometheus.MustRegister(DatasetRecords)
	prometheus.MustRegister(DatasetLastReload)
}

// ObserveExtraction records a batch of extracted labels.
func ObserveExtraction(matched, missing int) {
	LabelsExtractedTotal.WithLabelValues("matched").Add(float64(matched))
	LabelsExtractedTotal.WithLabelValues("missing").Add(float64(missing))
}

// ObserveAlternatives records one alternative query. outcome is "found",
// "empty" or an error class.
func ObserveAlternatives(outcome string, elapsed time.Duration) {
	AlternativesQueriesTotal.WithLabelValues(outcome).Inc()
	AlternativesQueryDuration.Observe(elapsed.Seconds())
}

// ObserveReload records a dataset reload.
func ObserveReload(err error, records int, at time.Time) {
	if err != nil {
		DatasetReloadsTotal.WithLabelValues("failure").Inc()
		return
	}
	DatasetReloadsTotal.WithLabelValues("success").Inc()
	DatasetRecords.Set(float64(records))
	DatasetLastReload.Set(float64(at.Unix()))
}

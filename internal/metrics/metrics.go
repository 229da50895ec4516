// Package metrics defines per-stage Prometheus counters and gauges and the
// registry that the serve command exposes on /metrics. The pipeline stages
// do not update these metrics, so the served values stay at zero. Grounded
// on etalazz-vsa's use of prometheus/client_golang for a worker-pipeline
// service of similar shape.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// StageRuns counts how many times each pipeline stage has run, labeled
	// by the stage name and the resulting exit code string.
	StageRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pmcpipeline",
		Name:      "stage_runs_total",
		Help:      "Number of times a pipeline stage has run, by exit code.",
	}, []string{"stage", "exit_code"})

	// StageDurationSeconds observes wall-clock time spent in each stage.
	StageDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pmcpipeline",
		Name:      "stage_duration_seconds",
		Help:      "Wall-clock time spent in a pipeline stage.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
	}, []string{"stage"})

	// ArticlesProcessed counts articles written by the data-extraction
	// stage's consumer.
	ArticlesProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "pmcpipeline",
		Name:      "articles_processed_total",
		Help:      "Number of articles whose extractor output was written to disk.",
	})

	// EntrezRequestFailures counts retryable Entrez request failures by
	// endpoint, mirroring the Entrez client's nFailures bookkeeping.
	EntrezRequestFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pmcpipeline",
		Name:      "entrez_request_failures_total",
		Help:      "Retryable Entrez request failures, by endpoint.",
	}, []string{"endpoint"})

	// InFlightArticles gauges the current size of the data-extraction
	// producer/consumer semaphore.
	InFlightArticles = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "pmcpipeline",
		Name:      "extract_in_flight_articles",
		Help:      "Articles accepted by the producer but not yet written by the consumer.",
	})
)

// Registry holds every metric defined here so the HTTP server can expose
// them without relying on the global default registry.
func Registry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(StageRuns, StageDurationSeconds, ArticlesProcessed, EntrezRequestFailures, InFlightArticles)
	return reg
}

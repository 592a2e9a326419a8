// Package metrics exposes Prometheus collectors for the collector service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	collectorFetchesTotal         *prometheus.CounterVec
	collectorRecordsTotal         *prometheus.CounterVec
	collectorFetchBytesTotal      *prometheus.CounterVec
	collectorFetchDurationSeconds *prometheus.HistogramVec
	collectorModuleRestartsTotal  *prometheus.CounterVec
	collectorSchedulerRunsTotal   *prometheus.CounterVec
	collectorQueuePublishesTotal  *prometheus.CounterVec
	collectorStorageWritesTotal   *prometheus.CounterVec
	httpRequestsTotal             *prometheus.CounterVec
	httpRequestDurationSeconds    *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		collectorFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_fetches_total",
				Help: "Total number of source fetches, labeled by source and status.",
			},
			[]string{"source", "status"},
		)

		collectorRecordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_records_total",
				Help: "Total number of data records collected, labeled by source.",
			},
			[]string{"source"},
		)

		collectorFetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_fetch_bytes_total",
				Help: "Total number of bytes fetched, labeled by source.",
			},
			[]string{"source"},
		)

		collectorFetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "collector_fetch_duration_seconds",
				Help:    "Histogram of source fetch latencies, labeled by source.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"source"},
		)

		collectorModuleRestartsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_module_restarts_total",
				Help: "Total number of module restarts, labeled by module.",
			},
			[]string{"module"},
		)

		collectorSchedulerRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_scheduler_runs_total",
				Help: "Total number of scheduled job runs, labeled by job and status.",
			},
			[]string{"job", "status"},
		)

		collectorQueuePublishesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_queue_publishes_total",
				Help: "Total number of queue publish attempts, labeled by topic and status.",
			},
			[]string{"topic", "status"},
		)

		collectorStorageWritesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_storage_writes_total",
				Help: "Total number of record store writes, labeled by store and status.",
			},
			[]string{"store", "status"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSource sanitizes a source URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSource(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records the outcome of one source fetch.
func ObserveFetch(source, status string, bytesFetched int, duration time.Duration) {
	sanitized := SanitizeSource(source)
	collectorFetchesTotal.WithLabelValues(sanitized, status).Inc()
	if bytesFetched > 0 {
		collectorFetchBytesTotal.WithLabelValues(sanitized).Add(float64(bytesFetched))
	}
	collectorFetchDurationSeconds.WithLabelValues(sanitized).Observe(duration.Seconds())
}

// ObserveRecords increments the collected record counter for a source.
func ObserveRecords(source string, count int) {
	if count > 0 {
		collectorRecordsTotal.WithLabelValues(SanitizeSource(source)).Add(float64(count))
	}
}

// ObserveModuleRestart increments the restart counter for a module.
func ObserveModuleRestart(module string) {
	collectorModuleRestartsTotal.WithLabelValues(module).Inc()
}

// ObserveSchedulerRun increments the scheduled-run counter for a job.
func ObserveSchedulerRun(job, status string) {
	collectorSchedulerRunsTotal.WithLabelValues(job, status).Inc()
}

// ObserveQueuePublish increments the publish counter for a topic.
func ObserveQueuePublish(topic, status string) {
	collectorQueuePublishesTotal.WithLabelValues(topic, status).Inc()
}

// ObserveStorageWrite increments the write counter for a record store.
func ObserveStorageWrite(store, status string) {
	collectorStorageWritesTotal.WithLabelValues(store, status).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Package metrics provides Prometheus metrics for the query fallback stack.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "retrace_cache_hits_total",
			Help: "Total number of cache hits",
		},
	)
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "retrace_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)
	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "retrace_cache_evictions_total",
			Help: "Total number of cache entries removed by invalidation or sweep",
		},
	)
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrace_api_requests_total",
			Help: "Total number of memos API requests by endpoint",
		},
		[]string{"endpoint"},
	)
	APIFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrace_api_failures_total",
			Help: "Total number of failed memos API requests by endpoint",
		},
		[]string{"endpoint"},
	)
	DBQueries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "retrace_db_queries_total",
			Help: "Total number of direct SQL queries",
		},
	)
	DBFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "retrace_db_failures_total",
			Help: "Total number of failed direct SQL queries",
		},
	)
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "retrace_query_duration_seconds",
			Help:    "Repository query duration by serving path",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"path"},
	)
	CircuitsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "retrace_circuits_open",
			Help: "Number of currently open circuit breaker endpoints",
		},
	)
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrace_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "retrace_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

// Serving paths for QueryDuration.
const (
	PathCache = "cache"
	PathAPI   = "api"
	PathDB    = "db"
)

func RecordCacheHit()  { CacheHits.Inc() }
func RecordCacheMiss() { CacheMisses.Inc() }

func RecordCacheEvictions(n int) {
	CacheEvictions.Add(float64(n))
}

func RecordAPIRequest(endpoint string) {
	APIRequests.WithLabelValues(endpoint).Inc()
}

func RecordAPIFailure(endpoint string) {
	APIFailures.WithLabelValues(endpoint).Inc()
}

func RecordDBQuery()   { DBQueries.Inc() }
func RecordDBFailure() { DBFailures.Inc() }

func RecordQueryDuration(path string, d time.Duration) {
	QueryDuration.WithLabelValues(path).Observe(d.Seconds())
}

func UpdateOpenCircuits(count int) {
	CircuitsOpen.Set(float64(count))
}

func RecordHTTPRequest(method, endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

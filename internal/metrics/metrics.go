// Package metrics exposes Prometheus collectors for the scraper service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scraperRunsTotal           *prometheus.CounterVec
	scraperListingsTotal       prometheus.Counter
	scraperRunDurationSeconds  *prometheus.HistogramVec
	scraperActiveRuns          prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		scraperRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_runs_total",
				Help: "Total number of scraping runs, labeled by terminal status.",
			},
			[]string{"status"},
		)

		scraperListingsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scraper_listings_persisted_total",
				Help: "Total number of listings persisted across all runs.",
			},
		)

		scraperRunDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scraper_run_duration_seconds",
				Help:    "Histogram of scraping run durations, labeled by status.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"status"},
		)

		scraperActiveRuns = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scraper_active_runs",
				Help: "Number of scraping runs currently in flight.",
			},
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

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRun records a finished run with its terminal status and duration.
func ObserveRun(status string, duration time.Duration) {
	if scraperRunsTotal == nil {
		return
	}
	scraperRunsTotal.WithLabelValues(status).Inc()
	scraperRunDurationSeconds.WithLabelValues(status).Observe(duration.Seconds())
}

// AddListingsPersisted adds to the persisted listings counter.
func AddListingsPersisted(n int) {
	if scraperListingsTotal == nil || n <= 0 {
		return
	}
	scraperListingsTotal.Add(float64(n))
}

// IncActiveRuns increments the in-flight runs gauge.
func IncActiveRuns() {
	if scraperActiveRuns != nil {
		scraperActiveRuns.Inc()
	}
}

// DecActiveRuns decrements the in-flight runs gauge.
func DecActiveRuns() {
	if scraperActiveRuns != nil {
		scraperActiveRuns.Dec()
	}
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

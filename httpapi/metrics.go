package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the API. All methods are no-ops on
// a nil *Metrics.
type Metrics struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	rateLimited     prometheus.Counter
	failedDays      prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "appointments_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status_code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "appointments_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "appointments_rate_limited_total",
			Help: "Requests rejected by the per-tenant rate limiter.",
		}),
		failedDays: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "appointments_roster_failed_days_total",
			Help: "Days omitted from roster results because their query failed.",
		}),
	}

	reg.MustRegister(
		m.requests,
		m.requestDuration,
		m.rateLimited,
		m.failedDays,
	)

	return m
}

func (m *Metrics) RecordRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (m *Metrics) RecordRateLimited() {
	if m == nil {
		return
	}

	m.rateLimited.Inc()
}

func (m *Metrics) RecordFailedDays(n int) {
	if m == nil || n == 0 {
		return
	}

	m.failedDays.Add(float64(n))
}

// MetricsHandler returns the Prometheus scrape handler for gatherer.
func MetricsHandler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

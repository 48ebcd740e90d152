// Package metrics provides Prometheus instrumentation for the gateway.
// It covers both the HTTP surface and the batch orchestrator.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics encapsulates Prometheus metrics for the server.
type Metrics struct {
	registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ActiveRequests  *prometheus.GaugeVec
	ErrorsTotal     *prometheus.CounterVec
	RateLimitHits   *prometheus.CounterVec

	// Batch orchestrator metrics
	BatchesTotal      prometheus.Counter
	PromptsTotal      *prometheus.CounterVec
	BatchDuration     prometheus.Histogram
	WindowDuration    prometheus.Histogram
	TimeToFirstResult prometheus.Histogram
}

// NewMetrics creates a new Metrics instance with a custom registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		registry: registry,
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "humbleclay_http_requests_total",
				Help: "Total number of HTTP requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "humbleclay_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		ActiveRequests: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "humbleclay_http_active_requests",
				Help: "Number of currently active HTTP requests",
			},
			[]string{"endpoint"},
		),
		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "humbleclay_errors_total",
				Help: "Total number of errors by type",
			},
			[]string{"type"},
		),
		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "humbleclay_rate_limit_hits_total",
				Help: "Total number of rate limit hits by client",
			},
			[]string{"client"},
		),
		BatchesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "humbleclay_batches_total",
				Help: "Total number of batch runs processed",
			},
		),
		PromptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "humbleclay_prompts_total",
				Help: "Total number of prompts processed by outcome status",
			},
			[]string{"status"},
		),
		BatchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "humbleclay_batch_duration_seconds",
				Help:    "Wall-clock duration of full batch runs",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		),
		WindowDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "humbleclay_batch_window_duration_seconds",
				Help:    "Duration of individual batch windows",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
		),
		TimeToFirstResult: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "humbleclay_batch_time_to_first_result_seconds",
				Help:    "Time from batch run start to the first successful outcome",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
		),
	}

	// Register default Go metrics
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Initialize some default metrics
	m.RequestsTotal.WithLabelValues("/health", "200").Add(0)
	m.RequestsTotal.WithLabelValues("/metrics", "200").Add(0)
	m.PromptsTotal.WithLabelValues("success").Add(0)
	m.PromptsTotal.WithLabelValues("error").Add(0)

	return m
}

// Registry exposes the underlying registry so other components can
// register their own collectors (e.g. the circuit breaker).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns a handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: false,
	})
}

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics encapsulates Prometheus metrics for the bot.
type Metrics struct {
	registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ActiveRequests  *prometheus.GaugeVec
	ErrorsTotal     *prometheus.CounterVec

	// Pipeline metrics
	MentionsTotal      *prometheus.CounterVec
	CompletionDuration prometheus.Histogram
	RepliesPosted      prometheus.Counter
	TokensUsed         *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with a custom registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		registry: registry,
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slackgpt_http_requests_total",
				Help: "Total number of HTTP requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "slackgpt_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		ActiveRequests: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "slackgpt_http_active_requests",
				Help: "Number of currently active HTTP requests",
			},
			[]string{"endpoint"},
		),
		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slackgpt_errors_total",
				Help: "Total number of errors by type",
			},
			[]string{"type"},
		),
		MentionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slackgpt_mentions_total",
				Help: "Total number of mention events by outcome",
			},
			[]string{"outcome"},
		),
		CompletionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "slackgpt_completion_duration_seconds",
				Help:    "Duration of completion calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		RepliesPosted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "slackgpt_replies_posted_total",
				Help: "Total number of replies posted back to threads",
			},
		),
		TokensUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slackgpt_completion_tokens_total",
				Help: "Total tokens consumed by completion calls",
			},
			[]string{"kind"},
		),
	}

	// Register default Go metrics
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Initialize some default metrics
	m.RequestsTotal.WithLabelValues("/health", "200").Add(0)
	m.RequestsTotal.WithLabelValues("/metrics", "200").Add(0)
	m.ActiveRequests.WithLabelValues("queued").Add(0)
	m.ActiveRequests.WithLabelValues("processing").Add(0)

	return m
}

// Registry exposes the underlying registry for additional collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns a handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: false,
	})
}

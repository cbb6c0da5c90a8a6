package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Business metrics
	RegistrationsTotal *prometheus.CounterVec
	EmailsTotal        *prometheus.CounterVec
	ResetTokensPurged  prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventhub_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "eventhub_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		RegistrationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventhub_registrations_total",
				Help: "Event registration attempts by outcome",
			},
			[]string{"outcome"},
		),
		EmailsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventhub_emails_total",
				Help: "Outgoing emails by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		ResetTokensPurged: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "eventhub_reset_tokens_purged_total",
				Help: "Expired password reset tokens cleared by housekeeping",
			},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.RegistrationsTotal,
		m.EmailsTotal,
		m.ResetTokensPurged,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// The helpers below accept a nil receiver so components can run without metrics.

func (m *Metrics) Registration(outcome string) {
	if m == nil {
		return
	}
	m.RegistrationsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Email(kind, outcome string) {
	if m == nil {
		return
	}
	m.EmailsTotal.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) ResetTokensCleared(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.ResetTokensPurged.Add(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

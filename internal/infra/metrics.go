package infra

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the service. A nil *Metrics is a no-op.
type Metrics struct {
	registry      *prometheus.Registry
	handler       http.Handler
	signals       *prometheus.CounterVec
	authRejected  *prometheus.CounterVec
	notifications *prometheus.CounterVec
	rateLimited   *prometheus.CounterVec
}

// NewMetrics initialises a private registry and the service collectors
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	signals := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tradejournal_signals_total",
		Help: "Ingested trade signals by terminal outcome.",
	}, []string{"outcome"})
	authRejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tradejournal_auth_rejections_total",
		Help: "Authentication and authorization rejections by reason.",
	}, []string{"surface", "reason"})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tradejournal_notifications_total",
		Help: "Telegram forwarding attempts by result.",
	}, []string{"result"})
	rateLimited := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tradejournal_rate_limited_total",
		Help: "Requests rejected by a rate limiter.",
	}, []string{"limiter"})
	registry.MustRegister(
		signals,
		authRejected,
		notifications,
		rateLimited,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Metrics{
		registry:      registry,
		handler:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		signals:       signals,
		authRejected:  authRejected,
		notifications: notifications,
		rateLimited:   rateLimited,
	}
}

// Handler returns the /metrics endpoint
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry exposes the registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// SignalOutcome counts one ingestion request by its terminal outcome
func (m *Metrics) SignalOutcome(outcome string) {
	if m == nil {
		return
	}
	m.signals.WithLabelValues(outcome).Inc()
}

// AuthRejected counts one rejection on a surface ("page", "api", "webhook")
func (m *Metrics) AuthRejected(surface, reason string) {
	if m == nil {
		return
	}
	m.authRejected.WithLabelValues(surface, reason).Inc()
}

// Notification counts one forwarding attempt
func (m *Metrics) Notification(result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(result).Inc()
}

// RateLimited counts one limited request
func (m *Metrics) RateLimited(limiter string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(limiter).Inc()
}

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gateway's prometheus collectors on a private registry so
// tests can construct independent instances.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal  *prometheus.CounterVec
	RateLimitHits  prometheus.Counter
	DevicesActive  prometheus.Gauge
	RequestSeconds prometheus.Histogram
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Requests processed by the pipeline, by status code.",
		}, []string{"status"}),
		RateLimitHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_rate_limit_hits_total",
			Help: "Requests rejected by the rate limiter.",
		}),
		DevicesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_devices_active",
			Help: "Registered devices that are active and unexpired.",
		}),
		RequestSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Request latency from receipt to response completion.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	registry.MustRegister(m.RequestsTotal, m.RateLimitHits, m.DevicesActive, m.RequestSeconds)
	return m
}

// Handler serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

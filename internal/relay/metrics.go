package relay

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry         *prometheus.Registry
	requestsTotal    *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	metrics := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gutenberg_relay_requests_total",
			Help: "Total number of relay requests",
		}, []string{"method", "code"}),
		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gutenberg_relay_upstream_duration_seconds",
			Help:    "Duration of upstream listing calls in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
	}
	metrics.registry.MustRegister(metrics.requestsTotal, metrics.upstreamDuration)
	return metrics
}

func (metrics *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(metrics.registry, promhttp.HandlerOpts{})
}

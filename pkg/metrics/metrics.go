package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the application's prometheus collectors.
type Metrics struct {
	MessagesSent       prometheus.Counter
	GenerationFailures prometheus.Counter
	ActiveConnections  prometheus.Gauge
	GenerationLatency  prometheus.Histogram
	registry           *prometheus.Registry
}

// New creates the metric set on its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		MessagesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "chat_messages_sent_total",
			Help: "Number of user messages accepted over the realtime channel.",
		}),
		GenerationFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "chat_generation_failures_total",
			Help: "Number of response generation calls that failed and fell back.",
		}),
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "chat_active_connections",
			Help: "Currently open realtime connections.",
		}),
		GenerationLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "chat_generation_duration_seconds",
			Help:    "Latency of response generation calls.",
			Buckets: prometheus.DefBuckets,
		}),
		registry: registry,
	}
}

// Handler returns the gin handler serving the metrics endpoint.
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

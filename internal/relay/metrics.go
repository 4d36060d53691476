package relay

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics are the relay's Prometheus instruments. Each Metrics owns its
// registry, so tests and several servers in one process never collide.
type Metrics struct {
	registry     *prometheus.Registry
	connections  prometheus.Gauge
	messages     *prometheus.CounterVec
	persistedOps prometheus.Counter
}

// NewMetrics creates the instruments and a registry holding them plus the
// Go runtime collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gisdoc",
			Subsystem: "relay",
			Name:      "connections",
			Help:      "Open websocket connections.",
		}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gisdoc",
			Subsystem: "relay",
			Name:      "messages_total",
			Help:      "Relay messages by type and direction.",
		}, []string{"type", "direction"}),
		persistedOps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gisdoc",
			Subsystem: "relay",
			Name:      "persisted_ops_total",
			Help:      "Ops newly written to the op log.",
		}),
	}
	m.registry.MustRegister(
		m.connections,
		m.messages,
		m.persistedOps,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) message(t MessageType, direction string) {
	m.messages.WithLabelValues(string(t), direction).Inc()
}

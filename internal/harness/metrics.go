package harness

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Responder's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	connectionsTotal  prometheus.Counter
	connectionsActive prometheus.Gauge
	messagesEchoed    prometheus.Counter
	disconnects       *prometheus.CounterVec
}

// NewMetrics registers the Responder collectors on reg. A nil reg gets a
// fresh registry.
func NewMetrics(reg *prometheus.Registry) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: reg,
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "echo_connections_total",
			Help: "WebSocket connections accepted",
		}),
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "echo_connections_active",
			Help: "WebSocket connections currently open",
		}),
		messagesEchoed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "echo_messages_total",
			Help: "Messages echoed back to clients",
		}),
		disconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "echo_disconnects_total",
			Help: "Connections ended, by reason",
		}, []string{"reason"}), // reason: closed|protocol|error
	}

	for _, c := range []prometheus.Collector{m.connectionsTotal, m.connectionsActive, m.messagesEchoed, m.disconnects} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) connOpened() {
	if m == nil {
		return
	}
	m.connectionsTotal.Inc()
	m.connectionsActive.Inc()
}

func (m *Metrics) connClosed(reason string) {
	if m == nil {
		return
	}
	m.connectionsActive.Dec()
	m.disconnects.WithLabelValues(reason).Inc()
}

func (m *Metrics) echoed() {
	if m == nil {
		return
	}
	m.messagesEchoed.Inc()
}

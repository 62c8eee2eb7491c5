package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Message error reasons (label values of counsel_message_errors_total).
const (
	reasonValidation  = "validation"
	reasonForbidden   = "forbidden"
	reasonPolicy      = "policy"
	reasonPersistence = "persistence"
)

// Metrics are the realtime collectors. A nil *Metrics records nothing.
type Metrics struct {
	connections      prometheus.Gauge
	registryUsers    prometheus.Gauge
	messagesSent     prometheus.Counter
	messageErrors    *prometheus.CounterVec
	broadcastDropped prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		connections: f.NewGauge(prometheus.GaugeOpts{
			Name: "counsel_ws_connections",
			Help: "Open websocket connections.",
		}),
		registryUsers: f.NewGauge(prometheus.GaugeOpts{
			Name: "counsel_registry_users",
			Help: "Users with a registered connection.",
		}),
		messagesSent: f.NewCounter(prometheus.CounterOpts{
			Name: "counsel_messages_sent_total",
			Help: "Messages persisted and broadcast.",
		}),
		messageErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "counsel_message_errors_total",
			Help: "Rejected or failed sends by reason.",
		}, []string{"reason"}),
		broadcastDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "counsel_broadcast_dropped_total",
			Help: "Envelopes dropped because a client queue was full.",
		}),
	}
}

func (m *Metrics) connOpened() {
	if m != nil {
		m.connections.Inc()
	}
}

func (m *Metrics) connClosed() {
	if m != nil {
		m.connections.Dec()
	}
}

func (m *Metrics) setRegistryUsers(n int) {
	if m != nil {
		m.registryUsers.Set(float64(n))
	}
}

func (m *Metrics) messageSent() {
	if m != nil {
		m.messagesSent.Inc()
	}
}

func (m *Metrics) messageError(reason string) {
	if m != nil {
		m.messageErrors.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) dropped(n int) {
	if m != nil && n > 0 {
		m.broadcastDropped.Add(float64(n))
	}
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wirechat"

// Metrics holds the collectors exported by channel actors and the transport.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	commands          *prometheus.CounterVec
	deliveries        *prometheus.CounterVec
	evictions         prometheus.Counter
	persistenceErrors *prometheus.CounterVec
	sessions          prometheus.Gauge
	channels          prometheus.Gauge
	rejectedFrames    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands processed by channel actors, by type and outcome.",
		}, []string{"type", "outcome"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_delivered_total",
			Help:      "Events handed to session connections, by event type.",
		}, []string{"type"}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_evicted_total",
			Help:      "Sessions removed after a failed delivery.",
		}),
		persistenceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_errors_total",
			Help:      "Failed durable reads and writes, by operation.",
		}, []string{"op"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Currently registered sessions across all channels.",
		}),
		channels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channels",
			Help:      "Channel actors currently running.",
		}),
		rejectedFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_frames_total",
			Help:      "Inbound frames rejected by the transport, by reason.",
		}, []string{"reason"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.commands,
			m.deliveries,
			m.evictions,
			m.persistenceErrors,
			m.sessions,
			m.channels,
			m.rejectedFrames,
		)
	}
	return m
}

func (m *Metrics) CommandProcessed(kind, outcome string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) EventDelivered(kind string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(kind).Inc()
}

func (m *Metrics) SessionEvicted() {
	if m == nil {
		return
	}
	m.evictions.Inc()
}

func (m *Metrics) PersistenceError(op string) {
	if m == nil {
		return
	}
	m.persistenceErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessions.Dec()
}

func (m *Metrics) ChannelStarted() {
	if m == nil {
		return
	}
	m.channels.Inc()
}

func (m *Metrics) ChannelStopped() {
	if m == nil {
		return
	}
	m.channels.Dec()
}

func (m *Metrics) FrameRejected(reason string) {
	if m == nil {
		return
	}
	m.rejectedFrames.WithLabelValues(reason).Inc()
}

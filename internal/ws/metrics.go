package ws

import "github.com/prometheus/client_golang/prometheus"

// Init failure reasons.
const (
	ReasonMalformed      = "malformed"
	ReasonInvalidSession = "invalid_session"
	ReasonStoreError     = "store_error"
	ReasonTimeout        = "timeout"
)

// Metrics holds the connection core's Prometheus collectors.
type Metrics struct {
	evictions    prometheus.Counter
	initFailures *prometheus.CounterVec
	deliveries   prometheus.Counter
	skipped      prometheus.Counter
}

// NewMetrics creates the collectors and registers them, together with
// gauges read from registry, on reg. A nil reg skips registration.
func NewMetrics(reg prometheus.Registerer, registry *Registry) *Metrics {
	m := &Metrics{
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "study",
			Subsystem: "ws",
			Name:      "evictions_total",
			Help:      "Connections closed because a newer connection claimed the same session and client.",
		}),
		initFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "study",
			Subsystem: "ws",
			Name:      "init_failures_total",
			Help:      "Handshakes that did not activate a connection, by reason.",
		}, []string{"reason"}),
		deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "study",
			Subsystem: "ws",
			Name:      "broadcast_deliveries_total",
			Help:      "Event envelopes queued to connections.",
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "study",
			Subsystem: "ws",
			Name:      "broadcast_skipped_total",
			Help:      "Event envelopes dropped because the connection was closed or its queue was full.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.evictions,
			m.initFailures,
			m.deliveries,
			m.skipped,
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: "study",
				Subsystem: "ws",
				Name:      "active_sessions",
				Help:      "Sessions with at least one active connection.",
			}, func() float64 { return float64(registry.SessionCount()) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: "study",
				Subsystem: "ws",
				Name:      "active_connections",
				Help:      "Active connections across all sessions.",
			}, func() float64 { return float64(registry.ConnectionCount()) }),
		)
	}

	return m
}

func (m *Metrics) eviction() {
	if m != nil {
		m.evictions.Inc()
	}
}

func (m *Metrics) initFailure(reason string) {
	if m != nil {
		m.initFailures.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) delivered(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.deliveries.Inc()
	} else {
		m.skipped.Inc()
	}
}

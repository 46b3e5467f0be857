// Package prometheus contains the Prometheus implementations of the
// interfaces in pkg/metrics. Importing it (for side effects) wires the
// constructors into the interface package.
package prometheus

import (
	"github.com/marmos91/keywarden/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func init() {
	metrics.RegisterSessionMetricsConstructor(newSessionMetrics)
}

// sessionMetrics is the Prometheus implementation for IPC session metrics.
type sessionMetrics struct {
	accepted prometheus.Counter
	rejected prometheus.Counter
	active   prometheus.Gauge
}

func newSessionMetrics() metrics.SessionMetrics {
	reg := metrics.GetRegistry()

	return &sessionMetrics{
		accepted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "keywarden_sessions_accepted_total",
			Help: "Total number of sessions whose cookie handshake succeeded",
		}),
		rejected: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "keywarden_sessions_rejected_total",
			Help: "Total number of connections dropped during the cookie handshake",
		}),
		active: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "keywarden_sessions_active",
			Help: "Number of currently served sessions",
		}),
	}
}

func (m *sessionMetrics) RecordSessionAccepted() {
	if m == nil {
		return
	}
	m.accepted.Inc()
	m.active.Inc()
}

func (m *sessionMetrics) RecordSessionRejected() {
	if m == nil {
		return
	}
	m.rejected.Inc()
}

func (m *sessionMetrics) RecordSessionClosed() {
	if m == nil {
		return
	}
	m.active.Dec()
}

package metrics

// SessionMetrics provides observability for the IPC server's session
// lifecycle. Implementations record accepted, rejected, and closed sessions.
// This interface is optional: pass nil to disable metrics collection with
// zero overhead.
type SessionMetrics interface {
	// RecordSessionAccepted counts a session whose cookie matched.
	RecordSessionAccepted()

	// RecordSessionRejected counts a connection dropped during the cookie
	// handshake (mismatch or read failure).
	RecordSessionRejected()

	// RecordSessionClosed counts a previously accepted session whose
	// handler returned.
	RecordSessionClosed()
}

// NewSessionMetrics creates a Prometheus-backed SessionMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called); callers
// pass the nil straight through to the IPC server.
func NewSessionMetrics() SessionMetrics {
	if !IsEnabled() || newPrometheusSessionMetrics == nil {
		return nil
	}
	return newPrometheusSessionMetrics()
}

// newPrometheusSessionMetrics is implemented in pkg/metrics/prometheus.
// The indirection avoids an import cycle between the interface package and
// its implementation.
var newPrometheusSessionMetrics func() SessionMetrics

// RegisterSessionMetricsConstructor registers the Prometheus session metrics
// constructor. Called by pkg/metrics/prometheus during package
// initialization.
func RegisterSessionMetricsConstructor(constructor func() SessionMetrics) {
	newPrometheusSessionMetrics = constructor
}

package common

import (
	"io"

	"github.com/VictoriaMetrics/metrics"
)

// --------------------------------------------------------------------------
// Server metrics (prometheus text format via VictoriaMetrics/metrics)
// --------------------------------------------------------------------------

var (
	SessionsAccepted  = metrics.NewCounter("bnet_sessions_accepted_total")
	SessionsActive    = metrics.NewCounter("bnet_sessions_active")
	HandshakeFailures = metrics.NewCounter("bnet_handshake_failures_total")
	SessionErrors     = metrics.NewCounter("bnet_session_errors_total")
	FramesIn          = metrics.NewCounter("bnet_frames_in_total")
	FramesOut         = metrics.NewCounter("bnet_frames_out_total")
	PendingStarted    = metrics.NewCounter("bnet_pending_started_total")
	Backpressure      = metrics.NewCounter("bnet_backpressure_total")
	HandshakeDuration = metrics.NewHistogram("bnet_handshake_duration_seconds")
)

// WriteMetrics writes all registered metrics in prometheus text format
func WriteMetrics(w io.Writer) {
	metrics.WritePrometheus(w, true)
}

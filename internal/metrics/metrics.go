package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Request outcomes recorded on fmcp_bridge_requests_total.
const (
	OutcomeOK             = "ok"
	OutcomePeerError      = "peer_error"
	OutcomeTimeout        = "timeout"
	OutcomeNotConnected   = "not_connected"
	OutcomeConnectionLost = "connection_lost"
	OutcomeCanceled       = "canceled"
	OutcomeClosed         = "closed"
	OutcomeSendFailed     = "send_failed"
)

var (
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fmcp_bridge_build_info",
			Help: "Build information for the bridge",
		},
		[]string{"date", "sha", "version"},
	)

	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fmcp_bridge_requests_total",
			Help: "Requests submitted to the plugin by method and outcome",
		},
		[]string{"method", "outcome"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fmcp_bridge_request_duration_seconds",
			Help:    "Time from submit to settlement",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"method"},
	)

	pendingRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fmcp_bridge_pending_requests",
			Help: "Requests waiting for a plugin reply",
		},
	)

	peerConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fmcp_bridge_peer_connected",
			Help: "1 while a plugin is attached",
		},
	)

	peerConnections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fmcp_bridge_peer_connections_total",
			Help: "Plugin connection attempts by result",
		},
		[]string{"result"},
	)

	framesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fmcp_bridge_frames_dropped_total",
			Help: "Frames dropped without reaching their destination",
		},
		[]string{"reason"},
	)
)

// Register registers the bridge collectors with r.
func Register(r prometheus.Registerer) {
	r.MustRegister(buildInfo, requestsTotal, requestDuration, pendingRequests, peerConnected, peerConnections, framesDropped)
}

// SetBuildInfo sets the build info metric.
func SetBuildInfo(version, sha, date string) {
	buildInfo.WithLabelValues(date, sha, version).Set(1)
}

// RecordRequest counts a settled request and observes its duration.
func RecordRequest(method, outcome string, dur time.Duration) {
	requestsTotal.WithLabelValues(method, outcome).Inc()
	requestDuration.WithLabelValues(method).Observe(dur.Seconds())
}

// SetPending publishes the correlation table size.
func SetPending(n int) { pendingRequests.Set(float64(n)) }

// SetPeerConnected toggles the connected gauge.
func SetPeerConnected(connected bool) {
	if connected {
		peerConnected.Set(1)
		return
	}
	peerConnected.Set(0)
}

// RecordConnection counts a connection attempt ("accepted", "rejected", "replaced").
func RecordConnection(result string) { peerConnections.WithLabelValues(result).Inc() }

// RecordDropped counts a dropped frame. Inbound reasons are "malformed",
// "uncorrelated" and "unknown_id"; an outbound request that could not be
// written counts as "send_failed".
func RecordDropped(reason string) { framesDropped.WithLabelValues(reason).Inc() }

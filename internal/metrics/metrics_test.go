package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPromMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	Register(reg)
	SetBuildInfo("1.0.0", "abc", "2024-01-01")
	RecordRequest("ping", OutcomeOK, 100*time.Millisecond)
	RecordRequest("ping", OutcomeTimeout, time.Second)
	SetPending(3)
	SetPeerConnected(true)
	RecordConnection("accepted")
	RecordDropped("malformed")

	if v := testutil.ToFloat64(requestsTotal.WithLabelValues("ping", OutcomeOK)); v != 1 {
		t.Fatalf("requests ok: %v", v)
	}
	if v := testutil.ToFloat64(requestsTotal.WithLabelValues("ping", OutcomeTimeout)); v != 1 {
		t.Fatalf("requests timeout: %v", v)
	}
	if v := testutil.ToFloat64(pendingRequests); v != 3 {
		t.Fatalf("pending: %v", v)
	}
	if v := testutil.ToFloat64(peerConnected); v != 1 {
		t.Fatalf("peer connected: %v", v)
	}
	SetPeerConnected(false)
	if v := testutil.ToFloat64(peerConnected); v != 0 {
		t.Fatalf("peer disconnected: %v", v)
	}
	if v := testutil.ToFloat64(peerConnections.WithLabelValues("accepted")); v != 1 {
		t.Fatalf("connections: %v", v)
	}
	if v := testutil.ToFloat64(framesDropped.WithLabelValues("malformed")); v != 1 {
		t.Fatalf("dropped: %v", v)
	}
	if v := testutil.ToFloat64(buildInfo.WithLabelValues("2024-01-01", "abc", "1.0.0")); v != 1 {
		t.Fatalf("build info: %v", v)
	}
	if n := testutil.CollectAndCount(requestDuration); n != 1 {
		t.Fatalf("duration series: %d", n)
	}
}

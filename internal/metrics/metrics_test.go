package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	if m == nil {
		t.Fatal("NewMetricsWithRegistry returned nil")
	}
	if m.StreamsActive == nil {
		t.Error("StreamsActive metric is nil")
	}
	if m.BytesRelayed == nil {
		t.Error("BytesRelayed metric is nil")
	}
}

func TestRecordStreamOpenAndClose(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordStreamOpen(0.01)
	m.RecordStreamOpen(0.02)

	if got := testutil.ToFloat64(m.StreamsActive); got != 2 {
		t.Errorf("StreamsActive = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.StreamsOpened); got != 2 {
		t.Errorf("StreamsOpened = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ClientsAdmitted); got != 2 {
		t.Errorf("ClientsAdmitted = %v, want 2", got)
	}

	m.RecordStreamClose("client disconnected")
	if got := testutil.ToFloat64(m.StreamsActive); got != 1 {
		t.Errorf("StreamsActive = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.StreamsClosed.WithLabelValues("client disconnected")); got != 1 {
		t.Errorf("StreamsClosed = %v, want 1", got)
	}
}

func TestRecordClientRefused(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordClientRefused()
	m.RecordClientRefused()

	if got := testutil.ToFloat64(m.ClientsRefused); got != 2 {
		t.Errorf("ClientsRefused = %v, want 2", got)
	}
}

func TestRecordRelayCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordPacketReceived("news")
	m.RecordBytesRelayed("news", 1316)
	m.RecordPacketDropped("news")
	m.RecordPacketDuplicate("news")
	m.RecordPacketOutOfOrder("news")

	if got := testutil.ToFloat64(m.PacketsReceived.WithLabelValues("news")); got != 1 {
		t.Errorf("PacketsReceived = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.BytesRelayed.WithLabelValues("news")); got != 1316 {
		t.Errorf("BytesRelayed = %v, want 1316", got)
	}
	if got := testutil.ToFloat64(m.PacketsDropped.WithLabelValues("news")); got != 1 {
		t.Errorf("PacketsDropped = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.PacketsDuplicate.WithLabelValues("news")); got != 1 {
		t.Errorf("PacketsDuplicate = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.PacketsOutOfOrder.WithLabelValues("news")); got != 1 {
		t.Errorf("PacketsOutOfOrder = %v, want 1", got)
	}
}

func TestRecordUpstreamJoin(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordUpstreamJoin(0.005)
	m.RecordUpstreamJoinFailure("news")

	if got := testutil.ToFloat64(m.UpstreamJoins); got != 1 {
		t.Errorf("UpstreamJoins = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.UpstreamJoinFailures.WithLabelValues("news")); got != 1 {
		t.Errorf("UpstreamJoinFailures = %v, want 1", got)
	}
}

func TestRecordRequestError(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordRequestError("404")
	m.RecordRequestError("404")
	m.RecordRequestError("503")

	if got := testutil.ToFloat64(m.RequestErrors.WithLabelValues("404")); got != 2 {
		t.Errorf("RequestErrors[404] = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.RequestErrors.WithLabelValues("503")); got != 1 {
		t.Errorf("RequestErrors[503] = %v, want 1", got)
	}
}

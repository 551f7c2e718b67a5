package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersRecord(t *testing.T) {
	m := New()
	m.ToolCall("get_routes", true)
	m.ToolCall("get_routes", true)
	m.ToolCall("create_route", false)

	if got := testutil.ToFloat64(m.toolCalls.WithLabelValues("get_routes", "ok")); got != 2 {
		t.Fatalf("expected 2 successful get_routes calls, got %v", got)
	}
	if got := testutil.ToFloat64(m.toolCalls.WithLabelValues("create_route", "error")); got != 1 {
		t.Fatalf("expected 1 failed create_route call, got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.InboundMessage("text")
	m.ToolCall("x", true)
	m.FlowCommit("invoice", false)
	m.Notification("sent")
	if m.Registry() != nil {
		t.Fatalf("expected nil registry for nil metrics")
	}
}

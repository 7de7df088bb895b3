package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCallLifecycleCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordCallStarted()
	m.RecordCallStarted()
	m.RecordCallEnded(42)

	if got := testutil.ToFloat64(m.ActiveCalls); got != 1 {
		t.Errorf("active calls = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CallsStarted); got != 2 {
		t.Errorf("calls started = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.CallsEnded); got != 1 {
		t.Errorf("calls ended = %v, want 1", got)
	}
}

func TestToolCallLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordToolCall("check_availability")
	m.RecordToolCall("check_availability")
	m.RecordToolCall("book_appointment")
	m.RecordStageError("stt")

	if got := testutil.ToFloat64(m.ToolCalls.WithLabelValues("check_availability")); got != 2 {
		t.Errorf("check_availability count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ToolCalls.WithLabelValues("book_appointment")); got != 1 {
		t.Errorf("book_appointment count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.StageErrors.WithLabelValues("stt")); got != 1 {
		t.Errorf("stt errors = %v, want 1", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordCallStarted()
	m.RecordCallEnded(1)
	m.RecordUtterance()
	m.RecordTurn(0.5)
	m.RecordToolCall("x")
	m.RecordStageError("y")
	m.RecordToolRoundLimit()
}

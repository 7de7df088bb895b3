package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the call agent
type Metrics struct {
	// Call metrics
	ActiveCalls  prometheus.Gauge
	CallsStarted prometheus.Counter
	CallsEnded   prometheus.Counter
	CallDuration prometheus.Histogram

	// Turn metrics
	UtterancesDetected prometheus.Counter
	TurnsCompleted     prometheus.Counter
	TurnDuration       prometheus.Histogram

	// Backend metrics
	ToolCalls     *prometheus.CounterVec
	StageErrors   *prometheus.CounterVec
	ToolRoundsHit prometheus.Counter
}

// New creates and registers all metrics on reg; pass nil for the default
// registerer
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		ActiveCalls: factory.NewGauge(prometheus.GaugeOpts{
			Name: "saloncall_active_calls",
			Help: "Current number of live calls",
		}),
		CallsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "saloncall_calls_started_total",
			Help: "Total number of calls answered",
		}),
		CallsEnded: factory.NewCounter(prometheus.CounterOpts{
			Name: "saloncall_calls_ended_total",
			Help: "Total number of calls ended",
		}),
		CallDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "saloncall_call_duration_seconds",
			Help:    "Duration of completed calls",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10), // 5s to ~42 minutes
		}),
		UtterancesDetected: factory.NewCounter(prometheus.CounterOpts{
			Name: "saloncall_utterances_detected_total",
			Help: "Total number of caller utterances segmented from audio",
		}),
		TurnsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "saloncall_turns_completed_total",
			Help: "Total number of completed conversation turns",
		}),
		TurnDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "saloncall_turn_duration_seconds",
			Help:    "Time from utterance end to response audio ready",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8), // 250ms to ~32s
		}),
		ToolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "saloncall_tool_calls_total",
			Help: "Total tool invocations by tool name",
		}, []string{"tool"}),
		StageErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "saloncall_stage_errors_total",
			Help: "Total pipeline errors by stage",
		}, []string{"stage"}),
		ToolRoundsHit: factory.NewCounter(prometheus.CounterOpts{
			Name: "saloncall_tool_round_limit_total",
			Help: "Times a turn hit the tool round limit",
		}),
	}
}

// RecordCallStarted marks a new live call
func (m *Metrics) RecordCallStarted() {
	if m == nil {
		return
	}
	m.CallsStarted.Inc()
	m.ActiveCalls.Inc()
}

// RecordCallEnded marks a call complete and records its duration
func (m *Metrics) RecordCallEnded(durationSeconds float64) {
	if m == nil {
		return
	}
	m.CallsEnded.Inc()
	m.ActiveCalls.Dec()
	m.CallDuration.Observe(durationSeconds)
}

// RecordUtterance counts a segmented caller utterance
func (m *Metrics) RecordUtterance() {
	if m == nil {
		return
	}
	m.UtterancesDetected.Inc()
}

// RecordTurn records a completed turn and its latency
func (m *Metrics) RecordTurn(durationSeconds float64) {
	if m == nil {
		return
	}
	m.TurnsCompleted.Inc()
	m.TurnDuration.Observe(durationSeconds)
}

// RecordToolCall counts one tool invocation
func (m *Metrics) RecordToolCall(tool string) {
	if m == nil {
		return
	}
	m.ToolCalls.WithLabelValues(tool).Inc()
}

// RecordStageError counts a failure in a named pipeline stage
func (m *Metrics) RecordStageError(stage string) {
	if m == nil {
		return
	}
	m.StageErrors.WithLabelValues(stage).Inc()
}

// RecordToolRoundLimit counts a turn that exhausted its tool rounds
func (m *Metrics) RecordToolRoundLimit() {
	if m == nil {
		return
	}
	m.ToolRoundsHit.Inc()
}

// Package metrics defines the sink interfaces used to record decision and
// grid events for observability purposes.
package metrics

import (
	"time"

	"github.com/voltmesh/bessd/core/model"
)

// DecisionRecord represents one decision cycle to be recorded.
type DecisionRecord struct {
	SystemID  string
	Result    model.DecisionResult
	CycleTime time.Duration
}

// MetricsSink records decision results.
type MetricsSink interface {
	RecordDecision(records []DecisionRecord) error
}

// ModeChangeRecord captures a control-mode switch.
type ModeChangeRecord struct {
	SystemID string
	From     model.GridControlMode
	To       model.GridControlMode
	Time     time.Time
}

// ModeChangeRecorder records control-mode switches.
type ModeChangeRecorder interface {
	RecordModeChange(rec ModeChangeRecord) error
}

// TransitionRecord captures a black-start FSM transition.
type TransitionRecord struct {
	Event model.BlackStartEvent
}

// TransitionRecorder records black-start transitions.
type TransitionRecorder interface {
	RecordTransition(rec TransitionRecord) error
}

// DispatchRecord captures one VPP allocation for a participant.
type DispatchRecord struct {
	SystemID string
	PowerKW  float64
	Time     time.Time
}

// DispatchRecorder records VPP dispatch allocations.
type DispatchRecorder interface {
	RecordDispatch(recs []DispatchRecord) error
}

// NopSink discards all records.
type NopSink struct{}

func (NopSink) RecordDecision([]DecisionRecord) error   { return nil }
func (NopSink) RecordModeChange(ModeChangeRecord) error { return nil }
func (NopSink) RecordTransition(TransitionRecord) error { return nil }
func (NopSink) RecordDispatch([]DispatchRecord) error   { return nil }

// Package events defines the record types published on the internal event
// bus for the audit/log sink.
package events

import (
	"time"

	"github.com/voltmesh/bessd/core/model"
)

// DecisionEvent is emitted after each decision cycle.
type DecisionEvent struct {
	SystemID string
	Result   model.DecisionResult
	Elapsed  time.Duration
}

// ModeChangeEvent is emitted when a system switches control mode.
type ModeChangeEvent struct {
	SystemID string
	From     model.GridControlMode
	To       model.GridControlMode
	Time     time.Time
}

// TransitionEvent wraps a black-start FSM transition.
type TransitionEvent struct {
	Event model.BlackStartEvent
	// Manual marks operator-initiated resets as opposed to automatic
	// transitions.
	Manual bool
}

// DemandResponseLifecycle is emitted when a DR event is created or scored.
type DemandResponseLifecycle struct {
	Event  model.DemandResponseEvent
	Change string // "created", "scored"
	Time   time.Time
}

// VPPDispatchEvent records one aggregate dispatch split.
type VPPDispatchEvent struct {
	TotalPowerKW float64
	Allocations  map[string]float64
	Time         time.Time
}

// LoadSheddingSignal is raised from island mode for the external
// load-control collaborator. It is reported, never retried.
type LoadSheddingSignal struct {
	SystemID string
	Plan     model.LoadSheddingPlan
	Time     time.Time
}

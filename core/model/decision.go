package model

import "time"

// Action is the physical command issued to the battery for one cycle.
type Action int

const (
	ActionCharge Action = iota
	ActionDischarge
	ActionIdle
	ActionEmergencyStop
	ActionGridSupport
	ActionFrequencyResponse
)

// String returns a human-readable representation of the action.
func (a Action) String() string {
	switch a {
	case ActionCharge:
		return "CHARGE"
	case ActionDischarge:
		return "DISCHARGE"
	case ActionIdle:
		return "IDLE"
	case ActionEmergencyStop:
		return "EMERGENCY_STOP"
	case ActionGridSupport:
		return "GRID_SUPPORT"
	case ActionFrequencyResponse:
		return "FREQUENCY_RESPONSE"
	default:
		return "unknown"
	}
}

// Priority identifies the decision tier that produced a result. Lower
// values dominate: once a tier fires, lower tiers are not consulted.
type Priority int

const (
	PrioritySafety Priority = iota
	PriorityGridCode
	PriorityContractual
	PriorityEconomic
	PriorityLongevity
)

// String returns a human-readable representation of the priority tier.
func (p Priority) String() string {
	switch p {
	case PrioritySafety:
		return "SAFETY"
	case PriorityGridCode:
		return "GRID_CODE"
	case PriorityContractual:
		return "CONTRACTUAL"
	case PriorityEconomic:
		return "ECONOMIC"
	case PriorityLongevity:
		return "LONGEVITY"
	default:
		return "unknown"
	}
}

// DecisionResult is the dispatch command produced once per cycle. It is an
// immutable value, never merged across cycles. PowerKW follows the
// telemetry sign convention: positive discharges, negative charges.
type DecisionResult struct {
	Action          Action            `json:"action"`
	PowerKW         float64           `json:"power_kw"`
	DurationMinutes float64           `json:"duration_minutes"`
	Priority        Priority          `json:"priority"`
	Reason          string            `json:"reason"`
	Confidence      float64           `json:"confidence"`
	Timestamp       time.Time         `json:"timestamp"`
	NextReviewAt    time.Time         `json:"next_review_at"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

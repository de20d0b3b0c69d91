package model

import "time"

// GridControlMode is the interconnection control mode of one system.
// Exactly one mode is current per system at any time.
type GridControlMode string

const (
	ModeGridFollowing GridControlMode = "grid_following"
	ModeGridForming   GridControlMode = "grid_forming"
	ModeIslanding     GridControlMode = "islanding"
	ModeBlackStart    GridControlMode = "black_start"
	ModeSynchronizing GridControlMode = "synchronizing"
)

// ModeSpec describes the stability and responsiveness a control mode
// requires from the inverter.
type ModeSpec struct {
	VoltageStability   float64       // minimum required voltage stability, 0-1
	FrequencyStability float64       // minimum required frequency stability, 0-1
	MaxResponseTime    time.Duration // slowest acceptable setpoint response
	RequiresGrid       bool          // whether a grid connection is mandatory
}

// Spec returns the requirements table entry for the mode.
func (m GridControlMode) Spec() ModeSpec {
	switch m {
	case ModeGridFollowing:
		return ModeSpec{VoltageStability: 0.95, FrequencyStability: 0.98, MaxResponseTime: 5 * time.Second, RequiresGrid: true}
	case ModeGridForming:
		return ModeSpec{VoltageStability: 0.90, FrequencyStability: 0.90, MaxResponseTime: time.Second, RequiresGrid: true}
	case ModeIslanding:
		return ModeSpec{VoltageStability: 0.85, FrequencyStability: 0.85, MaxResponseTime: 100 * time.Millisecond, RequiresGrid: false}
	case ModeBlackStart:
		return ModeSpec{VoltageStability: 0.80, FrequencyStability: 0.80, MaxResponseTime: 100 * time.Millisecond, RequiresGrid: false}
	case ModeSynchronizing:
		return ModeSpec{VoltageStability: 0.95, FrequencyStability: 0.98, MaxResponseTime: 500 * time.Millisecond, RequiresGrid: true}
	default:
		return ModeSpec{}
	}
}

// DemandResponseStatus is the lifecycle state of a demand-response event.
type DemandResponseStatus string

const (
	DRPending   DemandResponseStatus = "pending"
	DRActive    DemandResponseStatus = "active"
	DRCompleted DemandResponseStatus = "completed"
	DRFailed    DemandResponseStatus = "failed"
)

// DemandResponseEvent is a contractual load-reduction obligation. Events are
// created pending and only ever transition status; they are never deleted.
type DemandResponseEvent struct {
	EventID            string               `json:"event_id"`
	RequiredReduction  float64              `json:"required_reduction_kw"`
	DurationMinutes    float64              `json:"duration_minutes"`
	CompensationPerMWh float64              `json:"compensation_per_mwh"`
	Compliance         float64              `json:"compliance"` // 0-1
	Status             DemandResponseStatus `json:"status"`
	CreatedAt          time.Time            `json:"created_at"`
}

// VirtualPowerPlantState is the aggregate view over the registered VPP
// participants. It is recomputed on demand and never persisted.
type VirtualPowerPlantState struct {
	ParticipantCount  int     `json:"participant_count"`
	TotalCapacity     float64 `json:"total_capacity_kw"`
	AvailableCapacity float64 `json:"available_capacity_kw"`
	AverageSoC        float64 `json:"average_soc"`
	AverageSoH        float64 `json:"average_soh"`
	DispatchingPower  float64 `json:"dispatching_power_kw"`
	Frequency         float64 `json:"frequency"`
	Voltage           float64 `json:"voltage"`
}

// LoadSheddingPlan is the orchestrator's recommendation when stored energy
// runs low during autonomous operation.
type LoadSheddingPlan struct {
	ShouldShed         bool    `json:"should_shed"`
	EssentialLoadsOnly bool    `json:"essential_loads_only"`
	ReductionTarget    float64 `json:"reduction_target"` // percent of non-essential load
}

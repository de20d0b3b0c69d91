package model

import "time"

// BlackStartState is the grid-restoration state of one system.
type BlackStartState string

const (
	StateGridConnected    BlackStartState = "grid_connected"
	StateBlackoutDetected BlackStartState = "blackout_detected"
	StateTransferring     BlackStartState = "transferring"
	StateIslandMode       BlackStartState = "island_mode"
	StateSynchronizing    BlackStartState = "synchronizing"
	StateResynchronized   BlackStartState = "resynchronized"
)

// BlackStartEvent records one state transition for the audit trail.
type BlackStartEvent struct {
	SystemID  string          `json:"system_id"`
	FromState BlackStartState `json:"from_state"`
	ToState   BlackStartState `json:"to_state"`
	Timestamp time.Time       `json:"timestamp"`
	Reason    string          `json:"reason"`
}

// BlackStartStatus is the FSM snapshot returned after processing one
// grid/telemetry reading.
type BlackStartStatus struct {
	SystemID       string          `json:"system_id"`
	State          BlackStartState `json:"state"`
	Since          time.Time       `json:"since"` // when the current state was entered
	IslandDuration time.Duration   `json:"island_duration"`
	LoadShed       bool            `json:"load_shed"` // load-shedding signal raised this cycle
}

// BlackStartCapability reports whether the system can energise a dead bus.
type BlackStartCapability struct {
	Capable    bool    `json:"capable"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// RestorationEstimate is the predicted time to restore grid service.
type RestorationEstimate struct {
	Duration   time.Duration `json:"duration"`
	Confidence float64       `json:"confidence"`
}

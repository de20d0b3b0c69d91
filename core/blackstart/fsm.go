// Package blackstart implements the blackout detection, island operation
// and grid resynchronization state machine.
package blackstart

import (
	"fmt"
	"math"
	"time"

	"github.com/voltmesh/bessd/core/events"
	"github.com/voltmesh/bessd/core/logger"
	"github.com/voltmesh/bessd/core/model"
	"github.com/voltmesh/bessd/internal/eventbus"
)

// Config holds the FSM thresholds and dwell times. Zero values fall back to
// the reference defaults via SetDefaults.
type Config struct {
	BlackoutVoltage   float64       `json:"blackout_voltage"`    // V, dead-bus detection
	TransferFreqDelta float64       `json:"transfer_freq_delta"` // Hz deviation confirming the blackout
	TransferDwell     time.Duration `json:"transfer_dwell"`      // contactor transfer time
	SyncFreqTolerance float64       `json:"sync_freq_tolerance"` // Hz around nominal
	SyncVoltTolerance float64       `json:"sync_volt_tolerance"` // V around nominal
	SyncTimeout       time.Duration `json:"sync_timeout"`        // give up synchronizing after this
	ReconnectDwell    time.Duration `json:"reconnect_dwell"`     // confirmation before closing the tie
	SheddingSoC       float64       `json:"shedding_soc"`        // island-mode SoC floor for load shedding
	HistoryLimit      int           `json:"history_limit"`       // bounded audit trail length
	NominalFrequency  float64       `json:"nominal_frequency"`
	NominalVoltage    float64       `json:"nominal_voltage"`
}

// SetDefaults fills zero-valued fields with the reference constants.
func (c *Config) SetDefaults() {
	if c.BlackoutVoltage == 0 {
		c.BlackoutVoltage = 50
	}
	if c.TransferFreqDelta == 0 {
		c.TransferFreqDelta = 2
	}
	if c.TransferDwell == 0 {
		c.TransferDwell = 5 * time.Second
	}
	if c.SyncFreqTolerance == 0 {
		c.SyncFreqTolerance = 0.5
	}
	if c.SyncVoltTolerance == 0 {
		c.SyncVoltTolerance = 20
	}
	if c.SyncTimeout == 0 {
		c.SyncTimeout = 60 * time.Second
	}
	if c.ReconnectDwell == 0 {
		c.ReconnectDwell = 2 * time.Second
	}
	if c.SheddingSoC == 0 {
		c.SheddingSoC = 50
	}
	if c.HistoryLimit == 0 {
		c.HistoryLimit = 1000
	}
	if c.NominalFrequency == 0 {
		c.NominalFrequency = 60
	}
	if c.NominalVoltage == 0 {
		c.NominalVoltage = 380
	}
}

// transitionReasons is the table of human-readable reasons, keyed by
// "from->to". Only these seven edges are legal; any other request leaves
// the machine waiting in its current state.
var transitionReasons = map[string]string{
	"grid_connected->blackout_detected": "grid voltage collapsed below dead-bus threshold",
	"blackout_detected->transferring":   "frequency excursion confirmed blackout, opening grid contactor",
	"transferring->island_mode":         "transfer dwell elapsed, backup contactor closed",
	"island_mode->synchronizing":        "grid voltage recovered, matching phase and frequency",
	"synchronizing->resynchronized":     "frequency and voltage within synchronization tolerance",
	"synchronizing->island_mode":        "synchronization timed out, staying islanded",
	"resynchronized->grid_connected":    "reconnect dwell elapsed, tie closed",
}

const manualResetReason = "manual reset to grid_connected requested by operator"

// FSM tracks the black-start state for one system. Dwell and timeout
// transitions compare the injected clock against the instant the current
// state was entered, so tests can drive time deterministically.
type FSM struct {
	systemID  string
	cfg       Config
	state     model.BlackStartState
	enteredAt time.Time
	history   []model.BlackStartEvent

	log logger.Logger
	bus eventbus.EventBus
	now func() time.Time
}

// Option tunes an FSM at construction time.
type Option func(*FSM)

// WithClock injects the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(f *FSM) { f.now = now }
}

// New creates an FSM in grid_connected for the given system.
func New(systemID string, cfg Config, log logger.Logger, bus eventbus.EventBus, opts ...Option) *FSM {
	cfg.SetDefaults()
	f := &FSM{
		systemID: systemID,
		cfg:      cfg,
		state:    model.StateGridConnected,
		log:      log,
		bus:      bus,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.enteredAt = f.now()
	return f
}

// State returns the current FSM state.
func (f *FSM) State() model.BlackStartState { return f.state }

// History returns a copy of the bounded transition audit trail, oldest
// first.
func (f *FSM) History() []model.BlackStartEvent {
	out := make([]model.BlackStartEvent, len(f.history))
	copy(out, f.history)
	return out
}

// Process consumes one grid/telemetry reading and advances the machine at
// most one edge. While islanded with a depleted, net-discharging battery it
// raises the load-shedding signal for the external load controller.
func (f *FSM) Process(gs model.GridState, t model.SystemTelemetry) model.BlackStartStatus {
	now := f.now()
	if next, ok := f.next(now, gs); ok {
		f.transition(next, now, false)
	}

	status := model.BlackStartStatus{
		SystemID: f.systemID,
		State:    f.state,
		Since:    f.enteredAt,
	}
	if f.state == model.StateIslandMode {
		status.IslandDuration = now.Sub(f.enteredAt)
		if t.SoC < f.cfg.SheddingSoC && t.PowerKW > 0 {
			status.LoadShed = true
			f.raiseLoadShedding(t, now)
		}
	}
	return status
}

// next is the pure transition function: given the current state, the time
// it was entered and the fresh grid reading, it returns the next state if
// an edge fires.
func (f *FSM) next(now time.Time, gs model.GridState) (model.BlackStartState, bool) {
	cfg := f.cfg
	dwell := now.Sub(f.enteredAt)
	switch f.state {
	case model.StateGridConnected:
		if gs.Voltage < cfg.BlackoutVoltage {
			return model.StateBlackoutDetected, true
		}
	case model.StateBlackoutDetected:
		if math.Abs(gs.Frequency-cfg.NominalFrequency) > cfg.TransferFreqDelta {
			return model.StateTransferring, true
		}
	case model.StateTransferring:
		if dwell >= cfg.TransferDwell {
			return model.StateIslandMode, true
		}
	case model.StateIslandMode:
		if gs.Voltage > 2*cfg.BlackoutVoltage {
			return model.StateSynchronizing, true
		}
	case model.StateSynchronizing:
		if math.Abs(gs.Frequency-cfg.NominalFrequency) <= cfg.SyncFreqTolerance &&
			math.Abs(gs.Voltage-cfg.NominalVoltage) <= cfg.SyncVoltTolerance {
			return model.StateResynchronized, true
		}
		if dwell >= cfg.SyncTimeout {
			// Explicit fallback, not a failure.
			return model.StateIslandMode, true
		}
	case model.StateResynchronized:
		if dwell >= cfg.ReconnectDwell {
			return model.StateGridConnected, true
		}
	}
	return f.state, false
}

// Reset is the idempotent manual override back to grid_connected. The
// transition is logged distinctly from automatic ones.
func (f *FSM) Reset() {
	now := f.now()
	if f.state == model.StateGridConnected {
		f.enteredAt = now
		return
	}
	f.record(f.state, model.StateGridConnected, now, manualResetReason, true)
	f.state = model.StateGridConnected
	f.enteredAt = now
}

func (f *FSM) transition(to model.BlackStartState, now time.Time, manual bool) {
	from := f.state
	reason := transitionReasons[fmt.Sprintf("%s->%s", from, to)]
	f.record(from, to, now, reason, manual)
	f.state = to
	f.enteredAt = now
}

func (f *FSM) record(from, to model.BlackStartState, now time.Time, reason string, manual bool) {
	ev := model.BlackStartEvent{
		SystemID:  f.systemID,
		FromState: from,
		ToState:   to,
		Timestamp: now,
		Reason:    reason,
	}
	f.history = append(f.history, ev)
	if len(f.history) > f.cfg.HistoryLimit {
		f.history = f.history[len(f.history)-f.cfg.HistoryLimit:]
	}
	f.log.Infof("system %s black-start %s -> %s: %s", f.systemID, from, to, reason)
	if f.bus != nil {
		f.bus.Publish(events.TransitionEvent{Event: ev, Manual: manual})
	}
}

func (f *FSM) raiseLoadShedding(t model.SystemTelemetry, now time.Time) {
	plan := model.LoadSheddingPlan{
		ShouldShed:         true,
		EssentialLoadsOnly: t.SoC < f.cfg.SheddingSoC/2,
		ReductionTarget:    math.Min(100, (f.cfg.SheddingSoC-t.SoC)/f.cfg.SheddingSoC*100+20),
	}
	f.log.Warnf("system %s island mode shedding load: SoC %.1f%% discharging %.1fkW", f.systemID, t.SoC, t.PowerKW)
	if f.bus != nil {
		f.bus.Publish(events.LoadSheddingSignal{SystemID: f.systemID, Plan: plan, Time: now})
	}
}

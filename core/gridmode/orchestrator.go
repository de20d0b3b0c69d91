// Package gridmode selects the interconnection control mode per system and
// coordinates demand response and virtual-power-plant dispatch.
package gridmode

import (
	"math"
	"sync"
	"time"

	"github.com/voltmesh/bessd/core/events"
	"github.com/voltmesh/bessd/core/logger"
	"github.com/voltmesh/bessd/core/model"
	"github.com/voltmesh/bessd/core/stability"
	"github.com/voltmesh/bessd/internal/eventbus"
)

const (
	nominalFrequency = 60.0
	nominalVoltage   = 380.0

	// Blackout signature thresholds for mode selection.
	blackoutVoltage   = 50.0
	blackoutFreqDelta = 5.0

	// Stability scores required for grid_following.
	followVoltageStability = 0.95
	followFreqStability    = 0.98
	// Minimum score on either axis for grid_forming.
	formingStability = 0.90

	// Calm-window bounds required before synchronizing hands back control.
	syncMaxFreqStd = 0.05
	syncMaxVoltStd = 2.0

	// DefaultParticipantCapacityKW is the assumed per-participant VPP
	// capacity. Deployments should override it from configuration.
	DefaultParticipantCapacityKW = 500.0

	// maxDREvents bounds the retained demand-response history. Oldest
	// events are evicted first.
	maxDREvents = 1000
)

// Orchestrator owns the mutable grid-coordination state for one
// deployment: current control modes, demand-response events and the VPP
// participant registry. One instance is constructed per deployment and
// shared by all systems; there are no package-level registries.
type Orchestrator struct {
	mu sync.RWMutex

	modes        map[string]model.GridControlMode
	windows      map[string]*stability.Window
	drEvents     map[string]*model.DemandResponseEvent
	drOrder      []string
	participants map[string]model.SystemTelemetry
	lastGrid     model.GridState
	haveGrid     bool

	participantCapacityKW float64
	log                   logger.Logger
	bus                   eventbus.EventBus
	now                   func() time.Time
}

// Option tunes an Orchestrator at construction time.
type Option func(*Orchestrator)

// WithParticipantCapacity overrides the assumed per-participant capacity.
func WithParticipantCapacity(kw float64) Option {
	return func(o *Orchestrator) {
		if kw > 0 {
			o.participantCapacityKW = kw
		}
	}
}

// WithClock injects the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an Orchestrator. The bus may be nil when no audit sink is
// attached.
func New(log logger.Logger, bus eventbus.EventBus, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		modes:                 make(map[string]model.GridControlMode),
		windows:               make(map[string]*stability.Window),
		drEvents:              make(map[string]*model.DemandResponseEvent),
		participants:          make(map[string]model.SystemTelemetry),
		participantCapacityKW: DefaultParticipantCapacityKW,
		log:                   log,
		bus:                   bus,
		now:                   time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// CurrentMode returns the last selected mode for the system, defaulting to
// grid_following for systems never seen before.
func (o *Orchestrator) CurrentMode(systemID string) model.GridControlMode {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if m, ok := o.modes[systemID]; ok {
		return m
	}
	return model.ModeGridFollowing
}

// SelectControlMode evaluates grid stability and picks the control mode for
// the system. A disconnected grid with the blackout signature (dead bus and
// a large frequency excursion) selects black_start; a mere disconnection
// selects islanding. Reconnection never jumps straight back to
// grid_following: the system synchronizes first and only leaves
// synchronizing once the measurement window is calm.
func (o *Orchestrator) SelectControlMode(systemID string, gs model.GridState) model.GridControlMode {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.lastGrid = gs
	o.haveGrid = true
	w, ok := o.windows[systemID]
	if !ok {
		w = stability.NewWindow(stability.DefaultWindowSize)
		o.windows[systemID] = w
	}

	if gs.GridConnected {
		w.Add(gs.Frequency, gs.Voltage)
	} else {
		w.Reset()
	}
	prev, known := o.modes[systemID]
	mode := o.evaluateMode(prev, known, gs, w)

	if mode != prev {
		o.modes[systemID] = mode
		o.log.Infof("system %s control mode %s -> %s", systemID, prev, mode)
		if o.bus != nil {
			o.bus.Publish(events.ModeChangeEvent{SystemID: systemID, From: prev, To: mode, Time: o.now()})
		}
	}
	return mode
}

func (o *Orchestrator) evaluateMode(prev model.GridControlMode, known bool, gs model.GridState, w *stability.Window) model.GridControlMode {
	if !gs.GridConnected {
		if gs.Voltage < blackoutVoltage && math.Abs(gs.Frequency-nominalFrequency) > blackoutFreqDelta {
			return model.ModeBlackStart
		}
		return model.ModeIslanding
	}

	if known && (prev == model.ModeIslanding || prev == model.ModeBlackStart) {
		return model.ModeSynchronizing
	}
	if known && prev == model.ModeSynchronizing && !w.Settled(syncMaxFreqStd, syncMaxVoltStd) {
		return model.ModeSynchronizing
	}

	voltageStability := clamp01(1 - math.Abs(gs.Voltage-nominalVoltage)/nominalVoltage)
	frequencyStability := clamp01(1 - math.Abs(gs.Frequency-nominalFrequency)/nominalFrequency)
	if voltageStability > followVoltageStability && frequencyStability > followFreqStability {
		return model.ModeGridFollowing
	}
	if voltageStability > formingStability || frequencyStability > formingStability {
		return model.ModeGridForming
	}
	return model.ModeGridFollowing
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

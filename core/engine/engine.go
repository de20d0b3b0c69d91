package engine

import (
	"time"

	"github.com/voltmesh/bessd/core/logger"
	"github.com/voltmesh/bessd/core/model"
)

// Reference electrical constants for the decision cascade.
const (
	// DefaultNumCells is the series cell count used to derive per-cell
	// voltage from the pack voltage.
	DefaultNumCells = 16
	// DefaultDroop is the droop coefficient for frequency response.
	DefaultDroop = 0.05
	// NominalFrequency is the grid nominal frequency in Hz.
	NominalFrequency = 60.0

	// Review cadence per tier. The caller drives the cycle; these only
	// populate NextReviewAt on the result.
	safetyReview      = time.Minute
	gridCodeReview    = time.Minute
	contractualReview = 60 * time.Minute
	defaultReview     = 5 * time.Minute

	// socMarginGridCode is the SoC margin required before the droop
	// response is allowed to move energy.
	socMarginGridCode = 5.0
	// socMarginDispatch is the margin required by the contractual and
	// economic tiers.
	socMarginDispatch = 10.0

	// arbitragePowerCapKW bounds single-cycle arbitrage stress,
	// deliberately tighter than the hard power cap.
	arbitragePowerCapKW = 50.0

	// Longevity sweet spot and gentle correction power.
	longevityLowSoC    = 20.0
	longevityHighSoC   = 80.0
	longevityPowerKW   = 20.0
	longevityConfident = 0.7
)

// Input groups the read-only snapshots consumed by one decision cycle.
type Input struct {
	Telemetry   model.SystemTelemetry
	Grid        model.GridState
	Market      model.MarketData
	Constraints model.SystemConstraints
	Config      model.OptimizationConfig
}

// tier evaluates one priority level. A nil result means the tier did not
// fire and the cascade continues.
type tier func(e *Engine, in Input, now time.Time) *model.DecisionResult

// Engine turns one snapshot into one dispatch command per cycle. It is a
// pure computation: the same input always selects the same tier. The tier
// order is fixed at construction so the safety evaluator structurally runs
// first and cannot be bypassed.
type Engine struct {
	NumCells int
	Droop    float64

	log   logger.Logger
	tiers []tier
}

// New returns an Engine with the reference cell count and droop.
func New(log logger.Logger) *Engine {
	e := &Engine{
		NumCells: DefaultNumCells,
		Droop:    DefaultDroop,
		log:      log,
	}
	e.tiers = []tier{
		(*Engine).safetyTier,
		(*Engine).gridCodeTier,
		(*Engine).contractualTier,
		(*Engine).economicTier,
		(*Engine).longevityTier,
	}
	return e
}

// Decide evaluates the cascade against the current wall clock.
func (e *Engine) Decide(in Input) model.DecisionResult {
	return e.DecideAt(in, time.Now())
}

// DecideAt evaluates the cascade at the given instant. The first tier that
// fires wins; lower tiers are not consulted that cycle. The longevity tier
// always produces a result, so there is no undefined decision state.
func (e *Engine) DecideAt(in Input, now time.Time) model.DecisionResult {
	for _, t := range e.tiers {
		if res := t(e, in, now); res != nil {
			e.log.Debugw("decision", map[string]any{
				"system_id": in.Telemetry.SystemID,
				"action":    res.Action.String(),
				"priority":  res.Priority.String(),
				"power_kw":  res.PowerKW,
				"reason":    res.Reason,
			})
			return *res
		}
	}
	// Unreachable: the longevity tier never returns nil.
	return *e.result(model.ActionIdle, 0, model.PriorityLongevity, "no action required", 1.0, now, defaultReview, nil)
}

func (e *Engine) result(action model.Action, powerKW float64, prio model.Priority, reason string, confidence float64, now time.Time, review time.Duration, meta map[string]string) *model.DecisionResult {
	return &model.DecisionResult{
		Action:          action,
		PowerKW:         powerKW,
		DurationMinutes: review.Minutes(),
		Priority:        prio,
		Reason:          reason,
		Confidence:      confidence,
		Timestamp:       now,
		NextReviewAt:    now.Add(review),
		Metadata:        meta,
	}
}

// clampPower bounds a requested magnitude to the hard power limit.
func clampPower(kw, maxKW float64) float64 {
	if kw > maxKW {
		return maxKW
	}
	if kw < -maxKW {
		return -maxKW
	}
	return kw
}

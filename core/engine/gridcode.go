package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/voltmesh/bessd/core/model"
)

// gridCodeTier implements the droop frequency response. It only runs while
// grid-connected: off-grid frequency excursions belong to the black-start
// machinery, not the dispatch cascade.
func (e *Engine) gridCodeTier(in Input, now time.Time) *model.DecisionResult {
	if !in.Grid.GridConnected {
		return nil
	}
	c := in.Constraints
	freqError := NominalFrequency - in.Grid.Frequency
	if math.Abs(freqError) <= c.FrequencyDeadband {
		return nil
	}

	// The droop response itself is a grid-code obligation and always
	// runs; the optional strategy config only tunes the coefficient.
	droop := e.Droop
	if fr := in.Config.FrequencyResponse; fr != nil && fr.Enabled && fr.Droop > 0 {
		droop = fr.Droop
	}
	power := clampPower(freqError/droop*c.MaxPowerKW, c.MaxPowerKW)

	if freqError > 0 {
		// Under-frequency: inject power, provided the battery keeps a
		// margin above the safety floor.
		if in.Telemetry.SoC < c.MinSoC+socMarginGridCode {
			return nil
		}
		return e.result(model.ActionFrequencyResponse, power, model.PriorityGridCode,
			fmt.Sprintf("under-frequency %.3fHz, droop discharge %.1fkW", in.Grid.Frequency, power),
			0.95, now, gridCodeReview, nil)
	}

	// Over-frequency: absorb power while headroom remains.
	if in.Telemetry.SoC > c.MaxSoC-socMarginGridCode {
		return nil
	}
	return e.result(model.ActionFrequencyResponse, power, model.PriorityGridCode,
		fmt.Sprintf("over-frequency %.3fHz, droop charge %.1fkW", in.Grid.Frequency, -power),
		0.95, now, gridCodeReview, nil)
}

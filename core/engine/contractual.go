package engine

import (
	"fmt"
	"time"

	"github.com/voltmesh/bessd/core/model"
)

// demandGrowthFactor inflates the forecast to approximate the live demand
// the meter would report right now.
const demandGrowthFactor = 1.1

// contractualTier covers the peak-shaving obligation during peak tariff
// periods.
func (e *Engine) contractualTier(in Input, now time.Time) *model.DecisionResult {
	ps := in.Config.PeakShaving
	if ps == nil || !ps.Enabled {
		return nil
	}
	if in.Market.LoadProfile != model.LoadPeak {
		return nil
	}

	currentDemand := in.Market.DemandForecast * demandGrowthFactor
	triggerKW := ps.DemandLimitKW * ps.TriggerThreshold / 100
	if currentDemand <= triggerKW {
		return nil
	}
	if in.Telemetry.SoC < in.Constraints.MinSoC+socMarginDispatch {
		return nil
	}

	shave := clampPower(currentDemand-triggerKW, in.Constraints.MaxPowerKW)
	return e.result(model.ActionDischarge, shave, model.PriorityContractual,
		fmt.Sprintf("peak shaving: demand %.1fkW over trigger %.1fkW", currentDemand, triggerKW),
		0.85, now, contractualReview, nil)
}

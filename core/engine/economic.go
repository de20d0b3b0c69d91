package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/voltmesh/bessd/core/model"
)

const (
	// Self-consumption thresholds. Solar below nightSolarKW counts as
	// night; a discharge below minServeKW is not worth commanding.
	defaultTargetSoC   = 80.0
	defaultMinExcessKW = 1.0
	nightSolarKW       = 0.5
	minServeKW         = 0.5
)

// economicTier optimises for cost when no higher tier fired. Solar
// self-consumption is evaluated before arbitrage: locally generated
// energy is always cheaper than whatever the spot market offers. The
// per-cycle power is capped well below the hard limit to bound battery
// stress from purely economic moves.
func (e *Engine) economicTier(in Input, now time.Time) *model.DecisionResult {
	if res := e.selfConsumption(in, now); res != nil {
		return res
	}

	arb := in.Config.Arbitrage
	if arb == nil || !arb.Enabled {
		return nil
	}
	c := in.Constraints
	power := math.Min(arbitragePowerCapKW, c.MaxPowerKW)

	if in.Market.SpotPrice < arb.BuyThreshold && in.Telemetry.SoC <= c.MaxSoC-socMarginDispatch {
		return e.result(model.ActionCharge, -power, model.PriorityEconomic,
			fmt.Sprintf("arbitrage buy: spot %.2f below threshold %.2f", in.Market.SpotPrice, arb.BuyThreshold),
			0.8, now, defaultReview, nil)
	}
	if in.Market.SpotPrice > arb.SellThreshold && in.Telemetry.SoC >= c.MinSoC+socMarginDispatch {
		return e.result(model.ActionDischarge, power, model.PriorityEconomic,
			fmt.Sprintf("arbitrage sell: spot %.2f above threshold %.2f", in.Market.SpotPrice, arb.SellThreshold),
			0.8, now, defaultReview, nil)
	}
	return nil
}

// selfConsumption charges from solar excess toward the target SoC and,
// when enabled, serves the site load from the battery at night. Solar
// generation comes straight from telemetry; the site load is the absolute
// instantaneous power.
func (e *Engine) selfConsumption(in Input, now time.Time) *model.DecisionResult {
	sc := in.Config.SelfConsumption
	if sc == nil || !sc.Enabled {
		return nil
	}
	c := in.Constraints
	target := sc.TargetSoC
	if target <= 0 {
		target = defaultTargetSoC
	}
	minExcess := sc.MinExcessKW
	if minExcess <= 0 {
		minExcess = defaultMinExcessKW
	}

	load := math.Abs(in.Telemetry.PowerKW)
	excess := in.Telemetry.SolarKW - load

	if excess >= minExcess && in.Telemetry.SoC < target {
		power := math.Min(excess, math.Min(arbitragePowerCapKW, c.MaxPowerKW))
		return e.result(model.ActionCharge, -power, model.PriorityEconomic,
			fmt.Sprintf("solar excess %.1fkW, charging toward %.0f%%", excess, target),
			0.8, now, defaultReview, nil)
	}

	if sc.NightDischarge && in.Telemetry.SolarKW < nightSolarKW && in.Telemetry.SoC > longevityLowSoC {
		serve := math.Min(load, math.Min(arbitragePowerCapKW, c.MaxPowerKW))
		if serve > minServeKW {
			return e.result(model.ActionDischarge, serve, model.PriorityEconomic,
				fmt.Sprintf("night discharge: serving %.1fkW load from battery", serve),
				0.8, now, defaultReview, nil)
		}
	}
	return nil
}

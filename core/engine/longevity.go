package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/voltmesh/bessd/core/model"
)

// longevityTier is the fallback that keeps the SoC inside the battery's
// sweet spot. It always produces a result, so the cascade never ends
// without a decision.
func (e *Engine) longevityTier(in Input, now time.Time) *model.DecisionResult {
	soc := in.Telemetry.SoC
	power := math.Min(longevityPowerKW, in.Constraints.MaxPowerKW)

	if soc < longevityLowSoC {
		return e.result(model.ActionCharge, -power, model.PriorityLongevity,
			fmt.Sprintf("SoC %.1f%% below sweet spot, gentle charge", soc),
			longevityConfident, now, defaultReview, nil)
	}
	if soc > longevityHighSoC {
		return e.result(model.ActionDischarge, power, model.PriorityLongevity,
			fmt.Sprintf("SoC %.1f%% above sweet spot, gentle discharge", soc),
			longevityConfident, now, defaultReview, nil)
	}
	return e.result(model.ActionIdle, 0, model.PriorityLongevity,
		"no action required", 1.0, now, defaultReview, nil)
}

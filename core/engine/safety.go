package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/voltmesh/bessd/core/model"
)

// safetyTier enforces the hard battery limits. Temperature and cell-voltage
// violations stop the system; SoC and current violations idle it instead,
// because they recover by continued operation in the safe direction
// (charging out of a low SoC, discharging out of a high one). That
// asymmetry is deliberate.
func (e *Engine) safetyTier(in Input, now time.Time) *model.DecisionResult {
	c := in.Constraints
	t := in.Telemetry

	cellV := t.Voltage / float64(e.NumCells)
	if cellV < c.MinCellVoltage || cellV > c.MaxCellVoltage {
		return e.result(model.ActionEmergencyStop, 0, model.PrioritySafety,
			fmt.Sprintf("cell voltage %.3fV outside [%.2f, %.2f]V", cellV, c.MinCellVoltage, c.MaxCellVoltage),
			1.0, now, safetyReview, nil)
	}
	if t.Temperature > c.MaxTemperature {
		return e.result(model.ActionEmergencyStop, 0, model.PrioritySafety,
			fmt.Sprintf("temperature %.1f°C exceeds limit %.1f°C", t.Temperature, c.MaxTemperature),
			1.0, now, safetyReview, nil)
	}
	if t.SoC < c.MinSoC {
		return e.result(model.ActionIdle, 0, model.PrioritySafety,
			fmt.Sprintf("SoC %.1f%% below minimum %.1f%%, discharge inhibited", t.SoC, c.MinSoC),
			1.0, now, safetyReview, map[string]string{"permitted": "charge"})
	}
	if t.SoC > c.MaxSoC {
		return e.result(model.ActionIdle, 0, model.PrioritySafety,
			fmt.Sprintf("SoC %.1f%% above maximum %.1f%%, charge inhibited", t.SoC, c.MaxSoC),
			1.0, now, safetyReview, map[string]string{"permitted": "discharge"})
	}
	if math.Abs(t.Current) > c.MaxCurrent {
		return e.result(model.ActionIdle, 0, model.PrioritySafety,
			fmt.Sprintf("current %.1fA exceeds limit %.1fA", math.Abs(t.Current), c.MaxCurrent),
			1.0, now, safetyReview, nil)
	}
	return nil
}

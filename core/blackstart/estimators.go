package blackstart

import (
	"fmt"
	"math"
	"time"

	"github.com/voltmesh/bessd/core/model"
)

const (
	// shutdownFloorSoC is the SoC reserved to keep the controller and
	// essential loads alive; energy below it is not usable in an island.
	shutdownFloorSoC = 20.0

	// Capability requirements for energising a dead bus.
	capabilityMinSoC  = 50.0
	capabilityMaxTemp = 45.0
	capabilityMinConf = 0.8

	// Restoration time model constants.
	restorationBase       = 30 * time.Second
	restorationFreqFloor  = 5.0  // Hz deviation before penalties apply
	restorationFreqSlope  = 1.2  // minutes per Hz beyond the floor
	restorationVoltFloor  = 50.0 // V deviation before penalties apply
	restorationVoltCapMin = 2.0  // minutes, voltage penalty ceiling
	restorationLowSoC     = 30.0
	restorationLowSoCMul  = 1.5
)

// EstimateIslandModeDuration returns how long the battery can carry the
// average load before hitting the shutdown floor. The result is clamped to
// zero when the battery is already below the floor.
func EstimateIslandModeDuration(capacityKWh float64, t model.SystemTelemetry, avgLoadKW float64) time.Duration {
	if avgLoadKW <= 0 || capacityKWh <= 0 {
		return 0
	}
	usableKWh := (t.SoC - shutdownFloorSoC) / 100 * capacityKWh
	if usableKWh <= 0 {
		return 0
	}
	return time.Duration(usableKWh / avgLoadKW * float64(time.Hour))
}

// GetBlackStartCapability reports whether the system can energise a dead
// bus right now. Confidence degrades with SoC deficit, temperature excess
// and voltage deviation from nominal; the system only counts as capable
// when the hard requirements hold and confidence stays high.
func (f *FSM) GetBlackStartCapability(t model.SystemTelemetry, gs model.GridState) model.BlackStartCapability {
	confidence := 1.0
	reason := "ready"

	if t.SoC < capabilityMinSoC {
		confidence -= (capabilityMinSoC - t.SoC) / 100
		reason = fmt.Sprintf("SoC %.1f%% below required %.0f%%", t.SoC, capabilityMinSoC)
	}
	if t.Temperature > capabilityMaxTemp {
		confidence -= (t.Temperature - capabilityMaxTemp) / 100
		reason = fmt.Sprintf("temperature %.1f°C above limit %.0f°C", t.Temperature, capabilityMaxTemp)
	}
	confidence -= math.Abs(gs.Voltage-f.cfg.NominalVoltage) / f.cfg.NominalVoltage * 0.5
	confidence = clamp01(confidence)

	capable := t.SoC >= capabilityMinSoC && t.Temperature <= capabilityMaxTemp && confidence > capabilityMinConf
	return model.BlackStartCapability{Capable: capable, Confidence: confidence, Reason: reason}
}

// EstimateRestorationTime predicts how long resynchronization will take
// from the current grid and battery condition.
func (f *FSM) EstimateRestorationTime(gs model.GridState, t model.SystemTelemetry) model.RestorationEstimate {
	est := restorationBase

	freqDev := math.Abs(gs.Frequency - f.cfg.NominalFrequency)
	if freqDev > restorationFreqFloor {
		est += time.Duration((freqDev - restorationFreqFloor) * restorationFreqSlope * float64(time.Minute))
	}
	voltDev := math.Abs(gs.Voltage - f.cfg.NominalVoltage)
	if voltDev > restorationVoltFloor {
		penalty := math.Min(restorationVoltCapMin, (voltDev-restorationVoltFloor)/100*restorationVoltCapMin)
		est += time.Duration(penalty * float64(time.Minute))
	}
	if t.SoC < restorationLowSoC {
		est = time.Duration(float64(est) * restorationLowSoCMul)
	}

	confidence := clamp01(1 - freqDev/f.cfg.NominalFrequency - voltDev/f.cfg.NominalVoltage)
	return model.RestorationEstimate{Duration: est, Confidence: confidence}
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

package gridmode

import (
	"math"

	"github.com/voltmesh/bessd/core/model"
)

// DefaultSheddingThreshold is the SoC below which load shedding starts.
const DefaultSheddingThreshold = 50.0

// CalculateLoadShedding recommends how much non-essential load to drop for
// the given SoC. Below half the threshold only essential loads stay
// energised. A non-positive threshold falls back to the default.
func (o *Orchestrator) CalculateLoadShedding(currentSoC, threshold float64) model.LoadSheddingPlan {
	if threshold <= 0 {
		threshold = DefaultSheddingThreshold
	}
	if currentSoC >= threshold {
		return model.LoadSheddingPlan{}
	}
	depletion := (threshold - currentSoC) / threshold
	return model.LoadSheddingPlan{
		ShouldShed:         true,
		EssentialLoadsOnly: currentSoC < threshold/2,
		ReductionTarget:    math.Min(100, depletion*100+20),
	}
}

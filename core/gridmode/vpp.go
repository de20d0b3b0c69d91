package gridmode

import (
	"math"

	"github.com/voltmesh/bessd/core/events"
	"github.com/voltmesh/bessd/core/model"
)

// RegisterParticipant adds or refreshes a system in the VPP registry.
func (o *Orchestrator) RegisterParticipant(t model.SystemTelemetry) {
	o.mu.Lock()
	o.participants[t.SystemID] = t
	o.mu.Unlock()
	o.log.Debugf("VPP participant %s registered (SoC %.1f%%)", t.SystemID, t.SoC)
}

// UnregisterParticipant removes a system from the VPP registry. Removing an
// unknown id is a no-op.
func (o *Orchestrator) UnregisterParticipant(systemID string) {
	o.mu.Lock()
	delete(o.participants, systemID)
	o.mu.Unlock()
	o.log.Debugf("VPP participant %s unregistered", systemID)
}

// GetVPPState aggregates the live participant set. With no participants the
// grid readings fall back to nominal values.
func (o *Orchestrator) GetVPPState() model.VirtualPowerPlantState {
	o.mu.RLock()
	defer o.mu.RUnlock()

	st := model.VirtualPowerPlantState{
		Frequency: nominalFrequency,
		Voltage:   nominalVoltage,
	}
	if o.haveGrid {
		st.Frequency = o.lastGrid.Frequency
		st.Voltage = o.lastGrid.Voltage
	}
	if len(o.participants) == 0 {
		return st
	}

	for _, p := range o.participants {
		st.AvailableCapacity += p.SoC / 100 * o.participantCapacityKW
		st.AverageSoC += p.SoC
		st.AverageSoH += p.SoH
		if p.PowerKW > 0 {
			st.DispatchingPower += p.PowerKW
		}
	}
	n := float64(len(o.participants))
	st.ParticipantCount = len(o.participants)
	st.TotalCapacity = n * o.participantCapacityKW
	st.AverageSoC /= n
	st.AverageSoH /= n
	return st
}

// CoordinateDispatch splits the requested aggregate power across the
// participants in proportion to their available-capacity share. With no
// participants the map is empty, and a participant with no available
// capacity gets 0 rather than a divide-by-zero.
func (o *Orchestrator) CoordinateDispatch(totalPowerKW float64) map[string]float64 {
	o.mu.RLock()
	allocations := make(map[string]float64, len(o.participants))
	var totalAvailable float64
	for id, p := range o.participants {
		avail := math.Max(0, p.SoC) / 100 * o.participantCapacityKW
		allocations[id] = avail
		totalAvailable += avail
	}
	o.mu.RUnlock()

	if len(allocations) == 0 {
		return allocations
	}
	for id, avail := range allocations {
		if totalAvailable > 0 {
			allocations[id] = totalPowerKW * avail / totalAvailable
		} else {
			allocations[id] = 0
		}
	}

	if o.bus != nil {
		// Event consumers run asynchronously; give them their own copy so
		// the caller mutating the returned map cannot corrupt the record.
		published := make(map[string]float64, len(allocations))
		for id, kw := range allocations {
			published[id] = kw
		}
		o.bus.Publish(events.VPPDispatchEvent{TotalPowerKW: totalPowerKW, Allocations: published, Time: o.now()})
	}
	return allocations
}

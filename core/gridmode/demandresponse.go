package gridmode

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/voltmesh/bessd/core/events"
	"github.com/voltmesh/bessd/core/model"
)

// complianceThreshold is the minimum compliance percentage for a DR event
// to count as honoured.
const complianceThreshold = 85.0

// DemandResponseRequest describes an incoming load-reduction obligation.
type DemandResponseRequest struct {
	RequiredReductionKW float64 `json:"required_reduction_kw"`
	DurationMinutes     float64 `json:"duration_minutes"`
	CompensationPerMWh  float64 `json:"compensation_per_mwh"`
}

// ProcessDemandResponseEvent registers a new pending DR event with a
// generated id. Events are never deleted, only status-transitioned; the
// retained history is bounded and evicts oldest first.
func (o *Orchestrator) ProcessDemandResponseEvent(req DemandResponseRequest) model.DemandResponseEvent {
	ev := model.DemandResponseEvent{
		EventID:            uuid.NewString(),
		RequiredReduction:  req.RequiredReductionKW,
		DurationMinutes:    req.DurationMinutes,
		CompensationPerMWh: req.CompensationPerMWh,
		Status:             model.DRPending,
		CreatedAt:          o.now(),
	}

	o.mu.Lock()
	o.drEvents[ev.EventID] = &ev
	o.drOrder = append(o.drOrder, ev.EventID)
	if len(o.drOrder) > maxDREvents {
		delete(o.drEvents, o.drOrder[0])
		o.drOrder = o.drOrder[1:]
	}
	o.mu.Unlock()

	o.log.Infof("demand response event %s created: %.1fkW for %.0fmin", ev.EventID, ev.RequiredReduction, ev.DurationMinutes)
	if o.bus != nil {
		o.bus.Publish(events.DemandResponseLifecycle{Event: ev, Change: "created", Time: ev.CreatedAt})
	}
	return ev
}

// CalculateDRCompliance scores the delivered reduction against the
// obligation and returns the compliance percentage. The event becomes
// active at or above the compliance threshold and failed below it. An
// unknown event id yields 0 without error: "no data" is a valid outcome on
// this read path.
func (o *Orchestrator) CalculateDRCompliance(eventID string, actualReductionKW float64) float64 {
	o.mu.Lock()
	ev, ok := o.drEvents[eventID]
	if !ok {
		o.mu.Unlock()
		return 0
	}

	compliance := 0.0
	if ev.RequiredReduction > 0 {
		compliance = math.Min(100, actualReductionKW/ev.RequiredReduction*100)
	}
	ev.Compliance = compliance / 100
	if compliance >= complianceThreshold {
		ev.Status = model.DRActive
	} else {
		ev.Status = model.DRFailed
	}
	snapshot := *ev
	o.mu.Unlock()

	o.log.Infof("demand response event %s scored %.1f%% (%s)", eventID, compliance, snapshot.Status)
	if o.bus != nil {
		o.bus.Publish(events.DemandResponseLifecycle{Event: snapshot, Change: "scored", Time: o.now()})
	}
	return compliance
}

// DemandResponseEvent returns a copy of the stored event, if known.
func (o *Orchestrator) DemandResponseEvent(eventID string) (model.DemandResponseEvent, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if ev, ok := o.drEvents[eventID]; ok {
		return *ev, true
	}
	return model.DemandResponseEvent{}, false
}

// CompleteDemandResponse marks an active event completed once its duration
// has elapsed.
func (o *Orchestrator) CompleteDemandResponse(eventID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	ev, ok := o.drEvents[eventID]
	if !ok || ev.Status != model.DRActive {
		return false
	}
	if o.now().Before(ev.CreatedAt.Add(time.Duration(ev.DurationMinutes) * time.Minute)) {
		return false
	}
	ev.Status = model.DRCompleted
	return true
}

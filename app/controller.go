package app

import (
	"time"

	"github.com/voltmesh/bessd/config"
	"github.com/voltmesh/bessd/core/blackstart"
	"github.com/voltmesh/bessd/core/engine"
	"github.com/voltmesh/bessd/core/gridmode"
	"github.com/voltmesh/bessd/core/logger"
	"github.com/voltmesh/bessd/core/model"
	"github.com/voltmesh/bessd/infra/mqtt"
)

// Controller drives the decision/orchestration/FSM triple for one system.
// Each cycle is synchronous and side-effect free inside the core; the
// controller combines the three outputs into one setpoint message.
type Controller struct {
	systemID    string
	engine      *engine.Engine
	orch        *gridmode.Orchestrator
	fsm         *blackstart.FSM
	constraints model.SystemConstraints
	optimize    model.OptimizationConfig
	capacityKWh float64
	avgLoadKW   float64

	nextReview time.Time
	lastResult model.DecisionResult
	log        logger.Logger
	now        func() time.Time
}

// NewController wires one system against the shared orchestrator.
func NewController(sys config.SystemConfig, cfg *config.Config, orch *gridmode.Orchestrator, fsm *blackstart.FSM, log logger.Logger) *Controller {
	eng := engine.New(log)
	if sys.NumCells > 0 {
		eng.NumCells = sys.NumCells
	}
	return &Controller{
		systemID:    sys.ID,
		engine:      eng,
		orch:        orch,
		fsm:         fsm,
		constraints: cfg.Constraints,
		optimize:    cfg.Optimization,
		capacityKWh: sys.CapacityKWh,
		avgLoadKW:   sys.AvgLoadKW,
		log:         log,
		now:         time.Now,
	}
}

// Cycle consumes one snapshot. The engine is only re-run once its previous
// NextReviewAt has passed; the mode selector and the black-start machine
// run every snapshot since they answer topology questions, not dispatch
// ones. The returned message carries all three outputs.
func (c *Controller) Cycle(snap mqtt.Snapshot) (mqtt.SetpointMessage, time.Duration) {
	started := c.now()

	mode := c.orch.SelectControlMode(c.systemID, snap.Grid)
	bsStatus := c.fsm.Process(snap.Grid, snap.Telemetry)

	if !started.Before(c.nextReview) || c.lastResult.Timestamp.IsZero() {
		c.lastResult = c.engine.DecideAt(engine.Input{
			Telemetry:   snap.Telemetry,
			Grid:        snap.Grid,
			Market:      snap.Market,
			Constraints: c.constraints,
			Config:      c.optimize,
		}, started)
		c.nextReview = c.lastResult.NextReviewAt
	}
	// Keep the VPP view fresh for aggregate dispatch.
	c.orch.RegisterParticipant(snap.Telemetry)

	res := c.lastResult
	msg := mqtt.SetpointMessage{
		SystemID:     c.systemID,
		Action:       res.Action.String(),
		PowerKW:      res.PowerKW,
		Priority:     res.Priority.String(),
		Reason:       res.Reason,
		Confidence:   res.Confidence,
		ControlMode:  mode,
		BlackStart:   bsStatus,
		NextReviewAt: res.NextReviewAt,
		Timestamp:    started,
	}
	if bsStatus.State == model.StateIslandMode {
		runtime := blackstart.EstimateIslandModeDuration(c.capacityKWh, snap.Telemetry, c.avgLoadKW)
		msg.IslandRuntimeSec = runtime.Seconds()
		c.log.Infof("%s off grid, estimated runtime %s at %.1fkW average load", c.systemID, runtime, c.avgLoadKW)
	}
	return msg, c.now().Sub(started)
}

// Result returns the decision produced by the most recent engine run.
func (c *Controller) Result() model.DecisionResult { return c.lastResult }

package app

import (
	"context"
	"fmt"
	"time"

	"github.com/voltmesh/bessd/config"
	"github.com/voltmesh/bessd/core/blackstart"
	"github.com/voltmesh/bessd/core/events"
	"github.com/voltmesh/bessd/core/gridmode"
	coremetrics "github.com/voltmesh/bessd/core/metrics"
	"github.com/voltmesh/bessd/infra/logger"
	"github.com/voltmesh/bessd/infra/metrics"
	"github.com/voltmesh/bessd/infra/mqtt"
	"github.com/voltmesh/bessd/internal/eventbus"
)

// cycleBudget is the completion budget for one cycle; results feed hardware
// setpoints.
const cycleBudget = 100 * time.Millisecond

// Service owns the per-system controllers and the shared orchestrator, and
// moves snapshots in and setpoints out.
type Service struct {
	Orchestrator *gridmode.Orchestrator
	controllers  map[string]*Controller
	feed         *mqtt.Feed
	publisher    *mqtt.Publisher
	bus          eventbus.EventBus
	sink         coremetrics.MetricsSink
	log          logger.Logger
	promEnabled  bool
	promPort     string
	drEnabled    bool
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	var sinks []coremetrics.MetricsSink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg.Metrics)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(cfg.Metrics))
	}
	var sink coremetrics.MetricsSink = coremetrics.NopSink{}
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	bus := eventbus.New()
	orch := gridmode.New(logger.New("gridmode"), bus,
		gridmode.WithParticipantCapacity(cfg.VPP.ParticipantCapacityKW))

	controllers := make(map[string]*Controller, len(cfg.Systems))
	for _, sys := range cfg.Systems {
		fsm := blackstart.New(sys.ID, cfg.BlackStart, logger.New("blackstart"), bus)
		controllers[sys.ID] = NewController(sys, cfg, orch, fsm, logger.New("controller"))
	}

	feed, err := mqtt.NewFeed(cfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("mqtt feed: %w", err)
	}
	publisher, err := mqtt.NewPublisher(cfg.MQTT)
	if err != nil {
		feed.Close()
		return nil, fmt.Errorf("mqtt publisher: %w", err)
	}

	return &Service{
		Orchestrator: orch,
		controllers:  controllers,
		feed:         feed,
		publisher:    publisher,
		bus:          bus,
		sink:         sink,
		log:          logg,
		promEnabled:  cfg.Metrics.PrometheusEnabled,
		promPort:     cfg.Metrics.PrometheusPort,
		drEnabled:    cfg.Optimization.DemandResponse != nil && cfg.Optimization.DemandResponse.Enabled,
	}, nil
}

// Run consumes snapshots until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	go s.runAudit(ctx)

	for {
		select {
		case snap, ok := <-s.feed.Snapshots():
			if !ok {
				return nil
			}
			s.handleSnapshot(snap)
		case req, ok := <-s.feed.DemandResponses():
			if !ok {
				return nil
			}
			s.handleDemandResponse(req)
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Service) handleDemandResponse(req gridmode.DemandResponseRequest) {
	if !s.drEnabled {
		s.log.Infof("demand response disabled, ignoring request for %.1fkW", req.RequiredReductionKW)
		return
	}
	s.Orchestrator.ProcessDemandResponseEvent(req)
}

func (s *Service) handleSnapshot(snap mqtt.Snapshot) {
	ctrl, ok := s.controllers[snap.SystemID]
	if !ok {
		s.log.Warnf("snapshot for unknown system %s", snap.SystemID)
		return
	}
	msg, elapsed := ctrl.Cycle(snap)
	if elapsed > cycleBudget {
		s.log.Warnf("cycle for %s took %s, over the %s budget", snap.SystemID, elapsed, cycleBudget)
	}
	s.bus.Publish(events.DecisionEvent{SystemID: snap.SystemID, Result: ctrl.Result(), Elapsed: elapsed})
	if err := s.sink.RecordDecision([]coremetrics.DecisionRecord{{
		SystemID:  snap.SystemID,
		Result:    ctrl.Result(),
		CycleTime: elapsed,
	}}); err != nil {
		s.log.Errorf("record decision: %v", err)
	}
	if err := s.publisher.PublishSetpoint(msg); err != nil {
		s.log.Errorf("publish setpoint for %s: %v", snap.SystemID, err)
	}
}

// runAudit forwards bus events to the recorders that understand them.
func (s *Service) runAudit(ctx context.Context) {
	sub := s.bus.Subscribe()
	for {
		select {
		case ev, ok := <-sub:
			if !ok {
				return
			}
			s.recordEvent(ev)
		case <-ctx.Done():
			s.bus.Unsubscribe(sub)
			return
		}
	}
}

func (s *Service) recordEvent(ev eventbus.Event) {
	switch e := ev.(type) {
	case events.ModeChangeEvent:
		if r, ok := s.sink.(coremetrics.ModeChangeRecorder); ok {
			if err := r.RecordModeChange(coremetrics.ModeChangeRecord{SystemID: e.SystemID, From: e.From, To: e.To, Time: e.Time}); err != nil {
				s.log.Errorf("record mode change: %v", err)
			}
		}
	case events.TransitionEvent:
		if r, ok := s.sink.(coremetrics.TransitionRecorder); ok {
			if err := r.RecordTransition(coremetrics.TransitionRecord{Event: e.Event}); err != nil {
				s.log.Errorf("record transition: %v", err)
			}
		}
	case events.VPPDispatchEvent:
		if r, ok := s.sink.(coremetrics.DispatchRecorder); ok {
			recs := make([]coremetrics.DispatchRecord, 0, len(e.Allocations))
			for id, kw := range e.Allocations {
				recs = append(recs, coremetrics.DispatchRecord{SystemID: id, PowerKW: kw, Time: e.Time})
			}
			if err := r.RecordDispatch(recs); err != nil {
				s.log.Errorf("record dispatch: %v", err)
			}
		}
	case events.LoadSheddingSignal:
		s.log.Warnf("load shedding requested for %s: reduce %.0f%%", e.SystemID, e.Plan.ReductionTarget)
	}
}

// Close releases the MQTT clients and the event bus.
func (s *Service) Close() error {
	s.feed.Close()
	s.publisher.Close()
	s.bus.Close()
	return nil
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/voltmesh/bessd/core/metrics"
)

// PromSink records decision and grid events in Prometheus metrics.
type PromSink struct {
	decisions   *prometheus.CounterVec
	cycleTime   *prometheus.HistogramVec
	modeChanges *prometheus.CounterVec
	transitions *prometheus.CounterVec
}

// NewPromSink registers the metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (*PromSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bess_decisions_total",
		Help: "Total number of dispatch decisions",
	}, []string{"system_id", "action", "priority"})
	cycleTime := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bess_decision_cycle_seconds",
		Help:    "Time spent evaluating one decision cycle",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
	}, []string{"system_id"})
	modeChanges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bess_control_mode_changes_total",
		Help: "Total number of grid control mode changes",
	}, []string{"system_id", "mode"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bess_blackstart_transitions_total",
		Help: "Total number of black-start state transitions",
	}, []string{"system_id", "from", "to"})

	if err := reg.Register(decisions); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			decisions = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(cycleTime); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			cycleTime = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(modeChanges); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			modeChanges = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(transitions); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			transitions = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	return &PromSink{decisions: decisions, cycleTime: cycleTime, modeChanges: modeChanges, transitions: transitions}, nil
}

// RecordDecision increments the decision counter and observes the cycle
// latency for each record.
func (s *PromSink) RecordDecision(recs []coremetrics.DecisionRecord) error {
	for _, r := range recs {
		s.decisions.WithLabelValues(r.SystemID, r.Result.Action.String(), r.Result.Priority.String()).Inc()
		if r.CycleTime > 0 {
			s.cycleTime.WithLabelValues(r.SystemID).Observe(r.CycleTime.Seconds())
		}
	}
	return nil
}

// RecordModeChange counts control-mode switches per target mode.
func (s *PromSink) RecordModeChange(rec coremetrics.ModeChangeRecord) error {
	s.modeChanges.WithLabelValues(rec.SystemID, string(rec.To)).Inc()
	return nil
}

// RecordTransition counts black-start FSM edges.
func (s *PromSink) RecordTransition(rec coremetrics.TransitionRecord) error {
	s.transitions.WithLabelValues(rec.Event.SystemID, string(rec.Event.FromState), string(rec.Event.ToState)).Inc()
	return nil
}

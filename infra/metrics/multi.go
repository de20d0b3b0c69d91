package metrics

import coremetrics "github.com/voltmesh/bessd/core/metrics"

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordDecision forwards the records to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordDecision(recs []coremetrics.DecisionRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordDecision(recs); err != nil {
			return err
		}
	}
	return nil
}

// RecordModeChange forwards mode-change records to sinks that support them.
func (m *MultiSink) RecordModeChange(rec coremetrics.ModeChangeRecord) error {
	for _, s := range m.Sinks {
		if r, ok := s.(coremetrics.ModeChangeRecorder); ok {
			if err := r.RecordModeChange(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordTransition forwards transition records to sinks that support them.
func (m *MultiSink) RecordTransition(rec coremetrics.TransitionRecord) error {
	for _, s := range m.Sinks {
		if r, ok := s.(coremetrics.TransitionRecorder); ok {
			if err := r.RecordTransition(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordDispatch forwards dispatch records to sinks that support them.
func (m *MultiSink) RecordDispatch(recs []coremetrics.DispatchRecord) error {
	for _, s := range m.Sinks {
		if r, ok := s.(coremetrics.DispatchRecorder); ok {
			if err := r.RecordDispatch(recs); err != nil {
				return err
			}
		}
	}
	return nil
}

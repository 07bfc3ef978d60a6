package metrics

// MultiSink fans records out to several sinks. Optional recorder interfaces
// are forwarded only to sinks implementing them.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordDispatch forwards to all sinks, returning the first error.
func (m *MultiSink) RecordDispatch(rec DispatchRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordDispatch(rec); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiSink) RecordTransition(ev TransitionEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(TransitionRecorder); ok {
			if err := rec.RecordTransition(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *MultiSink) RecordProviderCall(ev ProviderCallEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(ProviderCallRecorder); ok {
			if err := rec.RecordProviderCall(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *MultiSink) RecordFleetSnapshot(snap FleetSnapshot) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(FleetRecorder); ok {
			if err := rec.RecordFleetSnapshot(snap); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *MultiSink) RecordConflict(ev ConflictEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(ConflictRecorder); ok {
			if err := rec.RecordConflict(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

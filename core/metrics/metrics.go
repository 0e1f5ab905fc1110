package metrics

import (
	"errors"
	"time"

	"github.com/kilianp07/slotanneal/core/anneal"
)

// ProgressEvent is a progress snapshot of a run.
type ProgressEvent struct {
	RunID    string
	Progress anneal.Progress
	Time     time.Time
}

// MetricsSink records progress snapshots for observability purposes.
type MetricsSink interface {
	RecordProgress(ev ProgressEvent) error
}

// ResultEvent is the terminal outcome of a run.
type ResultEvent struct {
	RunID       string
	Result      anneal.Result
	Fingerprint string
	Time        time.Time
}

// ResultRecorder records final results.
type ResultRecorder interface {
	RecordResult(ev ResultEvent) error
}

// StateEvent reports a lifecycle transition of a run.
type StateEvent struct {
	RunID string
	State anneal.State
	Time  time.Time
}

// StateRecorder records lifecycle transitions.
type StateRecorder interface {
	RecordState(ev StateEvent) error
}

// Closer is implemented by sinks holding connections.
type Closer interface {
	Close()
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordProgress(ProgressEvent) error { return nil }
func (NopSink) RecordResult(ResultEvent) error     { return nil }
func (NopSink) RecordState(StateEvent) error       { return nil }

// MultiSink fans events out to several sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordProgress forwards the snapshot to every sink. A failing sink does
// not keep the event from the others; all errors are joined.
func (m *MultiSink) RecordProgress(ev ProgressEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if err := s.RecordProgress(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordResult forwards results to sinks supporting them.
func (m *MultiSink) RecordResult(ev ResultEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(ResultRecorder); ok {
			if err := rec.RecordResult(ev); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// RecordState forwards lifecycle transitions to sinks supporting them.
func (m *MultiSink) RecordState(ev StateEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(StateRecorder); ok {
			if err := rec.RecordState(ev); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink holding a connection.
func (m *MultiSink) Close() {
	for _, s := range m.Sinks {
		if c, ok := s.(Closer); ok {
			c.Close()
		}
	}
}

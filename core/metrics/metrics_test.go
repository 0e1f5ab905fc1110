package metrics

import (
	"errors"
	"strings"
	"testing"

	"github.com/kilianp07/slotanneal/core/factory"
)

type recordSink struct {
	progress int
	results  int
	err      error
}

func (r *recordSink) RecordProgress(ProgressEvent) error {
	r.progress++
	return r.err
}

func (r *recordSink) RecordResult(ResultEvent) error {
	r.results++
	return nil
}

type closerSink struct{ closed *int }

func (c *closerSink) RecordProgress(ProgressEvent) error { return nil }
func (c *closerSink) Close()                             { *c.closed++ }

// progressOnly does not implement ResultRecorder.
type progressOnly struct{ count int }

func (p *progressOnly) RecordProgress(ProgressEvent) error {
	p.count++
	return nil
}

func TestMultiSink(t *testing.T) {
	s1 := &recordSink{}
	s2 := &progressOnly{}
	m := NewMultiSink(s1, s2)
	if err := m.RecordProgress(ProgressEvent{}); err != nil {
		t.Fatalf("record progress: %v", err)
	}
	if err := m.RecordResult(ResultEvent{}); err != nil {
		t.Fatalf("record result: %v", err)
	}
	if err := m.RecordState(StateEvent{}); err != nil {
		t.Fatalf("record state: %v", err)
	}
	if s1.progress != 1 || s2.count != 1 || s1.results != 1 {
		t.Fatalf("events not forwarded: %+v %+v", s1, s2)
	}
	m.Close()
}

func TestMultiSinkJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	bang := errors.New("bang")
	s1 := &recordSink{err: boom}
	s2 := &recordSink{}
	s3 := &recordSink{err: bang}
	err := NewMultiSink(s1, s2, s3).RecordProgress(ProgressEvent{})
	if !errors.Is(err, boom) || !errors.Is(err, bang) {
		t.Fatalf("expected boom and bang, got %v", err)
	}
	if s2.progress != 1 || s3.progress != 1 {
		t.Fatalf("sinks after a failing one were skipped: %d %d", s2.progress, s3.progress)
	}
}

func TestNewMetricsSink(t *testing.T) {
	s, err := NewMetricsSink(nil)
	if err != nil {
		t.Fatalf("create nop default: %v", err)
	}
	if _, ok := s.(NopSink); !ok {
		t.Fatalf("expected NopSink, got %T", s)
	}

	if err := RegisterMetricsSink("test-record", func(map[string]any) (MetricsSink, error) {
		return &recordSink{}, nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	s, err = NewMetricsSink([]factory.ModuleConfig{{Type: "test-record"}, {Type: "test-record"}})
	if err != nil {
		t.Fatalf("create multi: %v", err)
	}
	m, ok := s.(*MultiSink)
	if !ok || len(m.Sinks) != 2 {
		t.Fatalf("expected MultiSink with 2 sinks, got %T", s)
	}
	if _, err := NewMetricsSink([]factory.ModuleConfig{{Type: "missing"}}); err == nil {
		t.Fatal("expected error for unknown type")
	}

	closed := 0
	if err := RegisterMetricsSink("test-closer", func(map[string]any) (MetricsSink, error) {
		return &closerSink{closed: &closed}, nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err = NewMetricsSink([]factory.ModuleConfig{{Type: "test-closer"}, {Type: "missing"}})
	if !errors.Is(err, factory.ErrUnknownModule) {
		t.Fatalf("expected ErrUnknownModule, got %v", err)
	}
	if !strings.Contains(err.Error(), "metrics.sinks[1]") {
		t.Fatalf("error does not name the entry: %v", err)
	}
	if closed != 1 {
		t.Fatalf("sink built before the failure was not closed")
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{Sinks: []factory.ModuleConfig{{Type: "prometheus"}}}
	cfg.SetDefaults()
	if cfg.Sinks[0].Conf == nil {
		t.Fatalf("expected conf map")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	cfg.Sinks = append(cfg.Sinks, factory.ModuleConfig{})
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for missing type")
	}
}

package anneal

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultParamsValid(t *testing.T) {
	if err := DefaultParams().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestParamsValidate(t *testing.T) {
	cases := map[string]func(*Params){
		"iterations": func(p *Params) { p.MaxIterations = 0 },
		"report":     func(p *Params) { p.ReportEvery = -1 },
		"start":      func(p *Params) { p.StartTemperature = 0 },
		"end":        func(p *Params) { p.EndTemperature = math.Inf(1) },
		"nan":        func(p *Params) { p.StartTemperature = math.NaN() },
		"passes":     func(p *Params) { p.RepairPasses = 0 },
		"samples":    func(p *Params) { p.RepairSamples = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := DefaultParams()
			mutate(&p)
			if err := p.Validate(); !errors.Is(err, ErrInvalidParams) {
				t.Fatalf("expected ErrInvalidParams, got %v", err)
			}
		})
	}
}

func TestTemperatureSchedule(t *testing.T) {
	p := DefaultParams()
	p.MaxIterations = 1000
	if got := p.Temperature(0); got != p.StartTemperature {
		t.Fatalf("T(0)=%v", got)
	}
	if got := p.Temperature(1000); math.Abs(got-p.EndTemperature) > 1e-9 {
		t.Fatalf("T(max)=%v", got)
	}
	if got := p.Temperature(500); math.Abs(got-100) > 1e-9 {
		t.Fatalf("T(mid)=%v", got)
	}
	prev := math.Inf(1)
	for i := 0; i <= 1000; i += 50 {
		tt := p.Temperature(i)
		if tt >= prev {
			t.Fatalf("schedule not decreasing at %d", i)
		}
		prev = tt
	}
}

func TestDecodeParams(t *testing.T) {
	p, err := DecodeParams(strings.NewReader("max_iterations: 500\nseed: 9\n"), "yaml")
	if err != nil {
		t.Fatalf("decode yaml: %v", err)
	}
	if p.MaxIterations != 500 || p.Seed != 9 || p.ReportEvery != DefaultParams().ReportEvery {
		t.Fatalf("unexpected params %+v", p)
	}

	p, err = DecodeParams(strings.NewReader(`{"start_temperature": 50}`), "json")
	if err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if p.StartTemperature != 50 || p.MaxIterations != DefaultParams().MaxIterations {
		t.Fatalf("unexpected params %+v", p)
	}

	if _, err := DecodeParams(strings.NewReader(""), "toml"); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}

func TestLoadParams(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.yml")
	if err := os.WriteFile(path, []byte("report_every: 10\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := LoadParams(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.ReportEvery != 10 {
		t.Fatalf("report_every=%d", p.ReportEvery)
	}
	if _, err := LoadParams(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kilianp07/slotanneal/core/anneal"
	"github.com/kilianp07/slotanneal/core/runlog"
)

func writeConfig(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

//nolint:gocyclo
func TestLoad(t *testing.T) {
	path := writeConfig(t, "config.yaml", `solver:
  max_iterations: 5000
  report_every: 250
  seed: 3
input:
  path: "family_data.csv"
output:
  submission: "out/submission.csv"
  result: "out/result.json"
runlog:
  backend: "sqlite"
  path: "runs.db"
metrics:
  prometheus_addr: ":9100"
  sinks:
    - type: "prometheus"
    - type: "mqtt"
      conf:
        broker: "tcp://localhost:1883"
        topic: "anneal"
logging:
  level: "debug"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"solver.max_iterations", cfg.Solver.MaxIterations, 5000},
		{"solver.report_every", cfg.Solver.ReportEvery, 250},
		{"solver.seed", cfg.Solver.Seed, int64(3)},
		{"solver.start_temperature default", cfg.Solver.StartTemperature, anneal.DefaultParams().StartTemperature},
		{"solver.repair_samples default", cfg.Solver.RepairSamples, 60},
		{"input.path", cfg.Input.Path, "family_data.csv"},
		{"output.submission", cfg.Output.Submission, "out/submission.csv"},
		{"output.result", cfg.Output.Result, "out/result.json"},
		{"runlog.backend", cfg.RunLog.Backend, "sqlite"},
		{"runlog.max_backups", cfg.RunLog.MaxBackups, 3},
		{"metrics.prometheus_addr", cfg.Metrics.PrometheusAddr, ":9100"},
		{"metrics.sinks", len(cfg.Metrics.Sinks), 2},
		{"metrics.sinks[1].type", cfg.Metrics.Sinks[1].Type, "mqtt"},
		{"metrics.sinks[1].conf.topic", cfg.Metrics.Sinks[1].Conf["topic"], "anneal"},
		{"logging.level", cfg.Logging.Level, "debug"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: got %v want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Solver != anneal.DefaultParams() {
		t.Errorf("unexpected solver params %+v", cfg.Solver)
	}
	if cfg.Input.Generator.Groups != 5000 {
		t.Errorf("generator defaults not applied: %+v", cfg.Input.Generator)
	}
	if cfg.Output.Submission != "submission.csv" {
		t.Errorf("unexpected submission path %q", cfg.Output.Submission)
	}
	if cfg.RunLog.Backend != "jsonl" {
		t.Errorf("unexpected runlog backend %q", cfg.RunLog.Backend)
	}
}

func TestLoadJSONWithEnvOverride(t *testing.T) {
	path := writeConfig(t, "config.json", `{"solver": {"max_iterations": 100, "report_every": 10}}`)
	t.Setenv("K_SOLVER__SEED", "99")
	t.Setenv("K_RUNLOG__BACKEND", "none")
	t.Setenv("K_METRICS__PROMETHEUS_ADDR", ":9464")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Solver.Seed != 99 {
		t.Errorf("env override ignored: seed %d", cfg.Solver.Seed)
	}
	if cfg.RunLog.Backend != "none" {
		t.Errorf("env override ignored: backend %q", cfg.RunLog.Backend)
	}
	if cfg.Metrics.PrometheusAddr != ":9464" {
		t.Errorf("env override ignored: prometheus_addr %q", cfg.Metrics.PrometheusAddr)
	}
	if cfg.Solver.MaxIterations != 100 {
		t.Errorf("file value lost: %d", cfg.Solver.MaxIterations)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("K_SOLVER__REPORT_EVERY=77\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer func() {
		_ = os.Chdir(wd)
		_ = os.Unsetenv("K_SOLVER__REPORT_EVERY")
	}()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Solver.ReportEvery != 77 {
		t.Errorf(".env override ignored: %d", cfg.Solver.ReportEvery)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	bad := writeConfig(t, "bad.yaml", "solver:\n  report_every: 0\n")
	if _, err := Load(bad); !errors.Is(err, anneal.ErrInvalidParams) {
		t.Errorf("expected ErrInvalidParams, got %v", err)
	}

	store := writeConfig(t, "store.yaml", "runlog:\n  backend: kafka\n")
	if _, err := Load(store); !errors.Is(err, runlog.ErrUnknownBackend) {
		t.Errorf("expected ErrUnknownBackend, got %v", err)
	}

	level := writeConfig(t, "level.yaml", "logging:\n  level: loud\n")
	if _, err := Load(level); err == nil {
		t.Errorf("expected logging error")
	}

	sink := writeConfig(t, "sink.yaml", "metrics:\n  sinks:\n    - conf: {}\n")
	if _, err := Load(sink); err == nil {
		t.Errorf("expected metrics error")
	}

	if _, err := Load(writeConfig(t, "config.toml", "")); err == nil {
		t.Errorf("expected unsupported format error")
	}
}

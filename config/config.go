// Package config loads the application configuration from a YAML or JSON
// file, an optional .env file and K_ prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/slotanneal/core/anneal"
	"github.com/kilianp07/slotanneal/core/generator"
	"github.com/kilianp07/slotanneal/core/metrics"
	"github.com/kilianp07/slotanneal/core/runlog"
)

type Config struct {
	Solver  anneal.Params  `json:"solver"`
	Input   InputConfig    `json:"input"`
	Output  OutputConfig   `json:"output"`
	RunLog  runlog.Config  `json:"runlog"`
	Metrics metrics.Config `json:"metrics"`
	Logging LoggingConfig  `json:"logging"`
}

// InputConfig selects the problem instance. A synthetic instance is
// generated when Path is empty.
type InputConfig struct {
	Path      string           `json:"path"`
	Generator generator.Config `json:"generator"`
}

// OutputConfig names the files written after a run.
type OutputConfig struct {
	// Submission receives family_id,assigned_day rows.
	Submission string `json:"submission"`
	// Result optionally receives the JSON result document.
	Result string `json:"result"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Solver: anneal.DefaultParams(),
		Output: OutputConfig{Submission: "submission.csv"},
	}
}

// Load reads path, applies environment overrides and validates every
// section. An empty path yields the defaults with overrides applied.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	// Environment overrides: K_SOLVER__SEED sets solver.seed.
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills unset optional fields of every section.
func (c *Config) SetDefaults() {
	if c.Output.Submission == "" {
		c.Output.Submission = "submission.csv"
	}
	if c.Input.Path == "" {
		c.Input.Generator.SetDefaults()
	}
	c.RunLog.SetDefaults()
	c.Metrics.SetDefaults()
	c.Logging.SetDefaults()
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Solver.Validate(); err != nil {
		return fmt.Errorf("solver: %w", err)
	}
	if c.Input.Path == "" {
		if err := c.Input.Generator.Validate(); err != nil {
			return fmt.Errorf("input.generator: %w", err)
		}
	}
	if err := c.RunLog.Validate(); err != nil {
		return fmt.Errorf("runlog: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return err
	}
	return c.Logging.Validate()
}

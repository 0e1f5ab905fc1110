package metrics

import (
	"fmt"

	"github.com/kilianp07/slotanneal/core/factory"
)

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// PrometheusAddr is the listen address of the /metrics endpoint. Empty
	// disables the HTTP server.
	PrometheusAddr string `json:"prometheus_addr"`
}

// SetDefaults fills optional fields.
func (c *Config) SetDefaults() {
	for i := range c.Sinks {
		if c.Sinks[i].Conf == nil {
			c.Sinks[i].Conf = map[string]any{}
		}
	}
}

// Validate checks that every sink names a type.
func (c Config) Validate() error {
	for i, s := range c.Sinks {
		if s.Type == "" {
			return fmt.Errorf("metrics.sinks[%d]: type is required", i)
		}
	}
	return nil
}

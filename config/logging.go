package config

import (
	"fmt"

	"github.com/kilianp07/slotanneal/infra/logger"
)

// LoggingConfig sets the default log level. LOG_LEVEL still takes precedence.
type LoggingConfig struct {
	Level string `json:"level"`
}

// SetDefaults applies sane defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
}

// Validate checks the level name.
func (c LoggingConfig) Validate() error {
	switch c.Level {
	case "trace", "debug", "info", "warn", "error":
		return nil
	}
	return fmt.Errorf("logging: unknown level %s", c.Level)
}

// Apply makes Level the default of loggers created afterwards.
func (c LoggingConfig) Apply() error {
	return logger.SetLevel(c.Level)
}

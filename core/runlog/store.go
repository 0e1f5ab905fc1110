// Package runlog keeps a history of finished solver runs.
package runlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/slotanneal/core/anneal"
)

// Record summarizes one finished run.
type Record struct {
	RunID       string        `json:"run_id"`
	Timestamp   time.Time     `json:"timestamp"`
	Input       string        `json:"input"`
	Groups      int           `json:"groups"`
	People      int           `json:"people"`
	Params      anneal.Params `json:"params"`
	State       anneal.State  `json:"state"`
	BestCost    float64       `json:"best_cost"`
	Iterations  int           `json:"iterations"`
	Fingerprint string        `json:"fingerprint"`
	Elapsed     time.Duration `json:"elapsed"`
	Stats       anneal.Stats  `json:"stats"`
	Output      string        `json:"output,omitempty"`
}

// Query defines filters for retrieving records. Zero values match all.
type Query struct {
	Start time.Time
	End   time.Time
	RunID string
	// States restricts the terminal state; empty matches both.
	States []anneal.State
	// Limit keeps the most recent records; zero means unlimited.
	Limit int
}

func (q Query) match(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.RunID != "" && r.RunID != q.RunID {
		return false
	}
	if len(q.States) > 0 {
		for _, s := range q.States {
			if s == r.State {
				return true
			}
		}
		return false
	}
	return true
}

// limit trims records, ordered oldest first, to the most recent q.Limit.
func (q Query) limit(recs []Record) []Record {
	if q.Limit > 0 && len(recs) > q.Limit {
		return recs[len(recs)-q.Limit:]
	}
	return recs
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// ErrUnknownBackend is returned by Open for an unsupported backend.
var ErrUnknownBackend = errors.New("unknown run log backend")

// Config selects and configures the store backend.
type Config struct {
	// Backend is one of none, jsonl, rotating or sqlite.
	Backend    string `json:"backend"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" {
		switch c.Backend {
		case "sqlite":
			c.Path = "runs.db"
		default:
			c.Path = "runs.jsonl"
		}
	}
	if c.MaxSizeMB <= 0 {
		c.MaxSizeMB = 10
	}
	if c.MaxBackups <= 0 {
		c.MaxBackups = 3
	}
	if c.MaxAgeDays <= 0 {
		c.MaxAgeDays = 30
	}
}

// Validate checks the backend name.
func (c Config) Validate() error {
	switch c.Backend {
	case "none", "jsonl", "rotating", "sqlite":
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Backend)
}

// Open creates the store described by cfg.
func Open(cfg Config) (Store, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case "jsonl":
		return NewJSONLStore(cfg.Path)
	case "rotating":
		return NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	default:
		return NopStore{}, nil
	}
}

// NopStore discards records.
type NopStore struct{}

func (NopStore) Append(context.Context, Record) error           { return nil }
func (NopStore) Query(context.Context, Query) ([]Record, error) { return nil, nil }
func (NopStore) Close() error                                   { return nil }

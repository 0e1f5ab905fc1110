// Package generator builds synthetic problem instances.
package generator

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/slotanneal/core/model"
)

// ErrInvalidConfig is returned for unusable generator settings.
var ErrInvalidConfig = errors.New("invalid generator config")

// Config describes the shape of a synthetic instance.
type Config struct {
	Groups  int `json:"groups" yaml:"groups"`
	MinSize int `json:"min_size" yaml:"min_size"`
	MaxSize int `json:"max_size" yaml:"max_size"`
	// Skew raises the demand for early slots and every seventh slot. Zero
	// draws choices uniformly.
	Skew float64 `json:"skew" yaml:"skew"`
	Seed int64   `json:"seed" yaml:"seed"`
}

// SetDefaults applies fallback values for optional fields.
func (c *Config) SetDefaults() {
	if c.Groups <= 0 {
		c.Groups = 5000
	}
	if c.MinSize <= 0 {
		c.MinSize = 2
	}
	if c.MaxSize <= 0 {
		c.MaxSize = 8
	}
}

// Validate checks the configuration ranges. The expected headcount must be
// schedulable within the occupancy bounds of all slots.
func (c Config) Validate() error {
	if c.Groups <= 0 {
		return fmt.Errorf("%w: groups must be positive", ErrInvalidConfig)
	}
	if c.MinSize <= 0 || c.MinSize > c.MaxSize {
		return fmt.Errorf("%w: need 0 < min_size <= max_size", ErrInvalidConfig)
	}
	if c.Skew < 0 {
		return fmt.Errorf("%w: skew must not be negative", ErrInvalidConfig)
	}
	mean := float64(c.Groups) * float64(c.MinSize+c.MaxSize) / 2
	if mean < model.MinOccupancy*model.NumSlots || mean > model.MaxOccupancy*model.NumSlots {
		return fmt.Errorf("%w: expected headcount %.0f outside [%d,%d]", ErrInvalidConfig,
			mean, model.MinOccupancy*model.NumSlots, model.MaxOccupancy*model.NumSlots)
	}
	return nil
}

// Generator draws instances from a seeded stream.
type Generator struct {
	cfg  Config
	rand *rand.Rand
	cum  []float64
}

// New validates cfg and returns a Generator.
func New(cfg Config) (*Generator, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	weights := make([]float64, model.NumSlots)
	for i := range weights {
		weights[i] = slotWeight(i+1, cfg.Skew)
	}
	return &Generator{
		cfg:  cfg,
		rand: rand.New(rand.NewSource(cfg.Seed)),
		cum:  floats.CumSum(weights, weights),
	}, nil
}

// slotWeight is the relative popularity of slot d.
func slotWeight(d int, skew float64) float64 {
	w := 1.0
	if d%7 == 1 || d%7 == 2 {
		w += skew
	}
	return w + skew*float64(model.NumSlots-d)/model.NumSlots
}

// Generate returns a new validated instance with IDs 0..Groups-1.
func (g *Generator) Generate() (*model.Instance, error) {
	groups := make([]model.Group, g.cfg.Groups)
	for i := range groups {
		groups[i] = g.group(i)
	}
	return model.NewInstance(groups)
}

func (g *Generator) group(id int) model.Group {
	grp := model.Group{
		ID:   id,
		Size: g.cfg.MinSize + g.rand.Intn(g.cfg.MaxSize-g.cfg.MinSize+1),
	}
	var taken [model.NumSlots + 1]bool
	for r := 0; r < model.NumChoices; {
		d := g.drawSlot()
		if taken[d] {
			continue
		}
		taken[d] = true
		grp.Choices[r] = d
		r++
	}
	return grp
}

func (g *Generator) drawSlot() int {
	total := g.cum[len(g.cum)-1]
	i := sort.SearchFloat64s(g.cum, g.rand.Float64()*total)
	return min(i, len(g.cum)-1) + 1
}

// Generate is a shorthand for New followed by Generate.
func Generate(cfg Config) (*model.Instance, error) {
	g, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return g.Generate()
}

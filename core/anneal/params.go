package anneal

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Params controls one annealing run.
type Params struct {
	MaxIterations    int     `json:"max_iterations" yaml:"max_iterations"`
	ReportEvery      int     `json:"report_every" yaml:"report_every"`
	StartTemperature float64 `json:"start_temperature" yaml:"start_temperature"`
	EndTemperature   float64 `json:"end_temperature" yaml:"end_temperature"`
	Seed             int64   `json:"seed" yaml:"seed"`
	// RepairPasses bounds the number of relocations tried while lifting
	// under-filled slots of the greedy start.
	RepairPasses int `json:"repair_passes" yaml:"repair_passes"`
	// RepairSamples is the number of donor groups drawn per repair pass.
	RepairSamples int `json:"repair_samples" yaml:"repair_samples"`
}

// DefaultParams returns the parameters used when nothing is configured.
func DefaultParams() Params {
	return Params{
		MaxIterations:    200000,
		ReportEvery:      2000,
		StartTemperature: 10000,
		EndTemperature:   1,
		Seed:             42,
		RepairPasses:     20000,
		RepairSamples:    60,
	}
}

// Validate returns an error wrapping ErrInvalidParams for any field outside
// its valid range.
func (p Params) Validate() error {
	if p.MaxIterations <= 0 {
		return fmt.Errorf("%w: max_iterations must be positive", ErrInvalidParams)
	}
	if p.ReportEvery <= 0 {
		return fmt.Errorf("%w: report_every must be positive", ErrInvalidParams)
	}
	if !(p.StartTemperature > 0) || math.IsInf(p.StartTemperature, 0) {
		return fmt.Errorf("%w: start_temperature must be a positive number", ErrInvalidParams)
	}
	if !(p.EndTemperature > 0) || math.IsInf(p.EndTemperature, 0) {
		return fmt.Errorf("%w: end_temperature must be a positive number", ErrInvalidParams)
	}
	if p.RepairPasses <= 0 {
		return fmt.Errorf("%w: repair_passes must be positive", ErrInvalidParams)
	}
	if p.RepairSamples <= 0 {
		return fmt.Errorf("%w: repair_samples must be positive", ErrInvalidParams)
	}
	return nil
}

// Temperature returns the geometric schedule value at iter.
func (p Params) Temperature(iter int) float64 {
	a := float64(iter) / float64(max(1, p.MaxIterations))
	return p.StartTemperature * math.Pow(p.EndTemperature/p.StartTemperature, a)
}

// LoadParams reads Params from a JSON or YAML file. Missing fields keep
// their DefaultParams value.
func LoadParams(path string) (Params, error) {
	f, err := os.Open(path)
	if err != nil {
		return Params{}, err
	}
	defer func() { _ = f.Close() }()
	return DecodeParams(f, strings.TrimPrefix(filepath.Ext(path), "."))
}

// DecodeParams reads Params from r in the given format.
func DecodeParams(r io.Reader, format string) (Params, error) {
	p := DefaultParams()
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&p); err != nil {
			return p, err
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&p); err != nil {
			return p, err
		}
	default:
		return p, fmt.Errorf("unsupported format: %s", format)
	}
	return p, nil
}

// Package tune compares annealing parameter sets over several seeds.
package tune

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"text/tabwriter"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"

	"github.com/kilianp07/slotanneal/core/anneal"
	"github.com/kilianp07/slotanneal/core/cost"
	"github.com/kilianp07/slotanneal/core/model"
)

var (
	// ErrEmptyGrid is returned for grids without sets or seeds.
	ErrEmptyGrid = errors.New("tuning grid needs at least one set and one seed")
	// ErrDuplicateSeed is returned when a seed is listed twice.
	ErrDuplicateSeed = errors.New("duplicate seed in tuning grid")
)

// Set is a named parameter override.
type Set struct {
	Name   string
	Params anneal.Params
}

// Grid lists the parameter sets to compare and the seeds each one runs
// with. The seed of a set is replaced by every entry of Seeds.
type Grid struct {
	Seeds []int64
	Sets  []Set
}

type rawGrid struct {
	Seeds []int64 `yaml:"seeds"`
	Sets  []struct {
		Name   string    `yaml:"name"`
		Params yaml.Node `yaml:"params"`
	} `yaml:"sets"`
}

// DecodeGrid reads a YAML grid. Every set starts from base and overrides
// the fields it names.
func DecodeGrid(r io.Reader, base anneal.Params) (Grid, error) {
	var raw rawGrid
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		return Grid{}, fmt.Errorf("decode grid: %w", err)
	}
	g := Grid{Seeds: raw.Seeds}
	for i, rs := range raw.Sets {
		p := base
		if !rs.Params.IsZero() {
			if err := rs.Params.Decode(&p); err != nil {
				return Grid{}, fmt.Errorf("set %d: %w", i, err)
			}
		}
		name := rs.Name
		if name == "" {
			name = fmt.Sprintf("set-%d", i)
		}
		g.Sets = append(g.Sets, Set{Name: name, Params: p})
	}
	return g, g.Validate()
}

// LoadGrid reads the grid file at path.
func LoadGrid(path string, base anneal.Params) (Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return Grid{}, err
	}
	defer func() { _ = f.Close() }()
	return DecodeGrid(f, base)
}

// Validate checks every set.
func (g Grid) Validate() error {
	if len(g.Sets) == 0 || len(g.Seeds) == 0 {
		return ErrEmptyGrid
	}
	seen := make(map[int64]bool, len(g.Seeds))
	for _, s := range g.Seeds {
		if seen[s] {
			return fmt.Errorf("%w: %d", ErrDuplicateSeed, s)
		}
		seen[s] = true
	}
	for _, s := range g.Sets {
		if err := s.Params.Validate(); err != nil {
			return fmt.Errorf("set %s: %w", s.Name, err)
		}
	}
	return nil
}

// Summary aggregates the runs of one set.
type Summary struct {
	Name   string
	Params anneal.Params
	Runs   int
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
	// Distinct counts the different best assignments found.
	Distinct    int
	MeanElapsed time.Duration
	Cancelled   int
}

type job struct {
	set  int
	seed int64
}

type outcome struct {
	job
	res         anneal.Result
	fingerprint string
}

// Run executes every set with every seed on workers goroutines. Results do
// not depend on workers. A cancelled ctx stops pending runs and returns its
// error.
func Run(ctx context.Context, inst *model.Instance, g Grid, workers int) ([]Summary, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	cm := cost.New(inst)
	jobs := make(chan job)
	out := make(chan outcome)
	errc := make(chan error, 1)

	var wg sync.WaitGroup
	for w := 0; w < max(1, workers); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				p := g.Sets[j.set].Params
				p.Seed = j.seed
				e, err := anneal.New(inst, cm, p)
				if err != nil {
					select {
					case errc <- err:
					default:
					}
					continue
				}
				res, err := e.Run(ctx)
				if err != nil {
					select {
					case errc <- err:
					default:
					}
					continue
				}
				out <- outcome{job: j, res: res, fingerprint: anneal.Fingerprint(res.BestAssignment)}
			}
		}()
	}
	go func() {
		defer close(jobs)
		for i := range g.Sets {
			for _, seed := range g.Seeds {
				select {
				case jobs <- job{set: i, seed: seed}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	go func() {
		wg.Wait()
		close(out)
	}()

	costs := make([][]float64, len(g.Sets))
	elapsed := make([]time.Duration, len(g.Sets))
	prints := make([]map[string]struct{}, len(g.Sets))
	cancelled := make([]int, len(g.Sets))
	for i := range prints {
		costs[i] = make([]float64, len(g.Seeds))
		prints[i] = map[string]struct{}{}
	}
	seedPos := make(map[int64]int, len(g.Seeds))
	for i, s := range g.Seeds {
		seedPos[s] = i
	}
	for o := range out {
		costs[o.set][seedPos[o.seed]] = o.res.BestCost
		elapsed[o.set] += o.res.Elapsed
		prints[o.set][o.fingerprint] = struct{}{}
		if o.res.Cancelled {
			cancelled[o.set]++
		}
	}
	select {
	case err := <-errc:
		return nil, err
	default:
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	summaries := make([]Summary, len(g.Sets))
	for i, s := range g.Sets {
		c := costs[i]
		sum := Summary{
			Name:        s.Name,
			Params:      s.Params,
			Runs:        len(c),
			Min:         floats.Min(c),
			Max:         floats.Max(c),
			Distinct:    len(prints[i]),
			MeanElapsed: elapsed[i] / time.Duration(len(c)),
			Cancelled:   cancelled[i],
		}
		sum.Mean, sum.StdDev = stat.MeanStdDev(c, nil)
		summaries[i] = sum
	}
	return summaries, nil
}

// WriteTable prints one row per summary.
func WriteTable(w io.Writer, summaries []Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "set\truns\tmean\tstddev\tmin\tmax\tdistinct\ttime")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%d\t%s\n",
			s.Name, s.Runs, s.Mean, s.StdDev, s.Min, s.Max, s.Distinct, s.MeanElapsed.Round(time.Millisecond))
	}
	return tw.Flush()
}

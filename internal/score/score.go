// Package score evaluates a complete assignment from scratch.
package score

import (
	"fmt"
	"io"
	"text/tabwriter"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/slotanneal/core/cost"
	"github.com/kilianp07/slotanneal/core/model"
)

// Summary is the full evaluation of an assignment.
type Summary struct {
	cost.Breakdown
	Feasible bool
	// Violations lists the slots outside the occupancy bounds.
	Violations []int
	// RankCounts[r] is the number of groups placed on their choice r;
	// the last entry counts unlisted slots.
	RankCounts [model.NumChoices + 1]int
	Mean       float64
	StdDev     float64
	Min        float64
	Max        float64
}

// Evaluate scores assignment against inst. The assignment must pass
// inst.CheckAssignment.
func Evaluate(inst *model.Instance, assignment []int) (Summary, error) {
	if err := inst.CheckAssignment(assignment); err != nil {
		return Summary{}, err
	}
	b := cost.New(inst).TotalCost(assignment)
	s := Summary{
		Breakdown:  b,
		Feasible:   b.Occupancy.Feasible(),
		Violations: b.Occupancy.Violations(),
	}
	for i, slot := range assignment {
		s.RankCounts[inst.Groups[i].Rank(slot)]++
	}
	occ := b.Occupancy.Floats()
	s.Mean, s.StdDev = stat.MeanStdDev(occ, nil)
	s.Min, s.Max = floats.Min(occ), floats.Max(occ)
	return s, nil
}

// Write prints a human readable report of s.
func (s Summary) Write(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "total cost\t%.2f\n", s.Total)
	fmt.Fprintf(tw, "preference\t%.0f\n", s.Preference)
	fmt.Fprintf(tw, "accounting\t%.2f\n", s.Accounting)
	fmt.Fprintf(tw, "feasible\t%t\n", s.Feasible)
	if len(s.Violations) > 0 {
		fmt.Fprintf(tw, "violations\t%v\n", s.Violations)
	}
	fmt.Fprintf(tw, "occupancy\tmean %.1f  stddev %.1f  min %.0f  max %.0f\n", s.Mean, s.StdDev, s.Min, s.Max)
	for r, n := range s.RankCounts {
		if n == 0 {
			continue
		}
		label := fmt.Sprintf("choice %d", r)
		if r == model.NumChoices {
			label = "unlisted"
		}
		fmt.Fprintf(tw, "%s\t%d\n", label, n)
	}
	return tw.Flush()
}

// Package cost implements the objective of the slot assignment problem: a
// per-group preference penalty and a global accounting penalty that rewards
// smooth slot-to-slot occupancy.
package cost

import (
	"math"

	"github.com/kilianp07/slotanneal/core/model"
)

// PreferencePenalty returns the penalty for assigning a group of the given
// size to the slot at position rank of its preference list. Ranks of
// model.NumChoices and above denote an unlisted slot.
func PreferencePenalty(size, rank int) uint32 {
	n := uint32(size)
	switch rank {
	case 0:
		return 0
	case 1:
		return 50
	case 2:
		return 50 + 9*n
	case 3:
		return 100 + 9*n
	case 4:
		return 200 + 9*n
	case 5:
		return 200 + 18*n
	case 6:
		return 300 + 18*n
	case 7:
		return 300 + 36*n
	case 8:
		return 400 + 36*n
	case 9:
		return 500 + 36*n + 199*n
	default:
		return 500 + 36*n + 398*n
	}
}

// Model holds the precomputed preference table of an instance. It is
// read-only after New and safe to share between goroutines.
type Model struct {
	inst *model.Instance
	pref []uint32
}

// New builds the preference table for inst.
func New(inst *model.Instance) *Model {
	m := &Model{inst: inst}
	m.build()
	return m
}

func (m *Model) build() {
	m.pref = make([]uint32, len(m.inst.Groups)*model.NumSlots)
	for i, g := range m.inst.Groups {
		row := m.pref[i*model.NumSlots : (i+1)*model.NumSlots]
		for slot := 1; slot <= model.NumSlots; slot++ {
			row[slot-1] = PreferencePenalty(g.Size, g.Rank(slot))
		}
	}
}

// Instance returns the instance the model was built for.
func (m *Model) Instance() *model.Instance { return m.inst }

// PreferenceCost returns the penalty of placing group i on slot.
func (m *Model) PreferenceCost(i, slot int) uint32 {
	return m.pref[i*model.NumSlots+slot-1]
}

// AccountingDayCost is the accounting term of a slot with headcount n whose
// successor has headcount next.
func AccountingDayCost(n, next int) float64 {
	diff := math.Abs(float64(n - next))
	raw := (float64(n) - model.MinOccupancy) / 400.0 * math.Pow(float64(n), 0.5+diff/50.0)
	return math.Max(0, raw)
}

// AccountingCost sums the accounting term over all slots.
func AccountingCost(occ *model.Occupancy) float64 {
	sum := 0.0
	for d := 1; d <= model.NumSlots; d++ {
		sum += AccountingDayCost(occ[d], occ[model.Next(d)])
	}
	return sum
}

// Breakdown is a cost evaluated from scratch.
type Breakdown struct {
	Total      float64
	Preference float64
	Accounting float64
	Occupancy  model.Occupancy
}

// TotalCost evaluates assignment from scratch. The assignment must hold one
// slot in [1, model.NumSlots] per group.
func (m *Model) TotalCost(assignment []int) Breakdown {
	var b Breakdown
	for i, slot := range assignment {
		b.Occupancy[slot] += m.inst.Groups[i].Size
		b.Preference += float64(m.PreferenceCost(i, slot))
	}
	b.Accounting = AccountingCost(&b.Occupancy)
	b.Total = b.Preference + b.Accounting
	return b
}

// DeltaAccounting2 returns the exact change of AccountingCost(occ) after
// adding deltaA to slot a and deltaB to slot b. The slots may coincide.
// Only the terms of a-1, a, b-1 and b can change, so at most four slots are
// re-evaluated.
func DeltaAccounting2(occ *model.Occupancy, a, deltaA, b, deltaB int) float64 {
	after := func(d int) int {
		v := occ[d]
		if d == a {
			v += deltaA
		}
		if d == b {
			v += deltaB
		}
		return v
	}

	var affected [4]int
	k := 0
	for _, d := range [4]int{a - 1, a, b - 1, b} {
		if d < 1 || d > model.NumSlots {
			continue
		}
		seen := false
		for _, x := range affected[:k] {
			if x == d {
				seen = true
				break
			}
		}
		if !seen {
			affected[k] = d
			k++
		}
	}

	var before, next float64
	for _, d := range affected[:k] {
		nx := model.Next(d)
		before += AccountingDayCost(occ[d], occ[nx])
		next += AccountingDayCost(after(d), after(nx))
	}
	return next - before
}

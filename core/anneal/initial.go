package anneal

import (
	"cmp"
	"math"
	"slices"

	"github.com/kilianp07/slotanneal/core/cost"
	"github.com/kilianp07/slotanneal/core/model"
)

// seedGreedy places groups largest first, each on its best ranked slot that
// still has room. Groups that fit none of their choices go to the emptiest
// slot with room, or the emptiest slot overall when no slot has room.
func (e *Engine) seedGreedy() {
	groups := e.inst.Groups
	order := make([]int, len(groups))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(groups[b].Size, groups[a].Size)
	})

	for _, g := range order {
		n := groups[g].Size
		slot := 0
		for _, d := range groups[g].Choices {
			if e.occ[d]+n <= model.MaxOccupancy {
				slot = d
				break
			}
		}
		if slot == 0 {
			slot = e.emptiestSlot(n)
		}
		e.assign[g] = slot
		e.occ[slot] += n
	}
}

func (e *Engine) emptiestSlot(n int) int {
	best, fallback := 0, 1
	for d := 1; d <= model.NumSlots; d++ {
		if e.occ[d] < e.occ[fallback] {
			fallback = d
		}
		if e.occ[d]+n <= model.MaxOccupancy && (best == 0 || e.occ[d] < e.occ[best]) {
			best = d
		}
	}
	if best == 0 {
		return fallback
	}
	return best
}

// repair lifts under-filled slots by relocating groups from the fullest
// slot. Each pass samples donor candidates and commits the feasible one with
// the smallest cost delta. It reports the number of relocations made.
func (e *Engine) repair() int {
	moved := 0
	for pass := 0; pass < e.params.RepairPasses; pass++ {
		needy, donor := e.repairPair()
		if needy == 0 || donor == 0 {
			break
		}
		g := e.bestDonorGroup(needy, donor)
		if g < 0 {
			break
		}
		n := e.inst.Groups[g].Size
		e.index.Move(g, donor, needy)
		e.occ[donor] -= n
		e.occ[needy] += n
		e.assign[g] = needy
		moved++
	}
	return moved
}

// repairPair returns the emptiest slot below the floor and the fullest slot
// above it. Zero means no such slot.
func (e *Engine) repairPair() (needy, donor int) {
	for d := 1; d <= model.NumSlots; d++ {
		if e.occ[d] < model.MinOccupancy && (needy == 0 || e.occ[d] < e.occ[needy]) {
			needy = d
		}
		if e.occ[d] > model.MinOccupancy && (donor == 0 || e.occ[d] > e.occ[donor]) {
			donor = d
		}
	}
	return needy, donor
}

func (e *Engine) bestDonorGroup(needy, donor int) int {
	if e.index.Len(donor) == 0 {
		return -1
	}
	best, bestDelta := -1, math.Inf(1)
	for t := 0; t < e.params.RepairSamples; t++ {
		g := e.index.Pick(donor, e.rng)
		n := e.inst.Groups[g].Size
		if e.occ[donor]-n < model.MinOccupancy || e.occ[needy]+n > model.MaxOccupancy {
			continue
		}
		delta := float64(e.cm.PreferenceCost(g, needy)) - float64(e.cm.PreferenceCost(g, donor)) +
			cost.DeltaAccounting2(&e.occ, donor, -n, needy, n)
		if delta < bestDelta {
			best, bestDelta = g, delta
		}
	}
	return best
}

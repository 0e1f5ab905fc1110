package anneal

import (
	"math/rand"

	"github.com/kilianp07/slotanneal/core/model"
)

// SlotIndex lists the groups assigned to every slot. Removal swaps the last
// member into the freed position, so every operation is O(1).
type SlotIndex struct {
	members [model.NumSlots + 1][]int
	pos     []int
}

// NewSlotIndex indexes assignment. Slot lists are preallocated so that a
// run does not grow them in the common case.
func NewSlotIndex(assignment []int) *SlotIndex {
	x := &SlotIndex{pos: make([]int, len(assignment))}
	capacity := min(len(assignment), model.MaxOccupancy)
	for d := 1; d <= model.NumSlots; d++ {
		x.members[d] = make([]int, 0, capacity)
	}
	for g, slot := range assignment {
		x.Add(g, slot)
	}
	return x
}

// Len returns the number of groups on slot.
func (x *SlotIndex) Len(slot int) int { return len(x.members[slot]) }

// Members returns the groups on slot. The slice is owned by the index and
// must not be modified.
func (x *SlotIndex) Members(slot int) []int { return x.members[slot] }

// Pick returns a uniformly drawn group on slot. The slot must not be empty.
func (x *SlotIndex) Pick(slot int, rng *rand.Rand) int {
	m := x.members[slot]
	return m[rng.Intn(len(m))]
}

// Add appends group g to slot.
func (x *SlotIndex) Add(g, slot int) {
	x.pos[g] = len(x.members[slot])
	x.members[slot] = append(x.members[slot], g)
}

// Remove deletes group g from slot.
func (x *SlotIndex) Remove(g, slot int) {
	m := x.members[slot]
	p := x.pos[g]
	last := m[len(m)-1]
	m[p] = last
	x.pos[last] = p
	x.members[slot] = m[:len(m)-1]
}

// Move relocates group g from one slot to another.
func (x *SlotIndex) Move(g, from, to int) {
	x.Remove(g, from)
	x.Add(g, to)
}

package model

// Occupancy holds the headcount of every slot. Index 0 is unused so that
// slots can be addressed directly.
type Occupancy [NumSlots + 1]int

// OccupancyOf builds the occupancy vector of an assignment.
func OccupancyOf(in *Instance, a []int) Occupancy {
	var occ Occupancy
	for i, slot := range a {
		occ[slot] += in.Groups[i].Size
	}
	return occ
}

// Next returns the accounting successor of slot. The last slot is its own
// successor.
func Next(slot int) int {
	if slot >= NumSlots {
		return NumSlots
	}
	return slot + 1
}

// InBounds reports whether n is an admissible slot headcount.
func InBounds(n int) bool {
	return n >= MinOccupancy && n <= MaxOccupancy
}

// Feasible reports whether every slot lies within [MinOccupancy, MaxOccupancy].
func (o *Occupancy) Feasible() bool {
	for d := 1; d <= NumSlots; d++ {
		if !InBounds(o[d]) {
			return false
		}
	}
	return true
}

// Violations lists the slots outside the bounds.
func (o *Occupancy) Violations() []int {
	var out []int
	for d := 1; d <= NumSlots; d++ {
		if !InBounds(o[d]) {
			out = append(out, d)
		}
	}
	return out
}

// Sum returns the total headcount.
func (o *Occupancy) Sum() int {
	s := 0
	for d := 1; d <= NumSlots; d++ {
		s += o[d]
	}
	return s
}

// Slots returns a copy of slots 1..NumSlots.
func (o *Occupancy) Slots() []int {
	out := make([]int, NumSlots)
	copy(out, o[1:])
	return out
}

// Floats returns slots 1..NumSlots as float64, for statistics.
func (o *Occupancy) Floats() []float64 {
	out := make([]float64, NumSlots)
	for d := 1; d <= NumSlots; d++ {
		out[d-1] = float64(o[d])
	}
	return out
}

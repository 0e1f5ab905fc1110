package model

import (
	"errors"
	"fmt"
)

const (
	// NumSlots is the number of assignable slots, numbered 1..NumSlots.
	NumSlots = 100
	// NumChoices is the length of every group's preference list.
	NumChoices = 10
	// MinOccupancy and MaxOccupancy bound the headcount of every slot.
	MinOccupancy = 125
	MaxOccupancy = 300
)

// ErrInvalidInstance is returned when a problem instance fails validation.
var ErrInvalidInstance = errors.New("invalid instance")

// Group is a family that must be assigned to exactly one slot.
type Group struct {
	ID      int             `json:"family_id"`
	Size    int             `json:"n_people"`
	Choices [NumChoices]int `json:"choices"`
}

// Rank returns the position of slot in the preference list, or NumChoices
// when the slot is not listed.
func (g Group) Rank(slot int) int {
	for r, c := range g.Choices {
		if c == slot {
			return r
		}
	}
	return NumChoices
}

// Validate checks size and choice bounds.
func (g Group) Validate() error {
	if g.Size <= 0 {
		return fmt.Errorf("%w: group %d has size %d", ErrInvalidInstance, g.ID, g.Size)
	}
	var seen [NumSlots + 1]bool
	for r, c := range g.Choices {
		if c < 1 || c > NumSlots {
			return fmt.Errorf("%w: group %d choice %d out of range: %d", ErrInvalidInstance, g.ID, r, c)
		}
		if seen[c] {
			return fmt.Errorf("%w: group %d lists slot %d twice", ErrInvalidInstance, g.ID, c)
		}
		seen[c] = true
	}
	return nil
}

// Instance is the immutable set of groups to schedule. Groups are addressed
// by their index in Groups everywhere inside the solver.
type Instance struct {
	Groups []Group
}

// NewInstance validates groups and wraps them in an Instance.
func NewInstance(groups []Group) (*Instance, error) {
	inst := &Instance{Groups: groups}
	if err := inst.Validate(); err != nil {
		return nil, err
	}
	return inst, nil
}

// Len returns the number of groups.
func (in *Instance) Len() int { return len(in.Groups) }

// TotalSize returns the headcount over all groups.
func (in *Instance) TotalSize() int {
	total := 0
	for _, g := range in.Groups {
		total += g.Size
	}
	return total
}

// Validate rejects empty instances, duplicate IDs and malformed groups.
func (in *Instance) Validate() error {
	if in == nil || len(in.Groups) == 0 {
		return fmt.Errorf("%w: no groups", ErrInvalidInstance)
	}
	ids := make(map[int]struct{}, len(in.Groups))
	for _, g := range in.Groups {
		if _, dup := ids[g.ID]; dup {
			return fmt.Errorf("%w: duplicate group id %d", ErrInvalidInstance, g.ID)
		}
		ids[g.ID] = struct{}{}
		if err := g.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// IndexByID maps group IDs to their index.
func (in *Instance) IndexByID() map[int]int {
	m := make(map[int]int, len(in.Groups))
	for i, g := range in.Groups {
		m[g.ID] = i
	}
	return m
}

// CheckAssignment verifies that a holds one in-range slot per group.
func (in *Instance) CheckAssignment(a []int) error {
	if len(a) != len(in.Groups) {
		return fmt.Errorf("assignment has %d entries, want %d", len(a), len(in.Groups))
	}
	for i, slot := range a {
		if slot < 1 || slot > NumSlots {
			return fmt.Errorf("group %d assigned to slot %d", in.Groups[i].ID, slot)
		}
	}
	return nil
}

// Placement pairs a group ID with its slot.
type Placement struct {
	GroupID int `json:"family_id"`
	Slot    int `json:"assigned_day"`
}

// Placements converts an index-based assignment to ID/slot pairs in group order.
func (in *Instance) Placements(a []int) []Placement {
	out := make([]Placement, len(a))
	for i, slot := range a {
		out[i] = Placement{GroupID: in.Groups[i].ID, Slot: slot}
	}
	return out
}

package anneal

import (
	"encoding/json"
	"fmt"
)

// State is the lifecycle position of an Engine.
type State int32

const (
	StateIdle State = iota
	StateBuildingInitial
	StateAnnealing
	StateDone
	StateCancelled
)

var stateNames = map[State]string{
	StateIdle:            "idle",
	StateBuildingInitial: "building_initial",
	StateAnnealing:       "annealing",
	StateDone:            "done",
	StateCancelled:       "cancelled",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Terminal reports whether s is Done or Cancelled.
func (s State) Terminal() bool { return s == StateDone || s == StateCancelled }

// MarshalJSON encodes the state by name.
func (s State) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

// UnmarshalJSON decodes a state name.
func (s *State) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	for st, n := range stateNames {
		if n == name {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", name)
}

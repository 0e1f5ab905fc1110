package anneal

import (
	"time"

	"github.com/kilianp07/slotanneal/core/model"
)

// Level qualifies engine log messages.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
)

func (l Level) String() string {
	if l == LevelWarn {
		return "warn"
	}
	return "info"
}

// Progress is a periodic snapshot of a running search.
type Progress struct {
	Iteration   int     `json:"iteration"`
	Temperature float64 `json:"temperature"`
	CurrentCost float64 `json:"current_cost"`
	BestCost    float64 `json:"best_cost"`
	// Occupancy holds slots 1..100 in order.
	Occupancy []int `json:"occupancy"`
	Accepted  int   `json:"accepted"`
	Rejected  int   `json:"rejected"`
	Stats     Stats `json:"stats"`
}

// Stats counts proposals by neighborhood and outcome.
type Stats struct {
	Moves             int     `json:"moves"`
	Swaps             int     `json:"swaps"`
	Infeasible        int     `json:"infeasible"`
	AcceptedMoves     int     `json:"accepted_moves"`
	AcceptedSwaps     int     `json:"accepted_swaps"`
	Improvements      int     `json:"improvements"`
	RepairRelocations int     `json:"repair_relocations"`
	InitialFeasible   bool    `json:"initial_feasible"`
	InitialCost       float64 `json:"initial_cost"`
}

// Accepted returns the number of committed proposals.
func (s Stats) Accepted() int { return s.AcceptedMoves + s.AcceptedSwaps }

// Result is the terminal outcome of a run.
type Result struct {
	BestAssignment []int         `json:"best_assignment"`
	BestCost       float64       `json:"best_cost"`
	Iterations     int           `json:"iterations"`
	Cancelled      bool          `json:"cancelled"`
	State          State         `json:"state"`
	Stats          Stats         `json:"stats"`
	Elapsed        time.Duration `json:"elapsed"`
}

// Placements maps the best assignment to group IDs.
func (r Result) Placements(inst *model.Instance) []model.Placement {
	return inst.Placements(r.BestAssignment)
}

// Observer receives engine notifications. Calls happen on the engine
// goroutine, in iteration order, and Finished is called exactly once after
// the last Progress. Implementations must not block for long.
type Observer interface {
	Progress(Progress)
	Log(Level, string)
	Finished(Result)
}

// ObserverFuncs adapts optional callbacks to Observer.
type ObserverFuncs struct {
	OnProgress func(Progress)
	OnLog      func(Level, string)
	OnFinished func(Result)
}

func (o ObserverFuncs) Progress(p Progress) {
	if o.OnProgress != nil {
		o.OnProgress(p)
	}
}

func (o ObserverFuncs) Log(l Level, msg string) {
	if o.OnLog != nil {
		o.OnLog(l, msg)
	}
}

func (o ObserverFuncs) Finished(r Result) {
	if o.OnFinished != nil {
		o.OnFinished(r)
	}
}

// NopObserver discards every notification.
type NopObserver struct{}

func (NopObserver) Progress(Progress) {}
func (NopObserver) Log(Level, string) {}
func (NopObserver) Finished(Result)   {}

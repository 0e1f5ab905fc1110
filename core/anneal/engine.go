package anneal

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/kilianp07/slotanneal/core/cost"
	"github.com/kilianp07/slotanneal/core/logger"
	"github.com/kilianp07/slotanneal/core/model"
)

const (
	swapProbability   = 0.30
	choiceProbability = 0.85
	minTemperature    = 1e-9
)

type outcome int

const (
	outcomeInfeasible outcome = iota
	outcomeRejected
	outcomeAccepted
)

// Engine runs one simulated annealing search over an instance. The engine
// owns all mutable search state; the instance and cost model are shared and
// never modified. An Engine runs at most once.
type Engine struct {
	inst   *model.Instance
	cm     *cost.Model
	params Params
	obs    Observer
	log    logger.Logger

	rng     *rand.Rand
	stop    atomic.Bool
	started atomic.Bool
	state   atomic.Int32

	assign   []int
	occ      model.Occupancy
	index    *SlotIndex
	current  float64
	best     []int
	bestCost float64
	stats    Stats

	accepted int
	rejected int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger mirrors engine messages to l.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithObserver sets the receiver of progress, log and result notifications.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.obs = o
		}
	}
}

// New validates the instance and parameters and returns an idle engine.
func New(inst *model.Instance, cm *cost.Model, params Params, opts ...Option) (*Engine, error) {
	if inst == nil || cm == nil {
		return nil, fmt.Errorf("%w: nil instance or cost model", model.ErrInvalidInstance)
	}
	if err := inst.Validate(); err != nil {
		return nil, err
	}
	if cm.Instance() != inst {
		return nil, fmt.Errorf("%w: cost model built for another instance", model.ErrInvalidInstance)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		inst:   inst,
		cm:     cm,
		params: params,
		obs:    NopObserver{},
		log:    logger.NopLogger{},
		rng:    rand.New(rand.NewSource(params.Seed)),
		assign: make([]int, inst.Len()),
		best:   make([]int, inst.Len()),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// State returns the current lifecycle state. It is safe for concurrent use.
func (e *Engine) State() State { return State(e.state.Load()) }

// Params returns the parameters of the run.
func (e *Engine) Params() Params { return e.params }

// Stop requests cancellation. It may be called any number of times from any
// goroutine and takes effect at the start of the next iteration.
func (e *Engine) Stop() { e.stop.Store(true) }

// Run builds the initial assignment and anneals until the iteration budget is
// spent, Stop is called or ctx is done. Cancellation is not an error: the
// best assignment found so far is returned with Cancelled set.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	if !e.started.CompareAndSwap(false, true) {
		return Result{}, ErrAlreadyRunning
	}
	begin := time.Now()

	e.setState(StateBuildingInitial)
	e.emit(LevelInfo, "building initial feasible schedule")
	initial := e.buildInitial()
	if !e.stats.InitialFeasible {
		e.emit(LevelWarn, fmt.Sprintf("initial schedule infeasible after repair: %d slots outside [%d,%d]",
			len(e.occ.Violations()), model.MinOccupancy, model.MaxOccupancy))
	}
	e.log.Debugw("initial schedule", map[string]any{
		"cost":        initial.Total,
		"preference":  initial.Preference,
		"accounting":  initial.Accounting,
		"relocations": e.stats.RepairRelocations,
	})

	e.setState(StateAnnealing)
	e.emit(LevelInfo, fmt.Sprintf("annealing started: cost %.2f", e.current))

	done := 0
	cancelled := false
	for iter := 1; iter <= e.params.MaxIterations; iter++ {
		if e.cancelled(ctx) {
			cancelled = true
			break
		}
		e.step(e.params.Temperature(iter))
		done = iter
		if iter%e.params.ReportEvery == 0 {
			e.obs.Progress(e.snapshot(iter))
		}
	}

	res := Result{
		BestAssignment: append([]int(nil), e.best...),
		BestCost:       e.bestCost,
		Iterations:     done,
		Cancelled:      cancelled,
		Stats:          e.stats,
		Elapsed:        time.Since(begin),
	}
	if cancelled {
		res.State = StateCancelled
		e.emit(LevelInfo, fmt.Sprintf("annealing cancelled after %d iterations: best %.2f", done, e.bestCost))
	} else {
		res.State = StateDone
		e.emit(LevelInfo, fmt.Sprintf("annealing finished: best %.2f", e.bestCost))
	}
	e.setState(res.State)
	e.obs.Finished(res)
	return res, nil
}

// buildInitial seeds and repairs the starting schedule and derives the
// tracked costs from a full evaluation.
func (e *Engine) buildInitial() cost.Breakdown {
	e.seedGreedy()
	e.index = NewSlotIndex(e.assign)
	e.stats.RepairRelocations = e.repair()

	initial := e.cm.TotalCost(e.assign)
	e.occ = initial.Occupancy
	e.current = initial.Total
	e.bestCost = initial.Total
	copy(e.best, e.assign)
	e.stats.InitialCost = initial.Total
	e.stats.InitialFeasible = e.occ.Feasible()
	return initial
}

func (e *Engine) setState(s State) { e.state.Store(int32(s)) }

func (e *Engine) emit(l Level, msg string) {
	if l == LevelWarn {
		e.log.Warnf("%s", msg)
	} else {
		e.log.Infof("%s", msg)
	}
	e.obs.Log(l, msg)
}

func (e *Engine) cancelled(ctx context.Context) bool {
	if e.stop.Load() {
		return true
	}
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func (e *Engine) snapshot(iter int) Progress {
	return Progress{
		Iteration:   iter,
		Temperature: e.params.Temperature(iter),
		CurrentCost: e.current,
		BestCost:    e.bestCost,
		Occupancy:   e.occ.Slots(),
		Accepted:    e.accepted,
		Rejected:    e.rejected,
		Stats:       e.stats,
	}
}

// step performs one proposal. Random draws happen in a fixed order so that a
// seed reproduces the whole run.
func (e *Engine) step(temp float64) {
	var res outcome
	if e.rng.Float64() < swapProbability {
		e.stats.Swaps++
		f1 := e.rng.Intn(len(e.assign))
		f2 := e.rng.Intn(len(e.assign))
		res = e.trySwap(f1, f2, temp)
		if res == outcomeAccepted {
			e.stats.AcceptedSwaps++
		}
	} else {
		e.stats.Moves++
		f := e.rng.Intn(len(e.assign))
		var to int
		if e.rng.Float64() < choiceProbability {
			r := min(max(int(e.rng.Float64()*model.NumChoices), 0), model.NumChoices-1)
			to = e.inst.Groups[f].Choices[r]
		} else {
			to = 1 + e.rng.Intn(model.NumSlots)
		}
		res = e.tryRelocate(f, to, temp)
		if res == outcomeAccepted {
			e.stats.AcceptedMoves++
		}
	}

	switch res {
	case outcomeAccepted:
		e.accepted++
		if e.current < e.bestCost {
			e.bestCost = e.current
			copy(e.best, e.assign)
			e.stats.Improvements++
		}
	case outcomeInfeasible:
		e.stats.Infeasible++
		e.rejected++
	default:
		e.rejected++
	}
}

func (e *Engine) tryRelocate(f, to int, temp float64) outcome {
	from := e.assign[f]
	n := e.inst.Groups[f].Size
	if to == from || e.occ[from]-n < model.MinOccupancy || e.occ[to]+n > model.MaxOccupancy {
		return outcomeInfeasible
	}
	delta := float64(e.cm.PreferenceCost(f, to)) - float64(e.cm.PreferenceCost(f, from)) +
		cost.DeltaAccounting2(&e.occ, from, -n, to, n)
	if !e.metropolis(delta, temp) {
		return outcomeRejected
	}
	e.index.Move(f, from, to)
	e.occ[from] -= n
	e.occ[to] += n
	e.assign[f] = to
	e.current += delta
	return outcomeAccepted
}

func (e *Engine) trySwap(f1, f2 int, temp float64) outcome {
	if f1 == f2 {
		return outcomeInfeasible
	}
	d1, d2 := e.assign[f1], e.assign[f2]
	if d1 == d2 {
		return outcomeInfeasible
	}
	n1, n2 := e.inst.Groups[f1].Size, e.inst.Groups[f2].Size
	if !model.InBounds(e.occ[d1]-n1+n2) || !model.InBounds(e.occ[d2]-n2+n1) {
		return outcomeInfeasible
	}
	delta := float64(e.cm.PreferenceCost(f1, d2)) - float64(e.cm.PreferenceCost(f1, d1)) +
		float64(e.cm.PreferenceCost(f2, d1)) - float64(e.cm.PreferenceCost(f2, d2)) +
		cost.DeltaAccounting2(&e.occ, d1, n2-n1, d2, n1-n2)
	if !e.metropolis(delta, temp) {
		return outcomeRejected
	}
	e.index.Move(f1, d1, d2)
	e.index.Move(f2, d2, d1)
	e.occ[d1] += n2 - n1
	e.occ[d2] += n1 - n2
	e.assign[f1], e.assign[f2] = d2, d1
	e.current += delta
	return outcomeAccepted
}

// metropolis draws from the stream only for non-improving proposals.
func (e *Engine) metropolis(delta, temp float64) bool {
	if delta < 0 {
		return true
	}
	return e.rng.Float64() < math.Exp(-delta/math.Max(minTemperature, temp))
}

package anneal

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/slotanneal/core/cost"
	"github.com/kilianp07/slotanneal/core/model"
)

// testInstance draws n groups of 3 to 7 people with ten distinct random
// choices each.
func testInstance(t *testing.T, n int, seed int64) *model.Instance {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	groups := make([]model.Group, n)
	for i := range groups {
		perm := rng.Perm(model.NumSlots)
		g := model.Group{ID: i, Size: 3 + rng.Intn(5)}
		for r := range g.Choices {
			g.Choices[r] = perm[r] + 1
		}
		groups[i] = g
	}
	inst, err := model.NewInstance(groups)
	require.NoError(t, err)
	return inst
}

func testParams() Params {
	p := DefaultParams()
	p.MaxIterations = 20000
	p.ReportEvery = 1000
	p.Seed = 7
	return p
}

func newEngine(t *testing.T, inst *model.Instance, p Params, opts ...Option) *Engine {
	t.Helper()
	e, err := New(inst, cost.New(inst), p, opts...)
	require.NoError(t, err)
	return e
}

func TestNewRejectsBadInput(t *testing.T) {
	inst := testInstance(t, 10, 1)
	cm := cost.New(inst)

	p := DefaultParams()
	p.ReportEvery = 0
	_, err := New(inst, cm, p)
	assert.True(t, errors.Is(err, ErrInvalidParams))

	p = DefaultParams()
	p.EndTemperature = math.NaN()
	_, err = New(inst, cm, p)
	assert.True(t, errors.Is(err, ErrInvalidParams))

	_, err = New(&model.Instance{}, cm, DefaultParams())
	assert.True(t, errors.Is(err, model.ErrInvalidInstance))

	other := testInstance(t, 10, 2)
	_, err = New(other, cm, DefaultParams())
	assert.True(t, errors.Is(err, model.ErrInvalidInstance))
}

func TestRunKeepsInvariantsAtEverySnapshot(t *testing.T) {
	inst := testInstance(t, 4000, 11)
	total := inst.TotalSize()

	var e *Engine
	var progress []Progress
	finished := 0
	obs := ObserverFuncs{
		OnProgress: func(p Progress) {
			require.Zero(t, finished, "progress after finished")
			progress = append(progress, p)

			occ := model.OccupancyOf(inst, e.assign)
			require.True(t, occ.Feasible(), "violations %v", occ.Violations())
			require.Equal(t, total, occ.Sum())
			require.Equal(t, occ.Slots(), p.Occupancy)

			full := e.cm.TotalCost(e.assign).Total
			require.InDelta(t, full, p.CurrentCost, 1e-6*math.Max(1, math.Abs(full)))
			require.LessOrEqual(t, p.BestCost, p.CurrentCost)
			checkIndex(t, e.index, e.assign)
		},
		OnFinished: func(Result) { finished++ },
	}
	e = newEngine(t, inst, testParams(), WithObserver(obs))

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, finished)
	require.True(t, res.Stats.InitialFeasible)

	require.Len(t, progress, 20)
	for i, p := range progress {
		require.Equal(t, (i+1)*1000, p.Iteration)
	}

	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, StateDone, e.State())
	assert.False(t, res.Cancelled)
	assert.Equal(t, 20000, res.Iterations)
	assert.Equal(t, 20000, res.Stats.Moves+res.Stats.Swaps)
	assert.LessOrEqual(t, res.BestCost, res.Stats.InitialCost)

	require.NoError(t, inst.CheckAssignment(res.BestAssignment))
	occ := model.OccupancyOf(inst, res.BestAssignment)
	assert.True(t, occ.Feasible())
	best := e.cm.TotalCost(res.BestAssignment).Total
	assert.InDelta(t, best, res.BestCost, 1e-6*math.Max(1, math.Abs(best)))
}

func TestRunIsDeterministic(t *testing.T) {
	inst := testInstance(t, 3000, 5)
	p := testParams()
	p.StartTemperature = 500

	a, err := newEngine(t, inst, p).Run(context.Background())
	require.NoError(t, err)
	b, err := newEngine(t, inst, p).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, a.BestCost, b.BestCost)
	assert.Equal(t, a.BestAssignment, b.BestAssignment)
	assert.Equal(t, a.Stats, b.Stats)
	assert.Equal(t, Fingerprint(a.BestAssignment), Fingerprint(b.BestAssignment))
}

func TestStopAfterTenIterations(t *testing.T) {
	inst := testInstance(t, 4000, 3)
	p := DefaultParams()
	p.MaxIterations = 100000
	p.ReportEvery = 10

	var e *Engine
	var got []Result
	reports := 0
	e = newEngine(t, inst, p, WithObserver(ObserverFuncs{
		OnProgress: func(pr Progress) {
			reports++
			if pr.Iteration == 10 {
				e.Stop()
				e.Stop()
			}
		},
		OnFinished: func(r Result) { got = append(got, r) },
	}))

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, res.BestCost, got[0].BestCost)
	assert.Equal(t, 1, reports)
	assert.True(t, res.Cancelled)
	assert.Equal(t, StateCancelled, res.State)
	assert.Equal(t, 10, res.Iterations)
	assert.Less(t, res.Iterations, p.MaxIterations)

	require.NoError(t, inst.CheckAssignment(res.BestAssignment))
	occ := model.OccupancyOf(inst, res.BestAssignment)
	assert.True(t, occ.Feasible())
}

func TestRunHonoursCancelledContext(t *testing.T) {
	inst := testInstance(t, 4000, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := newEngine(t, inst, testParams())
	res, err := e.Run(ctx)
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
	assert.Zero(t, res.Iterations)
	assert.Equal(t, res.Stats.InitialCost, res.BestCost)
}

func TestRunTwice(t *testing.T) {
	inst := testInstance(t, 50, 1)
	p := testParams()
	p.MaxIterations = 10
	e := newEngine(t, inst, p)
	_, err := e.Run(context.Background())
	require.NoError(t, err)
	_, err = e.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestTwoLargeGroups(t *testing.T) {
	groups := []model.Group{
		{ID: 0, Size: 150, Choices: [model.NumChoices]int{5, 10, 11, 12, 13, 14, 15, 16, 17, 18}},
		{ID: 1, Size: 150, Choices: [model.NumChoices]int{5, 20, 21, 22, 23, 24, 25, 26, 27, 28}},
	}
	inst, err := model.NewInstance(groups)
	require.NoError(t, err)

	var warnings []string
	p := testParams()
	p.MaxIterations = 500
	p.ReportEvery = 100
	e := newEngine(t, inst, p, WithObserver(ObserverFuncs{
		OnLog: func(l Level, msg string) {
			if l == LevelWarn {
				warnings = append(warnings, msg)
			}
		},
	}))
	res, err := e.Run(context.Background())
	require.NoError(t, err)

	// A hundred slots cannot all reach the floor with 300 people.
	assert.Len(t, warnings, 1)
	assert.False(t, res.Stats.InitialFeasible)
	require.NoError(t, inst.CheckAssignment(res.BestAssignment))
	occ := model.OccupancyOf(inst, res.BestAssignment)
	for d := 1; d <= model.NumSlots; d++ {
		assert.LessOrEqual(t, occ[d], model.MaxOccupancy)
	}
	assert.Contains(t, res.BestAssignment, 5)
}

type engineSnapshot struct {
	assign  []int
	occ     model.Occupancy
	current float64
	members [][]int
}

func snapshotEngine(e *Engine) engineSnapshot {
	s := engineSnapshot{
		assign:  slices.Clone(e.assign),
		occ:     e.occ,
		current: e.current,
	}
	for d := 1; d <= model.NumSlots; d++ {
		s.members = append(s.members, slices.Clone(e.index.Members(d)))
	}
	return s
}

func TestRejectedProposalLeavesStateUnchanged(t *testing.T) {
	inst := testInstance(t, 4000, 9)
	e := newEngine(t, inst, testParams())
	e.buildInitial()
	require.True(t, e.stats.InitialFeasible)

	before := snapshotEngine(e)

	// Infeasible: a group cannot move onto its own slot, and the swap
	// partner must differ.
	assert.Equal(t, outcomeInfeasible, e.tryRelocate(0, e.assign[0], 1))
	assert.Equal(t, outcomeInfeasible, e.trySwap(3, 3, 1))
	assert.Equal(t, before, snapshotEngine(e))

	// Infeasible: lift a slot to the cap and try to move a group onto it.
	full := 0
	for d := 1; d <= model.NumSlots; d++ {
		if full == 0 || e.occ[d] > e.occ[full] {
			full = d
		}
	}
	saved := e.occ[full]
	e.occ[full] = model.MaxOccupancy
	mover := slices.IndexFunc(e.assign, func(d int) bool { return d != full })
	snap := snapshotEngine(e)
	assert.Equal(t, outcomeInfeasible, e.tryRelocate(mover, full, 1))
	assert.Equal(t, snap, snapshotEngine(e))
	e.occ[full] = saved
	assert.Equal(t, before, snapshotEngine(e))

	// Rejected by Metropolis: a worsening feasible move at near zero
	// temperature.
	found := false
	for g := 0; g < inst.Len() && !found; g++ {
		from := e.assign[g]
		n := inst.Groups[g].Size
		for to := 1; to <= model.NumSlots; to++ {
			if to == from || e.occ[from]-n < model.MinOccupancy || e.occ[to]+n > model.MaxOccupancy {
				continue
			}
			delta := float64(e.cm.PreferenceCost(g, to)) - float64(e.cm.PreferenceCost(g, from)) +
				cost.DeltaAccounting2(&e.occ, from, -n, to, n)
			if delta < 1 {
				continue
			}
			assert.Equal(t, outcomeRejected, e.tryRelocate(g, to, 1e-12))
			found = true
			break
		}
	}
	require.True(t, found)
	assert.Equal(t, before, snapshotEngine(e))
}

func TestMetropolis(t *testing.T) {
	inst := testInstance(t, 10, 1)
	e := newEngine(t, inst, testParams())

	for i := 0; i < 100; i++ {
		if !e.metropolis(-1, 1) {
			t.Fatalf("improving move rejected")
		}
	}
	ref := rand.New(rand.NewSource(testParams().Seed))
	assert.Equal(t, ref.Float64(), e.rng.Float64(), "improving moves must not consume draws")

	accepted := 0
	for i := 0; i < 1000; i++ {
		if e.metropolis(1e9, 1) {
			accepted++
		}
	}
	assert.Zero(t, accepted)
}

func TestFingerprint(t *testing.T) {
	a := []int{1, 2, 3, 100}
	assert.Equal(t, Fingerprint(a), Fingerprint(slices.Clone(a)))
	assert.NotEqual(t, Fingerprint(a), Fingerprint([]int{1, 2, 100, 3}))
	assert.Len(t, Fingerprint(nil), 16)
}

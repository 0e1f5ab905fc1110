package cost

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/slotanneal/core/model"
)

func TestPreferencePenaltyMonotone(t *testing.T) {
	for size := 1; size <= 12; size++ {
		require.Zero(t, PreferencePenalty(size, 0))
		prev := PreferencePenalty(size, 0)
		for rank := 1; rank <= model.NumChoices; rank++ {
			p := PreferencePenalty(size, rank)
			require.Positive(t, p, "size %d rank %d", size, rank)
			require.GreaterOrEqual(t, p, prev, "size %d rank %d", size, rank)
			prev = p
		}
		assert.Equal(t, PreferencePenalty(size, model.NumChoices), PreferencePenalty(size, 42))
	}
}

func TestPreferencePenaltyTable(t *testing.T) {
	want := []uint32{0, 50, 86, 136, 236, 272, 372, 444, 544, 1440, 2236}
	for rank, w := range want {
		assert.Equal(t, w, PreferencePenalty(4, rank), "rank %d", rank)
	}
}

func TestModelPreferenceCost(t *testing.T) {
	g := model.Group{ID: 1, Size: 3, Choices: [model.NumChoices]int{52, 38, 12, 82, 33, 75, 64, 76, 10, 28}}
	inst := &model.Instance{Groups: []model.Group{g}}
	m := New(inst)
	assert.Equal(t, uint32(0), m.PreferenceCost(0, 52))
	assert.Equal(t, uint32(50), m.PreferenceCost(0, 38))
	assert.Equal(t, PreferencePenalty(3, 9), m.PreferenceCost(0, 28))
	assert.Equal(t, PreferencePenalty(3, 10), m.PreferenceCost(0, 1))
	assert.Same(t, inst, m.Instance())
}

func TestAccountingDayCost(t *testing.T) {
	assert.Zero(t, AccountingDayCost(125, 125))
	assert.Zero(t, AccountingDayCost(100, 300))
	assert.InDelta(t, 75.0/400.0*math.Sqrt(200), AccountingDayCost(200, 200), 1e-9)
	assert.InDelta(t, 175.0/400.0*math.Pow(300, 0.5+100.0/50.0), AccountingDayCost(300, 200), 1e-6)
	assert.Equal(t, AccountingDayCost(210, 170), AccountingDayCost(210, 250))
}

func randomOccupancy(rng *rand.Rand) model.Occupancy {
	var occ model.Occupancy
	for d := 1; d <= model.NumSlots; d++ {
		occ[d] = model.MinOccupancy + rng.Intn(model.MaxOccupancy-model.MinOccupancy+1)
	}
	return occ
}

func TestDeltaAccounting2MatchesRecompute(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	check := func(occ model.Occupancy, a, da, b, db int) {
		t.Helper()
		after := occ
		after[a] += da
		after[b] += db
		want := AccountingCost(&after) - AccountingCost(&occ)
		got := DeltaAccounting2(&occ, a, da, b, db)
		// Terms reach ~1e9, so the tolerance scales with the total.
		tol := 1e-11 * math.Max(1, AccountingCost(&occ))
		require.InDelta(t, want, got, tol, "a=%d da=%d b=%d db=%d", a, da, b, db)
	}

	for i := 0; i < 2000; i++ {
		occ := randomOccupancy(rng)
		a := 1 + rng.Intn(model.NumSlots)
		b := 1 + rng.Intn(model.NumSlots)
		n := 1 + rng.Intn(8)
		check(occ, a, -n, b, n)
	}

	// Independent deltas, a==b allowed.
	for i := 0; i < 2000; i++ {
		occ := randomOccupancy(rng)
		a := 1 + rng.Intn(model.NumSlots)
		b := 1 + rng.Intn(model.NumSlots)
		check(occ, a, rng.Intn(41)-20, b, rng.Intn(41)-20)
	}

	occ := randomOccupancy(rng)
	check(occ, 100, -5, 99, 5)
	check(occ, 99, -5, 100, 5)
	check(occ, 1, 4, 100, -4)
	check(occ, 100, 3, 100, -7)
	check(occ, 50, -3, 50, 3)
	check(occ, 50, 2, 50, 6)
	check(occ, 1, -6, 2, 6)
	check(occ, 2, -6, 1, 6)
}

func TestTotalCost(t *testing.T) {
	groups := []model.Group{
		{ID: 0, Size: 4, Choices: [model.NumChoices]int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}},
		{ID: 1, Size: 2, Choices: [model.NumChoices]int{2, 1, 3, 4, 5, 6, 7, 8, 9, 10}},
	}
	inst := &model.Instance{Groups: groups}
	m := New(inst)
	b := m.TotalCost([]int{1, 1})
	assert.Equal(t, 6, b.Occupancy[1])
	assert.Equal(t, 6, b.Occupancy.Sum())
	assert.InDelta(t, 50.0, b.Preference, 1e-9)
	assert.InDelta(t, AccountingCost(&b.Occupancy), b.Accounting, 1e-9)
	assert.InDelta(t, b.Preference+b.Accounting, b.Total, 1e-9)
}

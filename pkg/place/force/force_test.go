package force

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	perrors "github.com/matzehuels/netplace/pkg/errors"
	"github.com/matzehuels/netplace/pkg/netlist"
)

func build(t *testing.T, nets int, gates []netlist.GateSpec, pads []netlist.PadSpec) *netlist.Netlist {
	t.Helper()
	nl, err := netlist.New(nets, gates, pads)
	require.NoError(t, err)
	return nl
}

func ring(t *testing.T) *netlist.Netlist {
	return build(t, 5,
		[]netlist.GateSpec{
			{ID: 1, Connectivity: 3, Nets: []int{1, 4, 5}},
			{ID: 2, Connectivity: 2, Nets: []int{1, 2}},
			{ID: 3, Connectivity: 2, Nets: []int{2, 3}},
			{ID: 4, Connectivity: 2, Nets: []int{3, 4}},
		},
		[]netlist.PadSpec{{ID: 1, Net: 5, X: 0, Y: 0}},
	)
}

func TestForceIsolatedGateIsDamping(t *testing.T) {
	nl := build(t, 0, []netlist.GateSpec{{ID: 1}}, nil)
	g := nl.Gate(1)
	g.Pos = r2.Vec{X: 50, Y: 50}
	g.Velocity = r2.Vec{X: 3, Y: -4}

	cfg := DefaultConfig()
	Forces(nl, cfg)
	assert.Equal(t, r2.Vec{X: -60, Y: 80}, g.Force)
}

func TestIsolatedGateComesToRest(t *testing.T) {
	nl := build(t, 0, []netlist.GateSpec{{ID: 1}}, nil)
	g := nl.Gate(1)
	g.Pos = r2.Vec{X: 50, Y: 50}
	g.Velocity = r2.Vec{X: 10, Y: 5}
	cfg := DefaultConfig()

	prevSpeed := r2.Norm(g.Velocity)
	prevPos := g.Pos
	prevStep := math.Inf(1)
	for range 60 {
		Forces(nl, cfg)
		activity, err := Step(nl, cfg)
		require.NoError(t, err)

		speed := r2.Norm(g.Velocity)
		assert.Less(t, speed, prevSpeed)
		assert.Equal(t, speed, activity)
		step := r2.Norm(r2.Sub(g.Pos, prevPos))
		assert.LessOrEqual(t, step, prevStep)
		prevSpeed, prevPos, prevStep = speed, g.Pos, step
	}
	assert.Less(t, prevSpeed, 1e-9)
}

func TestHookForce(t *testing.T) {
	nl := build(t, 2,
		[]netlist.GateSpec{
			{ID: 1, Connectivity: 2, Nets: []int{1, 2}},
			{ID: 2, Connectivity: 1, Nets: []int{1}},
		},
		[]netlist.PadSpec{{ID: 1, Net: 2, X: 0, Y: 10}},
	)
	nl.Gate(1).Pos = r2.Vec{X: 4, Y: 4}
	nl.Gate(2).Pos = r2.Vec{X: 10, Y: 1}

	cfg := DefaultConfig()
	cfg.Repulsion = 0
	Forces(nl, cfg)

	// Gate 1 is pulled by gate 2 and the pad; gate 2 only by gate 1.
	assert.Equal(t, r2.Vec{X: 6 - 4, Y: -3 + 6}, nl.Gate(1).Force)
	assert.Equal(t, r2.Vec{X: -6, Y: 3}, nl.Gate(2).Force)
}

func TestRepulsion(t *testing.T) {
	nl := build(t, 0, []netlist.GateSpec{{ID: 1}, {ID: 2}}, nil)
	nl.Gate(1).Pos = r2.Vec{X: 0, Y: 0}
	nl.Gate(2).Pos = r2.Vec{X: 2, Y: 0}

	Forces(nl, DefaultConfig())

	// 150/2 · 1/|Δ| pointing away from the other gate.
	assert.InDelta(t, -37.5, nl.Gate(1).Force.X, 1e-12)
	assert.InDelta(t, 37.5, nl.Gate(2).Force.X, 1e-12)
	assert.Zero(t, nl.Gate(1).Force.Y)
}

func TestCoincidentGatesStayFinite(t *testing.T) {
	nl := build(t, 0, []netlist.GateSpec{{ID: 1}, {ID: 2}, {ID: 3}}, nil)
	for i := range nl.Gates() {
		nl.Gates()[i].Pos = r2.Vec{X: 20, Y: 20}
	}
	cfg := DefaultConfig()
	Forces(nl, cfg)
	for _, g := range nl.Gates() {
		assert.True(t, netlist.Finite(g.Force))
	}
	_, err := Step(nl, cfg)
	require.NoError(t, err)
}

func TestStepClampsToBox(t *testing.T) {
	nl := build(t, 0, []netlist.GateSpec{{ID: 1}}, nil)
	g := nl.Gate(1)
	g.Pos = r2.Vec{X: 99, Y: 1}
	g.Force = r2.Vec{X: 1e4, Y: -1e4}

	_, err := Step(nl, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, r2.Vec{X: 100, Y: 0}, g.Pos)
}

func TestStepReportsDivergence(t *testing.T) {
	nl := build(t, 0, []netlist.GateSpec{{ID: 1}}, nil)
	nl.Gate(1).Force = r2.Vec{X: math.Inf(1)}

	_, err := Step(nl, DefaultConfig())
	assert.True(t, perrors.Is(err, perrors.ErrCodeNumerical))
	assert.True(t, netlist.Finite(nl.Gate(1).Pos))
}

func TestSimulatorPlace(t *testing.T) {
	run := func() (*netlist.Netlist, []float64) {
		nl := ring(t)
		nl.RandomizePositions(rand.New(rand.NewPCG(7, 7^0xdeadbeef)), netlist.DefaultBox)
		var rounds []int
		sim := NewSimulator(Config{Rounds: 50})
		sim.OnRound = func(round int, _, _ float64) { rounds = append(rounds, round) }

		rep, err := sim.Place(context.Background(), nl)
		require.NoError(t, err)
		assert.Equal(t, 50, rep.Rounds)
		assert.Len(t, rep.History, 50)
		assert.Len(t, rep.Activity, 50)
		assert.Len(t, rounds, 50)
		assert.Equal(t, rep.History[49], rep.After)
		return nl, rep.History
	}

	a, ha := run()
	b, hb := run()
	assert.Equal(t, a.Positions(), b.Positions())
	assert.Equal(t, ha, hb)
	for _, g := range a.Gates() {
		assert.True(t, netlist.DefaultBox.Contains(g.Pos), "gate %d at %v", g.ID, g.Pos)
	}
}

func TestSimulatorStopsOnCancel(t *testing.T) {
	nl := ring(t)
	ctx, cancel := context.WithCancel(context.Background())
	sim := NewSimulator(DefaultConfig())
	sim.OnRound = func(round int, _, _ float64) {
		if round == 3 {
			cancel()
		}
	}
	rep, err := sim.Place(ctx, nl)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, rep.Interrupted)
	assert.Equal(t, 3, rep.Rounds)
}

func TestSimulatorLargeRoundCount(t *testing.T) {
	nl := ring(t)
	ctx, cancel := context.WithCancel(context.Background())
	cfg := DefaultConfig()
	cfg.Rounds = math.MaxInt32
	sim := NewSimulator(cfg)
	sim.OnRound = func(round int, _, _ float64) {
		if round == 2 {
			cancel()
		}
	}

	rep, err := sim.Place(ctx, nl)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, rep.Rounds)
	assert.LessOrEqual(t, cap(rep.History), DefaultRounds)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"negative dt", Config{DT: -1}},
		{"negative mass", Config{Mass: -1}},
		{"negative rounds", Config{Rounds: -5}},
		{"empty box", Config{Box: r2.Box{Min: r2.Vec{X: 5, Y: 5}, Max: r2.Vec{X: 1, Y: 1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.WithDefaults().Validate()
			assert.True(t, perrors.Is(err, perrors.ErrCodeInvalidConfig), "got %v", err)
		})
	}
	assert.NoError(t, DefaultConfig().Validate())
}

func TestTarget(t *testing.T) {
	nl := build(t, 3,
		[]netlist.GateSpec{
			{ID: 1, Connectivity: 2, Nets: []int{1, 2}},
			{ID: 2, Connectivity: 2, Nets: []int{1, 3}},
		},
		[]netlist.PadSpec{{ID: 1, Net: 2, X: 0, Y: 0}},
	)
	nl.Gate(1).Pos = r2.Vec{X: 10, Y: 10}
	nl.Gate(2).Pos = r2.Vec{X: 30, Y: 50}

	// Net 1 holds both gates, net 2 holds gate 1 and the pad.
	assert.Equal(t, r2.Vec{X: 12.5, Y: 17.5}, Target(nl, 1))
	// Gate 2 only sees net 1 and its own lone net 3.
	got := Target(nl, 2)
	assert.InDelta(t, 70.0/3, got.X, 1e-12)
	assert.InDelta(t, 110.0/3, got.Y, 1e-12)
}

func TestZFTOrderAndCoverage(t *testing.T) {
	nl := ring(t)
	nl.RandomizePositions(rand.New(rand.NewPCG(3, 3)), netlist.DefaultBox)
	nl.Gate(2).Moved = true // stale flags are cleared

	moves := ZFT(nl, DefaultConfig())
	require.Len(t, moves, 4)

	// Gate 1 has six connected cells, the others four each.
	order := make([]int, len(moves))
	for i, m := range moves {
		order[i] = m.Gate
	}
	assert.Equal(t, []int{1, 2, 3, 4}, order)
	for _, g := range nl.Gates() {
		assert.True(t, g.Moved, "gate %d", g.ID)
	}
}

func TestZFTRelocatesOccupiedTarget(t *testing.T) {
	nl := build(t, 2,
		[]netlist.GateSpec{
			{ID: 1, Connectivity: 1, Nets: []int{1}},
			{ID: 2, Connectivity: 1, Nets: []int{2}},
		},
		[]netlist.PadSpec{
			{ID: 1, Net: 1, X: 10, Y: 10},
			{ID: 2, Net: 2, X: 10, Y: 10},
		},
	)
	nl.Gate(1).Pos = r2.Vec{X: 10, Y: 10}
	nl.Gate(2).Pos = r2.Vec{X: 10, Y: 10}

	rep, err := NewZFT(DefaultConfig()).Place(context.Background(), nl)
	require.NoError(t, err)

	// Gate 1 finds gate 2 on its target and takes the nearest free cell,
	// breaking the four-way tie toward the smaller x.
	assert.Equal(t, r2.Vec{X: 9, Y: 10}, nl.Gate(1).Pos)
	assert.Equal(t, r2.Vec{X: 10, Y: 10}, nl.Gate(2).Pos)
	assert.Equal(t, 1, rep.Relocations)
	assert.Equal(t, 2, rep.Rounds)
}

func TestNearestFreeFullGrid(t *testing.T) {
	nl := build(t, 0, []netlist.GateSpec{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}}, nil)
	cells := []r2.Vec{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 0}, {X: 1, Y: 1}}
	for i, c := range cells {
		nl.Gates()[i].Pos = c
	}
	cfg := DefaultConfig()
	cfg.Box = r2.Box{Max: r2.Vec{X: 1, Y: 1}}

	z := newZFT(nl, cfg)
	_, ok := z.nearestFree(r2.Vec{X: 0.4, Y: 0.4})
	assert.False(t, ok)

	z.release(r2.Vec{X: 1, Y: 1})
	got, ok := z.nearestFree(r2.Vec{X: 0.4, Y: 0.4})
	assert.True(t, ok)
	assert.Equal(t, r2.Vec{X: 1, Y: 1}, got)
}

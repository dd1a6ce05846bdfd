package netlist

import (
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"

	perrors "github.com/matzehuels/netplace/pkg/errors"
)

// ring builds four gates on a cycle of nets with one pad anchoring gate 1.
func ring(t *testing.T) *Netlist {
	t.Helper()
	nl, err := New(5,
		[]GateSpec{
			{ID: 1, Connectivity: 3, Nets: []int{1, 4, 5}},
			{ID: 2, Connectivity: 2, Nets: []int{1, 2}},
			{ID: 3, Connectivity: 2, Nets: []int{2, 3}},
			{ID: 4, Connectivity: 2, Nets: []int{3, 4}},
		},
		[]PadSpec{{ID: 1, Net: 5, X: 0, Y: 0}},
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return nl
}

func TestNewBuildsNetMembership(t *testing.T) {
	nl := ring(t)

	if nl.GateCount() != 4 || nl.PadCount() != 1 || nl.NetCount() != 5 {
		t.Fatalf("counts = %d/%d/%d, want 4/1/5", nl.GateCount(), nl.PadCount(), nl.NetCount())
	}

	net1 := nl.Net(1)
	if len(net1.Gates) != 2 || net1.Gates[0] != 1 || net1.Gates[1] != 2 {
		t.Errorf("net 1 gates = %v, want [1 2]", net1.Gates)
	}
	net5 := nl.Net(5)
	if len(net5.Gates) != 1 || len(net5.Pads) != 1 || net5.Pads[0] != 1 {
		t.Errorf("net 5 = %+v, want gate 1 and pad 1", *net5)
	}
	if err := nl.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestConnectedCells(t *testing.T) {
	nl := ring(t)

	// gate 1: net1 (2 gates) + net4 (2 gates) + net5 (1 gate + 1 pad)
	tests := []struct {
		gate int
		want int
	}{
		{1, 6},
		{2, 4},
		{3, 4},
		{4, 4},
	}
	for _, tt := range tests {
		if got := nl.Gate(tt.gate).ConnectedCells; got != tt.want {
			t.Errorf("gate %d ConnectedCells = %d, want %d", tt.gate, got, tt.want)
		}
	}
}

func TestNewStructuralErrors(t *testing.T) {
	tests := []struct {
		name  string
		nets  int
		gates []GateSpec
		pads  []PadSpec
		kind  perrors.StructuralKind
	}{
		{
			name:  "connectivity mismatch",
			nets:  1,
			gates: []GateSpec{{ID: 1, Connectivity: 2, Nets: []int{1}}},
			kind:  perrors.KindConnectivityMismatch,
		},
		{
			name:  "unknown net on gate",
			nets:  1,
			gates: []GateSpec{{ID: 1, Connectivity: 1, Nets: []int{2}}},
			kind:  perrors.KindUnknownNet,
		},
		{
			name:  "unknown net on pad",
			nets:  1,
			gates: []GateSpec{{ID: 1, Connectivity: 1, Nets: []int{1}}},
			pads:  []PadSpec{{ID: 1, Net: 3}},
			kind:  perrors.KindUnknownNet,
		},
		{
			name:  "gate ids not dense",
			nets:  1,
			gates: []GateSpec{{ID: 2, Connectivity: 1, Nets: []int{1}}},
			kind:  perrors.KindNonDenseID,
		},
		{
			name:  "pad ids not dense",
			nets:  1,
			gates: []GateSpec{{ID: 1, Connectivity: 1, Nets: []int{1}}},
			pads:  []PadSpec{{ID: 5, Net: 1}},
			kind:  perrors.KindNonDenseID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.nets, tt.gates, tt.pads)
			se, ok := err.(*perrors.StructuralError)
			if !ok {
				t.Fatalf("New error = %v, want *StructuralError", err)
			}
			if se.Kind != tt.kind {
				t.Errorf("Kind = %s, want %s", se.Kind, tt.kind)
			}
			if !perrors.Is(err, perrors.ErrCodeStructural) {
				t.Error("error does not carry STRUCTURAL code")
			}
		})
	}
}

func TestNewRejectsNetCountOutOfRange(t *testing.T) {
	for _, n := range []int{-1, MaxCount + 1} {
		if _, err := New(n, nil, nil); !perrors.Is(err, perrors.ErrCodeInvalidInput) {
			t.Errorf("New(%d) = %v, want INVALID_INPUT", n, err)
		}
	}
}

func TestValidateRejectsNonFinite(t *testing.T) {
	nl := ring(t)
	nl.Gate(3).Pos = r2.Vec{X: math.NaN(), Y: 1}

	err := nl.Validate()
	if !perrors.Is(err, perrors.ErrCodeNumerical) {
		t.Errorf("Validate() = %v, want NUMERICAL", err)
	}
}

func TestIndexMapping(t *testing.T) {
	for id := 1; id <= 5; id++ {
		if ID(Index(id)) != id {
			t.Errorf("ID(Index(%d)) = %d", id, ID(Index(id)))
		}
	}
	nl := ring(t)
	if nl.Gate(0) != nil || nl.Gate(5) != nil {
		t.Error("out-of-range gate lookup should return nil")
	}
	if nl.Gate(3).ID != 3 {
		t.Errorf("Gate(3).ID = %d", nl.Gate(3).ID)
	}
}

func TestRandomizePositionsIsSeededAndBounded(t *testing.T) {
	a, b := ring(t), ring(t)
	a.RandomizePositions(rand.New(rand.NewPCG(7, 7^0xdeadbeef)), DefaultBox)
	b.RandomizePositions(rand.New(rand.NewPCG(7, 7^0xdeadbeef)), DefaultBox)

	for i, p := range a.Positions() {
		if p != b.Positions()[i] {
			t.Fatalf("gate %d: %v != %v with the same seed", i+1, p, b.Positions()[i])
		}
		if p.X < 0 || p.X > 100 || p.Y < 0 || p.Y > 100 {
			t.Errorf("gate %d at %v outside default box", i+1, p)
		}
		if scaled := p.X * 10; math.Abs(scaled-math.Round(scaled)) > 1e-9 {
			t.Errorf("gate %d x=%v not on the 0.1 grid", i+1, p.X)
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	nl := ring(t)
	c := nl.Clone()
	c.Gate(1).Pos = r2.Vec{X: 42, Y: 42}
	c.Gate(1).Nets[0] = 99

	if nl.Gate(1).Pos == (r2.Vec{X: 42, Y: 42}) {
		t.Error("clone shares gate positions")
	}
	if nl.Gate(1).Nets[0] == 99 {
		t.Error("clone shares net lists")
	}
}

func TestGeometrySnapshotIsDetached(t *testing.T) {
	nl := ring(t)
	nl.Gate(2).Pos = r2.Vec{X: 3, Y: 4}
	geo := nl.Geometry()
	geo.Gates[1] = r2.Vec{X: 9, Y: 9}
	geo.Nets[0].Gates[0] = 4

	if nl.Gate(2).Pos != (r2.Vec{X: 3, Y: 4}) {
		t.Error("mutating snapshot changed gate position")
	}
	if nl.Net(1).Gates[0] != 1 {
		t.Error("mutating snapshot changed net membership")
	}

	b := nl.Geometry().Bounds()
	if b.Min != (r2.Vec{}) || b.Max != (r2.Vec{X: 3, Y: 4}) {
		t.Errorf("Bounds() = %+v", b)
	}
}

func TestComponents(t *testing.T) {
	nl, err := New(3,
		[]GateSpec{
			{ID: 1, Connectivity: 1, Nets: []int{1}},
			{ID: 2, Connectivity: 1, Nets: []int{1}},
			{ID: 3, Connectivity: 1, Nets: []int{2}},
			{ID: 4, Connectivity: 2, Nets: []int{2, 3}},
		},
		[]PadSpec{{ID: 1, Net: 3, X: 1, Y: 1}},
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	comps := nl.Components()
	if len(comps) != 2 {
		t.Fatalf("len(Components) = %d, want 2", len(comps))
	}
	if comps[0].Anchored || len(comps[0].Gates) != 2 || comps[0].Gates[0] != 1 {
		t.Errorf("component 0 = %+v, want unanchored {1,2}", comps[0])
	}
	if !comps[1].Anchored || comps[1].Gates[0] != 3 || comps[1].Index != 1 {
		t.Errorf("component 1 = %+v, want anchored {3,4}", comps[1])
	}
}

func TestClamp(t *testing.T) {
	got := Clamp(r2.Vec{X: -3, Y: 140}, DefaultBox)
	if got != (r2.Vec{X: 0, Y: 100}) {
		t.Errorf("Clamp = %v, want {0 100}", got)
	}
}

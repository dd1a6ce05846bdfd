package netlist

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/spatial/r2"

	perrors "github.com/matzehuels/netplace/pkg/errors"
)

// DefaultMass is the physical mass assigned to every gate at construction.
const DefaultMass = 17.0

// MaxCount bounds the net count accepted by [New] and the counts accepted by
// the text parser. Nets are allocated from the declared count, not from the
// references to them.
const MaxCount = 1 << 20

// DefaultBox is the default placement region, [0,100] on both axes.
var DefaultBox = r2.Box{Min: r2.Vec{X: 0, Y: 0}, Max: r2.Vec{X: 100, Y: 100}}

// Gate is a movable circuit element.
//
// ID, Connectivity, Nets and ConnectedCells are topology and are fixed after
// [New]. The remaining fields are geometry and physics state that placers
// update in place.
type Gate struct {
	ID           int   // 1-based, equals index+1 in the gate collection
	Connectivity int   // declared degree; always len(Nets)
	Nets         []int // incident net ids in declaration order

	// ConnectedCells is the sum over incident nets of the number of gate and
	// pad terminals on that net. The gate itself is counted once per net.
	ConnectedCells int

	Pos      r2.Vec
	Moved    bool // set by the zero-force-target pass
	Force    r2.Vec
	Velocity r2.Vec
	Mass     float64
}

// Pad is a fixed terminal anchoring a single net.
type Pad struct {
	ID  int
	Net int
	Pos r2.Vec
}

// Net is a hyperedge over gates and pads.
type Net struct {
	ID    int
	Gates []int // incident gate ids in declaration order
	Pads  []int // incident pad ids in declaration order
}

// Terminals returns the number of gate and pad terminals on the net.
func (n Net) Terminals() int { return len(n.Gates) + len(n.Pads) }

// GateSpec declares a gate and its incident nets.
type GateSpec struct {
	ID           int
	Connectivity int
	Nets         []int
}

// PadSpec declares a pad, the net it anchors, and its fixed position.
type PadSpec struct {
	ID  int
	Net int
	X   float64
	Y   float64
}

// Netlist is the immutable-topology, mutable-geometry placement model.
//
// The zero value is an empty netlist. Netlist is not safe for concurrent use.
type Netlist struct {
	gates []Gate
	pads  []Pad
	nets  []Net
}

// Index converts a 1-based id into a storage index.
func Index(id int) int { return id - 1 }

// ID converts a storage index into a 1-based id.
func ID(index int) int { return index + 1 }

// New builds a netlist from gate and pad declarations.
//
// Gate and pad ids must be dense and in order (the i-th declaration has id
// i+1), every referenced net must lie in [1, netCount], and every gate's
// declared connectivity must equal the length of its net list. Violations are
// reported as *errors.StructuralError. A net count outside [0, MaxCount] is
// an INVALID_INPUT error. Net membership is filled in declaration
// order and gates start at the origin; see [Netlist.RandomizePositions].
func New(netCount int, gates []GateSpec, pads []PadSpec) (*Netlist, error) {
	if netCount < 0 || netCount > MaxCount {
		return nil, perrors.New(perrors.ErrCodeInvalidInput, "net count %d out of range [0, %d]", netCount, MaxCount)
	}
	nl := &Netlist{
		gates: make([]Gate, len(gates)),
		pads:  make([]Pad, len(pads)),
		nets:  make([]Net, netCount),
	}
	for i := range nl.nets {
		nl.nets[i].ID = ID(i)
	}

	for i, spec := range gates {
		if spec.ID != ID(i) {
			return nil, &perrors.StructuralError{
				Kind:   perrors.KindNonDenseID,
				Gate:   spec.ID,
				Detail: fmt.Sprintf("gate declared at position %d must have id %d", i+1, ID(i)),
			}
		}
		if spec.Connectivity != len(spec.Nets) {
			return nil, &perrors.StructuralError{
				Kind:   perrors.KindConnectivityMismatch,
				Gate:   spec.ID,
				Detail: fmt.Sprintf("declared %d, listed %d", spec.Connectivity, len(spec.Nets)),
			}
		}
		for _, netID := range spec.Nets {
			if netID < 1 || netID > netCount {
				return nil, &perrors.StructuralError{Kind: perrors.KindUnknownNet, Gate: spec.ID, Net: netID}
			}
			nl.nets[Index(netID)].Gates = append(nl.nets[Index(netID)].Gates, spec.ID)
		}
		nl.gates[i] = Gate{
			ID:           spec.ID,
			Connectivity: spec.Connectivity,
			Nets:         append([]int(nil), spec.Nets...),
			Mass:         DefaultMass,
		}
	}

	for i, spec := range pads {
		if spec.ID != ID(i) {
			return nil, &perrors.StructuralError{
				Kind:   perrors.KindNonDenseID,
				Pad:    spec.ID,
				Detail: fmt.Sprintf("pad declared at position %d must have id %d", i+1, ID(i)),
			}
		}
		if spec.Net < 1 || spec.Net > netCount {
			return nil, &perrors.StructuralError{Kind: perrors.KindUnknownNet, Pad: spec.ID, Net: spec.Net}
		}
		nl.nets[Index(spec.Net)].Pads = append(nl.nets[Index(spec.Net)].Pads, spec.ID)
		nl.pads[i] = Pad{ID: spec.ID, Net: spec.Net, Pos: r2.Vec{X: spec.X, Y: spec.Y}}
	}

	for i := range nl.gates {
		g := &nl.gates[i]
		for _, netID := range g.Nets {
			g.ConnectedCells += nl.nets[Index(netID)].Terminals()
		}
	}
	return nl, nil
}

// GateCount returns the number of gates.
func (nl *Netlist) GateCount() int { return len(nl.gates) }

// PadCount returns the number of pads.
func (nl *Netlist) PadCount() int { return len(nl.pads) }

// NetCount returns the number of nets.
func (nl *Netlist) NetCount() int { return len(nl.nets) }

// Gates returns the gate arena. Callers may update geometry fields in place
// but must not change topology fields or the slice length.
func (nl *Netlist) Gates() []Gate { return nl.gates }

// Pads returns the pad arena. It must be treated as read-only.
func (nl *Netlist) Pads() []Pad { return nl.pads }

// Nets returns the net arena. It must be treated as read-only.
func (nl *Netlist) Nets() []Net { return nl.nets }

// Gate returns the gate with the given id, or nil if the id is out of range.
func (nl *Netlist) Gate(id int) *Gate {
	if id < 1 || id > len(nl.gates) {
		return nil
	}
	return &nl.gates[Index(id)]
}

// Pad returns the pad with the given id, or nil if the id is out of range.
func (nl *Netlist) Pad(id int) *Pad {
	if id < 1 || id > len(nl.pads) {
		return nil
	}
	return &nl.pads[Index(id)]
}

// Net returns the net with the given id, or nil if the id is out of range.
func (nl *Netlist) Net(id int) *Net {
	if id < 1 || id > len(nl.nets) {
		return nil
	}
	return &nl.nets[Index(id)]
}

// Validate re-checks every structural invariant plus finiteness of all
// coordinates. It returns the first violation found.
func (nl *Netlist) Validate() error {
	for i, g := range nl.gates {
		if g.ID != ID(i) {
			return &perrors.StructuralError{Kind: perrors.KindNonDenseID, Gate: g.ID}
		}
		if g.Connectivity != len(g.Nets) {
			return &perrors.StructuralError{
				Kind:   perrors.KindConnectivityMismatch,
				Gate:   g.ID,
				Detail: fmt.Sprintf("declared %d, listed %d", g.Connectivity, len(g.Nets)),
			}
		}
		for _, netID := range g.Nets {
			if nl.Net(netID) == nil {
				return &perrors.StructuralError{Kind: perrors.KindUnknownNet, Gate: g.ID, Net: netID}
			}
		}
		if !Finite(g.Pos) {
			return &perrors.NumericalError{Op: "validate", Detail: fmt.Sprintf("gate %d has non-finite position", g.ID)}
		}
	}
	for i, p := range nl.pads {
		if p.ID != ID(i) {
			return &perrors.StructuralError{Kind: perrors.KindNonDenseID, Pad: p.ID}
		}
		net := nl.Net(p.Net)
		if net == nil {
			return &perrors.StructuralError{Kind: perrors.KindUnknownNet, Pad: p.ID, Net: p.Net}
		}
		if !slices.Contains(net.Pads, p.ID) {
			return &perrors.StructuralError{Kind: perrors.KindPadMembership, Pad: p.ID, Net: p.Net}
		}
	}
	for _, n := range nl.nets {
		for _, gateID := range n.Gates {
			g := nl.Gate(gateID)
			if g == nil {
				return &perrors.StructuralError{Kind: perrors.KindUnknownGate, Net: n.ID, Gate: gateID}
			}
			if !slices.Contains(g.Nets, n.ID) {
				return &perrors.StructuralError{Kind: perrors.KindUnknownNet, Gate: gateID, Net: n.ID, Detail: "net lists gate that does not list the net"}
			}
		}
		for _, padID := range n.Pads {
			p := nl.Pad(padID)
			if p == nil {
				return &perrors.StructuralError{Kind: perrors.KindUnknownPad, Net: n.ID, Pad: padID}
			}
			if p.Net != n.ID {
				return &perrors.StructuralError{Kind: perrors.KindPadMembership, Net: n.ID, Pad: padID}
			}
		}
	}
	return nil
}

// Positions returns a copy of every gate position, indexed by gate index.
func (nl *Netlist) Positions() []r2.Vec {
	out := make([]r2.Vec, len(nl.gates))
	for i := range nl.gates {
		out[i] = nl.gates[i].Pos
	}
	return out
}

// SetPositions overwrites every gate position. The slice must have exactly
// one entry per gate.
func (nl *Netlist) SetPositions(pos []r2.Vec) error {
	if len(pos) != len(nl.gates) {
		return perrors.New(perrors.ErrCodeInvalidInput, "got %d positions for %d gates", len(pos), len(nl.gates))
	}
	for i := range nl.gates {
		nl.gates[i].Pos = pos[i]
	}
	return nil
}

// RandomizePositions draws every gate position uniformly on a 1/1000 grid of
// box. With [DefaultBox] this yields coordinates in {0, 0.1, ..., 100}.
func (nl *Netlist) RandomizePositions(rng *rand.Rand, box r2.Box) {
	w := box.Max.X - box.Min.X
	h := box.Max.Y - box.Min.Y
	for i := range nl.gates {
		nl.gates[i].Pos = r2.Vec{
			X: box.Min.X + float64(rng.IntN(1001))/1000*w,
			Y: box.Min.Y + float64(rng.IntN(1001))/1000*h,
		}
	}
}

// ResetDynamics clears the moved flag, force and velocity of every gate.
func (nl *Netlist) ResetDynamics() {
	for i := range nl.gates {
		nl.gates[i].Moved = false
		nl.gates[i].Force = r2.Vec{}
		nl.gates[i].Velocity = r2.Vec{}
	}
}

// Clone returns a deep copy of the netlist.
func (nl *Netlist) Clone() *Netlist {
	c := &Netlist{
		gates: make([]Gate, len(nl.gates)),
		pads:  append([]Pad(nil), nl.pads...),
		nets:  make([]Net, len(nl.nets)),
	}
	for i, g := range nl.gates {
		g.Nets = append([]int(nil), g.Nets...)
		c.gates[i] = g
	}
	for i, n := range nl.nets {
		c.nets[i] = Net{
			ID:    n.ID,
			Gates: append([]int(nil), n.Gates...),
			Pads:  append([]int(nil), n.Pads...),
		}
	}
	return c
}

// Anchored reports whether the gate shares a net with at least one pad.
func (nl *Netlist) Anchored(gateID int) bool {
	g := nl.Gate(gateID)
	if g == nil {
		return false
	}
	for _, netID := range g.Nets {
		if len(nl.nets[Index(netID)].Pads) > 0 {
			return true
		}
	}
	return false
}

// SortKey orders gates by position, x major and y minor, for stable listings.
func SortKey(g Gate) float64 {
	return 100000*g.Pos.X + g.Pos.Y
}

// Finite reports whether both coordinates of v are finite numbers.
func Finite(v r2.Vec) bool {
	return !math.IsNaN(v.X) && !math.IsNaN(v.Y) && !math.IsInf(v.X, 0) && !math.IsInf(v.Y, 0)
}

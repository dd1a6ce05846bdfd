package quadratic

import (
	"fmt"

	perrors "github.com/matzehuels/netplace/pkg/errors"
	"github.com/matzehuels/netplace/pkg/netlist"
)

// System is the assembled linear system A·x = Bx, A·y = By. Row and column
// i correspond to the gate with id i+1.
type System struct {
	A  *CSR
	Bx []float64
	By []float64
}

// Assemble builds the quadratic placement system for nl.
//
// Every net is expanded into a clique: each ordered pair of distinct gates on
// the net adds one unit of connection weight, so a net with k gates adds
// k·(k-1) off-diagonal mass. A is the graph Laplacian D - C of those weights.
// Each pad then ties every gate on its net to the pad position with a unit
// spring, adding 1 to the gate's diagonal entry and the pad coordinates to
// its right-hand sides. For the usual single-gate pad net this is exactly the
// one anchored gate. Nets carrying a pad and several gates are handled
// differently from the single-anchor formulation, which ties only the first
// gate of the net to the pad and leaves the others to their clique springs;
// here every gate on the net is tied, so results differ for such nets.
func Assemble(nl *netlist.Netlist) *System {
	n := nl.GateCount()
	b := newBuilder(n)
	sys := &System{Bx: make([]float64, n), By: make([]float64, n)}

	for _, net := range nl.Nets() {
		for _, gi := range net.Gates {
			for _, gj := range net.Gates {
				if gi == gj {
					continue
				}
				i, j := netlist.Index(gi), netlist.Index(gj)
				b.add(i, j, -1)
				b.add(i, i, 1)
			}
		}
	}

	for _, pad := range nl.Pads() {
		for _, g := range nl.Net(pad.Net).Gates {
			i := netlist.Index(g)
			b.add(i, i, 1)
			sys.Bx[i] += pad.Pos.X
			sys.By[i] += pad.Pos.Y
		}
	}

	sys.A = b.compress()
	return sys
}

// CheckAnchors verifies that every connected component of the gate graph
// reaches at least one pad. Without an anchor the component can translate
// freely and A is singular, so the first unanchored component is reported
// as a structural error carrying its index and members.
func CheckAnchors(nl *netlist.Netlist) error {
	for _, c := range nl.Components() {
		if !c.Anchored {
			return &perrors.StructuralError{
				Kind:      perrors.KindUnanchoredComponent,
				Component: c.Index,
				Gates:     c.Gates,
				Gate:      c.Gates[0],
				Detail:    fmt.Sprintf("no gate in component %d shares a net with a pad", c.Index),
			}
		}
	}
	return nil
}

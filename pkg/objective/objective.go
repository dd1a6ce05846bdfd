// Package objective evaluates placement quality as half-perimeter wirelength.
//
// For each net the bounding box over the positions of every incident gate
// and pad is taken and its half perimeter (width + height) is added to the
// total. A net with a single terminal contributes exactly zero. A net with
// no terminals is degenerate; it also contributes zero and is reported by
// [Degenerate] so callers can warn about it.
//
// Evaluation is side-effect free and allocation free, so it is safe to call
// once per trial move in the annealer's inner loop.
package objective

import (
	"math"

	perrors "github.com/matzehuels/netplace/pkg/errors"
	"github.com/matzehuels/netplace/pkg/netlist"
)

// HPWL returns the total half-perimeter wirelength of the current placement.
func HPWL(nl *netlist.Netlist) float64 {
	total := 0.0
	for i := range nl.Nets() {
		total += netHPWL(nl, &nl.Nets()[i])
	}
	return total
}

// NetHPWL returns the half-perimeter wirelength of one net. Unknown net ids
// contribute zero.
func NetHPWL(nl *netlist.Netlist, netID int) float64 {
	n := nl.Net(netID)
	if n == nil {
		return 0
	}
	return netHPWL(nl, n)
}

// SubsetHPWL sums the wirelength of the listed nets. Each id is counted once
// per occurrence, so callers wanting a set must deduplicate first.
func SubsetHPWL(nl *netlist.Netlist, netIDs []int) float64 {
	total := 0.0
	for _, id := range netIDs {
		total += NetHPWL(nl, id)
	}
	return total
}

// PerNet returns the wirelength of every net, indexed by net index.
func PerNet(nl *netlist.Netlist) []float64 {
	out := make([]float64, nl.NetCount())
	for i := range nl.Nets() {
		out[i] = netHPWL(nl, &nl.Nets()[i])
	}
	return out
}

// Degenerate lists nets with fewer than two terminals. Their wirelength is
// defined as zero and placement continues; the warnings are informational.
func Degenerate(nl *netlist.Netlist) []perrors.Warning {
	var out []perrors.Warning
	for _, n := range nl.Nets() {
		switch n.Terminals() {
		case 0:
			out = append(out, perrors.Warning{
				Code:    perrors.ErrCodeDegenerateInput,
				Net:     n.ID,
				Message: "net has no terminals",
			})
		case 1:
			out = append(out, perrors.Warning{
				Code:      perrors.ErrCodeDegenerateInput,
				Net:       n.ID,
				Terminals: 1,
				Message:   "net has a single terminal",
			})
		}
	}
	return out
}

func netHPWL(nl *netlist.Netlist, n *netlist.Net) float64 {
	if n.Terminals() < 2 {
		return 0
	}
	xMin, yMin := math.Inf(1), math.Inf(1)
	xMax, yMax := math.Inf(-1), math.Inf(-1)
	gates := nl.Gates()
	for _, id := range n.Gates {
		p := gates[netlist.Index(id)].Pos
		xMin, xMax = min(xMin, p.X), max(xMax, p.X)
		yMin, yMax = min(yMin, p.Y), max(yMax, p.Y)
	}
	pads := nl.Pads()
	for _, id := range n.Pads {
		p := pads[netlist.Index(id)].Pos
		xMin, xMax = min(xMin, p.X), max(xMax, p.X)
		yMin, yMax = min(yMin, p.Y), max(yMax, p.Y)
	}
	return (xMax - xMin) + (yMax - yMin)
}

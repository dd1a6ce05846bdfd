package netlist

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Geometry is a read-only snapshot of a placement for renderers and
// exporters. It shares no memory with the netlist it was taken from.
type Geometry struct {
	Gates []r2.Vec // gate positions by index
	Pads  []r2.Vec // pad positions by index
	Nets  []Net    // net membership by index
}

// Geometry returns a deep-copied snapshot of the current placement.
func (nl *Netlist) Geometry() Geometry {
	g := Geometry{
		Gates: nl.Positions(),
		Pads:  make([]r2.Vec, len(nl.pads)),
		Nets:  make([]Net, len(nl.nets)),
	}
	for i, p := range nl.pads {
		g.Pads[i] = p.Pos
	}
	for i, n := range nl.nets {
		g.Nets[i] = Net{
			ID:    n.ID,
			Gates: append([]int(nil), n.Gates...),
			Pads:  append([]int(nil), n.Pads...),
		}
	}
	return g
}

// Bounds returns the smallest box containing every gate and pad. An empty
// snapshot yields the zero box.
func (g Geometry) Bounds() r2.Box {
	if len(g.Gates)+len(g.Pads) == 0 {
		return r2.Box{}
	}
	b := r2.Box{
		Min: r2.Vec{X: math.Inf(1), Y: math.Inf(1)},
		Max: r2.Vec{X: math.Inf(-1), Y: math.Inf(-1)},
	}
	for _, set := range [][]r2.Vec{g.Gates, g.Pads} {
		for _, p := range set {
			b.Min.X = min(b.Min.X, p.X)
			b.Min.Y = min(b.Min.Y, p.Y)
			b.Max.X = max(b.Max.X, p.X)
			b.Max.Y = max(b.Max.Y, p.Y)
		}
	}
	return b
}

// Terminals returns the positions of every gate and pad on the net with the
// given id, gates first.
func (g Geometry) Terminals(netID int) []r2.Vec {
	n := g.Nets[Index(netID)]
	out := make([]r2.Vec, 0, n.Terminals())
	for _, id := range n.Gates {
		out = append(out, g.Gates[Index(id)])
	}
	for _, id := range n.Pads {
		out = append(out, g.Pads[Index(id)])
	}
	return out
}

// Clamp limits v to the box on both axes.
func Clamp(v r2.Vec, box r2.Box) r2.Vec {
	return r2.Vec{
		X: min(max(v.X, box.Min.X), box.Max.X),
		Y: min(max(v.Y, box.Min.Y), box.Max.Y),
	}
}

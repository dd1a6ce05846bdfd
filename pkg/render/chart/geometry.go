package chart

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/plot/plotter"

	"github.com/matzehuels/netplace/pkg/netlist"
)

func points(vs []r2.Vec) plotter.XYs {
	xys := make(plotter.XYs, len(vs))
	for i, v := range vs {
		xys[i].X, xys[i].Y = v.X, v.Y
	}
	return xys
}

// outline returns the closed rectangle around a net's terminals.
func outline(g netlist.Geometry, netID int) plotter.XYs {
	lo := r2.Vec{X: math.Inf(1), Y: math.Inf(1)}
	hi := r2.Vec{X: math.Inf(-1), Y: math.Inf(-1)}
	for _, t := range g.Terminals(netID) {
		lo.X, lo.Y = min(lo.X, t.X), min(lo.Y, t.Y)
		hi.X, hi.Y = max(hi.X, t.X), max(hi.Y, t.Y)
	}
	return plotter.XYs{
		{X: lo.X, Y: lo.Y},
		{X: hi.X, Y: lo.Y},
		{X: hi.X, Y: hi.Y},
		{X: lo.X, Y: hi.Y},
		{X: lo.X, Y: lo.Y},
	}
}

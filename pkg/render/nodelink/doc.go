// Package nodelink renders a placed netlist as a Graphviz diagram.
//
// # Overview
//
// Gates become circles and pads become boxes, each pinned at its placed
// coordinate with a trailing "!" so the neato engine keeps it in place.
// Two-terminal nets are drawn as a single edge. Larger nets get a small
// point node at their centroid with one edge per terminal, which reads as
// the star model of the net.
//
// # Usage
//
//	dot := nodelink.ToDOT(nl.Geometry(), nodelink.Options{Labels: true})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// # Options
//
//   - Scale: points per placement unit (default 4)
//   - Labels: print gate and pad ids inside their shapes
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG
// rendering. No external Graphviz installation is needed.
package nodelink

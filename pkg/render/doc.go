// Package render turns placement snapshots into pictures.
//
// # Overview
//
// Renderers consume [netlist.Geometry], a detached copy of gate, pad and net
// positions, and never touch the netlist itself. Two families are provided:
//
//   - Charts (in [chart] subpackage): placement scatter plots and HPWL
//     convergence curves drawn with gonum/plot, encoded as PNG, SVG or PDF
//   - Net diagrams (in [nodelink] subpackage): Graphviz DOT with every gate
//     and pad pinned at its placed coordinate, rendered to SVG in process
//
// # Charts
//
//	p, err := chart.Placement(nl.Geometry(), chart.Options{Nets: true})
//	png, err := chart.Encode(p, chart.FormatPNG, chart.Options{})
//
// # Net Diagrams
//
//	dot := nodelink.ToDOT(nl.Geometry(), nodelink.Options{})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// [chart]: github.com/matzehuels/netplace/pkg/render/chart
// [nodelink]: github.com/matzehuels/netplace/pkg/render/nodelink
package render

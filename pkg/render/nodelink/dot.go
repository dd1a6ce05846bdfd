package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/goccy/go-graphviz"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/matzehuels/netplace/pkg/netlist"
)

// DefaultScale is the number of points drawn per placement unit.
const DefaultScale = 4.0

// Options configures net diagram rendering.
type Options struct {
	// Scale converts placement units to points. Zero means [DefaultScale].
	Scale float64
	// Labels prints ids inside gate and pad shapes.
	Labels bool
}

// ToDOT converts a placement snapshot to Graphviz DOT with pinned node
// positions. The result is deterministic for a given snapshot.
func ToDOT(g netlist.Geometry, opts Options) string {
	scale := opts.Scale
	if scale <= 0 {
		scale = DefaultScale
	}

	var buf bytes.Buffer
	buf.WriteString("graph G {\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  splines=false;\n")
	buf.WriteString("  node [shape=circle, style=filled, fillcolor=\"#dbe8f7\", fixedsize=true, width=0.3, fontsize=8];\n")
	buf.WriteString("  edge [color=\"#8a8a8a\", penwidth=0.6];\n")
	buf.WriteString("\n")

	for i, p := range g.Gates {
		id := netlist.ID(i)
		fmt.Fprintf(&buf, "  %q [%s];\n", gateName(id), attrs(label(id, opts.Labels), p, scale))
	}
	for i, p := range g.Pads {
		id := netlist.ID(i)
		fmt.Fprintf(&buf, "  %q [shape=box, fillcolor=\"#f4d6c9\", %s];\n", padName(id), attrs(label(id, opts.Labels), p, scale))
	}

	buf.WriteString("\n")
	for _, n := range g.Nets {
		var names []string
		for _, id := range n.Gates {
			names = append(names, gateName(id))
		}
		for _, id := range n.Pads {
			names = append(names, padName(id))
		}
		switch {
		case len(names) < 2:
			continue
		case len(names) == 2:
			fmt.Fprintf(&buf, "  %q -- %q;\n", names[0], names[1])
		default:
			hub := fmt.Sprintf("n%d", n.ID)
			c := centroid(g.Terminals(n.ID))
			fmt.Fprintf(&buf, "  %q [shape=point, width=0.05, label=\"\", pos=%q];\n", hub, pos(c, scale))
			for _, name := range names {
				fmt.Fprintf(&buf, "  %q -- %q;\n", hub, name)
			}
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func gateName(id int) string { return "g" + strconv.Itoa(id) }
func padName(id int) string  { return "p" + strconv.Itoa(id) }

func label(id int, show bool) string {
	if !show {
		return ""
	}
	return strconv.Itoa(id)
}

func attrs(label string, p r2.Vec, scale float64) string {
	return fmt.Sprintf("label=%q, pos=%q", label, pos(p, scale))
}

// pos formats a pinned neato position in points.
func pos(p r2.Vec, scale float64) string {
	return strconv.FormatFloat(p.X*scale, 'f', 2, 64) + "," + strconv.FormatFloat(p.Y*scale, 'f', 2, 64) + "!"
}

func centroid(ps []r2.Vec) r2.Vec {
	var c r2.Vec
	for _, p := range ps {
		c = r2.Add(c, p)
	}
	return r2.Scale(1/float64(len(ps)), c)
}

// RenderSVG lays out a DOT graph with the neato engine, which honours
// pinned positions, and returns SVG bytes.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()
	gv.SetLayout(graphviz.NEATO)

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces the Graphviz root element so the diagram scales
// with its container.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}

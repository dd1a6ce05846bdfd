// Package chart draws placements and convergence curves with gonum/plot.
//
// [Placement] plots gates as circles and pads as squares; with
// [Options.Nets] each net's bounding box is outlined, so the drawn perimeter
// is twice the net's contribution to HPWL. [Convergence] plots one HPWL
// curve per stage against the round number. Both return a *plot.Plot that
// [Encode] turns into PNG, SVG or PDF bytes.
package chart

import (
	"bytes"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	perrors "github.com/matzehuels/netplace/pkg/errors"
	"github.com/matzehuels/netplace/pkg/netlist"
)

// Output formats accepted by [Encode].
const (
	FormatPNG = "png"
	FormatSVG = "svg"
	FormatPDF = "pdf"
)

// Default canvas size.
const (
	DefaultWidth  = 6 * vg.Inch
	DefaultHeight = 6 * vg.Inch
)

var (
	gateColor = color.RGBA{R: 0x2b, G: 0x6c, B: 0xb0, A: 0xff}
	padColor  = color.RGBA{R: 0xc0, G: 0x4b, B: 0x2a, A: 0xff}
	netColor  = color.RGBA{R: 0x8a, G: 0x8a, B: 0x8a, A: 0x80}
)

// Options configures a chart.
type Options struct {
	Title  string
	Width  vg.Length // zero means DefaultWidth
	Height vg.Length // zero means DefaultHeight
	// Nets outlines the bounding box of every net with two or more terminals.
	Nets bool
}

func (o Options) size() (vg.Length, vg.Length) {
	w, h := o.Width, o.Height
	if w <= 0 {
		w = DefaultWidth
	}
	if h <= 0 {
		h = DefaultHeight
	}
	return w, h
}

// ValidateFormat checks that format is supported by [Encode].
func ValidateFormat(format string) error {
	switch format {
	case FormatPNG, FormatSVG, FormatPDF:
		return nil
	}
	return perrors.New(perrors.ErrCodeInvalidInput, "invalid chart format: %q (must be one of: png, svg, pdf)", format)
}

// Placement plots a placement snapshot.
func Placement(g netlist.Geometry, opts Options) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"
	p.Add(plotter.NewGrid())

	if opts.Nets {
		for _, n := range g.Nets {
			if n.Terminals() < 2 {
				continue
			}
			l, err := plotter.NewLine(outline(g, n.ID))
			if err != nil {
				return nil, fmt.Errorf("net %d: %w", n.ID, err)
			}
			l.LineStyle.Color = netColor
			l.LineStyle.Width = vg.Points(0.5)
			p.Add(l)
		}
	}

	if len(g.Gates) > 0 {
		s, err := plotter.NewScatter(points(g.Gates))
		if err != nil {
			return nil, fmt.Errorf("gates: %w", err)
		}
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		s.GlyphStyle.Color = gateColor
		s.GlyphStyle.Radius = vg.Points(2.5)
		p.Add(s)
		p.Legend.Add("gates", s)
	}
	if len(g.Pads) > 0 {
		s, err := plotter.NewScatter(points(g.Pads))
		if err != nil {
			return nil, fmt.Errorf("pads: %w", err)
		}
		s.GlyphStyle.Shape = draw.BoxGlyph{}
		s.GlyphStyle.Color = padColor
		s.GlyphStyle.Radius = vg.Points(3)
		p.Add(s)
		p.Legend.Add("pads", s)
	}

	if b := g.Bounds(); b.Max.X > b.Min.X || b.Max.Y > b.Min.Y {
		mx := 0.05 * max(b.Max.X-b.Min.X, 1)
		my := 0.05 * max(b.Max.Y-b.Min.Y, 1)
		p.X.Min, p.X.Max = b.Min.X-mx, b.Max.X+mx
		p.Y.Min, p.Y.Max = b.Min.Y-my, b.Max.Y+my
	}
	p.Legend.Top = true
	return p, nil
}

// Series is one named HPWL curve.
type Series struct {
	Name   string
	Values []float64
}

// Convergence plots each series against its sample index. Empty series are
// skipped.
func Convergence(series []Series, opts Options) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = "round"
	p.Y.Label.Text = "HPWL"
	p.Add(plotter.NewGrid())

	for i, s := range series {
		if len(s.Values) == 0 {
			continue
		}
		xys := make(plotter.XYs, len(s.Values))
		for k, v := range s.Values {
			xys[k].X = float64(k)
			xys[k].Y = v
		}
		l, err := plotter.NewLine(xys)
		if err != nil {
			return nil, fmt.Errorf("series %s: %w", s.Name, err)
		}
		l.LineStyle.Color = plotutil.Color(i)
		l.LineStyle.Width = vg.Points(1)
		p.Add(l)
		p.Legend.Add(s.Name, l)
	}
	p.Legend.Top = true
	return p, nil
}

// Encode renders p in the given format.
func Encode(p *plot.Plot, format string, opts Options) ([]byte, error) {
	if err := ValidateFormat(format); err != nil {
		return nil, err
	}
	w, h := opts.size()
	wt, err := p.WriterTo(w, h, format)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", format, err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

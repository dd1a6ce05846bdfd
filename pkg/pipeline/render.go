package pipeline

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"gonum.org/v1/plot/vg"

	"github.com/matzehuels/netplace/pkg/cache"
	perrors "github.com/matzehuels/netplace/pkg/errors"
	"github.com/matzehuels/netplace/pkg/netlist"
	"github.com/matzehuels/netplace/pkg/observability"
	"github.com/matzehuels/netplace/pkg/render/chart"
	"github.com/matzehuels/netplace/pkg/render/nodelink"
)

// Artifact kinds produced by [Render].
const (
	ArtifactPlacement   = "placement"   // scatter of gates and pads
	ArtifactConvergence = "convergence" // HPWL per round and stage
	ArtifactDOT         = "dot"         // Graphviz source with pinned positions
	ArtifactDiagram     = "diagram"     // Graphviz SVG of the DOT source
)

// ValidArtifacts is the set of supported artifact kinds.
var ValidArtifacts = map[string]bool{
	ArtifactPlacement:   true,
	ArtifactConvergence: true,
	ArtifactDOT:         true,
	ArtifactDiagram:     true,
}

// RenderOptions configures artifact rendering.
type RenderOptions struct {
	Kinds  []string `json:"kinds,omitempty"`
	Format string   `json:"format,omitempty"` // chart format: png, svg or pdf
	Width  float64  `json:"width,omitempty"`  // chart width in inches
	Height float64  `json:"height,omitempty"` // chart height in inches
	Nets   bool     `json:"nets,omitempty"`   // outline net bounding boxes
	Title  string   `json:"title,omitempty"`
}

// ValidateAndSetDefaults applies defaults and checks kinds and format.
func (o *RenderOptions) ValidateAndSetDefaults() error {
	if len(o.Kinds) == 0 {
		o.Kinds = []string{ArtifactPlacement}
	}
	for _, k := range o.Kinds {
		if !ValidArtifacts[k] {
			return perrors.New(perrors.ErrCodeInvalidInput, "invalid artifact: %q (must be one of: placement, convergence, dot, diagram)", k)
		}
	}
	if o.Format == "" {
		o.Format = chart.FormatSVG
	}
	if o.Width <= 0 {
		o.Width = float64(chart.DefaultWidth / vg.Inch)
	}
	if o.Height <= 0 {
		o.Height = float64(chart.DefaultHeight / vg.Inch)
	}
	return chart.ValidateFormat(o.Format)
}

// ArtifactKeyOpts returns cache key options for one artifact kind.
func (o *RenderOptions) ArtifactKeyOpts(kind string) cache.ArtifactKeyOpts {
	format := o.Format
	switch kind {
	case ArtifactDOT:
		format = "dot"
	case ArtifactDiagram:
		format = chart.FormatSVG
	}
	return cache.ArtifactKeyOpts{
		Kind:   kind,
		Format: format,
		Width:  o.Width,
		Height: o.Height,
		Nets:   o.Nets,
	}
}

func (o *RenderOptions) chartOptions() chart.Options {
	return chart.Options{
		Title:  o.Title,
		Width:  vg.Length(o.Width) * vg.Inch,
		Height: vg.Length(o.Height) * vg.Inch,
		Nets:   o.Nets,
	}
}

// Render produces the requested artifacts for a placement snapshot. stages
// supplies the convergence curves.
func Render(ctx context.Context, g netlist.Geometry, stages []StageResult, opts RenderOptions) (map[string][]byte, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	observability.Pipeline().OnRenderStart(ctx, opts.Kinds)
	start := time.Now()
	artifacts, err := render(ctx, g, stages, opts)
	observability.Pipeline().OnRenderComplete(ctx, opts.Kinds, time.Since(start), err)
	return artifacts, err
}

func render(ctx context.Context, g netlist.Geometry, stages []StageResult, opts RenderOptions) (map[string][]byte, error) {
	artifacts := make(map[string][]byte, len(opts.Kinds))
	co := opts.chartOptions()

	for _, kind := range opts.Kinds {
		var data []byte
		var err error

		switch kind {
		case ArtifactPlacement:
			p, perr := chart.Placement(g, co)
			if perr != nil {
				return nil, fmt.Errorf("render %s: %w", kind, perr)
			}
			data, err = chart.Encode(p, opts.Format, co)
		case ArtifactConvergence:
			series := make([]chart.Series, 0, len(stages))
			for _, s := range stages {
				series = append(series, chart.Series{Name: s.Name, Values: s.Report.History})
			}
			p, perr := chart.Convergence(series, co)
			if perr != nil {
				return nil, fmt.Errorf("render %s: %w", kind, perr)
			}
			data, err = chart.Encode(p, opts.Format, co)
		case ArtifactDOT:
			data = []byte(nodelink.ToDOT(g, nodelink.Options{Labels: true}))
		case ArtifactDiagram:
			data, err = nodelink.RenderSVG(ctx, nodelink.ToDOT(g, nodelink.Options{}))
		}

		if err != nil {
			return nil, fmt.Errorf("render %s: %w", kind, err)
		}
		artifacts[kind] = data
	}
	return artifacts, nil
}

// RenderWithCacheInfo renders artifacts for a finished run with caching and
// returns whether every artifact came from the cache. g must be the
// geometry of result's placement.
func (r *Runner) RenderWithCacheInfo(ctx context.Context, result *Result, g netlist.Geometry, opts RenderOptions) (map[string][]byte, bool, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, false, err
	}

	// Try to get all kinds from cache
	artifacts := make(map[string][]byte, len(opts.Kinds))
	for _, kind := range opts.Kinds {
		key := r.Keyer.ArtifactKey(result.PlacementHash, opts.ArtifactKeyOpts(kind))
		data, hit, err := r.Cache.Get(ctx, key)
		if err != nil || !hit {
			observability.Cache().OnCacheMiss(ctx, keyTypeArtifact)
			break
		}
		observability.Cache().OnCacheHit(ctx, keyTypeArtifact)
		artifacts[kind] = data
	}
	if len(artifacts) == len(opts.Kinds) {
		return artifacts, true, nil // All artifacts from cache
	}

	rendered, err := Render(ctx, g, result.Stages, opts)
	if err != nil {
		return nil, false, err
	}

	// Cache each kind
	for _, kind := range slices.Sorted(maps.Keys(rendered)) {
		data := rendered[kind]
		key := r.Keyer.ArtifactKey(result.PlacementHash, opts.ArtifactKeyOpts(kind))
		if err := r.Cache.Set(ctx, key, data, cache.TTLArtifact); err == nil {
			observability.Cache().OnCacheSet(ctx, keyTypeArtifact, len(data))
		}
	}
	return rendered, false, nil // Cache miss
}

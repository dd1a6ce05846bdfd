package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/netplace/pkg/cache"
	perrors "github.com/matzehuels/netplace/pkg/errors"
	placeio "github.com/matzehuels/netplace/pkg/io"
	"github.com/matzehuels/netplace/pkg/netlist"
	"github.com/matzehuels/netplace/pkg/pipeline"
)

// renderFlags holds the command-line flags of the render command.
type renderFlags struct {
	place     placeFlags // used when no placement file is given
	placement string
	kinds     string
	output    string
	render    pipeline.RenderOptions
}

// renderCommand creates the render command that draws a placement.
func (c *CLI) renderCommand() *cobra.Command {
	var f renderFlags

	cmd := &cobra.Command{
		Use:   "render [netlist]",
		Short: "Render a placement as a chart or diagram",
		Long: `Render a placement as a chart or diagram.

Artifact types (--type, comma-separated):

  placement    scatter of gates and pads, optionally with net bounding boxes
  convergence  HPWL per round for each stage
  dot          Graphviz source with pinned gate positions
  diagram      the dot source laid out by Graphviz as SVG

With --placement the stored placement is drawn as is. Without it the
netlist is placed first using the same flags as 'place', which is served
from the cache when 'place' already ran with those parameters. The
convergence chart needs stage history and is only available without
--placement.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f.render.Kinds = parseList(f.kinds)
			if err := f.render.ValidateAndSetDefaults(); err != nil {
				return err
			}
			if f.placement != "" && slices.Contains(f.render.Kinds, pipeline.ArtifactConvergence) {
				return perrors.New(perrors.ErrCodeInvalidInput, "convergence needs stage history; drop --placement to place the netlist first")
			}
			opts, err := f.place.options(cmd)
			if err != nil {
				return err
			}
			opts.Logger = c.Logger
			if err := opts.ValidateAndSetDefaults(); err != nil {
				return err
			}
			return c.runRender(cmd.Context(), args[0], opts, f)
		},
	}

	cmd.Flags().StringVarP(&f.placement, "placement", "p", "", "placement JSON file (from 'place')")
	cmd.Flags().StringVarP(&f.kinds, "type", "t", "", "artifact type(s): placement (default), convergence, dot, diagram")
	cmd.Flags().StringVarP(&f.render.Format, "format", "f", "", "chart format: svg (default), png, pdf")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output file (single type) or base path (default: <input>)")
	cmd.Flags().Float64Var(&f.render.Width, "width", 0, "chart width in inches (default 6)")
	cmd.Flags().Float64Var(&f.render.Height, "height", 0, "chart height in inches (default 6)")
	cmd.Flags().BoolVar(&f.render.Nets, "nets", false, "outline net bounding boxes")
	cmd.Flags().StringVar(&f.render.Title, "title", "", "chart title")

	// Placement flags for the no --placement case.
	cmd.Flags().StringVarP(&f.place.config, "config", "c", "", "TOML or YAML parameter file")
	cmd.Flags().StringVarP(&f.place.stages, "stages", "s", "", "comma-separated stages")
	cmd.Flags().Uint64Var(&f.place.seed, "seed", pipeline.DefaultSeed, "random seed")
	f.place.cache.register(cmd)

	return cmd
}

// runRender obtains a placement and writes each requested artifact.
func (c *CLI) runRender(ctx context.Context, input string, opts pipeline.Options, f renderFlags) error {
	nl, err := placeio.ImportNetlist(input)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, f.place.cache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	var result *pipeline.Result
	if f.placement != "" {
		if err := placeio.ImportJSON(f.placement, nl); err != nil {
			return err
		}
		result, err = staticResult(nl)
		if err != nil {
			return err
		}
	} else {
		result, err = c.placeWithSpinner(ctx, runner, nl, opts)
		if err != nil {
			return err
		}
	}

	spinner := newSpinner(ctx, fmt.Sprintf("Rendering %s...", strings.Join(f.render.Kinds, ", ")))
	spinner.Start()
	artifacts, cacheHit, err := runner.RenderWithCacheInfo(ctx, result, nl.Geometry(), f.render)
	if err != nil {
		spinner.StopWithError("Render failed")
		return fmt.Errorf("render: %w", err)
	}
	spinner.Stop()

	paths, err := writeArtifacts(artifacts, f.render, input, f.output)
	if err != nil {
		return err
	}

	printSuccess("Render complete")
	for _, p := range paths {
		printFile(p)
	}
	printStats(nl.GateCount(), nl.NetCount(), nl.PadCount(), cacheHit)
	return nil
}

// staticResult wraps the current placement of nl as a pipeline result, so
// rendered artifacts share cache keys with a run that produced it.
func staticResult(nl *netlist.Netlist) (*pipeline.Result, error) {
	p := placeio.NewPlacement(nl)
	hash, err := cache.HashJSON(p)
	if err != nil {
		return nil, fmt.Errorf("hash placement: %w", err)
	}
	return &pipeline.Result{
		PlacementHash: hash,
		Placement:     p,
		Before:        p.HPWL,
		After:         p.HPWL,
	}, nil
}

// artifactExt returns the file extension of an artifact kind.
func artifactExt(kind, format string) string {
	switch kind {
	case pipeline.ArtifactDOT:
		return "dot"
	case pipeline.ArtifactDiagram:
		return "svg"
	default:
		return format
	}
}

// artifactPaths maps each kind to its output path. A single artifact goes
// to output verbatim when output has an extension; otherwise files are
// named <base>.<kind>.<ext>.
func artifactPaths(kinds []string, format, input, output string) map[string]string {
	paths := make(map[string]string, len(kinds))
	if len(kinds) == 1 && output != "" && filepath.Ext(output) != "" {
		paths[kinds[0]] = output
		return paths
	}
	base := output
	if base == "" {
		base = strings.TrimSuffix(input, filepath.Ext(input))
	}
	for _, k := range kinds {
		paths[k] = fmt.Sprintf("%s.%s.%s", base, k, artifactExt(k, format))
	}
	return paths
}

// writeArtifacts writes rendered artifacts and returns the paths in kind order.
func writeArtifacts(artifacts map[string][]byte, opts pipeline.RenderOptions, input, output string) ([]string, error) {
	paths := artifactPaths(opts.Kinds, opts.Format, input, output)
	written := make([]string, 0, len(opts.Kinds))
	for _, kind := range opts.Kinds {
		path := paths[kind]
		if err := os.WriteFile(path, artifacts[kind], 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}

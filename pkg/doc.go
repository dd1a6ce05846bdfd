// Package pkg provides the core libraries for netplace, a standard-cell
// placement engine.
//
// # Overview
//
// netplace reads a netlist of movable gates, fixed pads and multi-terminal
// nets, and assigns every gate a position that keeps connected gates close.
// Quality is measured by half-perimeter wirelength (HPWL). The pkg directory
// is organized into four areas:
//
//  1. Model - [netlist] and the [objective] that scores it
//  2. Placers - [place/quadratic], [place/force] and [place/anneal]
//  3. Orchestration - [pipeline], [cache] and [observability]
//  4. Exchange - [io] for files and [render] for pictures
//
// # Architecture
//
// The typical data flow through netplace:
//
//	netlist text file
//	         ↓
//	    [io] package (parse into a netlist)
//	         ↓
//	    [pipeline] package (run stages: quadratic → force → anneal)
//	         ↓
//	    [objective] package (HPWL before and after each stage)
//	         ↓
//	    placement JSON, listings, charts and DOT diagrams
//
// # Quick Start
//
// Place a netlist with the default stages:
//
//	import (
//	    "context"
//	    "github.com/matzehuels/netplace/pkg/cache"
//	    placeio "github.com/matzehuels/netplace/pkg/io"
//	    "github.com/matzehuels/netplace/pkg/pipeline"
//	)
//
//	nl, _ := placeio.ImportNetlist("benchmarks/toy1")
//
//	opts := pipeline.Options{Seed: 7}
//	_ = opts.ValidateAndSetDefaults()
//
//	runner := pipeline.NewRunner(cache.NewNullCache(), cache.NewDefaultKeyer(), nil)
//	result, _ := runner.Execute(context.Background(), nl, opts)
//	fmt.Printf("HPWL %.2f → %.2f\n", result.Before, result.After)
//
// # Main Packages
//
// ## Model
//
// [netlist] - Gates, pads and nets with dense 1-based ids. Topology is fixed
// at construction; only gate positions and solver state change.
//
// [objective] - HPWL for the whole netlist, a single net or a subset of nets,
// plus detection of degenerate nets that cannot contribute wirelength.
//
// ## Placers
//
// [place/quadratic] - Global placement by minimizing squared wirelength under
// a clique net model. Solves the sparse Laplacian system per axis.
//
// [place/force] - Zero-force-target relocation and an iterative force
// simulation with damping and velocity limits.
//
// [place/anneal] - Simulated annealing over gate swaps and displacements with
// an adaptive cooling schedule and a freeze criterion.
//
// ## Orchestration
//
// [pipeline] - Validated options, TOML/YAML configuration, the staged runner
// and artifact rendering. Used by both the CLI and the HTTP API.
//
// [cache] - Content-addressed result cache with file, Redis and null
// backends. Keys hash the netlist together with every placement option.
//
// [observability] - Hook interfaces for pipeline stages, cache lookups and
// HTTP requests, with a logging implementation.
//
// ## Exchange
//
// [io] - Netlist text parsing, placement JSON, plain listings and CSV
// annealing traces.
//
// [render] - Placement and convergence charts via gonum/plot, and Graphviz
// net diagrams.
//
// [errors] - Coded errors shared by every package so entry points can map
// failures to exit codes and HTTP statuses.
//
// [buildinfo] - Version metadata injected at link time.
//
// # Testing
//
// Run tests:
//
//	go test ./pkg/...                  # All tests
//	go test ./pkg/place/...            # Placers only
//	go test -run Example ./pkg/...     # Examples only
//
// [netlist]: https://pkg.go.dev/github.com/matzehuels/netplace/pkg/netlist
// [objective]: https://pkg.go.dev/github.com/matzehuels/netplace/pkg/objective
// [place/quadratic]: https://pkg.go.dev/github.com/matzehuels/netplace/pkg/place/quadratic
// [place/force]: https://pkg.go.dev/github.com/matzehuels/netplace/pkg/place/force
// [place/anneal]: https://pkg.go.dev/github.com/matzehuels/netplace/pkg/place/anneal
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/netplace/pkg/pipeline
// [cache]: https://pkg.go.dev/github.com/matzehuels/netplace/pkg/cache
// [observability]: https://pkg.go.dev/github.com/matzehuels/netplace/pkg/observability
// [io]: https://pkg.go.dev/github.com/matzehuels/netplace/pkg/io
// [render]: https://pkg.go.dev/github.com/matzehuels/netplace/pkg/render
// [errors]: https://pkg.go.dev/github.com/matzehuels/netplace/pkg/errors
// [buildinfo]: https://pkg.go.dev/github.com/matzehuels/netplace/pkg/buildinfo
package pkg

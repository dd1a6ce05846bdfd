// Package place defines the contract shared by the placement algorithms.
//
// Three strategies operate on a [netlist.Netlist] in place:
//
//   - quadratic: analytic solve of the net-spring system, a good global start
//   - force: zero-force-target legalization and spring/repulsion simulation
//   - anneal: Metropolis refinement by random pairwise swaps
//
// Every placer implements [Placer] and reports wirelength before and after
// the run. Placers are synchronous and single-threaded; the context is only
// consulted between rounds, so it acts as an externally observed budget
// rather than a preemption point.
package place

import (
	"context"

	"github.com/matzehuels/netplace/pkg/netlist"
	"github.com/matzehuels/netplace/pkg/objective"
)

// Placer updates gate positions of a netlist in place.
type Placer interface {
	Name() string
	Place(ctx context.Context, nl *netlist.Netlist) (Report, error)
}

// Report summarizes a placement run.
type Report struct {
	Placer  string
	Before  float64 // HPWL before the run
	After   float64 // HPWL after the run
	Best    float64 // lowest HPWL observed during the run
	Rounds  int     // completed outer iterations
	Trials  int     // inner trial moves, where applicable
	Accepts int     // accepted trial moves, where applicable

	// Relocations counts zero-force targets that were occupied and had to be
	// moved to the nearest free grid cell.
	Relocations int

	// History holds one HPWL sample per completed round. Placers that
	// record an initial sample put it first.
	History []float64

	// Activity holds the mean gate speed per round of a force simulation.
	Activity []float64

	// Residual holds the relative residual per axis of an analytic solve.
	Residual [2]float64

	// Interrupted is set when the run stopped early because ctx was done.
	Interrupted bool
}

// Improvement returns Before - After; positive values mean shorter wires.
func (r Report) Improvement() float64 { return r.Before - r.After }

// Progress is invoked after each round with the round number (1-based) and
// the HPWL at the end of that round.
type Progress func(round int, hpwl float64)

// Begin starts a report for the named placer with the current wirelength.
func Begin(name string, nl *netlist.Netlist) Report {
	h := objective.HPWL(nl)
	return Report{Placer: name, Before: h, After: h, Best: h}
}

// Finish records the final wirelength.
func (r *Report) Finish(nl *netlist.Netlist) {
	r.After = objective.HPWL(nl)
	r.Best = min(r.Best, r.After)
}

// Stop reports whether ctx is done and marks the report as interrupted if so.
func (r *Report) Stop(ctx context.Context) bool {
	if ctx.Err() != nil {
		r.Interrupted = true
		return true
	}
	return false
}

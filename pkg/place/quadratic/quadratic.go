// Package quadratic implements analytic placement by minimizing the sum of
// squared net lengths.
//
// Each net is expanded into a clique of unit springs and each pad into a
// unit spring pulling the gates on its net toward the pad. Minimizing the
// spring energy separates into two independent sparse linear systems
// A·x = bx and A·y = by with A the weighted graph Laplacian plus the pad
// diagonal. A is symmetric positive definite exactly when every connected
// component of the gate graph reaches a pad, which [CheckAnchors] verifies
// before any solve.
package quadratic

import (
	"context"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	perrors "github.com/matzehuels/netplace/pkg/errors"
	"github.com/matzehuels/netplace/pkg/netlist"
	"github.com/matzehuels/netplace/pkg/place"
)

// Name is the placer name used in reports and pipelines.
const Name = "quadratic"

const (
	DefaultTolerance     = 1e-10
	DefaultResidualLimit = 1e-6
)

// Config controls the linear solve. The zero value is usable and selects
// the defaults.
type Config struct {
	Solver        string  // "cg" (default) or "cholesky"
	Tolerance     float64 // CG relative residual target
	MaxIterations int     // CG iteration cap; 0 means max(100, 10·n)

	// ResidualLimit is the largest relative residual accepted after a solve.
	// A larger residual is reported as a NumericalError.
	ResidualLimit float64
}

// DefaultConfig returns the default solver configuration.
func DefaultConfig() Config {
	return Config{
		Solver:        SolverCG,
		Tolerance:     DefaultTolerance,
		ResidualLimit: DefaultResidualLimit,
	}
}

// WithDefaults fills unset fields from [DefaultConfig].
func (c Config) WithDefaults() Config {
	if c.Solver == "" {
		c.Solver = SolverCG
	}
	if c.Tolerance <= 0 {
		c.Tolerance = DefaultTolerance
	}
	if c.ResidualLimit <= 0 {
		c.ResidualLimit = DefaultResidualLimit
	}
	return c
}

// Validate rejects unknown solvers and negative iteration caps.
func (c Config) Validate() error {
	if c.MaxIterations < 0 {
		return perrors.New(perrors.ErrCodeInvalidConfig, "quadratic max iterations must not be negative, got %d", c.MaxIterations)
	}
	_, err := NewSolver(c.Solver, c)
	return err
}

// Placer is the quadratic placer.
type Placer struct {
	Config Config
}

// New returns a quadratic placer with the given configuration.
func New(cfg Config) *Placer {
	return &Placer{Config: cfg}
}

// Name implements place.Placer.
func (p *Placer) Name() string { return Name }

// Place implements place.Placer. The run is a single solve, so ctx is only
// checked once before assembly.
func (p *Placer) Place(ctx context.Context, nl *netlist.Netlist) (place.Report, error) {
	rep := place.Begin(Name, nl)
	if rep.Stop(ctx) {
		return rep, ctx.Err()
	}
	res, err := Solve(nl, p.Config)
	if err != nil {
		return rep, err
	}
	rep.Rounds = 1
	rep.Residual = res
	rep.Finish(nl)
	rep.History = []float64{rep.Before, rep.After}
	return rep, nil
}

// Solve places every gate of nl at the minimum of the quadratic objective
// and returns the relative residual of the x and y solves.
//
// Structural problems, including a connected component without a pad, are
// reported before any matrix is built. Gate positions are only written when
// both axes solved successfully and every coordinate is finite.
func Solve(nl *netlist.Netlist, cfg Config) ([2]float64, error) {
	var residual [2]float64
	cfg = cfg.WithDefaults()

	if err := nl.Validate(); err != nil {
		return residual, err
	}
	if nl.GateCount() == 0 {
		return residual, nil
	}
	if err := CheckAnchors(nl); err != nil {
		return residual, err
	}

	solver, err := NewSolver(cfg.Solver, cfg)
	if err != nil {
		return residual, err
	}
	sys := Assemble(nl)

	xs, err := solveAxis(solver, sys.A, sys.Bx, "x", cfg.ResidualLimit)
	if err != nil {
		return residual, err
	}
	ys, err := solveAxis(solver, sys.A, sys.By, "y", cfg.ResidualLimit)
	if err != nil {
		return residual, err
	}
	residual = [2]float64{xs.Residual, ys.Residual}

	pos := make([]r2.Vec, nl.GateCount())
	for i := range pos {
		pos[i] = r2.Vec{X: xs.X[i], Y: ys.X[i]}
		if !netlist.Finite(pos[i]) {
			return residual, &perrors.NumericalError{
				Op:     "residual",
				Detail: "solve produced a non-finite coordinate",
			}
		}
	}
	return residual, nl.SetPositions(pos)
}

// solveAxis runs one solve and verifies the residual independently of the
// solver's own stopping test.
func solveAxis(s Solver, a *CSR, b []float64, axis string, limit float64) (Solution, error) {
	sol, err := s.Solve(a, b)
	if err != nil {
		if ne, ok := err.(*perrors.NumericalError); ok {
			ne.Axis = axis
		}
		return sol, err
	}
	res := Residual(a, sol.X, b)
	if math.IsNaN(res) || res > limit {
		return sol, &perrors.NumericalError{
			Op:         "residual",
			Axis:       axis,
			Residual:   res,
			Iterations: sol.Iterations,
			Detail:     "solution does not satisfy the system",
		}
	}
	sol.Residual = res
	return sol, nil
}

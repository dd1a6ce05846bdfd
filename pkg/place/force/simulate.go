package force

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"

	perrors "github.com/matzehuels/netplace/pkg/errors"
	"github.com/matzehuels/netplace/pkg/netlist"
	"github.com/matzehuels/netplace/pkg/objective"
	"github.com/matzehuels/netplace/pkg/place"
)

// Simulator runs the spring/repulsion simulation as a place.Placer.
type Simulator struct {
	Config Config

	// OnRound is called after every round with the round number (1-based),
	// the HPWL and the activity of that round.
	OnRound func(round int, hpwl, activity float64)
}

// NewSimulator returns a force simulation placer.
func NewSimulator(cfg Config) *Simulator { return &Simulator{Config: cfg} }

// Name implements place.Placer.
func (s *Simulator) Name() string { return NameSimulate }

// Place implements place.Placer. Forces and velocities start from rest and
// the simulation runs for exactly Config.Rounds rounds unless ctx is done.
func (s *Simulator) Place(ctx context.Context, nl *netlist.Netlist) (place.Report, error) {
	rep := place.Begin(NameSimulate, nl)
	cfg := s.Config.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return rep, err
	}
	if err := nl.Validate(); err != nil {
		return rep, err
	}

	nl.ResetDynamics()
	// Rounds can come from a request; cap the up-front reservation.
	rep.History = make([]float64, 0, min(cfg.Rounds, DefaultRounds))
	rep.Activity = make([]float64, 0, min(cfg.Rounds, DefaultRounds))
	for round := 1; round <= cfg.Rounds; round++ {
		if rep.Stop(ctx) {
			rep.Finish(nl)
			return rep, ctx.Err()
		}
		Forces(nl, cfg)
		activity, err := Step(nl, cfg)
		if err != nil {
			rep.Finish(nl)
			return rep, fmt.Errorf("round %d: %w", round, err)
		}
		h := objective.HPWL(nl)
		rep.Rounds = round
		rep.History = append(rep.History, h)
		rep.Activity = append(rep.Activity, activity)
		rep.Best = min(rep.Best, h)
		if s.OnRound != nil {
			s.OnRound(round, h, activity)
		}
	}
	rep.Finish(nl)
	return rep, nil
}

// Forces stores the net force of every gate in its Force field.
//
// The force is the sum of three terms. Every terminal on every incident net
// pulls with a unit spring. Every other gate pushes with -Δ/|Δ|², scaled by
// Repulsion divided by the gate count; pairs closer than MinDistance are
// skipped. Viscous damping contributes -Damping times the velocity.
func Forces(nl *netlist.Netlist, cfg Config) {
	gates := nl.Gates()
	n := len(gates)
	if n == 0 {
		return
	}
	scale := cfg.Repulsion / float64(n)
	minDist2 := cfg.MinDistance * cfg.MinDistance

	for i := range gates {
		g := &gates[i]

		var hook r2.Vec
		for _, netID := range g.Nets {
			net := nl.Net(netID)
			for _, gid := range net.Gates {
				hook = r2.Add(hook, r2.Sub(nl.Gate(gid).Pos, g.Pos))
			}
			for _, pid := range net.Pads {
				hook = r2.Add(hook, r2.Sub(nl.Pad(pid).Pos, g.Pos))
			}
		}

		var rep r2.Vec
		if scale != 0 {
			for j := range gates {
				if j == i {
					continue
				}
				d := r2.Sub(gates[j].Pos, g.Pos)
				d2 := r2.Norm2(d)
				if d2 < minDist2 {
					continue
				}
				rep = r2.Sub(rep, r2.Scale(1/d2, d))
			}
			rep = r2.Scale(scale, rep)
		}

		g.Force = r2.Sub(r2.Add(hook, rep), r2.Scale(cfg.Damping, g.Velocity))
	}
}

// Step integrates one explicit Euler step from the stored forces, clamps
// positions into the box and returns the mean speed of all gates. A
// non-finite velocity or position is reported as a NumericalError and the
// offending gate is left unchanged.
func Step(nl *netlist.Netlist, cfg Config) (float64, error) {
	gates := nl.Gates()
	if len(gates) == 0 {
		return 0, nil
	}
	activity := 0.0
	for i := range gates {
		g := &gates[i]
		m := cfg.mass(g)
		if m <= 0 {
			return 0, &perrors.NumericalError{Op: "integrate", Detail: fmt.Sprintf("gate %d has non-positive mass %g", g.ID, m)}
		}
		v := r2.Add(g.Velocity, r2.Scale(cfg.DT/m, g.Force))
		p := r2.Add(g.Pos, r2.Scale(cfg.DT, v))
		if !netlist.Finite(v) || !netlist.Finite(p) {
			return 0, &perrors.NumericalError{Op: "integrate", Detail: fmt.Sprintf("gate %d diverged", g.ID)}
		}
		g.Velocity = v
		g.Pos = netlist.Clamp(p, cfg.Box)
		activity += r2.Norm(v)
	}
	return activity / float64(len(gates)), nil
}

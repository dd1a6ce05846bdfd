// Package anneal refines a placement by simulated annealing over pairwise
// coordinate swaps.
//
// Each round performs MovesPerGate·n trials. A trial picks two gates
// uniformly with replacement, swaps their positions and keeps the swap if
// the wirelength dropped, or otherwise with the Metropolis probability
// exp(-Δ/T) sampled at a resolution of 1/1000. After each round the HPWL is
// appended to the history, T is multiplied by the cooling factor and the
// [FreezeWindow] test decides whether the schedule is frozen.
//
// All randomness comes from the *rand.Rand passed in, so a fixed seed
// reproduces a run exactly.
package anneal

import (
	"context"
	"math"
	"math/rand/v2"

	"github.com/matzehuels/netplace/pkg/netlist"
	"github.com/matzehuels/netplace/pkg/objective"
	"github.com/matzehuels/netplace/pkg/place"
)

// Name is the placer name used in reports and pipelines.
const Name = "anneal"

// Trial describes one attempted swap.
type Trial struct {
	Index       int // 1-based across the whole run
	Round       int // 1-based
	I, J        int // gate ids; equal ids make a no-op trial
	Before      float64
	After       float64 // HPWL with the swap applied
	Delta       float64
	Temperature float64
	Accepted    bool
}

// Annealer is a resumable annealing run over one netlist.
type Annealer struct {
	nl  *netlist.Netlist
	cfg Config
	rng *rand.Rand

	// Trace, when set, receives every trial after it is resolved.
	Trace func(Trial)
	// OnImprove is called whenever the held placement reaches a new lowest
	// HPWL.
	OnImprove func(trial int, hpwl, temperature float64)

	state   State
	temp    float64
	round   int
	trials  int
	accepts int
	current float64
	best    float64
	history []float64

	touched []int // scratch for incremental evaluation
}

// NewAnnealer prepares a run. The initial HPWL is the first history sample.
// cfg is taken as given; call WithDefaults first to fill zero fields.
func NewAnnealer(nl *netlist.Netlist, cfg Config, rng *rand.Rand) *Annealer {
	h := objective.HPWL(nl)
	return &Annealer{
		nl:      nl,
		cfg:     cfg,
		rng:     rng,
		state:   Active,
		temp:    cfg.InitialTemperature,
		current: h,
		best:    h,
		history: []float64{h},
	}
}

// State returns the current phase.
func (a *Annealer) State() State { return a.state }

// Temperature returns the temperature of the next round.
func (a *Annealer) Temperature() float64 { return a.temp }

// Rounds returns the number of completed rounds.
func (a *Annealer) Rounds() int { return a.round }

// History returns the per-round HPWL samples, starting with the initial one.
func (a *Annealer) History() []float64 { return a.history }

// Best returns the lowest HPWL held so far.
func (a *Annealer) Best() float64 { return a.best }

// Exhausted reports whether the round cap has been reached.
func (a *Annealer) Exhausted() bool {
	return a.cfg.MaxRounds >= 0 && a.round >= a.cfg.MaxRounds
}

// Round runs one full round of trials, records the resulting HPWL, cools,
// and applies the freeze test. It returns the state after the round. A
// frozen annealer does nothing.
func (a *Annealer) Round() State {
	if a.state == Frozen {
		return a.state
	}
	a.round++
	n := a.nl.GateCount()
	for range a.cfg.MovesPerGate * n {
		a.trial(n)
	}

	h := objective.HPWL(a.nl)
	a.current = h
	a.history = append(a.history, h)
	a.temp *= a.cfg.CoolingFactor
	if a.cfg.Freeze.Frozen(a.history) {
		a.state = Frozen
	}
	return a.state
}

func (a *Annealer) trial(n int) {
	gates := a.nl.Gates()
	i := a.rng.IntN(n)
	j := a.rng.IntN(n)
	a.trials++

	t := Trial{
		Index:       a.trials,
		Round:       a.round,
		I:           netlist.ID(i),
		J:           netlist.ID(j),
		Before:      a.current,
		Temperature: a.temp,
	}

	var before float64
	if a.cfg.Incremental {
		before = objective.SubsetHPWL(a.nl, a.affected(i, j))
	}
	gates[i].Pos, gates[j].Pos = gates[j].Pos, gates[i].Pos
	if a.cfg.Incremental {
		t.Delta = objective.SubsetHPWL(a.nl, a.touched) - before
		t.After = a.current + t.Delta
	} else {
		t.After = objective.HPWL(a.nl)
		t.Delta = t.After - a.current
	}

	t.Accepted = a.accept(t.Delta)
	if t.Accepted {
		a.accepts++
		a.current = t.After
		if a.current < a.best {
			a.best = a.current
			if a.OnImprove != nil {
				a.OnImprove(a.trials, a.current, a.temp)
			}
		}
	} else {
		gates[i].Pos, gates[j].Pos = gates[j].Pos, gates[i].Pos
	}
	if a.Trace != nil {
		a.Trace(t)
	}
}

// accept applies the Metropolis rule. Downhill moves are always taken; any
// other move is taken when a uniform draw from {0, 0.001, ..., 1} falls
// below exp(-Δ/T).
func (a *Annealer) accept(delta float64) bool {
	if delta < 0 {
		return true
	}
	u := float64(a.rng.IntN(1001)) / 1000
	return u < math.Exp(-delta/a.temp)
}

// affected collects the distinct nets of gates at indexes i and j.
func (a *Annealer) affected(i, j int) []int {
	a.touched = a.touched[:0]
	gates := a.nl.Gates()
	add := func(nets []int) {
	next:
		for _, id := range nets {
			for _, seen := range a.touched {
				if seen == id {
					continue next
				}
			}
			a.touched = append(a.touched, id)
		}
	}
	add(gates[i].Nets)
	if j != i {
		add(gates[j].Nets)
	}
	return a.touched
}

// Placer runs annealing to the frozen state as a place.Placer.
type Placer struct {
	Config Config
	// Rand is the random source. When nil, a source seeded with Seed is used.
	Rand *rand.Rand
	Seed uint64

	Trace     func(Trial)
	OnImprove func(trial int, hpwl, temperature float64)
	OnRound   place.Progress
}

// New returns an annealing placer seeded with seed.
func New(cfg Config, seed uint64) *Placer {
	return &Placer{Config: cfg, Seed: seed}
}

// NewRand returns the package's standard seeded source.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0xdeadbeef))
}

// Name implements place.Placer.
func (p *Placer) Name() string { return Name }

// Place implements place.Placer. It runs rounds until the schedule freezes,
// the round cap is reached or ctx is done. Report.History starts with the
// initial HPWL.
func (p *Placer) Place(ctx context.Context, nl *netlist.Netlist) (place.Report, error) {
	rep := place.Begin(Name, nl)
	cfg := p.Config.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return rep, err
	}
	if err := nl.Validate(); err != nil {
		return rep, err
	}

	rng := p.Rand
	if rng == nil {
		rng = NewRand(p.Seed)
	}
	a := NewAnnealer(nl, cfg, rng)
	a.Trace = p.Trace
	a.OnImprove = p.OnImprove

	var err error
	for nl.GateCount() > 0 && a.State() == Active && !a.Exhausted() {
		if rep.Stop(ctx) {
			err = ctx.Err()
			break
		}
		a.Round()
		if p.OnRound != nil {
			p.OnRound(a.Rounds(), a.current)
		}
	}

	rep.Rounds = a.Rounds()
	rep.Trials = a.trials
	rep.Accepts = a.accepts
	rep.History = a.History()
	rep.Best = a.Best()
	rep.Finish(nl)
	return rep, err
}

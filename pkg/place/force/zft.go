package force

import (
	"context"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/matzehuels/netplace/pkg/netlist"
	"github.com/matzehuels/netplace/pkg/place"
)

// Move records one step of the zero-force-target pass.
type Move struct {
	Gate      int
	Target    r2.Vec // zero-force target
	Pos       r2.Vec // final position; differs from Target when relocated
	Relocated bool
}

// ZFTPlacer runs the zero-force-target pass as a place.Placer.
type ZFTPlacer struct {
	Config Config
	OnMove func(Move)
}

// NewZFT returns a zero-force-target placer.
func NewZFT(cfg Config) *ZFTPlacer { return &ZFTPlacer{Config: cfg} }

// Name implements place.Placer.
func (p *ZFTPlacer) Name() string { return NameZFT }

// Place implements place.Placer. Each moved gate counts as one round.
func (p *ZFTPlacer) Place(ctx context.Context, nl *netlist.Netlist) (place.Report, error) {
	rep := place.Begin(NameZFT, nl)
	cfg := p.Config.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return rep, err
	}
	if err := nl.Validate(); err != nil {
		return rep, err
	}

	z := newZFT(nl, cfg)
	for !z.done() {
		if rep.Stop(ctx) {
			rep.Finish(nl)
			return rep, ctx.Err()
		}
		m := z.step()
		rep.Rounds++
		if m.Relocated {
			rep.Relocations++
		}
		if p.OnMove != nil {
			p.OnMove(m)
		}
	}
	rep.Finish(nl)
	rep.History = []float64{rep.Before, rep.After}
	return rep, nil
}

// ZFT moves every gate exactly once to its zero-force target and returns the
// moves in order. Moved flags are cleared first, so the pass always covers
// the whole netlist.
func ZFT(nl *netlist.Netlist, cfg Config) []Move {
	z := newZFT(nl, cfg.WithDefaults())
	moves := make([]Move, 0, nl.GateCount())
	for !z.done() {
		moves = append(moves, z.step())
	}
	return moves
}

// Target returns the zero-force target of gate id: the mean position of
// every gate and pad terminal on its nets. The gate's own terminal is part
// of the sum, matching the connected-cell count used as the divisor. A gate
// without nets stays where it is.
func Target(nl *netlist.Netlist, id int) r2.Vec {
	g := nl.Gate(id)
	if g.ConnectedCells == 0 {
		return g.Pos
	}
	var sum r2.Vec
	for _, netID := range g.Nets {
		net := nl.Net(netID)
		for _, gid := range net.Gates {
			sum = r2.Add(sum, nl.Gate(gid).Pos)
		}
		for _, pid := range net.Pads {
			sum = r2.Add(sum, nl.Pad(pid).Pos)
		}
	}
	return r2.Scale(1/float64(g.ConnectedCells), sum)
}

// zft is the state of one pass: the netlist and an occupancy count per
// exact gate position.
type zft struct {
	nl        *netlist.Netlist
	cfg       Config
	occupied  map[r2.Vec]int
	remaining int
}

func newZFT(nl *netlist.Netlist, cfg Config) *zft {
	z := &zft{
		nl:        nl,
		cfg:       cfg,
		occupied:  make(map[r2.Vec]int, nl.GateCount()),
		remaining: nl.GateCount(),
	}
	for i := range nl.Gates() {
		g := &nl.Gates()[i]
		g.Moved = false
		z.occupied[g.Pos]++
	}
	return z
}

func (z *zft) done() bool { return z.remaining == 0 }

// next returns the unmoved gate with the largest connected-cell count. Ties
// go to the lowest id.
func (z *zft) next() *netlist.Gate {
	var best *netlist.Gate
	for i := range z.nl.Gates() {
		g := &z.nl.Gates()[i]
		if !g.Moved && (best == nil || g.ConnectedCells > best.ConnectedCells) {
			best = g
		}
	}
	return best
}

func (z *zft) step() Move {
	g := z.next()
	target := Target(z.nl, g.ID)

	z.release(g.Pos)
	m := Move{Gate: g.ID, Target: target, Pos: target}
	if z.occupied[target] > 0 {
		if free, ok := z.nearestFree(target); ok {
			m.Pos = free
			m.Relocated = true
		}
	}
	g.Pos = m.Pos
	g.Moved = true
	z.occupied[g.Pos]++
	z.remaining--
	return m
}

func (z *zft) release(p r2.Vec) {
	if z.occupied[p]--; z.occupied[p] <= 0 {
		delete(z.occupied, p)
	}
}

// nearestFree searches the grid of pitch cfg.Grid anchored at the box
// minimum for the unoccupied cell closest to target in Euclidean distance.
// Rings of cells are visited outward from the cell nearest the target until
// no closer cell can exist. Equal distances go to the smaller x, then the
// smaller y. It reports false when every cell is occupied.
func (z *zft) nearestFree(target r2.Vec) (r2.Vec, bool) {
	box, pitch := z.cfg.Box, z.cfg.Grid
	nx := int(math.Floor((box.Max.X-box.Min.X)/pitch)) + 1
	ny := int(math.Floor((box.Max.Y-box.Min.Y)/pitch)) + 1

	c := netlist.Clamp(target, box)
	cx := min(nx-1, max(0, int(math.Round((c.X-box.Min.X)/pitch))))
	cy := min(ny-1, max(0, int(math.Round((c.Y-box.Min.Y)/pitch))))

	var (
		best     r2.Vec
		bestDist = math.Inf(1)
		found    bool
	)
	consider := func(i, j int) {
		if i < 0 || i >= nx || j < 0 || j >= ny {
			return
		}
		p := r2.Vec{X: box.Min.X + float64(i)*pitch, Y: box.Min.Y + float64(j)*pitch}
		if z.occupied[p] > 0 {
			return
		}
		d := r2.Norm(r2.Sub(p, target))
		if d < bestDist || (d == bestDist && (p.X < best.X || (p.X == best.X && p.Y < best.Y))) {
			best, bestDist, found = p, d, true
		}
	}

	// The target may lie outside the box, so the ring bound is measured
	// from the clamped center plus the clamping offset.
	offset := r2.Norm(r2.Sub(target, c)) + pitch
	for r := 0; r <= max(nx, ny); r++ {
		if found && float64(r)*pitch-offset > bestDist {
			break
		}
		if r == 0 {
			consider(cx, cy)
			continue
		}
		for k := -r; k <= r; k++ {
			consider(cx+k, cy-r)
			consider(cx+k, cy+r)
		}
		for k := -r + 1; k < r; k++ {
			consider(cx-r, cy+k)
			consider(cx+r, cy+k)
		}
	}
	return best, found
}

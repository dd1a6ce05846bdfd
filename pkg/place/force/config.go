// Package force implements force-directed placement.
//
// Two variants share the package:
//
//   - [ZFT] moves each gate once, highest connected-cell count first, to the
//     centroid of its net neighbors. Occupied targets are relocated to the
//     nearest free cell of a regular grid over the bound box.
//   - [Simulator] integrates spring and repulsion forces with explicit Euler
//     steps, viscous damping and clamping to the bound box for a fixed number
//     of rounds.
package force

import (
	"gonum.org/v1/gonum/spatial/r2"

	perrors "github.com/matzehuels/netplace/pkg/errors"
	"github.com/matzehuels/netplace/pkg/netlist"
)

// Placer names used in reports and pipelines.
const (
	NameZFT      = "zft"
	NameSimulate = "force"
)

// Defaults for the simulation.
const (
	DefaultRounds      = 300
	DefaultDT          = 0.5
	DefaultRepulsion   = 150.0
	DefaultDamping     = 20.0
	DefaultMinDistance = 1e-9
	DefaultGrid        = 1.0
)

// Config holds the force-directed parameters. Zero fields take defaults.
type Config struct {
	Rounds int     // simulation rounds
	DT     float64 // Euler time step
	Mass   float64 // gate mass; 0 keeps each gate's own mass

	// Repulsion is scaled by 1/gate count before it is applied.
	Repulsion float64
	Damping   float64
	Box       r2.Box

	// MinDistance is the separation below which a gate pair exerts no
	// repulsion. Coincident gates would otherwise produce infinite forces.
	MinDistance float64

	// Grid is the cell pitch used when a zero-force target is occupied.
	Grid float64
}

// DefaultConfig returns the default parameters.
func DefaultConfig() Config {
	return Config{
		Rounds:      DefaultRounds,
		DT:          DefaultDT,
		Mass:        netlist.DefaultMass,
		Repulsion:   DefaultRepulsion,
		Damping:     DefaultDamping,
		Box:         netlist.DefaultBox,
		MinDistance: DefaultMinDistance,
		Grid:        DefaultGrid,
	}
}

// WithDefaults fills zero fields from [DefaultConfig]. Damping and Repulsion
// of zero are kept only when explicitly disabled with a negative value.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.Rounds == 0 {
		c.Rounds = d.Rounds
	}
	if c.DT == 0 {
		c.DT = d.DT
	}
	if c.Repulsion == 0 {
		c.Repulsion = d.Repulsion
	} else if c.Repulsion < 0 {
		c.Repulsion = 0
	}
	if c.Damping == 0 {
		c.Damping = d.Damping
	} else if c.Damping < 0 {
		c.Damping = 0
	}
	if c.Box == (r2.Box{}) {
		c.Box = d.Box
	}
	if c.MinDistance == 0 {
		c.MinDistance = d.MinDistance
	}
	if c.Grid == 0 {
		c.Grid = d.Grid
	}
	return c
}

// Validate rejects parameters that cannot produce a stable run.
func (c Config) Validate() error {
	switch {
	case c.Rounds < 0:
		return perrors.New(perrors.ErrCodeInvalidConfig, "force rounds must not be negative, got %d", c.Rounds)
	case c.DT <= 0:
		return perrors.New(perrors.ErrCodeInvalidConfig, "force dt must be positive, got %g", c.DT)
	case c.Mass < 0:
		return perrors.New(perrors.ErrCodeInvalidConfig, "force mass must not be negative, got %g", c.Mass)
	case c.Grid <= 0:
		return perrors.New(perrors.ErrCodeInvalidConfig, "force grid must be positive, got %g", c.Grid)
	case c.Box.Empty():
		return perrors.New(perrors.ErrCodeInvalidConfig, "force box %v is empty", c.Box)
	}
	return nil
}

func (c Config) mass(g *netlist.Gate) float64 {
	if c.Mass > 0 {
		return c.Mass
	}
	return g.Mass
}

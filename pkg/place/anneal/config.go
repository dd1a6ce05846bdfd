package anneal

import (
	perrors "github.com/matzehuels/netplace/pkg/errors"
)

// Defaults for the cooling schedule.
const (
	DefaultInitialTemperature = 0.5
	DefaultMovesPerGate       = 5
	DefaultCoolingFactor      = 0.9
	DefaultFreezeLag          = 4
	DefaultFreezeMinHistory   = 10
	DefaultMaxRounds          = 1000
)

// Config holds the annealing schedule. Zero fields take defaults.
type Config struct {
	InitialTemperature float64
	MovesPerGate       int // trial swaps per gate per round
	CoolingFactor      float64
	Freeze             FreezeWindow

	// MaxRounds caps the number of rounds. The freeze test alone does not
	// guarantee termination, for example when HPWL stays constant. A
	// negative value removes the cap.
	MaxRounds int

	// Incremental evaluates each trial on the nets touching the two swapped
	// gates instead of the whole netlist. Results can differ from a full
	// evaluation in the last bits, so the history is always resampled with
	// a full evaluation at the end of each round.
	Incremental bool
}

// DefaultConfig returns the default schedule.
func DefaultConfig() Config {
	return Config{
		InitialTemperature: DefaultInitialTemperature,
		MovesPerGate:       DefaultMovesPerGate,
		CoolingFactor:      DefaultCoolingFactor,
		Freeze:             DefaultFreezeWindow(),
		MaxRounds:          DefaultMaxRounds,
	}
}

// WithDefaults fills zero fields from [DefaultConfig].
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.InitialTemperature == 0 {
		c.InitialTemperature = d.InitialTemperature
	}
	if c.MovesPerGate == 0 {
		c.MovesPerGate = d.MovesPerGate
	}
	if c.CoolingFactor == 0 {
		c.CoolingFactor = d.CoolingFactor
	}
	if c.Freeze.Lag == 0 {
		c.Freeze.Lag = d.Freeze.Lag
	}
	if c.Freeze.MinHistory == 0 {
		c.Freeze.MinHistory = d.Freeze.MinHistory
	}
	if c.MaxRounds == 0 {
		c.MaxRounds = d.MaxRounds
	}
	return c
}

// Validate rejects schedules that cannot cool or cannot be evaluated.
func (c Config) Validate() error {
	switch {
	case c.InitialTemperature <= 0:
		return perrors.New(perrors.ErrCodeInvalidConfig, "anneal initial temperature must be positive, got %g", c.InitialTemperature)
	case c.MovesPerGate <= 0:
		return perrors.New(perrors.ErrCodeInvalidConfig, "anneal moves per gate must be positive, got %d", c.MovesPerGate)
	case c.CoolingFactor <= 0 || c.CoolingFactor >= 1:
		return perrors.New(perrors.ErrCodeInvalidConfig, "anneal cooling factor must lie in (0, 1), got %g", c.CoolingFactor)
	case c.Freeze.Lag < 2:
		return perrors.New(perrors.ErrCodeInvalidConfig, "anneal freeze lag must be at least 2, got %d", c.Freeze.Lag)
	case c.Freeze.MinHistory < c.Freeze.Lag:
		return perrors.New(perrors.ErrCodeInvalidConfig, "anneal freeze history %d is shorter than lag %d", c.Freeze.MinHistory, c.Freeze.Lag)
	}
	return nil
}

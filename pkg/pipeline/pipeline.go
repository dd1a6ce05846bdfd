// Package pipeline runs placement stages in sequence for the CLI and the
// HTTP server.
//
// This package implements the complete initialize → place → render flow so
// every entry point behaves the same way. By centralizing this logic, the
// stage order, defaults, caching and logging are defined once.
//
// # Architecture
//
// A run consists of:
//
//  1. Initialize: apply a supplied placement or draw a seeded random one
//  2. Place: run the configured stages (quadratic, zft, force, anneal) in
//     order, recording HPWL before and after each
//  3. Render: optionally produce charts and diagrams of the result
//
// One seeded random source is shared by initialization and annealing, so a
// run is reproducible from its seed.
//
// # Usage
//
// Create a Runner and execute the pipeline on a parsed netlist:
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	opts := pipeline.Options{
//	    Stages: []string{"quadratic", "anneal"},
//	    Seed:   7,
//	}
//	result, err := runner.Execute(ctx, nl, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Before, result.After)
//
// Options can be loaded from a TOML or YAML file with [LoadConfig].
package pipeline

import (
	"encoding/json"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/matzehuels/netplace/pkg/cache"
	perrors "github.com/matzehuels/netplace/pkg/errors"
	placeio "github.com/matzehuels/netplace/pkg/io"
	"github.com/matzehuels/netplace/pkg/netlist"
	"github.com/matzehuels/netplace/pkg/place"
	"github.com/matzehuels/netplace/pkg/place/anneal"
	"github.com/matzehuels/netplace/pkg/place/force"
	"github.com/matzehuels/netplace/pkg/place/quadratic"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and Server
// =============================================================================

// Stage names accepted in Options.Stages.
const (
	StageQuadratic = quadratic.Name
	StageZFT       = force.NameZFT
	StageForce     = force.NameSimulate
	StageAnneal    = anneal.Name
)

// DefaultSeed is the default random seed for reproducibility.
const DefaultSeed = uint64(42)

// DefaultStages is the stage sequence used when none is configured: an
// analytic global placement refined by annealing.
var DefaultStages = []string{StageQuadratic, StageAnneal}

// ValidStages is the set of supported stage names.
var ValidStages = map[string]bool{
	StageQuadratic: true,
	StageZFT:       true,
	StageForce:     true,
	StageAnneal:    true,
}

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for a placement run.
// This struct supports JSON serialization for API requests and TOML or YAML
// for config files.
type Options struct {
	Stages []string `json:"stages,omitempty" toml:"stages" yaml:"stages"`
	Seed   uint64   `json:"seed,omitempty" toml:"seed" yaml:"seed"`

	// InitBox is the random initialization region as [minX, minY, maxX, maxY].
	// Empty means [0, 0, 100, 100].
	InitBox []float64 `json:"init_box,omitempty" toml:"init_box" yaml:"init_box"`

	Quadratic QuadraticOptions `json:"quadratic" toml:"quadratic" yaml:"quadratic"`
	Force     ForceOptions     `json:"force" toml:"force" yaml:"force"`
	Anneal    AnnealOptions    `json:"anneal" toml:"anneal" yaml:"anneal"`

	// Initial replaces random initialization with a stored placement.
	Initial *placeio.Placement `json:"initial,omitempty" toml:"-" yaml:"-"`

	// Runtime options (not serialized)
	Refresh bool                                        `json:"-" toml:"-" yaml:"-"`
	Logger  *log.Logger                                 `json:"-" toml:"-" yaml:"-"`
	OnRound func(stage string, round int, hpwl float64) `json:"-" toml:"-" yaml:"-"`
	Trace   func(anneal.Trial)                          `json:"-" toml:"-" yaml:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// QuadraticOptions mirrors [quadratic.Config].
type QuadraticOptions struct {
	Solver        string  `json:"solver,omitempty" toml:"solver" yaml:"solver"`
	Tolerance     float64 `json:"tolerance,omitempty" toml:"tolerance" yaml:"tolerance"`
	MaxIterations int     `json:"max_iterations,omitempty" toml:"max_iterations" yaml:"max_iterations"`
	ResidualLimit float64 `json:"residual_limit,omitempty" toml:"residual_limit" yaml:"residual_limit"`
}

// ForceOptions mirrors [force.Config]. Box uses the InitBox layout.
type ForceOptions struct {
	Rounds      int       `json:"rounds,omitempty" toml:"rounds" yaml:"rounds"`
	DT          float64   `json:"dt,omitempty" toml:"dt" yaml:"dt"`
	Mass        float64   `json:"mass,omitempty" toml:"mass" yaml:"mass"`
	Repulsion   float64   `json:"repulsion,omitempty" toml:"repulsion" yaml:"repulsion"`
	Damping     float64   `json:"damping,omitempty" toml:"damping" yaml:"damping"`
	Box         []float64 `json:"box,omitempty" toml:"box" yaml:"box"`
	MinDistance float64   `json:"min_distance,omitempty" toml:"min_distance" yaml:"min_distance"`
	Grid        float64   `json:"grid,omitempty" toml:"grid" yaml:"grid"`
}

// AnnealOptions mirrors [anneal.Config].
type AnnealOptions struct {
	InitialTemperature float64 `json:"initial_temperature,omitempty" toml:"initial_temperature" yaml:"initial_temperature"`
	MovesPerGate       int     `json:"moves_per_gate,omitempty" toml:"moves_per_gate" yaml:"moves_per_gate"`
	CoolingFactor      float64 `json:"cooling_factor,omitempty" toml:"cooling_factor" yaml:"cooling_factor"`
	FreezeLag          int     `json:"freeze_lag,omitempty" toml:"freeze_lag" yaml:"freeze_lag"`
	FreezeMinHistory   int     `json:"freeze_min_history,omitempty" toml:"freeze_min_history" yaml:"freeze_min_history"`
	MaxRounds          int     `json:"max_rounds,omitempty" toml:"max_rounds" yaml:"max_rounds"`
	Incremental        bool    `json:"incremental,omitempty" toml:"incremental" yaml:"incremental"`
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// RunID uniquely identifies this run in logs and API responses.
	RunID string `json:"run_id"`

	// NetlistHash is the content hash of the input netlist.
	NetlistHash string `json:"netlist_hash"`

	// PlacementHash is the content hash of the final placement.
	PlacementHash string `json:"placement_hash"`

	// Placement holds the final coordinates.
	Placement placeio.Placement `json:"placement"`

	// Before is the HPWL after initialization; After is the final HPWL.
	Before float64 `json:"hpwl_before"`
	After  float64 `json:"hpwl_after"`

	// Stages holds one entry per executed stage, in order.
	Stages []StageResult `json:"stages"`

	// Warnings lists degenerate nets found in the input.
	Warnings []perrors.Warning `json:"warnings,omitempty"`

	Stats     Stats     `json:"stats"`
	CacheInfo CacheInfo `json:"cache"`
}

// StageResult is the outcome of one stage.
type StageResult struct {
	Name     string        `json:"name"`
	Report   place.Report  `json:"report"`
	Duration time.Duration `json:"duration"`
}

// Stats contains run statistics.
type Stats struct {
	Gates    int           `json:"gates"`
	Nets     int           `json:"nets"`
	Pads     int           `json:"pads"`
	Duration time.Duration `json:"duration"`
}

// CacheInfo tracks which steps were served from the cache.
type CacheInfo struct {
	PlacementHit bool `json:"placement_hit"` // Whether the placement came from cache
	RenderHit    bool `json:"render_hit"`    // Whether all artifacts came from cache
}

// =============================================================================
// Validation Functions
// =============================================================================

// ValidateStage checks that a stage name is valid.
func ValidateStage(stage string) error {
	if !ValidStages[stage] {
		return perrors.New(perrors.ErrCodeInvalidConfig, "invalid stage: %q (must be one of: quadratic, zft, force, anneal)", stage)
	}
	return nil
}

// ValidateStages checks that all stage names are valid.
func ValidateStages(stages []string) error {
	for _, s := range stages {
		if err := ValidateStage(s); err != nil {
			return err
		}
	}
	return nil
}

// ParseStages splits a comma separated stage list, trimming blanks.
func ParseStages(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}

// parseBox converts [minX, minY, maxX, maxY] to a box. An empty slice
// yields def.
func parseBox(v []float64, def r2.Box, what string) (r2.Box, error) {
	switch len(v) {
	case 0:
		return def, nil
	case 4:
		b := r2.Box{Min: r2.Vec{X: v[0], Y: v[1]}, Max: r2.Vec{X: v[2], Y: v[3]}}
		if b.Empty() {
			return b, perrors.New(perrors.ErrCodeInvalidConfig, "%s %v is empty", what, v)
		}
		return b, nil
	default:
		return r2.Box{}, perrors.New(perrors.ErrCodeInvalidConfig, "%s needs 4 values [minX, minY, maxX, maxY], got %d", what, len(v))
	}
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks every section and applies defaults.
// This method is idempotent - calling it multiple times has the same effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if len(o.Stages) == 0 {
		o.Stages = slices.Clone(DefaultStages)
	}
	if err := ValidateStages(o.Stages); err != nil {
		return err
	}
	if o.Seed == 0 {
		o.Seed = DefaultSeed
	}
	if _, err := parseBox(o.InitBox, netlist.DefaultBox, "init_box"); err != nil {
		return err
	}
	if err := o.QuadraticConfig().Validate(); err != nil {
		return err
	}
	if _, err := parseBox(o.Force.Box, netlist.DefaultBox, "force box"); err != nil {
		return err
	}
	if err := o.ForceConfig().Validate(); err != nil {
		return err
	}
	if err := o.AnnealConfig().Validate(); err != nil {
		return err
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// Box returns the initialization region.
func (o *Options) Box() r2.Box {
	b, err := parseBox(o.InitBox, netlist.DefaultBox, "init_box")
	if err != nil {
		return netlist.DefaultBox
	}
	return b
}

// QuadraticConfig returns the resolved quadratic solver configuration.
func (o *Options) QuadraticConfig() quadratic.Config {
	return quadratic.Config{
		Solver:        o.Quadratic.Solver,
		Tolerance:     o.Quadratic.Tolerance,
		MaxIterations: o.Quadratic.MaxIterations,
		ResidualLimit: o.Quadratic.ResidualLimit,
	}.WithDefaults()
}

// ForceConfig returns the resolved force-directed configuration.
func (o *Options) ForceConfig() force.Config {
	cfg := force.Config{
		Rounds:      o.Force.Rounds,
		DT:          o.Force.DT,
		Mass:        o.Force.Mass,
		Repulsion:   o.Force.Repulsion,
		Damping:     o.Force.Damping,
		MinDistance: o.Force.MinDistance,
		Grid:        o.Force.Grid,
	}
	if b, err := parseBox(o.Force.Box, r2.Box{}, "force box"); err == nil {
		cfg.Box = b
	}
	if cfg.Mass == 0 {
		cfg.Mass = netlist.DefaultMass
	}
	return cfg.WithDefaults()
}

// AnnealConfig returns the resolved annealing schedule.
func (o *Options) AnnealConfig() anneal.Config {
	return anneal.Config{
		InitialTemperature: o.Anneal.InitialTemperature,
		MovesPerGate:       o.Anneal.MovesPerGate,
		CoolingFactor:      o.Anneal.CoolingFactor,
		Freeze: anneal.FreezeWindow{
			Lag:        o.Anneal.FreezeLag,
			MinHistory: o.Anneal.FreezeMinHistory,
		},
		MaxRounds:   o.Anneal.MaxRounds,
		Incremental: o.Anneal.Incremental,
	}.WithDefaults()
}

// resolved is the canonical form of the options that change a result.
type resolved struct {
	Stages    []string         `json:"stages"`
	Seed      uint64           `json:"seed"`
	InitBox   r2.Box           `json:"init_box"`
	Quadratic quadratic.Config `json:"quadratic"`
	Force     force.Config     `json:"force"`
	Anneal    anneal.Config    `json:"anneal"`
}

// PlacementKeyOpts returns cache key options for a run. initialHash is the
// content hash of the supplied initial placement, or empty.
func (o *Options) PlacementKeyOpts(initialHash string) cache.PlacementKeyOpts {
	data, _ := json.Marshal(resolved{
		Stages:    o.Stages,
		Seed:      o.Seed,
		InitBox:   o.Box(),
		Quadratic: o.QuadraticConfig(),
		Force:     o.ForceConfig(),
		Anneal:    o.AnnealConfig(),
	})
	return cache.PlacementKeyOpts{
		Stages:  o.Stages,
		Seed:    o.Seed,
		Config:  string(data),
		Initial: initialHash,
	}
}

package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/netplace/pkg/cache"
	placeio "github.com/matzehuels/netplace/pkg/io"
	"github.com/matzehuels/netplace/pkg/netlist"
	"github.com/matzehuels/netplace/pkg/objective"
	"github.com/matzehuels/netplace/pkg/observability"
	"github.com/matzehuels/netplace/pkg/place"
	"github.com/matzehuels/netplace/pkg/place/anneal"
	"github.com/matzehuels/netplace/pkg/place/force"
	"github.com/matzehuels/netplace/pkg/place/quadratic"
)

// Cache key types reported to observability hooks.
const (
	keyTypePlacement = "placement"
	keyTypeArtifact  = "artifact"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and server use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store pipeline results. Multiple goroutines can safely use the same
// Runner with different netlists.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// cachedRun is the cached form of a completed run.
type cachedRun struct {
	Placement placeio.Placement `json:"placement"`
	Before    float64           `json:"hpwl_before"`
	Stages    []StageResult     `json:"stages"`
}

// Execute places nl in place and returns a summary. Identical netlists run
// with identical options are served from the cache unless opts.Refresh is
// set or a trace callback is installed.
func (r *Runner) Execute(ctx context.Context, nl *netlist.Netlist, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	start := time.Now()

	result := &Result{
		RunID:    uuid.NewString(),
		Warnings: objective.Degenerate(nl),
		Stats: Stats{
			Gates: nl.GateCount(),
			Nets:  nl.NetCount(),
			Pads:  nl.PadCount(),
		},
	}
	logger := opts.Logger.With("run", result.RunID)

	for _, w := range result.Warnings {
		logger.Warn("degenerate net", "net", w.Net, "terminals", w.Terminals)
	}

	var buf bytes.Buffer
	if err := placeio.WriteNetlist(nl, &buf); err != nil {
		return nil, fmt.Errorf("hash netlist: %w", err)
	}
	result.NetlistHash = cache.Hash(buf.Bytes())

	var initialHash string
	if opts.Initial != nil {
		var err error
		if initialHash, err = cache.HashJSON(opts.Initial); err != nil {
			return nil, fmt.Errorf("hash initial placement: %w", err)
		}
	}
	cacheKey := r.Keyer.PlacementKey(result.NetlistHash, opts.PlacementKeyOpts(initialHash))
	useCache := !opts.Refresh && opts.Trace == nil

	// Try cache first
	if useCache {
		if run, ok := r.lookup(ctx, cacheKey, nl); ok {
			result.Before = run.Before
			result.Stages = run.Stages
			result.CacheInfo.PlacementHit = true
			r.finish(result, nl, start)
			logger.Info("placement from cache", "hpwl", result.After)
			return result, nil
		}
	}

	rng := anneal.NewRand(opts.Seed)
	if err := initialize(nl, opts, rng); err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}
	result.Before = objective.HPWL(nl)
	logger.Info("initialized placement",
		"gates", nl.GateCount(),
		"nets", nl.NetCount(),
		"pads", nl.PadCount(),
		"hpwl", result.Before)

	stages, err := r.RunStages(ctx, nl, opts, rng)
	result.Stages = stages
	if err != nil {
		return result, err
	}
	r.finish(result, nl, start)

	// Cache the result
	if useCache {
		run := cachedRun{Placement: result.Placement, Before: result.Before, Stages: result.Stages}
		if data, err := json.Marshal(run); err == nil {
			if err := r.Cache.Set(ctx, cacheKey, data, cache.TTLPlacement); err != nil {
				logger.Warn("cache write failed", "err", err)
			} else {
				observability.Cache().OnCacheSet(ctx, keyTypePlacement, len(data))
			}
		}
	}

	logger.Info("placement complete",
		"hpwl_before", result.Before,
		"hpwl_after", result.After,
		"duration", result.Stats.Duration)
	return result, nil
}

// RunStages executes the configured stages in order on nl without touching
// the cache. It returns the results of every stage that ran, including a
// failing one. rng feeds the annealing stage; nil seeds a fresh source.
func (r *Runner) RunStages(ctx context.Context, nl *netlist.Netlist, opts Options, rng *rand.Rand) ([]StageResult, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if rng == nil {
		rng = anneal.NewRand(opts.Seed)
	}

	var results []StageResult
	for _, stage := range opts.Stages {
		p, err := opts.placer(stage, nl, rng)
		if err != nil {
			return results, fmt.Errorf("stage %s: %w", stage, err)
		}

		observability.Pipeline().OnStageStart(ctx, stage, nl.GateCount())

		start := time.Now()
		rep, err := p.Place(ctx, nl)
		d := time.Since(start)
		observability.Pipeline().OnStageComplete(ctx, stage, rep.Before, rep.After, d, err)
		results = append(results, StageResult{Name: stage, Report: rep, Duration: d})

		if err != nil {
			return results, fmt.Errorf("stage %s: %w", stage, err)
		}
		opts.Logger.Info("stage complete",
			"stage", stage,
			"hpwl_before", rep.Before,
			"hpwl_after", rep.After,
			"rounds", rep.Rounds,
			"duration", d)
	}
	return results, nil
}

// placer builds the placer for a stage with progress callbacks attached.
func (o *Options) placer(stage string, nl *netlist.Netlist, rng *rand.Rand) (place.Placer, error) {
	progress := func(round int, hpwl float64) {
		if o.OnRound != nil {
			o.OnRound(stage, round, hpwl)
		}
	}

	switch stage {
	case StageQuadratic:
		return quadratic.New(o.QuadraticConfig()), nil
	case StageZFT:
		p := force.NewZFT(o.ForceConfig())
		if o.OnRound != nil {
			moves := 0
			p.OnMove = func(force.Move) {
				moves++
				progress(moves, objective.HPWL(nl))
			}
		}
		return p, nil
	case StageForce:
		s := force.NewSimulator(o.ForceConfig())
		s.OnRound = func(round int, hpwl, _ float64) { progress(round, hpwl) }
		return s, nil
	case StageAnneal:
		p := anneal.New(o.AnnealConfig(), o.Seed)
		p.Rand = rng
		p.Trace = o.Trace
		p.OnRound = progress
		return p, nil
	default:
		return nil, ValidateStage(stage)
	}
}

// initialize sets the starting placement: the supplied one if any,
// otherwise a seeded random draw in the init box.
func initialize(nl *netlist.Netlist, opts Options, rng *rand.Rand) error {
	if opts.Initial != nil {
		return opts.Initial.Apply(nl)
	}
	nl.RandomizePositions(rng, opts.Box())
	return nil
}

// lookup loads a cached run and applies it to nl. Undecodable or
// inapplicable entries count as misses.
func (r *Runner) lookup(ctx context.Context, key string, nl *netlist.Netlist) (cachedRun, bool) {
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil {
		r.Logger.Warn("cache read failed", "err", err)
	}
	if err != nil || !hit {
		observability.Cache().OnCacheMiss(ctx, keyTypePlacement)
		return cachedRun{}, false
	}
	var run cachedRun
	if err := json.Unmarshal(data, &run); err != nil || run.Placement.Apply(nl) != nil {
		observability.Cache().OnCacheMiss(ctx, keyTypePlacement)
		return cachedRun{}, false
	}
	observability.Cache().OnCacheHit(ctx, keyTypePlacement)
	return run, true
}

// finish records the final placement, its hash and the elapsed time.
func (r *Runner) finish(result *Result, nl *netlist.Netlist, start time.Time) {
	result.Placement = placeio.NewPlacement(nl)
	result.After = result.Placement.HPWL
	if hash, err := cache.HashJSON(result.Placement); err == nil {
		result.PlacementHash = hash
	}
	result.Stats.Duration = time.Since(start)
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	placeio "github.com/matzehuels/netplace/pkg/io"
	"github.com/matzehuels/netplace/pkg/netlist"
	"github.com/matzehuels/netplace/pkg/observability"
	"github.com/matzehuels/netplace/pkg/pipeline"
)

// placeFlags holds the command-line flags of the place command.
type placeFlags struct {
	config  string
	stages  string
	seed    uint64
	init    string
	output  string
	listing string
	trace   string
	tui     bool
	refresh bool
	cache   cacheFlags

	// Overrides for the most commonly tuned parameters.
	solver      string
	rounds      int
	maxRounds   int
	incremental bool
}

// placeCommand creates the place command that runs the placement pipeline.
func (c *CLI) placeCommand() *cobra.Command {
	var f placeFlags

	cmd := &cobra.Command{
		Use:   "place [netlist]",
		Short: "Place the gates of a netlist",
		Long: `Place the gates of a netlist to minimize half-perimeter wirelength.

Gates start from a seeded random placement (or --init) and are refined by the
configured stages in order:

  quadratic  solve the spring system of the netlist analytically
  zft        move each gate to its zero-force target, relocating on collisions
  force      simulate springs, repulsion and damping over a fixed round count
  anneal     swap gate pairs with Metropolis acceptance until frozen

Parameters can be loaded from a TOML or YAML file with --config; flags
override the file. Results are cached locally, so repeated runs with the
same netlist and parameters return immediately.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := f.options(cmd)
			if err != nil {
				return err
			}
			opts.Logger = c.Logger
			if err := opts.ValidateAndSetDefaults(); err != nil {
				return err
			}
			return c.runPlace(cmd.Context(), args[0], opts, f)
		},
	}

	cmd.Flags().StringVarP(&f.config, "config", "c", "", "TOML or YAML parameter file")
	cmd.Flags().StringVarP(&f.stages, "stages", "s", "", "comma-separated stages: quadratic, zft, force, anneal (default quadratic,anneal)")
	cmd.Flags().Uint64Var(&f.seed, "seed", pipeline.DefaultSeed, "random seed for initialization and annealing")
	cmd.Flags().StringVar(&f.init, "init", "", "start from a placement JSON file instead of a random draw")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "placement JSON output (default: <input>.placement.json)")
	cmd.Flags().StringVar(&f.listing, "listing", "", "also write an \"id x y\" listing sorted by position")
	cmd.Flags().StringVar(&f.trace, "trace", "", "write every annealing trial to a CSV file")
	cmd.Flags().BoolVar(&f.tui, "tui", false, "show a live progress view")
	cmd.Flags().BoolVar(&f.refresh, "refresh", false, "ignore cached results")
	cmd.Flags().StringVar(&f.solver, "solver", "", "quadratic solver: cg (default), cholesky")
	cmd.Flags().IntVar(&f.rounds, "rounds", 0, "force simulation rounds")
	cmd.Flags().IntVar(&f.maxRounds, "max-rounds", 0, "annealing round cap (negative: unlimited)")
	cmd.Flags().BoolVar(&f.incremental, "incremental", false, "score annealing swaps on affected nets only")
	f.cache.register(cmd)

	return cmd
}

// options loads the config file, if any, and applies flags set on cmd.
// The result is not validated yet.
func (f *placeFlags) options(cmd *cobra.Command) (pipeline.Options, error) {
	var opts pipeline.Options
	if f.config != "" {
		loaded, err := pipeline.LoadConfig(f.config)
		if err != nil {
			return opts, err
		}
		opts = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("stages") {
		opts.Stages = pipeline.ParseStages(f.stages)
	}
	if flags.Changed("seed") || opts.Seed == 0 {
		opts.Seed = f.seed
	}
	if flags.Changed("solver") {
		opts.Quadratic.Solver = f.solver
	}
	if flags.Changed("rounds") {
		opts.Force.Rounds = f.rounds
	}
	if flags.Changed("max-rounds") {
		opts.Anneal.MaxRounds = f.maxRounds
	}
	if flags.Changed("incremental") {
		opts.Anneal.Incremental = f.incremental
	}
	opts.Refresh = f.refresh

	if f.init != "" {
		p, err := placeio.LoadPlacement(f.init)
		if err != nil {
			return opts, err
		}
		opts.Initial = &p
	}
	return opts, nil
}

// runPlace loads the netlist, runs the pipeline and writes the outputs.
func (c *CLI) runPlace(ctx context.Context, input string, opts pipeline.Options, f placeFlags) error {
	prog := newProgress(c.Logger)

	nl, err := placeio.ImportNetlist(input)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, f.cache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	var trace *placeio.TraceCSV
	if f.trace != "" {
		file, err := os.Create(f.trace)
		if err != nil {
			return fmt.Errorf("create trace %s: %w", f.trace, err)
		}
		defer file.Close()
		trace = placeio.NewTraceCSV(file)
		opts.Trace = trace.Write
	}

	var result *pipeline.Result
	if f.tui {
		result, err = c.placeWithTUI(ctx, runner, nl, opts, input)
	} else {
		result, err = c.placeWithSpinner(ctx, runner, nl, opts)
	}
	if err != nil {
		return err
	}
	if trace != nil {
		if err := trace.Close(); err != nil {
			return fmt.Errorf("write trace %s: %w", f.trace, err)
		}
	}

	output := f.output
	if output == "" {
		output = strings.TrimSuffix(input, filepath.Ext(input)) + ".placement.json"
	}
	if err := placeio.ExportJSON(nl, output); err != nil {
		return fmt.Errorf("write output %s: %w", output, err)
	}
	if f.listing != "" {
		if err := writeListing(nl, f.listing); err != nil {
			return err
		}
	}
	prog.done(fmt.Sprintf("Placed %d gates", nl.GateCount()))

	printSuccess("Placement complete")
	printFile(output)
	if f.listing != "" {
		printFile(f.listing)
	}
	if trace != nil {
		printFile(f.trace)
	}
	printStats(result.Stats.Gates, result.Stats.Nets, result.Stats.Pads, result.CacheInfo.PlacementHit)
	printNewline()
	for _, s := range result.Stages {
		printHPWL(s.Name, s.Report.Before, s.Report.After)
	}
	printHPWL("total", result.Before, result.After)
	for _, w := range result.Warnings {
		printWarning("%s", w.String())
	}
	printNewline()
	printNextStep("Render", fmt.Sprintf("%s render %s --placement %s", appName, input, output))

	return nil
}

func (c *CLI) placeWithSpinner(ctx context.Context, runner *pipeline.Runner, nl *netlist.Netlist, opts pipeline.Options) (*pipeline.Result, error) {
	spinner := newSpinner(ctx, fmt.Sprintf("Placing %d gates...", nl.GateCount()))
	opts.OnRound = func(stage string, round int, hpwl float64) {
		spinner.Update(fmt.Sprintf("%s round %d · hpwl %s", stage, round, formatHPWL(hpwl)))
	}
	spinner.Start()

	result, err := runner.Execute(ctx, nl, opts)
	if err != nil {
		spinner.StopWithError("Placement failed")
		return nil, fmt.Errorf("place: %w", err)
	}
	spinner.Stop()
	return result, nil
}

// placeWithTUI runs the pipeline under the bubbletea progress view. Quitting
// the view cancels the run.
func (c *CLI) placeWithTUI(ctx context.Context, runner *pipeline.Runner, nl *netlist.Netlist, opts pipeline.Options, input string) (*pipeline.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := NewPlaceModel(fmt.Sprintf("Placing %s", filepath.Base(input)), opts.Stages, cancel)
	p := tea.NewProgram(model, tea.WithContext(ctx), tea.WithOutput(os.Stderr))

	// Log lines would tear the view; results and warnings print afterwards.
	opts.Logger = log.New(io.Discard)
	throttle := &roundThrottle{p: p, interval: 50 * time.Millisecond}
	opts.OnRound = throttle.send

	prev := observability.Pipeline()
	observability.SetPipelineHooks(programHooks{p: p})
	defer observability.SetPipelineHooks(prev)

	done := make(chan placeDoneMsg, 1)
	go func() {
		result, err := runner.Execute(ctx, nl, opts)
		msg := placeDoneMsg{result: result, err: err}
		done <- msg
		p.Send(msg)
	}()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		cancel()
		<-done
		return nil, fmt.Errorf("progress view: %w", err)
	}
	msg := <-done
	if msg.err != nil {
		return nil, fmt.Errorf("place: %w", msg.err)
	}
	return msg.result, nil
}

func writeListing(nl *netlist.Netlist, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create listing %s: %w", path, err)
	}
	defer f.Close()
	if err := placeio.WriteListing(nl, f); err != nil {
		return fmt.Errorf("write listing %s: %w", path, err)
	}
	return nil
}

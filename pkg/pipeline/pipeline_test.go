package pipeline

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/netplace/pkg/cache"
	perrors "github.com/matzehuels/netplace/pkg/errors"
	placeio "github.com/matzehuels/netplace/pkg/io"
	"github.com/matzehuels/netplace/pkg/netlist"
	"github.com/matzehuels/netplace/pkg/objective"
	"github.com/matzehuels/netplace/pkg/place/anneal"
)

// chain is four gates strung between two pads at y=50.
const chain = `4 5
1 2 1 2
2 2 2 3
3 2 3 4
4 2 4 5
2
1 1 0 50
2 5 100 50
`

func parse(t *testing.T, text string) *netlist.Netlist {
	t.Helper()
	nl, err := placeio.ReadNetlist(strings.NewReader(text))
	if err != nil {
		t.Fatalf("ReadNetlist: %v", err)
	}
	return nl
}

func quiet() *log.Logger {
	return log.NewWithOptions(&bytes.Buffer{}, log.Options{})
}

func fastOptions(stages ...string) Options {
	return Options{
		Stages: stages,
		Seed:   7,
		Anneal: AnnealOptions{MaxRounds: 5},
		Force:  ForceOptions{Rounds: 20},
	}
}

func TestValidateStage(t *testing.T) {
	tests := []struct {
		stage   string
		wantErr bool
	}{
		{"quadratic", false},
		{"zft", false},
		{"force", false},
		{"anneal", false},
		{"invalid", true},
		{"Anneal", true}, // case-sensitive
		{"", true},
	}

	for _, tt := range tests {
		err := ValidateStage(tt.stage)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateStage(%q) error = %v, wantErr %v", tt.stage, err, tt.wantErr)
		}
	}
}

func TestParseStages(t *testing.T) {
	got := ParseStages(" quadratic, ZFT,,anneal ")
	want := []string{"quadratic", "zft", "anneal"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("ParseStages = %v, want %v", got, want)
	}
	if ParseStages("") != nil {
		t.Error("empty input should give no stages")
	}
}

func TestOptionsDefaults(t *testing.T) {
	opts := Options{}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("Zero options should pass: %v", err)
	}

	if strings.Join(opts.Stages, ",") != "quadratic,anneal" {
		t.Errorf("Stages should default to %v, got %v", DefaultStages, opts.Stages)
	}
	if opts.Seed != DefaultSeed {
		t.Errorf("Seed should be %d, got %d", DefaultSeed, opts.Seed)
	}
	if opts.Logger == nil {
		t.Error("Logger should be set")
	}
	if b := opts.Box(); b != netlist.DefaultBox {
		t.Errorf("Box should default to %v, got %v", netlist.DefaultBox, b)
	}

	fc := opts.ForceConfig()
	if fc.Rounds != 300 || fc.DT != 0.5 || fc.Mass != 17 || fc.Repulsion != 150 || fc.Damping != 20 {
		t.Errorf("unexpected force defaults: %+v", fc)
	}
	ac := opts.AnnealConfig()
	if ac.InitialTemperature != 0.5 || ac.MovesPerGate != 5 || ac.CoolingFactor != 0.9 {
		t.Errorf("unexpected anneal defaults: %+v", ac)
	}
	if opts.QuadraticConfig().Solver != "cg" {
		t.Errorf("solver should default to cg, got %q", opts.QuadraticConfig().Solver)
	}
}

func TestOptionsValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"unknown stage", Options{Stages: []string{"spectral"}}},
		{"short init box", Options{InitBox: []float64{0, 0, 10}}},
		{"empty init box", Options{InitBox: []float64{10, 0, 10, 10}}},
		{"unknown solver", Options{Quadratic: QuadraticOptions{Solver: "lu"}}},
		{"negative dt", Options{Force: ForceOptions{DT: -1}}},
		{"empty force box", Options{Force: ForceOptions{Box: []float64{0, 5, 10, 5}}}},
		{"cooling too high", Options{Anneal: AnnealOptions{CoolingFactor: 1.5}}},
		{"freeze lag too short", Options{Anneal: AnnealOptions{FreezeLag: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.ValidateAndSetDefaults()
			if !perrors.Is(err, perrors.ErrCodeInvalidConfig) {
				t.Errorf("expected INVALID_CONFIG, got %v", err)
			}
		})
	}
}

func TestOptionsValidateAndSetDefaultsIdempotent(t *testing.T) {
	opts := Options{Seed: 3}

	// First call
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("First validation failed: %v", err)
	}
	originalStages := strings.Join(opts.Stages, ",")
	originalKey := opts.PlacementKeyOpts("").Config

	// Second call should be idempotent
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("Second validation failed: %v", err)
	}
	if strings.Join(opts.Stages, ",") != originalStages {
		t.Error("Stages changed on second call")
	}
	if opts.PlacementKeyOpts("").Config != originalKey {
		t.Error("Resolved config changed on second call")
	}
}

func TestPlacementKeyOptsReflectsParameters(t *testing.T) {
	a := Options{}
	b := Options{Anneal: AnnealOptions{CoolingFactor: 0.95}}
	_ = a.ValidateAndSetDefaults()
	_ = b.ValidateAndSetDefaults()
	if a.PlacementKeyOpts("").Config == b.PlacementKeyOpts("").Config {
		t.Error("different schedules should give different keys")
	}

	// Explicit defaults resolve to the same key as implicit ones.
	c := Options{Anneal: AnnealOptions{CoolingFactor: anneal.DefaultCoolingFactor}}
	_ = c.ValidateAndSetDefaults()
	if a.PlacementKeyOpts("").Config != c.PlacementKeyOpts("").Config {
		t.Error("explicit defaults should give the same key")
	}
}

func TestParseConfig(t *testing.T) {
	tomlData := `
stages = ["quadratic", "force"]
seed = 11
init_box = [0, 0, 50, 50]

[force]
rounds = 40
repulsion = 75.5

[anneal]
cooling_factor = 0.8
incremental = true
`
	yamlData := `
stages: [quadratic, force]
seed: 11
init_box: [0, 0, 50, 50]
force:
  rounds: 40
  repulsion: 75.5
anneal:
  cooling_factor: 0.8
  incremental: true
`
	for _, tt := range []struct{ format, data string }{
		{ConfigTOML, tomlData},
		{ConfigYAML, yamlData},
	} {
		t.Run(tt.format, func(t *testing.T) {
			opts, err := ParseConfig([]byte(tt.data), tt.format)
			if err != nil {
				t.Fatalf("ParseConfig: %v", err)
			}
			if strings.Join(opts.Stages, ",") != "quadratic,force" || opts.Seed != 11 {
				t.Errorf("unexpected top-level values: %v %d", opts.Stages, opts.Seed)
			}
			if opts.Force.Rounds != 40 || opts.Force.Repulsion != 75.5 {
				t.Errorf("unexpected force section: %+v", opts.Force)
			}
			if opts.Anneal.CoolingFactor != 0.8 || !opts.Anneal.Incremental {
				t.Errorf("unexpected anneal section: %+v", opts.Anneal)
			}
			if err := opts.ValidateAndSetDefaults(); err != nil {
				t.Fatalf("ValidateAndSetDefaults: %v", err)
			}
			if opts.Box().Max.X != 50 {
				t.Errorf("init box not applied: %v", opts.Box())
			}
		})
	}
}

func TestParseConfigRejectsUnknownKeys(t *testing.T) {
	if _, err := ParseConfig([]byte("sead = 3\n"), ConfigTOML); !perrors.Is(err, perrors.ErrCodeInvalidConfig) {
		t.Errorf("toml: expected INVALID_CONFIG, got %v", err)
	}
	if _, err := ParseConfig([]byte("sead: 3\n"), ConfigYAML); !perrors.Is(err, perrors.ErrCodeInvalidConfig) {
		t.Errorf("yaml: expected INVALID_CONFIG, got %v", err)
	}
	if _, err := ParseConfig(nil, ConfigYAML); err != nil {
		t.Errorf("empty yaml should decode to zero options: %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "netplace.toml")
	if err := os.WriteFile(path, []byte("seed = 5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	opts, err := LoadConfig(path)
	if err != nil || opts.Seed != 5 {
		t.Errorf("LoadConfig = %+v, %v", opts.Seed, err)
	}

	if _, err := LoadConfig(filepath.Join(dir, "netplace.json")); !perrors.Is(err, perrors.ErrCodeFileNotFound) {
		t.Errorf("missing file: expected FILE_NOT_FOUND, got %v", err)
	}

	ini := filepath.Join(dir, "netplace.ini")
	if err := os.WriteFile(ini, []byte("seed=5"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(ini); !perrors.Is(err, perrors.ErrCodeInvalidConfig) {
		t.Errorf("unknown extension: expected INVALID_CONFIG, got %v", err)
	}
}

func TestLoadExampleConfigs(t *testing.T) {
	tests := map[string]string{
		"netplace.toml": "quadratic,anneal",
		"netplace.yaml": "zft,force",
	}
	for name, stages := range tests {
		t.Run(name, func(t *testing.T) {
			opts, err := LoadConfig(filepath.Join("..", "..", "examples", "config", name))
			if err != nil {
				t.Fatalf("LoadConfig: %v", err)
			}
			if err := opts.ValidateAndSetDefaults(); err != nil {
				t.Fatalf("ValidateAndSetDefaults: %v", err)
			}
			if got := strings.Join(opts.Stages, ","); got != stages {
				t.Errorf("stages = %s, want %s", got, stages)
			}
		})
	}
}

func TestExecute(t *testing.T) {
	nl := parse(t, chain)
	runner := NewRunner(nil, nil, quiet())

	var rounds []string
	opts := fastOptions(StageQuadratic, StageAnneal)
	opts.OnRound = func(stage string, round int, hpwl float64) {
		rounds = append(rounds, stage)
	}

	res, err := runner.Execute(context.Background(), nl, opts)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if res.RunID == "" {
		t.Error("RunID should be set")
	}
	if len(res.NetlistHash) != 64 || len(res.PlacementHash) != 64 {
		t.Errorf("hashes should be hex sha256: %q %q", res.NetlistHash, res.PlacementHash)
	}
	if len(res.Stages) != 2 || res.Stages[0].Name != StageQuadratic || res.Stages[1].Name != StageAnneal {
		t.Fatalf("unexpected stages: %+v", res.Stages)
	}
	if got := objective.HPWL(nl); math.Abs(res.After-got) > 1e-9 {
		t.Errorf("After = %g, netlist HPWL = %g", res.After, got)
	}
	// The chain's optimum spreads the gates evenly on y=50: HPWL 100.
	if math.Abs(res.Stages[0].Report.After-100) > 1e-6 {
		t.Errorf("quadratic HPWL = %g, want 100", res.Stages[0].Report.After)
	}
	if res.Stats.Gates != 4 || res.Stats.Nets != 5 || res.Stats.Pads != 2 {
		t.Errorf("unexpected stats: %+v", res.Stats)
	}
	if len(rounds) == 0 || rounds[0] != StageAnneal {
		t.Errorf("anneal rounds should be reported, got %v", rounds)
	}
	if res.CacheInfo.PlacementHit {
		t.Error("NullCache should never hit")
	}
}

func TestExecuteDeterministic(t *testing.T) {
	runner := NewRunner(nil, nil, quiet())
	opts := fastOptions(StageForce, StageAnneal)

	a, err := runner.Execute(context.Background(), parse(t, chain), opts)
	if err != nil {
		t.Fatal(err)
	}
	b, err := runner.Execute(context.Background(), parse(t, chain), opts)
	if err != nil {
		t.Fatal(err)
	}
	if a.PlacementHash != b.PlacementHash {
		t.Error("equal seeds should give equal placements")
	}
	if a.RunID == b.RunID {
		t.Error("run ids should be unique")
	}
}

func TestExecuteCache(t *testing.T) {
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	runner := NewRunner(fc, nil, quiet())
	ctx := context.Background()
	opts := fastOptions(StageZFT, StageAnneal)

	first, err := runner.Execute(ctx, parse(t, chain), opts)
	if err != nil {
		t.Fatal(err)
	}
	if first.CacheInfo.PlacementHit {
		t.Fatal("first run should miss")
	}

	nl := parse(t, chain)
	second, err := runner.Execute(ctx, nl, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !second.CacheInfo.PlacementHit {
		t.Fatal("second run should hit")
	}
	if second.PlacementHash != first.PlacementHash || second.Before != first.Before {
		t.Error("cached run should reproduce the first result")
	}
	if got := nl.Gate(1).Pos; got.X != first.Placement.Gates[0].X || got.Y != first.Placement.Gates[0].Y {
		t.Error("cached placement should be applied to the netlist")
	}

	opts.Refresh = true
	third, err := runner.Execute(ctx, parse(t, chain), opts)
	if err != nil {
		t.Fatal(err)
	}
	if third.CacheInfo.PlacementHit {
		t.Error("Refresh should bypass the cache")
	}
}

func TestExecuteInitialPlacement(t *testing.T) {
	nl := parse(t, chain)
	initial := placeio.Placement{Gates: []placeio.GatePosition{
		{ID: 1, X: 20, Y: 50}, {ID: 2, X: 40, Y: 50}, {ID: 3, X: 60, Y: 50}, {ID: 4, X: 80, Y: 50},
	}}
	opts := fastOptions(StageAnneal)
	opts.Initial = &initial

	res, err := NewRunner(nil, nil, quiet()).Execute(context.Background(), nl, opts)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(res.Before-100) > 1e-9 {
		t.Errorf("Before = %g, want the supplied placement's 100", res.Before)
	}
}

func TestExecuteStageError(t *testing.T) {
	// Two gates on one net and no pads cannot be anchored.
	nl := parse(t, "2 1\n1 1 1\n2 1 1\n0\n")
	res, err := NewRunner(nil, nil, quiet()).Execute(context.Background(), nl, fastOptions(StageQuadratic))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "stage quadratic") {
		t.Errorf("error should name the stage: %v", err)
	}
	if !perrors.Is(err, perrors.ErrCodeStructural) {
		t.Errorf("expected STRUCTURAL, got %q", perrors.GetCode(err))
	}
	if res == nil || len(res.Stages) != 1 {
		t.Error("failed stage should still be reported")
	}
}

func TestExecuteCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := NewRunner(nil, nil, quiet()).Execute(ctx, parse(t, chain), fastOptions(StageForce))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if !res.Stages[0].Report.Interrupted {
		t.Error("report should be marked interrupted")
	}
}

func TestExecuteLogsDegenerateNets(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{Level: log.WarnLevel})
	// Net 2 has no terminals.
	nl := parse(t, "1 2\n1 1 1\n1\n1 1 0 0\n")

	res, err := NewRunner(nil, nil, logger).Execute(context.Background(), nl, fastOptions(StageQuadratic))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Net != 2 {
		t.Errorf("unexpected warnings: %+v", res.Warnings)
	}
	if !strings.Contains(buf.String(), "degenerate net") {
		t.Errorf("warning should be logged:\n%s", buf.String())
	}
}

func TestRenderOptions(t *testing.T) {
	opts := RenderOptions{}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	if len(opts.Kinds) != 1 || opts.Kinds[0] != ArtifactPlacement || opts.Format != "svg" {
		t.Errorf("unexpected defaults: %+v", opts)
	}

	bad := RenderOptions{Kinds: []string{"heatmap"}}
	if err := bad.ValidateAndSetDefaults(); !perrors.Is(err, perrors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT, got %v", err)
	}
	if opts.ArtifactKeyOpts(ArtifactDOT).Format != "dot" {
		t.Error("dot artifacts should be keyed by their own format")
	}
}

func TestRenderWithCacheInfo(t *testing.T) {
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	runner := NewRunner(fc, nil, quiet())
	ctx := context.Background()
	nl := parse(t, chain)

	res, err := runner.Execute(ctx, nl, fastOptions(StageQuadratic))
	if err != nil {
		t.Fatal(err)
	}
	ropts := RenderOptions{Kinds: []string{ArtifactPlacement, ArtifactConvergence, ArtifactDOT}}

	artifacts, hit, err := runner.RenderWithCacheInfo(ctx, res, nl.Geometry(), ropts)
	if err != nil {
		t.Fatalf("RenderWithCacheInfo: %v", err)
	}
	if hit {
		t.Error("first render should miss")
	}
	if len(artifacts) != 3 {
		t.Fatalf("expected 3 artifacts, got %d", len(artifacts))
	}
	if !strings.Contains(string(artifacts[ArtifactPlacement]), "<svg") {
		t.Error("placement chart should be SVG")
	}
	if !strings.HasPrefix(string(artifacts[ArtifactDOT]), "graph G {") {
		t.Error("dot artifact should be Graphviz source")
	}

	again, hit, err := runner.RenderWithCacheInfo(ctx, res, nl.Geometry(), ropts)
	if err != nil {
		t.Fatal(err)
	}
	if !hit {
		t.Error("second render should hit")
	}
	if !bytes.Equal(again[ArtifactDOT], artifacts[ArtifactDOT]) {
		t.Error("cached artifact should match")
	}
}

package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/chsim/internal/analysis"
	"github.com/san-kum/chsim/internal/config"
	"github.com/san-kum/chsim/internal/experiment"
	"github.com/san-kum/chsim/internal/storage"
)

var (
	ErrUnknownPreset = errors.New("automation: unknown preset")
	ErrUnknownParam  = errors.New("automation: parameter cannot be swept")
	ErrInvalidSweep  = errors.New("automation: invalid sweep")
)

// Scenario defines a scripted sequence of runs and an optional sweep.
type Scenario struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Parallel    int           `yaml:"parallel"`
	Runs        []ScenarioRun `yaml:"runs"`
	Sweep       *Sweep        `yaml:"sweep"`
}

// ScenarioRun is one entry of a scenario. Params holds a partial parameter
// bundle laid over the preset (or the defaults); with Seeds the run becomes
// an ensemble.
type ScenarioRun struct {
	Output string    `yaml:"output"`
	Preset string    `yaml:"preset"`
	Params yaml.Node `yaml:"params"`
	Seeds  []int64   `yaml:"seeds"`
}

// Sweep varies one parameter linearly from Min to Max over Count runs built
// from Base.
type Sweep struct {
	Param string      `yaml:"param"`
	Min   float64     `yaml:"min"`
	Max   float64     `yaml:"max"`
	Count int         `yaml:"count"`
	Base  ScenarioRun `yaml:"base"`
}

type RunSummary struct {
	RunID         string
	Seed          int64
	Steps         int
	InitialEnergy float64
	FinalEnergy   float64
	Length        float64
}

type SweepResult struct {
	ParamValue float64
	RunSummary
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &scenario, nil
}

// ResolveParams builds the parameter bundle of a run: defaults, then the
// preset, then the explicit params.
func (r *ScenarioRun) ResolveParams() (config.Params, error) {
	p := config.DefaultParams()
	if r.Preset != "" {
		preset, ok := config.GetPreset(r.Preset)
		if !ok {
			return p, fmt.Errorf("%w: %s", ErrUnknownPreset, r.Preset)
		}
		p = preset
	}
	if !r.Params.IsZero() {
		if err := r.Params.Decode(&p); err != nil {
			return p, fmt.Errorf("params: %w", err)
		}
	}
	if r.Output != "" {
		p.Output = r.Output
	}
	return p, p.Validate()
}

var setters = map[string]func(*config.Params, float64){
	"dt":            func(p *config.Params, v float64) { p.Dt = v },
	"dx":            func(p *config.Params, v float64) { p.Dx = v },
	"m":             func(p *config.Params, v float64) { p.M = v },
	"a":             func(p *config.Params, v float64) { p.A = v },
	"k":             func(p *config.Params, v float64) { p.K = v },
	"initial_value": func(p *config.Params, v float64) { p.InitialValue = v },
	"noise":         func(p *config.Params, v float64) { p.Noise = v },
}

// SweepParams lists the parameter names a sweep accepts.
func SweepParams() []string {
	names := make([]string, 0, len(setters))
	for name := range setters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Runner executes scenarios against a store.
type Runner struct {
	Store  *storage.Store
	Logger *slog.Logger
}

func (r *Runner) options() []experiment.Option {
	opts := []experiment.Option{experiment.WithLogger(r.logger())}
	if r.Store != nil {
		opts = append(opts, experiment.WithStore(r.Store))
	}
	return opts
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

// RunScenario executes every run in order, then the sweep.
func (r *Runner) RunScenario(ctx context.Context, sc *Scenario) ([]RunSummary, []SweepResult, error) {
	log := r.logger().With("scenario", sc.Name)
	summaries := make([]RunSummary, 0, len(sc.Runs))

	for i := range sc.Runs {
		run := &sc.Runs[i]
		log.Info("scenario run", "index", i+1, "of", len(sc.Runs), "preset", run.Preset)

		p, err := run.ResolveParams()
		if err != nil {
			return summaries, nil, fmt.Errorf("run %d: %w", i+1, err)
		}

		if len(run.Seeds) > 0 {
			outs, err := experiment.RunEnsemble(ctx, p, run.Seeds, sc.Parallel, r.options()...)
			if err != nil {
				return summaries, nil, fmt.Errorf("run %d: %w", i+1, err)
			}
			for _, out := range outs {
				summaries = append(summaries, summarize(out))
			}
			continue
		}

		out, err := experiment.New(p, r.options()...).Run(ctx)
		if err != nil {
			return summaries, nil, fmt.Errorf("run %d: %w", i+1, err)
		}
		summaries = append(summaries, summarize(out))
	}

	if sc.Sweep == nil {
		return summaries, nil, nil
	}
	sweep, err := r.RunSweep(ctx, sc.Sweep)
	return summaries, sweep, err
}

// RunSweep runs Count simulations with the swept parameter spread evenly
// over [Min, Max]. Each run is written to <output>_<index>.
func (r *Runner) RunSweep(ctx context.Context, sw *Sweep) ([]SweepResult, error) {
	set, ok := setters[sw.Param]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownParam, sw.Param)
	}
	if sw.Count < 1 {
		return nil, fmt.Errorf("%w: count must be at least 1, got %d", ErrInvalidSweep, sw.Count)
	}

	base, err := sw.Base.ResolveParams()
	if err != nil {
		return nil, fmt.Errorf("sweep base: %w", err)
	}
	prefix := base.Output
	if prefix == "" {
		prefix = "sweep_" + sw.Param
	}

	step := 0.0
	if sw.Count > 1 {
		step = (sw.Max - sw.Min) / float64(sw.Count-1)
	}

	log := r.logger()
	results := make([]SweepResult, 0, sw.Count)
	for i := 0; i < sw.Count; i++ {
		value := sw.Min + float64(i)*step
		p := base
		set(&p, value)
		p.Output = fmt.Sprintf("%s_%d", prefix, i)

		out, err := experiment.New(p, r.options()...).Run(ctx)
		if err != nil {
			return results, fmt.Errorf("sweep %s=%g: %w", sw.Param, value, err)
		}
		results = append(results, SweepResult{ParamValue: value, RunSummary: summarize(out)})
		log.Info("sweep point", "index", i+1, "of", sw.Count, sw.Param, value, "final_energy", out.Result.FinalEnergy)
	}
	return results, nil
}

func summarize(out *experiment.Outcome) RunSummary {
	s := RunSummary{
		RunID:         out.RunID,
		Seed:          out.Params.Seed,
		Steps:         out.Result.StepsTaken,
		InitialEnergy: out.Result.InitialEnergy,
		FinalEnergy:   out.Result.FinalEnergy,
	}
	if length, err := analysis.CharacteristicLength(analysis.StructureFactor(out.Result.Final)); err == nil {
		s.Length = length
	}
	return s
}

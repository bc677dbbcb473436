package automation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/chsim/internal/config"
	"github.com/san-kum/chsim/internal/storage"
)

const scenarioYAML = `
name: coarsening
description: two quick runs and a noise sweep
parallel: 2
runs:
  - output: single
    preset: quick
    params:
      rows: 16
      cols: 16
      steps: 20
      seed: 4
  - output: ens
    params:
      rows: 8
      cols: 8
      steps: 5
      dt: 0.1
    seeds: [1, 2]
sweep:
  param: initial_value
  min: 0
  max: 0.4
  count: 3
  base:
    output: iv
    params:
      rows: 8
      cols: 8
      steps: 5
      dt: 0.1
      seed: 9
`

func quietRunner(t *testing.T) (*Runner, *storage.Store) {
	t.Helper()
	st := storage.New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatal(err)
	}
	return &Runner{Store: st, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}, st
}

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadScenario(t *testing.T) {
	sc, err := LoadScenario(writeScenario(t, scenarioYAML))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if sc.Name != "coarsening" || len(sc.Runs) != 2 || sc.Sweep == nil {
		t.Fatalf("unexpected scenario %+v", sc)
	}
	if sc.Sweep.Count != 3 || sc.Sweep.Param != "initial_value" {
		t.Errorf("unexpected sweep %+v", sc.Sweep)
	}
}

func TestResolveParams(t *testing.T) {
	sc, err := LoadScenario(writeScenario(t, scenarioYAML))
	if err != nil {
		t.Fatal(err)
	}

	p, err := sc.Runs[0].ResolveParams()
	if err != nil {
		t.Fatal(err)
	}
	quick, _ := config.GetPreset("quick")
	if p.Rows != 16 || p.Steps != 20 || p.Seed != 4 {
		t.Errorf("overrides not applied: %+v", p)
	}
	if p.Dt != quick.Dt {
		t.Errorf("preset dt %v should survive, got %v", quick.Dt, p.Dt)
	}
	if p.Output != "single" {
		t.Errorf("expected output 'single', got %q", p.Output)
	}

	p, err = sc.Runs[1].ResolveParams()
	if err != nil {
		t.Fatal(err)
	}
	if p.M != config.DefaultM || p.Dt != 0.1 {
		t.Errorf("expected defaults under overrides: %+v", p)
	}

	bad := ScenarioRun{Preset: "nope"}
	if _, err := bad.ResolveParams(); !errors.Is(err, ErrUnknownPreset) {
		t.Errorf("expected ErrUnknownPreset, got %v", err)
	}
}

func TestRunScenario(t *testing.T) {
	sc, err := LoadScenario(writeScenario(t, scenarioYAML))
	if err != nil {
		t.Fatal(err)
	}
	runner, st := quietRunner(t)

	runs, sweep, err := runner.RunScenario(context.Background(), sc)
	if err != nil {
		t.Fatalf("scenario failed: %v", err)
	}

	if len(runs) != 3 {
		t.Fatalf("expected 3 run summaries, got %d", len(runs))
	}
	if runs[0].RunID != "single" || runs[0].Steps != 20 {
		t.Errorf("unexpected first run %+v", runs[0])
	}
	if runs[1].RunID != "ens_seed1" || runs[2].RunID != "ens_seed2" {
		t.Errorf("unexpected ensemble ids %q %q", runs[1].RunID, runs[2].RunID)
	}
	if runs[0].Length <= 0 {
		t.Errorf("expected a characteristic length, got %v", runs[0].Length)
	}

	if len(sweep) != 3 {
		t.Fatalf("expected 3 sweep points, got %d", len(sweep))
	}
	for i, want := range []float64{0, 0.2, 0.4} {
		if math.Abs(sweep[i].ParamValue-want) > 1e-12 {
			t.Errorf("point %d at %v, want %v", i, sweep[i].ParamValue, want)
		}
	}
	if sweep[2].RunID != "iv_2" {
		t.Errorf("unexpected sweep id %q", sweep[2].RunID)
	}

	listed, err := st.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 6 {
		t.Errorf("expected 6 stored runs, got %d", len(listed))
	}
	meta, err := st.Load("iv_1")
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(meta.Params.InitialValue-0.2) > 1e-12 {
		t.Errorf("sweep value not stored: %v", meta.Params.InitialValue)
	}
}

func TestRunSweepErrors(t *testing.T) {
	runner, _ := quietRunner(t)
	ctx := context.Background()

	if _, err := runner.RunSweep(ctx, &Sweep{Param: "rows", Count: 2}); !errors.Is(err, ErrUnknownParam) {
		t.Errorf("expected ErrUnknownParam, got %v", err)
	}
	if _, err := runner.RunSweep(ctx, &Sweep{Param: "noise", Count: 0}); !errors.Is(err, ErrInvalidSweep) {
		t.Errorf("expected ErrInvalidSweep, got %v", err)
	}
}

func TestRunScenarioStopsOnInvalidRun(t *testing.T) {
	sc := &Scenario{Name: "broken", Runs: []ScenarioRun{{Preset: "missing"}}}
	runner, _ := quietRunner(t)
	if _, _, err := runner.RunScenario(context.Background(), sc); !errors.Is(err, ErrUnknownPreset) {
		t.Errorf("expected ErrUnknownPreset, got %v", err)
	}
}

func TestSweepParams(t *testing.T) {
	names := SweepParams()
	if len(names) != 7 || names[0] != "a" {
		t.Errorf("unexpected sweep parameters %v", names)
	}
}

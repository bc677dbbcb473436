package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/chsim/internal/lattice"
)

const (
	DefaultDx            = 1.0
	DefaultDt            = 1.0
	DefaultM             = 0.1
	DefaultA             = 0.1
	DefaultK             = 0.1
	DefaultInitialValue  = 0.0
	DefaultNoise         = 0.1
	DefaultSteps         = 100000
	DefaultRows          = 100
	DefaultCols          = 100
	DefaultSnapshotEvery = 1000

	// TimestampLayout names output directories when none is given.
	TimestampLayout = "2006-01-02_15-04-05"

	recordWidth = 30
)

var ErrInvalidParams = errors.New("config: invalid parameters")

// Params is the full set of constants for one run. It is passed by value
// and never changed once a run starts.
type Params struct {
	Dx            float64  `yaml:"dx" json:"dx"`
	Dt            float64  `yaml:"dt" json:"dt"`
	M             float64  `yaml:"m" json:"m"`
	A             float64  `yaml:"a" json:"a"`
	K             float64  `yaml:"k" json:"k"`
	InitialValue  float64  `yaml:"initial_value" json:"initial_value"`
	Noise         float64  `yaml:"noise" json:"noise"`
	Steps         int      `yaml:"steps" json:"steps"`
	Rows          int      `yaml:"rows" json:"rows"` // x-range, the lattice width
	Cols          int      `yaml:"cols" json:"cols"` // y-range, the lattice height
	Output        string   `yaml:"output" json:"output"`
	Seed          int64    `yaml:"seed" json:"seed"`
	Animate       bool     `yaml:"animate" json:"animate"`
	SnapshotEvery int      `yaml:"snapshot_every" json:"snapshot_every"`
	Workers       int      `yaml:"workers" json:"workers"`
	Metrics       []string `yaml:"metrics,omitempty" json:"metrics,omitempty"`
}

func DefaultParams() Params {
	return Params{
		Dx:            DefaultDx,
		Dt:            DefaultDt,
		M:             DefaultM,
		A:             DefaultA,
		K:             DefaultK,
		InitialValue:  DefaultInitialValue,
		Noise:         DefaultNoise,
		Steps:         DefaultSteps,
		Rows:          DefaultRows,
		Cols:          DefaultCols,
		SnapshotEvery: DefaultSnapshotEvery,
	}
}

func Load(path string) (Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Params{}, err
	}
	p := DefaultParams()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Params{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return p, nil
}

func Save(path string, p Params) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// NewLattice allocates a zero lattice with the run's shape and constants.
func (p Params) NewLattice() (*lattice.Lattice, error) {
	return lattice.New(p.Rows, p.Cols, p.M, p.A, p.K, p.Dx)
}

// Validate reports every constraint a run needs before any work starts.
func (p Params) Validate() error {
	var problems []string
	if p.Rows <= 0 || p.Cols <= 0 {
		problems = append(problems, fmt.Sprintf("domain must be at least 1x1, got %dx%d", p.Rows, p.Cols))
	}
	if !(p.Dx > 0) || math.IsInf(p.Dx, 0) {
		problems = append(problems, fmt.Sprintf("spatial step must be positive, got %g", p.Dx))
	}
	if !(p.Dt > 0) || math.IsInf(p.Dt, 0) {
		problems = append(problems, fmt.Sprintf("time step must be positive, got %g", p.Dt))
	}
	if p.Steps < 0 {
		problems = append(problems, fmt.Sprintf("steps must not be negative, got %d", p.Steps))
	}
	if p.Animate && p.SnapshotEvery <= 0 {
		problems = append(problems, fmt.Sprintf("snapshot interval must be positive, got %d", p.SnapshotEvery))
	}
	if p.Workers < 0 {
		problems = append(problems, fmt.Sprintf("workers must not be negative, got %d", p.Workers))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidParams, strings.Join(problems, "; "))
	}
	return nil
}

// StabilityLimit is the largest dt for which the linearised explicit scheme
// stays bounded: the discrete biharmonic eigenvalue peaks at 64/dx⁴ and the
// Laplacian at 8/dx². It is advisory; runs are never refused on it.
func (p Params) StabilityLimit() float64 {
	rate := p.M * (64*p.K/math.Pow(p.Dx, 4) + 8*math.Abs(p.A)/(p.Dx*p.Dx))
	if rate <= 0 {
		return math.Inf(1)
	}
	return 2 / rate
}

// String renders the parameter record: one left-aligned label per row
// padded to a fixed width, followed by the value.
func (p Params) String() string {
	var b strings.Builder
	b.WriteString("Input-Parameters...\n")
	row := func(label string, v any) {
		fmt.Fprintf(&b, "%-*s%v\n", recordWidth, label+": ", v)
	}
	row("Spatial-discretisation", p.Dx)
	row("Temporal-discretisation", p.Dt)
	row("M", p.M)
	row("a", p.A)
	row("k", p.K)
	row("Initial-value", p.InitialValue)
	row("Initial-noise", p.Noise)
	row("Total-steps", p.Steps)
	row("Domain-rows", p.Rows)
	row("Domain-cols", p.Cols)
	row("Output-directory", p.Output)
	return b.String()
}

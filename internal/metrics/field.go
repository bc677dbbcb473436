package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/chsim/internal/sim"
)

// MassDrift is the largest deviation of the mean order parameter from its
// initial value. The update conserves the mean, so this only ever shows
// rounding.
type MassDrift struct {
	name     string
	initial  float64
	maxDrift float64
	samples  int
}

func NewMassDrift() *MassDrift {
	return &MassDrift{name: "mass_drift"}
}

func (m *MassDrift) Name() string { return m.name }

func (m *MassDrift) Observe(f *sim.Frame) {
	mean := stat.Mean(f.Values(), nil)
	if m.samples == 0 {
		m.initial = mean
	}
	m.maxDrift = math.Max(m.maxDrift, math.Abs(mean-m.initial))
	m.samples++
}

func (m *MassDrift) Value() float64 { return m.maxDrift }

func (m *MassDrift) Reset() {
	m.initial = 0
	m.maxDrift = 0
	m.samples = 0
}

// Variance of the latest field. It grows from the noise amplitude as the
// phases separate and saturates near the square of the equilibrium value.
type Variance struct {
	name  string
	value float64
}

func NewVariance() *Variance {
	return &Variance{name: "variance"}
}

func (v *Variance) Name() string { return v.name }

func (v *Variance) Observe(f *sim.Frame) {
	_, v.value = stat.PopMeanVariance(f.Values(), nil)
}

func (v *Variance) Value() float64 { return v.value }
func (v *Variance) Reset()         { v.value = 0 }

// Extremum records the minimum or maximum site value of the latest field.
type Extremum struct {
	name  string
	pick  func([]float64) float64
	value float64
}

func NewMin() *Extremum {
	return &Extremum{name: "min", pick: floats.Min}
}

func NewMax() *Extremum {
	return &Extremum{name: "max", pick: floats.Max}
}

func (e *Extremum) Name() string { return e.name }

func (e *Extremum) Observe(f *sim.Frame) {
	e.value = e.pick(f.Values())
}

func (e *Extremum) Value() float64 { return e.value }
func (e *Extremum) Reset()         { e.value = 0 }

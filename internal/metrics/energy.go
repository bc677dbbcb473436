package metrics

import (
	"math"

	"github.com/san-kum/chsim/internal/sim"
)

// EnergyDrop reports how far the total free energy has fallen since the
// initial frame. A healthy run ends with a positive value.
type EnergyDrop struct {
	name    string
	initial float64
	current float64
	samples int
}

func NewEnergyDrop() *EnergyDrop {
	return &EnergyDrop{name: "energy_drop"}
}

func (e *EnergyDrop) Name() string { return e.name }

func (e *EnergyDrop) Observe(f *sim.Frame) {
	energy := f.Energy()
	if e.samples == 0 {
		e.initial = energy
	}
	e.current = energy
	e.samples++
}

func (e *EnergyDrop) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.initial - e.current
}

func (e *EnergyDrop) Reset() {
	e.initial = 0
	e.current = 0
	e.samples = 0
}

// EnergyRise tracks the largest step-to-step increase of the free energy.
// It is a diagnostic, not a stability test: the gradient term uses central
// differences over 2dx while μ uses the 5-point Laplacian, so damping the
// shortest wavelengths can raise the discrete energy slightly even when dt
// is well inside the stability limit. A smooth field shows no rise.
type EnergyRise struct {
	name    string
	prev    float64
	maxRise float64
	samples int
}

func NewEnergyRise() *EnergyRise {
	return &EnergyRise{name: "max_energy_rise"}
}

func (e *EnergyRise) Name() string { return e.name }

func (e *EnergyRise) Observe(f *sim.Frame) {
	energy := f.Energy()
	if e.samples > 0 {
		e.maxRise = math.Max(e.maxRise, energy-e.prev)
	}
	e.prev = energy
	e.samples++
}

func (e *EnergyRise) Value() float64 {
	return e.maxRise
}

func (e *EnergyRise) Reset() {
	e.prev = 0
	e.maxRise = 0
	e.samples = 0
}

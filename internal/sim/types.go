package sim

import (
	"errors"
	"fmt"

	"github.com/san-kum/chsim/internal/lattice"
)

var (
	// ErrAliased indicates the source and destination of a sweep are the same lattice.
	ErrAliased = errors.New("sim: source and destination lattice are the same")

	// ErrNonFinite indicates the field holds NaN or Inf values.
	ErrNonFinite = errors.New("sim: lattice holds NaN or Inf values")

	// ErrInvalidConfig indicates a non-positive dt or negative step count.
	ErrInvalidConfig = errors.New("sim: invalid config")

	// ErrCanceled indicates the run was interrupted through its context.
	ErrCanceled = errors.New("sim: run canceled")
)

// Frame is the state handed to observers and metrics after each step.
// Step 0 is the initial field.
type Frame struct {
	Step    int
	Time    float64
	Lattice *lattice.Lattice

	energy    float64
	hasEnergy bool
	values    []float64
}

// Energy returns the total free energy of the frame, computed at most once.
func (f *Frame) Energy() float64 {
	if !f.hasEnergy {
		f.energy = f.Lattice.TotalFreeEnergy()
		f.hasEnergy = true
	}
	return f.energy
}

// Values returns a copy of the field shared by every consumer of the frame.
// Callers must not modify it.
func (f *Frame) Values() []float64 {
	if f.values == nil {
		f.values = f.Lattice.Values()
	}
	return f.values
}

type Observer interface {
	OnStep(f *Frame) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(f *Frame) error

func (fn ObserverFunc) OnStep(f *Frame) error { return fn(f) }

type Metric interface {
	Name() string
	Observe(f *Frame)
	Value() float64
	Reset()
}

type Config struct {
	Dt            float64
	Steps         int
	ValidateState bool
}

type Result struct {
	Final         *lattice.Lattice
	StepsTaken    int
	InitialEnergy float64
	FinalEnergy   float64
	Metrics       map[string]float64
}

// SimError wraps an error with the step it happened at.
type SimError struct {
	Step    int
	Wrapped error
}

func (e *SimError) Error() string {
	return fmt.Sprintf("step %d: %v", e.Step, e.Wrapped)
}

func (e *SimError) Unwrap() error { return e.Wrapped }

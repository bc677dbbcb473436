package sim

import (
	"context"
	"fmt"

	"github.com/san-kum/chsim/internal/lattice"
)

// Simulator advances a pair of lattices for a fixed number of steps.
// A run moves from the initial frame through Steps sweeps; each step is a
// sweep, a swap of the two buffers and one emission to observers and
// metrics.
type Simulator struct {
	stepper   *Stepper
	metrics   []Metric
	observers []Observer
}

func New(stepper *Stepper) *Simulator {
	if stepper == nil {
		stepper = NewStepper(1)
	}
	return &Simulator{
		stepper:   stepper,
		metrics:   make([]Metric, 0),
		observers: make([]Observer, 0),
	}
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

// Run evolves cur for cfg.Steps steps using dst as the second buffer. The
// caller keeps ownership of both lattices; Result.Final points at whichever
// of them holds the last state.
func (s *Simulator) Run(ctx context.Context, cur, dst *lattice.Lattice, cfg Config) (*Result, error) {
	if err := s.validateConfig(cfg); err != nil {
		return nil, err
	}
	if err := checkPair(cur, dst); err != nil {
		return nil, err
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	result := &Result{Metrics: make(map[string]float64)}

	frame := &Frame{Step: 0, Lattice: cur}
	result.InitialEnergy = frame.Energy()
	if err := s.emit(frame); err != nil {
		return nil, err
	}

	for step := 1; step <= cfg.Steps; step++ {
		select {
		case <-ctx.Done():
			result.Final = cur
			return result, &SimError{Step: step, Wrapped: fmt.Errorf("%w: %w", ErrCanceled, ctx.Err())}
		default:
		}

		if err := s.stepper.Sweep(cur, dst, cfg.Dt); err != nil {
			return nil, &SimError{Step: step, Wrapped: err}
		}
		cur, dst = dst, cur
		result.StepsTaken++

		if cfg.ValidateState && !cur.IsFinite() {
			result.Final = cur
			return result, &SimError{Step: step, Wrapped: ErrNonFinite}
		}

		frame = &Frame{Step: step, Time: float64(step) * cfg.Dt, Lattice: cur}
		if err := s.emit(frame); err != nil {
			result.Final = cur
			return result, err
		}
	}

	result.Final = cur
	result.FinalEnergy = frame.Energy()
	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	return result, nil
}

func (s *Simulator) emit(f *Frame) error {
	for _, m := range s.metrics {
		m.Observe(f)
	}
	for _, obs := range s.observers {
		if err := obs.OnStep(f); err != nil {
			return &SimError{Step: f.Step, Wrapped: err}
		}
	}
	return nil
}

func (s *Simulator) validateConfig(cfg Config) error {
	if cfg.Dt <= 0 {
		return fmt.Errorf("%w: dt must be positive, got %f", ErrInvalidConfig, cfg.Dt)
	}
	if cfg.Steps < 0 {
		return fmt.Errorf("%w: steps must not be negative, got %d", ErrInvalidConfig, cfg.Steps)
	}
	return nil
}

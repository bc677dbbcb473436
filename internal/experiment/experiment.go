package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/san-kum/chsim/internal/config"
	"github.com/san-kum/chsim/internal/metrics"
	"github.com/san-kum/chsim/internal/sim"
	"github.com/san-kum/chsim/internal/storage"
)

// Experiment turns a parameter bundle into one simulation: it seeds and
// initialises the lattice, attaches metrics and the run directory, and
// evolves the field.
type Experiment struct {
	params    config.Params
	store     *storage.Store
	logger    *slog.Logger
	observers []sim.Observer
	validate  bool
}

type Option func(*Experiment)

// WithStore writes the run into a directory of st.
func WithStore(st *storage.Store) Option {
	return func(e *Experiment) { e.store = st }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Experiment) { e.logger = l }
}

// WithObserver adds an observer that runs after the storage observer.
func WithObserver(o sim.Observer) Option {
	return func(e *Experiment) { e.observers = append(e.observers, o) }
}

// WithStateValidation stops the run at the first step that produces NaN or
// Inf.
func WithStateValidation() Option {
	return func(e *Experiment) { e.validate = true }
}

func New(p config.Params, opts ...Option) *Experiment {
	e := &Experiment{params: p, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Outcome is what a finished run reports back. Params carries the seed
// actually used.
type Outcome struct {
	RunID   string
	Params  config.Params
	Result  *sim.Result
	Elapsed time.Duration
}

func (e *Experiment) Run(ctx context.Context) (*Outcome, error) {
	p := e.params
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.Seed == 0 {
		p.Seed = time.Now().UnixNano()
	}

	cur, err := p.NewLattice()
	if err != nil {
		return nil, err
	}
	cur.Initialise(p.InitialValue, p.Noise, rand.New(rand.NewSource(p.Seed)))
	dst := cur.Clone()

	ms, err := metrics.FromNames(p.Metrics)
	if err != nil {
		return nil, err
	}
	s := sim.New(sim.NewStepper(p.Workers))
	for _, m := range ms {
		s.AddMetric(m)
	}

	out := &Outcome{Params: p}
	log := e.logger
	var run *storage.Run
	if e.store != nil {
		run, err = e.store.WithLogger(e.logger).Create(p)
		if err != nil {
			return nil, fmt.Errorf("create run: %w", err)
		}
		defer run.Close()
		s.AddObserver(run)
		out.RunID = run.ID
		out.Params.Output = run.ID
		log = log.With("run", run.ID)
	}
	for _, o := range e.observers {
		s.AddObserver(o)
	}
	s.AddObserver(progress(log, p.Steps))

	if limit := p.StabilityLimit(); p.Dt > limit {
		log.Warn("time step exceeds the linear stability limit", "dt", p.Dt, "limit", limit)
	}
	log.Info("starting run", "size", fmt.Sprintf("%dx%d", p.Rows, p.Cols), "steps", p.Steps, "seed", p.Seed, "workers", p.Workers)

	start := time.Now()
	res, err := s.Run(ctx, cur, dst, sim.Config{Dt: p.Dt, Steps: p.Steps, ValidateState: e.validate})
	out.Elapsed = time.Since(start)
	out.Result = res
	if err != nil {
		return out, err
	}

	if run != nil {
		if err := run.Finish(res, out.Elapsed); err != nil {
			return out, fmt.Errorf("finish run: %w", err)
		}
		if err := run.Close(); err != nil {
			return out, err
		}
	}

	log.Info("run complete",
		"steps", res.StepsTaken,
		"initial_energy", res.InitialEnergy,
		"final_energy", res.FinalEnergy,
		"elapsed", out.Elapsed.Round(time.Millisecond))
	return out, nil
}

// progress logs roughly ten times per run at debug level.
func progress(log *slog.Logger, steps int) sim.Observer {
	every := max(steps/10, 1)
	return sim.ObserverFunc(func(f *sim.Frame) error {
		if f.Step > 0 && f.Step%every == 0 {
			log.Debug("progress", "step", f.Step, "of", steps, "energy", f.Energy())
		}
		return nil
	})
}

package sim

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/chsim/internal/lattice"
)

// minRowsPerWorker keeps small grids on the serial path.
const minRowsPerWorker = 8

// Update writes cur.NextValue(x, y, dt) into every site of dst. It reads
// only cur, so every neighbour read sees the pre-update field.
func Update(cur, dst *lattice.Lattice, dt float64) error {
	if err := checkPair(cur, dst); err != nil {
		return err
	}
	for y := 0; y < cur.Height(); y++ {
		for x := 0; x < cur.Width(); x++ {
			dst.Set(x, y, cur.NextValue(x, y, dt))
		}
	}
	return nil
}

func checkPair(cur, dst *lattice.Lattice) error {
	if cur == dst {
		return ErrAliased
	}
	if !cur.SameShape(dst) {
		return fmt.Errorf("%w: %dx%d vs %dx%d", lattice.ErrShapeMismatch,
			cur.Width(), cur.Height(), dst.Width(), dst.Height())
	}
	return nil
}

// Stepper performs the same sweep as Update but computes the chemical
// potential once per site into a scratch buffer before taking its
// Laplacian. Results are bit-identical to Update.
//
// With more than one worker the rows are split into bands. All potentials
// are written before any band starts the second phase, and Sweep returns
// only after every destination row is written.
type Stepper struct {
	workers int
	mu      []float64
}

// NewStepper returns a stepper using up to workers goroutines per sweep.
// Values below 2 select the serial path.
func NewStepper(workers int) *Stepper {
	if workers < 1 {
		workers = 1
	}
	return &Stepper{workers: workers}
}

func (s *Stepper) Workers() int { return s.workers }

func (s *Stepper) Sweep(cur, dst *lattice.Lattice, dt float64) error {
	if err := checkPair(cur, dst); err != nil {
		return err
	}
	if len(s.mu) != cur.Len() {
		s.mu = make([]float64, cur.Len())
	}

	h := cur.Height()
	if err := parallelRows(h, s.workers, func(y0, y1 int) {
		cur.PotentialRows(s.mu, y0, y1)
	}); err != nil {
		return err
	}
	return parallelRows(h, s.workers, func(y0, y1 int) {
		cur.AdvanceRows(dst, s.mu, dt, y0, y1)
	})
}

// parallelRows runs fn over [0, n) split into contiguous bands and waits
// for all of them.
func parallelRows(n, workers int, fn func(y0, y1 int)) error {
	if workers > n/minRowsPerWorker {
		workers = n / minRowsPerWorker
	}
	if workers <= 1 {
		fn(0, n)
		return nil
	}

	chunk := (n + workers - 1) / workers
	var g errgroup.Group
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		y0, y1 := start, end
		g.Go(func() error {
			fn(y0, y1)
			return nil
		})
	}
	return g.Wait()
}

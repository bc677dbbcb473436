// Package lattice holds the order-parameter field of a Cahn-Hilliard
// simulation on a periodic 2D grid, together with the discretised
// chemical potential, free energy density and explicit Euler update.
package lattice

import (
	"fmt"
	"math"
	"math/rand"
)

// Constants are the physical and numerical constants a lattice is built with.
type Constants struct {
	M  float64 // mobility
	A  float64 // well depth
	K  float64 // gradient energy coefficient
	Dx float64 // spatial step
}

// Lattice is a W*H field of order-parameter values with periodic boundaries.
// Values are stored row-major: site (x, y) lives at x + y*W.
type Lattice struct {
	w, h int
	c    Constants
	data []float64
}

// New allocates a zero field of width*height sites.
func New(width, height int, m, a, k, dx float64) (*Lattice, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: got %dx%d", ErrInvalidDimensions, width, height)
	}
	if dx <= 0 || math.IsNaN(dx) || math.IsInf(dx, 0) {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidSpacing, dx)
	}
	return &Lattice{
		w:    width,
		h:    height,
		c:    Constants{M: m, A: a, K: k, Dx: dx},
		data: make([]float64, width*height),
	}, nil
}

func (l *Lattice) Width() int           { return l.w }
func (l *Lattice) Height() int          { return l.h }
func (l *Lattice) Len() int             { return len(l.data) }
func (l *Lattice) Constants() Constants { return l.c }

// SameShape reports whether o has the same width and height as l.
func (l *Lattice) SameShape(o *Lattice) bool {
	return o != nil && l.w == o.w && l.h == o.h
}

// Initialise sets every site to initialValue plus noise drawn uniformly from
// [-noise, noise]. One draw is taken from rng per site, in storage order.
func (l *Lattice) Initialise(initialValue, noise float64, rng *rand.Rand) {
	noise = math.Abs(noise)
	for i := range l.data {
		l.data[i] = initialValue + noise*(2*rng.Float64()-1)
	}
}

// Fill sets every site to v.
func (l *Lattice) Fill(v float64) {
	for i := range l.data {
		l.data[i] = v
	}
}

func wrap(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

func (l *Lattice) index(x, y int) int {
	return wrap(x, l.w) + wrap(y, l.h)*l.w
}

// At returns φ at (x, y). Any integer coordinates are accepted and wrapped
// onto the torus.
func (l *Lattice) At(x, y int) float64 { return l.data[l.index(x, y)] }

// Set stores v at the wrapped site (x, y).
func (l *Lattice) Set(x, y int, v float64) { l.data[l.index(x, y)] = v }

// Values returns a copy of the field in row-major order.
func (l *Lattice) Values() []float64 {
	out := make([]float64, len(l.data))
	copy(out, l.data)
	return out
}

// Clone returns a deep copy. The clone never shares storage with l.
func (l *Lattice) Clone() *Lattice {
	return &Lattice{w: l.w, h: l.h, c: l.c, data: l.Values()}
}

// CopyFrom overwrites l's field with src's.
func (l *Lattice) CopyFrom(src *Lattice) error {
	if !l.SameShape(src) {
		return fmt.Errorf("%w: %dx%d vs %dx%d", ErrShapeMismatch, l.w, l.h, src.w, src.h)
	}
	copy(l.data, src.data)
	return nil
}

// IsFinite reports whether every site holds a finite value.
func (l *Lattice) IsFinite() bool {
	for _, v := range l.data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// potential is μ = -aφ + aφ³ - (k/dx²)·∇²φ given φ and its four neighbours.
// The explicit conversions keep the compiler from fusing operations, so
// every caller gets bit-identical results.
func potential(c Constants, phi, right, left, up, down float64) float64 {
	lap := right + left + up + down - 4*phi
	return float64(-c.A*phi) + float64(c.A*phi*phi*phi) - float64(c.K/(c.Dx*c.Dx)*lap)
}

// advance is φ' = φ + (M dt/dx²)·∇²μ given μ at the site and its neighbours.
func advance(c Constants, dt, phi, mu, right, left, up, down float64) float64 {
	lap := right + left + up + down - 4*mu
	return phi + float64(c.M*dt/(c.Dx*c.Dx)*lap)
}

// ChemicalPotential returns μ(x, y) for the current field.
func (l *Lattice) ChemicalPotential(x, y int) float64 {
	return potential(l.c, l.At(x, y), l.At(x+1, y), l.At(x-1, y), l.At(x, y+1), l.At(x, y-1))
}

// FreeEnergyDensity returns the local free energy at (x, y) using a
// central-difference estimate of the gradient.
func (l *Lattice) FreeEnergyDensity(x, y int) float64 {
	phi := l.At(x, y)
	gx := (l.At(x+1, y) - l.At(x-1, y)) / (2 * l.c.Dx)
	gy := (l.At(x, y+1) - l.At(x, y-1)) / (2 * l.c.Dx)
	a := l.c.A
	return -a/2*phi*phi + a/4*phi*phi*phi*phi + l.c.K/2*(gx*gx+gy*gy)
}

// TotalFreeEnergy sums the free energy density over every site.
func (l *Lattice) TotalFreeEnergy() float64 {
	var sum, comp float64
	for y := 0; y < l.h; y++ {
		for x := 0; x < l.w; x++ {
			sum, comp = neumaier(sum, comp, l.FreeEnergyDensity(x, y))
		}
	}
	return sum + comp
}

// neumaier adds v to a compensated running sum.
func neumaier(sum, comp, v float64) (float64, float64) {
	t := sum + v
	if math.Abs(sum) >= math.Abs(v) {
		comp += (sum - t) + v
	} else {
		comp += (v - t) + sum
	}
	return t, comp
}

// NextValue returns φ at (x, y) after one explicit Euler step of size dt.
// It does not modify the lattice.
func (l *Lattice) NextValue(x, y int, dt float64) float64 {
	return advance(l.c, dt, l.At(x, y),
		l.ChemicalPotential(x, y),
		l.ChemicalPotential(x+1, y),
		l.ChemicalPotential(x-1, y),
		l.ChemicalPotential(x, y+1),
		l.ChemicalPotential(x, y-1))
}

// PotentialRows writes μ for rows [y0, y1) into mu, a row-major buffer of
// Len() values. It produces exactly the values ChemicalPotential would.
func (l *Lattice) PotentialRows(mu []float64, y0, y1 int) {
	w := l.w
	for y := y0; y < y1; y++ {
		row := y * w
		up := wrap(y+1, l.h) * w
		down := wrap(y-1, l.h) * w
		for x := 0; x < w; x++ {
			xr, xl := x+1, x-1
			if xr == w {
				xr = 0
			}
			if xl < 0 {
				xl = w - 1
			}
			mu[row+x] = potential(l.c, l.data[row+x], l.data[row+xr], l.data[row+xl], l.data[up+x], l.data[down+x])
		}
	}
}

// AdvanceRows writes the Euler update of rows [y0, y1) into dst, reading φ
// from l and μ from a buffer filled by PotentialRows over the whole field.
// It produces exactly the values NextValue would.
func (l *Lattice) AdvanceRows(dst *Lattice, mu []float64, dt float64, y0, y1 int) {
	w := l.w
	for y := y0; y < y1; y++ {
		row := y * w
		up := wrap(y+1, l.h) * w
		down := wrap(y-1, l.h) * w
		for x := 0; x < w; x++ {
			xr, xl := x+1, x-1
			if xr == w {
				xr = 0
			}
			if xl < 0 {
				xl = w - 1
			}
			dst.data[row+x] = advance(l.c, dt, l.data[row+x], mu[row+x], mu[row+xr], mu[row+xl], mu[up+x], mu[down+x])
		}
	}
}

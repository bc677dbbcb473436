package analysis

import (
	"errors"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/chsim/internal/lattice"
)

// ErrFlatField is returned when the field has no fluctuations to analyse.
var ErrFlatField = errors.New("analysis: field has no fluctuations")

// Spectrum is S(k) on the discrete Fourier grid. S[j][i] belongs to the
// wavevector (Kx(i), Ky(j)).
type Spectrum struct {
	S      [][]float64
	Width  int
	Height int
	Dx     float64
	// Flat is set when every site holds the same value. S is then all zero.
	Flat bool
}

// StructureFactor computes |FFT(φ - <φ>)|² / N for the lattice.
func StructureFactor(l *lattice.Lattice) *Spectrum {
	w, h := l.Width(), l.Height()
	values := l.Values()
	if floats.Max(values)-floats.Min(values) == 0 {
		s := make([][]float64, h)
		for j := range s {
			s[j] = make([]float64, w)
		}
		return &Spectrum{S: s, Width: w, Height: h, Dx: l.Constants().Dx, Flat: true}
	}
	mean := stat.Mean(values, nil)

	grid := make([][]float64, h)
	for y := 0; y < h; y++ {
		row := values[y*w : (y+1)*w]
		floats.AddConst(-mean, row)
		grid[y] = row
	}

	coeffs := fft.FFT2Real(grid)
	n := float64(w * h)
	s := make([][]float64, h)
	for j, row := range coeffs {
		s[j] = make([]float64, w)
		for i, c := range row {
			a := cmplx.Abs(c)
			s[j][i] = a * a / n
		}
	}
	return &Spectrum{S: s, Width: w, Height: h, Dx: l.Constants().Dx}
}

// wavenumber maps FFT index i of an n-point axis to its signed angular
// wavenumber.
func wavenumber(i, n int, dx float64) float64 {
	if i > n/2 {
		i -= n
	}
	return 2 * math.Pi * float64(i) / (float64(n) * dx)
}

func (sp *Spectrum) Kx(i int) float64 { return wavenumber(i, sp.Width, sp.Dx) }
func (sp *Spectrum) Ky(j int) float64 { return wavenumber(j, sp.Height, sp.Dx) }

// ShellWidth is the radial bin width: the finest wavenumber spacing of the
// two axes.
func (sp *Spectrum) ShellWidth() float64 {
	return 2 * math.Pi / (float64(max(sp.Width, sp.Height)) * sp.Dx)
}

// Total is the summed power, equal to the field variance times N.
func (sp *Spectrum) Total() float64 {
	total := 0.0
	for _, row := range sp.S {
		total += floats.Sum(row)
	}
	return total
}

type Bin struct {
	K     float64
	S     float64
	Count int
}

// RadialAverage averages S over shells |k| ≈ n·ShellWidth, n ≥ 1. The k=0
// mode is excluded; it only carries the mean, which was removed. Bin.K is
// the shell centre.
func RadialAverage(sp *Spectrum) []Bin {
	dk := sp.ShellWidth()
	shells := make(map[int][]float64)
	maxShell := 0

	for j := 0; j < sp.Height; j++ {
		ky := sp.Ky(j)
		for i := 0; i < sp.Width; i++ {
			if i == 0 && j == 0 {
				continue
			}
			k := math.Hypot(sp.Kx(i), ky)
			n := int(math.Round(k / dk))
			shells[n] = append(shells[n], sp.S[j][i])
			maxShell = max(maxShell, n)
		}
	}

	bins := make([]Bin, 0, len(shells))
	for n := 0; n <= maxShell; n++ {
		ss, ok := shells[n]
		if !ok {
			continue
		}
		bins = append(bins, Bin{
			K:     float64(n) * dk,
			S:     stat.Mean(ss, nil),
			Count: len(ss),
		})
	}
	return bins
}

// Peak returns the bin with the largest averaged S.
func Peak(bins []Bin) (Bin, bool) {
	if len(bins) == 0 {
		return Bin{}, false
	}
	best := bins[0]
	for _, b := range bins[1:] {
		if b.S > best.S {
			best = b
		}
	}
	return best, true
}

// CharacteristicLength returns 2π/<k> with <k> the first moment of S(k).
func CharacteristicLength(sp *Spectrum) (float64, error) {
	ks := make([]float64, 0, sp.Width*sp.Height)
	ws := make([]float64, 0, sp.Width*sp.Height)
	for j := 0; j < sp.Height; j++ {
		for i := 0; i < sp.Width; i++ {
			if i == 0 && j == 0 {
				continue
			}
			ks = append(ks, math.Hypot(sp.Kx(i), sp.Ky(j)))
			ws = append(ws, sp.S[j][i])
		}
	}
	if sp.Flat || len(ws) == 0 || floats.Sum(ws) <= 0 {
		return 0, ErrFlatField
	}
	return 2 * math.Pi / stat.Mean(ks, ws), nil
}

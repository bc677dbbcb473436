package lattice

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func newTestLattice(t *testing.T, w, h int) *Lattice {
	t.Helper()
	l, err := New(w, h, 0.1, 0.1, 0.1, 1.0)
	if err != nil {
		t.Fatalf("new lattice: %v", err)
	}
	return l
}

func TestNewInvalid(t *testing.T) {
	tests := []struct {
		name string
		w, h int
		dx   float64
		want error
	}{
		{"zero width", 0, 4, 1, ErrInvalidDimensions},
		{"negative height", 4, -1, 1, ErrInvalidDimensions},
		{"zero dx", 4, 4, 0, ErrInvalidSpacing},
		{"negative dx", 4, 4, -0.5, ErrInvalidSpacing},
		{"nan dx", 4, 4, math.NaN(), ErrInvalidSpacing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.w, tt.h, 0.1, 0.1, 0.1, tt.dx)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestNewZeroField(t *testing.T) {
	l := newTestLattice(t, 3, 5)
	if l.Len() != 15 {
		t.Fatalf("expected 15 sites, got %d", l.Len())
	}
	for _, v := range l.Values() {
		if v != 0 {
			t.Fatalf("expected zero field, got %v", v)
		}
	}
}

func TestPeriodicity(t *testing.T) {
	l := newTestLattice(t, 5, 3)
	l.Initialise(0, 1, rand.New(rand.NewSource(1)))

	for x := -7; x < 12; x++ {
		for y := -5; y < 8; y++ {
			for _, n := range []int{-3, -1, 1, 2, 100} {
				if l.At(x, y) != l.At(x+n*5, y+n*3) {
					t.Fatalf("site (%d,%d) differs from shift n=%d", x, y, n)
				}
			}
		}
	}

	l.Set(-1, -1, 42)
	if l.At(4, 2) != 42 {
		t.Errorf("write through (-1,-1) should land on (4,2), got %v", l.At(4, 2))
	}
	if l.At(9, 5) != 42 {
		t.Errorf("(9,5) should wrap onto (4,2), got %v", l.At(9, 5))
	}
}

func TestInitialiseBounds(t *testing.T) {
	l := newTestLattice(t, 20, 20)
	l.Initialise(0.3, 0.05, rand.New(rand.NewSource(7)))

	distinct := map[float64]bool{}
	for _, v := range l.Values() {
		if v < 0.25 || v > 0.35 {
			t.Fatalf("value %v outside [0.25, 0.35]", v)
		}
		distinct[v] = true
	}
	if len(distinct) < 100 {
		t.Errorf("expected independent draws per site, got %d distinct values", len(distinct))
	}
}

func TestInitialiseZeroNoise(t *testing.T) {
	l := newTestLattice(t, 4, 4)
	l.Initialise(-0.4, 0, rand.New(rand.NewSource(3)))
	for _, v := range l.Values() {
		if v != -0.4 {
			t.Fatalf("expected -0.4, got %v", v)
		}
	}
}

func TestInitialiseDeterministicSeed(t *testing.T) {
	a := newTestLattice(t, 8, 8)
	b := newTestLattice(t, 8, 8)
	a.Initialise(0, 0.1, rand.New(rand.NewSource(99)))
	b.Initialise(0, 0.1, rand.New(rand.NewSource(99)))
	av, bv := a.Values(), b.Values()
	for i := range av {
		if av[i] != bv[i] {
			t.Fatalf("site %d differs for equal seeds", i)
		}
	}
}

func TestPureFunctions(t *testing.T) {
	l := newTestLattice(t, 6, 6)
	l.Initialise(0, 0.5, rand.New(rand.NewSource(5)))
	before := l.Values()

	for x := 0; x < 6; x++ {
		for y := 0; y < 6; y++ {
			if l.ChemicalPotential(x, y) != l.ChemicalPotential(x, y) {
				t.Fatal("ChemicalPotential not deterministic")
			}
			if l.FreeEnergyDensity(x, y) != l.FreeEnergyDensity(x, y) {
				t.Fatal("FreeEnergyDensity not deterministic")
			}
			if l.NextValue(x, y, 0.5) != l.NextValue(x, y, 0.5) {
				t.Fatal("NextValue not deterministic")
			}
		}
	}

	after := l.Values()
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("site %d mutated by a pure function", i)
		}
	}
}

func TestUniformFieldFixedPoint(t *testing.T) {
	tests := []struct {
		name string
		phi  float64
	}{
		{"zero", 0},
		{"positive", 0.4},
		{"negative", -0.7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLattice(t, 5, 4)
			l.Fill(tt.phi)
			a := 0.1
			wantMu := -a*tt.phi + a*tt.phi*tt.phi*tt.phi
			wantF := -a/2*tt.phi*tt.phi + a/4*math.Pow(tt.phi, 4)
			for x := 0; x < 5; x++ {
				for y := 0; y < 4; y++ {
					if mu := l.ChemicalPotential(x, y); math.Abs(mu-wantMu) > 1e-15 {
						t.Errorf("mu(%d,%d) = %v, want %v", x, y, mu, wantMu)
					}
					if f := l.FreeEnergyDensity(x, y); math.Abs(f-wantF) > 1e-15 {
						t.Errorf("f(%d,%d) = %v, want %v", x, y, f, wantF)
					}
					for _, dt := range []float64{0.01, 1, 100} {
						next := l.NextValue(x, y, dt)
						if tt.phi == 0 && next != 0 {
							t.Errorf("next(%d,%d,%v) = %v, want exactly 0", x, y, dt, next)
						}
						if math.Abs(next-tt.phi) > 1e-12 {
							t.Errorf("next(%d,%d,%v) = %v, want %v", x, y, dt, next, tt.phi)
						}
					}
				}
			}
		})
	}
}

func TestZeroFieldEnergy(t *testing.T) {
	l := newTestLattice(t, 4, 4)
	if e := l.TotalFreeEnergy(); e != 0 {
		t.Errorf("expected zero energy, got %v", e)
	}
	if mu := l.ChemicalPotential(2, 3); mu != 0 {
		t.Errorf("expected zero potential, got %v", mu)
	}
}

func TestStencilSinglePeak(t *testing.T) {
	l, err := New(5, 5, 1.0, 0.0, 1.0, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	l.Set(2, 2, 1.0)

	// with a = 0, μ = -(k/dx²)∇²φ
	if mu := l.ChemicalPotential(2, 2); math.Abs(mu-16) > 1e-12 {
		t.Errorf("centre potential = %v, want 16", mu)
	}
	if mu := l.ChemicalPotential(3, 2); math.Abs(mu+4) > 1e-12 {
		t.Errorf("neighbour potential = %v, want -4", mu)
	}
	if mu := l.ChemicalPotential(0, 0); mu != 0 {
		t.Errorf("far potential = %v, want 0", mu)
	}

	gx := (l.At(3, 2) - l.At(1, 2)) / (2 * 0.5)
	if gx != 0 {
		t.Fatalf("symmetric peak should have zero central gradient, got %v", gx)
	}
	// f at (3,2): gradient (0-1)/(2dx) = -1
	if f := l.FreeEnergyDensity(3, 2); math.Abs(f-0.5) > 1e-12 {
		t.Errorf("free energy density = %v, want 0.5", f)
	}
}

func TestStencilWrapsAcrossEdge(t *testing.T) {
	l := newTestLattice(t, 4, 4)
	l.Set(0, 0, 1.0)
	// (3,0) sees (0,0) as its right neighbour and (0,3) sees it above
	if l.ChemicalPotential(3, 0) != l.ChemicalPotential(1, 0) {
		t.Error("left and right neighbours of the peak should agree across the edge")
	}
	if l.ChemicalPotential(0, 3) != l.ChemicalPotential(0, 1) {
		t.Error("upper and lower neighbours of the peak should agree across the edge")
	}
}

func TestNextValueMatchesFormula(t *testing.T) {
	l := newTestLattice(t, 6, 5)
	l.Initialise(0.1, 0.3, rand.New(rand.NewSource(11)))
	c := l.Constants()
	dt := 0.25

	for x := 0; x < 6; x++ {
		for y := 0; y < 5; y++ {
			lap := l.ChemicalPotential(x+1, y) + l.ChemicalPotential(x-1, y) +
				l.ChemicalPotential(x, y+1) + l.ChemicalPotential(x, y-1) - 4*l.ChemicalPotential(x, y)
			want := l.At(x, y) + c.M*dt/(c.Dx*c.Dx)*lap
			if got := l.NextValue(x, y, dt); math.Abs(got-want) > 1e-14 {
				t.Errorf("NextValue(%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestRowKernelsMatchSiteFunctions(t *testing.T) {
	for _, dims := range [][2]int{{1, 1}, {1, 4}, {4, 1}, {2, 3}, {7, 5}} {
		l := newTestLattice(t, dims[0], dims[1])
		l.Initialise(0, 0.8, rand.New(rand.NewSource(int64(dims[0]*31+dims[1]))))
		dst := l.Clone()

		mu := make([]float64, l.Len())
		l.PotentialRows(mu, 0, l.Height())
		l.AdvanceRows(dst, mu, 0.3, 0, l.Height())

		for y := 0; y < l.Height(); y++ {
			for x := 0; x < l.Width(); x++ {
				if mu[x+y*l.Width()] != l.ChemicalPotential(x, y) {
					t.Fatalf("%v: mu row kernel differs at (%d,%d)", dims, x, y)
				}
				if dst.At(x, y) != l.NextValue(x, y, 0.3) {
					t.Fatalf("%v: advance row kernel differs at (%d,%d)", dims, x, y)
				}
			}
		}
	}
}

func TestTotalFreeEnergyIsSumOfDensities(t *testing.T) {
	l := newTestLattice(t, 9, 7)
	l.Initialise(0, 1, rand.New(rand.NewSource(2)))

	want := 0.0
	for x := 0; x < 9; x++ {
		for y := 0; y < 7; y++ {
			want += l.FreeEnergyDensity(x, y)
		}
	}
	if got := l.TotalFreeEnergy(); math.Abs(got-want) > 1e-12 {
		t.Errorf("total = %v, want %v", got, want)
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	l := newTestLattice(t, 3, 3)
	c := l.Clone()
	c.Set(1, 1, 5)
	if l.At(1, 1) != 0 {
		t.Error("clone shares storage with original")
	}

	if err := l.CopyFrom(c); err != nil {
		t.Fatal(err)
	}
	if l.At(1, 1) != 5 {
		t.Error("CopyFrom did not copy values")
	}

	other := newTestLattice(t, 4, 3)
	if err := l.CopyFrom(other); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("expected shape mismatch, got %v", err)
	}
}

func TestIsFinite(t *testing.T) {
	l := newTestLattice(t, 2, 2)
	if !l.IsFinite() {
		t.Error("zero field should be finite")
	}
	l.Set(1, 0, math.Inf(1))
	if l.IsFinite() {
		t.Error("expected non-finite")
	}
}

func BenchmarkNextValueSweep(b *testing.B) {
	l, _ := New(128, 128, 0.1, 0.1, 0.1, 1.0)
	l.Initialise(0, 0.1, rand.New(rand.NewSource(1)))
	dst := l.Clone()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for y := 0; y < 128; y++ {
			for x := 0; x < 128; x++ {
				dst.Set(x, y, l.NextValue(x, y, 0.1))
			}
		}
	}
}

func BenchmarkRowKernels(b *testing.B) {
	l, _ := New(128, 128, 0.1, 0.1, 0.1, 1.0)
	l.Initialise(0, 0.1, rand.New(rand.NewSource(1)))
	dst := l.Clone()
	mu := make([]float64, l.Len())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		l.PotentialRows(mu, 0, 128)
		l.AdvanceRows(dst, mu, 0.1, 0, 128)
	}
}

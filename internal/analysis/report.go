package analysis

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/chsim/internal/lattice"
)

type Report struct {
	Mean     float64
	Variance float64
	Min      float64
	Max      float64
	Energy   float64
	PeakK    float64
	Length   float64
	Bins     []Bin
}

// Analyze summarises one frame: field statistics, free energy and the
// radially averaged structure factor.
func Analyze(l *lattice.Lattice) (*Report, error) {
	values := l.Values()
	r := &Report{
		Min:    floats.Min(values),
		Max:    floats.Max(values),
		Energy: l.TotalFreeEnergy(),
	}
	r.Mean, r.Variance = stat.PopMeanVariance(values, nil)

	sp := StructureFactor(l)
	r.Bins = RadialAverage(sp)

	length, err := CharacteristicLength(sp)
	if err != nil {
		return r, err
	}
	if peak, ok := Peak(r.Bins); ok {
		r.PeakK = peak.K
	}
	r.Length = length
	return r, nil
}

// Package analysis characterises the domain structure of a lattice.
//
// The central quantity is the structure factor S(k), the power spectrum of
// the order parameter fluctuations:
//
//   - [StructureFactor]: full 2D S(k) via FFT
//   - [RadialAverage]: S(k) averaged over shells of equal |k|
//   - [CharacteristicLength]: 2π over the S-weighted mean wavenumber
//
// During coarsening the peak of the radial average moves to smaller k and
// the characteristic length grows.
//
//	report, err := analysis.Analyze(l)
//	if err == nil {
//	    fmt.Println(report.Length)
//	}
package analysis

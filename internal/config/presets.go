package config

import "sort"

// Presets are named starting points for common regimes. Only the physical
// and domain fields are taken from a preset; GetPreset fills the rest from
// the defaults.
var Presets = map[string]Params{
	// symmetric quench: equal phase fractions, bicontinuous domains
	"spinodal": {
		Dx: 1.0, Dt: 1.0, M: 0.1, A: 0.1, K: 0.1,
		InitialValue: 0.0, Noise: 0.1, Steps: 100000, Rows: 100, Cols: 100,
	},
	// off-critical quench: minority droplets
	"droplets": {
		Dx: 1.0, Dt: 1.0, M: 0.1, A: 0.1, K: 0.1,
		InitialValue: 0.4, Noise: 0.1, Steps: 100000, Rows: 100, Cols: 100,
	},
	"quick": {
		Dx: 1.0, Dt: 0.5, M: 0.1, A: 0.1, K: 0.1,
		InitialValue: 0.0, Noise: 0.1, Steps: 2000, Rows: 32, Cols: 32,
	},
	"fine": {
		Dx: 0.5, Dt: 0.05, M: 0.1, A: 0.1, K: 0.1,
		InitialValue: 0.0, Noise: 0.05, Steps: 50000, Rows: 128, Cols: 128,
	},
}

func GetPreset(name string) (Params, bool) {
	p, ok := Presets[name]
	if !ok {
		return Params{}, false
	}
	out := DefaultParams()
	out.Dx, out.Dt = p.Dx, p.Dt
	out.M, out.A, out.K = p.M, p.A, p.K
	out.InitialValue, out.Noise = p.InitialValue, p.Noise
	out.Steps, out.Rows, out.Cols = p.Steps, p.Rows, p.Cols
	return out, true
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package metrics

import (
	"errors"
	"fmt"
	"sort"

	"github.com/san-kum/chsim/internal/sim"
)

var ErrUnknownMetric = errors.New("metrics: unknown metric")

var constructors = map[string]func() sim.Metric{
	"energy_drop":     func() sim.Metric { return NewEnergyDrop() },
	"max_energy_rise": func() sim.Metric { return NewEnergyRise() },
	"mass_drift":      func() sim.Metric { return NewMassDrift() },
	"variance":        func() sim.Metric { return NewVariance() },
	"min":             func() sim.Metric { return NewMin() },
	"max":             func() sim.Metric { return NewMax() },
}

// Default is the set attached to a run when none is requested.
var Default = []string{"energy_drop", "max_energy_rise", "mass_drift", "variance"}

func New(name string) (sim.Metric, error) {
	ctor, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMetric, name)
	}
	return ctor(), nil
}

// FromNames builds one metric per name, falling back to Default for an
// empty list.
func FromNames(names []string) ([]sim.Metric, error) {
	if len(names) == 0 {
		names = Default
	}
	out := make([]sim.Metric, 0, len(names))
	for _, name := range names {
		m, err := New(name)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func Names() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

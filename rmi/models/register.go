package models

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rmi-trainer/rmi/rmi"
)

// Constructor builds a Model from a scaled data view. The model zoo is an
// open set of more than a dozen families, so rather than the teacher's
// single NewLatencyModelFunc package-level variable (sim/latency's
// two-implementation registration pattern), this package keeps a
// name-to-Constructor map and exposes lookup through New.
type Constructor func(*rmi.Wrapper) rmi.Model

var registry = map[string]Constructor{
	"linear":         func(w *rmi.Wrapper) rmi.Model { return NewLinearModel(w) },
	"robust_linear":  func(w *rmi.Wrapper) rmi.Model { return NewRobustLinearModel(w) },
	"linear_spline":  func(w *rmi.Wrapper) rmi.Model { return NewLinearSplineModel(w) },
	"loglinear":      func(w *rmi.Wrapper) rmi.Model { return NewLogLinearModel(w) },
	"cubic":          func(w *rmi.Wrapper) rmi.Model { return NewCubicSplineModel(w) },
	"normal":         func(w *rmi.Wrapper) rmi.Model { return NewNormalModel(w) },
	"lognormal":      func(w *rmi.Wrapper) rmi.Model { return NewLogNormalModel(w) },
	"radix":          func(w *rmi.Wrapper) rmi.Model { return NewRadixModel(w) },
	"balanced_radix": func(w *rmi.Wrapper) rmi.Model { return NewBalancedRadixModel(w) },
	"histogram":      func(w *rmi.Wrapper) rmi.Model { return NewEquidepthHistogramModel(w) },
	"bottom_up_plr":  func(w *rmi.Wrapper) rmi.Model { return NewBottomUpPLR(w) },
	"pgm":            func(w *rmi.Wrapper) rmi.Model { return NewPGM(w) },
}

const radixTablePrefix = "radix_table"

// New resolves name to a Constructor and trains a Model over w. name may
// also be "radix_table<b>" (e.g. "radix_table18") to request a RadixTable
// at a specific bit width, since that family is parameterized by b rather
// than fixed like the rest of the zoo.
func New(name string, w *rmi.Wrapper) (rmi.Model, error) {
	if strings.HasPrefix(name, radixTablePrefix) {
		bits, err := strconv.Atoi(strings.TrimPrefix(name, radixTablePrefix))
		if err != nil {
			return nil, fmt.Errorf("rmi/models: parse radix_table bit width from %q: %w", name, err)
		}
		return NewRadixTable(uint8(bits))(w), nil
	}

	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("rmi/models: unknown model type %q", name)
	}
	return ctor(w), nil
}

// Names returns every fixed (non-parameterized) model type name the zoo
// registers, for CLI help text and the optimizer's default catalog.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

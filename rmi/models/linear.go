package models

import (
	"sort"

	"github.com/rmi-trainer/rmi/rmi"
	"github.com/rmi-trainer/rmi/rmi/numeric"
)

// LinearModel is simple linear regression (y = alpha + beta*x) fit by
// Welford's single-pass covariance, falling back to a constant at the
// minimum y when x has zero variance. Grounded on models/linear.rs's
// LinearModel/slr().
type LinearModel struct {
	rmi.ModelBase
	alpha, beta float64
}

// NewLinearModel fits a LinearModel over w.
func NewLinearModel(w *rmi.Wrapper) *LinearModel {
	rows := w.Iter()
	xs := make([]float64, len(rows))
	ys := make([]float64, len(rows))
	for i, r := range rows {
		xs[i] = r.Key.AsFloat()
		ys[i] = r.Y
	}
	alpha, beta := numeric.Fit(xs, ys)
	return &LinearModel{alpha: alpha, beta: beta}
}

func (m *LinearModel) InputType() rmi.DataType  { return rmi.Float }
func (m *LinearModel) OutputType() rmi.DataType { return rmi.Float }

func (m *LinearModel) PredictFloat(inp rmi.ModelInput) float64 {
	return m.alpha + m.beta*inp.AsFloat()
}
func (m *LinearModel) PredictInt(inp rmi.ModelInput) uint64 {
	return rmi.FloorClamp(m.PredictFloat(inp))
}

func (m *LinearModel) Params() []rmi.ModelParam {
	return []rmi.ModelParam{rmi.FloatParam(m.alpha), rmi.FloatParam(m.beta)}
}

func (m *LinearModel) Code() string {
	return `
inline double linear(double alpha, double beta, double inp) {
    return alpha + beta * inp;
}`
}

func (m *LinearModel) FunctionName() string { return "linear" }

// RobustLinearModel is LinearModel fit after trimming the top and bottom 1%
// of positions, to resist outlier leaves. The original sorts the full leaf
// by position to find the trim bounds (models need not scale past leaf
// size, see SPEC_FULL.md's SUPPLEMENTED FEATURES note on this trim).
type RobustLinearModel struct {
	rmi.ModelBase
	alpha, beta float64
}

// NewRobustLinearModel fits a RobustLinearModel over w.
func NewRobustLinearModel(w *rmi.Wrapper) *RobustLinearModel {
	rows := w.Iter()
	if len(rows) == 0 {
		return &RobustLinearModel{}
	}

	order := make([]int, len(rows))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return rows[order[i]].Y < rows[order[j]].Y })

	trim := len(order) / 100
	lo, hi := trim, len(order)-trim
	if lo >= hi {
		lo, hi = 0, len(order)
	}
	keep := make(map[int]bool, hi-lo)
	for i := lo; i < hi; i++ {
		keep[order[i]] = true
	}

	var xs, ys []float64
	for i, r := range rows {
		if keep[i] {
			xs = append(xs, r.Key.AsFloat())
			ys = append(ys, r.Y)
		}
	}
	alpha, beta := numeric.Fit(xs, ys)
	return &RobustLinearModel{alpha: alpha, beta: beta}
}

func (m *RobustLinearModel) InputType() rmi.DataType  { return rmi.Float }
func (m *RobustLinearModel) OutputType() rmi.DataType { return rmi.Float }

func (m *RobustLinearModel) PredictFloat(inp rmi.ModelInput) float64 {
	return m.alpha + m.beta*inp.AsFloat()
}
func (m *RobustLinearModel) PredictInt(inp rmi.ModelInput) uint64 {
	return rmi.FloorClamp(m.PredictFloat(inp))
}

func (m *RobustLinearModel) Params() []rmi.ModelParam {
	return []rmi.ModelParam{rmi.FloatParam(m.alpha), rmi.FloatParam(m.beta)}
}

func (m *RobustLinearModel) Code() string {
	return `
inline double linear(double alpha, double beta, double inp) {
    return alpha + beta * inp;
}`
}

func (m *RobustLinearModel) FunctionName() string { return "linear" }

package models

import "github.com/rmi-trainer/rmi/rmi"

// LinearSplineModel is the line through the first and last data point,
// degenerating to a flat line through the single observation (or through
// an arbitrary point if all keys are duplicates). Grounded on
// models/linear_spline.rs.
type LinearSplineModel struct {
	rmi.ModelBase
	alpha, beta float64
}

// NewLinearSplineModel fits a LinearSplineModel over w.
func NewLinearSplineModel(w *rmi.Wrapper) *LinearSplineModel {
	n := w.Len()
	if n == 0 {
		return &LinearSplineModel{alpha: 0, beta: 1}
	}
	firstKey, firstY := w.Get(0)
	if n == 1 {
		return &LinearSplineModel{alpha: firstY, beta: 0}
	}
	lastKey, lastY := w.Get(n - 1)
	if firstKey.AsFloat() == lastKey.AsFloat() {
		return &LinearSplineModel{alpha: firstY, beta: 0}
	}

	slope := (firstY - lastY) / (firstKey.AsFloat() - lastKey.AsFloat())
	intercept := firstY - slope*firstKey.AsFloat()
	return &LinearSplineModel{alpha: intercept, beta: slope}
}

func (m *LinearSplineModel) InputType() rmi.DataType  { return rmi.Float }
func (m *LinearSplineModel) OutputType() rmi.DataType { return rmi.Float }

func (m *LinearSplineModel) PredictFloat(inp rmi.ModelInput) float64 {
	return m.alpha + m.beta*inp.AsFloat()
}
func (m *LinearSplineModel) PredictInt(inp rmi.ModelInput) uint64 {
	return rmi.FloorClamp(m.PredictFloat(inp))
}

func (m *LinearSplineModel) Params() []rmi.ModelParam {
	return []rmi.ModelParam{rmi.FloatParam(m.alpha), rmi.FloatParam(m.beta)}
}

func (m *LinearSplineModel) Code() string {
	return `
inline double linear(double alpha, double beta, double inp) {
    return alpha + beta * inp;
}`
}

func (m *LinearSplineModel) FunctionName() string { return "linear" }

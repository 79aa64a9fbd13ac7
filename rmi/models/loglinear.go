package models

import (
	"math"

	"github.com/rmi-trainer/rmi/rmi"
	"github.com/rmi-trainer/rmi/rmi/numeric"
)

// LogLinearModel fits SLR on (x, ln y), discarding rows whose y has no
// finite log (y <= 0), and predicts with a deterministic 6-squaring series
// approximation of exp rather than libm's exp so the Go-trained model and
// the emitted C code agree bit-for-bit. Grounded on models/linear.rs's
// LogLinearModel/loglinear_slr()/exp1().
type LogLinearModel struct {
	rmi.ModelBase
	alpha, beta float64
}

// NewLogLinearModel fits a LogLinearModel over w.
func NewLogLinearModel(w *rmi.Wrapper) *LogLinearModel {
	rows := w.Iter()
	var xs, ys []float64
	for _, r := range rows {
		ly := math.Log(r.Y)
		if !math.IsInf(ly, 0) && !math.IsNaN(ly) {
			xs = append(xs, r.Key.AsFloat())
			ys = append(ys, ly)
		}
	}
	alpha, beta := numeric.Fit(xs, ys)
	return &LogLinearModel{alpha: alpha, beta: beta}
}

// exp1 is a deterministic, emitted-identically 6-iteration squaring series
// approximation of e^x: (1+x/64)^64, computed by six repeated squarings.
func exp1(x float64) float64 {
	v := 1.0 + x/64.0
	v *= v
	v *= v
	v *= v
	v *= v
	v *= v
	v *= v
	return v
}

func (m *LogLinearModel) InputType() rmi.DataType  { return rmi.Float }
func (m *LogLinearModel) OutputType() rmi.DataType { return rmi.Float }

func (m *LogLinearModel) PredictFloat(inp rmi.ModelInput) float64 {
	return exp1(m.alpha + m.beta*inp.AsFloat())
}
func (m *LogLinearModel) PredictInt(inp rmi.ModelInput) uint64 {
	return rmi.FloorClamp(m.PredictFloat(inp))
}

func (m *LogLinearModel) Params() []rmi.ModelParam {
	return []rmi.ModelParam{rmi.FloatParam(m.alpha), rmi.FloatParam(m.beta)}
}

func (m *LogLinearModel) Code() string {
	return `
inline double loglinear(double alpha, double beta, double inp) {
    return exp1(alpha + beta * inp);
}`
}

func (m *LogLinearModel) FunctionName() string { return "loglinear" }

func (m *LogLinearModel) StandardFunctions() map[rmi.StdFunction]bool {
	return map[rmi.StdFunction]bool{rmi.StdExp1: true}
}

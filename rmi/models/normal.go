package models

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/rmi-trainer/rmi/rmi"
)

// NormalModel predicts position as N * Phi((x-mu)/sigma), treating the keys
// as draws from a normal distribution whose CDF approximates the dataset's
// empirical CDF. Mu/sigma are fit with gonum/stat's batch mean/variance
// over the leaf's keys (no third-party normal-CDF
// fit appears anywhere else in the pack, so gonum/stat/distuv.Normal
// supplies PredictFloat directly). Not present in the retrieved Rust
// reference's sources — derived from spec.md's description.
type NormalModel struct {
	rmi.ModelBase
	mu, sigma float64
	n         float64
}

// NewNormalModel fits mu/sigma by gonum/stat over the leaf's keys.
func NewNormalModel(w *rmi.Wrapper) *NormalModel {
	rows := w.Iter()
	if len(rows) == 0 {
		return &NormalModel{sigma: 1}
	}
	xs := make([]float64, len(rows))
	for i, r := range rows {
		xs[i] = r.Key.AsFloat()
	}
	mu := stat.Mean(xs, nil)
	sigma := math.Sqrt(stat.Variance(xs, nil))
	if sigma == 0 {
		sigma = 1
	}
	return &NormalModel{mu: mu, sigma: sigma, n: float64(len(rows))}
}

func (m *NormalModel) InputType() rmi.DataType  { return rmi.Float }
func (m *NormalModel) OutputType() rmi.DataType { return rmi.Float }

func (m *NormalModel) PredictFloat(inp rmi.ModelInput) float64 {
	d := distuv.Normal{Mu: m.mu, Sigma: m.sigma}
	return m.n * d.CDF(inp.AsFloat())
}
func (m *NormalModel) PredictInt(inp rmi.ModelInput) uint64 {
	return rmi.FloorClamp(m.PredictFloat(inp))
}

func (m *NormalModel) Params() []rmi.ModelParam {
	return []rmi.ModelParam{rmi.FloatParam(m.mu), rmi.FloatParam(m.sigma), rmi.FloatParam(m.n)}
}

func (m *NormalModel) Code() string {
	return `
inline double normal(double mu, double sigma, double n, double inp) {
    return n * 0.5 * (1.0 + erf((inp - mu) / (sigma * 1.4142135623730951)));
}`
}

func (m *NormalModel) FunctionName() string { return "normal" }

// LogNormalModel is NormalModel fit over ln(key), discarding keys with no
// finite log.
type LogNormalModel struct {
	rmi.ModelBase
	mu, sigma float64
	n         float64
}

// NewLogNormalModel fits mu/sigma over ln(key).
func NewLogNormalModel(w *rmi.Wrapper) *LogNormalModel {
	rows := w.Iter()
	var xs []float64
	for _, r := range rows {
		lx := math.Log(r.Key.AsFloat())
		if !math.IsInf(lx, 0) && !math.IsNaN(lx) {
			xs = append(xs, lx)
		}
	}
	if len(xs) == 0 {
		return &LogNormalModel{sigma: 1}
	}
	mu := stat.Mean(xs, nil)
	sigma := math.Sqrt(stat.Variance(xs, nil))
	if sigma == 0 {
		sigma = 1
	}
	return &LogNormalModel{mu: mu, sigma: sigma, n: float64(len(rows))}
}

func (m *LogNormalModel) InputType() rmi.DataType  { return rmi.Float }
func (m *LogNormalModel) OutputType() rmi.DataType { return rmi.Float }

func (m *LogNormalModel) PredictFloat(inp rmi.ModelInput) float64 {
	lx := math.Log(inp.AsFloat())
	d := distuv.Normal{Mu: m.mu, Sigma: m.sigma}
	return m.n * d.CDF(lx)
}
func (m *LogNormalModel) PredictInt(inp rmi.ModelInput) uint64 {
	return rmi.FloorClamp(m.PredictFloat(inp))
}

func (m *LogNormalModel) Params() []rmi.ModelParam {
	return []rmi.ModelParam{rmi.FloatParam(m.mu), rmi.FloatParam(m.sigma), rmi.FloatParam(m.n)}
}

func (m *LogNormalModel) Code() string {
	return `
inline double lognormal(double mu, double sigma, double n, double inp) {
    return n * 0.5 * (1.0 + erf((log(inp) - mu) / (sigma * 1.4142135623730951)));
}`
}

func (m *LogNormalModel) FunctionName() string { return "lognormal" }

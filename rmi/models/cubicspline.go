package models

import "github.com/rmi-trainer/rmi/rmi"

// cubicSeg is one natural-cubic-spline segment: S(x) = a + b*t + c*t^2 +
// d*t^3 where t = x - knotX.
type cubicSeg struct {
	knotX      float64
	a, b, c, d float64
}

func (s cubicSeg) eval(x float64) float64 {
	t := x - s.knotX
	return s.a + t*(s.b+t*(s.c+t*s.d))
}

// CubicSplineModel fits a natural cubic spline through the first, middle,
// and last point of the leaf's data. Three knots give a two-segment
// spline; the "natural" boundary condition pins the second
// derivative to zero at both endpoints, leaving one interior unknown (the
// middle knot's second derivative) solved directly rather than via a
// general tridiagonal solve. Not present in the original reference
// implementation's retrieved sources — derived from the standard natural
// cubic spline construction and documented in DESIGN.md.
type CubicSplineModel struct {
	rmi.ModelBase
	segs  [2]cubicSeg
	split float64
}

// flatModel returns a degenerate CubicSplineModel that always predicts y,
// used when the leaf has too few distinct points for a real spline fit —
// shaped identically to a real fit (two zero-curvature segments) so Params
// and Code stay in sync with PredictFloat regardless of which path built it.
func flatModel(y float64) *CubicSplineModel {
	seg := cubicSeg{a: y}
	return &CubicSplineModel{segs: [2]cubicSeg{seg, seg}, split: 0}
}

// NewCubicSplineModel fits a CubicSplineModel over w, falling back to a
// flat model when w has fewer than 3 rows or its first, middle and last
// keys are not strictly increasing.
func NewCubicSplineModel(w *rmi.Wrapper) *CubicSplineModel {
	n := w.Len()
	if n == 0 {
		return flatModel(0)
	}
	if n < 3 {
		return flatModel(fallbackLine(w))
	}

	x0, y0 := w.Get(0)
	x1, y1 := w.Get(n / 2)
	x2, y2 := w.Get(n - 1)

	h0 := x1.AsFloat() - x0.AsFloat()
	h1 := x2.AsFloat() - x1.AsFloat()
	if h0 <= 0 || h1 <= 0 {
		return flatModel(fallbackLine(w))
	}

	m1 := 3 * ((y2-y1)/h1 - (y1-y0)/h0) / (h0 + h1)
	// Natural boundary: second derivative (M) is 0 at both endpoints.
	const m0, m2 = 0.0, 0.0

	seg0 := cubicSeg{
		knotX: x0.AsFloat(),
		a:     y0,
		b:     (y1-y0)/h0 - h0*(2*m0+m1)/6,
		c:     m0 / 2,
		d:     (m1 - m0) / (6 * h0),
	}
	seg1 := cubicSeg{
		knotX: x1.AsFloat(),
		a:     y1,
		b:     (y2-y1)/h1 - h1*(2*m1+m2)/6,
		c:     m1 / 2,
		d:     (m2 - m1) / (6 * h1),
	}

	return &CubicSplineModel{segs: [2]cubicSeg{seg0, seg1}, split: x1.AsFloat()}
}

// fallbackLine returns the first row's y (0 for an empty leaf), the
// constant the flat fallback model predicts.
func fallbackLine(w *rmi.Wrapper) float64 {
	if w.Len() == 0 {
		return 0
	}
	_, y := w.Get(0)
	return y
}

func (m *CubicSplineModel) InputType() rmi.DataType  { return rmi.Float }
func (m *CubicSplineModel) OutputType() rmi.DataType { return rmi.Float }

func (m *CubicSplineModel) PredictFloat(inp rmi.ModelInput) float64 {
	x := inp.AsFloat()
	if x < m.split {
		return m.segs[0].eval(x)
	}
	return m.segs[1].eval(x)
}
func (m *CubicSplineModel) PredictInt(inp rmi.ModelInput) uint64 {
	return rmi.FloorClamp(m.PredictFloat(inp))
}

func (m *CubicSplineModel) Params() []rmi.ModelParam {
	return []rmi.ModelParam{
		rmi.FloatParam(m.split),
		rmi.FloatArrayParam([]float64{
			m.segs[0].knotX, m.segs[0].a, m.segs[0].b, m.segs[0].c, m.segs[0].d,
			m.segs[1].knotX, m.segs[1].a, m.segs[1].b, m.segs[1].c, m.segs[1].d,
		}),
	}
}

func (m *CubicSplineModel) Code() string {
	return `
inline double cubic_spline(double split, const double segs[], double inp) {
    const double* s = (inp < split) ? segs : segs + 5;
    double t = inp - s[0];
    return s[1] + t * (s[2] + t * (s[3] + t * s[4]));
}`
}

func (m *CubicSplineModel) FunctionName() string { return "cubic_spline" }

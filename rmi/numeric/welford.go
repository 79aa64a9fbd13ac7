// Package numeric provides the low-level building blocks the model zoo is
// built from: a single-pass (Welford) simple linear regression accumulator,
// greedy/optimal piecewise-linear regression segmentation, radix-table
// construction, and common-prefix/bit-width analysis (spec §4.A).
package numeric

// SLRAccumulator computes simple linear regression (y = alpha + beta*x) in
// a single pass via Welford's online covariance algorithm, avoiding the
// numerical instability of the naive sum-of-products formula. Grounded on
// the teacher corpus's absence of a streaming-stats library and the
// original Rust reference's slr() (models/utils.rs / models/linear.rs).
type SLRAccumulator struct {
	n      int64
	meanX  float64
	meanY  float64
	c      float64 // running co-moment
	m2     float64 // running second moment of x
	minY   float64
	sawAny bool
}

// Add folds one (x, y) point into the accumulator.
func (a *SLRAccumulator) Add(x, y float64) {
	a.n++
	dx := x - a.meanX
	a.meanX += dx / float64(a.n)
	a.meanY += (y - a.meanY) / float64(a.n)
	a.c += dx * (y - a.meanY)
	dx2 := x - a.meanX
	a.m2 += dx * dx2

	if !a.sawAny || y < a.minY {
		a.minY = y
		a.sawAny = true
	}
}

// N returns the number of points folded in so far.
func (a *SLRAccumulator) N() int64 { return a.n }

// Fit returns the (intercept, slope) of the fitted line. With zero points
// it returns (0, 0); with exactly one point it returns (y, 0) (a constant
// model through the single observation); when the sample variance of x is
// zero it returns (min y observed, 0), matching the reference's "variance
// is zero, pick the lowest value" fallback.
func (a *SLRAccumulator) Fit() (intercept, slope float64) {
	if a.n == 0 {
		return 0, 0
	}
	if a.n == 1 {
		return a.meanY, 0
	}

	cov := a.c / float64(a.n-1)
	vr := a.m2 / float64(a.n-1)
	if vr == 0 {
		return a.minY, 0
	}

	beta := cov / vr
	alpha := a.meanY - beta*a.meanX
	return alpha, beta
}

// Fit runs SLRAccumulator over a slice of (x, y) points and returns the
// fitted (intercept, slope).
func Fit(xs, ys []float64) (intercept, slope float64) {
	var acc SLRAccumulator
	for i := range xs {
		acc.Add(xs[i], ys[i])
	}
	return acc.Fit()
}

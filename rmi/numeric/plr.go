package numeric

import "math"

// Segment is one piece of a piecewise-linear regression fit: valid from
// Start (inclusive, in x-coordinates) with the given Slope/Intercept.
type Segment struct {
	Start     float64
	Slope     float64
	Intercept float64
}

// plrState tracks how many bootstrap points a PLR fitter has seen before it
// can maintain a feasible slope cone.
type plrState int

const (
	plrNeedFirst plrState = iota
	plrNeedSecond
	plrReady
)

// PLR incrementally fits a sequence of (x, y) points with a piecewise-
// linear regression bounded by delta: every accepted point lies within
// vertical distance delta of its segment's line. Two constructors exist:
// NewGreedyPLR (one bootstrap point per new segment) and NewOptimalPLR
// (reuses the point that violated the previous segment's cone to seed the
// next one immediately, producing fewer, longer segments — the "backtrack
// to the optimal pivot" behavior spec.md describes). Consecutive points
// with identical x are the caller's responsibility to dedup (see FitPLR).
type PLR struct {
	delta   float64
	optimal bool

	state              plrState
	x0, y0             float64
	minSlope, maxSlope float64

	havePrev       bool
	prevX, prevY   float64
}

// NewGreedyPLR returns a PLR fitter that starts every new segment from a
// clean two-point bootstrap.
func NewGreedyPLR(delta float64) *PLR {
	return &PLR{delta: delta, optimal: false}
}

// NewOptimalPLR returns a PLR fitter that seeds a new segment's cone
// immediately from the point that broke the previous segment, rather than
// waiting for a second bootstrap point.
func NewOptimalPLR(delta float64) *PLR {
	return &PLR{delta: delta, optimal: true}
}

func (p *PLR) setBounds(x, y float64) {
	dx := x - p.x0
	p.minSlope = ((y - p.delta) - p.y0) / dx
	p.maxSlope = ((y + p.delta) - p.y0) / dx
}

// Process folds in the next (x, y) point. It returns a finished segment
// when this point violates the current segment's feasible cone (the
// segment ending just before this point), or nil if the point was
// absorbed into the in-progress segment.
func (p *PLR) Process(x, y float64) *Segment {
	switch p.state {
	case plrNeedFirst:
		p.x0, p.y0 = x, y
		p.state = plrNeedSecond
		return nil

	case plrNeedSecond:
		p.setBounds(x, y)
		p.state = plrReady
		return nil

	default: // plrReady
		dx := x - p.x0
		slopeLow := ((y - p.delta) - p.y0) / dx
		slopeHigh := ((y + p.delta) - p.y0) / dx

		if slopeLow > p.maxSlope || slopeHigh < p.minSlope {
			seg := p.closeSegment()

			if p.optimal && p.havePrev {
				// Backtrack to the last point still inside the closed
				// segment's cone and seed the new cone from it plus the
				// violating point directly, skipping the greedy variant's
				// fresh two-point bootstrap.
				p.x0, p.y0 = p.prevX, p.prevY
				p.setBounds(x, y)
				p.state = plrReady
			} else {
				p.x0, p.y0 = x, y
				p.state = plrNeedSecond
			}
			p.prevX, p.prevY, p.havePrev = x, y, true
			return seg
		}

		p.minSlope = math.Max(p.minSlope, slopeLow)
		p.maxSlope = math.Min(p.maxSlope, slopeHigh)
		p.prevX, p.prevY, p.havePrev = x, y, true
		return nil
	}
}

func (p *PLR) closeSegment() *Segment {
	slope := (p.minSlope + p.maxSlope) / 2
	intercept := p.y0 - slope*p.x0
	return &Segment{Start: p.x0, Slope: slope, Intercept: intercept}
}

// Finish flushes any in-progress segment. Must be called after the last
// Process call to avoid dropping the final segment.
func (p *PLR) Finish() *Segment {
	switch p.state {
	case plrNeedFirst:
		return nil
	case plrNeedSecond:
		// Only one point was ever seen: emit a flat segment through it.
		return &Segment{Start: p.x0, Slope: 0, Intercept: p.y0}
	default:
		return p.closeSegment()
	}
}

// FitPLR runs a PLR fitter (greedy or optimal, per the optimal flag) over
// sorted (x, y) points, deduplicating consecutive points with identical x
// (first wins), and returns the resulting segments. Every returned slope
// and intercept is finite by construction (division only occurs between
// distinct x values).
func FitPLR(xs, ys []float64, delta float64, optimal bool) []Segment {
	var fitter *PLR
	if optimal {
		fitter = NewOptimalPLR(delta)
	} else {
		fitter = NewGreedyPLR(delta)
	}

	var segments []Segment
	lastX := math.Inf(-1)
	for i := range xs {
		if xs[i] == lastX {
			continue
		}
		lastX = xs[i]
		if seg := fitter.Process(xs[i], ys[i]); seg != nil {
			segments = append(segments, *seg)
		}
	}
	if seg := fitter.Finish(); seg != nil {
		segments = append(segments, *seg)
	}
	return segments
}

// FitKeyed is the integer-keyed counterpart of FitPLR, used by the bottom-up
// PLR and PGM leaf models: it fits the same way but returns segment start
// x-values rounded down to u64 (clamped to the true minimum key so floating
// rounding never pushes a segment boundary past its first member), paired
// with the flattened (slope, intercept) coefficient stream the emitted
// lookup code indexes as coeffs[2*i], coeffs[2*i+1].
func FitKeyed(keys []uint64, ys []float64, delta float64, optimal bool) (starts []uint64, coeffs []float64) {
	xs := make([]float64, len(keys))
	for i, k := range keys {
		xs[i] = float64(k)
	}

	segments := FitPLR(xs, ys, delta, optimal)
	if len(segments) == 0 {
		return nil, nil
	}

	starts = make([]uint64, len(segments))
	coeffs = make([]float64, 0, 2*len(segments))
	for i, seg := range segments {
		starts[i] = uint64(seg.Start)
		coeffs = append(coeffs, seg.Slope, seg.Intercept)
	}
	if len(keys) > 0 && starts[0] > keys[0] {
		starts[0] = keys[0]
	}
	return starts, coeffs
}

// Package cachefix implements the cache-fix spline compressor (spec §4.D):
// a piecewise-linear compression of a sorted (key, position) dataset whose
// error is bounded not in raw position but in which cache line the position
// falls in (floor(position / lineSize)). Grounded on
// rmi_lib/src/cache_fix.rs.
package cachefix

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rmi-trainer/rmi/rmi"
)

// point is an (x-key, y-position) pair under construction.
type point struct {
	key rmi.ModelInput
	pos uint64
}

// spline is a single line segment of the fit, from (fromKey, fromPos) to
// (toKey, toPos), both endpoints inclusive.
type spline struct {
	fromKey, toKey rmi.ModelInput
	fromPos, toPos uint64
}

func newSpline(from, to point) spline {
	return spline{fromKey: from.key, fromPos: from.pos, toKey: to.key, toPos: to.pos}
}

func (s spline) withNewDest(dest point) spline {
	return spline{fromKey: s.fromKey, fromPos: s.fromPos, toKey: dest.key, toPos: dest.pos}
}

func (s spline) end() point { return point{key: s.toKey, pos: s.toPos} }

// predict linearly interpolates this segment's position at inp.
func (s spline) predict(inp rmi.ModelInput) uint64 {
	if s.toKey.AsInt() == s.fromKey.AsInt() {
		return s.fromPos
	}
	v0, v1 := float64(s.fromPos), float64(s.toPos)
	t := float64(inp.AsInt()-s.fromKey.AsInt()) / float64(s.toKey.AsInt()-s.fromKey.AsInt())
	return uint64((1.0-t)*v0 + t*v1)
}

// fitter incrementally fits cache-fix segments: a new point is absorbed
// into the in-progress segment if every intermediate point recorded since
// the segment's start still lands in its true cache line under the
// proposed extension; otherwise the segment closes and a new one begins.
type fitter struct {
	lineSize uint64
	cur      *spline
	currPts  []point
}

func newFitter(lineSize uint64) *fitter {
	return &fitter{lineSize: lineSize}
}

// addPoint folds in the next point, returning a spline joint to emit if one
// closed as a result.
func (f *fitter) addPoint(p point) (rmi.SplineJoint, bool) {
	if f.cur == nil {
		s := newSpline(p, p)
		f.cur = &s
		return rmi.SplineJoint{Key: p.key, Pos: p.pos}, true
	}

	proposed := f.cur.withNewDest(p)
	f.currPts = append(f.currPts, f.cur.end())

	if f.checkSpline(proposed) {
		f.cur = &proposed
		return rmi.SplineJoint{}, false
	}

	prevPt := f.cur.end()
	s := newSpline(prevPt, p)
	f.cur = &s
	f.currPts = f.currPts[:0]
	f.currPts = append(f.currPts, p)
	return rmi.SplineJoint{Key: prevPt.key, Pos: prevPt.pos}, true
}

// finish flushes the in-progress segment's endpoint.
func (f *fitter) finish() (rmi.SplineJoint, bool) {
	if f.cur == nil {
		return rmi.SplineJoint{}, false
	}
	end := f.cur.end()
	return rmi.SplineJoint{Key: end.key, Pos: end.pos}, true
}

// checkSpline reports whether every point recorded since the current
// segment started still predicts the correct cache line under proposed.
func (f *fitter) checkSpline(proposed spline) bool {
	for _, pt := range f.currPts {
		predictedLine := proposed.predict(pt.key) / f.lineSize
		correctLine := pt.pos / f.lineSize
		if predictedLine != correctLine {
			return false
		}
	}
	return true
}

// Fix compresses data into a cache-fix spline at the given cache-line size,
// returning joints with their ORIGINAL (unreindexed) positions — callers
// that train on top of the spline are responsible for reindexing positions
// to 0..n, since cache-fix itself is a lossy compression step, not a
// dataset constructor (mirrors train_bounded's post-processing in the
// reference implementation).
func Fix(data *rmi.Dataset, lineSize uint64) ([]rmi.SplineJoint, error) {
	n := data.Len()
	if uint64(n) <= lineSize {
		return nil, fmt.Errorf("cachefix: dataset has %d rows, must exceed line size %d", n, lineSize)
	}
	logrus.WithFields(logrus.Fields{"rows": n, "line_size": lineSize}).Info("fitting cache-fix spline")

	fit := newFitter(lineSize)
	var out []rmi.SplineJoint

	var lastKey rmi.ModelInput
	haveLast := false
	for _, row := range data.IterUnique() {
		me := row.Key.MinusEpsilon()
		if !haveLast || me.Less(lastKey) || lastKey.Less(me) {
			if j, ok := fit.addPoint(point{key: me, pos: row.Pos}); ok {
				out = append(out, j)
			}
		}
		if j, ok := fit.addPoint(point{key: row.Key, pos: row.Pos}); ok {
			out = append(out, j)
		}
		lastKey, haveLast = row.Key, true
	}

	if j, ok := fit.finish(); ok {
		out = append(out, j)
	}

	logrus.WithFields(logrus.Fields{
		"points":   len(out),
		"original": n,
		"pct":      100 * float64(len(out)) / float64(n),
	}).Info("cache-fix spline compressed dataset")

	return out, nil
}

// ReindexedDataset builds the Dataset callers train over on top of a
// cache-fix spline: Fix's joints keep their original positions (per its own
// doc comment), so this reindexes them to the 0..len(joints)-1 lower-bound
// positions a Dataset requires.
func ReindexedDataset(joints []rmi.SplineJoint, kind rmi.KeyType) *rmi.Dataset {
	pos := make([]uint64, len(joints))
	for i := range pos {
		pos[i] = uint64(i)
	}

	if kind == rmi.KeyTypeF64 {
		keys := make([]float64, len(joints))
		for i, j := range joints {
			keys[i] = j.Key.AsFloat()
		}
		return rmi.FloatRows(keys, pos)
	}

	keys := make([]uint64, len(joints))
	for i, j := range joints {
		keys[i] = j.Key.AsInt()
	}
	return rmi.Rows(kind, keys, pos)
}

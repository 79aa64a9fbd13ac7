package models

import (
	"github.com/sirupsen/logrus"

	"github.com/rmi-trainer/rmi/rmi"
	"github.com/rmi-trainer/rmi/rmi/numeric"
)

// bottomUpPLRRadixBits is the width of the lookup-acceleration radix index
// built over BottomUpPLR's segment starts.
const bottomUpPLRRadixBits = 20

// BottomUpPLR fits a greedy PLR over the whole leaf, doubling delta
// (starting at 1) until the segment count is at most 524,288, then builds a
// 20-bit radix index over the segment start keys so the emitted lookup code
// can narrow a binary search to a small window instead of scanning the
// whole segment list. MustBeBottom. Grounded on models/bottom_up_plr.rs.
type BottomUpPLR struct {
	rmi.ModelBase
	radix  []uint16
	points []uint64
	coeffs []float64
}

const bottomUpPLRMaxSegments = 524288

// NewBottomUpPLR fits a BottomUpPLR over w.
func NewBottomUpPLR(w *rmi.Wrapper) *BottomUpPLR {
	rows := w.IterUnique()
	if len(rows) == 0 {
		return &BottomUpPLR{}
	}

	keys := make([]uint64, len(rows))
	ys := make([]float64, len(rows))
	for i, r := range rows {
		keys[i] = r.Key.AsInt()
		ys[i] = r.Y
	}

	delta := 1.0
	points, coeffs := numeric.FitKeyed(keys, ys, delta, false)
	for len(points) > bottomUpPLRMaxSegments {
		delta *= 2
		points, coeffs = numeric.FitKeyed(keys, ys, delta, false)
	}
	logrus.WithFields(logrus.Fields{"segments": len(points), "delta": delta}).
		Debug("bottom-up PLR fit")

	return &BottomUpPLR{
		radix:  buildPLRRadixIndex(points),
		points: points,
		coeffs: coeffs,
	}
}

// buildPLRRadixIndex builds the 20-bit acceleration index over sorted
// segment-start keys: bucket r holds the count of segments whose start is
// <= the largest key with top-20-bits r, i.e. one past the segment that
// should be searched first for that radix.
func buildPLRRadixIndex(points []uint64) []uint16 {
	size := uint64(1) << bottomUpPLRRadixBits
	index := make([]uint16, size)
	searchIdx := 0
	shift := uint(64 - bottomUpPLRRadixBits)

	for pt := uint64(0); pt < size; pt++ {
		ones := ^uint64(0) >> bottomUpPLRRadixBits
		key := ones | (pt << shift)
		for searchIdx < len(points) && points[searchIdx] <= key {
			searchIdx++
		}
		index[pt] = uint16(searchIdx)
	}
	return index
}

func (m *BottomUpPLR) InputType() rmi.DataType  { return rmi.Int }
func (m *BottomUpPLR) OutputType() rmi.DataType { return rmi.Float }

func (m *BottomUpPLR) PredictFloat(inp rmi.ModelInput) float64 {
	if len(m.points) == 0 {
		return 0
	}
	val := inp.AsInt()
	lineIdx := numeric.UpperBound(m.points, val) - 1
	if lineIdx < 0 {
		lineIdx = 0
	}
	if lineIdx >= len(m.points) {
		lineIdx = len(m.points) - 1
	}
	a, b := m.coeffs[2*lineIdx], m.coeffs[2*lineIdx+1]
	return float64(val)*a + b
}
func (m *BottomUpPLR) PredictInt(inp rmi.ModelInput) uint64 {
	return rmi.FloorClamp(m.PredictFloat(inp))
}

func (m *BottomUpPLR) Params() []rmi.ModelParam {
	return []rmi.ModelParam{
		rmi.IntParam(uint64(len(m.points))),
		rmi.ShortArrayParam(m.radix),
		rmi.IntArrayParam(m.points),
		rmi.FloatArrayParam(m.coeffs),
	}
}

func (m *BottomUpPLR) Code() string {
	return `
inline uint64_t plr(const uint64_t size,
                    const short radix[],
                    const uint64_t pivots[], const double coeffs[], uint64_t key) {
    uint64_t key_radix = key >> (64 - 20);
    unsigned int radix_ub = radix[key_radix];
    unsigned int radix_lb = (key_radix == 0 ? 0 : radix[key_radix - 1] - 1);
    uint64_t li = bs_upper_bound(pivots + radix_lb, radix_ub - radix_lb, key) + radix_lb - 1;

    double alpha = coeffs[2*li];
    double beta = coeffs[2*li + 1];
    return alpha * (double)key + beta;
}`
}

func (m *BottomUpPLR) StandardFunctions() map[rmi.StdFunction]bool {
	return map[rmi.StdFunction]bool{rmi.StdBinarySearch: true}
}

func (m *BottomUpPLR) FunctionName() string    { return "plr" }
func (m *BottomUpPLR) Restriction() rmi.Restriction { return rmi.MustBeBottom }

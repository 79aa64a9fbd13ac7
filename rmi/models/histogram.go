package models

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/rmi-trainer/rmi/rmi"
)

// EquidepthHistogramModel places a bin boundary every len/numBins items (one
// bin per distinct output position observed) and predicts by binary search
// over the boundaries. MustBeTop, no bounds check: the result is always in
// [0, numBins). Grounded on models/histogram.rs.
type EquidepthHistogramModel struct {
	rmi.ModelBase
	splits []uint64
}

// NewEquidepthHistogramModel builds an EquidepthHistogramModel over w.
func NewEquidepthHistogramModel(w *rmi.Wrapper) *EquidepthHistogramModel {
	rows := w.Iter()
	if len(rows) == 0 {
		return &EquidepthHistogramModel{}
	}

	numBins := int(yToInt(rows[len(rows)-1].Y))
	if numBins < 1 {
		numBins = 1
	}
	itemsPerBin := len(rows) / numBins
	if itemsPerBin < 1 {
		logrus.WithFields(logrus.Fields{"num_bins": numBins, "rows": len(rows)}).
			Warn("equidepth histogram has fewer rows than bins; clamping to one item per bin")
		itemsPerBin = 1
		numBins = len(rows)
	}
	if numBins > 2000 {
		logrus.WithField("num_bins", numBins).Warn("equidepth histogram using a very high bin count")
	}

	splits := make([]uint64, numBins)
	for bin := 0; bin < numBins; bin++ {
		splits[bin] = rows[bin*itemsPerBin].Key.AsInt()
	}
	return &EquidepthHistogramModel{splits: splits}
}

func (m *EquidepthHistogramModel) InputType() rmi.DataType  { return rmi.Int }
func (m *EquidepthHistogramModel) OutputType() rmi.DataType { return rmi.Int }

func (m *EquidepthHistogramModel) PredictFloat(inp rmi.ModelInput) float64 {
	return float64(m.PredictInt(inp))
}
func (m *EquidepthHistogramModel) PredictInt(inp rmi.ModelInput) uint64 {
	val := inp.AsInt()
	idx := sort.Search(len(m.splits), func(i int) bool { return m.splits[i] > val })
	if idx == 0 {
		return 0
	}
	return uint64(idx - 1)
}

func (m *EquidepthHistogramModel) Params() []rmi.ModelParam {
	withLen := append([]uint64{uint64(len(m.splits))}, m.splits...)
	return []rmi.ModelParam{rmi.IntArrayParam(withLen)}
}

func (m *EquidepthHistogramModel) Code() string {
	return `
inline uint64_t ed_histogram(const uint64_t data[], uint64_t key) {
    uint64_t lb = bs_upper_bound(data + 1, *data, key);
    return (lb == 0 ? 0 : lb - 1);
}`
}

func (m *EquidepthHistogramModel) StandardFunctions() map[rmi.StdFunction]bool {
	return map[rmi.StdFunction]bool{rmi.StdBinarySearch: true}
}

func (m *EquidepthHistogramModel) FunctionName() string    { return "ed_histogram" }
func (m *EquidepthHistogramModel) NeedsBoundsCheck() bool  { return false }
func (m *EquidepthHistogramModel) Restriction() rmi.Restriction { return rmi.MustBeTop }

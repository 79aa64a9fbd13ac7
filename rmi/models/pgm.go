package models

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/rmi-trainer/rmi/rmi"
	"github.com/rmi-trainer/rmi/rmi/numeric"
)

const (
	pgmFirstLayerDelta = 64.0
	pgmOtherLayerDelta = 4.0
	pgmSmallestLayer   = 32
)

// PGM stacks greedy/optimal PLR layers bottom-up: the base layer fits the
// leaf's raw (key, position) pairs at delta=64, then each subsequent layer
// fits an optimal PLR at delta=4 over the previous layer's segment starts
// (treated as a synthetic integer-keyed dataset), stopping once a layer has
// at most 32 segments. Layers are stored top-first (coarsest layer at index
// 0) to match the emitted lookup's top-down traversal. MustBeBottom, fixed
// ErrorBound of 2*64 (the base layer's delta doubled, matching the
// original's predict-time guarantee). Grounded on models/pgm.rs.
type PGM struct {
	rmi.ModelBase
	points [][]uint64
	coeffs [][]float64
}

// NewPGM fits a PGM over w.
func NewPGM(w *rmi.Wrapper) *PGM {
	rows := w.IterUnique()
	if len(rows) == 0 {
		return &PGM{}
	}

	keys := make([]uint64, len(rows))
	ys := make([]float64, len(rows))
	for i, r := range rows {
		keys[i] = r.Key.AsInt()
		ys[i] = r.Y
	}

	basePoints, baseCoeffs := numeric.FitKeyed(keys, ys, pgmFirstLayerDelta, false)
	points := [][]uint64{basePoints}
	coeffs := [][]float64{baseCoeffs}

	for len(points[len(points)-1]) > pgmSmallestLayer {
		prev := points[len(points)-1]
		idxKeys := make([]uint64, len(prev))
		idxYs := make([]float64, len(prev))
		for i, k := range prev {
			idxKeys[i] = k
			idxYs[i] = float64(i)
		}
		p, c := numeric.FitKeyed(idxKeys, idxYs, pgmOtherLayerDelta, true)
		points = append(points, p)
		coeffs = append(coeffs, c)
	}

	reverse2D(points)
	reverse2DF(coeffs)

	sizes := make([]int, len(points))
	for i, p := range points {
		sizes[i] = len(p)
	}
	logrus.WithField("layer_sizes", sizes).Debug("PGM model trained")

	return &PGM{points: points, coeffs: coeffs}
}

func reverse2D(s [][]uint64) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
func reverse2DF(s [][]float64) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func (m *PGM) InputType() rmi.DataType  { return rmi.Float }
func (m *PGM) OutputType() rmi.DataType { return rmi.Int }

// PredictFloat evaluates only the bottom (original, delta=64) layer: the
// multi-layer traversal the emitted code performs exists to accelerate
// lookup, not to change the answer, so training-time evaluation can search
// the bottom layer directly, exactly as the reference implementation does.
func (m *PGM) PredictFloat(inp rmi.ModelInput) float64 {
	if len(m.points) == 0 {
		return 0
	}
	ukey := uint64(inp.AsFloat())
	bottom := m.points[len(m.points)-1]
	bottomCoeffs := m.coeffs[len(m.coeffs)-1]

	idx := numeric.UpperBound(bottom, ukey) - 1
	if idx < 0 {
		idx = 0
	}
	a, b := bottomCoeffs[2*idx], bottomCoeffs[2*idx+1]
	return math.Max(0, a*inp.AsFloat()+b)
}
func (m *PGM) PredictInt(inp rmi.ModelInput) uint64 {
	return rmi.FloorClamp(m.PredictFloat(inp))
}

func (m *PGM) Params() []rmi.ModelParam {
	sizes := make([]uint64, len(m.points))
	var flatPoints []uint64
	var flatCoeffs []float64
	for i, p := range m.points {
		sizes[i] = uint64(len(p))
		flatPoints = append(flatPoints, p...)
		flatCoeffs = append(flatCoeffs, m.coeffs[i]...)
	}
	return []rmi.ModelParam{
		rmi.IntArrayParam(sizes),
		rmi.IntArrayParam(flatPoints),
		rmi.FloatArrayParam(flatCoeffs),
	}
}

func (m *PGM) Code() string {
	return `
#define MAX(x, y) (((x) > (y)) ? (x) : (y))
#define MIN(x, y) (((x) < (y)) ? (x) : (y))

inline uint64_t pgm_search(const uint64_t points[], uint64_t lsize,
                            int64_t pred, uint64_t key) {
    uint64_t start = (pred <= 8 ? 0 : pred - 8);
    start = MIN(start, lsize - 1);
    uint64_t stop = MIN(pred + 8, lsize);

    while (start > 0 && points[start] > key) start /= 2;
    while (stop < lsize && points[stop] < key) stop *= 2;
    stop = MIN(pred + 8, lsize);

    uint64_t res = bs_upper_bound(points + start, stop - start, key) + start;
    return (res == 0 ? 0 : res - 1);
}

uint64_t pgm(const uint64_t layer_sizes[], uint64_t num_layers,
             const uint64_t f_points[], const double f_coeffs[], double key) {
    uint64_t ukey = (uint64_t)key;
    uint64_t pos = layer_sizes[0] / 2;
    const uint64_t* points = f_points;
    const double* coeffs = f_coeffs;

    for (uint64_t i = 0; i < num_layers; i++) {
        pos = pgm_search(points, layer_sizes[i], pos, ukey);

        if (pos == layer_sizes[i] - 1) {
            pos = (uint64_t)MAX(0.0, coeffs[2*pos] * key + coeffs[2*pos+1]);
        } else {
            double fa = coeffs[2*pos];
            double fb = coeffs[2*pos+1];
            double ga = coeffs[2*(pos+1)];
            double gb = coeffs[2*(pos+1)+1];

            double fpred = fa * key + fb;
            double gpred = ga * (double)points[pos+1] + gb;

            pos = (uint64_t)MAX(0.0, MIN(fpred, gpred));
        }
        points += layer_sizes[i];
        coeffs += 2*layer_sizes[i];
    }

    return pos;
}`
}

func (m *PGM) StandardFunctions() map[rmi.StdFunction]bool {
	return map[rmi.StdFunction]bool{rmi.StdBinarySearch: true}
}

func (m *PGM) FunctionName() string    { return "pgm" }
func (m *PGM) Restriction() rmi.Restriction { return rmi.MustBeBottom }
func (m *PGM) ErrorBound() (uint64, bool) { return 2 * uint64(pgmFirstLayerDelta), true }

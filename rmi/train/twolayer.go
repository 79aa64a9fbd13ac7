package train

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rmi-trainer/rmi/rmi"
	"github.com/rmi-trainer/rmi/rmi/models"
)

// DefaultWorkers is the trainer's bounded worker-pool size (spec §5): a
// static default-4 pool, simpler than gokando's internal/parallel.WorkerPool
// (which dynamically scales) since every fork/join region here has a fixed,
// known shape (two leaf halves, or a row range split evenly).
const DefaultWorkers = 4

func datasetFromScaledRows(kind rmi.KeyType, rows []rmi.ScaledRow) *rmi.Dataset {
	pos := make([]uint64, len(rows))
	for i, r := range rows {
		pos[i] = rmi.FloorClamp(r.Y)
	}
	if kind == rmi.KeyTypeF64 {
		keys := make([]float64, len(rows))
		for i, r := range rows {
			keys[i] = r.Key.AsFloat()
		}
		return rmi.FloatRows(keys, pos)
	}
	keys := make([]uint64, len(rows))
	for i, r := range rows {
		keys[i] = r.Key.AsInt()
	}
	return rmi.Rows(kind, keys, pos)
}

// buildModelsFrom trains one leaf model per partition induced by topModel's
// predictions over w's rows in [startIdx, endIdx), filling any partition no
// row routes to with a dummy model trained on an empty dataset. Grounded on
// train/two_layer.rs's build_models_from.
func buildModelsFrom(w *rmi.Wrapper, topModel rmi.Model, leafModelType string,
	startIdx, endIdx, firstModelIdx, numModels int) ([]rmi.Model, error) {

	kind := w.KeyType()
	dummyWrapper := rmi.NewWrapper(rmi.Empty(kind))

	var leafModels []rmi.Model
	var buf []rmi.ScaledRow
	lastTarget := firstModelIdx

	trainLeaf := func(rows []rmi.ScaledRow) (rmi.Model, error) {
		return models.New(leafModelType, rmi.NewWrapper(datasetFromScaledRows(kind, rows)))
	}
	trainDummy := func() (rmi.Model, error) {
		return models.New(leafModelType, dummyWrapper)
	}

	for _, row := range w.IterBounded(startIdx, endIdx) {
		pred := int(topModel.PredictInt(row.Key))
		target := firstModelIdx + numModels - 1
		if pred < target {
			target = pred
		}
		if target < lastTarget {
			return nil, fmt.Errorf("train: top model routed a row backward (target %d < last %d)", target, lastTarget)
		}

		if target > lastTarget {
			leaf, err := trainLeaf(buf)
			if err != nil {
				return nil, err
			}
			leafModels = append(leafModels, leaf)
			for skipped := lastTarget + 1; skipped < target; skipped++ {
				dummy, err := trainDummy()
				if err != nil {
					return nil, err
				}
				leafModels = append(leafModels, dummy)
			}
			buf = nil
		}

		buf = append(buf, row)
		lastTarget = target
	}

	if len(buf) == 0 {
		return nil, fmt.Errorf("train: partition [%d,%d) produced no data for its final leaf", startIdx, endIdx)
	}
	leaf, err := trainLeaf(buf)
	if err != nil {
		return nil, err
	}
	leafModels = append(leafModels, leaf)

	for skipped := lastTarget + 1; skipped < firstModelIdx+numModels; skipped++ {
		dummy, err := trainDummy()
		if err != nil {
			return nil, err
		}
		leafModels = append(leafModels, dummy)
	}

	if len(leafModels) != numModels {
		return nil, fmt.Errorf("train: expected %d leaf models, built %d", numModels, len(leafModels))
	}
	return leafModels, nil
}

// TrainTwoLayer trains a two-layer RMI: a top model over the whole dataset
// (rescaled to approximately [0, branchingFactor)) routing into
// branchingFactor leaf models. Grounded on train/two_layer.rs's
// train_two_layer.
func TrainTwoLayer(ctx context.Context, w *rmi.Wrapper, topModelType, leafModelType string, branchingFactor uint64) (*rmi.TrainedRMI, error) {
	numRows := w.Len()
	if numRows == 0 {
		return nil, fmt.Errorf("train: cannot train on an empty dataset")
	}

	logrus.WithField("model", topModelType).Info("training top-level model layer")
	w.SetScale(float64(branchingFactor) / float64(numRows))
	topModel, err := models.New(topModelType, w)
	if err != nil {
		return nil, fmt.Errorf("train top model %q: %w", topModelType, err)
	}

	logrus.WithFields(logrus.Fields{"model": leafModelType, "leaves": branchingFactor}).
		Info("training second-level model layer")
	w.SetScale(1.0)

	targetFor := func(key rmi.ModelInput) uint64 {
		t := topModel.PredictInt(key)
		if t > branchingFactor-1 {
			t = branchingFactor - 1
		}
		return t
	}

	midpoint := branchingFactor / 2
	splitIdx := sort.Search(numRows, func(i int) bool {
		return targetFor(w.GetKey(i)) >= midpoint
	})

	var leafModels []rmi.Model
	if splitIdx >= numRows {
		logrus.Warn("all data maps into fewer than half the leaf models; parallelism disabled")
		leafModels, err = buildModelsFrom(w, topModel, leafModelType, 0, numRows, 0, int(branchingFactor))
		if err != nil {
			return nil, err
		}
	} else {
		splitTarget := int(targetFor(w.GetKey(splitIdx)))
		firstHalf := splitTarget
		secondHalf := int(branchingFactor) - splitTarget

		g, _ := errgroup.WithContext(ctx)
		var half1, half2 []rmi.Model
		g.Go(func() error {
			var err error
			half1, err = buildModelsFrom(w, topModel, leafModelType, 0, splitIdx, 0, firstHalf)
			return err
		})
		g.Go(func() error {
			var err error
			half2, err = buildModelsFrom(w, topModel, leafModelType, splitIdx, numRows, splitTarget, secondHalf)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("train leaf halves: %w", err)
		}
		leafModels = append(half1, half2...)
	}

	logrus.Debug("computing last-level errors")
	counts, maxErrs, err := computeLastLayerErrors(ctx, w, topModel, leafModels, branchingFactor, DefaultWorkers)
	if err != nil {
		return nil, err
	}

	for i, leaf := range leafModels {
		if bound, ok := leaf.ErrorBound(); ok && maxErrs[i] > bound {
			logrus.WithFields(logrus.Fields{"leaf": i, "max_error": maxErrs[i], "error_bound": bound}).
				Warn("leaf model error exceeds its declared error bound")
		}
	}

	stats := computeErrorStats(counts, maxErrs, numRows)

	return &rmi.TrainedRMI{
		Layers:          [][]rmi.Model{{topModel}, leafModels},
		LastLayerMaxL1s: maxErrs,
		Stats:           stats,
		BranchingFactor: branchingFactor,
		ModelNames:      []string{topModelType, leafModelType},
		NumDataRows:     numRows,
		KeyType:         w.KeyType(),
	}, nil
}

// computeLastLayerErrors evaluates the trained RMI over every row of w,
// folding per-leaf (count, max L1 error) in parallel across workers chunks
// of the row range and reducing pairwise (max and sum are both associative
// and commutative, so chunk order never affects the result). Grounded on
// train/two_layer.rs's par_iter/fold/reduce.
func computeLastLayerErrors(ctx context.Context, w *rmi.Wrapper, topModel rmi.Model, leafModels []rmi.Model, branchingFactor uint64, workers int) (counts, maxErrs []uint64, err error) {
	n := w.Len()
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}
	if workers == 0 {
		return make([]uint64, branchingFactor), make([]uint64, branchingFactor), nil
	}

	chunkSize := (n + workers - 1) / workers
	partials := make([][]uint64, workers)
	partialMax := make([][]uint64, workers)

	g, _ := errgroup.WithContext(ctx)
	for wk := 0; wk < workers; wk++ {
		wk := wk
		lo := wk * chunkSize
		hi := lo + chunkSize
		if hi > n {
			hi = n
		}
		if lo >= hi {
			partials[wk] = make([]uint64, branchingFactor)
			partialMax[wk] = make([]uint64, branchingFactor)
			continue
		}
		g.Go(func() error {
			cnt := make([]uint64, branchingFactor)
			mx := make([]uint64, branchingFactor)
			for _, row := range w.IterBounded(lo, hi) {
				leafIdx := topModel.PredictInt(row.Key)
				if leafIdx > branchingFactor-1 {
					leafIdx = branchingFactor - 1
				}
				pred := leafModels[leafIdx].PredictInt(row.Key)
				y := rmi.FloorClamp(row.Y)
				e := errAbs(y, pred)
				cnt[leafIdx]++
				if e > mx[leafIdx] {
					mx[leafIdx] = e
				}
			}
			partials[wk] = cnt
			partialMax[wk] = mx
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	counts = make([]uint64, branchingFactor)
	maxErrs = make([]uint64, branchingFactor)
	for wk := 0; wk < workers; wk++ {
		for i := uint64(0); i < branchingFactor; i++ {
			counts[i] += partials[wk][i]
			if partialMax[wk][i] > maxErrs[i] {
				maxErrs[i] = partialMax[wk][i]
			}
		}
	}
	return counts, maxErrs, nil
}

func errAbs(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}

// computeErrorStats derives the §3 aggregate error statistics from a
// trained RMI's per-leaf (count, max L1 error) vectors.
func computeErrorStats(counts, maxErrs []uint64, numRows int) rmi.ErrorStats {
	var maxError uint64
	maxErrorIdx := 0
	for i, e := range maxErrs {
		if e > maxError {
			maxError = e
			maxErrorIdx = i
		}
	}

	var avgError, avgL2, avgLog2 float64
	for i := range maxErrs {
		n := float64(counts[i])
		e := float64(maxErrs[i])
		avgError += n * e / float64(numRows)
		avgL2 += math.Pow(n*e, 2) / float64(numRows)
		avgLog2 += n * math.Log2(2*e+2)
	}
	avgLog2 /= float64(numRows)

	return rmi.ErrorStats{
		AvgError:     avgError,
		AvgL2Error:   avgL2,
		AvgLog2Error: avgLog2,
		MaxError:     maxError,
		MaxErrorIdx:  maxErrorIdx,
		MaxLog2Error: math.Log2(float64(maxError)),
	}
}

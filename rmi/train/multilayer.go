package train

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rmi-trainer/rmi/rmi"
	"github.com/rmi-trainer/rmi/rmi/models"
)

// partitionRange is a contiguous, possibly-empty row-index range routed to
// one model in a multi-layer RMI.
type partitionRange struct{ start, end int }

// TrainMultiLayer trains an RMI with more than two layers (spec §4.G): the
// top-layer partition count starts at 1 and grows by a factor of
// branchingFactor per layer. Each non-final layer rescales the wrapper by
// (partitions * B) / N, so partition i's predictions land roughly in
// [i*B, (i+1)*B), trains one model per partition, then routes every row in
// that partition through its trained model to cut the next layer's
// partition boundaries; the final layer
// trains one model per partition and records its per-leaf max L1 error.
//
// Unlike the two-layer trainer (direct translation of train/two_layer.rs),
// the reference implementation's own multi-layer path is an unfinished
// stub (train/mod.rs's train_multi_layer call is commented out behind a
// bare panic!()), so this is built from spec.md's description alone — see
// DESIGN.md.
func TrainMultiLayer(ctx context.Context, w *rmi.Wrapper, modelTypes []string, branchingFactor uint64) (*rmi.TrainedRMI, error) {
	if len(modelTypes) < 2 {
		return nil, fmt.Errorf("train: multi-layer RMI needs at least 2 layers, got %d", len(modelTypes))
	}
	n := w.Len()
	if n == 0 {
		return nil, fmt.Errorf("train: cannot train on an empty dataset")
	}
	kind := w.KeyType()

	layers := make([][]rmi.Model, len(modelTypes))
	partitions := []partitionRange{{0, n}}

	for layerIdx := 0; layerIdx < len(modelTypes)-1; layerIdx++ {
		numNext := uint64(len(partitions)) * branchingFactor
		logrus.WithFields(logrus.Fields{
			"layer": layerIdx, "model": modelTypes[layerIdx], "partitions": len(partitions),
		}).Info("training multi-layer RMI layer")

		w.SetScale(float64(numNext) / float64(n))
		layerModels := make([]rmi.Model, len(partitions))
		for i, p := range partitions {
			sub := rmi.NewWrapper(datasetFromScaledRows(kind, w.IterBounded(p.start, p.end)))
			m, err := models.New(modelTypes[layerIdx], sub)
			if err != nil {
				return nil, fmt.Errorf("train layer %d partition %d: %w", layerIdx, i, err)
			}
			layerModels[i] = m
		}
		layers[layerIdx] = layerModels
		w.SetScale(1.0)

		partitions = routeToNextLayer(w, partitions, layerModels, branchingFactor)
	}

	finalType := modelTypes[len(modelTypes)-1]
	leafModels := make([]rmi.Model, len(partitions))
	counts := make([]uint64, len(partitions))
	maxErrs := make([]uint64, len(partitions))
	for i, p := range partitions {
		rows := w.IterBounded(p.start, p.end)
		sub := rmi.NewWrapper(datasetFromScaledRows(kind, rows))
		m, err := models.New(finalType, sub)
		if err != nil {
			return nil, fmt.Errorf("train final layer partition %d: %w", i, err)
		}
		leafModels[i] = m

		for _, row := range rows {
			pred := m.PredictInt(row.Key)
			y := rmi.FloorClamp(row.Y)
			e := errAbs(y, pred)
			counts[i]++
			if e > maxErrs[i] {
				maxErrs[i] = e
			}
		}
	}
	layers[len(modelTypes)-1] = leafModels

	return &rmi.TrainedRMI{
		Layers:          layers,
		LastLayerMaxL1s: maxErrs,
		Stats:           computeErrorStats(counts, maxErrs, n),
		BranchingFactor: branchingFactor,
		ModelNames:      modelTypes,
		NumDataRows:     n,
		KeyType:         kind,
	}, nil
}

// routeToNextLayer walks each current partition's rows through its trained
// model (scale already reset to 1.0) and cuts boundaries wherever the
// clamped local prediction (the model's output minus the partition's i*B
// offset) advances, inserting empty ranges for any
// sub-partition index skipped entirely — the same advancing-target
// bookkeeping buildModelsFrom uses for the two-layer trainer's leaves.
func routeToNextLayer(w *rmi.Wrapper, partitions []partitionRange, layerModels []rmi.Model, branchingFactor uint64) []partitionRange {
	var next []partitionRange

	for i, p := range partitions {
		model := layerModels[i]
		rows := w.IterBounded(p.start, p.end)
		if len(rows) == 0 {
			for skip := uint64(0); skip < branchingFactor; skip++ {
				next = append(next, partitionRange{p.start, p.start})
			}
			continue
		}

		segStart := p.start
		prevTarget := -1
		offset := i * int(branchingFactor)
		for idx, row := range rows {
			t := int(model.PredictInt(row.Key)) - offset
			if t > int(branchingFactor)-1 {
				t = int(branchingFactor) - 1
			}
			if t < 0 {
				t = 0
			}
			if prevTarget == -1 {
				for skip := 0; skip < t; skip++ {
					next = append(next, partitionRange{p.start, p.start})
				}
				prevTarget = t
			}
			if t != prevTarget {
				cut := p.start + idx
				next = append(next, partitionRange{segStart, cut})
				for skip := prevTarget + 1; skip < t; skip++ {
					next = append(next, partitionRange{cut, cut})
				}
				segStart = cut
				prevTarget = t
			}
		}
		next = append(next, partitionRange{segStart, p.end})
		for skip := prevTarget + 1; skip < int(branchingFactor); skip++ {
			next = append(next, partitionRange{p.end, p.end})
		}
	}

	return next
}

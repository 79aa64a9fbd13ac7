package train

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmi-trainer/rmi/rmi"
)

func sortedDataset(n int) *rmi.Dataset {
	keys := make([]uint64, n)
	pos := make([]uint64, n)
	for i := 0; i < n; i++ {
		keys[i] = uint64(i * 3)
		pos[i] = uint64(i)
	}
	return rmi.Rows(rmi.KeyTypeU64, keys, pos)
}

func TestTrainTwoLayer_RejectsEmptyDataset(t *testing.T) {
	_, err := TrainTwoLayer(context.Background(), rmi.NewWrapper(rmi.Empty(rmi.KeyTypeU64)), "linear", "linear", 4)
	assert.Error(t, err)
}

func TestTrainTwoLayer_BuildsExpectedLayerShape(t *testing.T) {
	d := sortedDataset(2000)
	trained, err := TrainTwoLayer(context.Background(), rmi.NewWrapper(d), "linear", "linear", 16)
	require.NoError(t, err)
	require.Len(t, trained.Layers, 2)
	assert.Len(t, trained.Layers[0], 1)
	assert.Len(t, trained.Layers[1], 16)
	assert.Equal(t, uint64(16), trained.BranchingFactor)
	assert.Equal(t, 2000, trained.NumDataRows)
	assert.Equal(t, []string{"linear", "linear"}, trained.ModelNames)
}

func TestTrainTwoLayer_LastLayerErrorsCoverEveryLeaf(t *testing.T) {
	d := sortedDataset(500)
	trained, err := TrainTwoLayer(context.Background(), rmi.NewWrapper(d), "linear", "linear", 8)
	require.NoError(t, err)
	assert.Len(t, trained.LastLayerMaxL1s, 8)
}

func TestTrainTwoLayer_PredictionsApproximateTruePositions(t *testing.T) {
	d := sortedDataset(5000)
	trained, err := TrainTwoLayer(context.Background(), rmi.NewWrapper(d), "linear", "linear", 32)
	require.NoError(t, err)

	top := trained.TopModel()
	leaves := trained.LeafModels()
	for i := 0; i < d.Len(); i += 137 {
		key, truePos := d.Get(i)
		leafIdx := top.PredictInt(key)
		if leafIdx >= trained.BranchingFactor {
			leafIdx = trained.BranchingFactor - 1
		}
		pred := leaves[leafIdx].PredictInt(key)
		assert.InDelta(t, float64(truePos), float64(pred), float64(d.Len()), "row %d", i)
	}
}

func TestErrAbs_SymmetricDifference(t *testing.T) {
	assert.Equal(t, uint64(3), errAbs(10, 7))
	assert.Equal(t, uint64(3), errAbs(7, 10))
	assert.Equal(t, uint64(0), errAbs(5, 5))
}

func TestComputeErrorStats_TracksWorstLeaf(t *testing.T) {
	counts := []uint64{10, 10}
	maxErrs := []uint64{2, 9}
	stats := computeErrorStats(counts, maxErrs, 20)
	assert.Equal(t, uint64(9), stats.MaxError)
	assert.Equal(t, 1, stats.MaxErrorIdx)
}

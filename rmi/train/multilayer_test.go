package train

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmi-trainer/rmi/rmi"
)

func TestTrainMultiLayer_RejectsFewerThanTwoLayers(t *testing.T) {
	d := sortedDataset(100)
	_, err := TrainMultiLayer(context.Background(), rmi.NewWrapper(d), []string{"linear"}, 4)
	assert.Error(t, err)
}

func TestTrainMultiLayer_RejectsEmptyDataset(t *testing.T) {
	_, err := TrainMultiLayer(context.Background(), rmi.NewWrapper(rmi.Empty(rmi.KeyTypeU64)), []string{"linear", "linear"}, 4)
	assert.Error(t, err)
}

func TestTrainMultiLayer_ThreeLayers_PartitionCountGrowsByBranchingFactor(t *testing.T) {
	d := sortedDataset(5000)
	trained, err := TrainMultiLayer(context.Background(), rmi.NewWrapper(d), []string{"linear", "linear", "linear"}, 4)
	require.NoError(t, err)
	require.Len(t, trained.Layers, 3)
	assert.Len(t, trained.Layers[0], 1)
	assert.Len(t, trained.Layers[1], 4)
	assert.Len(t, trained.Layers[2], 16)
}

func TestTrainMultiLayer_TwoLayersMatchesTwoLayerShape(t *testing.T) {
	d := sortedDataset(1000)
	trained, err := TrainMultiLayer(context.Background(), rmi.NewWrapper(d), []string{"linear", "linear"}, 8)
	require.NoError(t, err)
	assert.Len(t, trained.Layers[0], 1)
	assert.Len(t, trained.Layers[1], 8)
	assert.Len(t, trained.LastLayerMaxL1s, 8)
}

func TestRouteToNextLayer_EmptyPartitionProducesEmptyChildren(t *testing.T) {
	d := rmi.Empty(rmi.KeyTypeU64)
	w := rmi.NewWrapper(d)
	next := routeToNextLayer(w, []partitionRange{{0, 0}}, []rmi.Model{nil}, 4)
	assert.Len(t, next, 4)
	for _, r := range next {
		assert.Equal(t, r.start, r.end)
	}
}

package codegen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmi-trainer/rmi/rmi"
	"github.com/rmi-trainer/rmi/rmi/models"
)

func TestOrderedSet_DedupesPreservingInsertionOrder(t *testing.T) {
	var s orderedSet
	s.add("b")
	s.add("a")
	s.add("b")
	s.add("")
	assert.Equal(t, []string{"b", "a"}, s.items)
}

func TestKeyCType_MapsKeyTypes(t *testing.T) {
	assert.Equal(t, "uint32_t", keyCType(rmi.KeyTypeU32))
	assert.Equal(t, "double", keyCType(rmi.KeyTypeF64))
	assert.Equal(t, "uint64_t", keyCType(rmi.KeyTypeU64))
}

func TestModelIndexFromOutput_IntNeedsCheckClamps(t *testing.T) {
	out := modelIndexFromOutput(rmi.Int, 16, true)
	assert.Equal(t, "(ipred > 16 - 1 ? 16 - 1 : ipred)", out)
}

func TestModelIndexFromOutput_IntNoCheckPassesThrough(t *testing.T) {
	assert.Equal(t, "ipred", modelIndexFromOutput(rmi.Int, 16, false))
}

func TestModelIndexFromOutput_FloatNeedsCheckUsesFCLAMP(t *testing.T) {
	out := modelIndexFromOutput(rmi.Float, 16, true)
	assert.Equal(t, "FCLAMP(fpred, 16.0 - 1.0)", out)
}

func TestModelIndexFromOutput_FloatNoCheckCasts(t *testing.T) {
	assert.Equal(t, "(uint64_t) fpred", modelIndexFromOutput(rmi.Float, 16, false))
}

func TestStdFunctionCode_KnownFunctionsNonEmpty(t *testing.T) {
	assert.Contains(t, stdFunctionCode(rmi.StdBinarySearch), "bs_upper_bound")
	assert.Contains(t, stdFunctionCode(rmi.StdExp1), "inline double exp1")
}

func trainedFixture(t *testing.T) *rmi.TrainedRMI {
	t.Helper()
	n := 64
	keys := make([]uint64, n)
	pos := make([]uint64, n)
	for i := 0; i < n; i++ {
		keys[i] = uint64(i * 10)
		pos[i] = uint64(i)
	}
	dataset := rmi.Rows(rmi.KeyTypeU64, keys, pos)
	w := rmi.NewWrapper(dataset)

	top := models.NewLinearModel(w)
	var leaves []rmi.Model
	leafSize := n / 4
	for i := 0; i < 4; i++ {
		lo, hi := i*leafSize, (i+1)*leafSize
		leafKeys := keys[lo:hi]
		leafPos := make([]uint64, len(leafKeys))
		for j := range leafPos {
			leafPos[j] = pos[lo+j]
		}
		leafDataset := rmi.Rows(rmi.KeyTypeU64, leafKeys, leafPos)
		leaves = append(leaves, models.NewLinearModel(rmi.NewWrapper(leafDataset)))
	}

	return &rmi.TrainedRMI{
		Layers:          [][]rmi.Model{{top}, leaves},
		LastLayerMaxL1s: []uint64{1, 2, 3, 4},
		BranchingFactor: 4,
		ModelNames:      []string{"linear", "linear"},
		NumDataRows:     n,
		KeyType:         rmi.KeyTypeU64,
	}
}

func TestGenerate_RejectsEmptyLayers(t *testing.T) {
	_, err := Generate("ns", &rmi.TrainedRMI{}, 0, rmi.KeyTypeU64, false)
	assert.Error(t, err)
}

func TestGenerate_ProducesAllThreeArtifacts(t *testing.T) {
	trained := trainedFixture(t)
	gen, err := Generate("myrmi", trained, 12345, rmi.KeyTypeU64, false)
	require.NoError(t, err)

	assert.Contains(t, gen.Header, "namespace myrmi")
	assert.Contains(t, gen.Header, "uint64_t lookup(uint64_t key)")
	assert.Contains(t, gen.CPP, "namespace myrmi")
	assert.Contains(t, gen.CPP, "bool load(char const* dataPath)")
	assert.Contains(t, gen.DataH, "namespace myrmi")
}

func TestGenerate_WithErrorsZipsLastLayerAndChangesSignature(t *testing.T) {
	trained := trainedFixture(t)
	gen, err := Generate("myrmi", trained, 0, rmi.KeyTypeU64, true)
	require.NoError(t, err)

	assert.Contains(t, gen.Header, "lookup(uint64_t key, size_t* err)")
	assert.Contains(t, gen.CPP, "*err =")
}

func TestGenerate_RejectsMissingErrorVectorWhenRequested(t *testing.T) {
	trained := trainedFixture(t)
	trained.LastLayerMaxL1s = nil
	_, err := Generate("myrmi", trained, 0, rmi.KeyTypeU64, true)
	assert.Error(t, err)
}

func TestGenerate_IsDeterministicAcrossRuns(t *testing.T) {
	trained := trainedFixture(t)
	a, err := Generate("myrmi", trained, 99, rmi.KeyTypeU64, true)
	require.NoError(t, err)

	trained2 := trainedFixture(t)
	b, err := Generate("myrmi", trained2, 99, rmi.KeyTypeU64, true)
	require.NoError(t, err)

	assert.Equal(t, a.CPP, b.CPP)
	assert.Equal(t, a.Header, b.Header)
	assert.Equal(t, a.DataH, b.DataH)
}

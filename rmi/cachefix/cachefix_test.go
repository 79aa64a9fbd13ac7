package cachefix

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmi-trainer/rmi/rmi"
	"github.com/rmi-trainer/rmi/rmi/train"
)

func linearDataset(n int) *rmi.Dataset {
	keys := make([]uint64, n)
	pos := make([]uint64, n)
	for i := 0; i < n; i++ {
		keys[i] = uint64(i * 2)
		pos[i] = uint64(i)
	}
	return rmi.Rows(rmi.KeyTypeU64, keys, pos)
}

func TestFix_RejectsDatasetNotExceedingLineSize(t *testing.T) {
	d := linearDataset(4)
	_, err := Fix(d, 8)
	assert.Error(t, err)
}

func TestFix_LinearDataset_CompressesToFewSegments(t *testing.T) {
	d := linearDataset(1000)
	joints, err := Fix(d, 16)
	require.NoError(t, err)
	assert.NotEmpty(t, joints)
	assert.Less(t, len(joints), d.Len())
}

func TestFix_JointsCoverFirstAndLastKey(t *testing.T) {
	d := linearDataset(200)
	joints, err := Fix(d, 8)
	require.NoError(t, err)
	require.NotEmpty(t, joints)
	first := joints[0]
	assert.Equal(t, uint64(0), first.Key.AsInt())
	assert.Equal(t, uint64(0), first.Pos)
	last := joints[len(joints)-1]
	assert.Equal(t, uint64(398), last.Key.AsInt())
	assert.Equal(t, uint64(199), last.Pos)
}

func TestFix_EveryOriginalPointStaysInItsTrueCacheLine(t *testing.T) {
	d := linearDataset(500)
	const lineSize = 32
	joints, err := Fix(d, lineSize)
	require.NoError(t, err)
	require.NotEmpty(t, joints)

	predict := func(key rmi.ModelInput) uint64 {
		for i := 0; i+1 < len(joints); i++ {
			from, to := joints[i], joints[i+1]
			if !key.Less(from.Key) && !to.Key.Less(key) {
				if to.Key.AsInt() == from.Key.AsInt() {
					return from.Pos
				}
				t0 := float64(key.AsInt()-from.Key.AsInt()) / float64(to.Key.AsInt()-from.Key.AsInt())
				return uint64((1-t0)*float64(from.Pos) + t0*float64(to.Pos))
			}
		}
		return joints[len(joints)-1].Pos
	}

	for _, row := range d.IterUnique() {
		predicted := predict(row.Key) / lineSize
		actual := row.Pos / lineSize
		assert.Equal(t, actual, predicted, "key %d", row.Key.AsInt())
	}
}

func TestReindexedDataset_PositionsAre0ToNMinus1(t *testing.T) {
	joints := []rmi.SplineJoint{
		{Key: rmi.NewIntInput(rmi.KeyTypeU64, 10), Pos: 0},
		{Key: rmi.NewIntInput(rmi.KeyTypeU64, 40), Pos: 50},
		{Key: rmi.NewIntInput(rmi.KeyTypeU64, 90), Pos: 199},
	}
	d := ReindexedDataset(joints, rmi.KeyTypeU64)
	require.Equal(t, 3, d.Len())

	for i, want := range []uint64{10, 40, 90} {
		key, pos := d.Get(i)
		assert.Equal(t, want, key.AsInt())
		assert.Equal(t, uint64(i), pos)
	}
}

func TestReindexedDataset_FloatDomain(t *testing.T) {
	joints := []rmi.SplineJoint{
		{Key: rmi.NewFloatInput(1.5), Pos: 0},
		{Key: rmi.NewFloatInput(9.25), Pos: 40},
	}
	d := ReindexedDataset(joints, rmi.KeyTypeF64)
	require.Equal(t, 2, d.Len())
	key, pos := d.Get(1)
	assert.Equal(t, 9.25, key.AsFloat())
	assert.Equal(t, uint64(1), pos)
}

// TestCacheFixThenTrain_IsDeterministicAcrossRuns covers spec.md's "Cache-fix
// determinism" scenario: compressing a dataset to a cache-fix spline and
// training over the reindexed result twice yields identical per-leaf max
// errors both times.
func TestCacheFixThenTrain_IsDeterministicAcrossRuns(t *testing.T) {
	d := linearDataset(4000)
	joints, err := Fix(d, 64)
	require.NoError(t, err)
	require.NotEmpty(t, joints)

	trainOnce := func() *rmi.TrainedRMI {
		reindexed := ReindexedDataset(joints, rmi.KeyTypeU64)
		trained, err := train.TrainTwoLayer(context.Background(), rmi.NewWrapper(reindexed), "linear", "linear", 16)
		require.NoError(t, err)
		return trained
	}

	a := trainOnce()
	b := trainOnce()

	require.Equal(t, len(a.LastLayerMaxL1s), len(b.LastLayerMaxL1s))
	assert.Equal(t, a.LastLayerMaxL1s, b.LastLayerMaxL1s)
	assert.Equal(t, a.Stats, b.Stats)
}

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmi-trainer/rmi/rmi"
)

func TestRadixModel_PredictsTopBits(t *testing.T) {
	w := sampleWrapper(1000)
	m := NewRadixModel(w)
	assert.Equal(t, rmi.MustBeTop, m.Restriction())
	assert.False(t, m.NeedsBoundsCheck())

	first := m.PredictInt(rmi.NewIntInput(rmi.KeyTypeU64, 0))
	last := m.PredictInt(rmi.NewIntInput(rmi.KeyTypeU64, 1998))
	assert.LessOrEqual(t, first, last)
}

func TestRadixModel_EmptyDataset(t *testing.T) {
	m := NewRadixModel(rmi.NewWrapper(rmi.Empty(rmi.KeyTypeU64)))
	assert.Equal(t, uint64(0), m.PredictInt(rmi.NewIntInput(rmi.KeyTypeU64, 5)))
}

func TestBalancedRadixModel_NeverExceedsMaxBitWidth(t *testing.T) {
	w := sampleWrapper(2000)
	max := NewRadixModel(w)
	balanced := NewBalancedRadixModel(w)
	assert.LessOrEqual(t, balanced.bits, max.bits)
}

func TestRadixTable_PredictsWithinDatasetRange(t *testing.T) {
	w := sampleWrapper(500)
	m := NewRadixTable(6)(w)
	require.NotNil(t, m)
	pred := m.PredictInt(rmi.NewIntInput(rmi.KeyTypeU64, 400))
	assert.LessOrEqual(t, pred, uint64(500))
}

func TestRadixTable_EmptyDatasetPredictsZero(t *testing.T) {
	m := NewRadixTable(4)(rmi.NewWrapper(rmi.Empty(rmi.KeyTypeU64)))
	assert.Equal(t, 0.0, m.PredictFloat(rmi.NewIntInput(rmi.KeyTypeU64, 1)))
}

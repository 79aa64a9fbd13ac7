package rmi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDataset_Rows_PanicsOnLengthMismatch(t *testing.T) {
	assert.Panics(t, func() {
		Rows(KeyTypeU64, []uint64{1, 2}, []uint64{0})
	})
}

func TestDataset_IterUnique_DropsDuplicateKeys(t *testing.T) {
	d := Rows(KeyTypeU64, []uint64{1, 1, 2, 2, 2, 5}, []uint64{0, 0, 2, 2, 2, 5})
	rows := d.IterUnique()
	assert.Len(t, rows, 3)
	assert.Equal(t, uint64(1), rows[0].Key.AsInt())
	assert.Equal(t, uint64(0), rows[0].Pos)
	assert.Equal(t, uint64(2), rows[1].Key.AsInt())
	assert.Equal(t, uint64(5), rows[2].Key.AsInt())
}

func TestDataset_IterUnique_FloatDomain(t *testing.T) {
	d := FloatRows([]float64{1.0, 1.0, 2.5}, []uint64{0, 0, 2})
	rows := d.IterUnique()
	assert.Len(t, rows, 2)
	assert.Equal(t, 2.5, rows[1].Key.AsFloat())
}

func TestDataset_IterBounded_ReturnsHalfOpenRange(t *testing.T) {
	d := Rows(KeyTypeU64, []uint64{10, 20, 30, 40}, []uint64{0, 1, 2, 3})
	rows := d.IterBounded(1, 3)
	assert.Len(t, rows, 2)
	assert.Equal(t, uint64(20), rows[0].Key.AsInt())
	assert.Equal(t, uint64(30), rows[1].Key.AsInt())
}

func TestWrapper_Get_AppliesScale(t *testing.T) {
	d := Rows(KeyTypeU64, []uint64{1, 2, 3}, []uint64{0, 10, 20})
	w := NewWrapper(d)
	w.SetScale(0.5)
	_, y := w.Get(1)
	assert.Equal(t, 5.0, y)
}

func TestWrapper_Iter_MatchesLength(t *testing.T) {
	d := Rows(KeyTypeU64, []uint64{1, 2, 3}, []uint64{0, 1, 2})
	w := NewWrapper(d)
	assert.Len(t, w.Iter(), 3)
	assert.Equal(t, 3, w.Len())
}

func TestEmpty_HasZeroLength(t *testing.T) {
	assert.Equal(t, 0, Empty(KeyTypeU64).Len())
	assert.Equal(t, 0, Empty(KeyTypeF64).Len())
}

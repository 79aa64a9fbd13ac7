package rmi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFloorClamp_NegativeClampsToZero(t *testing.T) {
	assert.Equal(t, uint64(0), FloorClamp(-3.2))
}

func TestFloorClamp_FloorsPositive(t *testing.T) {
	assert.Equal(t, uint64(4), FloorClamp(4.9))
}

func TestModelParam_Size(t *testing.T) {
	assert.Equal(t, 8, IntParam(7).Size())
	assert.Equal(t, 8, FloatParam(1.0).Size())
	assert.Equal(t, 6, ShortArrayParam([]uint16{1, 2, 3}).Size())
	assert.Equal(t, 16, IntArrayParam([]uint64{1, 2}).Size())
	assert.Equal(t, 24, FloatArrayParam([]float64{1, 2, 3}).Size())
}

func TestModelParam_Len(t *testing.T) {
	assert.Equal(t, 1, IntParam(1).Len())
	assert.Equal(t, 3, FloatArrayParam([]float64{1, 2, 3}).Len())
}

func TestModelParam_SameType(t *testing.T) {
	assert.True(t, IntParam(1).SameType(IntParam(2)))
	assert.False(t, IntParam(1).SameType(FloatParam(2)))
}

func TestModelBase_Defaults(t *testing.T) {
	var b ModelBase
	assert.Nil(t, b.StandardFunctions())
	assert.True(t, b.NeedsBoundsCheck())
	assert.Equal(t, RestrictionNone, b.Restriction())
	bound, ok := b.ErrorBound()
	assert.Zero(t, bound)
	assert.False(t, ok)
}

package rmi

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModelInput_IntDomain_RoundTrips(t *testing.T) {
	in := NewIntInput(KeyTypeU64, 42)
	assert.Equal(t, uint64(42), in.AsInt())
	assert.Equal(t, float64(42), in.AsFloat())
	assert.Equal(t, KeyTypeU64, in.Kind())
}

func TestModelInput_FloatDomain_BitCasts(t *testing.T) {
	in := NewFloatInput(3.5)
	assert.Equal(t, 3.5, in.AsFloat())
	assert.Equal(t, math.Float64bits(3.5), in.AsInt())
}

func TestModelInput_MinusEpsilon_IntegerDecrementsByOne(t *testing.T) {
	in := NewIntInput(KeyTypeU32, 10)
	assert.Equal(t, uint64(9), in.MinusEpsilon().AsInt())
}

func TestModelInput_MinusEpsilon_IntegerSaturatesAtZero(t *testing.T) {
	in := NewIntInput(KeyTypeU32, 0)
	assert.Equal(t, uint64(0), in.MinusEpsilon().AsInt())
}

func TestModelInput_MinusEpsilon_FloatStepsOneULPDown(t *testing.T) {
	in := NewFloatInput(1.0)
	got := in.MinusEpsilon().AsFloat()
	assert.Less(t, got, 1.0)
	assert.Equal(t, math.Nextafter(1.0, math.Inf(-1)), got)
}

func TestModelInput_Less_ComparesWithinDomain(t *testing.T) {
	assert.True(t, NewIntInput(KeyTypeU64, 1).Less(NewIntInput(KeyTypeU64, 2)))
	assert.False(t, NewIntInput(KeyTypeU64, 2).Less(NewIntInput(KeyTypeU64, 1)))
	assert.True(t, NewFloatInput(1.5).Less(NewFloatInput(2.5)))
}

func TestKeyType_String(t *testing.T) {
	assert.Equal(t, "uint32", KeyTypeU32.String())
	assert.Equal(t, "uint64", KeyTypeU64.String())
	assert.Equal(t, "f64", KeyTypeF64.String())
}

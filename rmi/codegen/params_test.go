package codegen

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmi-trainer/rmi/rmi"
)

func TestCType_MapsParamKinds(t *testing.T) {
	assert.Equal(t, "uint64_t", cType(rmi.IntParam(1)))
	assert.Equal(t, "double", cType(rmi.FloatParam(1)))
	assert.Equal(t, "short", cType(rmi.ShortArrayParam([]uint16{1})))
	assert.Equal(t, "uint64_t", cType(rmi.IntArrayParam([]uint64{1})))
	assert.Equal(t, "double", cType(rmi.FloatArrayParam([]float64{1})))
}

func TestCTypeMod_ArraysGetBrackets(t *testing.T) {
	assert.Equal(t, "", cTypeMod(rmi.IntParam(1)))
	assert.Equal(t, "", cTypeMod(rmi.FloatParam(1)))
	assert.Equal(t, "[]", cTypeMod(rmi.IntArrayParam([]uint64{1, 2})))
}

func TestCFloat_AlwaysHasDecimalPoint(t *testing.T) {
	assert.Equal(t, "3.0", cFloat(3))
	assert.Equal(t, "3.5", cFloat(3.5))
}

func TestCVal_FormatsEachKind(t *testing.T) {
	assert.Equal(t, "7UL", cVal(rmi.IntParam(7)))
	assert.Equal(t, "2.5", cVal(rmi.FloatParam(2.5)))
	assert.Equal(t, "{ 1, 2 }", cVal(rmi.ShortArrayParam([]uint16{1, 2})))
	assert.Equal(t, "{ 1UL, 2UL }", cVal(rmi.IntArrayParam([]uint64{1, 2})))
	assert.Equal(t, "{ 1.0, 2.5 }", cVal(rmi.FloatArrayParam([]float64{1, 2.5})))
}

func TestIsArray_TrueOnlyForArrayKinds(t *testing.T) {
	assert.False(t, isArray(rmi.IntParam(1)))
	assert.False(t, isArray(rmi.FloatParam(1)))
	assert.True(t, isArray(rmi.ShortArrayParam([]uint16{1})))
	assert.True(t, isArray(rmi.IntArrayParam([]uint64{1})))
	assert.True(t, isArray(rmi.FloatArrayParam([]float64{1})))
}

func TestWriteBinary_LittleEndianPerKind(t *testing.T) {
	var buf bytes.Buffer
	writeBinary(&buf, rmi.IntParam(1))
	assert.Equal(t, []byte{1, 0, 0, 0, 0, 0, 0, 0}, buf.Bytes())

	buf.Reset()
	writeBinary(&buf, rmi.FloatParam(0))
	assert.Equal(t, 8, buf.Len())
}

func twoFloatParams(n int) []rmi.ModelParam {
	params := make([]rmi.ModelParam, 0, n*2)
	for i := 0; i < n; i++ {
		params = append(params, rmi.FloatParam(float64(i)), rmi.FloatParam(float64(i)+0.5))
	}
	return params
}

func TestNewLayerParams_SingleModelIsConstant(t *testing.T) {
	lp := newLayerParams(0, false, 2, twoFloatParams(1))
	assert.Equal(t, modeConstant, lp.mode)
}

func TestNewLayerParams_MultiModelForcesArray(t *testing.T) {
	lp := newLayerParams(0, true, 2, twoFloatParams(4))
	assert.Equal(t, modeArray, lp.mode)
}

func TestNewLayerParams_MixedTypesForceMixedArray(t *testing.T) {
	params := []rmi.ModelParam{rmi.IntParam(1), rmi.FloatParam(2.0)}
	lp := newLayerParams(0, false, 2, params)
	assert.Equal(t, modeMixedArray, lp.mode)
}

func TestNewLayerParams_LargeConstantLayerForcesArray(t *testing.T) {
	// Single "model" whose params exceed the malloc threshold must still be
	// packed as an Array, even though arrayAccess is false.
	huge := rmi.FloatArrayParam(make([]float64, 1024)) // 8192 bytes > 4096
	lp := newLayerParams(0, false, 1, []rmi.ModelParam{huge})
	assert.Equal(t, modeArray, lp.mode)
}

func TestLayerParams_ToCode_Constant(t *testing.T) {
	lp := newLayerParams(3, false, 2, twoFloatParams(1))
	var b strings.Builder
	lp.toCode(&b)
	out := b.String()
	assert.Contains(t, out, "L3_PARAMETER0")
	assert.Contains(t, out, "L3_PARAMETER1")
	assert.Contains(t, out, "0.0;")
	assert.Contains(t, out, "0.5;")
}

func TestLayerParams_ToCode_Array(t *testing.T) {
	lp := newLayerParams(1, true, 2, twoFloatParams(3))
	var b strings.Builder
	lp.toCode(&b)
	out := b.String()
	assert.Contains(t, out, "L1_PARAMETERS[]")
	assert.Contains(t, out, "0.0,0.5,1.0,1.5,2.0,2.5")
}

func TestLayerParams_ToDecl_SmallArrayIsInline(t *testing.T) {
	lp := newLayerParams(2, true, 2, twoFloatParams(3))
	var b strings.Builder
	lp.toDecl(&b)
	assert.Contains(t, b.String(), "L2_PARAMETERS[6]")
}

func TestLayerParams_ToDecl_LargeArrayIsPointer(t *testing.T) {
	huge := rmi.FloatArrayParam(make([]float64, 1024))
	lp := newLayerParams(0, true, 1, []rmi.ModelParam{huge})
	var b strings.Builder
	lp.toDecl(&b)
	assert.Contains(t, b.String(), "L0_PARAMETERS;")
	assert.NotContains(t, b.String(), "[")
}

func TestLayerParams_WriteTo_RoundTripsSize(t *testing.T) {
	lp := newLayerParams(0, true, 2, twoFloatParams(3))
	assert.Len(t, lp.writeTo(), 6*8)
}

func TestLayerParams_AccessByConst_UsesNamedConstant(t *testing.T) {
	lp := newLayerParams(0, false, 2, twoFloatParams(1))
	var b strings.Builder
	lp.accessByConst(&b, 1)
	assert.Equal(t, "L0_PARAMETER1", b.String())
}

func TestLayerParams_AccessByRef_ArrayIndexesByModel(t *testing.T) {
	lp := newLayerParams(0, true, 2, twoFloatParams(3))
	var b strings.Builder
	lp.accessByRef(&b, "modelIndex", 1)
	assert.Equal(t, "L0_PARAMETERS[2*modelIndex + 1]", b.String())
}

func TestLayerParams_AccessByRef_MixedArrayComputesByteOffset(t *testing.T) {
	params := []rmi.ModelParam{rmi.IntParam(1), rmi.FloatParam(2.0), rmi.IntParam(3), rmi.FloatParam(4.0)}
	lp := newLayerParams(0, true, 2, params)
	require.Equal(t, modeMixedArray, lp.mode)
	var b strings.Builder
	lp.accessByRef(&b, "modelIndex", 1)
	out := b.String()
	assert.Contains(t, out, "double*")
	assert.Contains(t, out, "* 16")
	assert.Contains(t, out, "+ 8")
}

func TestRequiresMalloc_TrueForMixedAndLargeArray(t *testing.T) {
	mixed := newLayerParams(0, true, 2, []rmi.ModelParam{rmi.IntParam(1), rmi.FloatParam(2.0)})
	assert.True(t, mixed.requiresMalloc())

	small := newLayerParams(0, true, 2, twoFloatParams(3))
	assert.False(t, small.requiresMalloc())

	huge := newLayerParams(0, true, 1, []rmi.ModelParam{rmi.FloatArrayParam(make([]float64, 1024))})
	assert.True(t, huge.requiresMalloc())
}

// withZippedErrors regression test: zipping an error into a layer that has
// exactly one model must not force that layer into Array storage. The
// layers here hold integer parameters only, so the zipped error keeps them
// homogeneous (a float layer plus an integer error would become
// MixedArray).
func TestWithZippedErrors_SingleModelStaysConstant(t *testing.T) {
	lp := newLayerParams(4, false, 2, []rmi.ModelParam{rmi.IntParam(7), rmi.IntParam(8)})
	require.Equal(t, modeConstant, lp.mode)

	zipped := lp.withZippedErrors([]uint64{42})
	assert.Equal(t, modeConstant, zipped.mode)
	assert.Equal(t, 3, zipped.paramsPerModel)
	require.Len(t, zipped.params, 3)
	assert.Equal(t, uint64(42), zipped.params[2].IntVal)
}

func TestWithZippedErrors_MultiModelStaysArray(t *testing.T) {
	lp := newLayerParams(4, true, 2, []rmi.ModelParam{
		rmi.IntParam(10), rmi.IntParam(11),
		rmi.IntParam(20), rmi.IntParam(21),
		rmi.IntParam(30), rmi.IntParam(31),
	})
	require.Equal(t, modeArray, lp.mode)

	zipped := lp.withZippedErrors([]uint64{1, 2, 3})
	assert.Equal(t, modeArray, zipped.mode)
	assert.Equal(t, 3, zipped.paramsPerModel)
	require.Len(t, zipped.params, 9)
	assert.Equal(t, uint64(1), zipped.params[2].IntVal)
	assert.Equal(t, uint64(2), zipped.params[5].IntVal)
	assert.Equal(t, uint64(3), zipped.params[8].IntVal)
}

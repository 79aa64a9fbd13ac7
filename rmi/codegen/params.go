// Package codegen implements the RMI code emitter (spec §4.I): packing
// trained model parameters into one of three storage modes per layer and
// synthesizing the C-style lookup() function, grounded on
// original_source/src/codegen.rs.
package codegen

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rmi-trainer/rmi/rmi"
)

// arrayMallocThreshold is the byte size at or above which an Array layer
// is heap-allocated and loaded from an on-disk blob instead of living
// inline in the header (spec §4.I's "4 KiB" threshold); MixedArray layers
// are heap-allocated regardless of size.
const arrayMallocThreshold = 4 * 1024

func cType(p rmi.ModelParam) string {
	switch p.Kind {
	case rmi.ParamInt, rmi.ParamIntArray:
		return "uint64_t"
	case rmi.ParamShortArray:
		return "short"
	default:
		return "double"
	}
}

func cTypeMod(p rmi.ModelParam) string {
	if p.Kind == rmi.ParamInt || p.Kind == rmi.ParamFloat {
		return ""
	}
	return "[]"
}

func cFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func cVal(p rmi.ModelParam) string {
	switch p.Kind {
	case rmi.ParamInt:
		return fmt.Sprintf("%dUL", p.IntVal)
	case rmi.ParamFloat:
		return cFloat(p.FloatVal)
	case rmi.ParamShortArray:
		items := make([]string, len(p.ShortArray))
		for i, v := range p.ShortArray {
			items[i] = fmt.Sprintf("%d", v)
		}
		return "{ " + strings.Join(items, ", ") + " }"
	case rmi.ParamIntArray:
		items := make([]string, len(p.IntArray))
		for i, v := range p.IntArray {
			items[i] = fmt.Sprintf("%dUL", v)
		}
		return "{ " + strings.Join(items, ", ") + " }"
	case rmi.ParamFloatArray:
		items := make([]string, len(p.FloatArray))
		for i, v := range p.FloatArray {
			items[i] = cFloat(v)
		}
		return "{ " + strings.Join(items, ", ") + " }"
	default:
		return ""
	}
}

func isArray(p rmi.ModelParam) bool {
	switch p.Kind {
	case rmi.ParamShortArray, rmi.ParamIntArray, rmi.ParamFloatArray:
		return true
	default:
		return false
	}
}

// writeBinary appends p's raw little-endian bytes to buf, in the order the
// emitted struct layout expects.
func writeBinary(buf *bytes.Buffer, p rmi.ModelParam) {
	switch p.Kind {
	case rmi.ParamInt:
		binary.Write(buf, binary.LittleEndian, p.IntVal)
	case rmi.ParamFloat:
		binary.Write(buf, binary.LittleEndian, math.Float64bits(p.FloatVal))
	case rmi.ParamShortArray:
		for _, v := range p.ShortArray {
			binary.Write(buf, binary.LittleEndian, v)
		}
	case rmi.ParamIntArray:
		for _, v := range p.IntArray {
			binary.Write(buf, binary.LittleEndian, v)
		}
	case rmi.ParamFloatArray:
		for _, v := range p.FloatArray {
			binary.Write(buf, binary.LittleEndian, math.Float64bits(v))
		}
	}
}

// storageMode is one of the three packing strategies spec §4.I names.
type storageMode int

const (
	modeConstant storageMode = iota
	modeArray
	modeMixedArray
)

// layerParams is one layer's packed parameter list plus the storage
// decision made for it. Grounded on codegen.rs's LayerParams enum.
type layerParams struct {
	mode           storageMode
	index          int
	paramsPerModel int
	params         []rmi.ModelParam
}

// newLayerParams decides a layer's storage mode: mixed types force
// MixedArray; otherwise array access is forced by a non-singleton layer or
// by exceeding the malloc threshold; otherwise Constant.
func newLayerParams(idx int, arrayAccess bool, paramsPerModel int, params []rmi.ModelParam) layerParams {
	mixed := false
	for _, p := range params {
		if !p.SameType(params[0]) {
			mixed = true
			break
		}
	}
	if mixed {
		return layerParams{mode: modeMixedArray, index: idx, paramsPerModel: paramsPerModel, params: params}
	}

	var sizeBytes int
	for _, p := range params {
		sizeBytes += p.Size()
	}
	if arrayAccess || sizeBytes > arrayMallocThreshold {
		return layerParams{mode: modeArray, index: idx, paramsPerModel: paramsPerModel, params: params}
	}
	return layerParams{mode: modeConstant, index: idx, paramsPerModel: len(params), params: params}
}

func constantName(layer, idx int) string { return fmt.Sprintf("L%d_PARAMETER%d", layer, idx) }
func arrayName(layer int) string         { return fmt.Sprintf("L%d_PARAMETERS", layer) }

func (lp layerParams) size() int {
	total := 0
	for _, p := range lp.params {
		total += p.Size()
	}
	return total
}

func (lp layerParams) requiresMalloc() bool {
	switch lp.mode {
	case modeMixedArray:
		return true
	case modeArray:
		return lp.size() >= arrayMallocThreshold
	default:
		return false
	}
}

func (lp layerParams) pointerType() string {
	if lp.mode == modeMixedArray {
		return "char"
	}
	return cType(lp.params[0])
}

// toCode emits Constant parameters as named compile-time constants, or an
// Array layer's inline initializer; MixedArray layers cannot be hardcoded
// and are always on disk.
func (lp layerParams) toCode(w *strings.Builder) {
	switch lp.mode {
	case modeConstant:
		for i, p := range lp.params {
			fmt.Fprintf(w, "const %s %s%s = %s;\n", cType(p), constantName(lp.index, i), cTypeMod(p), cVal(p))
		}
	case modeArray:
		fmt.Fprintf(w, "const %s %s[] = {", cType(lp.params[0]), arrayName(lp.index))
		vals := make([]string, len(lp.params))
		for i, p := range lp.params {
			vals[i] = cVal(p)
		}
		w.WriteString(strings.Join(vals, ","))
		w.WriteString("};\n")
	}
}

// toDecl emits a forward declaration for an Array/MixedArray layer: an
// inline fixed array if small, otherwise a bare pointer populated by
// load().
func (lp layerParams) toDecl(w *strings.Builder) {
	switch lp.mode {
	case modeArray:
		if !lp.requiresMalloc() {
			n := 0
			for _, p := range lp.params {
				n += p.Len()
			}
			fmt.Fprintf(w, "%s %s[%d];\n", cType(lp.params[0]), arrayName(lp.index), n)
		} else {
			fmt.Fprintf(w, "%s* %s;\n", cType(lp.params[0]), arrayName(lp.index))
		}
	case modeMixedArray:
		fmt.Fprintf(w, "char* %s;\n", arrayName(lp.index))
	}
}

// writeTo serializes this layer's parameters to their on-disk blob, in
// declared parameter order.
func (lp layerParams) writeTo() []byte {
	var buf bytes.Buffer
	for _, p := range lp.params {
		writeBinary(&buf, p)
	}
	return buf.Bytes()
}

// accessByConst emits a reference to parameter pidx for a single-model
// (Constant-eligible) layer.
func (lp layerParams) accessByConst(w *strings.Builder, pidx int) {
	if lp.mode == modeConstant {
		w.WriteString(constantName(lp.index, pidx))
		return
	}
	lp.accessByRef(w, "0", pidx)
}

// accessByRef emits a reference to parameter pidx of model modelIndex for
// an Array or MixedArray layer.
func (lp layerParams) accessByRef(w *strings.Builder, modelIndex string, pidx int) {
	if isArray(lp.params[0]) {
		w.WriteString(arrayName(lp.index))
		return
	}

	switch lp.mode {
	case modeArray:
		fmt.Fprintf(w, "%s[%d*%s + %d]", arrayName(lp.index), lp.paramsPerModel, modelIndex, pidx)
	case modeMixedArray:
		bytesPerModel := 0
		for _, p := range lp.params[:lp.paramsPerModel] {
			bytesPerModel += p.Size()
		}
		offset := 0
		for _, p := range lp.params[:pidx] {
			offset += p.Size()
		}
		fmt.Fprintf(w, "*((%s*) (%s + (%s * %d) + %d))",
			cType(lp.params[pidx]), arrayName(lp.index), modelIndex, bytesPerModel, offset)
	}
}

// withZippedErrors rebuilds this (final) layer's parameter list with one
// extra uint64 per model holding its max L1 error, cache-coadjacent with
// the rest of that model's parameters (spec §4.I's last_layer_errors
// zipping).
func (lp layerParams) withZippedErrors(lle []uint64) layerParams {
	var combined []rmi.ModelParam
	for i := 0; i < len(lp.params); i += lp.paramsPerModel {
		combined = append(combined, lp.params[i:i+lp.paramsPerModel]...)
		combined = append(combined, rmi.IntParam(lle[i/lp.paramsPerModel]))
	}
	numModels := len(lp.params) / lp.paramsPerModel
	return newLayerParams(lp.index, numModels > 1, lp.paramsPerModel+1, combined)
}

// paramsForLayer flattens a layer's models' parameter lists and decides
// its storage mode; array access is forced whenever the layer has more
// than one model.
func paramsForLayer(layerIdx int, models []rmi.Model) layerParams {
	paramsPerModel := len(models[0].Params())
	var flat []rmi.ModelParam
	for _, m := range models {
		flat = append(flat, m.Params()...)
	}
	return newLayerParams(layerIdx, len(models) > 1, paramsPerModel, flat)
}

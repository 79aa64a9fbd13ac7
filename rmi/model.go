package rmi

import "math"

// DataType is the primitive type a model consumes or produces (§3).
type DataType int

const (
	Int DataType = iota
	Float
	Int128
)

// Restriction constrains where in an RMI's layer stack a model may appear.
type Restriction int

const (
	RestrictionNone Restriction = iota
	MustBeTop
	MustBeBottom
)

// ParamKind identifies the shape of a single emitted model parameter.
type ParamKind int

const (
	ParamInt ParamKind = iota
	ParamFloat
	ParamShortArray
	ParamIntArray
	ParamFloatArray
)

// ModelParam is one named value in a model's parameter list, as returned by
// Model.Params. The code emitter (rmi/codegen) packs these according to
// their Kind.
type ModelParam struct {
	Kind       ParamKind
	IntVal     uint64
	FloatVal   float64
	ShortArray []uint16
	IntArray   []uint64
	FloatArray []float64
}

// Size returns the number of bytes this parameter occupies in the emitted
// layout: 8 for a scalar Int/Float, 2/8/8 bytes per element for the array
// kinds.
func (p ModelParam) Size() int {
	switch p.Kind {
	case ParamInt, ParamFloat:
		return 8
	case ParamShortArray:
		return 2 * len(p.ShortArray)
	case ParamIntArray:
		return 8 * len(p.IntArray)
	case ParamFloatArray:
		return 8 * len(p.FloatArray)
	default:
		return 0
	}
}

// Len returns the number of scalar elements this parameter contributes
// (1 for scalars, the slice length for arrays).
func (p ModelParam) Len() int {
	switch p.Kind {
	case ParamShortArray:
		return len(p.ShortArray)
	case ParamIntArray:
		return len(p.IntArray)
	case ParamFloatArray:
		return len(p.FloatArray)
	default:
		return 1
	}
}

// SameType reports whether p and other share a ParamKind, used by the
// emitter to decide whether a model's parameter list is homogeneous enough
// for Array storage or must fall back to MixedArray (§4.I).
func (p ModelParam) SameType(other ModelParam) bool { return p.Kind == other.Kind }

func IntParam(v uint64) ModelParam      { return ModelParam{Kind: ParamInt, IntVal: v} }
func FloatParam(v float64) ModelParam   { return ModelParam{Kind: ParamFloat, FloatVal: v} }
func ShortArrayParam(v []uint16) ModelParam { return ModelParam{Kind: ParamShortArray, ShortArray: v} }
func IntArrayParam(v []uint64) ModelParam   { return ModelParam{Kind: ParamIntArray, IntArray: v} }
func FloatArrayParam(v []float64) ModelParam {
	return ModelParam{Kind: ParamFloatArray, FloatArray: v}
}

// StdFunction names a helper routine the emitted code depends on (e.g. a
// binary-search or the deterministic exp1 series).
type StdFunction int

const (
	StdBinarySearch StdFunction = iota
	StdExp1
)

// Model is the polymorphic contract every regression primitive in the
// model zoo (rmi/models) implements (§3). A Model is constructed once from
// a training dataset and is immutable thereafter.
type Model interface {
	// InputType and OutputType declare which ModelInput view this model
	// consumes and which primitive type it produces.
	InputType() DataType
	OutputType() DataType

	// PredictFloat and PredictInt produce a position estimate. Every model
	// implements both; the integer prediction agrees with the floor/clamp
	// of the float one (see FloorClamp).
	PredictFloat(ModelInput) float64
	PredictInt(ModelInput) uint64

	// Params returns this model's parameters in the fixed order the
	// emitted lookup code expects.
	Params() []ModelParam

	// Code returns the target-language source of this model's prediction
	// function.
	Code() string

	// FunctionName is the C-style name Code's function is declared under.
	FunctionName() string

	// StandardFunctions lists helper routines Code's body calls into.
	StandardFunctions() map[StdFunction]bool

	// NeedsBoundsCheck reports whether predictions from this model may
	// exceed the next layer's width and so must be clamped at lookup time.
	NeedsBoundsCheck() bool

	// Restriction constrains which layer this model may occupy.
	Restriction() Restriction

	// ErrorBound optionally declares a theoretical maximum error; models
	// without one return (0, false).
	ErrorBound() (uint64, bool)
}

// ModelBase supplies the default StandardFunctions, NeedsBoundsCheck,
// Restriction and ErrorBound methods. It has no predict methods: each
// model in rmi/models embeds ModelBase and implements PredictFloat and
// PredictInt itself, deriving the integer prediction with FloorClamp
// (predict_int == floor(max(0, predict_float))) unless it computes an
// integer directly.
type ModelBase struct{}

// FloorClamp converts a float prediction to the integer prediction every
// model must agree with, per the §3 invariant.
func FloorClamp(f float64) uint64 {
	if f <= 0 {
		return 0
	}
	return uint64(math.Floor(f))
}

func (ModelBase) StandardFunctions() map[StdFunction]bool { return nil }
func (ModelBase) NeedsBoundsCheck() bool                  { return true }
func (ModelBase) Restriction() Restriction                { return RestrictionNone }
func (ModelBase) ErrorBound() (uint64, bool)               { return 0, false }

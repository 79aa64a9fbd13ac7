// Package rmi defines the data model shared by every stage of RMI training:
// the tagged key view (ModelInput), the sorted CDF dataset, the polymorphic
// Model contract the model zoo implements, and the trained-RMI result type.
package rmi

import "math"

// KeyType identifies the scalar domain a dataset's keys are drawn from.
type KeyType int

const (
	KeyTypeU32 KeyType = iota
	KeyTypeU64
	KeyTypeF64
)

func (k KeyType) String() string {
	switch k {
	case KeyTypeU32:
		return "uint32"
	case KeyTypeU64:
		return "uint64"
	case KeyTypeF64:
		return "f64"
	default:
		return "unknown"
	}
}

// ModelInput is a tagged view over a single key, exposing both an integer
// and a floating-point interpretation. Models declare which view they
// consume; the trainer always constructs the view the model asked for.
type ModelInput struct {
	kind KeyType
	u    uint64
	f    float64
}

// NewIntInput builds a ModelInput from an integer-domain key (u32 or u64).
func NewIntInput(kind KeyType, v uint64) ModelInput {
	return ModelInput{kind: kind, u: v, f: float64(v)}
}

// NewFloatInput builds a ModelInput from an f64-domain key.
func NewFloatInput(v float64) ModelInput {
	return ModelInput{kind: KeyTypeF64, u: math.Float64bits(v), f: v}
}

// Kind returns the key domain this input was constructed from.
func (m ModelInput) Kind() KeyType { return m.kind }

// AsInt returns the bit-cast integer view. For integer-domain keys this is
// the key itself; for float-domain keys this is the IEEE-754 bit pattern.
func (m ModelInput) AsInt() uint64 { return m.u }

// AsFloat returns the floating-point view. For integer-domain keys this is
// the value widened to f64; for float-domain keys this is the key itself.
func (m ModelInput) AsFloat() float64 { return m.f }

// MinusEpsilon returns the next-smallest representable value in the same
// domain: one ULP below for float keys (math.Nextafter toward -Inf), one
// less for integer keys. Used by the cache-fix preprocessor to avoid
// swinging the spline past a duplicate-key cluster (see rmi/cachefix).
//
// Integer domain: the minimum positive increment for a u32/u64 key is
// exactly 1, so MinusEpsilon saturates at the same value when already 0.
func (m ModelInput) MinusEpsilon() ModelInput {
	switch m.kind {
	case KeyTypeF64:
		return NewFloatInput(math.Nextafter(m.f, math.Inf(-1)))
	default:
		if m.u == 0 {
			return m
		}
		return NewIntInput(m.kind, m.u-1)
	}
}

// Less reports whether m sorts strictly before other within the same
// domain. Integer keys compare by value; float keys compare by the usual
// total order (NaN is never produced by a valid dataset).
func (m ModelInput) Less(other ModelInput) bool {
	if m.kind == KeyTypeF64 {
		return m.f < other.f
	}
	return m.u < other.u
}

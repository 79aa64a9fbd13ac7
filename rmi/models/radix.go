package models

import (
	"github.com/sirupsen/logrus"

	"github.com/rmi-trainer/rmi/rmi"
	"github.com/rmi-trainer/rmi/rmi/numeric"
)

// RadixModel emits (x << commonPrefix) >> (64 - bits), the top-bits
// extraction that routes a key straight to a leaf without any arithmetic
// fit. MustBeTop, no bounds check (its output is already confined to
// [0, 2^bits) by construction). Grounded on models/radix.rs.
type RadixModel struct {
	rmi.ModelBase
	commonPrefix, bits uint8
}

// NewRadixModel builds a RadixModel over w.
func NewRadixModel(w *rmi.Wrapper) *RadixModel {
	rows := w.Iter()
	if len(rows) == 0 {
		return &RadixModel{}
	}

	var largest uint64
	keys := make([]uint64, len(rows))
	for i, r := range rows {
		keys[i] = r.Key.AsInt()
		if y := yToInt(r.Y); y > largest {
			largest = y
		}
	}

	bits := numeric.NumBits(largest)
	commonPrefix := numeric.CommonPrefixSize(keys)
	logrus.WithFields(logrus.Fields{"bits": bits, "common_prefix": commonPrefix}).
		Debug("radix model trained")
	return &RadixModel{commonPrefix: commonPrefix, bits: bits}
}

func (m *RadixModel) InputType() rmi.DataType  { return rmi.Int }
func (m *RadixModel) OutputType() rmi.DataType { return rmi.Int }

func (m *RadixModel) PredictFloat(inp rmi.ModelInput) float64 {
	return float64(m.PredictInt(inp))
}
func (m *RadixModel) PredictInt(inp rmi.ModelInput) uint64 {
	if m.bits == 0 {
		return 0
	}
	return (inp.AsInt() << m.commonPrefix) >> (64 - m.bits)
}

func (m *RadixModel) Params() []rmi.ModelParam {
	return []rmi.ModelParam{rmi.IntParam(uint64(m.commonPrefix)), rmi.IntParam(uint64(m.bits))}
}

func (m *RadixModel) Code() string {
	return `
inline uint64_t radix(uint64_t prefix_length, uint64_t bits, uint64_t inp) {
    return (inp << prefix_length) >> (64 - bits);
}`
}

func (m *RadixModel) FunctionName() string    { return "radix" }
func (m *RadixModel) NeedsBoundsCheck() bool  { return false }
func (m *RadixModel) Restriction() rmi.Restriction { return rmi.MustBeTop }

// BalancedRadixModel is RadixModel with a bit width chosen so that bucket
// loads are balanced rather than fixed by the largest target position: it
// searches downward from the largest-value bit width for the widest prefix
// whose bucket occupancy stays within 4x of the mean, trading a coarser
// split for more even leaves.
type BalancedRadixModel struct {
	rmi.ModelBase
	commonPrefix, bits uint8
}

// NewBalancedRadixModel builds a BalancedRadixModel over w.
func NewBalancedRadixModel(w *rmi.Wrapper) *BalancedRadixModel {
	rows := w.Iter()
	if len(rows) == 0 {
		return &BalancedRadixModel{}
	}

	keys := make([]uint64, len(rows))
	var largest uint64
	for i, r := range rows {
		keys[i] = r.Key.AsInt()
		if y := yToInt(r.Y); y > largest {
			largest = y
		}
	}

	commonPrefix := numeric.CommonPrefixSize(keys)
	maxBits := numeric.NumBits(largest)
	bits := balancedBitWidth(keys, commonPrefix, maxBits)
	return &BalancedRadixModel{commonPrefix: commonPrefix, bits: bits}
}

// balancedBitWidth starts at maxBits and walks down while the resulting
// radix index has any bucket more than 4x the mean occupancy, settling for
// the first width that balances acceptably, or maxBits when none does.
func balancedBitWidth(keys []uint64, commonPrefix, maxBits uint8) uint8 {
	shifted := make([]uint64, len(keys))
	for i, k := range keys {
		shifted[i] = k << commonPrefix
	}

	for b := maxBits; b > 0; b-- {
		idx := numeric.RadixIndex(shifted, b)
		mean := float64(len(keys)) / float64(uint64(1)<<b)
		balanced := true
		for i := 0; i < len(idx)-1; i++ {
			if float64(idx[i+1]-idx[i]) > 4*mean+1 {
				balanced = false
				break
			}
		}
		if balanced {
			return b
		}
	}
	return maxBits
}

func (m *BalancedRadixModel) InputType() rmi.DataType  { return rmi.Int }
func (m *BalancedRadixModel) OutputType() rmi.DataType { return rmi.Int }

func (m *BalancedRadixModel) PredictFloat(inp rmi.ModelInput) float64 {
	return float64(m.PredictInt(inp))
}
func (m *BalancedRadixModel) PredictInt(inp rmi.ModelInput) uint64 {
	if m.bits == 0 {
		return 0
	}
	return (inp.AsInt() << m.commonPrefix) >> (64 - m.bits)
}

func (m *BalancedRadixModel) Params() []rmi.ModelParam {
	return []rmi.ModelParam{rmi.IntParam(uint64(m.commonPrefix)), rmi.IntParam(uint64(m.bits))}
}

func (m *BalancedRadixModel) Code() string {
	return `
inline uint64_t radix(uint64_t prefix_length, uint64_t bits, uint64_t inp) {
    return (inp << prefix_length) >> (64 - bits);
}`
}

func (m *BalancedRadixModel) FunctionName() string    { return "radix" }
func (m *BalancedRadixModel) NeedsBoundsCheck() bool  { return false }
func (m *BalancedRadixModel) Restriction() rmi.Restriction { return rmi.MustBeTop }

// RadixTable builds a radix index (spec §4.A) over the leaf's unique keys
// at a fixed bit width b, predicting by bucket lookup followed by linear
// interpolation within the bucket's key range.
type RadixTable struct {
	rmi.ModelBase
	bits  uint8
	index []uint64
	keys  []uint64
}

// NewRadixTable builds a RadixTable with bits bits over w.
func NewRadixTable(bits uint8) func(*rmi.Wrapper) *RadixTable {
	return func(w *rmi.Wrapper) *RadixTable {
		rows := w.IterUnique()
		keys := make([]uint64, len(rows))
		for i, r := range rows {
			keys[i] = r.Key.AsInt()
		}
		index := numeric.RadixIndex(keys, bits)
		return &RadixTable{bits: bits, index: index, keys: keys}
	}
}

func (m *RadixTable) InputType() rmi.DataType  { return rmi.Int }
func (m *RadixTable) OutputType() rmi.DataType { return rmi.Float }

func (m *RadixTable) PredictFloat(inp rmi.ModelInput) float64 {
	if len(m.keys) == 0 {
		return 0
	}
	val := inp.AsInt()
	shift := uint8(64)
	if m.bits > 0 {
		shift = 64 - m.bits
	}
	radix := val >> shift
	if m.bits == 0 {
		radix = 0
	}

	lo := int(m.index[radix])
	hi := int(m.index[radix+1])
	if lo >= len(m.keys) {
		return float64(len(m.keys))
	}
	if hi <= lo+1 {
		return float64(lo)
	}

	loKey, hiKey := m.keys[lo], m.keys[hi-1]
	if hiKey == loKey {
		return float64(lo)
	}
	frac := float64(val-loKey) / float64(hiKey-loKey)
	return float64(lo) + frac*float64(hi-1-lo)
}
func (m *RadixTable) PredictInt(inp rmi.ModelInput) uint64 {
	return rmi.FloorClamp(m.PredictFloat(inp))
}

func (m *RadixTable) Params() []rmi.ModelParam {
	return []rmi.ModelParam{
		rmi.IntParam(uint64(m.bits)),
		rmi.IntParam(uint64(len(m.keys))),
		rmi.IntArrayParam(m.index),
		rmi.IntArrayParam(m.keys),
	}
}

func (m *RadixTable) Code() string {
	return `
inline double radix_table(uint64_t bits, uint64_t size, const uint64_t index[],
                           const uint64_t keys[], uint64_t inp) {
    uint64_t radix = bits == 0 ? 0 : (inp >> (64 - bits));
    uint64_t lo = index[radix];
    uint64_t hi = index[radix + 1];
    if (lo >= size) return (double)size;
    if (hi <= lo + 1) return (double)lo;
    uint64_t lo_key = keys[lo];
    uint64_t hi_key = keys[hi - 1];
    if (hi_key == lo_key) return (double)lo;
    double frac = (double)(inp - lo_key) / (double)(hi_key - lo_key);
    return (double)lo + frac * (double)(hi - 1 - lo);
}`
}

func (m *RadixTable) FunctionName() string { return "radix_table" }

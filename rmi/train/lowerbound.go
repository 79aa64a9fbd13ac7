// Package train implements the RMI trainers (spec §4.E, §4.F, §4.G):
// lower-bound correction, the two-layer trainer, and the multi-layer
// fallback trainer.
package train

import (
	"math"

	"github.com/rmi-trainer/rmi/rmi"
)

// firstLast pairs a leaf's boundary row index with the key observed there.
type firstLast struct {
	pos uint64
	key uint64
	set bool
}

// LowerBoundCorrection records, for each leaf, the first and last
// (position, key) routed to it, the nearest non-empty neighbor leaf's
// boundary key on each side (for leaves that received no data), and the
// longest run of identical keys routed to any single leaf. Neither the
// trainers nor rmi/codegen consume it; it is exercised by its own tests
// only. Grounded on
// train/lower_bound_correction.rs.
type LowerBoundCorrection struct {
	first      []firstLast
	last       []firstLast
	next       []firstLast
	prev       []firstLast
	runLengths []uint64
}

// NewLowerBoundCorrection scans w once, routing each row through predFunc
// (typically the trained top model's PredictInt clamped to
// [0, numLeafModels)) and recording per-leaf boundary and run-length
// statistics.
func NewLowerBoundCorrection(predFunc func(rmi.ModelInput) uint64, numLeafModels uint64, w *rmi.Wrapper) *LowerBoundCorrection {
	firstKey := make([]firstLast, numLeafModels)
	lastKey := make([]firstLast, numLeafModels)
	maxRun := make([]uint64, numLeafModels)

	rows := w.Iter()
	var lastTarget uint64
	var currentRunLength uint64
	var currentRunKey uint64
	if len(rows) > 0 {
		currentRunKey = rows[0].Key.AsInt()
	}

	for i, row := range rows {
		x := row.Key.AsInt()
		leafIdx := predFunc(row.Key)
		target := leafIdx
		if target > numLeafModels-1 {
			target = numLeafModels - 1
		}

		if i > 0 && target == lastTarget && x == currentRunKey {
			currentRunLength++
		} else if i == 0 {
			currentRunLength = 1
			currentRunKey = x
			lastTarget = target
		} else {
			if currentRunLength > maxRun[lastTarget] {
				maxRun[lastTarget] = currentRunLength
			}
			currentRunLength = 1
			currentRunKey = x
			lastTarget = target
		}

		if !firstKey[target].set {
			firstKey[target] = firstLast{pos: uint64(i), key: x, set: true}
		}
		lastKey[target] = firstLast{pos: uint64(i), key: x, set: true}
	}
	if len(rows) > 0 && currentRunLength > maxRun[lastTarget] {
		maxRun[lastTarget] = currentRunLength
	}

	return &LowerBoundCorrection{
		first:      firstKey,
		last:       lastKey,
		next:       computeNextForLeaf(numLeafModels, uint64(len(rows)), firstKey),
		prev:       computePrevForLeaf(numLeafModels, lastKey),
		runLengths: maxRun,
	}
}

func findFirstBelow(data []firstLast, idx int) (int, firstLast, bool) {
	if idx == 0 {
		return 0, firstLast{}, false
	}
	for i := idx - 1; ; i-- {
		if data[i].set {
			return i, data[i], true
		}
		if i == 0 {
			return 0, firstLast{}, false
		}
	}
}

func findFirstAbove(data []firstLast, idx int) (int, firstLast, bool) {
	if idx == len(data)-1 {
		return 0, firstLast{}, false
	}
	for i := idx + 1; ; i++ {
		if data[i].set {
			return i, data[i], true
		}
		if i == len(data)-1 {
			return 0, firstLast{}, false
		}
	}
}

// computeNextForLeaf builds next[i]: the (index, key) of the first key in
// the leaf model after leaf i, or (numKeys, math.MaxUint64) past the end.
func computeNextForLeaf(numLeafModels, numKeys uint64, firstKeyForLeaf []firstLast) []firstLast {
	next := make([]firstLast, numLeafModels)
	idx := 0
	for idx < int(numLeafModels) {
		nextLeafIdx, val, ok := findFirstAbove(firstKeyForLeaf, idx)
		if !ok {
			for i := idx; i < int(numLeafModels); i++ {
				next[i] = firstLast{pos: numKeys, key: math.MaxUint64, set: true}
			}
			break
		}
		for i := idx; i < nextLeafIdx; i++ {
			next[i] = val
		}
		idx = nextLeafIdx
	}
	return next
}

// computePrevForLeaf builds prev[i]: the (index, key) of the last key in
// the leaf model before leaf i, zero-valued if none.
func computePrevForLeaf(numLeafModels uint64, lastKeyForLeaf []firstLast) []firstLast {
	prev := make([]firstLast, numLeafModels)
	idx := int(numLeafModels) - 1
	for idx > 0 {
		prevLeafIdx, val, ok := findFirstBelow(lastKeyForLeaf, idx)
		if !ok {
			break
		}
		for i := prevLeafIdx + 1; i <= idx; i++ {
			prev[i] = val
		}
		idx = prevLeafIdx
	}
	return prev
}

// FirstKey returns the key of the first row routed to leafIdx, if any.
func (c *LowerBoundCorrection) FirstKey(leafIdx int) (uint64, bool) {
	return c.first[leafIdx].key, c.first[leafIdx].set
}

// LastKey returns the key of the last row routed to leafIdx, if any.
func (c *LowerBoundCorrection) LastKey(leafIdx int) (uint64, bool) {
	return c.last[leafIdx].key, c.last[leafIdx].set
}

// NextIndex returns the row index of the first key in a leaf after
// leafIdx, or the dataset length if none.
func (c *LowerBoundCorrection) NextIndex(leafIdx int) uint64 { return c.next[leafIdx].pos }

// PrevKey returns the key of the last row in a leaf before leafIdx, or 0
// if none.
func (c *LowerBoundCorrection) PrevKey(leafIdx int) uint64 { return c.prev[leafIdx].key }

// LongestRun returns the longest run of identical keys routed to leafIdx.
func (c *LowerBoundCorrection) LongestRun(leafIdx int) uint64 { return c.runLengths[leafIdx] }

package numeric

import "github.com/sirupsen/logrus"

// RadixIndex builds a radix index over sorted u64 keys (§4.A): an array of
// length 2^numBits+1 where entry r holds the smallest index whose key's
// top numBits bits are >= r. Empty buckets inherit their right neighbor's
// start, so every entry is non-decreasing.
//
// Invariant maintained by construction: for every key k with radix r,
// radixIndex[r] <= upperBound(k)-1 < radixIndex[r+1].
func RadixIndex(points []uint64, numBits uint8) []uint64 {
	if cps := CommonPrefixSize(points); cps != 0 {
		logrus.WithField("common_prefix_bits", cps).
			Warn("radix index assumes a common prefix size of 0")
	}

	size := uint64(1) << numBits
	index := make([]uint64, size+1)

	if numBits == 0 {
		index[0] = 0
		index[1] = uint64(len(points))
		return index
	}

	shift := 64 - numBits
	var lastRadix uint64
	for idx, p := range points {
		radix := p >> shift
		if radix == lastRadix {
			continue
		}
		for i := lastRadix + 1; i < radix; i++ {
			index[i] = uint64(idx)
		}
		index[radix] = uint64(idx)
		lastRadix = radix
	}

	for i := lastRadix + 1; i < size; i++ {
		index[i] = uint64(len(points))
	}
	index[size] = uint64(len(points))

	return index
}

// UpperBound returns the index of the first element of points strictly
// greater than key (i.e. one past the last occurrence of key, or the
// insertion point if key is absent). points must be sorted non-decreasing.
func UpperBound(points []uint64, key uint64) int {
	lo, hi := 0, len(points)
	for lo < hi {
		mid := (lo + hi) / 2
		if points[mid] <= key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// LowerBound returns the index of the first element of points greater than
// or equal to key. points must be sorted non-decreasing.
func LowerBound(points []uint64, key uint64) int {
	lo, hi := 0, len(points)
	for lo < hi {
		mid := (lo + hi) / 2
		if points[mid] < key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

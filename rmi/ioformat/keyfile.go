// Package ioformat implements the RMI trainer's external collaborators
// (spec §6): the little-endian key-file reader, JSON param-grid/report
// I/O, and the supplemented --dump-ll-errors leaf-error dump. Grounded on
// the teacher's sim/latency/config.go (os.ReadFile + fmt.Errorf wrapping
// idiom) and cmd/default_config.go (strict-YAML decode idiom).
package ioformat

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/rmi-trainer/rmi/rmi"
)

// DetectKeyType infers a key file's domain from a substring in its path
// ("uint64", "uint32", "f64"), per spec §6; callers may override this by
// passing an explicit KeyType to LoadKeyFile instead of DetectKeyType's
// result.
func DetectKeyType(path string) (rmi.KeyType, error) {
	switch {
	case strings.Contains(path, "uint64"):
		return rmi.KeyTypeU64, nil
	case strings.Contains(path, "uint32"):
		return rmi.KeyTypeU32, nil
	case strings.Contains(path, "f64"):
		return rmi.KeyTypeF64, nil
	default:
		return 0, fmt.Errorf("ioformat: cannot infer key type from path %q (expected \"uint64\", \"uint32\", or \"f64\" in the name)", path)
	}
}

// LoadKeyFile reads a little-endian binary key file: an 8-byte unsigned
// row count N, followed by N keys of 4 bytes (u32), 8 bytes (u64), or 8
// bytes (f64). Keys must already be sorted non-decreasing; positions are
// assigned as the 0-based lower-bound index of each key's first
// occurrence.
func LoadKeyFile(path string, kind rmi.KeyType) (*rmi.Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ioformat: read key file %q: %w", path, err)
	}
	if len(data) < 8 {
		return nil, fmt.Errorf("ioformat: key file %q shorter than the 8-byte length header", path)
	}

	n := binary.LittleEndian.Uint64(data[:8])
	body := data[8:]

	switch kind {
	case rmi.KeyTypeU32:
		return loadU32(path, body, n)
	case rmi.KeyTypeU64:
		return loadU64(path, body, n)
	case rmi.KeyTypeF64:
		return loadF64(path, body, n)
	default:
		return nil, fmt.Errorf("ioformat: unknown key type %v", kind)
	}
}

func loadU32(path string, body []byte, n uint64) (*rmi.Dataset, error) {
	if uint64(len(body)) < n*4 {
		return nil, fmt.Errorf("ioformat: key file %q declares %d u32 keys but has only %d bytes of body", path, n, len(body))
	}
	keys := make([]uint64, n)
	for i := uint64(0); i < n; i++ {
		keys[i] = uint64(binary.LittleEndian.Uint32(body[i*4:]))
	}
	return rmi.Rows(rmi.KeyTypeU32, keys, lowerBoundPositions(keys)), nil
}

func loadU64(path string, body []byte, n uint64) (*rmi.Dataset, error) {
	if uint64(len(body)) < n*8 {
		return nil, fmt.Errorf("ioformat: key file %q declares %d u64 keys but has only %d bytes of body", path, n, len(body))
	}
	keys := make([]uint64, n)
	for i := uint64(0); i < n; i++ {
		keys[i] = binary.LittleEndian.Uint64(body[i*8:])
	}
	return rmi.Rows(rmi.KeyTypeU64, keys, lowerBoundPositions(keys)), nil
}

func loadF64(path string, body []byte, n uint64) (*rmi.Dataset, error) {
	if uint64(len(body)) < n*8 {
		return nil, fmt.Errorf("ioformat: key file %q declares %d f64 keys but has only %d bytes of body", path, n, len(body))
	}
	keys := make([]float64, n)
	for i := uint64(0); i < n; i++ {
		bits := binary.LittleEndian.Uint64(body[i*8:])
		keys[i] = math.Float64frombits(bits)
	}
	return rmi.FloatRows(keys, lowerBoundPositionsF(keys)), nil
}

// lowerBoundPositions assigns each key the index of its first occurrence,
// per the Dataset contract's duplicate-key semantics.
func lowerBoundPositions(keys []uint64) []uint64 {
	pos := make([]uint64, len(keys))
	firstOf := 0
	for i := range keys {
		if i > 0 && keys[i] != keys[i-1] {
			firstOf = i
		}
		pos[i] = uint64(firstOf)
	}
	return pos
}

func lowerBoundPositionsF(keys []float64) []uint64 {
	pos := make([]uint64, len(keys))
	firstOf := 0
	for i := range keys {
		if i > 0 && keys[i] != keys[i-1] {
			firstOf = i
		}
		pos[i] = uint64(firstOf)
	}
	return pos
}

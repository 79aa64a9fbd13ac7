package ioformat

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmi-trainer/rmi/rmi"
)

func writeU64KeyFile(t *testing.T, dir string, keys []uint64) string {
	t.Helper()
	path := filepath.Join(dir, "keys.uint64")
	buf := make([]byte, 8+8*len(keys))
	binary.LittleEndian.PutUint64(buf[:8], uint64(len(keys)))
	for i, k := range keys {
		binary.LittleEndian.PutUint64(buf[8+8*i:], k)
	}
	require.NoError(t, os.WriteFile(path, buf, 0o644))
	return path
}

func TestDetectKeyType_MatchesPathSubstring(t *testing.T) {
	kind, err := DetectKeyType("/data/books_200M_uint64")
	require.NoError(t, err)
	assert.Equal(t, rmi.KeyTypeU64, kind)

	kind, err = DetectKeyType("/data/osm_cellids_uint32")
	require.NoError(t, err)
	assert.Equal(t, rmi.KeyTypeU32, kind)

	_, err = DetectKeyType("/data/mystery")
	assert.Error(t, err)
}

func TestLoadKeyFile_U64_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := writeU64KeyFile(t, dir, []uint64{10, 20, 20, 30})

	d, err := LoadKeyFile(path, rmi.KeyTypeU64)
	require.NoError(t, err)
	assert.Equal(t, 4, d.Len())

	key, pos := d.Get(2) // duplicate "20" at index 2
	assert.Equal(t, uint64(20), key.AsInt())
	assert.Equal(t, uint64(1), pos) // lower-bound: first occurrence index
}

func TestLoadKeyFile_RejectsShortHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "short")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0o644))

	_, err := LoadKeyFile(path, rmi.KeyTypeU64)
	assert.Error(t, err)
}

func TestLoadKeyFile_RejectsTruncatedBody(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "truncated")
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, 5) // claims 5 keys but body is empty
	require.NoError(t, os.WriteFile(path, buf, 0o644))

	_, err := LoadKeyFile(path, rmi.KeyTypeU64)
	assert.Error(t, err)
}

func TestLowerBoundPositions_AssignsFirstOccurrenceIndex(t *testing.T) {
	got := lowerBoundPositions([]uint64{1, 1, 2, 2, 2, 3})
	assert.Equal(t, []uint64{0, 0, 2, 2, 2, 5}, got)
}

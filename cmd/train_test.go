package cmd

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmi-trainer/rmi/rmi"
)

func TestResolveKeyType_OverrideWins(t *testing.T) {
	kt, err := resolveKeyType("/data/whatever_uint32", "uint64")
	require.NoError(t, err)
	assert.Equal(t, rmi.KeyTypeU64, kt)
}

func TestResolveKeyType_FallsBackToDetection(t *testing.T) {
	kt, err := resolveKeyType("/data/books_200M_uint64", "")
	require.NoError(t, err)
	assert.Equal(t, rmi.KeyTypeU64, kt)
}

func TestResolveKeyType_RejectsUnknownOverride(t *testing.T) {
	_, err := resolveKeyType("/data/books_200M_uint64", "bogus")
	assert.Error(t, err)
}

func TestRunTrain_RejectsParamGridWithPositionalArgs(t *testing.T) {
	dir := t.TempDir()
	keyPath := writeU64KeysForTest(t, dir, []uint64{1, 2, 3})

	trainParamGridPath = filepath.Join(dir, "grid.json")
	defer func() { trainParamGridPath = "" }()

	err := runTrain(trainCmd, []string{keyPath, "ns", "linear,linear", "64"})
	assert.ErrorContains(t, err, "mutually exclusive")
}

func TestRunTrain_RejectsEmptyKeyFile(t *testing.T) {
	dir := t.TempDir()
	keyPath := writeU64KeysForTest(t, dir, nil)

	err := runTrain(trainCmd, []string{keyPath, "ns", "linear,linear", "64"})
	assert.ErrorContains(t, err, "no keys")
}

func TestRunTrain_RejectsWrongModelsArgShape(t *testing.T) {
	dir := t.TempDir()
	keyPath := writeU64KeysForTest(t, dir, []uint64{1, 2, 3})

	err := runTrain(trainCmd, []string{keyPath, "ns", "linear,linear,linear", "64"})
	assert.ErrorContains(t, err, "top,leaf")
}

func writeU64KeysForTest(t *testing.T, dir string, keys []uint64) string {
	t.Helper()
	path := filepath.Join(dir, "keys_uint64")
	buf := make([]byte, 8+8*len(keys))
	binary.LittleEndian.PutUint64(buf[:8], uint64(len(keys)))
	for i, k := range keys {
		binary.LittleEndian.PutUint64(buf[8+8*i:], k)
	}
	require.NoError(t, os.WriteFile(path, buf, 0o644))
	return path
}

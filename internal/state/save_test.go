package state

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testSave struct {
	Version   int                          `json:"version"`
	Instances map[string]map[string]string `json:"instances"`
}

func TestWriteSave_IsZlibJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), SaveFileName)
	in := testSave{Version: 1, Instances: map[string]map[string]string{"ungrouped": {"latest": "1.20.4"}}}

	require.NoError(t, WriteSave(path, in))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	zr, err := zlib.NewReader(bytes.NewReader(raw))
	require.NoError(t, err)
	decoded, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":1,"instances":{"ungrouped":{"latest":"1.20.4"}}}`, string(decoded))

	var out testSave
	require.NoError(t, LoadSave(path, &out))
	assert.Equal(t, in, out)
}

func TestLoadSave_Missing(t *testing.T) {
	var out testSave
	err := LoadSave(filepath.Join(t.TempDir(), SaveFileName), &out)
	assert.ErrorIs(t, err, ErrNoSave)
}

func TestLoadSave_FallsBackToBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), SaveFileName)

	require.NoError(t, WriteSave(path, testSave{Version: 1}))
	require.NoError(t, WriteSave(path, testSave{Version: 2}))

	// Damage the current save; the .bak holds version 1
	require.NoError(t, os.WriteFile(path, []byte("not zlib"), 0644))

	var out testSave
	require.NoError(t, LoadSave(path, &out))
	assert.Equal(t, 1, out.Version)
}

func TestLoadSave_CorruptWithoutBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), SaveFileName)
	require.NoError(t, os.WriteFile(path, []byte("not zlib"), 0644))

	var out testSave
	err := LoadSave(path, &out)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSave)
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeScriptHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "query.jq")
	require.NoError(t, os.WriteFile(path, []byte(`.foo | length`), 0o644))

	hash, err := ComputeScriptHash(path)
	require.NoError(t, err)
	assert.Len(t, hash, 64)

	// Deterministic for the same content.
	again, err := ComputeScriptHash(path)
	require.NoError(t, err)
	assert.Equal(t, hash, again)

	// Different content, different hash.
	require.NoError(t, os.WriteFile(path, []byte(`.bar`), 0o644))
	changed, err := ComputeScriptHash(path)
	require.NoError(t, err)
	assert.NotEqual(t, hash, changed)
}

func TestVerifyScriptHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "query.jq")
	require.NoError(t, os.WriteFile(path, []byte(`.`), 0o644))

	hash, err := ComputeScriptHash(path)
	require.NoError(t, err)

	assert.NoError(t, VerifyScriptHash(path, hash))

	err = VerifyScriptHash(path, "0000000000000000000000000000000000000000000000000000000000000000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hash mismatch")
}

func TestComputeScriptHashMissingFile(t *testing.T) {
	_, err := ComputeScriptHash(filepath.Join(t.TempDir(), "missing.jq"))
	require.Error(t, err)
}

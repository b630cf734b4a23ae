package store_test

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hussein-Mazeh/KeyRecovery/store"
)

func TestSaveAndLoadSecret(t *testing.T) {
	p := store.Paths{Dir: filepath.Join(t.TempDir(), "backups")}

	path, err := store.SaveSecret(p, "GADDR", "  AgEBAAAAAw==\n")
	require.NoError(t, err)
	assert.Equal(t, p.SecretPath("GADDR"), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	if runtime.GOOS != "windows" {
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	text, err := store.LoadSecretFile(path)
	require.NoError(t, err)
	assert.Equal(t, "AgEBAAAAAw==", text)

	// Overwrite leaves no temp files behind.
	_, err = store.SaveSecret(p, "GADDR", "AgEBAAAABA==")
	require.NoError(t, err)
	entries, err := os.ReadDir(p.Dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSaveSecretRejectsBadAddress(t *testing.T) {
	p := store.Paths{Dir: t.TempDir()}
	for _, addr := range []string{"", "  ", "../evil", `a\b`} {
		_, err := store.SaveSecret(p, addr, "x")
		assert.Error(t, err, addr)
	}
	_, err := store.SaveSecret(store.Paths{}, "GADDR", "x")
	assert.Error(t, err)
}

func TestLoadSecretFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := store.LoadSecretFile(filepath.Join(dir, "missing.backup"))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	big := filepath.Join(dir, "big.backup")
	require.NoError(t, os.WriteFile(big, []byte(strings.Repeat("A", store.MaxSecretFileBytes+1)), 0o600))
	_, err = store.LoadSecretFile(big)
	assert.ErrorIs(t, err, store.ErrTooLarge)
}

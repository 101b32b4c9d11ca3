package prefs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_LoadMissingFile(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "prefs.yaml"))

	flags, err := store.Load("user_1")
	require.NoError(t, err)
	assert.False(t, flags.OfflineMode)
	assert.Nil(t, flags.LastSync)
}

func TestFileStore_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "prefs.yaml")
	store := NewFileStore(path)

	at := time.Date(2025, 3, 4, 10, 30, 0, 0, time.FixedZone("CAT", 2*60*60))
	require.NoError(t, store.Save("user_1", Flags{OfflineMode: true, LastSync: &at}))
	require.NoError(t, store.Save("user_2", Flags{OfflineMode: false}))

	// a fresh store reads what the first one wrote
	flags, err := NewFileStore(path).Load("user_1")
	require.NoError(t, err)
	assert.True(t, flags.OfflineMode)
	require.NotNil(t, flags.LastSync)
	assert.True(t, at.Equal(*flags.LastSync))
	assert.Equal(t, time.UTC, flags.LastSync.Location())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "2025-03-04T08:30:00Z")
}

func TestFileStore_ClearIsPerIdentity(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "prefs.yaml"))

	require.NoError(t, store.Save("user_1", Flags{OfflineMode: true}))
	require.NoError(t, store.Save("user_2", Flags{OfflineMode: true}))
	require.NoError(t, store.Clear("user_1"))
	require.NoError(t, store.Clear("user_unknown"))

	flags, err := store.Load("user_1")
	require.NoError(t, err)
	assert.False(t, flags.OfflineMode)

	flags, err = store.Load("user_2")
	require.NoError(t, err)
	assert.True(t, flags.OfflineMode)
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("identities: [not, a, map"), 0600))

	_, err := NewFileStore(path).Load("user_1")
	assert.Error(t, err)
}

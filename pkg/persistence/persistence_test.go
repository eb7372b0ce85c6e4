package persistence

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string         `json:"name"`
	Count map[string]int `json:"count"`
}

func exerciseStore(t *testing.T, svc Service) {
	t.Helper()
	store := svc.NewStore("snapshot", "master/01", "orders")

	var out sample
	require.True(t, errors.Is(store.Load(&out), ErrNotExists))

	in := sample{Name: "x", Count: map[string]int{"a": 1}}
	require.NoError(t, store.Save(in))
	require.NoError(t, store.Load(&out))
	assert.Equal(t, in, out)

	require.NoError(t, store.Remove())
	require.NoError(t, store.Remove())
	require.True(t, errors.Is(store.Load(&out), ErrNotExists))
}

func TestJSONFileStore(t *testing.T) {
	dir := t.TempDir()
	exerciseStore(t, NewJSONFileService(dir))
}

func TestJSONFileStoreSanitizesKey(t *testing.T) {
	dir := t.TempDir()
	store := NewJSONFileService(dir).NewStore("snapshot", "../escape", "orders")
	require.NoError(t, store.Save(sample{Name: "y"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "snapshot_.._escape_orders.json", entries[0].Name())
	_, err = os.Stat(filepath.Join(dir, entries[0].Name()+".tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestEmptyFileIsNotExists(t *testing.T) {
	dir := t.TempDir()
	store := NewJSONFileService(dir).NewStore("a", "b", "c")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_b_c.json"), nil, 0o644))
	var out sample
	require.True(t, errors.Is(store.Load(&out), ErrNotExists))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryService())
}

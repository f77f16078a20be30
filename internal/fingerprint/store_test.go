package fingerprint

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStore_PutThenGetRoundTrips(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)

	rec := &Record{
		TaskHash:    strings.Repeat("ab", digestSize),
		CompletedAt: time.UnixMilli(1_700_000_000_000).UTC(),
	}

	require.NoError(t, store.Put(":lib:compile", rec))

	got, err := store.Get(":lib:compile")
	require.NoError(t, err)
	require.Equal(t, rec, got)
}

func TestStore_GetMissingReturnsNilNil(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)

	got, err := store.Get(":lib:never-ran")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestStore_GetCorruptRecordDemotesToNilNil(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)

	path, err := store.recordPath(":lib:compile")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("not a valid record"), 0o644))

	got, err := store.Get(":lib:compile")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestStore_NestedProjectPathsMapToDirectories(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)

	rec := &Record{TaskHash: strings.Repeat("cd", digestSize), CompletedAt: time.UnixMilli(0).UTC()}
	require.NoError(t, store.Put(":a:b:compile", rec))

	path, err := store.recordPath(":a:b:compile")
	require.NoError(t, err)
	require.FileExists(t, path)
	require.Contains(t, path, filepath.Join("a", "b"))
}

func TestStore_ConcurrentPutIsSafe(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := &Record{TaskHash: strings.Repeat("ab", digestSize), CompletedAt: time.UnixMilli(0).UTC()}
			_ = store.Put(":lib:compile", rec)
		}(i)
	}
	wg.Wait()

	got, err := store.Get(":lib:compile")
	require.NoError(t, err)
	require.NotNil(t, got)
}

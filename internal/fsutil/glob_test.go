package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, base string, files ...string) {
	t.Helper()
	for _, f := range files {
		full := filepath.Join(base, f)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("x"), 0o644))
	}
}

func TestGlob_DoubleStarSpansSegments(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, "src/a.go", "src/pkg/b.go", "src/pkg/deep/c.go", "README.md")

	got, err := Glob([]string{"src/**/*.go"}, nil, dir, GlobOptions{IgnoreFalseExcludes: true})
	require.NoError(t, err)
	require.Equal(t, []string{"src/a.go", "src/pkg/b.go", "src/pkg/deep/c.go"}, got)
}

func TestGlob_ExcludesAppliedAfterIncludes(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, "src/a.go", "src/a_test.go")

	got, err := Glob([]string{"src/*.go"}, []string{"src/*_test.go"}, dir, GlobOptions{IgnoreFalseExcludes: true})
	require.NoError(t, err)
	require.Equal(t, []string{"src/a.go"}, got)
}

func TestGlob_StrictModeErrorsOnZeroMatches(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, "a.go")

	_, err := Glob([]string{"nothing/*.go"}, nil, dir, GlobOptions{IgnoreFalseExcludes: false})
	require.Error(t, err)
}

func TestGlob_Deterministic(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, "b.go", "a.go", "c.go")

	first, err := Glob([]string{"*.go"}, nil, dir, GlobOptions{})
	require.NoError(t, err)
	second, err := Glob([]string{"*.go"}, nil, dir, GlobOptions{})
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, []string{"a.go", "b.go", "c.go"}, first)
}

func TestGlob_MissingBaseIsError(t *testing.T) {
	_, err := Glob([]string{"*"}, nil, filepath.Join(t.TempDir(), "missing"), GlobOptions{})
	require.Error(t, err)
}

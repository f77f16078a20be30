package fsutil

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize_Idempotent(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "a", "b", "..", "b")

	once, err := Normalize(sub)
	require.NoError(t, err)

	twice, err := Normalize(once)
	require.NoError(t, err)

	require.Equal(t, once, twice)
}

func TestNormalize_NoTrailingSeparator(t *testing.T) {
	dir := t.TempDir()

	got, err := Normalize(dir + string(filepath.Separator))
	require.NoError(t, err)
	require.NotEqual(t, byte('/'), got[len(got)-1])
}

func TestNormalize_CaseFoldingOnCaseInsensitiveFilesystems(t *testing.T) {
	if runtime.GOOS != "windows" && runtime.GOOS != "darwin" {
		t.Skip("case-folding only applies on case-insensitive filesystems")
	}

	lower, err := Normalize("/tmp/Example")
	require.NoError(t, err)

	upper, err := Normalize("/tmp/EXAMPLE")
	require.NoError(t, err)

	require.Equal(t, lower, upper)
}

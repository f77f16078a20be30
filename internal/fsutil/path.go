// Package fsutil provides path normalization, glob expansion, and content
// hashing for the task graph engine's Path & Fingerprint Utilities layer.
package fsutil

import (
	"path/filepath"
	"runtime"
	"strings"
)

// Normalize canonicalizes path into an absolute, slash-separated form with no
// trailing separator (except for a bare root). On case-insensitive
// filesystems (Windows, default macOS) the result is lower-cased so two
// spellings of the same file compare equal.
func Normalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	abs = filepath.Clean(abs)
	abs = filepath.ToSlash(abs)

	if caseInsensitive() {
		abs = strings.ToLower(abs)
	}

	if len(abs) > 1 {
		abs = strings.TrimSuffix(abs, "/")
	}
	return abs, nil
}

// caseInsensitive reports whether the host filesystem is conventionally
// case-insensitive. This is a best-effort heuristic based on GOOS, matching
// the teacher's platform-branching style (pk/exec_unix.go / exec_other.go)
// rather than probing the actual filesystem.
func caseInsensitive() bool {
	return runtime.GOOS == "windows" || runtime.GOOS == "darwin"
}

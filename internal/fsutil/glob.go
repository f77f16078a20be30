package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// GlobOptions configures Glob's strictness.
type GlobOptions struct {
	// IgnoreFalseExcludes, when true, allows an include pattern to match
	// zero files without erroring. When false, a zero-match pattern is
	// reported as an error. The zero value is false, so GlobOptions{} is
	// strict.
	IgnoreFalseExcludes bool
}

// Glob expands include patterns against base, applies excludes, and returns a
// sorted, deduplicated list of paths relative to base. Patterns use '*', '**'
// (zero or more path segments), '?' and character classes, following the
// teacher's directory-walk approach (pk/filesystem.go's walkDirectories) but
// matching glob segments instead of whole-path regexes (pk/paths_filter.go).
func Glob(patterns, excludes []string, base string, opts GlobOptions) ([]string, error) {
	info, err := os.Stat(base)
	if err != nil {
		return nil, fmt.Errorf("glob: base directory %q: %w", base, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("glob: base %q is not a directory", base)
	}

	var allFiles []string
	err = filepath.WalkDir(base, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		allFiles = append(allFiles, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(allFiles)

	seen := make(map[string]bool)
	var result []string

	for _, pattern := range patterns {
		matchedAny := false
		for _, f := range allFiles {
			if matchGlob(pattern, f) {
				matchedAny = true
				if !seen[f] {
					seen[f] = true
					result = append(result, f)
				}
			}
		}
		if !matchedAny && !opts.IgnoreFalseExcludes {
			return nil, fmt.Errorf("glob: pattern %q matched no files under %q", pattern, base)
		}
	}

	if len(excludes) > 0 {
		filtered := result[:0:0]
		for _, f := range result {
			excluded := false
			for _, ex := range excludes {
				if matchGlob(ex, f) {
					excluded = true
					break
				}
			}
			if !excluded {
				filtered = append(filtered, f)
			}
		}
		result = filtered
	}

	sort.Strings(result)
	return result, nil
}

// matchGlob reports whether name matches pattern, where pattern may contain
// '**' path-spanning segments in addition to filepath.Match's '*', '?' and
// character classes.
func matchGlob(pattern, name string) bool {
	patSegs := strings.Split(pattern, "/")
	nameSegs := strings.Split(name, "/")
	return matchSegments(patSegs, nameSegs)
}

func matchSegments(pat, name []string) bool {
	if len(pat) == 0 {
		return len(name) == 0
	}
	if pat[0] == "**" {
		// '**' matches zero or more segments.
		if matchSegments(pat[1:], name) {
			return true
		}
		if len(name) == 0 {
			return false
		}
		return matchSegments(pat, name[1:])
	}
	if len(name) == 0 {
		return false
	}
	ok, err := filepath.Match(pat[0], name[0])
	if err != nil || !ok {
		return false
	}
	return matchSegments(pat[1:], name[1:])
}

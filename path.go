package grove

import (
	"fmt"

	"github.com/grovebuild/grove/internal/fsutil"
)

// Path is a normalized absolute filesystem path (spec §3 Entity: Path).
// Two Paths compare equal iff they denote the same file, independent of how
// each was spelled (separators, case on case-insensitive filesystems,
// relative vs. absolute).
type Path struct {
	clean string
}

// NewPath normalizes raw into a Path. raw may be relative (resolved against
// the process's working directory) or absolute.
func NewPath(raw string) (Path, error) {
	norm, err := fsutil.Normalize(raw)
	if err != nil {
		return Path{}, fmt.Errorf("grove: normalizing path %q: %w", raw, err)
	}
	return Path{clean: norm}, nil
}

// MustPath is NewPath for callers that already know raw is well-formed, such
// as a project's own directory field computed from its parent.
func MustPath(raw string) Path {
	p, err := NewPath(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the canonical, slash-separated path.
func (p Path) String() string { return p.clean }

// IsZero reports whether p is the unset Path value.
func (p Path) IsZero() bool { return p.clean == "" }

// Join returns the Path for elem resolved relative to p, re-normalized.
func (p Path) Join(elem ...string) (Path, error) {
	parts := append([]string{p.clean}, elem...)
	return NewPath(joinSlash(parts))
}

func joinSlash(parts []string) string {
	out := parts[0]
	for _, part := range parts[1:] {
		if out == "" {
			out = part
			continue
		}
		out = out + "/" + part
	}
	return out
}

// Paths is a list-of-path property value. The type itself keeps whatever
// order and duplicates it was given; Task.Configure sorts and deduplicates
// the derived input/output sets, which is what lets task-hash composition
// treat them as canonical (spec §3's "sorted input path list").
type Paths []Path

func (ps Paths) strings() []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.String()
	}
	return out
}

package syftpath

import (
	"path/filepath"
	"strings"
)

// Abs is a path rooted at a workspace. Internally it keeps the component
// sequence rather than a joined string so that IsSubpath can compare
// component-by-component instead of relying on string prefixing (which
// would wrongly treat "/a/bc" as a subpath of "/a/b").
type Abs struct {
	segments []string
}

// NewAbs builds an Abs path from a plain filesystem path.
func NewAbs(path string) Abs {
	return Abs{segments: splitClean(path)}
}

// String renders the absolute filesystem path using the host separator.
func (a Abs) String() string {
	if len(a.segments) == 0 {
		return string(filepath.Separator)
	}
	return string(filepath.Separator) + filepath.Join(a.segments...)
}

// Join appends components and returns the resulting Abs path.
func (a Abs) Join(parts ...string) Abs {
	segs := append(append([]string{}, a.segments...), parts...)
	return Abs{segments: splitClean(filepath.Join(segs...))}
}

// Dir returns the parent of a, or a itself if it is already the root.
func (a Abs) Dir() Abs {
	if len(a.segments) == 0 {
		return a
	}
	return Abs{segments: a.segments[:len(a.segments)-1]}
}

// Components returns a copy of the path's segment sequence.
func (a Abs) Components() []string {
	return append([]string{}, a.segments...)
}

// IsSubpath reports whether other's component sequence has a as a prefix,
// i.e. other lives inside (or equals) a.
func (a Abs) IsSubpath(other Abs) bool {
	return hasPrefix(a.segments, other.segments)
}

// Rel is a path relative to a workspace's datasites root, e.g.
// "alice@example.com/app_data/app/rpc/ping".
type Rel struct {
	segments []string
}

// NewRel builds a Rel path from a slash-separated string.
func NewRel(path string) Rel {
	return Rel{segments: splitClean(path)}
}

// String renders the relative path using forward slashes, the form used in
// policy-file glob matching regardless of host OS.
func (r Rel) String() string {
	return strings.Join(r.segments, "/")
}

// Components returns a copy of the path's segment sequence.
func (r Rel) Components() []string {
	return append([]string{}, r.segments...)
}

// Join appends components and returns the resulting Rel path.
func (r Rel) Join(parts ...string) Rel {
	segs := append(append([]string{}, r.segments...), parts...)
	return Rel{segments: splitClean(strings.Join(segs, "/"))}
}

// IsSubpath reports whether r's component sequence is a prefix of other's,
// i.e. other lives inside (or equals) r.
func (r Rel) IsSubpath(other Rel) bool {
	return hasPrefix(r.segments, other.segments)
}

// RelativeTo returns other's components with r's prefix stripped, reporting
// false if r is not actually a prefix of other.
func (r Rel) RelativeTo(other Rel) ([]string, bool) {
	if !hasPrefix(r.segments, other.segments) {
		return nil, false
	}
	return append([]string{}, other.segments[len(r.segments):]...), true
}

func hasPrefix(prefix, full []string) bool {
	if len(prefix) > len(full) {
		return false
	}
	for i, p := range prefix {
		if full[i] != p {
			return false
		}
	}
	return true
}

func splitClean(path string) []string {
	path = filepath.ToSlash(path)
	var out []string
	for _, part := range strings.Split(path, "/") {
		if part == "" || part == "." {
			continue
		}
		out = append(out, part)
	}
	return out
}

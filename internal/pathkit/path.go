// Package pathkit normalizes and compares the backend-relative paths used
// throughout driftfs. A normalized path is slash-separated, carries no
// leading separator, and represents the backend root as the empty string.
// Equal locations compare equal regardless of trailing separators.
package pathkit

import (
	"path"
	"strings"

	dferr "github.com/driftfs/driftfs/pkg/errors"
)

// Normalize converts p into canonical form. It rejects paths that attempt
// to traverse above the root.
func Normalize(p string) (string, error) {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.Trim(p, "/")
	if p == "" || p == "." {
		return "", nil
	}
	clean := path.Clean(p)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", dferr.InvalidPath(p)
	}
	if clean == "." {
		return "", nil
	}
	return clean, nil
}

// MustNormalize is Normalize for paths already known to be well formed,
// such as listing results produced by a backend.
func MustNormalize(p string) string {
	n, err := Normalize(p)
	if err != nil {
		return strings.Trim(path.Clean(p), "/")
	}
	return n
}

// Join combines normalized path segments, dropping empty ones.
func Join(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, strings.Trim(p, "/"))
		}
	}
	return strings.Join(kept, "/")
}

// Split breaks a normalized path into its segments. The root path yields
// no segments.
func Split(p string) []string {
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// Base returns the final segment of a normalized path, or the empty
// string for the root.
func Base(p string) string {
	if p == "" {
		return ""
	}
	return path.Base(p)
}

// Parent returns the normalized parent of p, with the root as its own
// parent.
func Parent(p string) string {
	if p == "" {
		return ""
	}
	dir := path.Dir(p)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}

// Depth returns the number of segments in a normalized path.
func Depth(p string) int {
	return len(Split(p))
}

// IsChildOf reports whether child lies directly or transitively under dir.
// The root contains every non-root path.
func IsChildOf(child, dir string) bool {
	if child == dir {
		return false
	}
	if dir == "" {
		return child != ""
	}
	return strings.HasPrefix(child, dir+"/")
}

// Relative strips the dir prefix from child, which must lie under dir.
func Relative(child, dir string) string {
	if dir == "" {
		return child
	}
	return strings.TrimPrefix(child, dir+"/")
}

// Equal reports whether two raw path strings denote the same location
// once normalized, ignoring trailing and leading separators.
func Equal(a, b string) bool {
	return MustNormalize(a) == MustNormalize(b)
}

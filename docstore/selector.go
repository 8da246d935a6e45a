package docstore

import "strings"

// Depth limits subtree selection.
type Depth int

const (
	// DepthAny matches every descendant.
	DepthAny Depth = iota
	// DepthChildren matches direct children only.
	DepthChildren
)

// Selector picks documents by namespace path. Exactly one of Exact,
// Prefix or Paths should be set; a zero Selector matches everything.
type Selector struct {
	// Exact matches the single document at this path.
	Exact string

	// Prefix matches descendants of this path. IncludeRoot adds the
	// document at the path itself.
	Prefix      string
	Depth       Depth
	IncludeRoot bool

	// Paths matches any of an explicit set of paths.
	Paths []string
}

// PathRange returns the half-open lexicographic interval [lo, hi)
// containing exactly the descendants of p. It relies on '0' being the
// successor of '/' in the path alphabet's byte order.
func PathRange(p string) (lo, hi string) {
	base := strings.TrimSuffix(p, "/")
	return base + "/", base + "0"
}

// Matches reports whether a document path satisfies the selector.
func (s Selector) Matches(path string) bool {
	if s.Exact != "" {
		return path == s.Exact
	}
	if len(s.Paths) > 0 {
		for _, p := range s.Paths {
			if path == p {
				return true
			}
		}
		return false
	}
	if s.Prefix != "" {
		if path == s.Prefix {
			return s.IncludeRoot
		}
		lo, hi := PathRange(s.Prefix)
		if path < lo || path >= hi {
			return false
		}
		if s.Depth == DepthChildren {
			return !strings.Contains(path[len(lo):], "/")
		}
		return true
	}
	return true
}

// Package treepath parses, validates and manipulates the slash-delimited
// path strings that index the hierarchical store.
//
// A valid path always begins with "/", segments are drawn from a fixed
// character allow-list, and consecutive slashes collapse. The literal
// segment "*" is a wildcard and is only valid as the final, standalone
// segment of a path.
package treepath

import (
	"fmt"
	"strings"
)

// AllowedChars is the full set of characters permitted in a path string.
const AllowedChars = "abcdefghijklmnopqrstuvwxyz0123456789.-_/"

// Wildcard is the segment matching all direct children of its parent.
const Wildcard = "*"

// Root is the canonical root path. It always exists without being
// materialized as a document.
const Root = "/"

// PathError reports a malformed path or an illegal wildcard placement.
type PathError struct {
	Path   string
	Reason string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("invalid path %q: %s", e.Path, e.Reason)
}

func allowed(c rune) bool {
	return strings.ContainsRune(AllowedChars, c)
}

// Split breaks a path string into its segments.
//
// Consecutive slashes collapse, so "/a//b" splits the same as "/a/b".
// Split fails when the path does not start with "/", contains a character
// outside the allow-list, or places a wildcard anywhere but the final
// standalone segment.
func Split(path string) ([]string, error) {
	if !strings.HasPrefix(path, "/") {
		return nil, &PathError{Path: path, Reason: "must start with a slash"}
	}
	for _, c := range path {
		if c != '*' && !allowed(c) {
			return nil, &PathError{Path: path, Reason: fmt.Sprintf("contains invalid character %q", c)}
		}
	}

	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	if err := checkWildcard(path, segs); err != nil {
		return nil, err
	}
	return segs, nil
}

// Join assembles segments into a path string. It is the inverse of Split:
// Join(Split(p)) == p for every normalized path p.
func Join(segs []string) (string, error) {
	for _, s := range segs {
		if s == "" {
			return "", &PathError{Path: "/" + strings.Join(segs, "/"), Reason: "segments cannot be empty"}
		}
		for _, c := range s {
			if c != '*' && !allowed(c) {
				return "", &PathError{Path: "/" + strings.Join(segs, "/"), Reason: fmt.Sprintf("contains invalid character %q", c)}
			}
		}
	}
	path := "/" + strings.Join(segs, "/")
	if err := checkWildcard(path, segs); err != nil {
		return "", err
	}
	return path, nil
}

func checkWildcard(path string, segs []string) error {
	for i, s := range segs {
		if s == Wildcard {
			if i != len(segs)-1 {
				return &PathError{Path: path, Reason: "wildcard is only allowed as the last segment"}
			}
			continue
		}
		if strings.Contains(s, Wildcard) {
			return &PathError{Path: path, Reason: "wildcard cannot be embedded in a segment"}
		}
	}
	return nil
}

// Normalize validates a path and returns its canonical form, with
// consecutive slashes collapsed and any trailing slash removed.
func Normalize(path string) (string, error) {
	segs, err := Split(path)
	if err != nil {
		return "", err
	}
	return Join(segs)
}

// Resolve computes the path addressed by target relative to current.
//
// Absolute targets (leading "/") ignore current entirely. In relative
// targets "." is a no-op and ".." pops one segment, never going above
// the root.
func Resolve(current, target string) (string, error) {
	var base []string
	if strings.HasPrefix(target, "/") {
		base = nil
	} else {
		var err error
		base, err = Split(current)
		if err != nil {
			return "", err
		}
		target = "/" + target
	}

	// Validate the character set up front so malformed targets fail the
	// same way whether they are absolute or relative.
	for _, c := range target {
		if c != '*' && !allowed(c) {
			return "", &PathError{Path: target, Reason: fmt.Sprintf("contains invalid character %q", c)}
		}
	}

	segs := base
	for _, s := range strings.Split(target, "/") {
		switch s {
		case "", ".":
			continue
		case "..":
			if len(segs) > 0 {
				segs = segs[:len(segs)-1]
			}
		default:
			segs = append(segs, s)
		}
	}
	// Join re-validates the assembled path, which also enforces wildcard
	// placement on the final result.
	out, err := Join(segs)
	if err != nil {
		if pe, ok := err.(*PathError); ok {
			return "", &PathError{Path: target, Reason: pe.Reason}
		}
		return "", err
	}
	return out, nil
}

// IsWildcard reports whether the final segment of path is the wildcard.
func IsWildcard(path string) bool {
	return path == "/"+Wildcard || strings.HasSuffix(path, "/"+Wildcard)
}

// Parent returns the path with its final segment removed. The parent of
// the root is the root.
func Parent(path string) string {
	if path == Root {
		return Root
	}
	i := strings.LastIndex(path, "/")
	if i <= 0 {
		return Root
	}
	return path[:i]
}

// Name returns the final segment of path, or "" for the root.
func Name(path string) string {
	if path == Root {
		return ""
	}
	return path[strings.LastIndex(path, "/")+1:]
}

// Depth returns the number of segments in a normalized path. The root
// has depth zero.
func Depth(path string) int {
	if path == Root {
		return 0
	}
	return strings.Count(path, "/")
}

// Ancestors returns every proper ancestor of a normalized path, nearest
// first, excluding the root. "/a/b/c" yields ["/a/b", "/a"].
func Ancestors(path string) []string {
	var out []string
	for p := Parent(path); p != Root; p = Parent(p) {
		out = append(out, p)
	}
	return out
}

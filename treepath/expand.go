package treepath

import (
	"strconv"
	"strings"
)

// ExpandRanges expands every "$(expr)" placeholder in path, where expr is
// either a numeric range "a-b" (inclusive, ascending) or a comma-separated
// value list "a,b,c" (whitespace tolerated).
//
// Each value substitutes in turn, producing one path per value; multiple
// placeholders expand combinatorially. Duplicate results are suppressed
// while preserving order. A placeholder whose expression cannot be parsed
// leaves the whole path unexpanded: the path is returned verbatim rather
// than failing.
func ExpandRanges(path string) []string {
	expanded := expandFirst(path)
	seen := make(map[string]struct{}, len(expanded))
	out := expanded[:0]
	for _, p := range expanded {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// ExpandAll expands a list of path templates and deduplicates the combined
// result, preserving first-occurrence order across the whole list.
func ExpandAll(paths []string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, p := range paths {
		for _, e := range ExpandRanges(p) {
			if _, dup := seen[e]; dup {
				continue
			}
			seen[e] = struct{}{}
			out = append(out, e)
		}
	}
	return out
}

func expandFirst(path string) []string {
	start := strings.Index(path, "$(")
	if start < 0 {
		return []string{path}
	}
	end := strings.Index(path[start:], ")")
	if end < 0 {
		return []string{path}
	}
	end += start

	values, ok := parseRangeExpr(path[start+2 : end])
	if !ok {
		return []string{path}
	}

	prefix, suffix := path[:start], path[end+1:]
	var out []string
	for _, v := range values {
		out = append(out, expandFirst(prefix+v+suffix)...)
	}
	return out
}

// parseRangeExpr parses "a-b" into the ascending inclusive integer range,
// or "a,b,c" into its trimmed values.
func parseRangeExpr(expr string) ([]string, bool) {
	if lo, hi, found := strings.Cut(expr, "-"); found {
		a, errA := strconv.Atoi(strings.TrimSpace(lo))
		b, errB := strconv.Atoi(strings.TrimSpace(hi))
		if errA != nil || errB != nil || a > b {
			return nil, false
		}
		values := make([]string, 0, b-a+1)
		for i := a; i <= b; i++ {
			values = append(values, strconv.Itoa(i))
		}
		return values, true
	}

	if strings.Contains(expr, ",") {
		parts := strings.Split(expr, ",")
		values := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p == "" {
				return nil, false
			}
			values = append(values, p)
		}
		return values, true
	}

	return nil, false
}

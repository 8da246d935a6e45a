package docval

import (
	"fmt"
	"strings"
)

// Lookup resolves a dotted field path like "metrics.loss" against m.
// Intermediate segments must be objects.
func Lookup(m Map, field string) (Value, bool) {
	segments := strings.Split(field, ".")
	cur := m
	for i, seg := range segments {
		v, ok := cur[seg]
		if !ok {
			return Value{}, false
		}
		if i == len(segments)-1 {
			return v, true
		}
		if v.Kind != KindObject {
			return Value{}, false
		}
		cur = v.O
	}
	return Value{}, false
}

// SetPath writes v at a dotted field path, creating intermediate objects
// as needed. It fails if an intermediate segment holds a non-object.
func SetPath(m Map, field string, v Value) error {
	segments := strings.Split(field, ".")
	cur := m
	for i, seg := range segments {
		if seg == "" {
			return fmt.Errorf("empty segment in field path %q", field)
		}
		if i == len(segments)-1 {
			cur[seg] = v
			return nil
		}
		next, ok := cur[seg]
		if !ok {
			child := Map{}
			cur[seg] = Object(child)
			cur = child
			continue
		}
		if next.Kind != KindObject {
			return fmt.Errorf("field path %q blocked by non-object at %q", field, seg)
		}
		cur = next.O
	}
	return nil
}

// DeletePath removes the value at a dotted field path. Missing paths are
// a no-op.
func DeletePath(m Map, field string) {
	segments := strings.Split(field, ".")
	cur := m
	for i, seg := range segments {
		if i == len(segments)-1 {
			delete(cur, seg)
			return
		}
		next, ok := cur[seg]
		if !ok || next.Kind != KindObject {
			return
		}
		cur = next.O
	}
}

// Compare orders two values. ok is false when the kinds are not mutually
// comparable. Numeric values compare across int and float kinds.
func Compare(a, b Value) (int, bool) {
	if isNumber(a) {
		if !isNumber(b) {
			return 0, false
		}
		af, bf := asFloat64(a), asFloat64(b)
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}

	if a.Kind != b.Kind {
		return 0, false
	}

	switch a.Kind {
	case KindString:
		return strings.Compare(a.S, b.S), true
	case KindBool:
		switch {
		case a.B == b.B:
			return 0, true
		case b.B:
			return -1, true
		default:
			return 1, true
		}
	default:
		return 0, false
	}
}

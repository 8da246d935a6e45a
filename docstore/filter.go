package docstore

import "github.com/hupe1980/labgo/docval"

// Operator is a filter comparison.
type Operator string

const (
	OpEq     Operator = "eq"
	OpNe     Operator = "ne"
	OpGt     Operator = "gt"
	OpGte    Operator = "gte"
	OpLt     Operator = "lt"
	OpLte    Operator = "lte"
	OpIn     Operator = "in"
	OpExists Operator = "exists"
)

// Filter is one predicate over a document field. Field is a dotted data
// field, or one of the reserved names "path", "notes", "created_at".
type Filter struct {
	Field string
	Op    Operator
	Value docval.Value
}

// Eq matches documents whose field equals v.
func Eq(field string, v docval.Value) Filter { return Filter{Field: field, Op: OpEq, Value: v} }

// Ne matches documents whose field differs from v. Missing fields match.
func Ne(field string, v docval.Value) Filter { return Filter{Field: field, Op: OpNe, Value: v} }

// Gt matches documents whose field orders strictly above v.
func Gt(field string, v docval.Value) Filter { return Filter{Field: field, Op: OpGt, Value: v} }

// Gte matches documents whose field orders at or above v.
func Gte(field string, v docval.Value) Filter { return Filter{Field: field, Op: OpGte, Value: v} }

// Lt matches documents whose field orders strictly below v.
func Lt(field string, v docval.Value) Filter { return Filter{Field: field, Op: OpLt, Value: v} }

// Lte matches documents whose field orders at or below v.
func Lte(field string, v docval.Value) Filter { return Filter{Field: field, Op: OpLte, Value: v} }

// In matches documents whose field equals one of vs.
func In(field string, vs ...docval.Value) Filter {
	return Filter{Field: field, Op: OpIn, Value: docval.Array(vs...)}
}

// Exists matches documents that have the field at all.
func Exists(field string) Filter { return Filter{Field: field, Op: OpExists} }

// Matches evaluates the filter against doc.
func (f Filter) Matches(doc Document) bool {
	v, ok := FieldValue(doc, f.Field)

	switch f.Op {
	case OpExists:
		return ok
	case OpEq:
		return ok && v.Equal(f.Value)
	case OpNe:
		return !ok || !v.Equal(f.Value)
	case OpIn:
		if !ok {
			return false
		}
		for _, cand := range f.Value.A {
			if v.Equal(cand) {
				return true
			}
		}
		return false
	case OpGt, OpGte, OpLt, OpLte:
		if !ok {
			return false
		}
		cmp, comparable := docval.Compare(v, f.Value)
		if !comparable {
			return false
		}
		switch f.Op {
		case OpGt:
			return cmp > 0
		case OpGte:
			return cmp >= 0
		case OpLt:
			return cmp < 0
		default:
			return cmp <= 0
		}
	default:
		return false
	}
}

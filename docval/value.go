// Package docval defines the typed value tree stored in directory and
// experiment documents.
//
// Values form a closed tagged union (null, bool, int, float, string,
// array, object, tensor, tensor reference) so that serialization walks
// are exhaustive instead of relying on runtime type inspection. Tensors
// are in-memory numeric arrays; tensor references are their persisted
// form, produced by the arrays package when a document is written.
package docval

// Kind identifies the concrete type stored in a Value.
type Kind uint8

const (
	// KindInvalid represents an invalid kind.
	KindInvalid Kind = iota
	// KindNull represents a null value.
	KindNull
	// KindBool represents a boolean value.
	KindBool
	// KindInt represents an integer value.
	KindInt
	// KindFloat represents a float value.
	KindFloat
	// KindString represents a string value.
	KindString
	// KindArray represents a list of values.
	KindArray
	// KindObject represents a nested key/value mapping.
	KindObject
	// KindTensor represents an in-memory numeric array.
	KindTensor
	// KindTensorRef represents an encoded numeric array (an array
	// descriptor pointing at a storage tier).
	KindTensorRef
)

// Value is a small typed value forming the document data model.
//
// NOTE: This is used for persistence; keep it stable.
type Value struct {
	Kind Kind
	B    bool
	I64  int64
	F64  float64
	S    string
	A    []Value
	O    Map
	T    *Tensor
	R    *TensorRef
}

// Map is a keyed collection of values, the payload type of document
// notes and experiment data.
type Map map[string]Value

// Null returns a null Value.
func Null() Value { return Value{Kind: KindNull} }

// Bool returns a boolean Value.
func Bool(v bool) Value { return Value{Kind: KindBool, B: v} }

// Int returns an int64 Value.
func Int(v int64) Value { return Value{Kind: KindInt, I64: v} }

// Float returns a float64 Value.
func Float(v float64) Value { return Value{Kind: KindFloat, F64: v} }

// String returns a string Value.
func String(v string) Value { return Value{Kind: KindString, S: v} }

// Array returns a list Value.
func Array(v ...Value) Value { return Value{Kind: KindArray, A: v} }

// Object returns a nested mapping Value.
func Object(m Map) Value { return Value{Kind: KindObject, O: m} }

// TensorValue returns a Value carrying an in-memory numeric array.
func TensorValue(t *Tensor) Value { return Value{Kind: KindTensor, T: t} }

// TensorRefValue returns a Value carrying an encoded array descriptor.
func TensorRefValue(r *TensorRef) Value { return Value{Kind: KindTensorRef, R: r} }

// AsBool returns the boolean value if Kind is KindBool.
func (v Value) AsBool() (bool, bool) {
	if v.Kind != KindBool {
		return false, false
	}
	return v.B, true
}

// AsInt64 returns the int64 value if Kind is KindInt.
func (v Value) AsInt64() (int64, bool) {
	if v.Kind != KindInt {
		return 0, false
	}
	return v.I64, true
}

// AsFloat64 returns the float64 value if Kind is KindFloat.
func (v Value) AsFloat64() (float64, bool) {
	if v.Kind != KindFloat {
		return 0, false
	}
	return v.F64, true
}

// AsString returns the string value if Kind is KindString.
func (v Value) AsString() (string, bool) {
	if v.Kind != KindString {
		return "", false
	}
	return v.S, true
}

// AsArray returns the list value if Kind is KindArray.
func (v Value) AsArray() ([]Value, bool) {
	if v.Kind != KindArray {
		return nil, false
	}
	return v.A, true
}

// AsObject returns the nested mapping if Kind is KindObject.
func (v Value) AsObject() (Map, bool) {
	if v.Kind != KindObject {
		return nil, false
	}
	return v.O, true
}

// AsTensor returns the numeric array if Kind is KindTensor.
func (v Value) AsTensor() (*Tensor, bool) {
	if v.Kind != KindTensor {
		return nil, false
	}
	return v.T, true
}

// AsTensorRef returns the array descriptor if Kind is KindTensorRef.
func (v Value) AsTensorRef() (*TensorRef, bool) {
	if v.Kind != KindTensorRef {
		return nil, false
	}
	return v.R, true
}

// IsZero reports whether v is the zero Value (KindInvalid). A missing
// map key yields a zero Value, distinct from an explicit null.
func (v Value) IsZero() bool { return v.Kind == KindInvalid }

// Clone creates a deep copy of the map.
//
// This is the safe default to prevent external mutation after a document
// has been handed to the store.
func (m Map) Clone() Map {
	if m == nil {
		return nil
	}
	clone := make(Map, len(m))
	for k, v := range m {
		clone[k] = v.Clone()
	}
	return clone
}

// Clone creates a deep copy of a Value, including nested arrays, objects
// and tensor payloads.
func (v Value) Clone() Value {
	switch v.Kind {
	case KindArray:
		if len(v.A) == 0 {
			return v
		}
		a := make([]Value, len(v.A))
		for i := range v.A {
			a[i] = v.A[i].Clone()
		}
		v.A = a
	case KindObject:
		v.O = v.O.Clone()
	case KindTensor:
		if v.T != nil {
			v.T = v.T.Clone()
		}
	case KindTensorRef:
		if v.R != nil {
			v.R = v.R.Clone()
		}
	}
	return v
}

// Equal reports deep equality between two values. Numeric values compare
// across int/float kinds when they denote the same quantity.
func (v Value) Equal(o Value) bool {
	if isNumber(v) && isNumber(o) {
		if v.Kind == KindInt && o.Kind == KindInt {
			return v.I64 == o.I64
		}
		return asFloat64(v) == asFloat64(o)
	}
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindBool:
		return v.B == o.B
	case KindString:
		return v.S == o.S
	case KindArray:
		if len(v.A) != len(o.A) {
			return false
		}
		for i := range v.A {
			if !v.A[i].Equal(o.A[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.O) != len(o.O) {
			return false
		}
		for k, ve := range v.O {
			oe, ok := o.O[k]
			if !ok || !ve.Equal(oe) {
				return false
			}
		}
		return true
	case KindTensor:
		return v.T.Equal(o.T)
	case KindTensorRef:
		return v.R.Equal(o.R)
	default:
		return false
	}
}

func isNumber(v Value) bool {
	return v.Kind == KindInt || v.Kind == KindFloat
}

func asFloat64(v Value) float64 {
	if v.Kind == KindInt {
		return float64(v.I64)
	}
	return v.F64
}

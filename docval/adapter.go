package docval

import "fmt"

// FromAny converts a Go value into a typed Value.
//
// This exists as an adapter layer for user input: callers log plain Go
// maps, slices and scalars and the store converts them once at the
// boundary.
func FromAny(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case bool:
		return Bool(x), nil
	case string:
		return String(x), nil
	case float64:
		return Float(x), nil
	case float32:
		return Float(float64(x)), nil
	case int:
		return Int(int64(x)), nil
	case int8:
		return Int(int64(x)), nil
	case int16:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case uint:
		return Int(int64(x)), nil
	case uint8:
		return Int(int64(x)), nil
	case uint16:
		return Int(int64(x)), nil
	case uint32:
		return Int(int64(x)), nil
	case uint64:
		if x > uint64(^uint64(0)>>1) {
			// Avoid silently truncating large values.
			return Value{}, fmt.Errorf("docval: uint64 out of range: %d", x)
		}
		return Int(int64(x)), nil
	case *Tensor:
		return TensorValue(x), nil
	case *TensorRef:
		return TensorRefValue(x), nil
	case []Value:
		return Array(x...), nil
	case []any:
		arr := make([]Value, len(x))
		for i := range x {
			vv, err := FromAny(x[i])
			if err != nil {
				return Value{}, err
			}
			arr[i] = vv
		}
		return Array(arr...), nil
	case []string:
		arr := make([]Value, len(x))
		for i := range x {
			arr[i] = String(x[i])
		}
		return Array(arr...), nil
	case []int:
		arr := make([]Value, len(x))
		for i := range x {
			arr[i] = Int(int64(x[i]))
		}
		return Array(arr...), nil
	case []float64:
		arr := make([]Value, len(x))
		for i := range x {
			arr[i] = Float(x[i])
		}
		return Array(arr...), nil
	case Map:
		return Object(x), nil
	case map[string]any:
		m, err := MapFromAny(x)
		if err != nil {
			return Value{}, err
		}
		return Object(m), nil
	default:
		return Value{}, fmt.Errorf("docval: unsupported value type %T", v)
	}
}

// MapFromAny converts a plain map[string]any document to a typed Map.
func MapFromAny(m map[string]any) (Map, error) {
	out := make(Map, len(m))
	for k, v := range m {
		vv, err := FromAny(v)
		if err != nil {
			return nil, err
		}
		out[k] = vv
	}
	return out, nil
}

// ToAny converts a typed Value back into plain Go types. Tensors come
// back as *Tensor; descriptors as *TensorRef.
func ToAny(v Value) any {
	switch v.Kind {
	case KindNull:
		return nil
	case KindBool:
		return v.B
	case KindInt:
		return v.I64
	case KindFloat:
		return v.F64
	case KindString:
		return v.S
	case KindArray:
		out := make([]any, len(v.A))
		for i := range v.A {
			out[i] = ToAny(v.A[i])
		}
		return out
	case KindObject:
		return MapToAny(v.O)
	case KindTensor:
		return v.T
	case KindTensorRef:
		return v.R
	default:
		return nil
	}
}

// MapToAny converts a typed Map back into a plain map[string]any.
func MapToAny(m Map) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = ToAny(v)
	}
	return out
}

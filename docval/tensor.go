package docval

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// DType identifies the element type of a Tensor.
type DType uint8

const (
	// DTypeInvalid represents an invalid dtype.
	DTypeInvalid DType = iota
	// DTypeFloat64 is a 64-bit IEEE float.
	DTypeFloat64
	// DTypeFloat32 is a 32-bit IEEE float.
	DTypeFloat32
	// DTypeInt64 is a 64-bit signed integer.
	DTypeInt64
	// DTypeInt32 is a 32-bit signed integer.
	DTypeInt32
	// DTypeInt16 is a 16-bit signed integer.
	DTypeInt16
	// DTypeInt8 is an 8-bit signed integer.
	DTypeInt8
	// DTypeUint8 is an 8-bit unsigned integer.
	DTypeUint8
	// DTypeBool is a boolean stored as one byte.
	DTypeBool
)

var dtypeNames = map[DType]string{
	DTypeFloat64: "float64",
	DTypeFloat32: "float32",
	DTypeInt64:   "int64",
	DTypeInt32:   "int32",
	DTypeInt16:   "int16",
	DTypeInt8:    "int8",
	DTypeUint8:   "uint8",
	DTypeBool:    "bool",
}

// String returns the canonical dtype name, e.g. "float64".
func (d DType) String() string {
	if name, ok := dtypeNames[d]; ok {
		return name
	}
	return "invalid"
}

// DTypeFromString parses a canonical dtype name.
func DTypeFromString(s string) (DType, bool) {
	for d, name := range dtypeNames {
		if name == s {
			return d, true
		}
	}
	return DTypeInvalid, false
}

// Size returns the element size in bytes.
func (d DType) Size() int {
	switch d {
	case DTypeFloat64, DTypeInt64:
		return 8
	case DTypeFloat32, DTypeInt32:
		return 4
	case DTypeInt16:
		return 2
	case DTypeInt8, DTypeUint8, DTypeBool:
		return 1
	default:
		return 0
	}
}

// Tensor is an n-dimensional numeric array: an element dtype, a shape and
// the raw elements in row-major order, little-endian.
type Tensor struct {
	DType DType
	Shape []int
	Data  []byte
}

// NumElements returns the number of elements implied by the shape. A
// zero-dimensional tensor holds a single element.
func (t *Tensor) NumElements() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// ByteSize returns the expected size of Data in bytes.
func (t *Tensor) ByteSize() int {
	return t.NumElements() * t.DType.Size()
}

// Validate checks that the shape, dtype and data length agree.
func (t *Tensor) Validate() error {
	if t.DType.Size() == 0 {
		return fmt.Errorf("tensor: invalid dtype %d", t.DType)
	}
	for _, d := range t.Shape {
		if d < 0 {
			return fmt.Errorf("tensor: negative dimension %d", d)
		}
	}
	if len(t.Data) != t.ByteSize() {
		return fmt.Errorf("tensor: data length %d does not match %s%v (%d bytes)",
			len(t.Data), t.DType, t.Shape, t.ByteSize())
	}
	return nil
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	if t == nil {
		return nil
	}
	clone := &Tensor{
		DType: t.DType,
		Shape: append([]int(nil), t.Shape...),
		Data:  append([]byte(nil), t.Data...),
	}
	return clone
}

// Equal reports whether two tensors hold the same dtype, shape and bytes.
func (t *Tensor) Equal(o *Tensor) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.DType != o.DType || len(t.Shape) != len(o.Shape) {
		return false
	}
	for i := range t.Shape {
		if t.Shape[i] != o.Shape[i] {
			return false
		}
	}
	return bytes.Equal(t.Data, o.Data)
}

// TensorFromFloat64s builds a float64 tensor from values in row-major
// order. The number of values must match the shape.
func TensorFromFloat64s(shape []int, values []float64) (*Tensor, error) {
	t := &Tensor{DType: DTypeFloat64, Shape: append([]int(nil), shape...)}
	t.Data = make([]byte, len(values)*8)
	for i, v := range values {
		binary.LittleEndian.PutUint64(t.Data[i*8:], math.Float64bits(v))
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// TensorFromFloat32s builds a float32 tensor from values in row-major order.
func TensorFromFloat32s(shape []int, values []float32) (*Tensor, error) {
	t := &Tensor{DType: DTypeFloat32, Shape: append([]int(nil), shape...)}
	t.Data = make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(t.Data[i*4:], math.Float32bits(v))
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// TensorFromInt64s builds an int64 tensor from values in row-major order.
func TensorFromInt64s(shape []int, values []int64) (*Tensor, error) {
	t := &Tensor{DType: DTypeInt64, Shape: append([]int(nil), shape...)}
	t.Data = make([]byte, len(values)*8)
	for i, v := range values {
		binary.LittleEndian.PutUint64(t.Data[i*8:], uint64(v))
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Float64s decodes the elements as float64 values, casting from the
// stored dtype where necessary.
func (t *Tensor) Float64s() ([]float64, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	n := t.NumElements()
	out := make([]float64, n)
	switch t.DType {
	case DTypeFloat64:
		for i := range out {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(t.Data[i*8:]))
		}
	case DTypeFloat32:
		for i := range out {
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(t.Data[i*4:])))
		}
	case DTypeInt64:
		for i := range out {
			out[i] = float64(int64(binary.LittleEndian.Uint64(t.Data[i*8:])))
		}
	case DTypeInt32:
		for i := range out {
			out[i] = float64(int32(binary.LittleEndian.Uint32(t.Data[i*4:])))
		}
	case DTypeInt16:
		for i := range out {
			out[i] = float64(int16(binary.LittleEndian.Uint16(t.Data[i*2:])))
		}
	case DTypeInt8:
		for i := range out {
			out[i] = float64(int8(t.Data[i]))
		}
	case DTypeUint8:
		for i := range out {
			out[i] = float64(t.Data[i])
		}
	case DTypeBool:
		for i := range out {
			if t.Data[i] != 0 {
				out[i] = 1
			}
		}
	default:
		return nil, fmt.Errorf("tensor: cannot decode dtype %s as float64", t.DType)
	}
	return out, nil
}

// Int64s decodes the elements as int64 values for integer dtypes.
func (t *Tensor) Int64s() ([]int64, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	n := t.NumElements()
	out := make([]int64, n)
	switch t.DType {
	case DTypeInt64:
		for i := range out {
			out[i] = int64(binary.LittleEndian.Uint64(t.Data[i*8:]))
		}
	case DTypeInt32:
		for i := range out {
			out[i] = int64(int32(binary.LittleEndian.Uint32(t.Data[i*4:])))
		}
	case DTypeInt16:
		for i := range out {
			out[i] = int64(int16(binary.LittleEndian.Uint16(t.Data[i*2:])))
		}
	case DTypeInt8:
		for i := range out {
			out[i] = int64(int8(t.Data[i]))
		}
	case DTypeUint8:
		for i := range out {
			out[i] = int64(t.Data[i])
		}
	default:
		return nil, fmt.Errorf("tensor: cannot decode dtype %s as int64", t.DType)
	}
	return out, nil
}

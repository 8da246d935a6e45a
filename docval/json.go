package docval

import (
	"encoding/json"
	"fmt"
)

// The JSON encoding is the persistence format for document notes and
// data. It is a compact tagged form so that int/float, tensor and
// descriptor kinds survive a round trip exactly.
//
// NOTE: Persisted documents depend on this format; keep it stable.

type valueJSON struct {
	K Kind           `json:"k"`
	B *bool          `json:"b,omitempty"`
	I *int64         `json:"i,omitempty"`
	F *float64       `json:"f,omitempty"`
	S *string        `json:"s,omitempty"`
	A []Value        `json:"a,omitempty"`
	O Map            `json:"o,omitempty"`
	T *tensorJSON    `json:"t,omitempty"`
	R *tensorRefJSON `json:"r,omitempty"`
}

type tensorJSON struct {
	DType string `json:"dtype"`
	Shape []int  `json:"shape"`
	Data  []byte `json:"data"`
}

type tensorRefJSON struct {
	Tier       Tier   `json:"tier"`
	DType      string `json:"dtype"`
	Shape      []int  `json:"shape"`
	Compressed bool   `json:"compressed"`
	Codec      string `json:"codec,omitempty"`
	Inline     []byte `json:"inline,omitempty"`
	FilePath   string `json:"file_path,omitempty"`
	BlobID     string `json:"blob_id,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	out := valueJSON{K: v.Kind}
	switch v.Kind {
	case KindNull:
	case KindBool:
		out.B = &v.B
	case KindInt:
		out.I = &v.I64
	case KindFloat:
		out.F = &v.F64
	case KindString:
		out.S = &v.S
	case KindArray:
		out.A = v.A
		if out.A == nil {
			out.A = []Value{}
		}
	case KindObject:
		out.O = v.O
		if out.O == nil {
			out.O = Map{}
		}
	case KindTensor:
		if v.T == nil {
			return nil, fmt.Errorf("docval: tensor value with nil tensor")
		}
		out.T = &tensorJSON{DType: v.T.DType.String(), Shape: v.T.Shape, Data: v.T.Data}
	case KindTensorRef:
		if v.R == nil {
			return nil, fmt.Errorf("docval: tensor ref value with nil descriptor")
		}
		out.R = &tensorRefJSON{
			Tier:       v.R.Tier,
			DType:      v.R.DType.String(),
			Shape:      v.R.Shape,
			Compressed: v.R.Compressed,
			Codec:      v.R.Codec,
			Inline:     v.R.Inline,
			FilePath:   v.R.FilePath,
			BlobID:     v.R.BlobID,
		}
	default:
		return nil, fmt.Errorf("docval: cannot marshal kind %d", v.Kind)
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var in valueJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*v = Value{Kind: in.K}
	switch in.K {
	case KindNull:
	case KindBool:
		if in.B != nil {
			v.B = *in.B
		}
	case KindInt:
		if in.I != nil {
			v.I64 = *in.I
		}
	case KindFloat:
		if in.F != nil {
			v.F64 = *in.F
		}
	case KindString:
		if in.S != nil {
			v.S = *in.S
		}
	case KindArray:
		v.A = in.A
	case KindObject:
		v.O = in.O
	case KindTensor:
		if in.T == nil {
			return fmt.Errorf("docval: tensor value without payload")
		}
		dt, ok := DTypeFromString(in.T.DType)
		if !ok {
			return fmt.Errorf("docval: unknown dtype %q", in.T.DType)
		}
		v.T = &Tensor{DType: dt, Shape: in.T.Shape, Data: in.T.Data}
	case KindTensorRef:
		if in.R == nil {
			return fmt.Errorf("docval: tensor ref value without descriptor")
		}
		dt, ok := DTypeFromString(in.R.DType)
		if !ok {
			return fmt.Errorf("docval: unknown dtype %q", in.R.DType)
		}
		v.R = &TensorRef{
			Tier:       in.R.Tier,
			DType:      dt,
			Shape:      in.R.Shape,
			Compressed: in.R.Compressed,
			Codec:      in.R.Codec,
			Inline:     in.R.Inline,
			FilePath:   in.R.FilePath,
			BlobID:     in.R.BlobID,
		}
	default:
		return fmt.Errorf("docval: cannot unmarshal kind %d", in.K)
	}
	return nil
}

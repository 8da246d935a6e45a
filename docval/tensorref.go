package docval

import "bytes"

// Tier selects the storage backend holding a tensor's encoded bytes.
type Tier string

const (
	// TierInline embeds the encoded bytes directly in the descriptor.
	TierInline Tier = "inline"
	// TierLocalFile stores the encoded bytes in a file under the
	// configured local storage root.
	TierLocalFile Tier = "local-file"
	// TierBlobStore stores the encoded bytes in the large-object
	// facility, addressed by a generated id.
	TierBlobStore Tier = "blob-store"
)

// TensorRef is an array descriptor: the persisted form of a Tensor. It
// records how the payload was encoded and where its bytes reside.
//
// A descriptor is immutable once written; re-encoding a tensor always
// allocates a fresh locator rather than overwriting in place.
type TensorRef struct {
	Tier       Tier
	DType      DType
	Shape      []int
	Compressed bool
	// Codec names the compression algorithm when Compressed is set
	// ("zstd" or "lz4").
	Codec string

	// Inline holds the encoded bytes for TierInline.
	Inline []byte
	// FilePath locates the payload file for TierLocalFile.
	FilePath string
	// BlobID locates the large object for TierBlobStore.
	BlobID string
}

// Clone returns a deep copy of the descriptor.
func (r *TensorRef) Clone() *TensorRef {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Shape = append([]int(nil), r.Shape...)
	clone.Inline = append([]byte(nil), r.Inline...)
	return &clone
}

// Equal reports whether two descriptors are identical.
func (r *TensorRef) Equal(o *TensorRef) bool {
	if r == nil || o == nil {
		return r == o
	}
	if r.Tier != o.Tier || r.DType != o.DType || r.Compressed != o.Compressed ||
		r.Codec != o.Codec || r.FilePath != o.FilePath || r.BlobID != o.BlobID {
		return false
	}
	if len(r.Shape) != len(o.Shape) {
		return false
	}
	for i := range r.Shape {
		if r.Shape[i] != o.Shape[i] {
			return false
		}
	}
	return bytes.Equal(r.Inline, o.Inline)
}

// Package arrays moves large numeric arrays between storage tiers.
//
// Documents carry tensors by value until they cross a size threshold; the
// Serializer then offloads the payload to a local directory or a blob store
// and leaves a descriptor in the document. Deserialization reverses the
// exchange, consulting an optional disk cache before the blob store.
package arrays

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/hupe1980/labgo/blobstore"
	"github.com/hupe1980/labgo/diskcache"
	"github.com/hupe1980/labgo/docval"
)

// DefaultInlineThreshold is the payload size above which tensors are
// offloaded out of the document.
const DefaultInlineThreshold = 16 << 20 // 16 MiB

// ErrPayloadMissing is returned when an offloaded payload no longer
// exists at its recorded location.
var ErrPayloadMissing = errors.New("arrays: payload missing")

// ConfigurationError reports a storage operation that the serializer's
// configuration cannot satisfy.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "arrays: " + e.Reason
}

// Mode selects where offloaded payloads live.
type Mode string

const (
	// ModeNone keeps every tensor inside its document.
	ModeNone Mode = "none"
	// ModeLocal offloads payloads to files under LocalRoot.
	ModeLocal Mode = "local"
	// ModeBlobStore offloads payloads to a BlobStore.
	ModeBlobStore Mode = "blobstore"
)

// Config configures a Serializer.
type Config struct {
	// Mode selects the offload tier. Defaults to ModeNone.
	Mode Mode

	// LocalRoot is the payload directory for ModeLocal.
	LocalRoot string

	// Blobs is the payload store for ModeBlobStore.
	Blobs blobstore.BlobStore

	// Cache is an optional read-through cache for blob payloads.
	Cache *diskcache.Cache

	// Compress enables payload compression.
	Compress bool

	// Codec selects the compression algorithm. Defaults to CodecZstd.
	Codec Codec

	// InlineThreshold is the payload size in bytes above which tensors
	// are offloaded. Defaults to DefaultInlineThreshold.
	InlineThreshold int
}

// Serializer exchanges in-document tensors for storage tier descriptors
// and back. Safe for concurrent use.
type Serializer struct {
	mode      Mode
	localRoot string
	blobs     blobstore.BlobStore
	cache     *diskcache.Cache
	compress  bool
	codec     Codec
	threshold int
}

// New validates cfg and builds a Serializer.
func New(cfg Config) (*Serializer, error) {
	if cfg.Mode == "" {
		cfg.Mode = ModeNone
	}
	if cfg.Codec == "" {
		cfg.Codec = CodecZstd
	}
	if cfg.InlineThreshold == 0 {
		cfg.InlineThreshold = DefaultInlineThreshold
	}

	switch cfg.Mode {
	case ModeNone:
	case ModeLocal:
		if cfg.LocalRoot == "" {
			return nil, &ConfigurationError{Reason: "local mode requires a payload directory"}
		}
		if err := os.MkdirAll(cfg.LocalRoot, 0o755); err != nil {
			return nil, fmt.Errorf("arrays: create payload directory: %w", err)
		}
	case ModeBlobStore:
		if cfg.Blobs == nil {
			return nil, &ConfigurationError{Reason: "blobstore mode requires a blob store"}
		}
	default:
		return nil, &ConfigurationError{Reason: fmt.Sprintf("unknown storage mode %q", cfg.Mode)}
	}

	switch cfg.Codec {
	case CodecZstd, CodecLZ4:
	default:
		return nil, &ConfigurationError{Reason: fmt.Sprintf("unknown codec %q", cfg.Codec)}
	}

	return &Serializer{
		mode:      cfg.Mode,
		localRoot: cfg.LocalRoot,
		blobs:     cfg.Blobs,
		cache:     cfg.Cache,
		compress:  cfg.Compress,
		codec:     cfg.Codec,
		threshold: cfg.InlineThreshold,
	}, nil
}

// Serialize returns a copy of m with every tensor replaced by a storage
// descriptor. Tensors below the inline threshold stay inside the
// document; larger ones are offloaded to the configured tier.
func (s *Serializer) Serialize(ctx context.Context, m docval.Map) (docval.Map, error) {
	out := make(docval.Map, len(m))
	for k, v := range m {
		sv, err := s.serializeValue(ctx, v)
		if err != nil {
			return nil, err
		}
		out[k] = sv
	}
	return out, nil
}

func (s *Serializer) serializeValue(ctx context.Context, v docval.Value) (docval.Value, error) {
	switch v.Kind {
	case docval.KindTensor:
		return s.serializeTensor(ctx, v.T)
	case docval.KindArray:
		out := make([]docval.Value, len(v.A))
		for i, elem := range v.A {
			sv, err := s.serializeValue(ctx, elem)
			if err != nil {
				return docval.Value{}, err
			}
			out[i] = sv
		}
		return docval.Value{Kind: docval.KindArray, A: out}, nil
	case docval.KindObject:
		out, err := s.Serialize(ctx, v.O)
		if err != nil {
			return docval.Value{}, err
		}
		return docval.Object(out), nil
	default:
		return v, nil
	}
}

func (s *Serializer) serializeTensor(ctx context.Context, t *docval.Tensor) (docval.Value, error) {
	if err := t.Validate(); err != nil {
		return docval.Value{}, err
	}

	payload := t.Data
	if s.compress {
		framed, err := compressPayload(t.Data, s.codec)
		if err != nil {
			return docval.Value{}, fmt.Errorf("arrays: compress payload: %w", err)
		}
		payload = framed
	}

	ref := &docval.TensorRef{
		DType:      t.DType,
		Shape:      append([]int(nil), t.Shape...),
		Compressed: s.compress,
		Codec:      string(s.codec),
	}

	// The encoded size decides the tier, so a compressible array can
	// still ride inline.
	if len(payload) < s.threshold {
		ref.Tier = docval.TierInline
		ref.Inline = payload
		return docval.TensorRefValue(ref), nil
	}

	switch s.mode {
	case ModeNone:
		return docval.Value{}, &ConfigurationError{
			Reason: fmt.Sprintf("encoded array of %d bytes exceeds the inline threshold and no offload tier is configured", len(payload)),
		}
	case ModeLocal:
		name := uuid.NewString() + ".bin"
		if err := s.writeLocal(name, payload); err != nil {
			return docval.Value{}, err
		}
		ref.Tier = docval.TierLocalFile
		ref.FilePath = name
	case ModeBlobStore:
		locator := uuid.NewString()
		if err := s.blobs.Put(ctx, locator, payload); err != nil {
			return docval.Value{}, fmt.Errorf("arrays: store payload: %w", err)
		}
		if s.cache != nil {
			_ = s.cache.Put(locator, payload)
		}
		ref.Tier = docval.TierBlobStore
		ref.BlobID = locator
	}

	return docval.TensorRefValue(ref), nil
}

func (s *Serializer) writeLocal(name string, payload []byte) error {
	path := filepath.Join(s.localRoot, name)

	tmp, err := os.CreateTemp(s.localRoot, ".tmp-*")
	if err != nil {
		return fmt.Errorf("arrays: create payload file: %w", err)
	}
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("arrays: write payload file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("arrays: close payload file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("arrays: finalize payload file: %w", err)
	}
	return nil
}

// Deserialize returns a copy of m with every storage descriptor replaced
// by its tensor. Descriptors whose tier the serializer is not configured
// for yield a ConfigurationError.
func (s *Serializer) Deserialize(ctx context.Context, m docval.Map) (docval.Map, error) {
	out := make(docval.Map, len(m))
	for k, v := range m {
		dv, err := s.deserializeValue(ctx, v)
		if err != nil {
			return nil, err
		}
		out[k] = dv
	}
	return out, nil
}

func (s *Serializer) deserializeValue(ctx context.Context, v docval.Value) (docval.Value, error) {
	switch v.Kind {
	case docval.KindTensorRef:
		return s.resolveRef(ctx, v.R)
	case docval.KindArray:
		out := make([]docval.Value, len(v.A))
		for i, elem := range v.A {
			dv, err := s.deserializeValue(ctx, elem)
			if err != nil {
				return docval.Value{}, err
			}
			out[i] = dv
		}
		return docval.Value{Kind: docval.KindArray, A: out}, nil
	case docval.KindObject:
		out, err := s.Deserialize(ctx, v.O)
		if err != nil {
			return docval.Value{}, err
		}
		return docval.Object(out), nil
	default:
		return v, nil
	}
}

func (s *Serializer) resolveRef(ctx context.Context, ref *docval.TensorRef) (docval.Value, error) {
	var payload []byte

	switch ref.Tier {
	case docval.TierInline:
		payload = ref.Inline
	case docval.TierLocalFile:
		if s.localRoot == "" {
			return docval.Value{}, &ConfigurationError{Reason: "payload references a local file but no payload directory is configured"}
		}
		data, err := os.ReadFile(filepath.Join(s.localRoot, ref.FilePath))
		if err != nil {
			if os.IsNotExist(err) {
				return docval.Value{}, fmt.Errorf("%w: file %s", ErrPayloadMissing, ref.FilePath)
			}
			return docval.Value{}, fmt.Errorf("arrays: read payload file %s: %w", ref.FilePath, err)
		}
		payload = data
	case docval.TierBlobStore:
		if s.blobs == nil {
			return docval.Value{}, &ConfigurationError{Reason: "payload references a blob store but none is configured"}
		}
		data, err := s.fetchBlob(ctx, ref.BlobID)
		if err != nil {
			return docval.Value{}, err
		}
		payload = data
	default:
		return docval.Value{}, fmt.Errorf("arrays: unknown storage tier %q", ref.Tier)
	}

	if ref.Compressed {
		data, err := decompressPayload(payload, Codec(ref.Codec))
		if err != nil {
			return docval.Value{}, fmt.Errorf("arrays: decompress payload: %w", err)
		}
		payload = data
	}

	t := &docval.Tensor{
		DType: ref.DType,
		Shape: append([]int(nil), ref.Shape...),
		Data:  payload,
	}
	if err := t.Validate(); err != nil {
		return docval.Value{}, fmt.Errorf("arrays: corrupt payload: %w", err)
	}
	return docval.TensorValue(t), nil
}

func (s *Serializer) fetchBlob(ctx context.Context, locator string) ([]byte, error) {
	if s.cache != nil {
		if data, ok := s.cache.Get(locator); ok {
			return data, nil
		}
	}

	data, err := s.blobs.Get(ctx, locator)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: blob %s", ErrPayloadMissing, locator)
		}
		return nil, fmt.Errorf("arrays: fetch payload %s: %w", locator, err)
	}

	if s.cache != nil {
		_ = s.cache.Put(locator, data)
	}
	return data, nil
}

// Cleanup removes offloaded payloads referenced by m. It is best effort:
// failures are ignored so a partially deleted document never blocks its
// own removal.
func (s *Serializer) Cleanup(ctx context.Context, m docval.Map) {
	for _, v := range m {
		s.cleanupValue(ctx, v)
	}
}

func (s *Serializer) cleanupValue(ctx context.Context, v docval.Value) {
	switch v.Kind {
	case docval.KindTensorRef:
		switch v.R.Tier {
		case docval.TierLocalFile:
			if s.localRoot != "" {
				_ = os.Remove(filepath.Join(s.localRoot, v.R.FilePath))
			}
		case docval.TierBlobStore:
			if s.blobs != nil {
				_ = s.blobs.Delete(ctx, v.R.BlobID)
			}
			if s.cache != nil {
				_ = s.cache.Remove(v.R.BlobID)
			}
		}
	case docval.KindArray:
		for _, elem := range v.A {
			s.cleanupValue(ctx, elem)
		}
	case docval.KindObject:
		s.Cleanup(ctx, v.O)
	}
}

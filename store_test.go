package labgo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/labgo/docstore/memstore"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := New(context.Background(), memstore.New(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNewRecordsSchemaVersion(t *testing.T) {
	ctx := context.Background()
	backend := memstore.New()

	s, err := New(ctx, backend)
	require.NoError(t, err)
	defer s.Close()

	stored, err := backend.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, stored)
}

func TestNewAcceptsSameMajor(t *testing.T) {
	ctx := context.Background()
	backend := memstore.New()
	require.NoError(t, backend.SetSchemaVersion(ctx, "1.9.7"))

	s, err := New(ctx, backend)
	require.NoError(t, err)
	defer s.Close()

	// A compatible version is left untouched.
	stored, err := backend.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1.9.7", stored)
}

func TestNewRejectsMajorMismatch(t *testing.T) {
	ctx := context.Background()
	backend := memstore.New()
	require.NoError(t, backend.SetSchemaVersion(ctx, "2.0.0"))

	_, err := New(ctx, backend)
	var mismatch *ErrVersionMismatch
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "2.0.0", mismatch.Stored)
	assert.Equal(t, SchemaVersion, mismatch.Running)
}

func TestStorePing(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestNormalizeRejectsWildcard(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.PathExists(ctx, "/a/*")
	assert.ErrorIs(t, err, ErrInvalidPath)

	err = s.CreateDir(ctx, "/a/*", nil)
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestNormalizeRejectsBadPaths(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, path := range []string{"", "relative", "/UPPER", "/sp ace", "/a/*/b"} {
		_, err := s.PathExists(ctx, path)
		assert.ErrorIs(t, err, ErrInvalidPath, "path %q", path)
	}
}

package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/labgo/arrays"
	"github.com/hupe1980/labgo/blobstore"
	"github.com/hupe1980/labgo/docstore"
	"github.com/hupe1980/labgo/docstore/storetest"
	"github.com/hupe1980/labgo/docval"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) docstore.Store {
		s, err := Open(filepath.Join(t.TempDir(), "lab.db"))
		require.NoError(t, err)
		return s
	})
}

func TestReopenKeepsDocuments(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "lab.db")

	s1, err := Open(path)
	require.NoError(t, err)

	doc := docstore.Document{
		Kind:      docstore.KindExperiment,
		Path:      "/proj/0",
		CreatedAt: time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC),
		Notes:     docval.Map{"comment": docval.String("persisted")},
		Data:      docval.Map{"loss": docval.Float(0.5)},
	}
	require.NoError(t, s1.Experiments().Insert(ctx, doc))
	require.NoError(t, s1.SetSchemaVersion(ctx, "1.0.0"))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Experiments().Get(ctx, "/proj/0")
	require.NoError(t, err)
	assert.Equal(t, doc.Path, got.Path)
	assert.Equal(t, docval.String("persisted"), got.Notes["comment"])
	assert.True(t, doc.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, docval.Float(0.5), got.Data["loss"])

	version, err := s2.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", version)
}

func TestInMemoryStore(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	assert.NoError(t, s.Ping(context.Background()))
}

func TestBlobFacility(t *testing.T) {
	ctx := context.Background()
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	blobs := s.Blobs()

	require.NoError(t, blobs.Put(ctx, "payloads/a", []byte("alpha")))
	require.NoError(t, blobs.Put(ctx, "payloads/b", []byte("beta")))
	require.NoError(t, blobs.Put(ctx, "other/c", []byte("gamma")))

	got, err := blobs.Get(ctx, "payloads/a")
	require.NoError(t, err)
	assert.Equal(t, []byte("alpha"), got)

	// Overwrite replaces the stored bytes.
	require.NoError(t, blobs.Put(ctx, "payloads/a", []byte("alpha2")))
	got, err = blobs.Get(ctx, "payloads/a")
	require.NoError(t, err)
	assert.Equal(t, []byte("alpha2"), got)

	_, err = blobs.Get(ctx, "payloads/missing")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	locators, err := blobs.List(ctx, "payloads/")
	require.NoError(t, err)
	assert.Equal(t, []string{"payloads/a", "payloads/b"}, locators)

	require.NoError(t, blobs.Delete(ctx, "payloads/a"))
	_, err = blobs.Get(ctx, "payloads/a")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	// Deleting a missing locator is not an error.
	assert.NoError(t, blobs.Delete(ctx, "payloads/a"))
}

func TestBlobFacilityPersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "lab.db")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Blobs().Put(ctx, "payloads/x", []byte("kept")))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Blobs().Get(ctx, "payloads/x")
	require.NoError(t, err)
	assert.Equal(t, []byte("kept"), got)
}

func TestBlobFacilityBacksOffloadedArrays(t *testing.T) {
	ctx := context.Background()
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	serializer, err := arrays.New(arrays.Config{
		Mode:            arrays.ModeBlobStore,
		Blobs:           s.Blobs(),
		InlineThreshold: 64,
	})
	require.NoError(t, err)

	data := make([]float64, 100)
	for i := range data {
		data[i] = float64(i)
	}
	tensor, err := docval.TensorFromFloat64s([]int{100}, data)
	require.NoError(t, err)

	stored, err := serializer.Serialize(ctx, docval.Map{
		"weights": docval.TensorValue(tensor),
	})
	require.NoError(t, err)
	require.Equal(t, docval.KindTensorRef, stored["weights"].Kind)
	assert.Equal(t, docval.TierBlobStore, stored["weights"].R.Tier)

	loaded, err := serializer.Deserialize(ctx, stored)
	require.NoError(t, err)
	assert.True(t, tensor.Equal(loaded["weights"].T))
}

// Package storetest is a conformance suite for docstore.Store
// implementations. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/labgo/docstore"
	"github.com/hupe1980/labgo/docval"
)

// Factory opens a fresh, empty store for one subtest.
type Factory func(t *testing.T) docstore.Store

// Run exercises the full Store contract against the backend.
func Run(t *testing.T, open Factory) {
	t.Run("InsertGet", func(t *testing.T) { testInsertGet(t, open) })
	t.Run("InsertConflict", func(t *testing.T) { testInsertConflict(t, open) })
	t.Run("CollectionsAreDisjoint", func(t *testing.T) { testDisjoint(t, open) })
	t.Run("FindSubtree", func(t *testing.T) { testFindSubtree(t, open) })
	t.Run("FindChildren", func(t *testing.T) { testFindChildren(t, open) })
	t.Run("FindPaths", func(t *testing.T) { testFindPaths(t, open) })
	t.Run("FindFilterSort", func(t *testing.T) { testFindFilterSort(t, open) })
	t.Run("InsertionOrderTieBreak", func(t *testing.T) { testInsertionOrder(t, open) })
	t.Run("Count", func(t *testing.T) { testCount(t, open) })
	t.Run("SetField", func(t *testing.T) { testSetField(t, open) })
	t.Run("SetNotes", func(t *testing.T) { testSetNotes(t, open) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, open) })
	t.Run("Rename", func(t *testing.T) { testRename(t, open) })
	t.Run("SchemaVersion", func(t *testing.T) { testSchemaVersion(t, open) })
	t.Run("Ping", func(t *testing.T) { testPing(t, open) })
	t.Run("TensorRefSurvivesStorage", func(t *testing.T) { testTensorRef(t, open) })
}

func openStore(t *testing.T, open Factory) docstore.Store {
	t.Helper()
	s := open(t)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func expDoc(path string, data docval.Map) docstore.Document {
	return docstore.Document{
		Kind:      docstore.KindExperiment,
		Path:      path,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
		Data:      data,
	}
}

func insert(t *testing.T, c docstore.Collection, docs ...docstore.Document) {
	t.Helper()
	for _, doc := range docs {
		require.NoError(t, c.Insert(context.Background(), doc))
	}
}

func testInsertGet(t *testing.T, open Factory) {
	ctx := context.Background()
	s := openStore(t, open)
	c := s.Experiments()

	doc := expDoc("/proj/0", docval.Map{
		"status": docval.String("running"),
		"metrics": docval.Object(docval.Map{
			"loss": docval.Float(0.5),
		}),
	})
	doc.Notes = docval.Map{"summary": docval.String("first run")}
	insert(t, c, doc)

	got, err := c.Get(ctx, "/proj/0")
	require.NoError(t, err)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, docstore.KindExperiment, got.Kind)
	assert.Equal(t, "/proj/0", got.Path)
	assert.Equal(t, docval.String("first run"), got.Notes["summary"])
	assert.True(t, doc.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, docval.Object(doc.Data).Equal(docval.Object(got.Data)))

	_, err = c.Get(ctx, "/proj/1")
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	ok, err := c.Exists(ctx, "/proj/0")
	require.NoError(t, err)
	assert.True(t, ok)
}

func testInsertConflict(t *testing.T, open Factory) {
	ctx := context.Background()
	s := openStore(t, open)
	c := s.Experiments()

	insert(t, c, expDoc("/proj/0", nil))
	err := c.Insert(ctx, expDoc("/proj/0", nil))
	assert.ErrorIs(t, err, docstore.ErrConflict)
}

func testDisjoint(t *testing.T, open Factory) {
	ctx := context.Background()
	s := openStore(t, open)

	dir := docstore.Document{Kind: docstore.KindDirectory, Path: "/proj", CreatedAt: time.Now().UTC()}
	require.NoError(t, s.Directories().Insert(ctx, dir))
	insert(t, s.Experiments(), expDoc("/proj", nil))

	_, err := s.Directories().Get(ctx, "/proj")
	require.NoError(t, err)
	_, err = s.Experiments().Get(ctx, "/proj")
	require.NoError(t, err)
}

func testFindSubtree(t *testing.T, open Factory) {
	ctx := context.Background()
	s := openStore(t, open)
	c := s.Experiments()

	insert(t, c,
		expDoc("/a", nil),
		expDoc("/a/1", nil),
		expDoc("/a/1/x", nil),
		expDoc("/ab", nil),
		expDoc("/b", nil),
	)

	got, err := c.Find(ctx, docstore.Selector{Prefix: "/a"}, docstore.FindOptions{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"/a/1", "/a/1/x"}, paths(got))

	got, err = c.Find(ctx, docstore.Selector{Prefix: "/a", IncludeRoot: true}, docstore.FindOptions{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"/a", "/a/1", "/a/1/x"}, paths(got))
}

func testFindChildren(t *testing.T, open Factory) {
	ctx := context.Background()
	s := openStore(t, open)
	c := s.Experiments()

	insert(t, c,
		expDoc("/a/1", nil),
		expDoc("/a/2", nil),
		expDoc("/a/2/deep", nil),
	)

	got, err := c.Find(ctx, docstore.Selector{Prefix: "/a", Depth: docstore.DepthChildren}, docstore.FindOptions{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"/a/1", "/a/2"}, paths(got))
}

func testFindPaths(t *testing.T, open Factory) {
	ctx := context.Background()
	s := openStore(t, open)
	c := s.Experiments()

	insert(t, c, expDoc("/a", nil), expDoc("/b", nil), expDoc("/c", nil))

	got, err := c.Find(ctx, docstore.Selector{Paths: []string{"/a", "/c", "/missing"}}, docstore.FindOptions{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"/a", "/c"}, paths(got))
}

func testFindFilterSort(t *testing.T, open Factory) {
	ctx := context.Background()
	s := openStore(t, open)
	c := s.Experiments()

	insert(t, c,
		expDoc("/e/0", docval.Map{"loss": docval.Float(0.5), "status": docval.String("done")}),
		expDoc("/e/1", docval.Map{"loss": docval.Float(0.2), "status": docval.String("done")}),
		expDoc("/e/2", docval.Map{"loss": docval.Float(0.9), "status": docval.String("failed")}),
	)

	got, err := c.Find(ctx, docstore.Selector{Prefix: "/e"}, docstore.FindOptions{
		Filters: []docstore.Filter{docstore.Eq("status", docval.String("done"))},
		Sort:    []docstore.SortField{{Field: "loss"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/e/1", "/e/0"}, paths(got))

	got, err = c.Find(ctx, docstore.Selector{Prefix: "/e"}, docstore.FindOptions{
		Sort:  []docstore.SortField{{Field: "loss", Desc: true}},
		Limit: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/e/2"}, paths(got))

	got, err = c.Find(ctx, docstore.Selector{Prefix: "/e"}, docstore.FindOptions{
		Projection: &docstore.Projection{Include: []string{"status"}},
	})
	require.NoError(t, err)
	for _, doc := range got {
		_, hasLoss := doc.Data["loss"]
		assert.False(t, hasLoss)
	}

	got, err = c.Find(ctx, docstore.Selector{Prefix: "/e"}, docstore.FindOptions{OmitData: true})
	require.NoError(t, err)
	for _, doc := range got {
		assert.Nil(t, doc.Data)
	}
}

func testInsertionOrder(t *testing.T, open Factory) {
	ctx := context.Background()
	s := openStore(t, open)
	c := s.Experiments()

	// Identical created_at and sort keys: insertion order must decide.
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, p := range []string{"/e/first", "/e/second", "/e/third"} {
		doc := expDoc(p, docval.Map{"group": docval.String("same")})
		doc.CreatedAt = at
		insert(t, c, doc)
	}

	got, err := c.Find(ctx, docstore.Selector{Prefix: "/e"}, docstore.FindOptions{
		Sort: []docstore.SortField{{Field: "group"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/e/first", "/e/second", "/e/third"}, paths(got))
}

func testCount(t *testing.T, open Factory) {
	ctx := context.Background()
	s := openStore(t, open)
	c := s.Experiments()

	insert(t, c,
		expDoc("/e/0", docval.Map{"ok": docval.Bool(true)}),
		expDoc("/e/1", docval.Map{"ok": docval.Bool(false)}),
		expDoc("/e/2", docval.Map{"ok": docval.Bool(true)}),
	)

	n, err := c.Count(ctx, docstore.Selector{Prefix: "/e"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = c.Count(ctx, docstore.Selector{Prefix: "/e"}, []docstore.Filter{
		docstore.Eq("ok", docval.Bool(true)),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func testSetField(t *testing.T, open Factory) {
	ctx := context.Background()
	s := openStore(t, open)
	c := s.Experiments()

	insert(t, c, expDoc("/e/0", docval.Map{}))

	require.NoError(t, c.SetField(ctx, "/e/0", "metrics.loss", docval.Float(0.125)))

	got, err := c.Get(ctx, "/e/0")
	require.NoError(t, err)
	v, ok := docval.Lookup(got.Data, "metrics.loss")
	require.True(t, ok)
	assert.Equal(t, docval.Float(0.125), v)

	err = c.SetField(ctx, "/missing", "x", docval.Int(1))
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func testSetNotes(t *testing.T, open Factory) {
	ctx := context.Background()
	s := openStore(t, open)
	c := s.Experiments()

	insert(t, c, expDoc("/e/0", nil))
	require.NoError(t, c.SetNotes(ctx, "/e/0", docval.Map{
		"summary": docval.String("baseline"),
	}))
	require.NoError(t, c.SetNote(ctx, "/e/0", "followup", docval.String("rerun with lr=0.01")))

	got, err := c.Get(ctx, "/e/0")
	require.NoError(t, err)
	assert.Equal(t, docval.String("baseline"), got.Notes["summary"])
	assert.Equal(t, docval.String("rerun with lr=0.01"), got.Notes["followup"])

	err = c.SetNotes(ctx, "/missing", docval.Map{})
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	err = c.SetNote(ctx, "/missing", "k", docval.Int(1))
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func testDelete(t *testing.T, open Factory) {
	ctx := context.Background()
	s := openStore(t, open)
	c := s.Experiments()

	insert(t, c, expDoc("/e/0", nil))
	require.NoError(t, c.Delete(ctx, "/e/0"))

	_, err := c.Get(ctx, "/e/0")
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	err = c.Delete(ctx, "/e/0")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func testRename(t *testing.T, open Factory) {
	ctx := context.Background()
	s := openStore(t, open)
	c := s.Experiments()

	insert(t, c, expDoc("/old", docval.Map{"keep": docval.Int(1)}), expDoc("/taken", nil))

	require.NoError(t, c.Rename(ctx, "/old", "/new"))

	got, err := c.Get(ctx, "/new")
	require.NoError(t, err)
	assert.Equal(t, "/new", got.Path)
	v, ok := docval.Lookup(got.Data, "keep")
	require.True(t, ok)
	assert.Equal(t, docval.Int(1), v)

	_, err = c.Get(ctx, "/old")
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	err = c.Rename(ctx, "/missing", "/x")
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	insert(t, c, expDoc("/other", nil))
	err = c.Rename(ctx, "/other", "/taken")
	assert.ErrorIs(t, err, docstore.ErrConflict)
}

func testSchemaVersion(t *testing.T, open Factory) {
	ctx := context.Background()
	s := openStore(t, open)

	v, err := s.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", v)

	require.NoError(t, s.SetSchemaVersion(ctx, "1.0.0"))

	v, err = s.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", v)
}

func testPing(t *testing.T, open Factory) {
	s := openStore(t, open)
	assert.NoError(t, s.Ping(context.Background()))
}

func testTensorRef(t *testing.T, open Factory) {
	ctx := context.Background()
	s := openStore(t, open)
	c := s.Experiments()

	ref := &docval.TensorRef{
		Tier:       docval.TierBlobStore,
		DType:      docval.DTypeFloat32,
		Shape:      []int{4, 4},
		Compressed: true,
		Codec:      "zstd",
		BlobID:     "payload-123",
	}
	insert(t, c, expDoc("/e/0", docval.Map{"trace": docval.TensorRefValue(ref)}))

	got, err := c.Get(ctx, "/e/0")
	require.NoError(t, err)
	v, ok := docval.Lookup(got.Data, "trace")
	require.True(t, ok)
	require.Equal(t, docval.KindTensorRef, v.Kind)
	assert.True(t, ref.Equal(v.R))
}

func paths(docs []docstore.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Path
	}
	return out
}

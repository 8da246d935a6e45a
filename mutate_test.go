package labgo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/labgo/docval"
)

// treeFixture builds a small tree:
//
//	/a            (dir)
//	/a/x          (exp)
//	/a/sub        (dir)
//	/a/sub/y      (exp)
//	/b            (dir)
func treeFixture(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.CreateDir(ctx, "/a", nil))
	_, err := s.CreateExperiment(ctx, "/a", "x", docval.Map{"k": docval.Int(1)}, nil)
	require.NoError(t, err)
	require.NoError(t, s.CreateDir(ctx, "/a/sub", nil))
	_, err = s.CreateExperiment(ctx, "/a/sub", "y", nil, nil)
	require.NoError(t, err)
	require.NoError(t, s.CreateDir(ctx, "/b", nil))
}

func TestDeleteSubtree(t *testing.T) {
	s := newTestStore(t)
	treeFixture(t, s)
	ctx := context.Background()

	stats, err := s.Delete(ctx, "/a", false)
	require.NoError(t, err)
	assert.Equal(t, Stats{Experiments: 2, Directories: 2}, stats)

	for _, p := range []string{"/a", "/a/x", "/a/sub", "/a/sub/y"} {
		ok, err := s.PathExists(ctx, p)
		require.NoError(t, err)
		assert.False(t, ok, p)
	}
	ok, err := s.DirExists(ctx, "/b")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDeleteSingleExperiment(t *testing.T) {
	s := newTestStore(t)
	treeFixture(t, s)
	ctx := context.Background()

	stats, err := s.Delete(ctx, "/a/x", false)
	require.NoError(t, err)
	assert.Equal(t, Stats{Experiments: 1}, stats)

	ok, err := s.DirExists(ctx, "/a")
	require.NoError(t, err)
	assert.True(t, ok, "parent survives")
}

func TestDeleteWildcard(t *testing.T) {
	s := newTestStore(t)
	treeFixture(t, s)
	ctx := context.Background()

	stats, err := s.Delete(ctx, "/a/*", false)
	require.NoError(t, err)
	assert.Equal(t, Stats{Experiments: 2, Directories: 1}, stats)

	ok, err := s.DirExists(ctx, "/a")
	require.NoError(t, err)
	assert.True(t, ok, "the parent itself is retained")

	// Each child goes with its whole subtree.
	for _, p := range []string{"/a/x", "/a/sub", "/a/sub/y"} {
		ok, err = s.PathExists(ctx, p)
		require.NoError(t, err)
		assert.False(t, ok, p)
	}
}

func TestDeleteWildcardRemovesNestedSubtrees(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateDir(ctx, "/a", nil))
	require.NoError(t, s.CreateDir(ctx, "/a/sub", nil))
	require.NoError(t, s.CreateDir(ctx, "/a/sub/deep", nil))
	_, err := s.CreateExperiment(ctx, "/a/sub", "exp", nil, nil)
	require.NoError(t, err)

	stats, err := s.Delete(ctx, "/a/*", false)
	require.NoError(t, err)
	assert.Equal(t, Stats{Experiments: 1, Directories: 2}, stats)

	for _, p := range []string{"/a/sub", "/a/sub/deep", "/a/sub/exp"} {
		ok, err := s.PathExists(ctx, p)
		require.NoError(t, err)
		assert.False(t, ok, "no document may survive under a deleted parent: %s", p)
	}

	ok, err := s.DirExists(ctx, "/a")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDeleteDryRun(t *testing.T) {
	s := newTestStore(t)
	treeFixture(t, s)
	ctx := context.Background()

	stats, err := s.Delete(ctx, "/a", true)
	require.NoError(t, err)
	assert.Equal(t, Stats{Experiments: 2, Directories: 2}, stats)

	ok, err := s.DirExists(ctx, "/a")
	require.NoError(t, err)
	assert.True(t, ok, "dry run must not delete")
}

func TestDeleteMissing(t *testing.T) {
	s := newTestStore(t)
	treeFixture(t, s)
	ctx := context.Background()

	_, err := s.Delete(ctx, "/nope", false)
	assert.ErrorIs(t, err, ErrNotFound)

	// Dry run mirrors the real operation.
	_, err = s.Delete(ctx, "/nope", true)
	assert.ErrorIs(t, err, ErrNotFound)

	// The wildcard form tolerates an empty directory.
	stats, err := s.Delete(ctx, "/b/*", false)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
}

func TestDeleteCleansUpPayloads(t *testing.T) {
	s, blobs := newBlobStore(t, 64)
	ctx := context.Background()

	require.NoError(t, s.CreateDir(ctx, "/proj", nil))
	_, err := s.CreateExperiment(ctx, "/proj", "run", docval.Map{
		"weights": docval.TensorValue(bigTensor(t, 100)),
	}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, blobs.Len())

	_, err = s.Delete(ctx, "/proj", false)
	require.NoError(t, err)
	assert.Equal(t, 0, blobs.Len(), "payloads go with their documents")
}

func TestDeleteWildcardCleansUpNestedPayloads(t *testing.T) {
	s, blobs := newBlobStore(t, 64)
	ctx := context.Background()

	require.NoError(t, s.CreateDir(ctx, "/proj", nil))
	require.NoError(t, s.CreateDir(ctx, "/proj/sub", nil))
	_, err := s.CreateExperiment(ctx, "/proj/sub", "run", docval.Map{
		"weights": docval.TensorValue(bigTensor(t, 100)),
	}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, blobs.Len())

	stats, err := s.Delete(ctx, "/proj/*", false)
	require.NoError(t, err)
	assert.Equal(t, Stats{Experiments: 1, Directories: 1}, stats)
	assert.Equal(t, 0, blobs.Len(), "grandchild payloads go with their documents")
}

func TestMoveExperiment(t *testing.T) {
	s := newTestStore(t)
	treeFixture(t, s)
	ctx := context.Background()

	stats, err := s.Move(ctx, "/a/x", "/b/x", false)
	require.NoError(t, err)
	assert.Equal(t, Stats{Experiments: 1}, stats)

	exps, err := s.GetExperiments(ctx, "/b/x", QueryOptions{})
	require.NoError(t, err)
	require.Len(t, exps, 1)
	assert.Equal(t, docval.Int(1), exps[0].Data["k"])

	ok, err := s.PathExists(ctx, "/a/x")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMoveSubtreeRewritesPrefix(t *testing.T) {
	s := newTestStore(t)
	treeFixture(t, s)
	ctx := context.Background()

	stats, err := s.Move(ctx, "/a", "/b/a2", false)
	require.NoError(t, err)
	assert.Equal(t, Stats{Experiments: 2, Directories: 2}, stats)

	for _, p := range []string{"/b/a2", "/b/a2/sub"} {
		ok, err := s.DirExists(ctx, p)
		require.NoError(t, err)
		assert.True(t, ok, p)
	}
	for _, p := range []string{"/b/a2/x", "/b/a2/sub/y"} {
		ok, err := s.PathExists(ctx, p)
		require.NoError(t, err)
		assert.True(t, ok, p)
	}
	ok, err := s.PathExists(ctx, "/a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMoveWildcard(t *testing.T) {
	s := newTestStore(t)
	treeFixture(t, s)
	ctx := context.Background()

	stats, err := s.Move(ctx, "/a/*", "/b", false)
	require.NoError(t, err)
	assert.Equal(t, Stats{Experiments: 2, Directories: 1}, stats)

	ok, err := s.DirExists(ctx, "/a")
	require.NoError(t, err)
	assert.True(t, ok, "the source directory stays behind, empty")

	for _, p := range []string{"/b/x", "/b/sub", "/b/sub/y"} {
		ok, err := s.PathExists(ctx, p)
		require.NoError(t, err)
		assert.True(t, ok, p)
	}
}

func TestMoveWildcardNeedsDirDest(t *testing.T) {
	s := newTestStore(t)
	treeFixture(t, s)

	_, err := s.Move(context.Background(), "/a/*", "/nope", false)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMoveConflictsAndInvalids(t *testing.T) {
	s := newTestStore(t)
	treeFixture(t, s)
	ctx := context.Background()

	_, err := s.Move(ctx, "/", "/b/root", false)
	assert.ErrorIs(t, err, ErrInvalidPath)

	_, err = s.Move(ctx, "/a", "/b", false)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = s.Move(ctx, "/nope", "/b/nope", false)
	assert.ErrorIs(t, err, ErrNotFound)

	// The destination parent must exist.
	_, err = s.Move(ctx, "/a/x", "/missing/x", false)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMoveDryRun(t *testing.T) {
	s := newTestStore(t)
	treeFixture(t, s)
	ctx := context.Background()

	stats, err := s.Move(ctx, "/a", "/b/a2", true)
	require.NoError(t, err)
	assert.Equal(t, Stats{Experiments: 2, Directories: 2}, stats)

	ok, err := s.DirExists(ctx, "/a")
	require.NoError(t, err)
	assert.True(t, ok, "dry run must not move")
}

func TestMoveParallelSafety(t *testing.T) {
	s := newTestStore(t, WithParallelism(4))
	ctx := context.Background()

	require.NoError(t, s.CreateDir(ctx, "/src", nil))
	require.NoError(t, s.CreateDir(ctx, "/dst", nil))
	for i := 0; i < 20; i++ {
		_, err := s.CreateExperiment(ctx, "/src", "", nil, nil)
		require.NoError(t, err)
	}

	stats, err := s.Move(ctx, "/src", "/dst/moved", false)
	require.NoError(t, err)
	assert.Equal(t, Stats{Experiments: 20, Directories: 1}, stats)

	n, err := s.CountExperiments(ctx, "/dst/moved")
	require.NoError(t, err)
	assert.Equal(t, 20, n)
}

package labgo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/labgo/arrays"
	"github.com/hupe1980/labgo/blobstore"
	"github.com/hupe1980/labgo/docval"
)

func bigTensor(t *testing.T, n int) *docval.Tensor {
	t.Helper()
	values := make([]float64, n)
	for i := range values {
		values[i] = float64(i)
	}
	tensor, err := docval.TensorFromFloat64s([]int{n}, values)
	require.NoError(t, err)
	return tensor
}

// newBlobStore builds a store whose oversized arrays land in an
// in-memory blob store.
func newBlobStore(t *testing.T, threshold int) (*Store, *blobstore.MemoryStore) {
	t.Helper()
	blobs := blobstore.NewMemoryStore()
	serializer, err := arrays.New(arrays.Config{
		Mode:            arrays.ModeBlobStore,
		Blobs:           blobs,
		InlineThreshold: threshold,
	})
	require.NoError(t, err)
	return newTestStore(t, WithArraySerializer(serializer)), blobs
}

func TestCreateExperimentNamed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateDir(ctx, "/proj", nil))

	path, err := s.CreateExperiment(ctx, "/proj", "baseline", docval.Map{
		"lr": docval.Float(0.01),
	}, docval.Map{"tag": docval.String("v1")})
	require.NoError(t, err)
	assert.Equal(t, "/proj/baseline", path)

	_, err = s.CreateExperiment(ctx, "/proj", "baseline", nil, nil)
	assert.ErrorIs(t, err, ErrConflict)

	// A directory name collides too.
	require.NoError(t, s.CreateDir(ctx, "/proj/sub", nil))
	_, err = s.CreateExperiment(ctx, "/proj", "sub", nil, nil)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestCreateExperimentAutoName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateDir(ctx, "/proj", nil))

	for i, want := range []string{"/proj/0", "/proj/1", "/proj/2"} {
		path, err := s.CreateExperiment(ctx, "/proj", "", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, want, path, "experiment %d", i)
	}

	n, err := s.CountExperiments(ctx, "/proj")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestCreateExperimentAutoNameNeverReuses(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateDir(ctx, "/proj", nil))
	for i := 0; i < 3; i++ {
		_, err := s.CreateExperiment(ctx, "/proj", "", nil, nil)
		require.NoError(t, err)
	}

	// Deleting a lower name must not resurrect it.
	_, err := s.Delete(ctx, "/proj/0", false)
	require.NoError(t, err)

	path, err := s.CreateExperiment(ctx, "/proj", "", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "/proj/3", path)
}

func TestCreateExperimentAutoNameSkipsDirs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateDir(ctx, "/proj", nil))
	_, err := s.CreateExperiment(ctx, "/proj", "", nil, nil)
	require.NoError(t, err)
	require.NoError(t, s.CreateDir(ctx, "/proj/1", nil))

	path, err := s.CreateExperiment(ctx, "/proj", "", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "/proj/2", path)
}

func TestCreateExperimentAtRoot(t *testing.T) {
	s := newTestStore(t)
	path, err := s.CreateExperiment(context.Background(), "/", "", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "/0", path)
}

func TestCreateExperimentMissingDir(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateExperiment(context.Background(), "/nope", "run", nil, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateExperimentOffloadsArrays(t *testing.T) {
	s, blobs := newBlobStore(t, 64)
	ctx := context.Background()

	require.NoError(t, s.CreateDir(ctx, "/proj", nil))
	tensor := bigTensor(t, 100)
	path, err := s.CreateExperiment(ctx, "/proj", "run", docval.Map{
		"weights": docval.TensorValue(tensor),
		"lr":      docval.Float(0.01),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, blobs.Len())

	exps, err := s.GetExperiments(ctx, path, QueryOptions{})
	require.NoError(t, err)
	require.Len(t, exps, 1)

	got, ok := exps[0].Data["weights"].AsTensor()
	require.True(t, ok)
	assert.True(t, tensor.Equal(got))
	assert.Equal(t, docval.Float(0.01), exps[0].Data["lr"])
}

func TestCreateExperimentOversizedWithoutStorage(t *testing.T) {
	serializer, err := arrays.New(arrays.Config{InlineThreshold: 64})
	require.NoError(t, err)
	s := newTestStore(t, WithArraySerializer(serializer))
	ctx := context.Background()

	_, err = s.CreateExperiment(ctx, "/", "run", docval.Map{
		"weights": docval.TensorValue(bigTensor(t, 100)),
	}, nil)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestAddExperimentData(t *testing.T) {
	s, blobs := newBlobStore(t, 64)
	ctx := context.Background()

	path, err := s.CreateExperiment(ctx, "/", "run", docval.Map{
		"lr": docval.Float(0.01),
	}, nil)
	require.NoError(t, err)

	require.NoError(t, s.AddExperimentData(ctx, path, "result.acc", docval.Float(0.93)))
	require.NoError(t, s.AddExperimentData(ctx, path, "weights", docval.TensorValue(bigTensor(t, 100))))
	assert.Equal(t, 1, blobs.Len())

	exps, err := s.GetExperiments(ctx, path, QueryOptions{})
	require.NoError(t, err)
	require.Len(t, exps, 1)

	data := exps[0].Data
	assert.Equal(t, docval.Float(0.01), data["lr"])
	acc, ok := data["result"].O["acc"].AsFloat64()
	require.True(t, ok)
	assert.InDelta(t, 0.93, acc, 1e-9)
	_, ok = data["weights"].AsTensor()
	assert.True(t, ok)

	err = s.AddExperimentData(ctx, "/nope", "k", docval.Int(1))
	assert.ErrorIs(t, err, ErrNotFound)

	// A missing experiment must not leave an uploaded payload behind.
	err = s.AddExperimentData(ctx, "/nope", "weights", docval.TensorValue(bigTensor(t, 100)))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, blobs.Len())
}

func TestExperimentNotes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	path, err := s.CreateExperiment(ctx, "/", "run", nil, docval.Map{
		"status": docval.String("started"),
	})
	require.NoError(t, err)

	// Per-key update keeps unrelated keys.
	require.NoError(t, s.AddExperimentNote(ctx, path, "epoch", docval.Int(3)))
	require.NoError(t, s.AddExperimentNote(ctx, path, "status", docval.String("running")))

	exps, err := s.GetExperiments(ctx, path, QueryOptions{})
	require.NoError(t, err)
	require.Len(t, exps, 1)
	assert.Equal(t, docval.Map{
		"status": docval.String("running"),
		"epoch":  docval.Int(3),
	}, exps[0].Notes)

	// Wholesale replacement drops the rest.
	require.NoError(t, s.UpdateExperimentNotes(ctx, path, docval.Map{
		"status": docval.String("done"),
	}))
	exps, err = s.GetExperiments(ctx, path, QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, docval.Map{"status": docval.String("done")}, exps[0].Notes)
}

func TestLatestNotes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateDir(ctx, "/proj", nil))

	notes, err := s.LatestNotes(ctx, "/proj")
	require.NoError(t, err)
	assert.Empty(t, notes)

	_, err = s.CreateExperiment(ctx, "/proj", "", nil, docval.Map{"gen": docval.Int(1)})
	require.NoError(t, err)
	_, err = s.CreateExperiment(ctx, "/proj", "", nil, docval.Map{"gen": docval.Int(2)})
	require.NoError(t, err)

	notes, err = s.LatestNotes(ctx, "/proj")
	require.NoError(t, err)
	assert.Equal(t, docval.Map{"gen": docval.Int(2)}, notes)

	_, err = s.LatestNotes(ctx, "/nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCountExperiments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateDir(ctx, "/proj", nil))
	require.NoError(t, s.CreateDir(ctx, "/proj/sub", nil))
	for i := 0; i < 2; i++ {
		_, err := s.CreateExperiment(ctx, "/proj", "", nil, nil)
		require.NoError(t, err)
	}
	_, err := s.CreateExperiment(ctx, "/proj/sub", "", nil, nil)
	require.NoError(t, err)

	n, err := s.CountExperiments(ctx, "/proj")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "nested experiments are not counted")
}

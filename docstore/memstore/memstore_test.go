package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/labgo/docstore"
	"github.com/hupe1980/labgo/docstore/storetest"
	"github.com/hupe1980/labgo/docval"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) docstore.Store {
		return New()
	})
}

func TestReturnedDocumentsAreDetached(t *testing.T) {
	ctx := context.Background()
	s := New()
	c := s.Experiments()

	require.NoError(t, c.Insert(ctx, docstore.Document{
		Kind: docstore.KindExperiment,
		Path: "/e/0",
		Data: docval.Map{"n": docval.Int(1)},
	}))

	got, err := c.Get(ctx, "/e/0")
	require.NoError(t, err)
	got.Data["n"] = docval.Int(99)

	again, err := c.Get(ctx, "/e/0")
	require.NoError(t, err)
	assert.Equal(t, docval.Int(1), again.Data["n"])
}

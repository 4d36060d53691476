package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gisdoc/internal/crdt"
	"github.com/roach88/gisdoc/internal/document"
	"github.com/roach88/gisdoc/internal/ir"
)

func TestWriteOps_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	ops := []crdt.Op{
		setOp(1, "a", "L1", `{"name":"one","type":"RasterLayer","visible":true}`),
		setOp(2, "a", "L2", `{"name":"two","type":"RasterLayer","visible":true}`),
	}

	n, err := s.WriteOps(ctx, "doc", ops)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.WriteOps(ctx, "doc", ops)
	require.NoError(t, err)
	assert.Zero(t, n, "redelivered ops are skipped")

	count, err := s.CountOps(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestWriteOps_RejectsInvalid(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	bad := setOp(0, "", "L1", `{}`)
	_, err := s.WriteOps(ctx, "doc", []crdt.Op{setOp(1, "a", "L1", `1`), bad})
	require.ErrorIs(t, err, crdt.ErrInvalidOp)

	count, err := s.CountOps(ctx, "doc")
	require.NoError(t, err)
	assert.Zero(t, count, "the batch is all or nothing")

	_, err = s.WriteOps(ctx, "", []crdt.Op{setOp(1, "a", "L1", `1`)})
	assert.Error(t, err)
}

func TestReadOps_CausalOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.WriteOps(ctx, "doc", []crdt.Op{
		setOp(3, "a", "k", `3`),
		setOp(1, "b", "k", `1`),
		setOp(2, "B", "k", `2`),
		setOp(2, "a", "k", `2`),
	})
	require.NoError(t, err)
	_, err = s.WriteOps(ctx, "other", []crdt.Op{setOp(1, "z", "k", `1`)})
	require.NoError(t, err)

	ops, err := s.ReadOps(ctx, "doc")
	require.NoError(t, err)
	var ids []string
	for _, op := range ops {
		ids = append(ids, op.ID.String())
	}
	assert.Equal(t, []string{"1@b", "2@B", "2@a", "3@a"}, ids)

	empty, err := s.ReadOps(ctx, "missing")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestListDocumentsAndStateVector(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.WriteOps(ctx, "beta", []crdt.Op{setOp(1, "a", "k", `1`), setOp(4, "a", "k", `2`), setOp(2, "b", "k", `3`)})
	require.NoError(t, err)
	_, err = s.WriteOps(ctx, "alpha", []crdt.Op{setOp(1, "a", "k", `1`)})
	require.NoError(t, err)

	docs, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, docs)

	sv, err := s.StateVector(ctx, "beta")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"a": 4, "b": 2}, sv)

	n, err := s.DeleteDocument(ctx, "beta")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	docs, err = s.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha"}, docs)
}

// A document rebuilt from the stored log matches the one that wrote it.
func TestRoundTripDocument(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	src := document.New(document.WithReplicaID("a"))
	require.NoError(t, src.AddLayer("L1", ir.Layer{Name: "Base", Type: ir.LayerTypeRaster, Visible: true}))
	require.NoError(t, src.AddLayerTreeItem(-1, ir.Leaf("L1")))
	require.NoError(t, src.AddLayerTreeItem(0, ir.Group("G")))
	require.NoError(t, src.SetOption("zoom", 4))
	src.RemoveLayer("L1")

	_, err := s.WriteOps(ctx, "doc", src.Log())
	require.NoError(t, err)

	ops, err := s.ReadOps(ctx, "doc")
	require.NoError(t, err)
	dst := document.New(document.WithReplicaID("b"))
	require.NoError(t, dst.LoadUpdates(ops))
	assert.Zero(t, dst.Pending())

	want, err := src.StateHash()
	require.NoError(t, err)
	got, err := dst.StateHash()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

package document

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/gisdoc/internal/ir"
)

func newTestDoc(t *testing.T, replica string) *Document {
	t.Helper()
	return New(
		WithReplicaID(replica),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func rasterLayer(name string) ir.Layer {
	return ir.Layer{Name: name, Type: ir.LayerTypeRaster, Visible: true}
}

// exchange delivers each document's full log to the other.
func exchange(t *testing.T, a, b *Document) {
	t.Helper()
	require.NoError(t, b.LoadUpdates(a.Log()))
	require.NoError(t, a.LoadUpdates(b.Log()))
}

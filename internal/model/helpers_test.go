package model

import (
	"testing"

	"github.com/roach88/gisdoc/internal/ir"
	"github.com/roach88/gisdoc/internal/testutil"
)

func newTestModel(t *testing.T, replica string, opts ...Option) *Model {
	t.Helper()
	m := New(testutil.NewDocument(replica), nil, opts...)
	t.Cleanup(m.Close)
	return m
}

func raster(name string) ir.Layer {
	return ir.Layer{Name: name, Type: ir.LayerTypeRaster, Visible: true}
}

// exchange delivers each model's full op log to the other.
func exchange(t *testing.T, a, b *Model) {
	t.Helper()
	testutil.Exchange(t, a.Document(), b.Document())
}

func requireConverged(t *testing.T, a, b *Model) {
	t.Helper()
	testutil.RequireConverged(t, a.Document(), b.Document())
}

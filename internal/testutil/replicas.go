package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/gisdoc/internal/document"
)

// NewDocument returns an empty, silent document with a fixed replica id.
// Replica ids break ties between concurrent ops, so tests that assert a
// merge order need them fixed.
func NewDocument(replica string) *document.Document {
	return document.New(document.WithReplicaID(replica), document.WithLogger(Logger()))
}

// Exchange delivers every document's full op log to every other document.
func Exchange(t testing.TB, docs ...*document.Document) {
	t.Helper()
	for i, from := range docs {
		ops := from.Log()
		for j, to := range docs {
			if i == j {
				continue
			}
			require.NoError(t, to.LoadUpdates(ops), "deliver %s to %s", from.ReplicaID(), to.ReplicaID())
		}
	}
}

// RequireConverged fails t unless every document has no pending ops and the
// same state hash as the first.
func RequireConverged(t testing.TB, docs ...*document.Document) {
	t.Helper()
	require.NotEmpty(t, docs)

	want, err := docs[0].StateHash()
	require.NoError(t, err)
	for _, d := range docs {
		require.Zero(t, d.Pending(), "%s has pending ops", d.ReplicaID())
		got, err := d.StateHash()
		require.NoError(t, err)
		require.Equal(t, docs[0].LayerTree(), d.LayerTree(), "%s layer tree", d.ReplicaID())
		require.Equal(t, want, got, "%s state hash", d.ReplicaID())
	}
}

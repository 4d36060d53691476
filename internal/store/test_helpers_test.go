package store

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/gisdoc/internal/crdt"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// setOp builds a layers set op with the given id.
func setOp(counter int64, replica, key, value string) crdt.Op {
	return crdt.Op{
		ID:         crdt.Timestamp{Counter: counter, Replica: replica},
		Collection: crdt.CollectionLayers,
		Kind:       crdt.OpSet,
		Key:        key,
		Value:      json.RawMessage(value),
	}
}

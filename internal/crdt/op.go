package crdt

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Collection names one of the four shared collections of a document.
type Collection string

const (
	CollectionLayers    Collection = "layers"
	CollectionSources   Collection = "sources"
	CollectionOptions   Collection = "options"
	CollectionLayerTree Collection = "layerTree"
)

// Collections lists every collection in the order observers are notified.
var Collections = []Collection{
	CollectionLayers,
	CollectionSources,
	CollectionLayerTree,
	CollectionOptions,
}

// IsMap reports whether c is a keyed collection.
func (c Collection) IsMap() bool {
	return c == CollectionLayers || c == CollectionSources || c == CollectionOptions
}

// OpKind is the primitive mutation an Op carries.
type OpKind string

const (
	OpSet    OpKind = "set"    // map: write key
	OpDelete OpKind = "delete" // map: tombstone key
	OpInsert OpKind = "insert" // sequence: insert after Ref
	OpRemove OpKind = "remove" // sequence: tombstone Ref
)

// Op is a single replicated mutation.
type Op struct {
	ID         Timestamp       `json:"id"`
	Collection Collection      `json:"collection"`
	Kind       OpKind          `json:"kind"`
	Key        string          `json:"key,omitempty"`
	Ref        Timestamp       `json:"ref,omitzero"`
	Value      json.RawMessage `json:"value,omitempty"`
}

// Update is the unit replicas exchange: the ops one transaction produced,
// or a batch of ops from a log.
type Update struct {
	Origin string `json:"origin"`
	Ops    []Op   `json:"ops"`
}

// ErrInvalidOp is wrapped by every Op validation failure.
var ErrInvalidOp = errors.New("invalid op")

// Validate checks that the op is well formed for its collection.
func (o Op) Validate() error {
	if o.ID.Counter <= 0 || o.ID.Replica == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidOp)
	}
	switch {
	case o.Collection.IsMap():
		if o.Kind != OpSet && o.Kind != OpDelete {
			return fmt.Errorf("%w: %s on map collection %s", ErrInvalidOp, o.Kind, o.Collection)
		}
		if o.Key == "" {
			return fmt.Errorf("%w: %s %s without key", ErrInvalidOp, o.Collection, o.Kind)
		}
		if o.Kind == OpSet && len(o.Value) == 0 {
			return fmt.Errorf("%w: set %s/%s without value", ErrInvalidOp, o.Collection, o.Key)
		}
	case o.Collection == CollectionLayerTree:
		switch o.Kind {
		case OpInsert:
			if len(o.Value) == 0 {
				return fmt.Errorf("%w: insert without value", ErrInvalidOp)
			}
		case OpRemove:
			if o.Ref.IsZero() {
				return fmt.Errorf("%w: remove without target", ErrInvalidOp)
			}
		default:
			return fmt.Errorf("%w: %s on sequence", ErrInvalidOp, o.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown collection %q", ErrInvalidOp, o.Collection)
	}
	return nil
}

// Change describes the visible effect of one integrated op.
//
// Map changes fill Key, Value and Deleted; Existed reports whether the key
// was visible before. Sequence changes fill Index, Removed and Inserted as
// an edit on the visible sequence.
type Change struct {
	Collection Collection

	Key     string
	Value   json.RawMessage
	Deleted bool
	Existed bool

	Index    int
	Removed  int
	Inserted []json.RawMessage
}

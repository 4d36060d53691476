package document

import (
	"github.com/roach88/gisdoc/internal/crdt"
	"github.com/roach88/gisdoc/internal/ir"
)

// Action is what happened to a key.
type Action string

const (
	ActionAdd    Action = "add"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// KeyChange is the delta for one key of a keyed collection. Value is the
// zero value when Action is ActionDelete.
type KeyChange[V any] struct {
	ID     string
	Action Action
	Value  V
}

// KeyEvent carries every key a single update touched, in first-touch order.
// Local is false for changes that arrived through ApplyUpdate.
type KeyEvent[V any] struct {
	Changes []KeyChange[V]
	Local   bool
}

type (
	LayersEvent  = KeyEvent[ir.Layer]
	SourcesEvent = KeyEvent[ir.Source]
	OptionsEvent = KeyEvent[any]
)

// TreeEdit is one edit of the root sequence: at Index, Deleted items were
// removed and then Inserted were inserted. Edits apply in order, each to the
// result of the previous one.
type TreeEdit struct {
	Index    int
	Deleted  int
	Inserted []ir.LayerTreeItem
}

// TreeEvent carries the root sequence edits of a single update.
type TreeEvent struct {
	Edits []TreeEdit
	Local bool
}

// UpdateEvent carries the ops a local transaction produced, for transport.
type UpdateEvent struct {
	Update crdt.Update
}

package document

import (
	"encoding/json"

	"github.com/roach88/gisdoc/internal/crdt"
	"github.com/roach88/gisdoc/internal/ir"
)

// publish turns integrated changes into one event per touched collection.
// Must be called without d.mu held.
func (d *Document) publish(changes []crdt.Change, local bool) {
	if len(changes) == 0 {
		return
	}
	byCollection := make(map[crdt.Collection][]crdt.Change)
	for _, c := range changes {
		byCollection[c.Collection] = append(byCollection[c.Collection], c)
	}

	for _, coll := range crdt.Collections {
		cs := byCollection[coll]
		if len(cs) == 0 {
			continue
		}
		switch coll {
		case crdt.CollectionLayers:
			if kc := collapse(cs, decodeAs[ir.Layer]); len(kc) > 0 {
				d.layersChanged.Emit(LayersEvent{Changes: kc, Local: local})
			}
		case crdt.CollectionSources:
			if kc := collapse(cs, decodeAs[ir.Source]); len(kc) > 0 {
				d.sourcesChanged.Emit(SourcesEvent{Changes: kc, Local: local})
			}
		case crdt.CollectionLayerTree:
			d.layerTreeChanged.Emit(TreeEvent{Edits: treeEdits(cs), Local: local})
		case crdt.CollectionOptions:
			if kc := collapse(cs, ir.DecodeValue); len(kc) > 0 {
				d.optionsChanged.Emit(OptionsEvent{Changes: kc, Local: local})
			}
		}
	}
}

func decodeAs[V any](raw []byte) (V, error) {
	var v V
	err := ir.Decode(raw, &v)
	return v, err
}

// collapse folds several changes of one key into a single delta: a key added
// and deleted in the same update disappears entirely.
func collapse[V any](changes []crdt.Change, decode func([]byte) (V, error)) []KeyChange[V] {
	type span struct{ first, last crdt.Change }
	var order []string
	spans := make(map[string]*span)
	for _, c := range changes {
		s, ok := spans[c.Key]
		if !ok {
			s = &span{first: c}
			spans[c.Key] = s
			order = append(order, c.Key)
		}
		s.last = c
	}

	out := make([]KeyChange[V], 0, len(order))
	for _, key := range order {
		s := spans[key]
		kc := KeyChange[V]{ID: key}
		switch {
		case s.last.Deleted && !s.first.Existed:
			continue
		case s.last.Deleted:
			kc.Action = ActionDelete
		case s.first.Existed:
			kc.Action = ActionUpdate
		default:
			kc.Action = ActionAdd
		}
		if !s.last.Deleted {
			if v, err := decode(s.last.Value); err == nil {
				kc.Value = v
			}
		}
		out = append(out, kc)
	}
	return out
}

// treeEdits converts primitive sequence changes into ordered edits, merging
// a removal immediately followed by an insertion at the same position.
func treeEdits(changes []crdt.Change) []TreeEdit {
	var edits []TreeEdit
	for _, c := range changes {
		items := decodeItems(c.Inserted)
		if n := len(edits); n > 0 {
			last := &edits[n-1]
			if c.Removed == 0 && c.Index == last.Index+len(last.Inserted) {
				last.Inserted = append(last.Inserted, items...)
				continue
			}
			if len(last.Inserted) == 0 && c.Index == last.Index {
				last.Deleted += c.Removed
				last.Inserted = items
				continue
			}
		}
		edits = append(edits, TreeEdit{Index: c.Index, Deleted: c.Removed, Inserted: items})
	}
	return edits
}

func decodeItems(raws []json.RawMessage) []ir.LayerTreeItem {
	items := make([]ir.LayerTreeItem, 0, len(raws))
	for _, raw := range raws {
		if item, err := decodeTreeItem(raw); err == nil {
			items = append(items, item)
		}
	}
	return items
}

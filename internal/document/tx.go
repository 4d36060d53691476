package document

import (
	"encoding/json"
	"maps"
	"slices"

	"github.com/roach88/gisdoc/internal/crdt"
	"github.com/roach88/gisdoc/internal/ir"
)

// Tx is the handle a Transact callback mutates the document through.
//
// Every mutating method checks its preconditions before it touches the
// replica, so a rejected call changes nothing. Calls that succeeded earlier
// in the same callback stay applied even if the callback later returns an
// error: replicated ops cannot be withdrawn once stamped.
type Tx struct {
	doc     *Document
	ops     []crdt.Op
	changes []crdt.Change
}

// Transact runs fn with the document locked, then emits one change event per
// touched collection and a single LocalUpdate carrying every op fn produced.
func (d *Document) Transact(fn func(*Tx) error) error {
	d.mu.Lock()
	tx := &Tx{doc: d}
	err := fn(tx)
	d.mu.Unlock()

	if len(tx.ops) > 0 {
		d.logger.Debug("local transaction", "ops", len(tx.ops), "changes", len(tx.changes))
	}
	d.publish(tx.changes, true)
	if len(tx.ops) > 0 {
		d.localUpdate.Emit(UpdateEvent{Update: crdt.Update{Origin: d.replica.ID(), Ops: tx.ops}})
	}
	return err
}

func (tx *Tx) record(op crdt.Op, change crdt.Change, changed bool) {
	tx.ops = append(tx.ops, op)
	if changed {
		tx.changes = append(tx.changes, change)
	}
}

func (tx *Tx) set(c crdt.Collection, key string, v any) error {
	raw, err := ir.MarshalCanonical(v)
	if err != nil {
		return NewError(ErrCodeInvalid, key, "encode %s value: %v", c, err)
	}
	m := tx.doc.replica.Map(c)
	if sameValue(m, key, raw) {
		return nil
	}
	op, change := tx.doc.replica.Set(c, key, raw)
	tx.record(op, change, true)
	return nil
}

func (tx *Tx) delete(c crdt.Collection, key string) {
	if !tx.doc.replica.Map(c).Has(key) {
		return
	}
	op, change, changed := tx.doc.replica.Delete(c, key)
	tx.record(op, change, changed)
}

// Layer returns the layer with the given id.
func (tx *Tx) Layer(id string) (ir.Layer, bool) { return tx.doc.layer(id) }

// LayerExists reports whether a layer with the given id exists.
func (tx *Tx) LayerExists(id string) bool {
	return tx.doc.replica.Map(crdt.CollectionLayers).Has(id)
}

// Source returns the source with the given id.
func (tx *Tx) Source(id string) (ir.Source, bool) { return tx.doc.source(id) }

// SourceExists reports whether a source with the given id exists.
func (tx *Tx) SourceExists(id string) bool {
	return tx.doc.replica.Map(crdt.CollectionSources).Has(id)
}

// Layers returns a copy of every layer keyed by id.
func (tx *Tx) Layers() map[string]ir.Layer { return tx.doc.layers() }

// Sources returns a copy of every source keyed by id.
func (tx *Tx) Sources() map[string]ir.Source { return tx.doc.sources() }

// LayerTree returns a deep copy of the layer tree as seen inside the
// transaction, including its own earlier edits.
func (tx *Tx) LayerTree() []ir.LayerTreeItem { return tx.doc.layerTree() }

// Options returns a copy of the options.
func (tx *Tx) Options() ir.Options { return tx.doc.options() }

// AddLayer creates a layer. Fails with DUPLICATE_ID if id exists.
func (tx *Tx) AddLayer(id string, layer ir.Layer) error {
	if err := checkLayer(id, layer); err != nil {
		return err
	}
	if tx.LayerExists(id) {
		return NewError(ErrCodeDuplicateID, id, "layer already exists")
	}
	return tx.set(crdt.CollectionLayers, id, layer)
}

// UpdateLayer replaces a layer record. Fails with NOT_FOUND if id is absent.
func (tx *Tx) UpdateLayer(id string, layer ir.Layer) error {
	if err := checkLayer(id, layer); err != nil {
		return err
	}
	if !tx.LayerExists(id) {
		return NewError(ErrCodeNotFound, id, "layer does not exist")
	}
	return tx.set(crdt.CollectionLayers, id, layer)
}

// RemoveLayer deletes a layer record. Absent ids are a no-op and the layer
// tree is not touched.
func (tx *Tx) RemoveLayer(id string) {
	tx.delete(crdt.CollectionLayers, id)
}

// AddSource creates a source. Fails with DUPLICATE_ID if id exists.
func (tx *Tx) AddSource(id string, source ir.Source) error {
	if err := checkSource(id, source); err != nil {
		return err
	}
	if tx.SourceExists(id) {
		return NewError(ErrCodeDuplicateID, id, "source already exists")
	}
	return tx.set(crdt.CollectionSources, id, source)
}

// UpdateSource replaces a source record. Fails with NOT_FOUND if id is
// absent.
func (tx *Tx) UpdateSource(id string, source ir.Source) error {
	if err := checkSource(id, source); err != nil {
		return err
	}
	if !tx.SourceExists(id) {
		return NewError(ErrCodeNotFound, id, "source does not exist")
	}
	return tx.set(crdt.CollectionSources, id, source)
}

// RemoveSource deletes a source record. Absent ids are a no-op; layers that
// reference the source are left dangling.
func (tx *Tx) RemoveSource(id string) {
	tx.delete(crdt.CollectionSources, id)
}

// UpdateObjectParameters replaces the parameters of the layer or source that
// owns id. Fails with NOT_FOUND if neither does.
func (tx *Tx) UpdateObjectParameters(id string, params ir.Parameters) error {
	if l, ok := tx.Layer(id); ok {
		l.Parameters = params.Clone()
		return tx.set(crdt.CollectionLayers, id, l)
	}
	if s, ok := tx.Source(id); ok {
		s.Parameters = params.Clone()
		return tx.set(crdt.CollectionSources, id, s)
	}
	return NewError(ErrCodeNotFound, id, "no layer or source with this id")
}

// AddLayerTreeItem inserts item into the root sequence at index. An index of
// -1 appends.
func (tx *Tx) AddLayerTreeItem(index int, item ir.LayerTreeItem) error {
	n := tx.doc.replica.Tree().Len()
	if index == -1 {
		index = n
	}
	if index < 0 || index > n {
		return NewError(ErrCodeInvalid, "", "tree index %d out of range [0,%d]", index, n)
	}
	raw, err := encodeTreeItem(item)
	if err != nil {
		return err
	}
	op, change, err := tx.doc.replica.Insert(index, raw)
	if err != nil {
		return NewError(ErrCodeInvalid, "", "%v", err)
	}
	tx.record(op, change, true)
	return nil
}

// UpdateLayerTreeItem replaces the root item at index. It is a remove and an
// insert at the same position in one update.
func (tx *Tx) UpdateLayerTreeItem(index int, item ir.LayerTreeItem) error {
	n := tx.doc.replica.Tree().Len()
	if index < 0 || index >= n {
		return NewError(ErrCodeNotFound, "", "no tree item at index %d of %d", index, n)
	}
	raw, err := encodeTreeItem(item)
	if err != nil {
		return err
	}
	ops, change, err := tx.doc.replica.Splice(index, 1, raw)
	if err != nil {
		return NewError(ErrCodeInvalid, "", "%v", err)
	}
	tx.ops = append(tx.ops, ops...)
	tx.changes = append(tx.changes, change)
	return nil
}

// RemoveLayerTreeItem removes the root item at index, with its subtree.
func (tx *Tx) RemoveLayerTreeItem(index int) error {
	n := tx.doc.replica.Tree().Len()
	if index < 0 || index >= n {
		return NewError(ErrCodeNotFound, "", "no tree item at index %d of %d", index, n)
	}
	op, change, err := tx.doc.replica.Remove(index)
	if err != nil {
		return NewError(ErrCodeInvalid, "", "%v", err)
	}
	tx.record(op, change, true)
	return nil
}

// SetOption sets one option.
func (tx *Tx) SetOption(key string, value any) error {
	if key == "" {
		return NewError(ErrCodeInvalid, "", "empty option key")
	}
	return tx.set(crdt.CollectionOptions, key, value)
}

// SetOptions replaces the options: keys absent from opts are deleted.
func (tx *Tx) SetOptions(opts ir.Options) error {
	for _, key := range slices.Sorted(maps.Keys(opts)) {
		if err := tx.SetOption(key, opts[key]); err != nil {
			return err
		}
	}
	for _, key := range tx.doc.replica.Map(crdt.CollectionOptions).Keys() {
		if _, keep := opts[key]; !keep {
			tx.delete(crdt.CollectionOptions, key)
		}
	}
	return nil
}

// replaceAll installs content wholesale: every key not in c is deleted and
// the root sequence is rewritten in one splice.
func (tx *Tx) replaceAll(c ir.Content) error {
	for _, id := range tx.doc.replica.Map(crdt.CollectionLayers).Keys() {
		if _, keep := c.Layers[id]; !keep {
			tx.delete(crdt.CollectionLayers, id)
		}
	}
	for _, id := range slices.Sorted(maps.Keys(c.Layers)) {
		if err := tx.set(crdt.CollectionLayers, id, c.Layers[id]); err != nil {
			return err
		}
	}
	for _, id := range tx.doc.replica.Map(crdt.CollectionSources).Keys() {
		if _, keep := c.Sources[id]; !keep {
			tx.delete(crdt.CollectionSources, id)
		}
	}
	for _, id := range slices.Sorted(maps.Keys(c.Sources)) {
		if err := tx.set(crdt.CollectionSources, id, c.Sources[id]); err != nil {
			return err
		}
	}

	raws := make([]json.RawMessage, 0, len(c.LayerTree))
	for _, item := range c.LayerTree {
		raw, err := encodeTreeItem(item)
		if err != nil {
			return err
		}
		raws = append(raws, raw)
	}
	if n := tx.doc.replica.Tree().Len(); n > 0 || len(raws) > 0 {
		ops, change, err := tx.doc.replica.Splice(0, n, raws...)
		if err != nil {
			return NewError(ErrCodeInvalid, "", "%v", err)
		}
		tx.ops = append(tx.ops, ops...)
		tx.changes = append(tx.changes, change)
	}

	return tx.SetOptions(c.Options)
}

func checkLayer(id string, l ir.Layer) error {
	if id == "" {
		return NewError(ErrCodeInvalid, "", "empty layer id")
	}
	if !l.Type.Valid() {
		return NewError(ErrCodeInvalid, id, "unknown layer type %q", l.Type)
	}
	return nil
}

func checkSource(id string, s ir.Source) error {
	if id == "" {
		return NewError(ErrCodeInvalid, "", "empty source id")
	}
	if !s.Type.Valid() {
		return NewError(ErrCodeInvalid, id, "unknown source type %q", s.Type)
	}
	return nil
}

func checkTreeItem(item ir.LayerTreeItem) error {
	if !item.IsGroup() {
		if item.LayerID == "" {
			return NewError(ErrCodeInvalid, "", "empty layer tree item")
		}
		return nil
	}
	if item.Group.Name == "" {
		return NewError(ErrCodeInvalid, "", "unnamed layer group")
	}
	for _, child := range item.Group.Layers {
		if err := checkTreeItem(child); err != nil {
			return err
		}
	}
	return nil
}

func encodeTreeItem(item ir.LayerTreeItem) (json.RawMessage, error) {
	if err := checkTreeItem(item); err != nil {
		return nil, err
	}
	raw, err := ir.MarshalCanonical(item)
	if err != nil {
		return nil, NewError(ErrCodeInvalid, "", "encode tree item: %v", err)
	}
	return raw, nil
}

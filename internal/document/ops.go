package document

import "github.com/roach88/gisdoc/internal/ir"

// Single-operation wrappers. Each is one transaction and therefore one
// update and one change event.

// AddLayer creates a layer. Fails with DUPLICATE_ID if id exists.
func (d *Document) AddLayer(id string, layer ir.Layer) error {
	return d.Transact(func(tx *Tx) error { return tx.AddLayer(id, layer) })
}

// UpdateLayer replaces a layer. Fails with NOT_FOUND if id is absent.
func (d *Document) UpdateLayer(id string, layer ir.Layer) error {
	return d.Transact(func(tx *Tx) error { return tx.UpdateLayer(id, layer) })
}

// RemoveLayer deletes a layer record; absent ids are a no-op. The layer tree
// is left alone.
func (d *Document) RemoveLayer(id string) {
	_ = d.Transact(func(tx *Tx) error {
		tx.RemoveLayer(id)
		return nil
	})
}

// AddSource creates a source. Fails with DUPLICATE_ID if id exists.
func (d *Document) AddSource(id string, source ir.Source) error {
	return d.Transact(func(tx *Tx) error { return tx.AddSource(id, source) })
}

// UpdateSource replaces a source. Fails with NOT_FOUND if id is absent.
func (d *Document) UpdateSource(id string, source ir.Source) error {
	return d.Transact(func(tx *Tx) error { return tx.UpdateSource(id, source) })
}

// RemoveSource deletes a source record; absent ids are a no-op.
func (d *Document) RemoveSource(id string) {
	_ = d.Transact(func(tx *Tx) error {
		tx.RemoveSource(id)
		return nil
	})
}

// UpdateObjectParameters replaces the parameters of the layer or source
// owning id.
func (d *Document) UpdateObjectParameters(id string, params ir.Parameters) error {
	return d.Transact(func(tx *Tx) error { return tx.UpdateObjectParameters(id, params) })
}

// AddLayerTreeItem inserts item into the root sequence; -1 appends.
func (d *Document) AddLayerTreeItem(index int, item ir.LayerTreeItem) error {
	return d.Transact(func(tx *Tx) error { return tx.AddLayerTreeItem(index, item) })
}

// UpdateLayerTreeItem replaces the root item at index.
func (d *Document) UpdateLayerTreeItem(index int, item ir.LayerTreeItem) error {
	return d.Transact(func(tx *Tx) error { return tx.UpdateLayerTreeItem(index, item) })
}

// RemoveLayerTreeItem removes the root item at index.
func (d *Document) RemoveLayerTreeItem(index int) error {
	return d.Transact(func(tx *Tx) error { return tx.RemoveLayerTreeItem(index) })
}

// SetOption sets one option.
func (d *Document) SetOption(key string, value any) error {
	return d.Transact(func(tx *Tx) error { return tx.SetOption(key, value) })
}

// SetOptions replaces all options.
func (d *Document) SetOptions(opts ir.Options) error {
	return d.Transact(func(tx *Tx) error { return tx.SetOptions(opts) })
}

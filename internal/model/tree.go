package model

import (
	"github.com/roach88/gisdoc/internal/document"
	"github.com/roach88/gisdoc/internal/ir"
	"github.com/roach88/gisdoc/internal/layertree"
)

// AddLayer creates a layer and inserts a leaf for it into the tree, at the
// root or inside the group named with InGroup, at AtIndex or appended.
//
// Fails with DUPLICATE_ID if the layer exists and GROUP_NOT_FOUND if the
// named group does not; in both cases nothing is written.
//
// A leaf left behind by Document.RemoveLayer is reused in place, so the id
// never appears twice in the tree.
func (m *Model) AddLayer(id string, layer ir.Layer, opts ...ItemOption) error {
	p := newPlacement(opts)
	return m.transact(func(tx *document.Tx) error {
		if tx.LayerExists(id) {
			return document.NewError(document.ErrCodeDuplicateID, id, "layer already exists")
		}
		tree := tx.LayerTree()
		parent, err := resolveParent(tree, p.group)
		if err != nil {
			return err
		}
		if err := tx.AddLayer(id, layer); err != nil {
			return err
		}
		if layertree.FindLayerPath(tree, id) != nil {
			return nil
		}
		return insertItem(tx, tree, parent, p.index, ir.Leaf(id))
	})
}

// AddGroup inserts an empty group. Group names are unique across the whole
// tree: DUPLICATE_GROUP if name is taken anywhere, GROUP_NOT_FOUND if the
// parent named with InGroup does not exist.
func (m *Model) AddGroup(name string, opts ...ItemOption) error {
	p := newPlacement(opts)
	return m.transact(func(tx *document.Tx) error {
		if name == "" {
			return document.NewError(document.ErrCodeInvalid, "", "empty group name")
		}
		tree := tx.LayerTree()
		if layertree.ContainsGroup(tree, name) {
			return document.NewError(document.ErrCodeDuplicateGroup, name, "group already exists")
		}
		parent, err := resolveParent(tree, p.group)
		if err != nil {
			return err
		}
		return insertItem(tx, tree, parent, p.index, ir.Group(name))
	})
}

// RemoveLayerGroup removes a group and its whole subtree from the tree.
// Layer records of the removed leaves stay in the store.
func (m *Model) RemoveLayerGroup(name string) error {
	return m.transact(func(tx *document.Tx) error {
		tree := tx.LayerTree()
		path := layertree.FindGroupPath(tree, name)
		if path == nil {
			return document.NewError(document.ErrCodeGroupNotFound, name, "group not found")
		}
		return removeItem(tx, tree, path)
	})
}

// RenameLayerGroup renames a group in place; its children and their order
// are untouched.
func (m *Model) RenameLayerGroup(name, newName string) error {
	return m.transact(func(tx *document.Tx) error {
		if newName == "" {
			return document.NewError(document.ErrCodeInvalid, name, "empty group name")
		}
		tree := tx.LayerTree()
		path := layertree.FindGroupPath(tree, name)
		if path == nil {
			return document.NewError(document.ErrCodeGroupNotFound, name, "group not found")
		}
		if newName == name {
			return nil
		}
		if layertree.ContainsGroup(tree, newName) {
			return document.NewError(document.ErrCodeDuplicateGroup, newName, "group already exists")
		}
		renamed, err := layertree.EditGroup(tree, path, func(g *ir.LayerGroup) { g.Name = newName })
		if err != nil {
			return document.NewError(document.ErrCodeGroupNotFound, name, "%v", err)
		}
		return tx.UpdateLayerTreeItem(path.Root(), renamed[path.Root()])
	})
}

// RemoveLayer deletes a layer and every tree leaf referencing it in one
// update. Only top-level branches that contained a reference are rewritten.
// Absent ids are a no-op.
func (m *Model) RemoveLayer(id string) error {
	return m.transact(func(tx *document.Tx) error {
		tx.RemoveLayer(id)
		tree := tx.LayerTree()
		for i := len(tree) - 1; i >= 0; i-- {
			pruned, drop, changed := layertree.PruneLayer(tree[i], id)
			switch {
			case drop:
				if err := tx.RemoveLayerTreeItem(i); err != nil {
					return err
				}
			case changed:
				if err := tx.UpdateLayerTreeItem(i, pruned); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// MoveItem moves a layer leaf or a group (with its subtree) to a new parent
// and position. The index refers to the parent as it is after the item has
// been taken out.
//
// Fails with NOT_FOUND for an unknown layer leaf, GROUP_NOT_FOUND for an
// unknown group or target, and CYCLE when a group would move into itself or
// one of its descendants.
func (m *Model) MoveItem(ref ItemRef, opts ...ItemOption) error {
	p := newPlacement(opts)
	return m.transact(func(tx *document.Tx) error {
		tree := tx.LayerTree()

		var src layertree.Path
		if ref.Group != "" {
			src = layertree.FindGroupPath(tree, ref.Group)
			if src == nil {
				return document.NewError(document.ErrCodeGroupNotFound, ref.Group, "group not found")
			}
		} else {
			src = layertree.FindLayerPath(tree, ref.LayerID)
			if src == nil {
				return document.NewError(document.ErrCodeNotFound, ref.LayerID, "layer is not in the tree")
			}
		}
		target, err := resolveParent(tree, p.group)
		if err != nil {
			return err
		}
		if ref.Group != "" && p.group != "" && layertree.IsDescendant(target, src) {
			return document.NewError(document.ErrCodeCycle, ref.Group, "cannot move group into %q", p.group)
		}

		item, _ := layertree.ItemAt(tree, src)
		if err := removeItem(tx, tree, src); err != nil {
			return err
		}
		removed := tx.LayerTree()
		target, err = resolveParent(removed, p.group)
		if err != nil {
			return err
		}
		return insertItem(tx, removed, target, p.index, item)
	})
}

// resolveParent returns the path of the named group, or the root path for
// an empty name.
func resolveParent(tree []ir.LayerTreeItem, group string) (layertree.Path, error) {
	if group == "" {
		return nil, nil
	}
	path := layertree.FindGroupPath(tree, group)
	if path == nil {
		return nil, document.NewError(document.ErrCodeGroupNotFound, group, "group not found")
	}
	return path, nil
}

// insertItem inserts item under parent and writes back the top-level branch
// that changed. tree must be the current tree of tx.
func insertItem(tx *document.Tx, tree []ir.LayerTreeItem, parent layertree.Path, index int, item ir.LayerTreeItem) error {
	if len(parent) == 0 {
		if index < 0 || index > len(tree) {
			index = -1
		}
		return tx.AddLayerTreeItem(index, item)
	}
	updated, err := layertree.InsertItem(tree, parent, index, item)
	if err != nil {
		return document.NewError(document.ErrCodeGroupNotFound, "", "%v", err)
	}
	return tx.UpdateLayerTreeItem(parent.Root(), updated[parent.Root()])
}

// removeItem removes the node at path and writes back the top-level branch
// that changed, or removes the root item itself.
func removeItem(tx *document.Tx, tree []ir.LayerTreeItem, path layertree.Path) error {
	if len(path) == 1 {
		return tx.RemoveLayerTreeItem(path.Root())
	}
	updated, err := layertree.RemoveAt(tree, path)
	if err != nil {
		return document.NewError(document.ErrCodeNotFound, "", "%v", err)
	}
	return tx.UpdateLayerTreeItem(path.Root(), updated[path.Root()])
}

package layertree

import (
	"fmt"
	"slices"

	"github.com/roach88/gisdoc/internal/ir"
)

// EditGroup returns a tree in which the group at path has been passed to fn.
// Only the nodes on path are copied; the input tree is not modified.
func EditGroup(tree []ir.LayerTreeItem, path Path, fn func(*ir.LayerGroup)) ([]ir.LayerTreeItem, error) {
	if _, err := ResolveGroup(tree, path); err != nil {
		return nil, err
	}
	return editAt(tree, path, fn), nil
}

func editAt(items []ir.LayerTreeItem, path Path, fn func(*ir.LayerGroup)) []ir.LayerTreeItem {
	out := slices.Clone(items)
	old := out[path[0]].Group
	g := &ir.LayerGroup{Name: old.Name, Layers: old.Layers}
	if len(path) == 1 {
		g.Layers = slices.Clone(old.Layers)
		fn(g)
	} else {
		g.Layers = editAt(old.Layers, path[1:], fn)
	}
	out[path[0]] = ir.LayerTreeItem{Group: g}
	return out
}

// InsertItem inserts item into the group at parent (the root when parent is
// empty) at index. A negative index or one past the end appends.
func InsertItem(tree []ir.LayerTreeItem, parent Path, index int, item ir.LayerTreeItem) ([]ir.LayerTreeItem, error) {
	if len(parent) == 0 {
		return slices.Insert(slices.Clone(tree), clampIndex(index, len(tree)), item), nil
	}
	return EditGroup(tree, parent, func(g *ir.LayerGroup) {
		g.Layers = slices.Insert(g.Layers, clampIndex(index, len(g.Layers)), item)
	})
}

func clampIndex(index, n int) int {
	if index < 0 || index > n {
		return n
	}
	return index
}

// RemoveAt removes the node at path. Removing a group carries its whole
// subtree with it.
func RemoveAt(tree []ir.LayerTreeItem, path Path) ([]ir.LayerTreeItem, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("empty path: %w", ErrPathNotFound)
	}
	idx := path.Last()
	if len(path) == 1 {
		if idx < 0 || idx >= len(tree) {
			return nil, fmt.Errorf("root index %d: %w", idx, ErrPathNotFound)
		}
		return slices.Delete(slices.Clone(tree), idx, idx+1), nil
	}
	parent, err := ResolveGroup(tree, path.Parent())
	if err != nil {
		return nil, err
	}
	if idx < 0 || idx >= len(parent.Layers) {
		return nil, fmt.Errorf("index %d in %v: %w", idx, path.Parent(), ErrPathNotFound)
	}
	return EditGroup(tree, path.Parent(), func(g *ir.LayerGroup) {
		g.Layers = slices.Delete(g.Layers, idx, idx+1)
	})
}

// ItemAt returns the node at path.
func ItemAt(tree []ir.LayerTreeItem, path Path) (ir.LayerTreeItem, bool) {
	items := tree
	for depth, idx := range path {
		if idx < 0 || idx >= len(items) {
			return ir.LayerTreeItem{}, false
		}
		if depth == len(path)-1 {
			return items[idx], true
		}
		if !items[idx].IsGroup() {
			return ir.LayerTreeItem{}, false
		}
		items = items[idx].Group.Layers
	}
	return ir.LayerTreeItem{}, false
}

// RemoveGroupRecursive returns a tree without the first group named name and
// its whole subtree. Only the branch holding the group differs from the
// input. The bool is false when no such group exists.
func RemoveGroupRecursive(tree []ir.LayerTreeItem, name string) ([]ir.LayerTreeItem, bool) {
	path := FindGroupPath(tree, name)
	if path == nil {
		return tree, false
	}
	out, err := RemoveAt(tree, path)
	if err != nil {
		return tree, false
	}
	return out, true
}

// RenameGroup returns a tree in which the first group named oldName is
// called newName. Children and their order are untouched.
func RenameGroup(tree []ir.LayerTreeItem, oldName, newName string) ([]ir.LayerTreeItem, bool) {
	path := FindGroupPath(tree, oldName)
	if path == nil {
		return tree, false
	}
	out, err := EditGroup(tree, path, func(g *ir.LayerGroup) { g.Name = newName })
	if err != nil {
		return tree, false
	}
	return out, true
}

// PruneLayer returns item with every leaf referencing id removed from it.
// A leaf that itself references id is reported through the second result so
// the caller can drop it from its parent. The third result reports whether
// anything below item changed.
func PruneLayer(item ir.LayerTreeItem, id string) (ir.LayerTreeItem, bool, bool) {
	if !item.IsGroup() {
		return item, item.LayerID == id, false
	}
	kept := make([]ir.LayerTreeItem, 0, len(item.Group.Layers))
	changed := false
	for _, child := range item.Group.Layers {
		pruned, drop, childChanged := PruneLayer(child, id)
		if drop {
			changed = true
			continue
		}
		changed = changed || childChanged
		kept = append(kept, pruned)
	}
	if !changed {
		return item, false, false
	}
	return ir.LayerTreeItem{Group: &ir.LayerGroup{Name: item.Group.Name, Layers: kept}}, false, true
}

// RemoveLayerRefs returns a tree with every leaf referencing id removed.
func RemoveLayerRefs(tree []ir.LayerTreeItem, id string) []ir.LayerTreeItem {
	out := make([]ir.LayerTreeItem, 0, len(tree))
	for _, item := range tree {
		pruned, drop, _ := PruneLayer(item, id)
		if !drop {
			out = append(out, pruned)
		}
	}
	return out
}

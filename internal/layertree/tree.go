package layertree

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/gisdoc/internal/ir"
)

// ErrPathNotFound is returned when a path does not address a group.
var ErrPathNotFound = errors.New("path does not address a group")

// Path is the sequence of child indices from the root to a node.
// The empty path is the root itself.
type Path []int

// Root returns the index of the top-level branch containing the node.
func (p Path) Root() int {
	if len(p) == 0 {
		return -1
	}
	return p[0]
}

// Parent returns the path of the node's parent.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1]
}

// Last returns the index of the node within its parent.
func (p Path) Last() int {
	if len(p) == 0 {
		return -1
	}
	return p[len(p)-1]
}

func (p Path) String() string {
	return fmt.Sprint([]int(p))
}

// Clone deep-copies a tree.
func Clone(tree []ir.LayerTreeItem) []ir.LayerTreeItem {
	return ir.CloneTree(tree)
}

// FindGroupPath returns the path of the first group named name in pre-order
// (parent before children, siblings left to right), or nil.
func FindGroupPath(tree []ir.LayerTreeItem, name string) Path {
	return find(tree, nil, func(item ir.LayerTreeItem) bool {
		return item.IsGroup() && item.Group.Name == name
	})
}

// FindLayerPath returns the path of the first leaf referencing id, or nil.
func FindLayerPath(tree []ir.LayerTreeItem, id string) Path {
	return find(tree, nil, func(item ir.LayerTreeItem) bool {
		return !item.IsGroup() && item.LayerID == id
	})
}

func find(items []ir.LayerTreeItem, prefix Path, match func(ir.LayerTreeItem) bool) Path {
	for i, item := range items {
		path := append(slices.Clip(prefix), i)
		if match(item) {
			return path
		}
		if item.IsGroup() {
			if found := find(item.Group.Layers, path, match); found != nil {
				return found
			}
		}
	}
	return nil
}

// ContainsGroup reports whether any group in the tree is named name.
func ContainsGroup(tree []ir.LayerTreeItem, name string) bool {
	return FindGroupPath(tree, name) != nil
}

// Flatten returns the layer ids of the tree in pre-order, skipping groups.
func Flatten(tree []ir.LayerTreeItem) []string {
	ids := []string{}
	walk(tree, func(item ir.LayerTreeItem, _ Path) {
		if !item.IsGroup() {
			ids = append(ids, item.LayerID)
		}
	})
	return ids
}

// GroupNames returns every group name in pre-order.
func GroupNames(tree []ir.LayerTreeItem) []string {
	names := []string{}
	walk(tree, func(item ir.LayerTreeItem, _ Path) {
		if item.IsGroup() {
			names = append(names, item.Group.Name)
		}
	})
	return names
}

func walk(items []ir.LayerTreeItem, visit func(ir.LayerTreeItem, Path)) {
	var rec func([]ir.LayerTreeItem, Path)
	rec = func(items []ir.LayerTreeItem, prefix Path) {
		for i, item := range items {
			path := append(slices.Clip(prefix), i)
			visit(item, path)
			if item.IsGroup() {
				rec(item.Group.Layers, path)
			}
		}
	}
	rec(items, nil)
}

// ResolveGroup walks path and returns the group it addresses. The group is
// part of tree; callers that mutate it must own the tree (see Clone).
func ResolveGroup(tree []ir.LayerTreeItem, path Path) (*ir.LayerGroup, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("empty path: %w", ErrPathNotFound)
	}
	items := tree
	var group *ir.LayerGroup
	for depth, idx := range path {
		if idx < 0 || idx >= len(items) || !items[idx].IsGroup() {
			return nil, fmt.Errorf("path %v at depth %d: %w", path, depth, ErrPathNotFound)
		}
		group = items[idx].Group
		items = group.Layers
	}
	return group, nil
}

// IsDescendant reports whether path is ancestor itself or lies below it.
func IsDescendant(path, ancestor Path) bool {
	return len(path) >= len(ancestor) && slices.Equal(path[:len(ancestor)], ancestor)
}

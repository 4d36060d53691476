package layertree

import (
	"fmt"

	"github.com/roach88/gisdoc/internal/ir"
)

// ViolationKind classifies a broken tree invariant.
type ViolationKind string

const (
	ViolationDanglingLayer  ViolationKind = "dangling_layer"
	ViolationDuplicateLayer ViolationKind = "duplicate_layer"
	ViolationDuplicateGroup ViolationKind = "duplicate_group"
	ViolationEmptyName      ViolationKind = "empty_name"
)

// Violation is one broken invariant at a position in the tree.
type Violation struct {
	Kind ViolationKind
	Path Path
	Name string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s %q at %v", v.Kind, v.Name, v.Path)
}

// CheckIntegrity reports every leaf that does not resolve through
// layerExists, every layer id referenced twice, every group name used twice,
// and every empty id or name, in pre-order.
//
// A nil layerExists skips the dangling check.
func CheckIntegrity(tree []ir.LayerTreeItem, layerExists func(string) bool) []Violation {
	var out []Violation
	layers := make(map[string]bool)
	groups := make(map[string]bool)
	walk(tree, func(item ir.LayerTreeItem, path Path) {
		if item.IsGroup() {
			name := item.Group.Name
			switch {
			case name == "":
				out = append(out, Violation{Kind: ViolationEmptyName, Path: path})
			case groups[name]:
				out = append(out, Violation{Kind: ViolationDuplicateGroup, Path: path, Name: name})
			}
			groups[name] = true
			return
		}
		id := item.LayerID
		switch {
		case id == "":
			out = append(out, Violation{Kind: ViolationEmptyName, Path: path})
		case layers[id]:
			out = append(out, Violation{Kind: ViolationDuplicateLayer, Path: path, Name: id})
		case layerExists != nil && !layerExists(id):
			out = append(out, Violation{Kind: ViolationDanglingLayer, Path: path, Name: id})
		}
		layers[id] = true
	})
	return out
}

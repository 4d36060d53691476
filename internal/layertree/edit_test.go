package layertree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gisdoc/internal/ir"
)

func TestRemoveGroupRecursive(t *testing.T) {
	tree := sample()
	before := Clone(tree)

	out, ok := RemoveGroupRecursive(tree, "Terrain")
	require.True(t, ok)

	assert.Equal(t, []ir.LayerTreeItem{
		leaf("L1"),
		group("Basemaps", leaf("L2")),
		group("Overlays", leaf("L5")),
	}, out)
	assert.Equal(t, before, tree, "input tree is not modified")

	// Branches that did not change are shared with the input.
	assert.Same(t, tree[2].Group, out[2].Group)
	assert.NotSame(t, tree[1].Group, out[1].Group)
}

func TestRemoveGroupRecursive_Completeness(t *testing.T) {
	tree := sample()
	out, ok := RemoveGroupRecursive(tree, "Basemaps")
	require.True(t, ok)

	// Basemaps plus its three descendants are gone; nothing else moved.
	assert.Equal(t, []string{"L1", "L5"}, Flatten(out))
	assert.Equal(t, []string{"Overlays"}, GroupNames(out))
	assert.Equal(t, tree[2], out[1])
}

func TestRemoveGroupRecursive_Missing(t *testing.T) {
	tree := sample()
	out, ok := RemoveGroupRecursive(tree, "Nope")
	assert.False(t, ok)
	assert.Equal(t, tree, out)
}

func TestRenameGroup_PreservesChildren(t *testing.T) {
	tree := sample()

	renamed, ok := RenameGroup(tree, "Basemaps", "Base")
	require.True(t, ok)
	assert.Equal(t, "Base", renamed[1].Group.Name)
	assert.Equal(t, tree[1].Group.Layers, renamed[1].Group.Layers)

	back, ok := RenameGroup(renamed, "Base", "Basemaps")
	require.True(t, ok)
	assert.Equal(t, tree, back)

	_, ok = RenameGroup(tree, "Nope", "X")
	assert.False(t, ok)
}

func TestInsertItem(t *testing.T) {
	tree := sample()

	out, err := InsertItem(tree, Path{1}, 1, leaf("L9"))
	require.NoError(t, err)
	assert.Equal(t, []string{"L1", "L2", "L9", "L3", "L4", "L5"}, Flatten(out))

	out, err = InsertItem(tree, nil, -1, group("Empty"))
	require.NoError(t, err)
	assert.Len(t, out, 4)
	assert.Equal(t, "Empty", out[3].Group.Name)

	out, err = InsertItem(tree, nil, 0, leaf("L0"))
	require.NoError(t, err)
	assert.Equal(t, "L0", out[0].LayerID)

	_, err = InsertItem(tree, Path{0}, 0, leaf("L9"))
	assert.ErrorIs(t, err, ErrPathNotFound)
	assert.Equal(t, sample(), tree)
}

// Inserting at position 2 inside a group lands after every leaf that
// precedes the group plus the group's first two children.
func TestInsertItem_FlattenOffset(t *testing.T) {
	tree := []ir.LayerTreeItem{
		leaf("A"),
		group("basemaps", leaf("B1"), leaf("B2"), leaf("B3")),
		leaf("C"),
	}
	out, err := InsertItem(tree, FindGroupPath(tree, "basemaps"), 2, leaf("L"))
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B1", "B2", "L", "B3", "C"}, Flatten(out))
}

func TestRemoveAt(t *testing.T) {
	tree := sample()

	out, err := RemoveAt(tree, Path{1, 0})
	require.NoError(t, err)
	assert.Equal(t, []string{"L1", "L3", "L4", "L5"}, Flatten(out))

	out, err = RemoveAt(tree, Path{0})
	require.NoError(t, err)
	assert.Len(t, out, 2)

	_, err = RemoveAt(tree, Path{1, 9})
	assert.ErrorIs(t, err, ErrPathNotFound)
	_, err = RemoveAt(tree, Path{5})
	assert.ErrorIs(t, err, ErrPathNotFound)
}

func TestPruneLayer(t *testing.T) {
	tree := sample()

	pruned, drop, changed := PruneLayer(tree[1], "L3")
	assert.False(t, drop)
	assert.True(t, changed)
	assert.Equal(t, group("Basemaps", leaf("L2"), group("Terrain", leaf("L4"))), pruned)

	same, _, changed := PruneLayer(tree[2], "L3")
	assert.False(t, changed)
	assert.Same(t, tree[2].Group, same.Group)

	_, drop, _ = PruneLayer(tree[0], "L1")
	assert.True(t, drop)
}

func TestRemoveLayerRefs(t *testing.T) {
	tree := []ir.LayerTreeItem{leaf("X"), group("G", leaf("X"), leaf("Y"))}
	out := RemoveLayerRefs(tree, "X")
	assert.Equal(t, []ir.LayerTreeItem{group("G", leaf("Y"))}, out)
}

package model

// ItemOption places a new or moved tree item.
type ItemOption func(*placement)

type placement struct {
	group string
	index int
}

func newPlacement(opts []ItemOption) placement {
	p := placement{index: -1}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// InGroup places the item inside the named group instead of the root.
func InGroup(name string) ItemOption {
	return func(p *placement) { p.group = name }
}

// AtIndex places the item at index within its parent.
//
// Default: append.
func AtIndex(i int) ItemOption {
	return func(p *placement) { p.index = i }
}

// ItemRef names a tree item to move: a layer leaf or a group.
type ItemRef struct {
	LayerID string
	Group   string
}

// LayerRef references the tree leaf of a layer.
func LayerRef(id string) ItemRef { return ItemRef{LayerID: id} }

// GroupRef references a group by name.
func GroupRef(name string) ItemRef { return ItemRef{Group: name} }

// Option configures a Model.
type Option func(*Model)

// ReadOnly starts the model in read-only mode.
func ReadOnly() Option {
	return func(m *Model) { m.readOnly = true }
}

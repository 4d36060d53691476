package crdt

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// ErrIndexOutOfRange is returned by sequence edits at an invalid position.
var ErrIndexOutOfRange = errors.New("index out of range")

// Replica is one participant's copy of the four shared collections.
type Replica struct {
	id      string
	clock   *Clock
	maps    map[Collection]*Map
	tree    *Sequence
	seen    map[Timestamp]struct{}
	log     []Op
	pending []Op
}

// NewReplica creates an empty replica with the given id.
func NewReplica(id string) *Replica {
	return &Replica{
		id:    id,
		clock: NewClock(id),
		maps: map[Collection]*Map{
			CollectionLayers:  NewMap(),
			CollectionSources: NewMap(),
			CollectionOptions: NewMap(),
		},
		tree: NewSequence(),
		seen: make(map[Timestamp]struct{}),
	}
}

// ID returns the replica id.
func (r *Replica) ID() string { return r.id }

// Clock returns the replica's Lamport clock.
func (r *Replica) Clock() *Clock { return r.clock }

// Map returns the map for a keyed collection. Panics on the sequence
// collection, which is a programming error.
func (r *Replica) Map(c Collection) *Map {
	m, ok := r.maps[c]
	if !ok {
		panic(fmt.Sprintf("crdt: %q is not a map collection", c))
	}
	return m
}

// Tree returns the root layer tree sequence.
func (r *Replica) Tree() *Sequence { return r.tree }

// Set writes key in a map collection.
func (r *Replica) Set(c Collection, key string, value json.RawMessage) (Op, Change) {
	op := Op{ID: r.clock.Next(), Collection: c, Kind: OpSet, Key: key, Value: value}
	change, _ := r.integrate(op)
	return op, change
}

// Delete tombstones key in a map collection. The op is emitted even when the
// key is not visible locally, since a concurrent set may still need to lose.
func (r *Replica) Delete(c Collection, key string) (Op, Change, bool) {
	op := Op{ID: r.clock.Next(), Collection: c, Kind: OpDelete, Key: key}
	change, changed := r.integrate(op)
	return op, change, changed
}

// Insert adds value at visible index of the layer tree.
func (r *Replica) Insert(index int, value json.RawMessage) (Op, Change, error) {
	if index < 0 || index > r.tree.Len() {
		return Op{}, Change{}, fmt.Errorf("insert at %d of %d: %w", index, r.tree.Len(), ErrIndexOutOfRange)
	}
	op := Op{
		ID:         r.clock.Next(),
		Collection: CollectionLayerTree,
		Kind:       OpInsert,
		Ref:        r.tree.originFor(index),
		Value:      value,
	}
	change, _ := r.integrate(op)
	return op, change, nil
}

// Remove deletes the element at visible index of the layer tree.
func (r *Replica) Remove(index int) (Op, Change, error) {
	_, id, ok := r.tree.At(index)
	if !ok {
		return Op{}, Change{}, fmt.Errorf("remove at %d of %d: %w", index, r.tree.Len(), ErrIndexOutOfRange)
	}
	op := Op{ID: r.clock.Next(), Collection: CollectionLayerTree, Kind: OpRemove, Ref: id}
	change, _ := r.integrate(op)
	return op, change, nil
}

// Splice removes deleteCount elements at index and inserts values there.
// The returned Change merges the whole edit.
func (r *Replica) Splice(index, deleteCount int, values ...json.RawMessage) ([]Op, Change, error) {
	if index < 0 || deleteCount < 0 || index+deleteCount > r.tree.Len() {
		return nil, Change{}, fmt.Errorf("splice %d+%d of %d: %w", index, deleteCount, r.tree.Len(), ErrIndexOutOfRange)
	}
	ops := make([]Op, 0, deleteCount+len(values))
	for range deleteCount {
		op, _, err := r.Remove(index)
		if err != nil {
			return nil, Change{}, err
		}
		ops = append(ops, op)
	}
	for i, v := range values {
		op, _, err := r.Insert(index+i, v)
		if err != nil {
			return nil, Change{}, err
		}
		ops = append(ops, op)
	}
	return ops, Change{
		Collection: CollectionLayerTree,
		Index:      index,
		Removed:    deleteCount,
		Inserted:   slices.Clone(values),
	}, nil
}

// Apply integrates remote ops. Duplicates are ignored and ops with missing
// dependencies wait in the pending buffer. The returned changes are in
// integration order and include only visible effects.
func (r *Replica) Apply(ops []Op) ([]Change, error) {
	for _, op := range ops {
		if err := op.Validate(); err != nil {
			return nil, err
		}
	}

	var changes []Change
	for _, op := range ops {
		if r.has(op.ID) {
			continue
		}
		if !r.ready(op) {
			if !slices.ContainsFunc(r.pending, func(p Op) bool { return p.ID == op.ID }) {
				r.pending = append(r.pending, op)
			}
			continue
		}
		if c, ok := r.integrate(op); ok {
			changes = append(changes, c)
		}
		changes = append(changes, r.drainPending()...)
	}
	return changes, nil
}

// drainPending integrates buffered ops until a pass makes no progress.
func (r *Replica) drainPending() []Change {
	var changes []Change
	for progress := len(r.pending) > 0; progress; {
		progress = false
		remaining := r.pending[:0:0]
		for _, op := range r.pending {
			switch {
			case r.has(op.ID):
			case r.ready(op):
				if c, ok := r.integrate(op); ok {
					changes = append(changes, c)
				}
				progress = true
			default:
				remaining = append(remaining, op)
			}
		}
		r.pending = remaining
	}
	return changes
}

// Has reports whether the op with the given id has been integrated.
func (r *Replica) Has(id Timestamp) bool {
	return r.has(id)
}

func (r *Replica) has(id Timestamp) bool {
	_, ok := r.seen[id]
	return ok
}

func (r *Replica) ready(op Op) bool {
	if op.Collection.IsMap() {
		return true
	}
	return r.tree.ready(op)
}

func (r *Replica) integrate(op Op) (Change, bool) {
	r.seen[op.ID] = struct{}{}
	r.log = append(r.log, op)
	r.clock.Observe(op.ID)
	if op.Collection.IsMap() {
		return r.maps[op.Collection].integrate(op)
	}
	return r.tree.integrate(op)
}

// Pending returns the number of ops waiting for a missing dependency.
func (r *Replica) Pending() int { return len(r.pending) }

// Log returns every integrated op in timestamp order, which is a causal
// order: replaying it into an empty replica never buffers.
func (r *Replica) Log() []Op {
	out := slices.Clone(r.log)
	slices.SortFunc(out, func(a, b Op) int { return a.ID.Compare(b.ID) })
	return out
}

// Len returns the number of integrated ops.
func (r *Replica) Len() int { return len(r.log) }

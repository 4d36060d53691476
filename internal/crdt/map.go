package crdt

import (
	"encoding/json"
	"slices"
)

type register struct {
	value   json.RawMessage
	stamp   Timestamp
	deleted bool
}

// Map is a last-write-wins map of JSON values.
type Map struct {
	regs map[string]*register
}

// NewMap creates an empty map.
func NewMap() *Map {
	return &Map{regs: make(map[string]*register)}
}

// Get returns the visible value for key.
func (m *Map) Get(key string) (json.RawMessage, bool) {
	r, ok := m.regs[key]
	if !ok || r.deleted {
		return nil, false
	}
	return r.value, true
}

// Has reports whether key is visible.
func (m *Map) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Keys returns the visible keys in sorted order.
func (m *Map) Keys() []string {
	keys := make([]string, 0, len(m.regs))
	for k, r := range m.regs {
		if !r.deleted {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}

// Len returns the number of visible keys.
func (m *Map) Len() int {
	n := 0
	for _, r := range m.regs {
		if !r.deleted {
			n++
		}
	}
	return n
}

// integrate applies a set or delete. The returned bool is false when the op
// lost to a newer write or did not change what readers see.
func (m *Map) integrate(op Op) (Change, bool) {
	r, ok := m.regs[op.Key]
	if ok && !op.ID.After(r.stamp) {
		return Change{}, false
	}
	existed := ok && !r.deleted
	if !ok {
		r = &register{}
		m.regs[op.Key] = r
	}
	r.stamp = op.ID
	if op.Kind == OpDelete {
		r.value = nil
		r.deleted = true
		if !existed {
			return Change{}, false
		}
		return Change{Collection: op.Collection, Key: op.Key, Deleted: true, Existed: true}, true
	}
	r.value = op.Value
	r.deleted = false
	return Change{Collection: op.Collection, Key: op.Key, Value: op.Value, Existed: existed}, true
}

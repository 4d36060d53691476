package crdt

import "encoding/json"

type element struct {
	id      Timestamp
	origin  Timestamp
	value   json.RawMessage
	deleted bool
}

// Sequence is an RGA list of JSON values.
//
// Tombstoned elements stay in place so later inserts can still name them
// as origin. Tombstones are never collected.
type Sequence struct {
	elems []*element
}

// NewSequence creates an empty sequence.
func NewSequence() *Sequence {
	return &Sequence{}
}

// Len returns the number of visible elements.
func (s *Sequence) Len() int {
	n := 0
	for _, e := range s.elems {
		if !e.deleted {
			n++
		}
	}
	return n
}

// Values returns the visible values in order.
func (s *Sequence) Values() []json.RawMessage {
	out := make([]json.RawMessage, 0, len(s.elems))
	for _, e := range s.elems {
		if !e.deleted {
			out = append(out, e.value)
		}
	}
	return out
}

// At returns the visible value at index and its element id.
func (s *Sequence) At(index int) (json.RawMessage, Timestamp, bool) {
	pos := s.position(index)
	if pos < 0 {
		return nil, Timestamp{}, false
	}
	e := s.elems[pos]
	return e.value, e.id, true
}

// position maps a visible index to a slot in elems, or -1.
func (s *Sequence) position(index int) int {
	if index < 0 {
		return -1
	}
	seen := 0
	for i, e := range s.elems {
		if e.deleted {
			continue
		}
		if seen == index {
			return i
		}
		seen++
	}
	return -1
}

// originFor returns the id a local insert at visible index must name as its
// left origin. The zero timestamp means the head of the sequence.
func (s *Sequence) originFor(index int) Timestamp {
	if index == 0 {
		return Timestamp{}
	}
	pos := s.position(index - 1)
	if pos < 0 {
		return Timestamp{}
	}
	return s.elems[pos].id
}

func (s *Sequence) find(id Timestamp) int {
	for i, e := range s.elems {
		if e.id == id {
			return i
		}
	}
	return -1
}

func (s *Sequence) visibleBefore(pos int) int {
	n := 0
	for _, e := range s.elems[:pos] {
		if !e.deleted {
			n++
		}
	}
	return n
}

// ready reports whether the op's causal dependency is present.
func (s *Sequence) ready(op Op) bool {
	if op.Kind == OpInsert && op.Ref.IsZero() {
		return true
	}
	return s.find(op.Ref) >= 0
}

// integrate applies an insert or remove whose dependency is present.
func (s *Sequence) integrate(op Op) (Change, bool) {
	if op.Kind == OpRemove {
		pos := s.find(op.Ref)
		e := s.elems[pos]
		if e.deleted {
			return Change{}, false
		}
		index := s.visibleBefore(pos)
		e.deleted = true
		return Change{Collection: op.Collection, Index: index, Removed: 1}, true
	}

	pos := 0
	if !op.Ref.IsZero() {
		pos = s.find(op.Ref) + 1
	}
	// Concurrent inserts after the same origin: newer ones sort first. The
	// scan also steps over their descendants, which all carry larger ids.
	for pos < len(s.elems) && s.elems[pos].id.After(op.ID) {
		pos++
	}
	s.elems = append(s.elems, nil)
	copy(s.elems[pos+1:], s.elems[pos:])
	s.elems[pos] = &element{id: op.ID, origin: op.Ref, value: op.Value}
	return Change{
		Collection: op.Collection,
		Index:      s.visibleBefore(pos),
		Inserted:   []json.RawMessage{op.Value},
	}, true
}

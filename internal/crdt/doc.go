// Package crdt implements the replicated primitives a gisdoc document is
// built from.
//
// A Replica holds one last-write-wins Map per keyed collection (layers,
// sources, options) and one Sequence for the root of the layer tree. Every
// mutation is an Op stamped by a Lamport Clock; replicas exchange Ops in
// Updates and converge once they have integrated the same set, whatever the
// delivery order.
//
// # Merge rules
//
// Map: each key is a register. Set and Delete both carry the op timestamp
// and the highest timestamp wins. Deletes leave a tombstone so an older Set
// arriving late cannot resurrect the key.
//
// Sequence: RGA. An insert names its left origin (the element it was typed
// after). Concurrent inserts after the same origin are ordered by descending
// timestamp, so every replica produces the same interleaving and every
// inserted item survives. Removes tombstone the element.
//
// # Delivery
//
// Apply is idempotent: an op already integrated is ignored. An op whose
// causal dependency is missing (insert after an unknown origin, remove of an
// unknown element) is buffered and retried after each successful
// integration. Timestamps order ops causally, so replaying Log() in order
// never buffers.
//
// Replica is not safe for concurrent use; the owning document serializes
// access.
package crdt

// Package document implements the shared gisdoc document.
//
// A Document owns one crdt.Replica and is the only component that mutates
// replicated state. It exposes typed CRUD over layers, sources, the root of
// the layer tree and options, validates preconditions, and raises one change
// event per touched collection for every logical call.
//
// NESTED TREE EDITS:
//
// Only the root sequence of the layer tree is replicated element by element.
// A nested edit replaces the whole top-level branch that contains it
// (UpdateLayerTreeItem), so concurrent edits to different top-level branches
// never interfere. Concurrent edits to the same branch both survive as
// separate copies of the branch; see the model package for the consequences.
//
// CONCURRENCY:
//
// Every public method takes the document mutex. Change events are emitted
// after the mutex is released, so handlers may read the document or start a
// new transaction. Transact callbacks must use the *Tx they receive; calling
// Document methods from inside one deadlocks.
package document

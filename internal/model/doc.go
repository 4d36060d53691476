// Package model is the application-facing façade over a shared document.
//
// Model combines document.Document with the layertree algorithms to offer
// nested operations (add into a group, move, remove a group with its
// contents, rename) and adds session-local state: presence, the dirty flag
// and read-only mode.
//
// WRITE-BACK RULE:
//
// A nested edit takes a snapshot of the tree, computes the new tree, and
// writes back only the top-level branch that contains the edit, with
// Document.UpdateLayerTreeItem. Other top-level branches are never rewritten,
// so concurrent edits to them merge cleanly.
//
// Two replicas that rewrite the same top-level branch concurrently both
// replace the old branch with their own copy, and both copies survive the
// merge. A group removed on one replica while another replica added a layer
// into it therefore reappears holding that layer. The outcome is the same on
// every replica; no error is raised.
package model

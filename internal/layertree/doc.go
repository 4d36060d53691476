// Package layertree holds pure functions over a layer tree snapshot.
//
// Nothing here touches a document. Callers take a snapshot, compute a new
// tree, and write back only the root branches that changed. Edits clone the
// nodes on the path they modify and share everything else, so a root branch
// that compares equal to the snapshot was not touched.
//
// Groups are addressed by Path: the child indices from the root down to the
// node. Paths are recomputed from names on every operation; they are never
// stored across edits.
package layertree

// Package ir provides the canonical representation of a gisdoc document.
//
// This package contains the document value types (layers, sources, the layer
// tree and options), the canonical JSON encoding used for hashing and export,
// and the state hash used to compare replicas. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Numbers decode as json.Number so a document round-trips byte for byte
//   - Canonical JSON follows RFC 8785 key ordering and string escaping
//   - The layer tree is a tagged variant (leaf id or group), never a graph
//     with parent pointers
package ir

// Package store provides SQLite-backed durable storage for document op logs.
//
// Every document is an append-only set of CRDT ops keyed by
// (doc_id, counter, replica). Writes use ON CONFLICT DO NOTHING, so a
// relayed update that arrives twice is stored once.
//
// # Ordering
//
// Reads return ops ORDER BY counter ASC, replica COLLATE BINARY ASC. That
// order respects causality (an op's dependencies always carry a smaller
// counter), so replaying it into an empty replica never buffers.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000: wait for locks up to 5 seconds
//
// Op bodies are stored as canonical JSON produced by internal/ir.
package store

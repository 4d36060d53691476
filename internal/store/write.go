package store

import (
	"context"
	"fmt"

	"github.com/roach88/gisdoc/internal/crdt"
	"github.com/roach88/gisdoc/internal/ir"
)

// WriteOps appends ops to a document's log in one transaction and returns
// how many rows were new. Uses ON CONFLICT DO NOTHING - ops already stored
// are silently skipped.
//
// Bodies are serialized to canonical JSON so the same op always stores the
// same bytes.
func (s *Store) WriteOps(ctx context.Context, docID string, ops []crdt.Op) (int, error) {
	if docID == "" {
		return 0, fmt.Errorf("write ops: empty document id")
	}
	if len(ops) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("write ops: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ops (doc_id, counter, replica, collection, kind, body)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(doc_id, counter, replica) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("write ops: prepare: %w", err)
	}
	defer stmt.Close()

	written := 0
	for _, op := range ops {
		if err := op.Validate(); err != nil {
			return 0, fmt.Errorf("write ops: %w", err)
		}
		body, err := ir.MarshalCanonical(op)
		if err != nil {
			return 0, fmt.Errorf("write ops: marshal %s: %w", op.ID, err)
		}
		res, err := stmt.ExecContext(ctx,
			docID,
			op.ID.Counter,
			op.ID.Replica,
			string(op.Collection),
			string(op.Kind),
			string(body),
		)
		if err != nil {
			return 0, fmt.Errorf("write ops: insert %s: %w", op.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("write ops: rows affected: %w", err)
		}
		written += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("write ops: commit: %w", err)
	}
	return written, nil
}

// DeleteDocument drops every op of a document. Returns the number of rows
// removed.
func (s *Store) DeleteDocument(ctx context.Context, docID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM ops WHERE doc_id = ?`, docID)
	if err != nil {
		return 0, fmt.Errorf("delete document %q: %w", docID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete document %q: %w", docID, err)
	}
	return int(n), nil
}

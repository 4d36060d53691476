package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/gisdoc/internal/crdt"
)

// ReadOps returns a document's full log in causal order:
// ORDER BY counter ASC, replica COLLATE BINARY ASC.
//
// Returns an empty slice (not nil) for an unknown document.
func (s *Store) ReadOps(ctx context.Context, docID string) ([]crdt.Op, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT counter, replica, body
		FROM ops
		WHERE doc_id = ?
		ORDER BY counter ASC, replica COLLATE BINARY ASC
	`, docID)
	if err != nil {
		return nil, fmt.Errorf("query ops: %w", err)
	}
	defer rows.Close()

	ops := []crdt.Op{}
	for rows.Next() {
		op, err := scanOp(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ops: %w", err)
	}
	return ops, nil
}

// ListDocuments returns every document id that has at least one op, sorted.
func (s *Store) ListDocuments(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT doc_id FROM ops ORDER BY doc_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan document id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return ids, nil
}

// CountOps returns the number of stored ops for a document.
func (s *Store) CountOps(ctx context.Context, docID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ops WHERE doc_id = ?`, docID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count ops: %w", err)
	}
	return n, nil
}

// StateVector returns the highest counter stored per replica for a
// document.
func (s *Store) StateVector(ctx context.Context, docID string) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT replica, MAX(counter)
		FROM ops
		WHERE doc_id = ?
		GROUP BY replica
		ORDER BY replica COLLATE BINARY ASC
	`, docID)
	if err != nil {
		return nil, fmt.Errorf("query state vector: %w", err)
	}
	defer rows.Close()

	out := map[string]int64{}
	for rows.Next() {
		var replica string
		var counter int64
		if err := rows.Scan(&replica, &counter); err != nil {
			return nil, fmt.Errorf("scan state vector: %w", err)
		}
		out[replica] = counter
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate state vector: %w", err)
	}
	return out, nil
}

// scanOp decodes one row and checks the body agrees with its key columns.
func scanOp(rows *sql.Rows) (crdt.Op, error) {
	var (
		counter int64
		replica string
		body    string
	)
	if err := rows.Scan(&counter, &replica, &body); err != nil {
		return crdt.Op{}, fmt.Errorf("scan op: %w", err)
	}

	var op crdt.Op
	if err := json.Unmarshal([]byte(body), &op); err != nil {
		return crdt.Op{}, fmt.Errorf("unmarshal op (%d,%s): %w", counter, replica, err)
	}
	if op.ID.Counter != counter || op.ID.Replica != replica {
		return crdt.Op{}, fmt.Errorf("op (%d,%s): body id %s does not match row", counter, replica, op.ID)
	}
	return op, nil
}

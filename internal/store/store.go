package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// pragmas configure every connection the store opens:
//   - journal_mode WAL lets `replay` and `export` read while `serve` appends
//   - synchronous NORMAL is durable across process crashes in WAL mode
//   - busy_timeout waits up to 5s for a writer held by another process
var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
}

// migrations upgrade databases created by older versions. Entry i moves a
// database from user_version i to i+1; the schema file always describes the
// oldest version, so fresh databases run every entry.
var migrations = []func(*sql.Tx) error{
	// v1: per-replica index backing the state vector query.
	func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			CREATE INDEX IF NOT EXISTS idx_ops_doc_replica
			ON ops(doc_id, replica, counter)
		`)
		return err
	},
}

// currentSchemaVersion is the user_version of a fully migrated database.
var currentSchemaVersion = len(migrations)

// Store is the durable op log of every document a relay or CLI has seen.
// Rows are immutable once written; a document's state is rebuilt by
// replaying its ops into a fresh replica.
type Store struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at path, applying pragmas and
// pending migrations. Opening an up-to-date database changes nothing.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// One connection: SQLite serialises writers anyway, and a single
	// connection keeps the pragmas above in force for every statement.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the database. A relay closes its store only after the hub
// has stopped, so no write is in flight.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping verifies the database is reachable. The relay health check uses it.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates missing tables, then runs each migration past the stored
// user_version inside its own transaction.
func migrate(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	for v := version; v < currentSchemaVersion; v++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("migrate to v%d: %w", v+1, err)
		}
		if err := migrations[v](tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migrate to v%d: %w", v+1, err)
		}
		// PRAGMA does not accept bound parameters.
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", v+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("set user_version: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migrate to v%d: %w", v+1, err)
		}
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}

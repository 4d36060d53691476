package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/gisdoc/internal/crdt"
	"github.com/roach88/gisdoc/internal/document"
	"github.com/roach88/gisdoc/internal/store"
)

// envOr returns the environment variable key, or def when it is unset.
func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

// commandContext returns the command's context. Commands executed directly
// in tests have none.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// openStore opens the op-log database, mapping failures to a command error.
func openStore(path string) (*store.Store, error) {
	if path == "" {
		return nil, NewExitError(ExitCommandError, "no database given (use --db or GISDOC_DB)")
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// loadDocument rebuilds a document replica from its persisted op log.
func loadDocument(ctx context.Context, st *store.Store, docID string, logger *slog.Logger) (*document.Document, error) {
	ops, err := st.ReadOps(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("read ops of %s: %w", docID, err)
	}
	doc := document.New(document.WithLogger(logger))
	if err := doc.LoadUpdates(ops); err != nil {
		return nil, fmt.Errorf("load %s: %w", docID, err)
	}
	if n := doc.Pending(); n > 0 {
		logger.Warn("op log has ops with missing dependencies", "doc", docID, "pending", n)
	}
	return doc, nil
}

// persistLocal runs fn against doc and writes every op it produced to the
// store. Ops from a partially failed fn are still written; they are part of
// the replica's log either way.
func persistLocal(ctx context.Context, st *store.Store, docID string, doc *document.Document, fn func() error) (int, error) {
	var produced []crdt.Op
	disconnect := doc.LocalUpdate(func(ev document.UpdateEvent) {
		produced = append(produced, ev.Update.Ops...)
	})
	fnErr := fn()
	disconnect()

	n, err := st.WriteOps(ctx, docID, produced)
	if err != nil {
		return n, err
	}
	return n, fnErr
}

package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/gisdoc/internal/crdt"
	"github.com/roach88/gisdoc/internal/document"
	"github.com/roach88/gisdoc/internal/ir"
	"github.com/roach88/gisdoc/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	DocID    string // optional - specific document only
}

// ReplayDocResult holds the replay result for a single document.
type ReplayDocResult struct {
	DocID       string           `json:"doc_id"`
	Ops         int              `json:"ops"`
	LogHash     string           `json:"log_hash"`
	ForwardHash string           `json:"forward_hash"`
	ReverseHash string           `json:"reverse_hash"`
	Pending     int              `json:"pending"`
	StateVector map[string]int64 `json:"state_vector"`
	Converged   bool             `json:"converged"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Documents    []ReplayDocResult `json:"documents"`
	Total        int               `json:"total"`
	AllConverged bool              `json:"all_converged"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay op logs and verify convergence",
		Long: `Rebuild every stored document twice, once delivering its op log in
causal order and once in reverse order one op at a time, and compare the
resulting state hashes. Matching hashes show the log converges regardless
of delivery order.

Exit codes:
  0 - All documents converge
  1 - Convergence failed (hashes differ or ops stay pending)
  2 - Command error (database not found, etc.)

Examples:
  gisdoc replay --db ./gisdoc.db
  gisdoc replay --db ./gisdoc.db --doc harbour
  gisdoc replay --db ./gisdoc.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", envOr("GISDOC_DB", ""), "path to SQLite database (env GISDOC_DB)")
	cmd.Flags().StringVar(&opts.DocID, "doc", "", "replay specific document only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	ctx := commandContext(cmd)

	st, err := openStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	var docIDs []string
	if opts.DocID != "" {
		docIDs = []string{opts.DocID}
	} else {
		docIDs, err = st.ListDocuments(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list documents", err)
		}
	}

	result := ReplayResult{
		Documents:    make([]ReplayDocResult, 0, len(docIDs)),
		Total:        len(docIDs),
		AllConverged: true,
	}
	for _, docID := range docIDs {
		f.VerboseLog("Replaying %s", docID)
		docResult, err := replayDocument(ctx, st, docID, opts.logger())
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay %s", docID), err)
		}
		result.Documents = append(result.Documents, docResult)
		if !docResult.Converged {
			result.AllConverged = false
		}
	}

	if opts.Format == "json" {
		if err := f.Success(result); err != nil {
			return err
		}
	} else {
		writeReplayText(cmd.OutOrStdout(), result, opts.Verbose)
	}

	if !result.AllConverged {
		return NewExitError(ExitFailure, "replay did not converge")
	}
	return nil
}

// replayDocument rebuilds one document in both delivery orders.
func replayDocument(ctx context.Context, st *store.Store, docID string, logger *slog.Logger) (ReplayDocResult, error) {
	ops, err := st.ReadOps(ctx, docID)
	if err != nil {
		return ReplayDocResult{}, err
	}
	vector, err := st.StateVector(ctx, docID)
	if err != nil {
		return ReplayDocResult{}, err
	}
	logHash, err := ir.ItemHash(ops)
	if err != nil {
		return ReplayDocResult{}, err
	}

	forward := document.New(document.WithLogger(logger))
	if err := forward.LoadUpdates(ops); err != nil {
		return ReplayDocResult{}, fmt.Errorf("forward replay: %w", err)
	}

	reverse := document.New(document.WithLogger(logger))
	for _, op := range slices.Backward(ops) {
		if err := reverse.ApplyUpdate(crdt.Update{Origin: "replay", Ops: []crdt.Op{op}}); err != nil {
			return ReplayDocResult{}, fmt.Errorf("reverse replay: %w", err)
		}
	}

	fh, err := forward.StateHash()
	if err != nil {
		return ReplayDocResult{}, err
	}
	rh, err := reverse.StateHash()
	if err != nil {
		return ReplayDocResult{}, err
	}
	pending := max(forward.Pending(), reverse.Pending())

	return ReplayDocResult{
		DocID:       docID,
		Ops:         len(ops),
		LogHash:     logHash,
		ForwardHash: fh,
		ReverseHash: rh,
		Pending:     pending,
		StateVector: vector,
		Converged:   fh == rh && pending == 0,
	}, nil
}

func writeReplayText(w io.Writer, result ReplayResult, verbose bool) {
	if result.Total == 0 {
		fmt.Fprintln(w, "No documents found in database.")
		return
	}
	for _, d := range result.Documents {
		mark := "✓"
		if !d.Converged {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s: %d ops, state %s\n", mark, d.DocID, d.Ops, d.ForwardHash[:12])
		if !d.Converged {
			fmt.Fprintf(w, "  forward %s\n  reverse %s\n  pending %d\n", d.ForwardHash, d.ReverseHash, d.Pending)
		}
		if verbose {
			var parts []string
			for _, replica := range slices.Sorted(maps.Keys(d.StateVector)) {
				parts = append(parts, fmt.Sprintf("%s:%d", replica, d.StateVector[replica]))
			}
			fmt.Fprintf(w, "  log %s\n  replicas %s\n", d.LogHash, strings.Join(parts, " "))
		}
	}
	fmt.Fprintf(w, "\n%d document(s) replayed\n", result.Total)
}

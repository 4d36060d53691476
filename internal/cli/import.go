package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/roach88/gisdoc/internal/document"
	"github.com/roach88/gisdoc/internal/ir"
	"github.com/roach88/gisdoc/internal/store"
)

// watchDebounce coalesces the burst of events an editor save produces.
const watchDebounce = 100 * time.Millisecond

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Database string
	DocID    string
	Watch    bool
}

// ImportResult reports one import.
type ImportResult struct {
	DocID     string `json:"doc_id"`
	File      string `json:"file"`
	Ops       int    `json:"ops"`
	Unchanged bool   `json:"unchanged"`
	StateHash string `json:"state_hash"`
}

func (r ImportResult) String() string {
	if r.Unchanged {
		return fmt.Sprintf("%s: unchanged", r.DocID)
	}
	return fmt.Sprintf("%s: imported %s (%d ops)", r.DocID, r.File, r.Ops)
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Replace a stored document with the content of a file",
		Long: `Validate a JSON document and install it as the content of a stored
document. The change is recorded as ordinary ops, so connected editors
receive it the next time they sync.

With --watch the file is re-imported every time it changes until the
command is interrupted. A file whose content already matches the stored
document is skipped.

Examples:
  gisdoc import --db ./gisdoc.db --doc harbour ./harbour.json
  gisdoc import --db ./gisdoc.db --doc harbour ./harbour.json --watch`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", envOr("GISDOC_DB", ""), "path to SQLite database (env GISDOC_DB)")
	cmd.Flags().StringVar(&opts.DocID, "doc", "", "document id (required)")
	_ = cmd.MarkFlagRequired("doc")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "re-import whenever the file changes")

	return cmd
}

func runImport(opts *ImportOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	st, err := openStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := commandContext(cmd)

	result, err := importFile(ctx, st, opts.DocID, path, opts.logger())
	if err != nil {
		return f.Fail(importExitCode(err), errorCode(err, ErrCodeStore), "import failed", err)
	}
	if err := f.Success(result); err != nil {
		return err
	}
	if !opts.Watch {
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return watchFile(ctx, path, opts.logger(), func() {
		result, err := importFile(ctx, st, opts.DocID, path, opts.logger())
		if err != nil {
			// An invalid intermediate save is expected while someone edits.
			opts.logger().Warn("re-import failed", "file", path, "error", err)
			return
		}
		_ = f.Success(result)
	})
}

// importFile installs the file's content into the stored document.
func importFile(ctx context.Context, st *store.Store, docID, path string, logger *slog.Logger) (ImportResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ImportResult{}, WrapExitError(ExitCommandError, "failed to read document", err)
	}
	content, err := document.ParseContent(data)
	if err != nil {
		return ImportResult{}, err
	}
	want, err := ir.StateHash(content)
	if err != nil {
		return ImportResult{}, err
	}

	doc, err := loadDocument(ctx, st, docID, logger)
	if err != nil {
		return ImportResult{}, err
	}
	have, err := doc.StateHash()
	if err != nil {
		return ImportResult{}, err
	}
	result := ImportResult{DocID: docID, File: path, StateHash: want}
	if have == want {
		result.Unchanged = true
		return result, nil
	}

	n, err := persistLocal(ctx, st, docID, doc, func() error { return doc.FromJSON(data) })
	if err != nil {
		return ImportResult{}, err
	}
	result.Ops = n
	logger.Info("imported document", "doc", docID, "file", path, "ops", n)
	return result, nil
}

func importExitCode(err error) int {
	if document.Code(err) != "" {
		return ExitFailure
	}
	return GetExitCode(err)
}

// watchFile calls onChange, debounced, whenever path is written or
// replaced. The parent directory is watched so that editors which save by
// renaming a temporary file are still seen. Blocks until ctx is done.
func watchFile(ctx context.Context, path string, logger *slog.Logger, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	logger.Info("watching for changes", "file", abs)

	timer := time.NewTimer(watchDebounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			logger.Debug("file event", "name", event.Name, "op", event.Op.String())
			timer.Reset(watchDebounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("fsnotify error", "error", err)
		case <-timer.C:
			onChange()
		}
	}
}

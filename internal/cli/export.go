package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/gisdoc/internal/document"
	"github.com/roach88/gisdoc/internal/ir"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Database string
	DocID    string
	Output   string
}

// ExportResult reports an export. Document is set only when nothing was
// written to a file.
type ExportResult struct {
	DocID     string      `json:"doc_id"`
	File      string      `json:"file,omitempty"`
	Bytes     int         `json:"bytes"`
	StateHash string      `json:"state_hash"`
	Document  *ir.Content `json:"document,omitempty"`
}

func (r ExportResult) String() string {
	return fmt.Sprintf("✓ wrote %s to %s (%d bytes, state %s)", r.DocID, r.File, r.Bytes, r.StateHash[:12])
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a stored document as canonical JSON",
		Long: `Rebuild a document from its op log and write it as indented canonical
JSON, the same format import accepts.

Without -o the document is written to stdout.

Examples:
  gisdoc export --db ./gisdoc.db --doc harbour
  gisdoc export --db ./gisdoc.db --doc harbour -o harbour.json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", envOr("GISDOC_DB", ""), "path to SQLite database (env GISDOC_DB)")
	cmd.Flags().StringVar(&opts.DocID, "doc", "", "document id (required)")
	_ = cmd.MarkFlagRequired("doc")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file")

	return cmd
}

func runExport(opts *ExportOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	ctx := commandContext(cmd)

	st, err := openStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	n, err := st.CountOps(ctx, opts.DocID)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to read document", err)
	}
	if n == 0 {
		return f.Fail(ExitFailure, string(document.ErrCodeNotFound), "export failed", fmt.Errorf("document %q has no ops", opts.DocID))
	}

	doc, err := loadDocument(ctx, st, opts.DocID, opts.logger())
	if err != nil {
		return f.Fail(ExitFailure, errorCode(err, ErrCodeStore), "failed to load document", err)
	}
	data, err := doc.ToJSON()
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeCommand, "failed to encode document", err)
	}
	hash, err := doc.StateHash()
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeCommand, "failed to hash document", err)
	}
	f.VerboseLog("Rebuilt %s from %d ops", opts.DocID, n)

	result := ExportResult{DocID: opts.DocID, File: opts.Output, Bytes: len(data), StateHash: hash}
	if opts.Output == "" {
		if f.Format == "json" {
			content := doc.Content()
			result.Document = &content
			return f.Success(result)
		}
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}

	if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
		return f.Fail(ExitCommandError, ErrCodeCommand, "failed to write output", err)
	}
	return f.Success(result)
}

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/gisdoc/internal/document"
	"github.com/roach88/gisdoc/internal/ir"
	"github.com/roach88/gisdoc/internal/layertree"
)

// TreeOptions holds flags for the tree command.
type TreeOptions struct {
	*RootOptions
	Database string
	DocID    string
}

// TreeResult is the layer tree of a stored document and any broken
// tree invariants, such as the duplicate branches concurrent edits can
// leave behind.
type TreeResult struct {
	DocID      string              `json:"doc_id"`
	LayerTree  []ir.LayerTreeItem  `json:"layer_tree"`
	Order      []string            `json:"order"`
	Violations []string            `json:"violations,omitempty"`
	layers     map[string]ir.Layer
}

func (r TreeResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", r.DocID)
	writeTree(&b, r.LayerTree, r.layers, 1)
	for _, v := range r.Violations {
		fmt.Fprintf(&b, "! %s\n", v)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func writeTree(b *strings.Builder, items []ir.LayerTreeItem, layers map[string]ir.Layer, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, item := range items {
		if item.IsGroup() {
			fmt.Fprintf(b, "%s%s/\n", indent, item.Group.Name)
			writeTree(b, item.Group.Layers, layers, depth+1)
			continue
		}
		l, ok := layers[item.LayerID]
		switch {
		case !ok:
			fmt.Fprintf(b, "%s%s (missing)\n", indent, item.LayerID)
		case l.Visible:
			fmt.Fprintf(b, "%s%s  %s [%s]\n", indent, item.LayerID, l.Name, l.Type)
		default:
			fmt.Fprintf(b, "%s%s  %s [%s, hidden]\n", indent, item.LayerID, l.Name, l.Type)
		}
	}
}

// NewTreeCommand creates the tree command.
func NewTreeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TreeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the layer tree of a stored document",
		Long: `Print the layer tree of a stored document, top to bottom, and report
leaves without a layer record, layers listed twice and group names used
twice.

Exit codes:
  0 - Tree printed (violations are reported, not fatal)
  2 - Command error (database errors)`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTree(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", envOr("GISDOC_DB", ""), "path to SQLite database (env GISDOC_DB)")
	cmd.Flags().StringVar(&opts.DocID, "doc", "", "document id (required)")
	_ = cmd.MarkFlagRequired("doc")

	return cmd
}

func runTree(opts *TreeOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	ctx := commandContext(cmd)

	st, err := openStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	doc, err := loadDocument(ctx, st, opts.DocID, opts.logger())
	if err != nil {
		return f.Fail(ExitCommandError, errorCode(err, ErrCodeStore), "failed to load document", err)
	}
	return f.Success(treeResult(opts.DocID, doc))
}

func treeResult(docID string, doc *document.Document) TreeResult {
	tree := doc.LayerTree()
	result := TreeResult{
		DocID:     docID,
		LayerTree: tree,
		Order:     layertree.Flatten(tree),
		layers:    doc.Layers(),
	}
	for _, v := range layertree.CheckIntegrity(tree, doc.LayerExists) {
		result.Violations = append(result.Violations, v.String())
	}
	return result
}

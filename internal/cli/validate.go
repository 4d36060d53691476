package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/gisdoc/internal/document"
	"github.com/roach88/gisdoc/internal/ir"
	"github.com/roach88/gisdoc/internal/layertree"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool   `json:"valid"`
	File      string `json:"file"`
	Layers    int    `json:"layers"`
	Sources   int    `json:"sources"`
	Groups    int    `json:"groups"`
	StateHash string `json:"state_hash"`
}

func (r ValidationResult) String() string {
	return fmt.Sprintf("✓ %s is valid (%d layers, %d sources, %d groups)", r.File, r.Layers, r.Sources, r.Groups)
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a document file without importing it",
		Long: `Validate a JSON document against the document schema and the layer-tree
rules (every leaf references a layer, no layer id or group name twice).

Exit codes:
  0 - Document is valid
  1 - Document is invalid
  2 - Command error (file not readable)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	data, err := os.ReadFile(path)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeCommand, "failed to read document", err)
	}
	f.VerboseLog("Read %d bytes from %s", len(data), path)

	content, err := document.ParseContent(data)
	if err != nil {
		return f.Fail(ExitFailure, errorCode(err, string(document.ErrCodeFormat)), "invalid document", err)
	}

	hash, err := ir.StateHash(content)
	if err != nil {
		return f.Fail(ExitFailure, string(document.ErrCodeFormat), "invalid document", err)
	}

	return f.Success(ValidationResult{
		Valid:     true,
		File:      path,
		Layers:    len(content.Layers),
		Sources:   len(content.Sources),
		Groups:    len(layertree.GroupNames(content.LayerTree)),
		StateHash: hash,
	})
}

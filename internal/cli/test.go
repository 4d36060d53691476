package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/gisdoc/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update    bool   // regenerate golden files
	Filter    string // scenario filter (glob pattern)
	GoldenDir string // defaults to a golden/ directory next to the scenarios
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden,omitempty"` // "match", "updated" or "missing"
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run replica scenarios",
		Long: `Run YAML editing scenarios against in-memory replicas.

Each scenario drives several replicas through model operations and syncs,
then checks its assertions. When a golden file named after the scenario
exists, the trace and final document must match it too.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  gisdoc test ./testdata/scenarios
  gisdoc test ./testdata/scenarios --filter "remove_*"
  gisdoc test ./testdata/scenarios --update`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.GoldenDir, "golden", "", "golden file directory (default: ../golden relative to the scenarios)")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}
	goldenDir := opts.GoldenDir
	if goldenDir == "" {
		goldenDir = filepath.Join(filepath.Dir(filepath.Clean(scenariosDir)), "golden")
	}

	files, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	result := TestResult{Scenarios: make([]ScenarioResult, 0, len(files)), Total: len(files)}
	for _, file := range files {
		sr := runScenario(file, goldenDir, opts)
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		if err := f.Success(result); err != nil {
			return err
		}
	} else {
		writeTestText(cmd.OutOrStdout(), result)
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// findScenarioFiles finds all YAML scenario files in a directory.
func findScenarioFiles(dir string, filter string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

// runScenario executes a single scenario and compares its snapshot with
// the golden file, if any.
func runScenario(file, goldenDir string, opts *TestOptions) ScenarioResult {
	name := filepath.Base(file)
	fail := func(format string, args ...any) ScenarioResult {
		return ScenarioResult{Name: name, Errors: []string{fmt.Sprintf(format, args...)}}
	}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return fail("failed to load scenario: %v", err)
	}
	name = scenario.Name

	result, snapshot, err := harness.RunSnapshot(scenario, harness.WithLogger(opts.logger()))
	if err != nil {
		return fail("execution failed: %v", err)
	}
	sr := ScenarioResult{Name: name, Pass: result.Pass, Errors: result.Errors}

	goldenPath := filepath.Join(goldenDir, name+".golden")
	if opts.Update {
		if err := os.MkdirAll(goldenDir, 0o755); err != nil {
			return fail("failed to create golden directory: %v", err)
		}
		if err := os.WriteFile(goldenPath, snapshot, 0o644); err != nil {
			return fail("failed to write golden file: %v", err)
		}
		sr.Golden = "updated"
		return sr
	}

	want, err := os.ReadFile(goldenPath)
	switch {
	case os.IsNotExist(err):
		sr.Golden = "missing"
	case err != nil:
		return fail("failed to read golden file: %v", err)
	case !bytes.Equal(want, snapshot):
		sr.Pass = false
		sr.Errors = append(sr.Errors, "snapshot does not match golden file (run with --update to regenerate)")
	default:
		sr.Golden = "match"
	}
	return sr
}

func writeTestText(w io.Writer, result TestResult) {
	if result.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}
	for _, s := range result.Scenarios {
		if s.Pass {
			fmt.Fprintf(w, "✓ %s\n", s.Name)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", s.Name)
		for _, e := range s.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
}

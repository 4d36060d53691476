package harness

import (
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/gisdoc/internal/ir"
)

// Snapshot is what a golden file holds: the trace and the exported
// document of the first replica.
type Snapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
	Document     ir.Content   `json:"document"`
}

// RunSnapshot executes a scenario and returns the result together with the
// indented canonical snapshot a golden file holds.
func RunSnapshot(scenario *Scenario, opts ...Option) (*Result, []byte, error) {
	h, err := newHarness(scenario, opts...)
	if err != nil {
		return nil, nil, err
	}
	defer h.close()

	result := NewResult()
	h.execute(result)
	h.evaluate(result)

	data, err := ir.MarshalCanonicalIndent(Snapshot{
		ScenarioName: scenario.Name,
		Trace:        result.Trace,
		Document:     h.models[scenario.Replicas[0]].Content(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot %s: %w", scenario.Name, err)
	}
	return result, data, nil
}

// RunWithGolden executes a scenario, fails if it does not pass, and
// compares the snapshot against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, data, err := RunSnapshot(scenario)
	if err != nil {
		return err
	}
	if !result.Pass {
		return fmt.Errorf("scenario %s failed:\n%v", scenario.Name, result.Errors)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return nil
}

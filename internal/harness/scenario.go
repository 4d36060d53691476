package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted editing session across several replicas.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Replicas lists the replica ids. Each one gets an empty model.
	Replicas []string `yaml:"replicas"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions are checked after the last step.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is either a model operation on one replica or a sync.
type Step struct {
	Replica string         `yaml:"replica,omitempty"`
	Op      string         `yaml:"op,omitempty"`
	Args    map[string]any `yaml:"args,omitempty"`
	Sync    *SyncStep      `yaml:"sync,omitempty"`
}

// SyncStep delivers ops between replicas.
type SyncStep struct {
	// From and To name one direction. Both empty means all pairs.
	From string `yaml:"from,omitempty"`
	To   string `yaml:"to,omitempty"`

	// Order is "forward" (default) or "reverse".
	Order string `yaml:"order,omitempty"`
}

// Assertion validates final state or a step outcome.
type Assertion struct {
	// Type is one of tree, ordered_ids, layer_exists, converged, error.
	Type string `yaml:"type"`

	// Replica selects the model (tree, ordered_ids, layer_exists).
	Replica string `yaml:"replica,omitempty"`

	// Expect is the expected tree (tree) or id list (ordered_ids).
	Expect any `yaml:"expect,omitempty"`

	// ID is the layer id (layer_exists).
	ID string `yaml:"id,omitempty"`

	// Exists defaults to true (layer_exists).
	Exists *bool `yaml:"exists,omitempty"`

	// Step is the 0-based step index and Code the error code (error).
	Step int    `yaml:"step,omitempty"`
	Code string `yaml:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertTree        = "tree"
	AssertOrderedIDs  = "ordered_ids"
	AssertLayerExists = "layer_exists"
	AssertConverged   = "converged"
	AssertError       = "error"
)

// Sync orders.
const (
	OrderForward = "forward"
	OrderReverse = "reverse"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict fields catch typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Replicas) == 0 {
		return fmt.Errorf("replicas list is required and must be non-empty")
	}
	for i, id := range s.Replicas {
		if id == "" {
			return fmt.Errorf("replicas[%d]: empty id", i)
		}
		if slices.Contains(s.Replicas[:i], id) {
			return fmt.Errorf("replicas[%d]: duplicate id %q", i, id)
		}
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	known := func(id string) bool { return slices.Contains(s.Replicas, id) }

	for i, step := range s.Steps {
		switch {
		case step.Sync != nil && step.Op != "":
			return fmt.Errorf("steps[%d]: op and sync are mutually exclusive", i)
		case step.Sync != nil:
			sy := step.Sync
			if (sy.From == "") != (sy.To == "") {
				return fmt.Errorf("steps[%d].sync: from and to must be given together", i)
			}
			if sy.From != "" && (!known(sy.From) || !known(sy.To)) {
				return fmt.Errorf("steps[%d].sync: unknown replica in %s -> %s", i, sy.From, sy.To)
			}
			if sy.Order != "" && sy.Order != OrderForward && sy.Order != OrderReverse {
				return fmt.Errorf("steps[%d].sync: order must be forward or reverse, got %q", i, sy.Order)
			}
		case step.Op != "":
			if !known(step.Replica) {
				return fmt.Errorf("steps[%d]: unknown replica %q", i, step.Replica)
			}
			if _, ok := operations[step.Op]; !ok {
				return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
			}
		default:
			return fmt.Errorf("steps[%d]: op or sync is required", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i], s, known); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, s *Scenario, known func(string) bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTree, AssertOrderedIDs:
		if !known(a.Replica) {
			return fmt.Errorf("assertions[%d]: unknown replica %q for %s", index, a.Replica, a.Type)
		}
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for %s", index, a.Type)
		}
	case AssertLayerExists:
		if !known(a.Replica) {
			return fmt.Errorf("assertions[%d]: unknown replica %q for layer_exists", index, a.Replica)
		}
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for layer_exists", index)
		}
	case AssertConverged:
	case AssertError:
		if a.Step < 0 || a.Step >= len(s.Steps) || s.Steps[a.Step].Op == "" {
			return fmt.Errorf("assertions[%d]: step %d is not an op step", index, a.Step)
		}
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for error", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

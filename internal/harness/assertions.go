package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/gisdoc/internal/ir"
	"github.com/roach88/gisdoc/internal/model"
)

// AssertionContext gives assertions access to the replicas after a run.
type AssertionContext struct {
	Models   map[string]*model.Model
	Replicas []string
	// Failed maps step index to the error code it produced.
	Failed map[int]string
}

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Replica  string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s", e.Type)
	if e.Replica != "" {
		fmt.Fprintf(&buf, " on %s", e.Replica)
	}
	fmt.Fprintf(&buf, "\n  Expected: %s\n  Actual: %s", e.Expected, e.Actual)
	return buf.String()
}

// assertTree compares the replica's tree with the expected YAML value,
// both rendered as canonical JSON.
func assertTree(m *model.Model, a Assertion) error {
	want, err := canonicalValue(a.Expect)
	if err != nil {
		return fmt.Errorf("tree assertion: expect: %w", err)
	}
	got, err := ir.MarshalCanonical(m.LayerTree())
	if err != nil {
		return fmt.Errorf("tree assertion: %w", err)
	}
	if !bytes.Equal(want, got) {
		return &AssertionError{Type: AssertTree, Replica: a.Replica, Expected: string(want), Actual: string(got)}
	}
	return nil
}

func assertOrderedIDs(m *model.Model, a Assertion) error {
	raw, ok := a.Expect.([]any)
	if !ok {
		return fmt.Errorf("ordered_ids assertion: expect must be a list, got %T", a.Expect)
	}
	want := make([]string, len(raw))
	for i, v := range raw {
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("ordered_ids assertion: expect[%d] is %T, not a string", i, v)
		}
		want[i] = s
	}
	got := m.OrderedLayerIDs()
	if !slices.Equal(want, got) {
		return &AssertionError{
			Type: AssertOrderedIDs, Replica: a.Replica,
			Expected: fmt.Sprint(want), Actual: fmt.Sprint(got),
		}
	}
	return nil
}

func assertLayerExists(m *model.Model, a Assertion) error {
	want := a.Exists == nil || *a.Exists
	_, got := m.Layer(a.ID)
	if want != got {
		return &AssertionError{
			Type: AssertLayerExists, Replica: a.Replica,
			Expected: fmt.Sprintf("layer %s exists=%t", a.ID, want),
			Actual:   fmt.Sprintf("exists=%t", got),
		}
	}
	return nil
}

// assertConverged checks every replica against the first.
func assertConverged(actx *AssertionContext) error {
	var (
		firstID   string
		firstHash string
	)
	for _, id := range actx.Replicas {
		doc := actx.Models[id].Document()
		if n := doc.Pending(); n > 0 {
			return &AssertionError{Type: AssertConverged, Replica: id, Expected: "no pending ops", Actual: fmt.Sprintf("%d pending", n)}
		}
		hash, err := doc.StateHash()
		if err != nil {
			return fmt.Errorf("converged assertion: %s: %w", id, err)
		}
		if firstID == "" {
			firstID, firstHash = id, hash
			continue
		}
		if hash != firstHash {
			return &AssertionError{
				Type: AssertConverged, Replica: id,
				Expected: fmt.Sprintf("state hash of %s (%s)", firstID, firstHash),
				Actual:   hash,
			}
		}
	}
	return nil
}

func assertError(actx *AssertionContext, a Assertion) error {
	got, ok := actx.Failed[a.Step]
	if !ok {
		got = "success"
	}
	if got != a.Code {
		return &AssertionError{
			Type:     AssertError,
			Expected: fmt.Sprintf("step %d fails with %s", a.Step, a.Code),
			Actual:   got,
		}
	}
	return nil
}

// EvaluateAssertions checks every assertion and returns the failure
// messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		m := actx.Models[a.Replica]

		switch a.Type {
		case AssertTree, AssertOrderedIDs, AssertLayerExists:
			if m == nil {
				err = fmt.Errorf("assertion[%d]: unknown replica %q", i, a.Replica)
				break
			}
			switch a.Type {
			case AssertTree:
				err = assertTree(m, a)
			case AssertOrderedIDs:
				err = assertOrderedIDs(m, a)
			default:
				err = assertLayerExists(m, a)
			}
		case AssertConverged:
			err = assertConverged(actx)
		case AssertError:
			err = assertError(actx, a)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

// canonicalValue renders a YAML-decoded value as canonical JSON.
func canonicalValue(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	decoded, err := ir.DecodeValue(data)
	if err != nil {
		return nil, err
	}
	return ir.MarshalCanonical(decoded)
}

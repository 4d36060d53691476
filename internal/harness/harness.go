package harness

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/gisdoc/internal/crdt"
	"github.com/roach88/gisdoc/internal/document"
	"github.com/roach88/gisdoc/internal/model"
)

// Harness holds the replicas of one scenario run.
type Harness struct {
	scenario *Scenario
	models   map[string]*model.Model
	logger   *slog.Logger
	// failed maps step index to the error code it produced.
	failed map[int]string
}

// Option configures a run.
type Option func(*Harness)

// WithLogger routes replica logs to l. Runs are silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Create one empty model per replica
//  2. Execute steps in order, recording the trace
//  3. Evaluate assertions; unexpected step failures are errors too
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	h, err := newHarness(scenario, opts...)
	if err != nil {
		return nil, err
	}
	defer h.close()

	result := NewResult()
	h.execute(result)
	h.evaluate(result)
	return result, nil
}

func newHarness(scenario *Scenario, opts ...Option) (*Harness, error) {
	if scenario == nil {
		return nil, errors.New("nil scenario")
	}
	h := &Harness{
		scenario: scenario,
		models:   make(map[string]*model.Model, len(scenario.Replicas)),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		failed:   make(map[int]string),
	}
	for _, opt := range opts {
		opt(h)
	}
	for _, id := range scenario.Replicas {
		doc := document.New(document.WithReplicaID(id), document.WithLogger(h.logger))
		h.models[id] = model.New(doc, nil)
	}
	return h, nil
}

func (h *Harness) close() {
	for _, m := range h.models {
		m.Close()
	}
}

func (h *Harness) execute(result *Result) {
	for i, step := range h.scenario.Steps {
		if step.Sync != nil {
			h.sync(i, *step.Sync, result)
			continue
		}

		m := h.models[step.Replica]
		before := len(m.Document().Log())
		ev := TraceEvent{Step: i, Type: "op", Replica: step.Replica, Op: step.Op, Args: step.Args}

		op, ok := operations[step.Op]
		var err error
		if !ok {
			err = fmt.Errorf("unknown op %q", step.Op)
		} else {
			err = op(m, args(step.Args))
		}
		if err != nil {
			code := string(document.Code(err))
			if code == "" {
				code = "ERROR"
			}
			ev.Error = code
			h.failed[i] = code
			h.logger.Debug("step failed", "step", i, "op", step.Op, "error", err)
		}
		ev.Ops = len(m.Document().Log()) - before
		result.Trace = append(result.Trace, ev)
	}
}

// sync delivers logs one op at a time in the requested order.
func (h *Harness) sync(i int, s SyncStep, result *Result) {
	order := s.Order
	if order == "" {
		order = OrderForward
	}

	pairs := [][2]string{{s.From, s.To}}
	if s.From == "" {
		pairs = pairs[:0]
		for _, from := range h.scenario.Replicas {
			for _, to := range h.scenario.Replicas {
				if from != to {
					pairs = append(pairs, [2]string{from, to})
				}
			}
		}
	}

	for _, p := range pairs {
		from, to := h.models[p[0]], h.models[p[1]]
		ops := from.Document().Log()
		if order == OrderReverse {
			slices.Reverse(ops)
		}
		for _, op := range ops {
			u := crdt.Update{Origin: p[0], Ops: []crdt.Op{op}}
			if err := to.Document().ApplyUpdate(u); err != nil {
				result.AddError(fmt.Sprintf("step %d: deliver %s to %s: %v", i, op.ID, p[1], err))
			}
		}
		result.Trace = append(result.Trace, TraceEvent{
			Step: i, Type: "sync", From: p[0], To: p[1], Order: order, Ops: len(ops),
		})
	}
}

func (h *Harness) evaluate(result *Result) {
	expected := make(map[int]bool)
	for _, a := range h.scenario.Assertions {
		if a.Type == AssertError {
			expected[a.Step] = true
		}
	}
	for _, i := range sortedSteps(h.failed) {
		if !expected[i] {
			result.AddError(fmt.Sprintf("step %d (%s on %s) failed unexpectedly with %s",
				i, h.scenario.Steps[i].Op, h.scenario.Steps[i].Replica, h.failed[i]))
		}
	}

	actx := &AssertionContext{Models: h.models, Replicas: h.scenario.Replicas, Failed: h.failed}
	for _, msg := range EvaluateAssertions(result, h.scenario.Assertions, actx) {
		result.AddError(msg)
	}
}

func sortedSteps(m map[int]string) []int {
	out := make([]int, 0, len(m))
	for i := range m {
		out = append(out, i)
	}
	slices.Sort(out)
	return out
}

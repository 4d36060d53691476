package harness

// TraceEvent records one executed step.
type TraceEvent struct {
	Step    int            `json:"step"`
	Type    string         `json:"type"` // "op" or "sync"
	Replica string         `json:"replica,omitempty"`
	Op      string         `json:"op,omitempty"`
	Args    map[string]any `json:"args,omitempty"`
	Ops     int            `json:"ops"` // ops produced (op) or delivered (sync)
	Error   string         `json:"error,omitempty"`
	From    string         `json:"from,omitempty"`
	To      string         `json:"to,omitempty"`
	Order   string         `json:"order,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when no step failed unexpectedly and every assertion
	// held.
	Pass bool `json:"pass"`

	// Trace contains every executed step in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

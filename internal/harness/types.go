package harness

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every assertion and invariant held.
	Pass bool `json:"pass"`

	// Kernel is the name of the rewritten kernel.
	Kernel string `json:"kernel"`

	// Mode is the pipeline that ran.
	Mode string `json:"mode"`

	// Applied lists the optimization flags in order.
	Applied []string `json:"applied"`

	// Arguments lists the runtime parameter names.
	Arguments []string `json:"arguments"`

	// Dump renders the rewritten trees followed by the elemental
	// functions.
	Dump string `json:"dump"`

	// RunID is the journal ID of the run.
	RunID string `json:"run_id"`

	// Errors contains failed assertions and invariants.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Applied:   []string{},
		Arguments: []string{},
		Errors:    []string{},
	}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

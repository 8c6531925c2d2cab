package harness

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq  int    `json:"seq"`
	Step string `json:"step"`
	At   string `json:"at"` // clock time after the step, RFC 3339
	User string `json:"user,omitempty"`

	// Result holds the step's observable outcome, e.g. the join outcome
	// or the sweep counters.
	Result map[string]any `json:"result,omitempty"`

	// Messages are the notifications sent while the step ran, as
	// "dm <user>: <text>" or "#<channel>: <text>".
	Messages []string `json:"messages,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step expectation and assertion held.
	Pass bool `json:"pass"`

	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`
}

// NewResult creates an empty passing Result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// lastOf returns the last trace event of the given step kind.
func (r *Result) lastOf(step string) (TraceEvent, bool) {
	for i := len(r.Trace) - 1; i >= 0; i-- {
		if r.Trace[i].Step == step {
			return r.Trace[i], true
		}
	}
	return TraceEvent{}, false
}

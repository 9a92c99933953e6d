package harness

import "github.com/roach88/alignsync/internal/domain"

// TraceEvent is one progress event of the run.
type TraceEvent struct {
	State   string `json:"state"`
	Message string `json:"message,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when the expected error and every assertion matched.
	Pass bool `json:"pass"`

	// Trace holds the progress stream up to and including IDLE.
	Trace []TraceEvent `json:"trace"`

	// RemoteCalls lists remote methods in call order.
	RemoteCalls []string `json:"remote_calls"`

	// ErrorCode is the code of the error Sync returned, empty on success.
	ErrorCode string `json:"error,omitempty"`

	// Project is the stored project after the run.
	Project domain.Project `json:"project"`

	// Journal is the number of pending journal entries after the run.
	Journal int `json:"journal"`

	// Links are the stored link ids after the run, sorted.
	Links []string `json:"links"`

	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:        true,
		Trace:       []TraceEvent{},
		RemoteCalls: []string{},
		Links:       []string{},
		Errors:      []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// States returns the state names of the trace.
func (r *Result) States() []string {
	states := make([]string, len(r.Trace))
	for i, e := range r.Trace {
		states[i] = e.State
	}
	return states
}

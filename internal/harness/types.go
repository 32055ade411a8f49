package harness

import "github.com/roach88/cellsync/internal/trace"

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step behaved as expected and every assertion
	// held.
	Pass bool `json:"pass"`

	// Trace holds every event delivered to a scenario listener, in delivery
	// order.
	Trace []trace.Record `json:"-"`

	// Errors holds step and assertion failures.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []trace.Record{},
		Errors: []string{},
	}
}

// AddError records a failure.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends delivered events.
func (r *Result) AddTrace(records ...trace.Record) {
	r.Trace = append(r.Trace, records...)
}

package table

import (
	"errors"
	"fmt"
)

// QuotaEnforcer counts dispatch passes within one top-level call.
//
// Loop detection rejects a listener re-entering itself; AllowLoop listeners
// opt out of that check, and the quota is what keeps a non-converging
// AllowLoop chain from running forever.
type QuotaEnforcer struct {
	maxSteps int
	current  int
}

// NewQuotaEnforcer creates an enforcer allowing maxSteps passes.
func NewQuotaEnforcer(maxSteps int) *QuotaEnforcer {
	return &QuotaEnforcer{maxSteps: maxSteps}
}

// Check counts one pass and fails once the limit is exceeded.
func (q *QuotaEnforcer) Check(table string) error {
	q.current++
	if q.current > q.maxSteps {
		return &StepsExceededError{
			Table: table,
			Steps: q.current,
			Limit: q.maxSteps,
		}
	}
	return nil
}

// Current returns the number of passes counted so far.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// MaxSteps returns the limit.
func (q *QuotaEnforcer) MaxSteps() int {
	return q.maxSteps
}

// StepsExceededError is returned when one call runs more dispatch passes
// than the table allows.
type StepsExceededError struct {
	Table string
	Steps int
	Limit int
}

func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("%s exceeded max steps quota: %d passes > %d limit",
		e.Table, e.Steps, e.Limit)
}

// IsQuotaError reports whether err is or wraps a StepsExceededError.
func IsQuotaError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}

package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/cellsync/internal/table"
	"github.com/roach88/cellsync/internal/trace"
	"github.com/roach88/cellsync/internal/value"
)

// AssertionError is returned when an assertion fails. It carries the full
// trace for context.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []trace.Record
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, r := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s\n", i+1, r.Pass, r)
		}
	}
	return buf.String()
}

func errorMatches(class string, err error) bool {
	switch class {
	case "any":
		return true
	case "loop":
		return table.IsLoopError(err)
	case "quota":
		return table.IsQuotaError(err)
	case "invalid_value":
		return value.IsInvalidValue(err)
	case "unsupported":
		return value.IsUnsupported(err)
	case "invalid_cell":
		return table.IsInvalidCell(err)
	case "invalid_table":
		return table.IsInvalidTable(err)
	case "invalid_row":
		return table.IsInvalidRow(err)
	}
	return false
}

// assertTraceContains checks that an event with the given text was
// delivered.
func assertTraceContains(records []trace.Record, a Assertion) error {
	for _, r := range records {
		if r.String() == a.Event {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: a.Event,
		Actual:   "not found in trace",
		Trace:    records,
	}
}

// assertTraceOrder checks that the events appear in order. Other events may
// appear between them.
func assertTraceOrder(records []trace.Record, a Assertion) error {
	next := 0
	for _, r := range records {
		if next < len(a.Events) && r.String() == a.Events[next] {
			next++
		}
	}
	if next == len(a.Events) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("events in order: %q", a.Events),
		Actual:   fmt.Sprintf("matched %d, then missing %q", next, a.Events[next]),
		Trace:    records,
	}
}

// assertTraceCount checks the number of events for an optional listener
// and cell.
func assertTraceCount(records []trace.Record, a Assertion) error {
	count := 0
	for _, r := range records {
		if a.Listener != "" && r.Listener != a.Listener {
			continue
		}
		if a.Cell != "" && r.Cell() != a.Cell {
			continue
		}
		count++
	}
	if count == a.Count {
		return nil
	}
	what := "events"
	if a.Listener != "" {
		what += " for " + a.Listener
	}
	if a.Cell != "" {
		what += " at " + a.Cell
	}
	return &AssertionError{
		Type:     AssertTraceCount,
		Expected: fmt.Sprintf("%d %s", a.Count, what),
		Actual:   fmt.Sprintf("%d %s", count, what),
		Trace:    records,
	}
}

// assertFinalValue checks a cell's value after all steps.
func assertFinalValue(reg *table.Registry, defaultTable string, a Assertion) error {
	name := a.Table
	if name == "" {
		name = defaultTable
	}
	t, ok := reg.Lookup(name)
	if !ok {
		return &AssertionError{
			Type:     AssertFinalValue,
			Expected: fmt.Sprintf("table %q", name),
			Actual:   "table not found",
		}
	}
	want := value.Normalize(a.Value.Get())
	got := t.Get(header(a.Column), a.Row)
	if value.Equal(want, got) {
		return nil
	}
	return &AssertionError{
		Type:     AssertFinalValue,
		Expected: fmt.Sprintf("%s %s[%d] = %s", name, a.Column, a.Row, describe(want)),
		Actual:   describe(got),
	}
}

func describe(v value.Value) string {
	if value.IsUnit(v) {
		return "unit"
	}
	return fmt.Sprintf("%s(%s)", v.Kind(), trace.Text(v))
}

// EvaluateAssertions checks every assertion and returns the failure
// messages.
func EvaluateAssertions(result *Result, assertions []Assertion, reg *table.Registry, defaultTable string) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertFinalValue:
			err = assertFinalValue(reg, defaultTable, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

package table

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/cellsync/internal/value"
)

// InvalidCellError is returned when a cell is used as a number but is empty
// or holds a non-numeric value.
type InvalidCellError struct {
	Cell    string
	Value   value.Value
	Message string
}

func (e *InvalidCellError) Error() string {
	return fmt.Sprintf("invalid cell %s: %s (value %s)", e.Cell, e.Message, e.Value)
}

// InvalidTableError reports structural misuse of a table: a deleted table,
// or references that span tables where one table is required.
type InvalidTableError struct {
	Table   string
	Message string
}

func (e *InvalidTableError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Table, e.Message)
}

// InvalidRowError is returned when a row reference with a relation other than
// At is used as a subscription target.
type InvalidRowError struct {
	Row      string
	Relation IndexRelation
}

func (e *InvalidRowError) Error() string {
	return fmt.Sprintf("invalid row %s: listeners accept only the %s relation, got %s", e.Row, At, e.Relation)
}

// ListenerLoopError is returned when a listener without AllowLoop would be
// notified while one of its own invocations is still on the dispatch chain,
// that is, when it re-triggers itself directly or through other cells and
// listeners.
type ListenerLoopError struct {
	Listener string
	Cell     string
	Chain    []string // listener@cell frames, outermost first
}

func (e *ListenerLoopError) Error() string {
	return fmt.Sprintf("listener %s would re-trigger itself on %s (chain: %s)",
		e.Listener, e.Cell, strings.Join(e.Chain, " -> "))
}

// IsLoopError reports whether err is or wraps a ListenerLoopError.
func IsLoopError(err error) bool {
	var le *ListenerLoopError
	return errors.As(err, &le)
}

// IsInvalidTable reports whether err is or wraps an InvalidTableError.
func IsInvalidTable(err error) bool {
	var te *InvalidTableError
	return errors.As(err, &te)
}

// IsInvalidCell reports whether err is or wraps an InvalidCellError.
func IsInvalidCell(err error) bool {
	var ce *InvalidCellError
	return errors.As(err, &ce)
}

// IsInvalidRow reports whether err is or wraps an InvalidRowError.
func IsInvalidRow(err error) bool {
	var re *InvalidRowError
	return errors.As(err, &re)
}

package value

import (
	"errors"
	"fmt"
)

// InvalidValueError is returned when a write or an arithmetic combination
// supplies an incompatible value or type pairing.
type InvalidValueError struct {
	Op      string // "add", "compare", "convert", ...
	Left    Value
	Right   Value
	Message string
}

func (e *InvalidValueError) Error() string {
	switch {
	case e.Op != "" && e.Left != nil && e.Right != nil:
		return fmt.Sprintf("invalid value: %s %s(%s) and %s(%s): %s",
			e.Op, e.Left.Kind(), e.Left, e.Right.Kind(), e.Right, e.Message)
	case e.Op != "" && e.Left != nil:
		return fmt.Sprintf("invalid value: %s %s(%s): %s", e.Op, e.Left.Kind(), e.Left, e.Message)
	default:
		return "invalid value: " + e.Message
	}
}

// UnsupportedOperationError is returned for Go numeric types outside the
// coercion matrix, such as int16 or uint64.
type UnsupportedOperationError struct {
	Type string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("unsupported numeric type %s", e.Type)
}

// IsInvalidValue reports whether err is or wraps an InvalidValueError.
func IsInvalidValue(err error) bool {
	var ve *InvalidValueError
	return errors.As(err, &ve)
}

// IsUnsupported reports whether err is or wraps an UnsupportedOperationError.
func IsUnsupported(err error) bool {
	var ue *UnsupportedOperationError
	return errors.As(err, &ue)
}

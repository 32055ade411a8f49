package codec

import (
	"errors"
	"fmt"
)

// InvalidStorageError reports malformed or unsupported persisted data.
type InvalidStorageError struct {
	Version uint32 // 0 when the header could not be read
	Reason  string
	Err     error
}

func (e *InvalidStorageError) Error() string {
	msg := "invalid storage: " + e.Reason
	if e.Version != 0 {
		msg = fmt.Sprintf("invalid storage (version %d): %s", e.Version, e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvalidStorageError) Unwrap() error { return e.Err }

// IsInvalidStorage reports whether err is or wraps an InvalidStorageError.
func IsInvalidStorage(err error) bool {
	var se *InvalidStorageError
	return errors.As(err, &se)
}

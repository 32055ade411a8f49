package workbook

import (
	"strings"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileError reports a malformed workbook. Field names the offending
// workbook field, or "cue" for evaluation errors.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	var b strings.Builder
	if e.Pos.IsValid() {
		b.WriteString(e.Pos.String())
		b.WriteString(": ")
	}
	b.WriteString(e.Field)
	b.WriteString(": ")
	b.WriteString(e.Message)
	return b.String()
}

func fieldError(field string, at cue.Value, msg string) *CompileError {
	return &CompileError{Field: field, Message: msg, Pos: at.Pos()}
}

// cueError attaches the first known source position of a CUE error.
// Errors without any position are returned unchanged.
func cueError(err error) error {
	if err == nil {
		return nil
	}
	for _, e := range cueerrors.Errors(err) {
		pos := e.Position()
		if !pos.IsValid() {
			if all := cueerrors.Positions(e); len(all) > 0 {
				pos = all[0]
			}
		}
		if pos.IsValid() {
			return &CompileError{Field: "cue", Message: e.Error(), Pos: pos}
		}
	}
	return err
}

package manifest

import (
	"fmt"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileError reports a malformed manifest with its CUE source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// BindError reports a manifest name with no Registry binding.
type BindError struct {
	Kind string // "type" or "rule"
	Name string
	Pos  token.Pos
}

func (e *BindError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: no %s registered for %q",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Kind, e.Name)
	}
	return fmt.Sprintf("no %s registered for %q", e.Kind, e.Name)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return &CompileError{Field: "cue", Message: first.Error()}
}

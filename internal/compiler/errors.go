package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileError represents a compilation error with source position.
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

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	field := errorField(errors.Path(firstErr))
	format, args := firstErr.Msg()
	message := fmt.Sprintf(format, args...)

	// Prefer a position in the document over one in the schema
	positions := errors.Positions(firstErr)
	for _, pos := range positions {
		if pos.Filename() != schemaFilename {
			return &CompileError{Field: field, Message: message, Pos: pos}
		}
	}
	if len(positions) > 0 {
		return &CompileError{
			Field:   field,
			Message: message,
			Pos:     positions[0],
		}
	}

	return &CompileError{Field: field, Message: message}
}

// errorField joins a CUE error path into a config field name. The schema's
// root definition is not part of the user's document.
func errorField(path []string) string {
	if len(path) > 0 && path[0] == schemaRoot {
		path = path[1:]
	}
	if len(path) == 0 {
		return "config"
	}
	return strings.Join(path, ".")
}

package ir

import (
	"fmt"

	"github.com/pkg/errors"
)

// StructuralError reports a malformed circuit: unresolved names, bad ports,
// ambiguous defaults or an unsatisfiable delay balance. A declaration that
// produced one never enters the Catalog.
type StructuralError struct {
	Path string
	Type string
	Msg  string
}

func (e *StructuralError) Error() string {
	switch {
	case e.Path != "" && e.Type != "":
		return fmt.Sprintf("%s (%s): %s", e.Path, e.Type, e.Msg)
	case e.Path != "":
		return fmt.Sprintf("%s: %s", e.Path, e.Msg)
	case e.Type != "":
		return fmt.Sprintf("%s: %s", e.Type, e.Msg)
	}
	return e.Msg
}

// InternalError reports a disagreement between two compiler passes that
// should compute the same quantity.
type InternalError struct {
	Msg string
}

func (e *InternalError) Error() string {
	return "internal compiler error: " + e.Msg
}

func Structuralf(path, typ, format string, args ...interface{}) error {
	return errors.WithStack(&StructuralError{Path: path, Type: typ, Msg: fmt.Sprintf(format, args...)})
}

func Internalf(format string, args ...interface{}) error {
	return errors.WithStack(&InternalError{Msg: fmt.Sprintf(format, args...)})
}

// IsStructural reports whether err, or any error it wraps, is a
// *StructuralError.
func IsStructural(err error) bool {
	var se *StructuralError
	return errors.As(err, &se)
}

// IsInternal reports whether err, or any error it wraps, is an *InternalError.
func IsInternal(err error) bool {
	var ie *InternalError
	return errors.As(err, &ie)
}

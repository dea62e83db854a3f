package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mvp-joe/cbind/internal/cast"
	"github.com/mvp-joe/cbind/internal/cdecl"
)

// ErrNotFound is returned for a reference to a declaration that was never
// registered, or whose own extraction failed. It is recoverable: the
// declaration holding the reference is skipped.
var ErrNotFound = errors.New("declaration not found")

// UnsupportedTypeError reports a C type with no representation in the model,
// such as 128-bit integers and vectors.
type UnsupportedTypeError struct {
	Kind cast.TypeKind
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported type %s", e.Kind)
}

// InvalidCompositeKindError reports a cursor whose kind does not match the
// variant it is classified as. It is fatal for the whole extraction.
type InvalidCompositeKindError struct {
	Kind cast.CursorKind
}

func (e *InvalidCompositeKindError) Error() string {
	return fmt.Sprintf("invalid composite kind %s", e.Kind)
}

// ParseError is returned when the translation unit has error diagnostics.
// No globals are produced.
type ParseError struct {
	Diagnostics []cast.Diagnostic
}

func (e *ParseError) Error() string {
	if len(e.Diagnostics) == 0 {
		return "parse failed"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "parse failed with %d error(s):", len(e.Diagnostics))
	for _, d := range e.Diagnostics {
		b.WriteString("\n  - ")
		b.WriteString(d.String())
	}
	return b.String()
}

// Diagnostic records a top-level declaration that was skipped.
type Diagnostic struct {
	Loc  cdecl.Location  `json:"location" yaml:"location"`
	Name string          `json:"name" yaml:"name"`
	Kind cast.CursorKind `json:"kind" yaml:"kind"`
	Err  error           `json:"-" yaml:"-"`
}

func (d Diagnostic) String() string {
	name := d.Name
	if name == "" {
		name = "<anonymous>"
	}
	return fmt.Sprintf("%s: skipped %s %s: %v", d.Loc, d.Kind, name, d.Err)
}

// Unsupported reports whether the declaration was skipped for an unsupported type.
func (d Diagnostic) Unsupported() bool {
	var ute *UnsupportedTypeError
	return errors.As(d.Err, &ute)
}

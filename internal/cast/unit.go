package cast

import "fmt"

// Severity of a front-end diagnostic.
type Severity int

const (
	SeverityNote Severity = iota
	SeverityWarning
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityNote:
		return "note"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// Diagnostic is a message produced while parsing.
type Diagnostic struct {
	Severity Severity
	Loc      Location
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Loc, d.Severity, d.Message)
}

// TranslationUnit is the result of parsing one main file and its includes.
type TranslationUnit struct {
	// Cursor is the translation unit cursor; top-level declarations are its children.
	Cursor      *Cursor
	Diagnostics []Diagnostic

	// Files lists the main file followed by every included file, in the
	// order they were first read.
	Files []string
}

// HasErrors reports whether any diagnostic is an error or worse.
func (tu *TranslationUnit) HasErrors() bool {
	for _, d := range tu.Diagnostics {
		if d.Severity >= SeverityError {
			return true
		}
	}
	return false
}

// Errors returns the error and fatal diagnostics.
func (tu *TranslationUnit) Errors() []Diagnostic {
	var errs []Diagnostic
	for _, d := range tu.Diagnostics {
		if d.Severity >= SeverityError {
			errs = append(errs, d)
		}
	}
	return errs
}

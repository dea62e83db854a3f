// Package extract builds the declaration graph of a C translation unit: the
// ordered top-level globals, the types they reference and the member and
// enum-item side tables.
//
// Extraction of one unit is a single depth-first pass over the cursor tree.
// Declarations that cannot be represented are skipped one at a time with a
// Diagnostic; parse errors and classification mismatches abort the run.
package extract

import (
	"errors"

	"github.com/mvp-joe/cbind/internal/cast"
	"github.com/mvp-joe/cbind/internal/cdecl"
)

// Extractor extracts translation units against a fixed set of builtins.
// It keeps no per-run state and may be shared between goroutines.
type Extractor struct {
	builtins *BuiltinResolver
}

// New creates an extractor. builtins may be nil.
func New(builtins *BuiltinResolver) *Extractor {
	return &Extractor{builtins: builtins}
}

// Builtins returns the resolver the extractor was created with.
func (x *Extractor) Builtins() *BuiltinResolver {
	return x.builtins
}

// Extract runs one extraction. It returns a *ParseError when the unit has
// error diagnostics and an *InvalidCompositeKindError on a classification
// mismatch; every other failure is reported in Result.Diagnostics.
func (x *Extractor) Extract(tu *cast.TranslationUnit) (*Result, error) {
	if tu.HasErrors() {
		return nil, &ParseError{Diagnostics: tu.Errors()}
	}

	s := NewState(NewRegistry(x.builtins))
	var fatal error
	cast.Visit(tu.Cursor, func(c, _ *cast.Cursor) cast.VisitResult {
		var err error
		switch c.Kind {
		case cast.CursorUnexposedDecl:
			return cast.VisitRecurse
		case cast.CursorStructDecl, cast.CursorUnionDecl, cast.CursorEnumDecl:
			err = visitTag(s, c)
		case cast.CursorFunctionDecl, cast.CursorVarDecl:
			err = visitSymbol(s, c)
		case cast.CursorTypedefDecl:
			err = visitTypedef(s, c)
		}
		if err == nil {
			return cast.VisitContinue
		}
		var invalid *InvalidCompositeKindError
		if errors.As(err, &invalid) {
			fatal = err
			return cast.VisitBreak
		}
		s.diagnose(c, err)
		return cast.VisitContinue
	})
	if fatal != nil {
		return nil, fatal
	}

	r := s.result()
	for _, d := range tu.Diagnostics {
		if d.Severity < cast.SeverityError {
			r.Warnings = append(r.Warnings, d)
		}
	}
	return r, nil
}

// visitTag registers a struct, union or enum declared at file scope. The
// first sight lists it; a later definition fills its entry in place.
func visitTag(s *State, c *cast.Cursor) error {
	id, g, created, err := s.reg.LookupOrCreate(c)
	if err != nil {
		return err
	}
	if _, ok := g.(*cdecl.Builtin); ok {
		s.place(id)
		return nil
	}
	if _, bad := s.failed[id]; bad {
		return nil
	}
	if !c.IsDefinition {
		if created {
			s.declareOpaque(id, c.Canonical())
		}
		return nil
	}
	s.promote(id)
	return define(s, id, c)
}

// visitSymbol registers functions and variables with external linkage.
// The first declaration of an entity decides its type.
func visitSymbol(s *State, c *cast.Cursor) error {
	if c.Linkage != cast.LinkageExternal && c.Linkage != cast.LinkageUniqueExternal {
		return nil
	}
	id, g, created, err := s.reg.LookupOrCreate(c)
	if err != nil || !created {
		return err
	}

	switch g := g.(type) {
	case *cdecl.Builtin:
	case *cdecl.Function:
		t, err := convert(s, c.Type, c)
		if err != nil {
			s.failed[id] = err
			return err
		}
		g.Type = t
	case *cdecl.Var:
		t, err := convert(s, c.Type, c)
		if err != nil {
			s.failed[id] = err
			return err
		}
		g.Type = t
		g.Const = c.Type.Const
	default:
		return &InvalidCompositeKindError{Kind: c.Kind}
	}
	s.place(id)
	return nil
}

// visitTypedef converts the aliased type. Record and enum tags met only here
// become opaque globals so pointers to them stay expressible.
func visitTypedef(s *State, c *cast.Cursor) error {
	id, g, created, err := s.reg.LookupOrCreate(c)
	if err != nil || !created {
		return err
	}

	switch g := g.(type) {
	case *cdecl.Builtin:
	case *cdecl.Typedef:
		u := c.Underlying
		if u != nil && u.Kind == cast.TypeUnexposed {
			u = u.CanonicalType()
		}
		t, err := convert(s, u, c)
		if err != nil {
			s.failed[id] = err
			return err
		}
		g.Type = t
	default:
		return &InvalidCompositeKindError{Kind: c.Kind}
	}
	s.place(id)
	return nil
}

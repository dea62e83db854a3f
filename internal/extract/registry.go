package extract

import (
	"fmt"

	"github.com/mvp-joe/cbind/internal/cast"
	"github.com/mvp-joe/cbind/internal/cdecl"
)

// Registry maps canonical cursors to globals. Globals live in an arena
// indexed by ID-1; every forward declaration and the definition of one
// entity share a canonical cursor and therefore one ID.
type Registry struct {
	ids      map[*cast.Cursor]cdecl.ID
	globals  []cdecl.Global
	cursors  []*cast.Cursor
	builtins *BuiltinResolver
}

// NewRegistry creates an empty registry. builtins may be nil.
func NewRegistry(builtins *BuiltinResolver) *Registry {
	return &Registry{
		ids:      make(map[*cast.Cursor]cdecl.ID),
		builtins: builtins,
	}
}

// LookupOrCreate returns the global of the cursor's canonical declaration,
// registering it first if needed. A new registration adopts a matching
// builtin entry, or else synthesizes a placeholder of the cursor's kind.
// created reports whether this call registered the global.
func (r *Registry) LookupOrCreate(c *cast.Cursor) (id cdecl.ID, g cdecl.Global, created bool, err error) {
	canon := c.Canonical()
	if id, ok := r.ids[canon]; ok {
		return id, r.globals[id-1], false, nil
	}

	id = cdecl.ID(len(r.globals) + 1)
	if entry, ok := r.builtins.Resolve(canon); ok {
		g = &cdecl.Builtin{Name: cdecl.Name{Text: entry.Name, ID: id}, Type: entry.Type}
	} else if g, err = synthesize(canon, id); err != nil {
		return 0, nil, false, err
	}

	r.ids[canon] = id
	r.globals = append(r.globals, g)
	r.cursors = append(r.cursors, canon)
	return id, g, true, nil
}

// Find returns the global registered for the cursor's canonical declaration.
func (r *Registry) Find(c *cast.Cursor) (cdecl.ID, cdecl.Global, error) {
	id, ok := r.ids[c.Canonical()]
	if !ok {
		return 0, nil, fmt.Errorf("%w: %s", ErrNotFound, c)
	}
	return id, r.globals[id-1], nil
}

// Global returns the global with the given ID, or nil.
func (r *Registry) Global(id cdecl.ID) cdecl.Global {
	if id < 1 || int(id) > len(r.globals) {
		return nil
	}
	return r.globals[id-1]
}

// Cursor returns the canonical cursor registered under id, or nil.
func (r *Registry) Cursor(id cdecl.ID) *cast.Cursor {
	if id < 1 || int(id) > len(r.cursors) {
		return nil
	}
	return r.cursors[id-1]
}

// Len returns the number of registered globals.
func (r *Registry) Len() int {
	return len(r.globals)
}

func compositeKind(k cast.CursorKind) (cdecl.CompositeKind, error) {
	switch k {
	case cast.CursorStructDecl:
		return cdecl.Struct, nil
	case cast.CursorUnionDecl:
		return cdecl.Union, nil
	}
	return 0, &InvalidCompositeKindError{Kind: k}
}

// synthesize builds the placeholder global for a canonical cursor. Types,
// layouts and side tables are filled in by the orchestrator.
func synthesize(c *cast.Cursor, id cdecl.ID) (cdecl.Global, error) {
	name := cdecl.Name{Text: c.Spelling, ID: id}
	loc := location(c.Loc)
	switch c.Kind {
	case cast.CursorStructDecl, cast.CursorUnionDecl:
		kind, err := compositeKind(c.Kind)
		if err != nil {
			return nil, err
		}
		return &cdecl.Composite{Loc: loc, Name: name, Kind: kind, Layout: cdecl.Layout{Size: -1, Align: -1}}, nil
	case cast.CursorEnumDecl:
		return &cdecl.Enum{Loc: loc, Name: name}, nil
	case cast.CursorTypedefDecl:
		return &cdecl.Typedef{Loc: loc, Name: name}, nil
	case cast.CursorFunctionDecl:
		return &cdecl.Function{Loc: loc, Name: name}, nil
	case cast.CursorVarDecl:
		return &cdecl.Var{Loc: loc, Name: name}, nil
	}
	return nil, &InvalidCompositeKindError{Kind: c.Kind}
}

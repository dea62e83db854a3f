package extract

import (
	"slices"

	"github.com/mvp-joe/cbind/internal/cast"
	"github.com/mvp-joe/cbind/internal/cdecl"
)

// Result is the immutable output of one extraction.
type Result struct {
	// Globals is the arena; the global with ID n is Globals[n-1]. It also
	// holds globals of skipped declarations, which no list references.
	Globals []cdecl.Global

	// Shapes holds the canonical declaration shape of each global, by ID.
	Shapes []Shape

	// TopLevel lists file-scope globals in first-registration order.
	TopLevel []cdecl.ID

	// Nested lists globals declared inside records, inner before outer.
	Nested []cdecl.ID

	MembersOf   map[cdecl.ID]cdecl.Members
	EnumItemsOf map[cdecl.ID]cdecl.EnumItems

	// Diagnostics lists skipped declarations.
	Diagnostics []Diagnostic

	// Warnings are the non-fatal front-end diagnostics.
	Warnings []cast.Diagnostic
}

// Global returns the global with the given ID, or nil.
func (r *Result) Global(id cdecl.ID) cdecl.Global {
	if id < 1 || int(id) > len(r.Globals) {
		return nil
	}
	return r.Globals[id-1]
}

// Shape returns the declaration shape of a global.
func (r *Result) Shape(id cdecl.ID) Shape {
	if id < 1 || int(id) > len(r.Shapes) {
		return Shape{}
	}
	return r.Shapes[id-1]
}

// NameOf returns the spelling of a global, suitable for cdecl.Format.
func (r *Result) NameOf(id cdecl.ID) string {
	g := r.Global(id)
	if g == nil {
		return ""
	}
	return g.GlobalName().String()
}

// Listed reports whether id is in the top-level or nested list.
func (r *Result) Listed(id cdecl.ID) bool {
	return slices.Contains(r.TopLevel, id) || slices.Contains(r.Nested, id)
}

// Lookup returns the listed globals spelled name, top-level ones first.
func (r *Result) Lookup(name string) []cdecl.ID {
	var out []cdecl.ID
	for _, ids := range [][]cdecl.ID{r.TopLevel, r.Nested} {
		for _, id := range ids {
			if r.Global(id).GlobalName().Text == name {
				out = append(out, id)
			}
		}
	}
	return out
}

// TopLevelGlobals returns the top-level globals in order.
func (r *Result) TopLevelGlobals() []cdecl.Global {
	out := make([]cdecl.Global, 0, len(r.TopLevel))
	for _, id := range r.TopLevel {
		out = append(out, r.Global(id))
	}
	return out
}

// Select returns a copy of r whose top-level list keeps only the globals
// accepted by keep. The arena and side tables are shared.
func (r *Result) Select(keep func(id cdecl.ID, g cdecl.Global) bool) *Result {
	out := *r
	out.TopLevel = nil
	for _, id := range r.TopLevel {
		if keep(id, r.Global(id)) {
			out.TopLevel = append(out.TopLevel, id)
		}
	}
	return &out
}

// Skipped reports whether a declaration spelled name was skipped.
func (r *Result) Skipped(name string) bool {
	for _, d := range r.Diagnostics {
		if d.Name == name {
			return true
		}
	}
	return false
}

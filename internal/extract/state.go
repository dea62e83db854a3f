package extract

import (
	"fmt"
	"slices"

	"github.com/mvp-joe/cbind/internal/cast"
	"github.com/mvp-joe/cbind/internal/cdecl"
)

// State is the accumulator of one extraction. It is passed to every visit
// step and owned by a single goroutine.
type State struct {
	reg *Registry

	// placed holds top-level IDs; their order is restored from the IDs.
	placed   map[cdecl.ID]bool
	nested   []cdecl.ID
	isNested map[cdecl.ID]bool

	defined    map[cdecl.ID]bool
	referenced map[cdecl.ID]bool
	failed     map[cdecl.ID]error

	members map[cdecl.ID]cdecl.Members
	items   map[cdecl.ID]cdecl.EnumItems

	diagnostics []Diagnostic
}

// NewState creates the accumulator over a registry.
func NewState(reg *Registry) *State {
	return &State{
		reg:        reg,
		placed:     make(map[cdecl.ID]bool),
		isNested:   make(map[cdecl.ID]bool),
		defined:    make(map[cdecl.ID]bool),
		referenced: make(map[cdecl.ID]bool),
		failed:     make(map[cdecl.ID]error),
		members:    make(map[cdecl.ID]cdecl.Members),
		items:      make(map[cdecl.ID]cdecl.EnumItems),
	}
}

// place lists id at top level.
func (s *State) place(id cdecl.ID) {
	if !s.isNested[id] {
		s.placed[id] = true
	}
}

// promote moves id from the nested list to top level. A tag first seen
// inside a record body and defined later at file scope belongs to the file.
func (s *State) promote(id cdecl.ID) {
	if s.isNested[id] {
		delete(s.isNested, id)
		s.nested = slices.DeleteFunc(s.nested, func(n cdecl.ID) bool { return n == id })
	}
	s.placed[id] = true
}

// nest appends id to the nested list once.
func (s *State) nest(id cdecl.ID) {
	if s.placed[id] || s.isNested[id] {
		return
	}
	s.isNested[id] = true
	s.nested = append(s.nested, id)
}

// declareOpaque publishes a tag whose definition has not been visited.
// Tags declared inside a record are nested; all others live at file scope.
func (s *State) declareOpaque(id cdecl.ID, canon *cast.Cursor) {
	switch s.reg.Global(id).(type) {
	case *cdecl.Composite:
		s.members[id] = cdecl.Members{Opaque: true}
	case *cdecl.Enum:
		s.items[id] = cdecl.EnumItems{Underlying: cdecl.Base{Tag: cdecl.UInt}}
	}
	if canon.Parent != nil && canon.Parent.Kind.IsRecord() {
		s.nest(id)
		return
	}
	s.place(id)
}

// usable returns an error when id's own extraction failed.
func (s *State) usable(id cdecl.ID) error {
	if err, ok := s.failed[id]; ok {
		return fmt.Errorf("%w: %s was skipped: %v", ErrNotFound, s.reg.Global(id).GlobalName(), err)
	}
	return nil
}

func (s *State) diagnose(c *cast.Cursor, err error) {
	s.diagnostics = append(s.diagnostics, Diagnostic{
		Loc:  location(c.Loc),
		Name: c.Spelling,
		Kind: c.Kind,
		Err:  err,
	})
}

// result freezes the state. Failed globals are dropped from both lists.
func (s *State) result() *Result {
	r := &Result{
		Globals:     slices.Clone(s.reg.globals),
		Shapes:      make([]Shape, len(s.reg.cursors)),
		MembersOf:   make(map[cdecl.ID]cdecl.Members, len(s.members)),
		EnumItemsOf: make(map[cdecl.ID]cdecl.EnumItems, len(s.items)),
		Diagnostics: s.diagnostics,
	}
	for i, c := range s.reg.cursors {
		r.Shapes[i] = ShapeOf(c)
	}

	for id := range s.placed {
		if _, bad := s.failed[id]; !bad {
			r.TopLevel = append(r.TopLevel, id)
		}
	}
	slices.Sort(r.TopLevel)
	for _, id := range s.nested {
		if _, bad := s.failed[id]; !bad {
			r.Nested = append(r.Nested, id)
		}
	}

	keep := func(id cdecl.ID) bool {
		_, bad := s.failed[id]
		return !bad && (s.placed[id] || s.isNested[id])
	}
	for id, m := range s.members {
		if keep(id) {
			r.MembersOf[id] = m
		}
	}
	for id, items := range s.items {
		if keep(id) {
			r.EnumItemsOf[id] = items
		}
	}
	return r
}

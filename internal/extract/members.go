package extract

import (
	"fmt"

	"github.com/mvp-joe/cbind/internal/cast"
	"github.com/mvp-joe/cbind/internal/cdecl"
)

// define fills the side table entry of a composite or enum from its
// definition cursor. Nested declarations met on the way are defined first.
//
// When the definition cannot be converted the global is marked failed, so
// later references to it fail too. A global that was already referenced
// stays listed as opaque instead.
func define(s *State, id cdecl.ID, def *cast.Cursor) error {
	if s.defined[id] {
		return nil
	}
	s.defined[id] = true
	wasReferenced := s.referenced[id]
	mark := len(s.nested)

	var err error
	switch g := s.reg.Global(id).(type) {
	case *cdecl.Composite:
		var m cdecl.Members
		if m, err = visitMembers(s, def); err == nil {
			g.Loc = location(def.Loc)
			g.Layout = cdecl.Layout{Size: def.Type.SizeOf(), Align: def.Type.AlignOf()}
			s.members[id] = m
			return nil
		}
	case *cdecl.Enum:
		var items cdecl.EnumItems
		if items, err = visitEnum(s, def); err == nil {
			g.Loc = location(def.Loc)
			s.items[id] = items
			return nil
		}
	case *cdecl.Builtin:
		return nil
	default:
		return &InvalidCompositeKindError{Kind: def.Kind}
	}

	// Nested declarations finalized inside the failed one go with it.
	for _, nid := range s.nested[mark:] {
		s.failed[nid] = err
		delete(s.isNested, nid)
	}
	s.nested = s.nested[:mark]

	if wasReferenced {
		s.declareOpaque(id, s.reg.Cursor(id))
		return fmt.Errorf("definition dropped, kept as opaque: %w", err)
	}
	s.failed[id] = err
	return err
}

// visitMembers builds the member list of a record definition in
// declaration order.
func visitMembers(s *State, rec *cast.Cursor) (cdecl.Members, error) {
	var m cdecl.Members
	for i, child := range rec.Children {
		switch child.Kind {
		case cast.CursorStructDecl, cast.CursorUnionDecl, cast.CursorEnumDecl:
			if err := nestedTag(s, child); err != nil {
				return m, err
			}
		case cast.CursorFieldDecl:
			t, err := convert(s, child.Type, child)
			if err != nil {
				return m, fmt.Errorf("field %s: %w", fieldName(child), err)
			}
			if child.BitWidth >= 0 {
				m.Fields = append(m.Fields, cdecl.Bitfield{
					Name:   child.Spelling,
					Type:   t,
					Width:  child.BitWidth,
					Offset: child.FieldOffset,
				})
				m.Irregular = true
				continue
			}
			m.Fields = append(m.Fields, cdecl.Field{
				Name:   child.Spelling,
				Type:   t,
				Offset: child.FieldOffset,
				Owned:  owns(s, rec.Children, i, t),
			})
		}
	}
	if len(m.Fields) == 0 {
		m.Irregular = true
	}
	return m, nil
}

// nestedTag registers a tag declared inside a record and defines it before
// the enclosing record is finalized.
func nestedTag(s *State, c *cast.Cursor) error {
	id, g, created, err := s.reg.LookupOrCreate(c)
	if err != nil {
		return err
	}
	if _, ok := g.(*cdecl.Builtin); ok {
		return nil
	}
	if err := s.usable(id); err != nil {
		return err
	}
	if !c.IsDefinition {
		if created {
			s.declareOpaque(id, c.Canonical())
		}
		return nil
	}
	if err := define(s, id, c); err != nil {
		return err
	}
	s.nest(id)
	return nil
}

// owns reports whether field i is declared with the anonymous tag written
// right before it, as in struct { int a; } inner.
func owns(s *State, children []*cast.Cursor, i int, t cdecl.Type) bool {
	if i == 0 {
		return false
	}
	prev := children[i-1]
	if !prev.IsAnonymous() {
		return false
	}
	ref, ok := cdecl.RefID(t)
	if !ok {
		return false
	}
	id, g, err := s.reg.Find(prev)
	if err != nil || id != ref {
		return false
	}
	switch g := g.(type) {
	case *cdecl.Composite:
		kind, err := compositeKind(prev.Kind)
		return err == nil && kind == g.Kind
	case *cdecl.Enum:
		return prev.Kind == cast.CursorEnumDecl
	}
	return false
}

// visitEnum collects enumerators in declaration order. Duplicate values are kept.
func visitEnum(s *State, c *cast.Cursor) (cdecl.EnumItems, error) {
	var items cdecl.EnumItems
	for _, child := range c.Children {
		if child.Kind == cast.CursorEnumConstantDecl {
			items.Items = append(items.Items, cdecl.EnumItem{Name: child.Spelling, Value: child.EnumValue})
		}
	}
	items.Underlying = cdecl.Base{Tag: cdecl.UInt}
	if c.IntegerType != nil {
		u, err := convert(s, c.IntegerType, c)
		if err != nil {
			return items, fmt.Errorf("underlying type: %w", err)
		}
		items.Underlying = u
	}
	return items, nil
}

func fieldName(c *cast.Cursor) string {
	if c.Spelling == "" {
		return "<anonymous>"
	}
	return c.Spelling
}

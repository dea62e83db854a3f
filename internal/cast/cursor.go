// Package cast is the C abstract syntax tree handed to the extractor by a
// front end. It follows the libclang model: cursors for declarations, types
// with canonical forms, and a visitor that lets the caller decide per node
// whether to continue, recurse or stop.
package cast

import "fmt"

// Location is a position in a source file. Line and Column are 1-based.
type Location struct {
	File   string
	Line   int
	Column int
}

func (l Location) String() string {
	if l.File == "" {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Cursor is one declaration node.
type Cursor struct {
	Kind     CursorKind
	Spelling string
	Loc      Location

	// Type is the declared type. For struct, union and enum cursors it is the
	// tag type shared by every declaration of that tag.
	Type *Type

	// Underlying is the aliased type of a typedef cursor.
	Underlying *Type

	// IntegerType is the underlying integer type of an enum cursor.
	IntegerType *Type

	Linkage Linkage

	// IsDefinition is set on tag cursors with a body, function cursors with a
	// body and variable cursors that are not extern declarations.
	IsDefinition bool

	// BitWidth is the declared width of a bitfield, -1 for ordinary fields.
	BitWidth int

	// FieldOffset is the offset of a field from the start of its record, in bits.
	FieldOffset int64

	// EnumValue is the value of an enum constant cursor.
	EnumValue int64

	Parent   *Cursor
	Children []*Cursor

	canonical  *Cursor
	definition *Cursor
}

// NewCursor returns a cursor with no bitfield width.
func NewCursor(kind CursorKind, spelling string, loc Location) *Cursor {
	return &Cursor{Kind: kind, Spelling: spelling, Loc: loc, BitWidth: -1}
}

// Canonical returns the cursor shared by every declaration of the same entity.
func (c *Cursor) Canonical() *Cursor {
	if c.canonical != nil {
		return c.canonical
	}
	return c
}

// Definition returns the defining declaration of the entity, or nil when the
// entity is only declared.
func (c *Cursor) Definition() *Cursor {
	canon := c.Canonical()
	if canon.definition != nil {
		return canon.definition
	}
	if canon.IsDefinition {
		return canon
	}
	return nil
}

// Redeclares links c to an earlier declaration of the same entity.
// The first definition seen becomes the entity's definition.
func (c *Cursor) Redeclares(prev *Cursor) {
	canon := prev.Canonical()
	if canon == c {
		return
	}
	c.canonical = canon
	if c.IsDefinition && !canon.IsDefinition && canon.definition == nil {
		canon.definition = c
	}
}

// IsAnonymous reports whether a tag cursor has no name.
func (c *Cursor) IsAnonymous() bool {
	return c.Kind.IsTag() && c.Spelling == ""
}

// AddChild appends child and sets its parent.
func (c *Cursor) AddChild(child *Cursor) {
	child.Parent = c
	c.Children = append(c.Children, child)
}

func (c *Cursor) String() string {
	name := c.Spelling
	if name == "" {
		name = "<anonymous>"
	}
	return fmt.Sprintf("%s %s at %s", c.Kind, name, c.Loc)
}

// VisitResult tells Visit how to proceed after a node.
type VisitResult int

const (
	VisitBreak VisitResult = iota
	VisitContinue
	VisitRecurse
)

// Visitor is called for each child cursor with its parent.
type Visitor func(cursor, parent *Cursor) VisitResult

// Visit walks the children of c in pre-order. It reports whether the walk was
// stopped by a VisitBreak.
func Visit(c *Cursor, fn Visitor) bool {
	for _, child := range c.Children {
		switch fn(child, c) {
		case VisitBreak:
			return true
		case VisitRecurse:
			if Visit(child, fn) {
				return true
			}
		}
	}
	return false
}

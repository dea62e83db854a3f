// Package cdecl is the extracted declaration model: globals stored in an
// arena and addressed by ID, the types that reference them, and the member
// and enum-item side tables filled once a declaration's children are known.
package cdecl

import "fmt"

// ID is the arena index of a global, starting at 1. The zero ID refers to nothing.
type ID int

// Name is the spelling of a global plus its ID. Anonymous and duplicate
// spellings stay distinct because the ID differs.
type Name struct {
	Text string `json:"text" yaml:"text"`
	ID   ID     `json:"id" yaml:"id"`
}

func (n Name) String() string {
	if n.Text == "" {
		return fmt.Sprintf("<anonymous#%d>", n.ID)
	}
	return n.Text
}

// IsAnonymous reports whether the name has no spelling.
func (n Name) IsAnonymous() bool {
	return n.Text == ""
}

// Location is where a declaration appears.
type Location struct {
	File   string `json:"file" yaml:"file"`
	Line   int    `json:"line" yaml:"line"`
	Column int    `json:"column" yaml:"column"`
}

func (l Location) String() string {
	if l.File == "" {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// CompositeKind is struct or union.
type CompositeKind int

const (
	Struct CompositeKind = iota
	Union
)

func (k CompositeKind) String() string {
	if k == Union {
		return "union"
	}
	return "struct"
}

// Layout is the size and alignment of a composite in bytes. Both are -1 for
// opaque composites.
type Layout struct {
	Size  int64 `json:"size" yaml:"size"`
	Align int64 `json:"align" yaml:"align"`
}

// Global is one registered declaration. The set of implementations is closed.
type Global interface {
	GlobalName() Name
	isGlobal()
}

// Composite is a struct or union. Its members live in the members-of table.
type Composite struct {
	Loc    Location
	Name   Name
	Kind   CompositeKind
	Layout Layout
}

// Enum is an enum declaration. Its items live in the enum-items-of table.
type Enum struct {
	Loc  Location
	Name Name
}

// Typedef is a type alias.
type Typedef struct {
	Loc  Location
	Name Name
	Type Type
}

// Var is a variable with external linkage.
type Var struct {
	Loc   Location
	Name  Name
	Type  Type
	Const bool
}

// Function is a function with external linkage. Type is a FuncProto.
type Function struct {
	Loc  Location
	Name Name
	Type Type
}

// Builtin is a declaration bound outside this run. Name.Text carries the
// external name; Type is whatever the binding supplied and may be nil.
type Builtin struct {
	Name Name
	Type Type
}

func (g *Composite) GlobalName() Name { return g.Name }
func (g *Enum) GlobalName() Name      { return g.Name }
func (g *Typedef) GlobalName() Name   { return g.Name }
func (g *Var) GlobalName() Name       { return g.Name }
func (g *Function) GlobalName() Name  { return g.Name }
func (g *Builtin) GlobalName() Name   { return g.Name }

func (*Composite) isGlobal() {}
func (*Enum) isGlobal()      {}
func (*Typedef) isGlobal()   {}
func (*Var) isGlobal()       {}
func (*Function) isGlobal()  {}
func (*Builtin) isGlobal()   {}

// Variant returns a short lowercase tag for the global's variant.
func Variant(g Global) string {
	switch g := g.(type) {
	case *Composite:
		return g.Kind.String()
	case *Enum:
		return "enum"
	case *Typedef:
		return "typedef"
	case *Var:
		return "var"
	case *Function:
		return "function"
	case *Builtin:
		return "builtin"
	default:
		panic(fmt.Sprintf("cdecl: unknown global %T", g))
	}
}

// LocationOf returns the location of a global. Builtins have none.
func LocationOf(g Global) Location {
	switch g := g.(type) {
	case *Composite:
		return g.Loc
	case *Enum:
		return g.Loc
	case *Typedef:
		return g.Loc
	case *Var:
		return g.Loc
	case *Function:
		return g.Loc
	default:
		return Location{}
	}
}

// TypeOf returns the type carried by typedef, var, function and builtin
// globals, or nil.
func TypeOf(g Global) Type {
	switch g := g.(type) {
	case *Typedef:
		return g.Type
	case *Var:
		return g.Type
	case *Function:
		return g.Type
	case *Builtin:
		return g.Type
	default:
		return nil
	}
}

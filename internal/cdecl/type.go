package cdecl

import (
	"fmt"
	"strings"
)

// BaseTag names a primitive C type.
type BaseTag int

const (
	CharS BaseTag = iota
	CharU
	SChar
	UChar
	Short
	UShort
	Int
	UInt
	Long
	ULong
	LongLong
	ULongLong
	Float
	Double
	LongDouble
	Complex32
	Complex64
	ComplexLongDouble
)

var baseTagNames = [...]string{
	CharS:             "char",
	CharU:             "char_u",
	SChar:             "signed char",
	UChar:             "unsigned char",
	Short:             "short",
	UShort:            "unsigned short",
	Int:               "int",
	UInt:              "unsigned int",
	Long:              "long",
	ULong:             "unsigned long",
	LongLong:          "long long",
	ULongLong:         "unsigned long long",
	Float:             "float",
	Double:            "double",
	LongDouble:        "long double",
	Complex32:         "float _Complex",
	Complex64:         "double _Complex",
	ComplexLongDouble: "long double _Complex",
}

func (b BaseTag) String() string {
	if b >= 0 && int(b) < len(baseTagNames) {
		return baseTagNames[b]
	}
	return fmt.Sprintf("BaseTag(%d)", int(b))
}

// ParseBaseTag is the inverse of BaseTag.String.
func ParseBaseTag(s string) (BaseTag, error) {
	for i, name := range baseTagNames {
		if name == s {
			return BaseTag(i), nil
		}
	}
	return 0, fmt.Errorf("unknown base type %q", s)
}

// Type is a resolved C type. The set of implementations is closed; references
// to other globals are IDs so cyclic types need no recursion.
type Type interface {
	isType()
}

type (
	Void struct{}

	Base struct {
		Tag BaseTag
	}

	// Named refers to a typedef of this run, or to a name bound by a builtin
	// override when External is set.
	Named struct {
		Name     Name
		External bool
	}

	Ptr struct {
		Elem Type
	}

	// Array with Len 0 is an incomplete or flexible array.
	Array struct {
		Elem Type
		Len  int64
	}

	FuncProto struct {
		Ret      Type
		Args     []Type
		Variadic bool
	}

	FuncPtr struct {
		Ret      Type
		Args     []Type
		Variadic bool
	}

	EnumRef struct {
		ID ID
	}

	CompositeRef struct {
		ID ID
	}
)

func (Void) isType()         {}
func (Base) isType()         {}
func (Named) isType()        {}
func (Ptr) isType()          {}
func (Array) isType()        {}
func (FuncProto) isType()    {}
func (FuncPtr) isType()      {}
func (EnumRef) isType()      {}
func (CompositeRef) isType() {}

// Walk calls fn for t and every type nested in it, outermost first. It stops
// descending below a node when fn returns false. References are not followed.
func Walk(t Type, fn func(Type) bool) {
	if t == nil || !fn(t) {
		return
	}
	switch t := t.(type) {
	case Ptr:
		Walk(t.Elem, fn)
	case Array:
		Walk(t.Elem, fn)
	case FuncProto:
		Walk(t.Ret, fn)
		for _, a := range t.Args {
			Walk(a, fn)
		}
	case FuncPtr:
		Walk(t.Ret, fn)
		for _, a := range t.Args {
			Walk(a, fn)
		}
	}
}

// Map rebuilds t bottom-up, replacing every node with fn's result.
func Map(t Type, fn func(Type) Type) Type {
	if t == nil {
		return nil
	}
	switch v := t.(type) {
	case Ptr:
		t = Ptr{Elem: Map(v.Elem, fn)}
	case Array:
		t = Array{Elem: Map(v.Elem, fn), Len: v.Len}
	case FuncProto:
		t = FuncProto{Ret: Map(v.Ret, fn), Args: mapArgs(v.Args, fn), Variadic: v.Variadic}
	case FuncPtr:
		t = FuncPtr{Ret: Map(v.Ret, fn), Args: mapArgs(v.Args, fn), Variadic: v.Variadic}
	}
	return fn(t)
}

func mapArgs(args []Type, fn func(Type) Type) []Type {
	if args == nil {
		return nil
	}
	out := make([]Type, len(args))
	for i, a := range args {
		out[i] = Map(a, fn)
	}
	return out
}

// RefID returns the global referenced by t, looking through arrays but not
// pointers. Ok is false when t holds that global by pointer or not at all.
func RefID(t Type) (ID, bool) {
	switch t := t.(type) {
	case CompositeRef:
		return t.ID, true
	case EnumRef:
		return t.ID, true
	case Named:
		if !t.External {
			return t.Name.ID, true
		}
	case Array:
		return RefID(t.Elem)
	}
	return 0, false
}

// Format renders t as C-like text. Refs are printed by name via nameOf,
// which may be nil to print raw IDs.
func Format(t Type, nameOf func(ID) string) string {
	var b strings.Builder
	format(&b, t, nameOf)
	return b.String()
}

func format(b *strings.Builder, t Type, nameOf func(ID) string) {
	ref := func(prefix string, id ID) {
		if nameOf != nil {
			b.WriteString(prefix + nameOf(id))
			return
		}
		fmt.Fprintf(b, "%s#%d", prefix, id)
	}
	switch t := t.(type) {
	case nil:
		b.WriteString("<nil>")
	case Void:
		b.WriteString("void")
	case Base:
		b.WriteString(t.Tag.String())
	case Named:
		b.WriteString(t.Name.Text)
	case Ptr:
		format(b, t.Elem, nameOf)
		b.WriteString(" *")
	case Array:
		format(b, t.Elem, nameOf)
		if t.Len == 0 {
			b.WriteString("[]")
		} else {
			fmt.Fprintf(b, "[%d]", t.Len)
		}
	case FuncProto:
		format(b, t.Ret, nameOf)
		formatArgs(b, t.Args, t.Variadic, nameOf)
	case FuncPtr:
		format(b, t.Ret, nameOf)
		b.WriteString(" (*)")
		formatArgs(b, t.Args, t.Variadic, nameOf)
	case EnumRef:
		ref("enum ", t.ID)
	case CompositeRef:
		ref("record ", t.ID)
	default:
		panic(fmt.Sprintf("cdecl: unknown type %T", t))
	}
}

func formatArgs(b *strings.Builder, args []Type, variadic bool, nameOf func(ID) string) {
	b.WriteString("(")
	for i, a := range args {
		if i > 0 {
			b.WriteString(", ")
		}
		format(b, a, nameOf)
	}
	if variadic {
		if len(args) > 0 {
			b.WriteString(", ")
		}
		b.WriteString("...")
	}
	b.WriteString(")")
}

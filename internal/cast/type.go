package cast

import (
	"fmt"
	"strings"
)

// Type is a C type as seen by the front end.
//
// Sugar (typedefs, elaborated tag references, parenthesized declarators) is
// kept; CanonicalType strips it.
type Type struct {
	Kind     TypeKind
	Spelling string
	Const    bool

	// Pointee of a pointer type.
	Pointee *Type

	// Elem of an array, vector or complex type.
	Elem *Type

	// Len of a constant array or vector.
	Len int64

	// Result, Args and Variadic describe function types.
	Result   *Type
	Args     []*Type
	Variadic bool

	// Decl is the declaring cursor of a record, enum or typedef type.
	Decl *Cursor

	// Named is the type an elaborated or unexposed type stands for.
	Named *Type

	// Canon caches the canonical type when it differs from the type itself.
	Canon *Type

	// Size and Align in bytes for leaf types, -1 when unknown or incomplete.
	Size  int64
	Align int64
}

// CanonicalType returns the type with all sugar removed.
func (t *Type) CanonicalType() *Type {
	if t == nil {
		return nil
	}
	if t.Canon != nil {
		return t.Canon
	}
	return t
}

// Declaration returns the cursor declaring a record, enum or typedef type,
// looking through elaborated sugar. It returns nil for every other kind and
// for names the front end could not resolve.
func (t *Type) Declaration() *Cursor {
	switch t.Kind {
	case TypeRecord, TypeEnum, TypeTypedef:
		return t.Decl
	case TypeElaborated:
		if t.Named != nil {
			return t.Named.Declaration()
		}
	}
	return nil
}

// ResultType returns the result type of a function type or of sugar over a
// function type, or nil.
func (t *Type) ResultType() *Type {
	if t.Kind.IsFunction() {
		return t.Result
	}
	canon := t.CanonicalType()
	if canon != t && canon.Kind.IsFunction() {
		return canon.Result
	}
	return nil
}

// SizeOf returns the size of the type in bytes or -1.
func (t *Type) SizeOf() int64 {
	switch t.Kind {
	case TypeTypedef, TypeUnexposed:
		if canon := t.CanonicalType(); canon != t {
			return canon.SizeOf()
		}
		return -1
	case TypeRecord, TypeEnum:
		// Qualified copies defer to the shared tag type, which is completed later.
		if canon := t.CanonicalType(); canon != t {
			return canon.SizeOf()
		}
	case TypeElaborated:
		if t.Named != nil {
			return t.Named.SizeOf()
		}
		return -1
	}
	return t.Size
}

// AlignOf returns the alignment of the type in bytes or -1.
func (t *Type) AlignOf() int64 {
	switch t.Kind {
	case TypeTypedef, TypeUnexposed:
		if canon := t.CanonicalType(); canon != t {
			return canon.AlignOf()
		}
		return -1
	case TypeRecord, TypeEnum:
		// Qualified copies defer to the shared tag type, which is completed later.
		if canon := t.CanonicalType(); canon != t {
			return canon.AlignOf()
		}
	case TypeElaborated:
		if t.Named != nil {
			return t.Named.AlignOf()
		}
		return -1
	}
	return t.Align
}

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	var b strings.Builder
	if t.Const {
		b.WriteString("const ")
	}
	switch t.Kind {
	case TypePointer:
		fmt.Fprintf(&b, "%s *", t.Pointee)
	case TypeConstantArray, TypeVector:
		fmt.Fprintf(&b, "%s [%d]", t.Elem, t.Len)
	case TypeIncompleteArray, TypeVariableArray:
		fmt.Fprintf(&b, "%s []", t.Elem)
	case TypeFunctionProto, TypeFunctionNoProto:
		args := make([]string, 0, len(t.Args)+1)
		for _, a := range t.Args {
			args = append(args, a.String())
		}
		if t.Variadic {
			args = append(args, "...")
		}
		fmt.Fprintf(&b, "%s (%s)", t.Result, strings.Join(args, ", "))
	case TypeUnexposed:
		fmt.Fprintf(&b, "(%s)", t.Named)
	case TypeComplex:
		fmt.Fprintf(&b, "_Complex %s", t.Elem)
	default:
		if t.Spelling != "" {
			b.WriteString(t.Spelling)
		} else {
			b.WriteString(t.Kind.String())
		}
	}
	return b.String()
}

// NewBuiltin returns a fresh builtin-kind type with the given layout.
func NewBuiltin(kind TypeKind, spelling string, size, align int64) *Type {
	return &Type{Kind: kind, Spelling: spelling, Size: size, Align: align}
}

// NewPointer returns a pointer to pointee. Pointers are 8 bytes wide.
func NewPointer(pointee *Type) *Type {
	t := &Type{Kind: TypePointer, Pointee: pointee, Size: 8, Align: 8}
	if canon := pointee.CanonicalType(); canon != pointee {
		t.Canon = &Type{Kind: TypePointer, Pointee: canon, Size: 8, Align: 8}
	}
	return t
}

// NewArray returns an array type. Len is ignored for incomplete and variable arrays.
func NewArray(kind TypeKind, elem *Type, n int64) *Type {
	t := &Type{Kind: kind, Elem: elem, Len: n}
	t.Size, t.Align = arrayLayout(kind, elem, n)
	if canon := elem.CanonicalType(); canon != elem {
		c := &Type{Kind: kind, Elem: canon, Len: n}
		c.Size, c.Align = t.Size, t.Align
		t.Canon = c
	}
	return t
}

func arrayLayout(kind TypeKind, elem *Type, n int64) (int64, int64) {
	align := elem.AlignOf()
	switch kind {
	case TypeConstantArray:
		size := elem.SizeOf()
		if size < 0 {
			return -1, align
		}
		return size * n, align
	case TypeIncompleteArray:
		return 0, align
	}
	return -1, align
}

// NewFunction returns a function type. A nil args slice with proto false
// yields a function without prototype.
func NewFunction(result *Type, args []*Type, variadic, proto bool) *Type {
	kind := TypeFunctionProto
	if !proto {
		kind = TypeFunctionNoProto
	}
	t := &Type{Kind: kind, Result: result, Args: args, Variadic: variadic, Size: -1, Align: -1}
	sugared := result.CanonicalType() != result
	canonArgs := make([]*Type, len(args))
	for i, a := range args {
		canonArgs[i] = a.CanonicalType()
		sugared = sugared || canonArgs[i] != a
	}
	if sugared {
		t.Canon = &Type{Kind: kind, Result: result.CanonicalType(), Args: canonArgs, Variadic: variadic, Size: -1, Align: -1}
	}
	return t
}

// NewParen wraps inner as libclang's unexposed paren sugar.
func NewParen(inner *Type) *Type {
	return &Type{Kind: TypeUnexposed, Named: inner, Canon: inner.CanonicalType(), Size: -1, Align: -1}
}

// NewElaborated wraps a tag type referenced with its struct, union or enum keyword.
func NewElaborated(named *Type) *Type {
	return &Type{Kind: TypeElaborated, Spelling: named.Spelling, Named: named, Canon: named.CanonicalType(), Size: -1, Align: -1}
}

// NewTypedef returns a reference to the typedef declared by decl. A nil decl
// records a name the front end could not resolve.
func NewTypedef(name string, decl *Cursor) *Type {
	t := &Type{Kind: TypeTypedef, Spelling: name, Decl: decl, Size: -1, Align: -1}
	if decl != nil && decl.Underlying != nil {
		t.Canon = decl.Underlying.CanonicalType()
	}
	return t
}

// Qualified returns a copy of t with the const qualifier set.
func Qualified(t *Type, isConst bool) *Type {
	if !isConst || t.Const {
		return t
	}
	c := *t
	c.Const = true
	if t.Kind == TypeRecord || t.Kind == TypeEnum {
		c.Canon = t.CanonicalType()
	}
	return &c
}

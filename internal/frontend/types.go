package frontend

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/mvp-joe/cbind/internal/cast"
)

// wellKnownTypedefs are <stdint.h>, <stddef.h> and <uchar.h> names the front
// end resolves without the headers, desugared to their LP64 builtin kinds.
var wellKnownTypedefs = map[string]cast.TypeKind{
	"int8_t": cast.TypeSChar, "uint8_t": cast.TypeUChar,
	"int16_t": cast.TypeShort, "uint16_t": cast.TypeUShort,
	"int32_t": cast.TypeInt, "uint32_t": cast.TypeUInt,
	"int64_t": cast.TypeLong, "uint64_t": cast.TypeULong,
	"int_least8_t": cast.TypeSChar, "uint_least8_t": cast.TypeUChar,
	"int_least16_t": cast.TypeShort, "uint_least16_t": cast.TypeUShort,
	"int_least32_t": cast.TypeInt, "uint_least32_t": cast.TypeUInt,
	"int_least64_t": cast.TypeLong, "uint_least64_t": cast.TypeULong,
	"int_fast8_t": cast.TypeSChar, "uint_fast8_t": cast.TypeUChar,
	"int_fast16_t": cast.TypeLong, "uint_fast16_t": cast.TypeULong,
	"int_fast32_t": cast.TypeLong, "uint_fast32_t": cast.TypeULong,
	"int_fast64_t": cast.TypeLong, "uint_fast64_t": cast.TypeULong,
	"intptr_t": cast.TypeLong, "uintptr_t": cast.TypeULong,
	"intmax_t": cast.TypeLong, "uintmax_t": cast.TypeULong,
	"size_t": cast.TypeULong, "ssize_t": cast.TypeLong, "ptrdiff_t": cast.TypeLong,
	"wchar_t": cast.TypeInt, "char16_t": cast.TypeUShort, "char32_t": cast.TypeUInt,
	"max_align_t": cast.TypeLongDouble,
	"__int128_t": cast.TypeInt128, "__uint128_t": cast.TypeUInt128,
}

// vaListNames are treated as an opaque pointer.
var vaListNames = map[string]bool{
	"va_list": true, "__builtin_va_list": true, "__gnuc_va_list": true,
}

// composeBuiltin combines type keywords ("unsigned", "long", "int", ...)
// into a builtin type.
func composeBuiltin(words []string) (*cast.Type, bool) {
	var unsigned, signed bool
	var longs, shorts int
	base := ""
	for _, w := range words {
		switch w {
		case "unsigned":
			unsigned = true
		case "signed":
			signed = true
		case "long":
			longs++
		case "short":
			shorts++
		case "int", "char", "void", "float", "double", "bool", "_Bool", "__int128":
			if base != "" && base != "int" {
				return nil, false
			}
			if base == "" || w != "int" {
				base = w
			}
		default:
			return nil, false
		}
	}

	switch base {
	case "void":
		return builtinType(cast.TypeVoid), true
	case "bool", "_Bool":
		return builtinType(cast.TypeBool), true
	case "float":
		return builtinType(cast.TypeFloat), true
	case "double":
		if longs > 0 {
			return builtinType(cast.TypeLongDouble), true
		}
		return builtinType(cast.TypeDouble), true
	case "char":
		switch {
		case unsigned:
			return builtinType(cast.TypeUChar), true
		case signed:
			return builtinType(cast.TypeSChar), true
		}
		return builtinType(cast.TypeCharS), true
	case "__int128":
		if unsigned {
			return builtinType(cast.TypeUInt128), true
		}
		return builtinType(cast.TypeInt128), true
	}

	kind := cast.TypeInt
	switch {
	case shorts > 0:
		kind = cast.TypeShort
	case longs == 1:
		kind = cast.TypeLong
	case longs >= 2:
		kind = cast.TypeLongLong
	}
	if unsigned {
		kind = map[cast.TypeKind]cast.TypeKind{
			cast.TypeShort:    cast.TypeUShort,
			cast.TypeInt:      cast.TypeUInt,
			cast.TypeLong:     cast.TypeULong,
			cast.TypeLongLong: cast.TypeULongLong,
		}[kind]
	}
	return builtinType(kind), true
}

// qualifiers reports const and _Complex among type_qualifier children.
// _Complex was rewritten to a same-length volatile before parsing, so the
// original text tells them apart.
func (b *builder) qualifiers(nodes ...*sitter.Node) (isConst, isComplex bool) {
	for _, n := range nodes {
		if n == nil {
			continue
		}
		for _, q := range childrenByType(n, "type_qualifier") {
			text := nodeText(q, b.orig)
			switch {
			case text == "const":
				isConst = true
			case strings.HasPrefix(text, "_Complex"), strings.HasPrefix(text, "__complex__"):
				isComplex = true
			}
		}
	}
	return isConst, isComplex
}

// specType resolves a type specifier. qualNodes are the nodes whose
// type_qualifier children apply to it. Tag definitions found in the
// specifier are attached to parent; standalone marks a declaration with no
// declarators, which makes a bodyless tag a forward declaration.
func (b *builder) specType(spec *sitter.Node, qualNodes []*sitter.Node, parent *cast.Cursor, standalone bool) *cast.Type {
	var t *cast.Type
	switch spec.Kind() {
	case "primitive_type":
		t = b.namedType(spec)
	case "sized_type_specifier":
		t = b.sizedType(spec)
		qualNodes = append(qualNodes, spec)
	case "type_identifier":
		t = b.namedType(spec)
	case "struct_specifier", "union_specifier":
		t = b.record(spec, parent, standalone)
	case "enum_specifier":
		t = b.enum(spec, parent, standalone)
	default:
		b.errorf(spec, "unsupported type specifier '%s'", nodeText(spec, b.orig))
		t = builtinType(cast.TypeInt)
	}

	isConst, isComplex := b.qualifiers(qualNodes...)
	if isComplex {
		t = complexOf(t)
	}
	return cast.Qualified(t, isConst)
}

// namedType resolves a primitive_type or type_identifier. Typedefs declared
// in the translation unit shadow the well-known names.
func (b *builder) namedType(n *sitter.Node) *cast.Type {
	name := nodeText(n, b.orig)
	if td, ok := b.typedefs[name]; ok {
		return cast.NewTypedef(name, td)
	}
	if t, ok := composeBuiltin([]string{name}); ok {
		return t
	}
	if kind, ok := wellKnownTypedefs[name]; ok {
		t := builtinType(kind)
		t.Spelling = name
		return t
	}
	if vaListNames[name] {
		return cast.NewPointer(builtinType(cast.TypeVoid))
	}
	if !b.unknown[name] {
		b.unknown[name] = true
		b.warnf(n, "unknown type name '%s'", name)
	}
	return cast.NewTypedef(name, nil)
}

func (b *builder) sizedType(n *sitter.Node) *cast.Type {
	var words []string
	for i := 0; i < int(n.ChildCount()); i++ {
		switch child := n.Child(uint(i)); child.Kind() {
		case "signed", "unsigned", "long", "short":
			words = append(words, child.Kind())
		}
	}
	if tn := n.ChildByFieldName("type"); tn != nil {
		words = append(words, nodeText(tn, b.orig))
	}
	t, ok := composeBuiltin(words)
	if !ok {
		b.errorf(n, "invalid type specifier '%s'", nodeText(n, b.orig))
		return builtinType(cast.TypeInt)
	}
	return t
}

// declInfo is the result of applying a declarator to a base type.
type declInfo struct {
	name     string
	nameNode *sitter.Node
	typ      *cast.Type

	// params are the named parameters of the function being declared, set
	// by the function declarator that applies directly to the name.
	params    []*cast.Cursor
	hasParams bool
	derived   bool
}

// declarator applies a (possibly abstract) declarator to a base type,
// outermost declarator first, the way C reads them.
func (b *builder) declarator(n *sitter.Node, t *cast.Type) declInfo {
	if n == nil {
		return declInfo{typ: t}
	}
	switch n.Kind() {
	case "identifier", "field_identifier", "type_identifier", "primitive_type":
		return declInfo{name: nodeText(n, b.orig), nameNode: n, typ: t}

	case "pointer_declarator", "abstract_pointer_declarator":
		isConst, _ := b.qualifiers(n)
		d := b.declarator(n.ChildByFieldName("declarator"), cast.Qualified(cast.NewPointer(t), isConst))
		d.derived = true
		return d

	case "array_declarator", "abstract_array_declarator":
		var at *cast.Type
		size := n.ChildByFieldName("size")
		switch {
		case size == nil:
			at = cast.NewArray(cast.TypeIncompleteArray, t, 0)
		default:
			if v, err := b.constant(size); err == nil {
				at = cast.NewArray(cast.TypeConstantArray, t, v)
			} else {
				at = cast.NewArray(cast.TypeVariableArray, t, 0)
			}
		}
		d := b.declarator(n.ChildByFieldName("declarator"), at)
		d.derived = true
		return d

	case "function_declarator", "abstract_function_declarator":
		fn, params := b.functionType(t, n.ChildByFieldName("parameters"))
		d := b.declarator(n.ChildByFieldName("declarator"), fn)
		if !d.hasParams && !d.derived {
			d.params, d.hasParams = params, true
		}
		return d

	case "parenthesized_declarator", "abstract_parenthesized_declarator":
		return b.declarator(firstDeclaratorChild(n), cast.NewParen(t))

	case "attributed_declarator":
		return b.declarator(firstDeclaratorChild(n), t)

	case "init_declarator":
		return b.declarator(n.ChildByFieldName("declarator"), t)
	}
	return declInfo{typ: t}
}

func firstDeclaratorChild(n *sitter.Node) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(uint(i))
		switch child.Kind() {
		case "comment", "attribute_specifier", "attribute_declaration", "ms_call_modifier", "type_qualifier":
			continue
		}
		return child
	}
	return nil
}

// functionType builds a function type from a parameter list. A missing list
// or an empty one declares a function without prototype.
func (b *builder) functionType(ret *cast.Type, list *sitter.Node) (*cast.Type, []*cast.Cursor) {
	if list == nil {
		return cast.NewFunction(ret, nil, false, false), nil
	}

	var args []*cast.Type
	var params []*cast.Cursor
	variadic, declared := false, 0
	for i := 0; i < int(list.NamedChildCount()); i++ {
		child := list.NamedChild(uint(i))
		switch child.Kind() {
		case "variadic_parameter":
			variadic = true
		case "parameter_declaration":
			declared++
			base := b.specType(child.ChildByFieldName("type"), []*sitter.Node{child}, nil, false)
			d := b.declarator(child.ChildByFieldName("declarator"), base)
			pt := decay(d.typ)
			if d.nameNode == nil && declared == 1 && pt.CanonicalType().Kind == cast.TypeVoid {
				continue
			}
			args = append(args, pt)

			loc := b.loc(child)
			if d.nameNode != nil {
				loc = b.loc(d.nameNode)
			}
			p := cast.NewCursor(cast.CursorParmDecl, d.name, loc)
			p.Type = pt
			params = append(params, p)
		}
	}

	if declared == 0 && !variadic {
		return cast.NewFunction(ret, nil, false, false), nil
	}
	return cast.NewFunction(ret, args, variadic, true), params
}

// decay applies the parameter adjustments: arrays become pointers to their
// element and functions become pointers to functions.
func decay(t *cast.Type) *cast.Type {
	canon := t.CanonicalType()
	switch {
	case canon.Kind.IsArray():
		elem := t.Elem
		if elem == nil {
			elem = canon.Elem
		}
		return cast.NewPointer(elem)
	case canon.Kind.IsFunction():
		return cast.NewPointer(t)
	}
	return t
}

// sizeofText sizes the type spelled by text for sizeof in constant
// expressions: builtin keyword sequences, typedef names, tag references and
// pointers to any of them.
func (b *builder) sizeofText(text string) (int64, bool) {
	text = strings.TrimSpace(text)
	if strings.HasSuffix(text, "*") {
		return 8, true
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0, false
	}
	for len(words) > 1 && (words[0] == "const" || words[0] == "volatile") {
		words = words[1:]
	}
	if len(words) == 2 && (words[0] == "struct" || words[0] == "union" || words[0] == "enum") {
		if tag, ok := b.tags[words[1]]; ok && tag.Type.SizeOf() >= 0 {
			return tag.Type.SizeOf(), true
		}
		return 0, false
	}
	if len(words) == 1 {
		if td, ok := b.typedefs[words[0]]; ok {
			size := cast.NewTypedef(words[0], td).SizeOf()
			return size, size >= 0
		}
		if kind, ok := wellKnownTypedefs[words[0]]; ok {
			return builtinType(kind).SizeOf(), true
		}
	}
	if t, ok := composeBuiltin(words); ok && t.SizeOf() >= 0 {
		return t.SizeOf(), true
	}
	return 0, false
}

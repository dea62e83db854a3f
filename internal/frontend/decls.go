package frontend

import (
	"fmt"
	"strings"

	"fortio.org/safecast"
	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/mvp-joe/cbind/internal/cast"
)

// builder turns a tree-sitter C tree into cursors.
//
// Tags share one file-scope namespace keyed by name; the first declaration
// seen is canonical. A tag named only inside a type (struct Foo *p) gets a
// canonical cursor that is not attached to any parent.
type builder struct {
	src  *Source
	orig []byte
	eval *exprEval

	tu         *cast.Cursor
	tags       map[string]*cast.Cursor
	typedefs   map[string]*cast.Cursor
	ordinary   map[string]*cast.Cursor
	enumConsts map[string]int64
	unknown    map[string]bool
	diags      []cast.Diagnostic
}

func newBuilder(src *Source) *builder {
	return &builder{
		src:        src,
		orig:       src.Text,
		eval:       newExprEval(),
		tu:         cast.NewCursor(cast.CursorTranslationUnit, src.Name, cast.Location{File: src.Name, Line: 1, Column: 1}),
		tags:       map[string]*cast.Cursor{},
		typedefs:   map[string]*cast.Cursor{},
		ordinary:   map[string]*cast.Cursor{},
		enumConsts: map[string]int64{},
		unknown:    map[string]bool{},
	}
}

func (b *builder) close() {
	b.eval.close()
}

func (b *builder) loc(n *sitter.Node) cast.Location {
	p := n.StartPosition()
	return b.src.Location(p.Row, p.Column)
}

func (b *builder) report(sev cast.Severity, n *sitter.Node, format string, args ...any) {
	b.diags = append(b.diags, cast.Diagnostic{Severity: sev, Loc: b.loc(n), Message: fmt.Sprintf(format, args...)})
}

func (b *builder) errorf(n *sitter.Node, format string, args ...any) {
	b.report(cast.SeverityError, n, format, args...)
}

func (b *builder) warnf(n *sitter.Node, format string, args ...any) {
	b.report(cast.SeverityWarning, n, format, args...)
}

// syntaxErrors reports ERROR and MISSING nodes.
func (b *builder) syntaxErrors(root *sitter.Node) {
	walkTree(root, func(n *sitter.Node) bool {
		switch {
		case n.IsMissing():
			b.errorf(n, "expected '%s'", n.Kind())
			return false
		case n.IsError():
			text := strings.TrimSpace(nodeText(n, b.orig))
			if len(text) > 40 {
				text = text[:40] + "..."
			}
			b.errorf(n, "syntax error near '%s'", text)
			return false
		}
		return n.HasError()
	})
}

// topLevel handles one file-scope item.
func (b *builder) topLevel(n *sitter.Node, parent *cast.Cursor) {
	switch n.Kind() {
	case "declaration":
		b.declaration(n, parent)
	case "type_definition":
		b.typeDefinition(n, parent)
	case "function_definition":
		b.functionDefinition(n, parent)
	case "struct_specifier", "union_specifier", "enum_specifier":
		b.specType(n, nil, parent, true)
	case "linkage_specification":
		spec := cast.NewCursor(cast.CursorUnexposedDecl, "extern "+nodeText(n.ChildByFieldName("value"), b.orig), b.loc(n))
		parent.AddChild(spec)
		body := n.ChildByFieldName("body")
		if body == nil {
			return
		}
		if body.Kind() == "declaration_list" {
			for i := 0; i < int(body.NamedChildCount()); i++ {
				b.topLevel(body.NamedChild(uint(i)), spec)
			}
			return
		}
		b.topLevel(body, spec)
	case "declaration_list":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			b.topLevel(n.NamedChild(uint(i)), parent)
		}
	}
}

func storageClasses(n *sitter.Node, src []byte) map[string]bool {
	out := map[string]bool{}
	for _, sc := range childrenByType(n, "storage_class_specifier") {
		out[strings.TrimSpace(nodeText(sc, src))] = true
	}
	return out
}

func (b *builder) declaration(n *sitter.Node, parent *cast.Cursor) {
	typeNode := n.ChildByFieldName("type")
	if typeNode == nil {
		return
	}
	storage := storageClasses(n, b.orig)
	decls := childrenByField(n, "declarator")
	base := b.specType(typeNode, []*sitter.Node{n}, parent, len(decls) == 0)

	for _, d := range decls {
		info := b.declarator(d, base)
		if info.name == "" {
			continue
		}
		t := b.applyAttributes(info.typ, n, d)
		if t.CanonicalType().Kind.IsFunction() {
			b.declareFunction(info, t, storage, parent, false)
			continue
		}
		b.declareVar(info, t, storage, parent)
	}
}

func (b *builder) functionDefinition(n *sitter.Node, parent *cast.Cursor) {
	typeNode := n.ChildByFieldName("type")
	if typeNode == nil {
		// Implicit int, K&R style.
		b.warnf(n, "type specifier missing, defaults to 'int'")
	}
	var base *cast.Type
	if typeNode != nil {
		base = b.specType(typeNode, []*sitter.Node{n}, parent, false)
	} else {
		base = builtinType(cast.TypeInt)
	}
	info := b.declarator(n.ChildByFieldName("declarator"), base)
	if info.name == "" || !info.typ.CanonicalType().Kind.IsFunction() {
		b.errorf(n, "invalid function definition")
		return
	}
	b.declareFunction(info, info.typ, storageClasses(n, b.orig), parent, true)
}

func (b *builder) declareFunction(info declInfo, t *cast.Type, storage map[string]bool, parent *cast.Cursor, isDef bool) {
	c := cast.NewCursor(cast.CursorFunctionDecl, info.name, b.loc(info.nameNode))
	c.Type = t
	c.IsDefinition = isDef
	c.Linkage = cast.LinkageExternal
	if storage["static"] {
		c.Linkage = cast.LinkageInternal
	}
	b.redeclareOrdinary(c)
	for _, p := range info.params {
		c.AddChild(p)
	}
	parent.AddChild(c)
}

func (b *builder) declareVar(info declInfo, t *cast.Type, storage map[string]bool, parent *cast.Cursor) {
	c := cast.NewCursor(cast.CursorVarDecl, info.name, b.loc(info.nameNode))
	c.Type = t
	c.IsDefinition = !storage["extern"]
	c.Linkage = cast.LinkageExternal
	if storage["static"] {
		c.Linkage = cast.LinkageInternal
	}
	b.redeclareOrdinary(c)
	parent.AddChild(c)
}

// redeclareOrdinary links a function or variable to an earlier declaration
// of the same name. A later declaration inherits internal linkage.
func (b *builder) redeclareOrdinary(c *cast.Cursor) {
	prev, ok := b.ordinary[c.Spelling]
	if !ok {
		b.ordinary[c.Spelling] = c
		return
	}
	if prev.Kind != c.Kind {
		b.diags = append(b.diags, cast.Diagnostic{
			Severity: cast.SeverityError,
			Loc:      c.Loc,
			Message:  fmt.Sprintf("redefinition of '%s' as different kind of symbol", c.Spelling),
		})
		return
	}
	c.Redeclares(prev)
	if canon := c.Canonical(); canon.Linkage == cast.LinkageInternal {
		c.Linkage = cast.LinkageInternal
	}
}

func (b *builder) typeDefinition(n *sitter.Node, parent *cast.Cursor) {
	typeNode := n.ChildByFieldName("type")
	if typeNode == nil {
		return
	}
	base := b.specType(typeNode, []*sitter.Node{n}, parent, false)
	for _, d := range childrenByField(n, "declarator") {
		info := b.declarator(d, base)
		if info.name == "" {
			continue
		}
		c := cast.NewCursor(cast.CursorTypedefDecl, info.name, b.loc(info.nameNode))
		c.Underlying = b.applyAttributes(info.typ, n, d)
		if prev, ok := b.typedefs[info.name]; ok {
			c.Redeclares(prev)
		} else {
			b.typedefs[info.name] = c
		}
		c.Type = cast.NewTypedef(info.name, c.Canonical())
		parent.AddChild(c)
	}
}

// applyAttributes applies vector_size found on a declaration or its declarator.
func (b *builder) applyAttributes(t *cast.Type, nodes ...*sitter.Node) *cast.Type {
	for _, n := range nodes {
		for _, attr := range childrenByType(n, "attribute_specifier") {
			if size, ok := b.attributeArg(attr, "vector_size"); ok {
				return vectorOf(t, size)
			}
		}
		if n.Kind() == "attributed_declarator" {
			for _, decl := range childrenByType(n, "attribute_declaration") {
				if size, ok := b.attributeArg(decl, "vector_size"); ok {
					return vectorOf(t, size)
				}
			}
		}
	}
	return t
}

// hasAttribute reports whether an attribute subtree names attr, with or
// without the double underscores.
func (b *builder) hasAttribute(n *sitter.Node, attr string) bool {
	found := false
	walkTree(n, func(c *sitter.Node) bool {
		if found {
			return false
		}
		if c.Kind() == "identifier" && strings.Trim(nodeText(c, b.orig), "_") == attr {
			found = true
		}
		return true
	})
	return found
}

// attributeArg returns the integer argument of attr(N) inside an attribute subtree.
func (b *builder) attributeArg(n *sitter.Node, attr string) (int64, bool) {
	var value int64
	found := false
	walkTree(n, func(c *sitter.Node) bool {
		if found {
			return false
		}
		if c.Kind() != "call_expression" {
			return true
		}
		fn := c.ChildByFieldName("function")
		if strings.Trim(nodeText(fn, b.orig), "_") != attr {
			return true
		}
		args := c.ChildByFieldName("arguments")
		if args == nil {
			return false
		}
		if arg := firstNamedChild(args); arg != nil {
			if v, err := b.constant(arg); err == nil {
				value, found = v, true
			}
		}
		return false
	})
	return value, found
}

func (b *builder) recordAttrs(spec *sitter.Node) (packed bool, align int64) {
	for _, attr := range childrenByType(spec, "attribute_specifier") {
		if b.hasAttribute(attr, "packed") {
			packed = true
		}
		if v, ok := b.attributeArg(attr, "aligned"); ok {
			align = max(align, v)
		}
	}
	return packed, align
}

var tagKeyword = map[cast.CursorKind]string{
	cast.CursorStructDecl: "struct",
	cast.CursorUnionDecl:  "union",
	cast.CursorEnumDecl:   "enum",
}

// tagCursor creates or links the cursor for a tag mention. Definitions and
// standalone forward declarations are attached to parent.
func (b *builder) tagCursor(spec *sitter.Node, kind cast.CursorKind, parent *cast.Cursor, isDef, standalone bool) *cast.Cursor {
	nameNode := spec.ChildByFieldName("name")
	name := nodeText(nameNode, b.orig)
	locNode := spec
	if nameNode != nil {
		locNode = nameNode
	}

	var canon *cast.Cursor
	if name != "" {
		canon = b.tags[name]
		if canon != nil && canon.Kind != kind {
			b.errorf(locNode, "use of '%s' with tag type that does not match previous declaration", name)
			canon = nil
		}
	}

	// A plain reference to a known tag adds no declaration.
	if !isDef && !standalone && canon != nil {
		return canon
	}

	c := cast.NewCursor(kind, name, b.loc(locNode))
	c.IsDefinition = isDef
	if canon != nil {
		if isDef && canon.Definition() != nil {
			b.errorf(locNode, "redefinition of '%s %s'", tagKeyword[kind], name)
		}
		c.Redeclares(canon)
		c.Type = canon.Type
	} else {
		typeKind := cast.TypeRecord
		if kind == cast.CursorEnumDecl {
			typeKind = cast.TypeEnum
		}
		spelling := tagKeyword[kind]
		if name != "" {
			spelling += " " + name
		}
		c.Type = &cast.Type{Kind: typeKind, Spelling: spelling, Decl: c, Size: -1, Align: -1}
		if name != "" {
			b.tags[name] = c
		}
	}
	if (isDef || standalone) && parent != nil {
		parent.AddChild(c)
	}
	return c
}

func (b *builder) record(spec *sitter.Node, parent *cast.Cursor, standalone bool) *cast.Type {
	kind := cast.CursorStructDecl
	if spec.Kind() == "union_specifier" {
		kind = cast.CursorUnionDecl
	}
	body := spec.ChildByFieldName("body")
	if body == nil && spec.ChildByFieldName("name") == nil {
		b.errorf(spec, "declaration of anonymous %s must be a definition", tagKeyword[kind])
		return builtinType(cast.TypeInt)
	}

	c := b.tagCursor(spec, kind, parent, body != nil, standalone)
	if body != nil {
		b.recordBody(c, body)
		packed, align := b.recordAttrs(spec)
		layoutRecord(c, packed, align)
	}
	return cast.NewElaborated(c.Canonical().Type)
}

// recordBody adds nested tag and field cursors in declaration order.
func (b *builder) recordBody(rec *cast.Cursor, body *sitter.Node) {
	for i := 0; i < int(body.NamedChildCount()); i++ {
		fd := body.NamedChild(uint(i))
		if fd.Kind() != "field_declaration" {
			continue
		}
		typeNode := fd.ChildByFieldName("type")
		if typeNode == nil {
			continue
		}
		decls := childrenByField(fd, "declarator")
		bitfield := findChildByType(fd, "bitfield_clause")
		base := b.specType(typeNode, []*sitter.Node{fd}, rec, len(decls) == 0 && bitfield == nil)

		if len(decls) == 0 {
			anonymous := typeNode.ChildByFieldName("name") == nil && typeNode.ChildByFieldName("body") != nil
			switch {
			case bitfield != nil:
				f := cast.NewCursor(cast.CursorFieldDecl, "", b.loc(fd))
				f.Type = base
				f.BitWidth = b.bitWidth(bitfield)
				rec.AddChild(f)
			case anonymous && typeNode.Kind() != "enum_specifier":
				// Anonymous struct or union member.
				f := cast.NewCursor(cast.CursorFieldDecl, "", b.loc(typeNode))
				f.Type = base
				rec.AddChild(f)
			}
			continue
		}

		for j, d := range decls {
			info := b.declarator(d, base)
			locNode := d
			if info.nameNode != nil {
				locNode = info.nameNode
			}
			f := cast.NewCursor(cast.CursorFieldDecl, info.name, b.loc(locNode))
			f.Type = b.applyAttributes(info.typ, fd, d)
			if bitfield != nil && j == len(decls)-1 {
				f.BitWidth = b.bitWidth(bitfield)
			}
			rec.AddChild(f)
		}
	}
}

func (b *builder) bitWidth(clause *sitter.Node) int {
	expr := firstNamedChild(clause)
	if expr == nil {
		b.errorf(clause, "expected bit-field width")
		return 0
	}
	v, err := b.constant(expr)
	if err != nil {
		b.errorf(expr, "bit-field width is not an integer constant")
		return 0
	}
	w, err := safecast.Conv[int](v)
	if err != nil || w < 0 {
		b.errorf(expr, "invalid bit-field width %d", v)
		return 0
	}
	return w
}

func (b *builder) enum(spec *sitter.Node, parent *cast.Cursor, standalone bool) *cast.Type {
	body := spec.ChildByFieldName("body")
	if body == nil && spec.ChildByFieldName("name") == nil {
		b.errorf(spec, "declaration of anonymous enum must be a definition")
		return builtinType(cast.TypeInt)
	}

	c := b.tagCursor(spec, cast.CursorEnumDecl, parent, body != nil, standalone)
	if body == nil {
		return cast.NewElaborated(c.Canonical().Type)
	}

	var explicit *cast.Type
	if ut := spec.ChildByFieldName("underlying_type"); ut != nil {
		explicit = b.specType(ut, nil, nil, false)
	}

	var values []int64
	next := int64(0)
	for i := 0; i < int(body.NamedChildCount()); i++ {
		en := body.NamedChild(uint(i))
		if en.Kind() != "enumerator" {
			continue
		}
		nameNode := en.ChildByFieldName("name")
		v := next
		if valueNode := en.ChildByFieldName("value"); valueNode != nil {
			var err error
			if v, err = b.constant(valueNode); err != nil {
				b.errorf(valueNode, "expression is not an integer constant expression")
				v = next
			}
		}
		next = v + 1

		name := nodeText(nameNode, b.orig)
		item := cast.NewCursor(cast.CursorEnumConstantDecl, name, b.loc(nameNode))
		item.EnumValue = v
		item.Type = builtinType(cast.TypeInt)
		c.AddChild(item)
		b.enumConsts[name] = v
		values = append(values, v)
	}

	c.IntegerType = enumIntegerType(values, explicit)
	shared := c.Canonical().Type
	shared.Size, shared.Align = c.IntegerType.SizeOf(), c.IntegerType.AlignOf()
	return cast.NewElaborated(shared)
}

// constant folds an expression of the main tree.
func (b *builder) constant(n *sitter.Node) (int64, error) {
	return evalNode(n, b.orig, evalEnv{ident: b.identValue, sizeOf: b.sizeofText})
}

// identValue resolves enum constants, then object macros.
func (b *builder) identValue(name string, depth int) (int64, bool) {
	if v, ok := b.enumConsts[name]; ok {
		return v, true
	}
	m, ok := b.src.Macros[name]
	if !ok || m.Function || depth > maxIncludeDepth {
		return 0, false
	}
	v, err := b.eval.evalTextDepth(m.Body, b.identValue, b.sizeofText, depth+1)
	if err != nil {
		return 0, false
	}
	return v, true
}

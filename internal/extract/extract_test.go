package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/cbind/internal/cast"
	"github.com/mvp-joe/cbind/internal/cdecl"
	"github.com/mvp-joe/cbind/internal/frontend"
)

// Test Plan for Extract:
// - Every top-level struct, union, enum, typedef, external function and variable yields one global
// - Forward declarations and definitions collapse to one identity, defined in place
// - A self-referential struct points at its own identity
// - Anonymous nested structs are nested globals with distinct IDs, owned by their field
// - A tag first declared inside a record and defined at file scope is listed at top level
// - Enum items keep declaration order and duplicate values
// - A builtin entry replaces the struct behind typedef struct Foo Foo
// - An unsupported field skips only its declaration; dependents are skipped too
// - A referenced composite whose definition fails stays listed as opaque
// - Static functions and variables are dropped
// - Typedefs of undefined tags produce opaque composites
// - Bitfields and empty composites are irregular
// - Function pointers, unknown type names and extern "C" blocks
// - Parse errors abort before any global is produced

func parseTU(t *testing.T, src string) *cast.TranslationUnit {
	t.Helper()
	tu, err := frontend.New(frontend.Options{}).ParseSource(context.Background(), "test.h", []byte(src))
	require.NoError(t, err)
	return tu
}

func extractSource(t *testing.T, src string, builtins ...BuiltinEntry) *Result {
	t.Helper()
	r, err := New(NewBuiltinResolver(builtins)).Extract(parseTU(t, src))
	require.NoError(t, err)
	return r
}

// only returns the single listed global spelled name.
func only(t *testing.T, r *Result, name string) (cdecl.ID, cdecl.Global) {
	t.Helper()
	ids := r.Lookup(name)
	require.Len(t, ids, 1, "globals named %q", name)
	return ids[0], r.Global(ids[0])
}

func TestExtract_OneGlobalPerDeclaration(t *testing.T) {
	t.Parallel()

	r := extractSource(t, `
struct Point { int x, y; };
union Value { int i; double d; };
enum Color { RED, GREEN };
typedef struct Point point_t;
int distance(const struct Point *a, const struct Point *b);
extern int counter;
`)

	var variants []string
	for _, g := range r.TopLevelGlobals() {
		variants = append(variants, cdecl.Variant(g))
	}
	assert.Equal(t, []string{"struct", "union", "enum", "typedef", "function", "var"}, variants)
	assert.Empty(t, r.Diagnostics)
	assert.Empty(t, r.Nested)

	_, g := only(t, r, "Point")
	point := g.(*cdecl.Composite)
	assert.Equal(t, cdecl.Layout{Size: 8, Align: 4}, point.Layout)
	assert.Equal(t, 2, point.Loc.Line)

	_, g = only(t, r, "distance")
	fn := g.(*cdecl.Function)
	proto, ok := fn.Type.(cdecl.FuncProto)
	require.True(t, ok)
	assert.Equal(t, cdecl.Base{Tag: cdecl.Int}, proto.Ret)
	require.Len(t, proto.Args, 2)
	assert.Equal(t, cdecl.Ptr{Elem: cdecl.CompositeRef{ID: point.Name.ID}}, proto.Args[0])
}

func TestExtract_ForwardDeclarationMerges(t *testing.T) {
	t.Parallel()

	tu := parseTU(t, "struct A;\nvoid use(struct A *a);\nstruct A { int x; };\nstruct A;\n")
	r, err := New(nil).Extract(tu)
	require.NoError(t, err)

	id, g := only(t, r, "A")
	assert.Equal(t, []cdecl.ID{id, id + 1}, r.TopLevel)

	// Test: the definition filled the placeholder in place
	m := r.MembersOf[id]
	assert.False(t, m.Opaque)
	require.Len(t, m.Fields, 1)
	assert.Equal(t, 3, g.(*cdecl.Composite).Loc.Line)
	assert.Equal(t, int64(4), g.(*cdecl.Composite).Layout.Size)

	// Test: registering every declaration again yields the same identity
	reg := NewRegistry(nil)
	var seen []cdecl.ID
	cast.Visit(tu.Cursor, func(c, _ *cast.Cursor) cast.VisitResult {
		if c.Kind == cast.CursorStructDecl {
			got, _, _, err := reg.LookupOrCreate(c)
			require.NoError(t, err)
			seen = append(seen, got)
		}
		return cast.VisitContinue
	})
	require.Len(t, seen, 3)
	assert.Equal(t, seen[0], seen[1])
	assert.Equal(t, seen[0], seen[2])
	assert.Equal(t, 1, reg.Len())
}

func TestExtract_SelfReference(t *testing.T) {
	t.Parallel()

	r := extractSource(t, "struct Node { struct Node *next; int val; };\n")

	id, g := only(t, r, "Node")
	require.Len(t, r.TopLevel, 1)
	assert.Equal(t, cdecl.Layout{Size: 16, Align: 8}, g.(*cdecl.Composite).Layout)

	fields := r.MembersOf[id].Fields
	require.Len(t, fields, 2)
	assert.Equal(t, cdecl.Field{Name: "next", Type: cdecl.Ptr{Elem: cdecl.CompositeRef{ID: id}}, Offset: 0}, fields[0])
	assert.Equal(t, cdecl.Field{Name: "val", Type: cdecl.Base{Tag: cdecl.Int}, Offset: 64}, fields[1])
}

func TestExtract_AnonymousNesting(t *testing.T) {
	t.Parallel()

	r := extractSource(t, "struct Outer {\n  struct { int a; } inner;\n  struct { int b; } other;\n  union { int i; float f; };\n};\n")

	outer, _ := only(t, r, "Outer")
	assert.Equal(t, []cdecl.ID{outer}, r.TopLevel)
	require.Len(t, r.Nested, 3)

	fields := r.MembersOf[outer].Fields
	require.Len(t, fields, 3)
	for i, f := range fields {
		field := f.(cdecl.Field)
		assert.True(t, field.Owned, "field %d", i)
		assert.Equal(t, cdecl.CompositeRef{ID: r.Nested[i]}, field.Type)
	}

	inner := r.Global(r.Nested[0]).(*cdecl.Composite)
	other := r.Global(r.Nested[1]).(*cdecl.Composite)
	anon := r.Global(r.Nested[2]).(*cdecl.Composite)
	assert.True(t, inner.Name.IsAnonymous())
	assert.True(t, other.Name.IsAnonymous())
	assert.NotEqual(t, inner.Name, other.Name)
	assert.Equal(t, cdecl.Union, anon.Kind)
	assert.Equal(t, "", fields[2].MemberName())

	// Test: nested globals are defined, and registered after their parent
	for _, id := range r.Nested {
		assert.Greater(t, id, outer)
		require.Contains(t, r.MembersOf, id)
		assert.Len(t, r.MembersOf[id].Fields, map[cdecl.ID]int{r.Nested[0]: 1, r.Nested[1]: 1, r.Nested[2]: 2}[id])
	}
}

func TestExtract_NestedInnerBeforeOuter(t *testing.T) {
	t.Parallel()

	r := extractSource(t, "struct A { struct { struct { int x; } deep; } mid; };\n")
	require.Len(t, r.Nested, 2)

	mid, deep := r.Nested[1], r.Nested[0]
	assert.Greater(t, deep, mid)
	assert.Equal(t, cdecl.CompositeRef{ID: deep}, r.MembersOf[mid].Fields[0].MemberType())
}

func TestExtract_TagDefinedAfterNestedDeclaration(t *testing.T) {
	t.Parallel()

	r := extractSource(t, "struct A { struct B; int x; };\nstruct B { int y; };\n")

	aID, _ := only(t, r, "A")
	bID, b := only(t, r, "B")

	// Test: the file-scope definition lists B at top level, after A
	assert.Equal(t, []cdecl.ID{aID, bID}, r.TopLevel)
	assert.NotContains(t, r.Nested, bID)
	assert.Equal(t, 2, cdecl.LocationOf(b).Line)

	members := r.MembersOf[bID]
	assert.False(t, members.Opaque)
	require.Len(t, members.Fields, 1)
	assert.Equal(t, "y", members.Fields[0].MemberName())
}

func TestExtract_EnumItems(t *testing.T) {
	t.Parallel()

	r := extractSource(t, "enum E { A = 1, B = 1, C = 2 };\nenum Signed { MINUS = -1 };\n")

	id, _ := only(t, r, "E")
	items := r.EnumItemsOf[id]
	assert.Equal(t, []cdecl.EnumItem{{Name: "A", Value: 1}, {Name: "B", Value: 1}, {Name: "C", Value: 2}}, items.Items)
	assert.Equal(t, cdecl.Base{Tag: cdecl.UInt}, items.Underlying)

	id, _ = only(t, r, "Signed")
	assert.Equal(t, []cdecl.EnumItem{{Name: "MINUS", Value: -1}}, r.EnumItemsOf[id].Items)
	assert.Equal(t, cdecl.Base{Tag: cdecl.Int}, r.EnumItemsOf[id].Underlying)
}

func TestExtract_BuiltinOverride(t *testing.T) {
	t.Parallel()

	src := "typedef struct Foo Foo;\nvoid take(Foo *f);\n"
	tu := parseTU(t, src)
	structFoo := tu.Cursor.Children[0].Underlying.Declaration()
	require.NotNil(t, structFoo)

	entry := BuiltinEntry{Shape: ShapeOf(structFoo), Name: "base.Foo"}
	r := extractSource(t, src, entry)

	for _, g := range r.Globals {
		_, isComposite := g.(*cdecl.Composite)
		assert.False(t, isComposite, "unexpected composite %v", g.GlobalName())
	}

	id, g := only(t, r, "Foo")
	td := g.(*cdecl.Typedef)
	named, ok := td.Type.(cdecl.Named)
	require.True(t, ok)
	assert.True(t, named.External)
	assert.Equal(t, "base.Foo", named.Name.Text)
	assert.IsType(t, &cdecl.Builtin{}, r.Global(named.Name.ID))

	_, g = only(t, r, "take")
	proto := g.(*cdecl.Function).Type.(cdecl.FuncProto)
	assert.Equal(t, cdecl.Ptr{Elem: cdecl.Named{Name: cdecl.Name{Text: "Foo", ID: id}}}, proto.Args[0])

	// Test: a shape one line off does not match
	entry.Shape.Loc.Line++
	r = extractSource(t, src, entry)
	var typedefs []*cdecl.Typedef
	var composites []cdecl.ID
	for _, id := range r.Lookup("Foo") {
		switch g := r.Global(id).(type) {
		case *cdecl.Typedef:
			typedefs = append(typedefs, g)
		case *cdecl.Composite:
			composites = append(composites, id)
		}
	}
	require.Len(t, typedefs, 1)
	require.Len(t, composites, 1)
	ref, ok := typedefs[0].Type.(cdecl.CompositeRef)
	require.True(t, ok)
	assert.Equal(t, composites[0], ref.ID)
	assert.True(t, r.MembersOf[ref.ID].Opaque)
}

func TestExtract_BuiltinTypedef(t *testing.T) {
	t.Parallel()

	src := "typedef unsigned long size_type;\nsize_type length(void);\n"
	tu := parseTU(t, src)
	entry := BuiltinEntry{Shape: ShapeOf(tu.Cursor.Children[0]), Name: "core.SizeType", Type: cdecl.Base{Tag: cdecl.ULong}}

	r := extractSource(t, src, entry)
	id, g := only(t, r, "core.SizeType")
	assert.Equal(t, &cdecl.Builtin{Name: cdecl.Name{Text: "core.SizeType", ID: id}, Type: cdecl.Base{Tag: cdecl.ULong}}, g)

	_, g = only(t, r, "length")
	proto := g.(*cdecl.Function).Type.(cdecl.FuncProto)
	assert.Equal(t, cdecl.Named{Name: cdecl.Name{Text: "core.SizeType", ID: id}, External: true}, proto.Ret)
}

func TestExtract_UnsupportedTypeIsolation(t *testing.T) {
	t.Parallel()

	r := extractSource(t, "struct Bad { __int128 wide; };\ntypedef struct Bad bad_t;\nstruct Good { int y; };\n")

	_, g := only(t, r, "Good")
	assert.Equal(t, []cdecl.Global{g}, r.TopLevelGlobals())
	assert.Empty(t, r.Lookup("Bad"))
	assert.Empty(t, r.Lookup("bad_t"))

	require.Len(t, r.Diagnostics, 2)
	assert.Equal(t, "Bad", r.Diagnostics[0].Name)
	assert.True(t, r.Diagnostics[0].Unsupported())
	var ute *UnsupportedTypeError
	require.ErrorAs(t, r.Diagnostics[0].Err, &ute)
	assert.Equal(t, cast.TypeInt128, ute.Kind)

	// Test: the typedef of the skipped struct is unresolvable
	assert.Equal(t, "bad_t", r.Diagnostics[1].Name)
	assert.ErrorIs(t, r.Diagnostics[1].Err, ErrNotFound)
	assert.True(t, r.Skipped("bad_t"))
}

func TestExtract_FailedDefinitionStaysOpaque(t *testing.T) {
	t.Parallel()

	r := extractSource(t, "struct Bad;\nstruct User { struct Bad *b; };\nstruct Bad { int x; __int128 y; };\n")

	bad, _ := only(t, r, "Bad")
	user, _ := only(t, r, "User")
	assert.Equal(t, []cdecl.ID{bad, user}, r.TopLevel)
	assert.True(t, r.MembersOf[bad].Opaque)
	assert.Equal(t, cdecl.Ptr{Elem: cdecl.CompositeRef{ID: bad}}, r.MembersOf[user].Fields[0].MemberType())
	require.Len(t, r.Diagnostics, 1)
	assert.Equal(t, "Bad", r.Diagnostics[0].Name)
}

func TestExtract_LinkageFiltering(t *testing.T) {
	t.Parallel()

	r := extractSource(t, `
static int helper(void) { return 0; }
static int cache;
int helper2(void);
static int later(void);
int later(void);
int visible;
`)

	var names []string
	for _, g := range r.TopLevelGlobals() {
		names = append(names, g.GlobalName().Text)
	}
	assert.Equal(t, []string{"helper2", "visible"}, names)
}

func TestExtract_FirstDeclarationWins(t *testing.T) {
	t.Parallel()

	r := extractSource(t, "int twice(int a);\nint twice(int b) { return b; }\nextern const int limit;\n")

	_, g := only(t, r, "twice")
	assert.Equal(t, 1, g.(*cdecl.Function).Loc.Line)
	assert.Len(t, r.TopLevel, 2)

	_, g = only(t, r, "limit")
	assert.True(t, g.(*cdecl.Var).Const)
	assert.Equal(t, cdecl.Base{Tag: cdecl.Int}, g.(*cdecl.Var).Type)
}

func TestExtract_OpaqueTypedef(t *testing.T) {
	t.Parallel()

	r := extractSource(t, "typedef struct Handle *handle_t;\nhandle_t open_handle(const char *path);\n")

	hid, g := only(t, r, "Handle")
	handle := g.(*cdecl.Composite)
	assert.Equal(t, cdecl.Layout{Size: -1, Align: -1}, handle.Layout)
	assert.Equal(t, cdecl.Members{Opaque: true}, r.MembersOf[hid])

	tid, g := only(t, r, "handle_t")
	assert.Equal(t, cdecl.Ptr{Elem: cdecl.CompositeRef{ID: hid}}, g.(*cdecl.Typedef).Type)
	assert.Less(t, tid, hid)

	_, g = only(t, r, "open_handle")
	proto := g.(*cdecl.Function).Type.(cdecl.FuncProto)
	assert.Equal(t, cdecl.Named{Name: cdecl.Name{Text: "handle_t", ID: tid}}, proto.Ret)
	assert.Equal(t, cdecl.Ptr{Elem: cdecl.Base{Tag: cdecl.CharS}}, proto.Args[0])
}

func TestExtract_IrregularComposites(t *testing.T) {
	t.Parallel()

	r := extractSource(t, "struct Flags { unsigned a : 1; unsigned b : 2; int c; };\nstruct Empty {};\nstruct Plain { int x; };\n")

	id, _ := only(t, r, "Flags")
	m := r.MembersOf[id]
	assert.True(t, m.Irregular)
	require.Len(t, m.Fields, 3)
	assert.Equal(t, cdecl.Bitfield{Name: "a", Type: cdecl.Base{Tag: cdecl.UInt}, Width: 1, Offset: 0}, m.Fields[0])
	assert.Equal(t, cdecl.Bitfield{Name: "b", Type: cdecl.Base{Tag: cdecl.UInt}, Width: 2, Offset: 1}, m.Fields[1])
	assert.Equal(t, cdecl.Field{Name: "c", Type: cdecl.Base{Tag: cdecl.Int}, Offset: 32}, m.Fields[2])

	id, _ = only(t, r, "Empty")
	assert.True(t, r.MembersOf[id].Irregular)
	assert.Empty(t, r.MembersOf[id].Fields)

	id, _ = only(t, r, "Plain")
	assert.False(t, r.MembersOf[id].Irregular)
}

func TestExtract_FunctionPointers(t *testing.T) {
	t.Parallel()

	r := extractSource(t, `
typedef int (*cmp_fn)(const void *a, const void *b);
struct Sorter { cmp_fn cmp; void (*done)(void); };
void (*on_exit_hook)(int code);
`)

	cmpID, g := only(t, r, "cmp_fn")
	assert.Equal(t, cdecl.FuncPtr{
		Ret:  cdecl.Base{Tag: cdecl.Int},
		Args: []cdecl.Type{cdecl.Ptr{Elem: cdecl.Void{}}, cdecl.Ptr{Elem: cdecl.Void{}}},
	}, g.(*cdecl.Typedef).Type)

	id, _ := only(t, r, "Sorter")
	fields := r.MembersOf[id].Fields
	require.Len(t, fields, 2)
	assert.Equal(t, cdecl.Named{Name: cdecl.Name{Text: "cmp_fn", ID: cmpID}}, fields[0].MemberType())
	assert.Equal(t, cdecl.FuncPtr{Ret: cdecl.Void{}}, fields[1].MemberType())

	_, g = only(t, r, "on_exit_hook")
	assert.Equal(t, cdecl.FuncPtr{Ret: cdecl.Void{}, Args: []cdecl.Type{cdecl.Base{Tag: cdecl.Int}}}, g.(*cdecl.Var).Type)
}

func TestExtract_UnknownTypeNames(t *testing.T) {
	t.Parallel()

	r := extractSource(t, "FILE *open_log(const char *path);\nFILE stream;\n")

	_, g := only(t, r, "open_log")
	assert.Equal(t, cdecl.Ptr{Elem: cdecl.Void{}}, g.(*cdecl.Function).Type.(cdecl.FuncProto).Ret)

	require.Len(t, r.Diagnostics, 1)
	assert.Equal(t, "stream", r.Diagnostics[0].Name)
	assert.ErrorIs(t, r.Diagnostics[0].Err, ErrNotFound)
	require.NotEmpty(t, r.Warnings)
	assert.Equal(t, cast.SeverityWarning, r.Warnings[0].Severity)
}

func TestExtract_LinkageSpecification(t *testing.T) {
	t.Parallel()

	r := extractSource(t, "extern \"C\" {\nint c_api(double _Complex z);\n}\n")

	_, g := only(t, r, "c_api")
	proto := g.(*cdecl.Function).Type.(cdecl.FuncProto)
	assert.Equal(t, []cdecl.Type{cdecl.Base{Tag: cdecl.Complex64}}, proto.Args)
}

func TestExtract_ArraysAndFlexibleMembers(t *testing.T) {
	t.Parallel()

	r := extractSource(t, "#define N 4\nstruct Buf { int len; char data[N]; char tail[]; };\nextern int table[];\n")

	id, _ := only(t, r, "Buf")
	fields := r.MembersOf[id].Fields
	require.Len(t, fields, 3)
	assert.Equal(t, cdecl.Array{Elem: cdecl.Base{Tag: cdecl.CharS}, Len: 4}, fields[1].MemberType())
	assert.Equal(t, cdecl.Array{Elem: cdecl.Base{Tag: cdecl.CharS}, Len: 0}, fields[2].MemberType())

	_, g := only(t, r, "table")
	assert.Equal(t, cdecl.Array{Elem: cdecl.Base{Tag: cdecl.Int}}, g.(*cdecl.Var).Type)
}

func TestExtract_ParseErrorAborts(t *testing.T) {
	t.Parallel()

	tu := parseTU(t, "struct Fine { int x; };\nstruct Broken { int x int y; };\n")
	r, err := New(nil).Extract(tu)
	assert.Nil(t, r)

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.NotEmpty(t, perr.Diagnostics)
	assert.Contains(t, err.Error(), "parse failed")
}

func TestExtract_Select(t *testing.T) {
	t.Parallel()

	r := extractSource(t, "int keep_me(void);\nint drop_me(void);\n")
	sel := r.Select(func(_ cdecl.ID, g cdecl.Global) bool {
		return g.GlobalName().Text == "keep_me"
	})
	require.Len(t, sel.TopLevel, 1)
	assert.Equal(t, "keep_me", sel.NameOf(sel.TopLevel[0]))
	assert.Len(t, r.TopLevel, 2)
}

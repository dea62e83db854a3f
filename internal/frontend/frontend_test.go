package frontend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/cbind/internal/cast"
)

// Test Plan for the tree-sitter front end:
// - Struct layout follows LP64 alignment rules
// - Bitfields do not straddle their storage unit; packed structs have no padding
// - Forward declarations and definitions share one canonical cursor
// - Implicit tag references are not attached to the translation unit
// - Function pointer typedefs expose unexposed paren sugar with a result type
// - Static functions and variables have internal linkage
// - Enum values, duplicates and the enum integer type
// - Signed literals in enums and #if lines evaluate to negative values
// - Object macros size arrays and drive #ifdef / #if
// - Includes are spliced with their own locations; missing quoted includes are errors
// - Syntax errors and unknown type names are reported as diagnostics
// - _Complex and __int128 produce their own type kinds
// - Anonymous members get an unnamed field after the nested declaration

func parse(t *testing.T, src string) *cast.TranslationUnit {
	t.Helper()
	tu, err := New(Options{}).ParseSource(context.Background(), "test.h", []byte(src))
	require.NoError(t, err)
	return tu
}

func find(tu *cast.TranslationUnit, kind cast.CursorKind, name string) *cast.Cursor {
	var found *cast.Cursor
	cast.Visit(tu.Cursor, func(c, _ *cast.Cursor) cast.VisitResult {
		if c.Kind == kind && c.Spelling == name {
			found = c
			return cast.VisitBreak
		}
		return cast.VisitRecurse
	})
	return found
}

func fields(c *cast.Cursor) []*cast.Cursor {
	var out []*cast.Cursor
	for _, child := range c.Children {
		if child.Kind == cast.CursorFieldDecl {
			out = append(out, child)
		}
	}
	return out
}

func TestParse_StructLayout(t *testing.T) {
	t.Parallel()

	tu := parse(t, "struct S { char a; int b; short c; double d; };\n")
	require.False(t, tu.HasErrors(), tu.Diagnostics)

	s := find(tu, cast.CursorStructDecl, "S")
	require.NotNil(t, s)
	assert.True(t, s.IsDefinition)
	assert.Equal(t, int64(24), s.Type.SizeOf())
	assert.Equal(t, int64(8), s.Type.AlignOf())

	fs := fields(s)
	require.Len(t, fs, 4)
	offsets := []int64{fs[0].FieldOffset, fs[1].FieldOffset, fs[2].FieldOffset, fs[3].FieldOffset}
	assert.Equal(t, []int64{0, 32, 64, 128}, offsets)
	assert.Equal(t, cast.TypeElaborated, find(parse(t, "struct S { int x; }; struct S v;\n"), cast.CursorVarDecl, "v").Type.Kind)
}

func TestParse_Bitfields(t *testing.T) {
	t.Parallel()

	tu := parse(t, "struct B { unsigned a : 3; unsigned b : 30; unsigned char c : 4; };\n")
	b := find(tu, cast.CursorStructDecl, "B")
	require.NotNil(t, b)

	fs := fields(b)
	require.Len(t, fs, 3)
	assert.Equal(t, 3, fs[0].BitWidth)
	assert.Equal(t, int64(0), fs[0].FieldOffset)

	// Test: b would straddle the first 32-bit unit, so it starts the next one
	assert.Equal(t, int64(32), fs[1].FieldOffset)
	// Test: c would straddle a byte boundary at bit 62
	assert.Equal(t, int64(64), fs[2].FieldOffset)
	assert.Equal(t, int64(12), b.Type.SizeOf())

	// Test: ordinary fields have no width
	plain := find(parse(t, "struct P { int x; };\n"), cast.CursorStructDecl, "P")
	assert.Equal(t, -1, fields(plain)[0].BitWidth)
}

func TestParse_Packed(t *testing.T) {
	t.Parallel()

	tu := parse(t, "struct __attribute__((packed)) P { char a; int b; };\n")
	p := find(tu, cast.CursorStructDecl, "P")
	require.NotNil(t, p)
	assert.Equal(t, int64(5), p.Type.SizeOf())
	assert.Equal(t, int64(1), p.Type.AlignOf())
	assert.Equal(t, int64(8), fields(p)[1].FieldOffset)
}

func TestParse_ForwardDeclarationAndDefinition(t *testing.T) {
	t.Parallel()

	tu := parse(t, "struct Node;\nstruct Node { struct Node *next; int val; };\n")

	var decls []*cast.Cursor
	for _, c := range tu.Cursor.Children {
		if c.Kind == cast.CursorStructDecl {
			decls = append(decls, c)
		}
	}
	require.Len(t, decls, 2)
	assert.False(t, decls[0].IsDefinition)
	assert.True(t, decls[1].IsDefinition)
	assert.Same(t, decls[0], decls[1].Canonical())
	assert.Same(t, decls[1], decls[0].Definition())

	// Test: the self pointer refers to the shared tag type
	next := fields(decls[1])[0]
	require.Equal(t, cast.TypePointer, next.Type.Kind)
	assert.Same(t, decls[0], next.Type.Pointee.Declaration())
	assert.Equal(t, int64(16), decls[1].Type.SizeOf())
}

func TestParse_ImplicitTagReference(t *testing.T) {
	t.Parallel()

	tu := parse(t, "typedef struct Foo Foo;\nvoid use(struct Bar *b);\n")

	// Test: only the typedef and the function are attached
	require.Len(t, tu.Cursor.Children, 2)
	td := tu.Cursor.Children[0]
	assert.Equal(t, cast.CursorTypedefDecl, td.Kind)

	decl := td.Underlying.Declaration()
	require.NotNil(t, decl)
	assert.Equal(t, cast.CursorStructDecl, decl.Kind)
	assert.Equal(t, "Foo", decl.Spelling)
	assert.Nil(t, decl.Parent)
	assert.Nil(t, decl.Definition())
}

func TestParse_FunctionPointerTypedef(t *testing.T) {
	t.Parallel()

	tu := parse(t, "typedef void (*callback)(int code, const char *msg);\n")
	td := find(tu, cast.CursorTypedefDecl, "callback")
	require.NotNil(t, td)

	ptr := td.Underlying
	require.Equal(t, cast.TypePointer, ptr.Kind)
	require.Equal(t, cast.TypeUnexposed, ptr.Pointee.Kind)

	rt := ptr.Pointee.ResultType()
	require.NotNil(t, rt)
	assert.Equal(t, cast.TypeVoid, rt.Kind)

	fn := ptr.Pointee.CanonicalType()
	require.Equal(t, cast.TypeFunctionProto, fn.Kind)
	require.Len(t, fn.Args, 2)
	assert.Equal(t, cast.TypeInt, fn.Args[0].Kind)
	assert.True(t, fn.Args[1].Pointee.Const)
}

func TestParse_FunctionsAndLinkage(t *testing.T) {
	t.Parallel()

	tu := parse(t, `
int add(int a, int b);
static int helper(void) { return 1; }
int printf_like(const char *fmt, ...);
int old_style();
extern int counter;
static int hidden;
`)

	add := find(tu, cast.CursorFunctionDecl, "add")
	require.NotNil(t, add)
	assert.Equal(t, cast.LinkageExternal, add.Linkage)
	require.Len(t, add.Children, 2)
	assert.Equal(t, "a", add.Children[0].Spelling)
	assert.Equal(t, cast.TypeFunctionProto, add.Type.Kind)

	helper := find(tu, cast.CursorFunctionDecl, "helper")
	require.NotNil(t, helper)
	assert.Equal(t, cast.LinkageInternal, helper.Linkage)
	assert.True(t, helper.IsDefinition)
	assert.Empty(t, helper.Type.Args)

	// Test: variadic and unprototyped functions
	assert.True(t, find(tu, cast.CursorFunctionDecl, "printf_like").Type.Variadic)
	assert.Equal(t, cast.TypeFunctionNoProto, find(tu, cast.CursorFunctionDecl, "old_style").Type.Kind)

	counter := find(tu, cast.CursorVarDecl, "counter")
	require.NotNil(t, counter)
	assert.Equal(t, cast.LinkageExternal, counter.Linkage)
	assert.False(t, counter.IsDefinition)
	assert.Equal(t, cast.LinkageInternal, find(tu, cast.CursorVarDecl, "hidden").Linkage)
}

func TestParse_Enums(t *testing.T) {
	t.Parallel()

	tu := parse(t, "enum E { A = 1, B = 1, C };\nenum S { NEG = -1, POS };\n")

	e := find(tu, cast.CursorEnumDecl, "E")
	require.NotNil(t, e)
	var values []int64
	for _, item := range e.Children {
		values = append(values, item.EnumValue)
	}
	assert.Equal(t, []int64{1, 1, 2}, values)
	assert.Equal(t, cast.TypeUInt, e.IntegerType.Kind)
	assert.Equal(t, int64(4), e.Type.SizeOf())

	s := find(tu, cast.CursorEnumDecl, "S")
	assert.Equal(t, cast.TypeInt, s.IntegerType.Kind)
	assert.Equal(t, int64(-1), s.Children[0].EnumValue)
	assert.Equal(t, int64(0), s.Children[1].EnumValue)
}

func TestParse_NegativeLiterals(t *testing.T) {
	t.Parallel()

	tu := parse(t, `
#if -1
int taken;
#endif
#if -1 > 0
int not_taken;
#endif
enum Masks { LOW = -0x10, HIGH = +0x10 };
struct Ok { int x; };
`)
	require.False(t, tu.HasErrors(), tu.Diagnostics)

	assert.NotNil(t, find(tu, cast.CursorVarDecl, "taken"))
	assert.Nil(t, find(tu, cast.CursorVarDecl, "not_taken"))

	masks := find(tu, cast.CursorEnumDecl, "Masks")
	require.NotNil(t, masks)
	require.Len(t, masks.Children, 2)
	assert.Equal(t, int64(-16), masks.Children[0].EnumValue)
	assert.Equal(t, int64(16), masks.Children[1].EnumValue)
	assert.NotNil(t, find(tu, cast.CursorStructDecl, "Ok"))
}

func TestParse_Macros(t *testing.T) {
	t.Parallel()

	tu := parse(t, `
#define SIZE (4 * 2)
#define API
#ifdef SIZE
API int table[SIZE + 1];
#else
int wrong;
#endif
#if defined(MISSING) || SIZE < 4
int also_wrong;
#elif SIZE == 8
int right;
#endif
`)
	require.False(t, tu.HasErrors(), tu.Diagnostics)

	table := find(tu, cast.CursorVarDecl, "table")
	require.NotNil(t, table)
	assert.Equal(t, cast.TypeConstantArray, table.Type.Kind)
	assert.Equal(t, int64(9), table.Type.Len)
	assert.Equal(t, 5, table.Loc.Line)

	assert.Nil(t, find(tu, cast.CursorVarDecl, "wrong"))
	assert.Nil(t, find(tu, cast.CursorVarDecl, "also_wrong"))
	assert.NotNil(t, find(tu, cast.CursorVarDecl, "right"))
}

func TestParse_Includes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "types.h"), []byte("#pragma once\ntypedef int handle_t;\n"), 0o644))
	main := filepath.Join(dir, "main.h")
	require.NoError(t, os.WriteFile(main, []byte("#include \"types.h\"\n#include \"types.h\"\n#include <stdint.h>\nhandle_t open_it(uint32_t flags);\n"), 0o644))

	tu, err := New(Options{}).ParseFile(context.Background(), main)
	require.NoError(t, err)
	require.False(t, tu.HasErrors(), tu.Diagnostics)
	assert.Equal(t, []string{main, filepath.Join(dir, "types.h")}, tu.Files)

	td := find(tu, cast.CursorTypedefDecl, "handle_t")
	require.NotNil(t, td)
	assert.Equal(t, filepath.Join(dir, "types.h"), td.Loc.File)
	assert.Equal(t, 2, td.Loc.Line)

	fn := find(tu, cast.CursorFunctionDecl, "open_it")
	require.NotNil(t, fn)
	assert.Equal(t, main, fn.Loc.File)
	assert.Equal(t, 4, fn.Loc.Line)
	assert.Equal(t, cast.TypeTypedef, fn.Type.Result.Kind)
	assert.Equal(t, cast.TypeUInt, fn.Type.Args[0].Kind)
}

func TestParse_MissingQuotedInclude(t *testing.T) {
	t.Parallel()

	tu := parse(t, "#include \"nowhere.h\"\nint x;\n")
	require.True(t, tu.HasErrors())
	assert.Contains(t, tu.Errors()[0].Message, "nowhere.h")

	// Test: unknown system headers only warn
	tu = parse(t, "#include <nowhere_sys.h>\nint x;\n")
	assert.False(t, tu.HasErrors())
	require.Len(t, tu.Diagnostics, 1)
	assert.Equal(t, cast.SeverityWarning, tu.Diagnostics[0].Severity)
}

func TestParse_Diagnostics(t *testing.T) {
	t.Parallel()

	tu := parse(t, "struct Broken { int x int y; };\n")
	assert.True(t, tu.HasErrors())

	tu = parse(t, "FILE *open_log(void);\n")
	assert.False(t, tu.HasErrors())
	require.NotEmpty(t, tu.Diagnostics)
	assert.Contains(t, tu.Diagnostics[0].Message, "unknown type name 'FILE'")

	fn := find(tu, cast.CursorFunctionDecl, "open_log")
	require.NotNil(t, fn)
	assert.Nil(t, fn.Type.Result.Pointee.Declaration())
}

func TestParse_ComplexAndInt128(t *testing.T) {
	t.Parallel()

	tu := parse(t, "struct Z { double _Complex z; __int128 wide; unsigned long long u; };\n")
	require.False(t, tu.HasErrors(), tu.Diagnostics)

	fs := fields(find(tu, cast.CursorStructDecl, "Z"))
	require.Len(t, fs, 3)
	assert.Equal(t, cast.TypeComplex, fs[0].Type.Kind)
	assert.Equal(t, cast.TypeDouble, fs[0].Type.Elem.Kind)
	assert.Equal(t, int64(16), fs[0].Type.SizeOf())
	assert.Equal(t, cast.TypeInt128, fs[1].Type.Kind)
	assert.Equal(t, cast.TypeULongLong, fs[2].Type.Kind)
	assert.Equal(t, "z", fs[0].Spelling)
}

func TestParse_AnonymousMembers(t *testing.T) {
	t.Parallel()

	tu := parse(t, "struct Outer { struct { int a; } inner; union { int i; float f; }; };\n")
	outer := find(tu, cast.CursorStructDecl, "Outer")
	require.NotNil(t, outer)
	require.Len(t, outer.Children, 4)

	assert.Equal(t, cast.CursorStructDecl, outer.Children[0].Kind)
	assert.True(t, outer.Children[0].IsAnonymous())
	assert.Equal(t, "inner", outer.Children[1].Spelling)
	assert.Same(t, outer.Children[0], outer.Children[1].Type.Declaration())

	assert.Equal(t, cast.CursorUnionDecl, outer.Children[2].Kind)
	assert.Equal(t, "", outer.Children[3].Spelling)
	assert.Equal(t, int64(32), outer.Children[3].FieldOffset)
	assert.Equal(t, int64(8), outer.Type.SizeOf())
}

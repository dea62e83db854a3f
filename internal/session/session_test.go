package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/cbind/internal/cdecl"
	"github.com/mvp-joe/cbind/internal/extract"
	"github.com/mvp-joe/cbind/internal/filter"
)

// Test Plan for Session:
// - ExtractAll returns results in input order and records per-file errors
// - A second extraction of unchanged input is served from the cache
// - Different builtins never share cache entries
// - The filter narrows returned results without touching cached ones
// - A cancelled context stops the run

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newSession(t *testing.T, opts Options) *Session {
	t.Helper()
	s, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestExtractAll(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := writeFile(t, dir, "a.h", "struct A { int x; };\n")
	b := writeFile(t, dir, "b.h", "int b_func(void);\nint b_var;\n")
	missing := filepath.Join(dir, "missing.h")

	s := newSession(t, Options{Workers: 2})
	var seen int
	results, err := s.ExtractAll(context.Background(), []string{a, missing, b}, func(FileResult) { seen++ })
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, 3, seen)

	// Test: input order and per-file errors
	assert.Equal(t, a, results[0].Path)
	require.NoError(t, results[0].Err)
	assert.Len(t, results[0].Result.TopLevel, 1)
	assert.Error(t, results[1].Err)
	require.NoError(t, results[2].Err)
	assert.Len(t, results[2].Result.TopLevel, 2)
}

func TestExtractFile_Cache(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "t.h", "typedef struct T T;\n")
	ctx := context.Background()
	s := newSession(t, Options{})

	first := s.ExtractFile(ctx, path)
	require.NoError(t, first.Err)
	assert.False(t, first.Cached)

	second := s.ExtractFile(ctx, path)
	require.NoError(t, second.Err)
	assert.True(t, second.Cached)
	assert.Same(t, first.Result, second.Result)

	// Test: changed content misses
	writeFile(t, dir, "t.h", "typedef struct T T;\nstruct T { int v; };\n")
	third := s.ExtractFile(ctx, path)
	require.NoError(t, third.Err)
	assert.False(t, third.Cached)

	// Test: invalidate drops everything
	s.Invalidate()
	assert.False(t, s.ExtractFile(ctx, path).Cached)
}

func TestExtractBuffer_BuiltinsKeyTheCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	src := []byte("struct Foo { int x; };\n")

	plain := newSession(t, Options{})
	r, err := plain.ExtractBuffer(ctx, "foo.h", src)
	require.NoError(t, err)
	require.Len(t, r.TopLevel, 1)
	assert.IsType(t, &cdecl.Composite{}, r.Global(r.TopLevel[0]))

	entry := extract.BuiltinEntry{Shape: r.Shape(r.TopLevel[0]), Name: "core.Foo"}
	bound := newSession(t, Options{Builtins: extract.NewBuiltinResolver([]extract.BuiltinEntry{entry})})
	assert.NotEqual(t, plain.key(plain.parser.LoadSource("foo.h", src)), bound.key(bound.parser.LoadSource("foo.h", src)))

	r, err = bound.ExtractBuffer(ctx, "foo.h", src)
	require.NoError(t, err)
	assert.Equal(t, &cdecl.Builtin{Name: cdecl.Name{Text: "core.Foo", ID: 1}}, r.Global(r.TopLevel[0]))

	// Test: the same binding with another type is a different key
	entry.Type = cdecl.Base{Tag: cdecl.Int}
	retyped := newSession(t, Options{Builtins: extract.NewBuiltinResolver([]extract.BuiltinEntry{entry})})
	assert.NotEqual(t, bound.key(bound.parser.LoadSource("foo.h", src)), retyped.key(retyped.parser.LoadSource("foo.h", src)))
}

func TestExtractBuffer_Filter(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f, err := filter.New(nil, []string{"priv_*"})
	require.NoError(t, err)
	s := newSession(t, Options{Filter: f})

	src := []byte("int pub(void);\nint priv_x(void);\n")
	r, err := s.ExtractBuffer(ctx, "f.h", src)
	require.NoError(t, err)
	require.Len(t, r.TopLevel, 1)
	assert.Equal(t, "pub", r.NameOf(r.TopLevel[0]))

	// Test: a cache hit is filtered too
	r, err = s.ExtractBuffer(ctx, "f.h", src)
	require.NoError(t, err)
	assert.Len(t, r.TopLevel, 1)
	hits, _ := s.CacheStats()
	assert.Equal(t, int64(1), hits)
}

func TestExtractAll_Cancelled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "c.h", "int c;\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := newSession(t, Options{Workers: 1})
	_, err := s.ExtractAll(ctx, []string{path}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtractBuffer_ParseError(t *testing.T) {
	t.Parallel()

	s := newSession(t, Options{})
	_, err := s.ExtractBuffer(context.Background(), "bad.h", []byte("struct { int x\n"))
	var pe *extract.ParseError
	assert.ErrorAs(t, err, &pe)
}

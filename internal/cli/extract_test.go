package cli

// Test Plan for the extract, graph and snapshot commands:
// - executeExtract renders text output for one header
// - executeExtract renders one JSON document per input
// - Files that fail to parse are reported and counted, the others still render
// - Skipped declarations appear as diagnostics without failing the run
// - --save writes a snapshot; a later run with snapshot.load binds the saved names
// - TOML builtin files passed with --builtins override declarations
// - Unknown output formats are rejected before extraction
// - executeGraph prints dependency order and neighbours of one declaration
// - executeSnapshotShow lists runs and the globals of one run

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/cbind/internal/config"
	"github.com/mvp-joe/cbind/internal/extract"
	"github.com/mvp-joe/cbind/internal/render"
	"github.com/mvp-joe/cbind/internal/snapshot"
)

const listHeader = `typedef struct Node Node;
struct Node {
	Node *next;
	int value;
};
enum Color { RED = 1, CRIMSON = 1, GREEN = 2 };
Node *node_push(Node *head, int value);
static int helper(void);
`

// newTestProject creates a project in a temp dir with default settings and
// no colors, and writes the given files into it.
func newTestProject(t *testing.T, files map[string]string) *project {
	t.Helper()

	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}

	cfg := config.Default()
	cfg.Output.Color = false
	return &project{root: root, cfg: cfg, global: &config.GlobalConfig{}}
}

func TestExecuteExtract_Text(t *testing.T) {
	t.Parallel()

	p := newTestProject(t, map[string]string{"list.h": listHeader})
	var out, errOut bytes.Buffer

	err := executeExtract(context.Background(), p, []string{"list.h"}, extractOptions{quiet: true}, &out, &errOut)
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "== list.h")
	assert.Contains(t, text, "struct Node")
	assert.Contains(t, text, "typedef Node")
	assert.Contains(t, text, "function node_push")
	assert.Contains(t, text, "CRIMSON = 1")
	// Test: internal linkage is never listed
	assert.NotContains(t, text, "helper")
	assert.Empty(t, errOut.String())
}

func TestExecuteExtract_JSONPerInput(t *testing.T) {
	t.Parallel()

	p := newTestProject(t, map[string]string{
		"a.h": "struct A { int x; };\n",
		"b.h": "extern const int b_version;\nunion B { int i; float f; };\n",
	})
	var out, errOut bytes.Buffer

	err := executeExtract(context.Background(), p, []string{"a.h", "b.h"}, extractOptions{format: "json", quiet: true}, &out, &errOut)
	require.NoError(t, err)

	var docs []render.Document
	require.NoError(t, json.Unmarshal(out.Bytes(), &docs))
	require.Len(t, docs, 2)

	assert.Equal(t, "a.h", docs[0].Source)
	require.Len(t, docs[0].Globals, 1)
	assert.Equal(t, "struct", docs[0].Globals[0].Kind)
	assert.Equal(t, "A", docs[0].Globals[0].Name)

	assert.Equal(t, "b.h", docs[1].Source)
	require.Len(t, docs[1].Globals, 2)
	assert.Equal(t, "var", docs[1].Globals[0].Kind)
	assert.True(t, docs[1].Globals[0].Const)
	assert.Equal(t, "union", docs[1].Globals[1].Kind)
}

func TestExecuteExtract_ParseFailure(t *testing.T) {
	t.Parallel()

	p := newTestProject(t, map[string]string{
		"good.h":   "struct Good { int x; };\n",
		"broken.h": "#include \"missing.h\"\nstruct Broken { int x; };\n",
	})
	var out, errOut bytes.Buffer

	err := executeExtract(context.Background(), p, []string{"good.h", "broken.h"}, extractOptions{quiet: true}, &out, &errOut)

	// Test: the failure is counted but the good file still renders
	require.ErrorIs(t, err, ErrExtractionFailed)
	assert.Contains(t, err.Error(), "1 of 2 files")
	assert.Contains(t, out.String(), "struct Good")
	assert.NotContains(t, out.String(), "Broken")
	assert.Contains(t, errOut.String(), "broken.h")
	assert.Contains(t, errOut.String(), "parse error")
}

func TestExecuteExtract_SkippedDeclaration(t *testing.T) {
	t.Parallel()

	p := newTestProject(t, map[string]string{
		"wide.h": "struct Wide { __int128 big; };\nstruct Fine { int x; };\n",
	})
	var out, errOut bytes.Buffer

	err := executeExtract(context.Background(), p, []string{"wide.h"}, extractOptions{format: "json", quiet: true}, &out, &errOut)
	require.NoError(t, err)

	var doc render.Document
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	require.Len(t, doc.Globals, 1)
	assert.Equal(t, "Fine", doc.Globals[0].Name)
	require.Len(t, doc.Diagnostics, 1)
	assert.Equal(t, "Wide", doc.Diagnostics[0].Name)
	assert.True(t, doc.Diagnostics[0].Unsupported)
}

func TestExecuteExtract_SaveAndReuseSnapshot(t *testing.T) {
	t.Parallel()

	p := newTestProject(t, map[string]string{
		"core.h": "typedef struct Foo Foo;\nstruct Foo { int x; };\n",
	})
	p.cfg.Module = "core"
	ctx := context.Background()

	// Test: --save writes one run
	var out, errOut bytes.Buffer
	err := executeExtract(ctx, p, []string{"core.h"}, extractOptions{save: "snap/core.db", quiet: true}, &out, &errOut)
	require.NoError(t, err)

	dbPath := filepath.Join(p.root, "snap", "core.db")
	store, err := snapshot.Open(dbPath)
	require.NoError(t, err)
	runs, err := store.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "core", runs[0].Module)
	assert.Equal(t, "core.h", runs[0].Source)
	require.NoError(t, store.Close())

	// Test: the next run binds the same declarations as builtins
	p.cfg.Module = "app"
	p.cfg.Snapshot.Load = []string{dbPath}
	out.Reset()
	err = executeExtract(ctx, p, []string{"core.h"}, extractOptions{format: "json", quiet: true}, &out, &errOut)
	require.NoError(t, err)

	var doc render.Document
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	require.NotEmpty(t, doc.Globals)
	for _, g := range doc.Globals {
		assert.Equal(t, "builtin", g.Kind)
		assert.True(t, strings.HasPrefix(g.Name, "core."), g.Name)
	}
}

func TestExecuteExtract_BuiltinFile(t *testing.T) {
	t.Parallel()

	p := newTestProject(t, nil)
	header := filepath.Join(p.root, "foo.h")
	require.NoError(t, os.WriteFile(header, []byte("typedef struct Foo Foo;\nFoo *foo_new(void);\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(p.root, "builtins.toml"), []byte(`
[[builtin]]
file = "`+header+`"
line = 1
column = 16
spelling = "Foo"
kind = "StructDecl"
name = "shared.Foo"
`), 0644))

	var out, errOut bytes.Buffer
	err := executeExtract(context.Background(), p, []string{"foo.h"},
		extractOptions{builtins: []string{"builtins.toml"}, quiet: true}, &out, &errOut)
	require.NoError(t, err)

	// Test: the tag is bound to the builtin name and the typedef refers to it
	assert.Contains(t, out.String(), "builtin shared.Foo")
	assert.Contains(t, out.String(), "typedef Foo = shared.Foo")
	assert.Contains(t, out.String(), "function foo_new: Foo *()")
}

func TestExecuteExtract_UnknownFormat(t *testing.T) {
	t.Parallel()

	p := newTestProject(t, map[string]string{"a.h": "int a;\n"})
	var out, errOut bytes.Buffer

	err := executeExtract(context.Background(), p, []string{"a.h"}, extractOptions{format: "xml"}, &out, &errOut)
	assert.ErrorIs(t, err, render.ErrUnknownFormat)
	assert.Empty(t, out.String())
}

func TestExecuteGraph(t *testing.T) {
	t.Parallel()

	p := newTestProject(t, map[string]string{"graph.h": `struct Inner { int x; };
struct Outer { struct Inner in; struct Outer *self; };
struct Outer *outer_get(void);
`})
	ctx := context.Background()

	// Test: by-value dependencies come first
	var out bytes.Buffer
	require.NoError(t, executeGraph(ctx, p, "graph.h", "", &out))
	text := out.String()
	inner := strings.Index(text, "Inner")
	outer := strings.Index(text, "Outer")
	require.NotEqual(t, -1, inner)
	require.NotEqual(t, -1, outer)
	assert.Less(t, inner, outer)

	// Test: neighbours of one declaration
	out.Reset()
	require.NoError(t, executeGraph(ctx, p, "graph.h", "Outer", &out))
	assert.Contains(t, out.String(), "depends on: Inner")
	assert.Contains(t, out.String(), "outer_get")

	// Test: unknown names are reported as not found
	err := executeGraph(ctx, p, "graph.h", "Missing", &out)
	assert.ErrorIs(t, err, extract.ErrNotFound)
}

func TestExecuteSnapshotShow(t *testing.T) {
	t.Parallel()

	p := newTestProject(t, map[string]string{"list.h": listHeader})
	ctx := context.Background()
	var out, errOut bytes.Buffer
	require.NoError(t, executeExtract(ctx, p, []string{"list.h"}, extractOptions{save: "list.db", quiet: true}, &out, &errOut))

	store, err := snapshot.Open(filepath.Join(p.root, "list.db"))
	require.NoError(t, err)
	defer store.Close()

	// Test: runs are listed as a table
	out.Reset()
	require.NoError(t, executeSnapshotShow(ctx, store, "", render.Text, &out))
	assert.Contains(t, out.String(), "RUN")
	assert.Contains(t, out.String(), "list.h")

	runs, err := store.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	// Test: the globals of one run, as JSON
	out.Reset()
	require.NoError(t, executeSnapshotShow(ctx, store, runs[0].ID, render.JSON, &out))
	var entries []map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &entries))
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e["name"].(string))
	}
	assert.Contains(t, names, "c.Node")
	assert.Contains(t, names, "c.node_push")

	// Test: unknown run
	assert.Error(t, executeSnapshotShow(ctx, store, "nope", render.Text, &out))
}

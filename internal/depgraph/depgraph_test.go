package depgraph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/cbind/internal/cdecl"
	"github.com/mvp-joe/cbind/internal/extract"
	"github.com/mvp-joe/cbind/internal/frontend"
)

// Test Plan for the dependency graph:
// - Members, typedef targets and signatures become edges, pointers marked as such
// - Order puts by-value dependencies first and tolerates pointer cycles
// - By-value cycles are reported and make Order fail
// - Dependencies and Dependents are transitive

const listSrc = `typedef struct Node Node;
struct Node { Node *next; struct Pair *p; int v; };
struct Pair { Node a; Node b; };
enum Color { RED };
void paint(struct Pair p, enum Color c);
`

func buildSource(t *testing.T, src string) (*extract.Result, *Graph) {
	t.Helper()
	tu, err := frontend.New(frontend.Options{}).ParseSource(context.Background(), "list.h", []byte(src))
	require.NoError(t, err)
	r, err := extract.New(nil).Extract(tu)
	require.NoError(t, err)
	g, err := Build(r)
	require.NoError(t, err)
	return r, g
}

func id(t *testing.T, r *extract.Result, variant, name string) cdecl.ID {
	t.Helper()
	for _, i := range r.Lookup(name) {
		if cdecl.Variant(r.Global(i)) == variant {
			return i
		}
	}
	t.Fatalf("no %s %s", variant, name)
	return 0
}

func TestBuild_Edges(t *testing.T) {
	t.Parallel()

	r, g := buildSource(t, listSrc)
	node := id(t, r, "typedef", "Node")
	nodeStruct := id(t, r, "struct", "Node")
	pair := id(t, r, "struct", "Pair")
	color := id(t, r, "enum", "Color")
	paint := id(t, r, "function", "paint")

	edges, err := g.Edges()
	require.NoError(t, err)
	assert.ElementsMatch(t, []Edge{
		{From: node, To: nodeStruct, Kind: ByValue},
		{From: nodeStruct, To: node, Kind: ByPointer},
		{From: nodeStruct, To: pair, Kind: ByPointer},
		{From: pair, To: node, Kind: ByValue},
		{From: paint, To: pair, Kind: ByValue},
		{From: paint, To: color, Kind: ByValue},
	}, edges)
}

func TestOrder(t *testing.T) {
	t.Parallel()

	r, g := buildSource(t, listSrc)
	order, err := g.Order()
	require.NoError(t, err)
	assert.Len(t, order, 5)

	// Test: every by-value dependency comes first
	pos := make(map[cdecl.ID]int)
	for i, v := range order {
		pos[v] = i
	}
	edges, err := g.Edges()
	require.NoError(t, err)
	for _, e := range edges {
		if e.Kind == ByValue {
			assert.Less(t, pos[e.To], pos[e.From], "%s before %s", r.NameOf(e.To), r.NameOf(e.From))
		}
	}

	cycles, err := g.Cycles()
	require.NoError(t, err)
	assert.Empty(t, cycles)
}

func TestDependenciesAndDependents(t *testing.T) {
	t.Parallel()

	r, g := buildSource(t, listSrc)
	node := id(t, r, "typedef", "Node")
	nodeStruct := id(t, r, "struct", "Node")
	pair := id(t, r, "struct", "Pair")
	color := id(t, r, "enum", "Color")
	paint := id(t, r, "function", "paint")

	deps, err := g.Dependencies(paint)
	require.NoError(t, err)
	assert.ElementsMatch(t, []cdecl.ID{node, nodeStruct, pair, color}, deps)

	users, err := g.Dependents(pair)
	require.NoError(t, err)
	assert.ElementsMatch(t, []cdecl.ID{node, nodeStruct, paint}, users)

	users, err = g.Dependents(paint)
	require.NoError(t, err)
	assert.Empty(t, users)

	// Test: unknown globals
	_, err = g.Dependents(99)
	assert.Error(t, err)
	_, err = g.Dependencies(99)
	assert.Error(t, err)
}

func TestCycles_ByValue(t *testing.T) {
	t.Parallel()

	r := &extract.Result{
		Globals: []cdecl.Global{
			&cdecl.Composite{Name: cdecl.Name{Text: "A", ID: 1}},
			&cdecl.Composite{Name: cdecl.Name{Text: "B", ID: 2}},
			&cdecl.Composite{Name: cdecl.Name{Text: "C", ID: 3}},
		},
		TopLevel: []cdecl.ID{1, 2, 3},
		MembersOf: map[cdecl.ID]cdecl.Members{
			1: {Fields: []cdecl.Member{cdecl.Field{Name: "b", Type: cdecl.CompositeRef{ID: 2}}}},
			2: {Fields: []cdecl.Member{cdecl.Field{Name: "a", Type: cdecl.Array{Elem: cdecl.CompositeRef{ID: 1}, Len: 2}}}},
			3: {Fields: []cdecl.Member{cdecl.Field{Name: "self", Type: cdecl.Ptr{Elem: cdecl.CompositeRef{ID: 3}}}}},
		},
	}
	g, err := Build(r)
	require.NoError(t, err)

	cycles, err := g.Cycles()
	require.NoError(t, err)
	assert.Equal(t, [][]cdecl.ID{{1, 2}}, cycles)

	_, err = g.Order()
	assert.ErrorIs(t, err, ErrValueCycle)
	assert.Contains(t, err.Error(), "A, B")
}

func TestCollect_FunctionPointers(t *testing.T) {
	t.Parallel()

	got := map[cdecl.ID]EdgeKind{}
	collect(cdecl.FuncProto{
		Ret: cdecl.FuncPtr{Ret: cdecl.CompositeRef{ID: 1}, Args: []cdecl.Type{cdecl.EnumRef{ID: 2}}},
		Args: []cdecl.Type{
			cdecl.Named{Name: cdecl.Name{Text: "t", ID: 3}},
			cdecl.Named{Name: cdecl.Name{Text: "ext.T"}, External: true},
		},
	}, ByValue, func(id cdecl.ID, k EdgeKind) { got[id] = k })

	assert.Equal(t, map[cdecl.ID]EdgeKind{1: ByPointer, 2: ByPointer, 3: ByValue}, got)
}

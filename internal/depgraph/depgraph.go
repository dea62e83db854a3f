// Package depgraph builds the reference graph between extracted globals.
//
// An edge X -> Y means some type of X mentions Y. Edges are by value when X
// needs Y complete (a member, array element or typedef target) and by
// pointer when Y is reached only through a pointer or a function pointer.
// Only by-value edges constrain declaration order; pointer cycles are normal
// C (linked lists, mutually referencing structs).
package depgraph

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dominikbraun/graph"

	"github.com/mvp-joe/cbind/internal/cdecl"
	"github.com/mvp-joe/cbind/internal/extract"
)

// ErrValueCycle is returned by Order when globals contain each other by value.
var ErrValueCycle = errors.New("by-value reference cycle")

// EdgeKind tells how one global refers to another.
type EdgeKind string

const (
	ByValue   EdgeKind = "value"
	ByPointer EdgeKind = "pointer"
)

const kindAttribute = "kind"

// Edge is one reference.
type Edge struct {
	From cdecl.ID `json:"from" yaml:"from"`
	To   cdecl.ID `json:"to" yaml:"to"`
	Kind EdgeKind `json:"kind" yaml:"kind"`
}

// Graph is the reference graph of one result.
type Graph struct {
	result *extract.Result

	// refs holds every reference, X -> Y.
	refs graph.Graph[cdecl.ID, cdecl.ID]

	// order holds by-value references reversed, Y -> X, so a topological
	// sort puts dependencies first.
	order graph.Graph[cdecl.ID, cdecl.ID]
}

func idHash(id cdecl.ID) cdecl.ID { return id }

// Build creates the graph of every listed global of r and the globals they
// reference.
func Build(r *extract.Result) (*Graph, error) {
	g := &Graph{
		result: r,
		refs:   graph.New(idHash, graph.Directed()),
		order:  graph.New(idHash, graph.Directed()),
	}

	listed := append(append([]cdecl.ID{}, r.TopLevel...), r.Nested...)
	for _, id := range listed {
		if err := g.addVertex(id); err != nil {
			return nil, err
		}
	}

	for _, id := range listed {
		edges := make(map[cdecl.ID]EdgeKind)
		add := func(to cdecl.ID, kind EdgeKind) {
			if r.Global(to) == nil {
				return
			}
			if edges[to] != ByValue {
				edges[to] = kind
			}
		}
		for _, t := range typesOf(r, id) {
			collect(t, ByValue, add)
		}

		targets := make([]cdecl.ID, 0, len(edges))
		for to := range edges {
			targets = append(targets, to)
		}
		slices.Sort(targets)
		for _, to := range targets {
			if err := g.addEdge(id, to, edges[to]); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}

func (g *Graph) addVertex(id cdecl.ID) error {
	for _, gr := range []graph.Graph[cdecl.ID, cdecl.ID]{g.refs, g.order} {
		if err := gr.AddVertex(id); err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
			return fmt.Errorf("failed to add global %d: %w", id, err)
		}
	}
	return nil
}

func (g *Graph) addEdge(from, to cdecl.ID, kind EdgeKind) error {
	if err := g.addVertex(to); err != nil {
		return err
	}
	if err := g.refs.AddEdge(from, to, graph.EdgeAttribute(kindAttribute, string(kind))); err != nil {
		return fmt.Errorf("failed to add edge %d -> %d: %w", from, to, err)
	}
	if kind == ByValue {
		if err := g.order.AddEdge(to, from); err != nil {
			return fmt.Errorf("failed to add edge %d -> %d: %w", to, from, err)
		}
	}
	return nil
}

// typesOf returns the types whose references make up a global's edges.
func typesOf(r *extract.Result, id cdecl.ID) []cdecl.Type {
	switch gl := r.Global(id).(type) {
	case *cdecl.Composite:
		var out []cdecl.Type
		for _, m := range r.MembersOf[id].Fields {
			out = append(out, m.MemberType())
		}
		return out
	case *cdecl.Enum:
		return []cdecl.Type{r.EnumItemsOf[id].Underlying}
	default:
		if t := cdecl.TypeOf(gl); t != nil {
			return []cdecl.Type{t}
		}
	}
	return nil
}

// collect reports every global referenced by t. kind is how t itself is held.
func collect(t cdecl.Type, kind EdgeKind, add func(cdecl.ID, EdgeKind)) {
	switch t := t.(type) {
	case cdecl.CompositeRef:
		add(t.ID, kind)
	case cdecl.EnumRef:
		add(t.ID, kind)
	case cdecl.Named:
		if !t.External {
			add(t.Name.ID, kind)
		}
	case cdecl.Ptr:
		collect(t.Elem, ByPointer, add)
	case cdecl.Array:
		collect(t.Elem, kind, add)
	case cdecl.FuncProto:
		collect(t.Ret, kind, add)
		for _, a := range t.Args {
			collect(a, kind, add)
		}
	case cdecl.FuncPtr:
		collect(t.Ret, ByPointer, add)
		for _, a := range t.Args {
			collect(a, ByPointer, add)
		}
	}
}

// Edges returns every reference ordered by source then target.
func (g *Graph) Edges() ([]Edge, error) {
	edges, err := g.refs.Edges()
	if err != nil {
		return nil, err
	}
	out := make([]Edge, 0, len(edges))
	for _, e := range edges {
		out = append(out, Edge{From: e.Source, To: e.Target, Kind: EdgeKind(e.Properties.Attributes[kindAttribute])})
	}
	slices.SortFunc(out, func(a, b Edge) int {
		if a.From != b.From {
			return int(a.From - b.From)
		}
		return int(a.To - b.To)
	})
	return out, nil
}

// Order returns every global with by-value dependencies first. Ties keep
// ascending ID order, which is registration order.
func (g *Graph) Order() ([]cdecl.ID, error) {
	cycles, err := g.Cycles()
	if err != nil {
		return nil, err
	}
	if len(cycles) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrValueCycle, g.describe(cycles[0]))
	}
	ids, err := graph.StableTopologicalSort(g.order, func(a, b cdecl.ID) bool { return a < b })
	if err != nil {
		return nil, fmt.Errorf("failed to order globals: %w", err)
	}
	return ids, nil
}

// Cycles returns groups of globals that hold each other by value. Valid C
// has none; a non-empty answer means the input was mis-extracted.
func (g *Graph) Cycles() ([][]cdecl.ID, error) {
	sccs, err := graph.StronglyConnectedComponents(g.order)
	if err != nil {
		return nil, err
	}
	var out [][]cdecl.ID
	for _, scc := range sccs {
		if len(scc) == 1 {
			if _, err := g.order.Edge(scc[0], scc[0]); err != nil {
				continue
			}
		}
		c := slices.Clone(scc)
		slices.Sort(c)
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b []cdecl.ID) int { return int(a[0] - b[0]) })
	return out, nil
}

// Dependencies returns every global id transitively refers to.
func (g *Graph) Dependencies(id cdecl.ID) ([]cdecl.ID, error) {
	if _, err := g.refs.Vertex(id); err != nil {
		return nil, fmt.Errorf("global %d: %w", id, err)
	}
	var out []cdecl.ID
	err := graph.BFS(g.refs, id, func(v cdecl.ID) bool {
		if v != id {
			out = append(out, v)
		}
		return false
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(out)
	return out, nil
}

// Dependents returns every global that transitively refers to id.
func (g *Graph) Dependents(id cdecl.ID) ([]cdecl.ID, error) {
	if _, err := g.refs.Vertex(id); err != nil {
		return nil, fmt.Errorf("global %d: %w", id, err)
	}
	preds, err := g.refs.PredecessorMap()
	if err != nil {
		return nil, err
	}
	seen := map[cdecl.ID]bool{id: true}
	queue := []cdecl.ID{id}
	var out []cdecl.ID
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for p := range preds[v] {
			if seen[p] {
				continue
			}
			seen[p] = true
			out = append(out, p)
			queue = append(queue, p)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (g *Graph) describe(ids []cdecl.ID) string {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = g.result.NameOf(id)
	}
	return strings.Join(names, ", ")
}

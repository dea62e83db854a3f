package cdecl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for the declaration model:
// - Walk visits nested types outermost first without following refs
// - Map rewrites refs while keeping structure
// - RefID looks through arrays but not pointers
// - Format renders pointers, arrays and function pointers
// - Names with equal text but different IDs are different keys

func TestWalk_VisitsNestedTypes(t *testing.T) {
	t.Parallel()

	fp := FuncPtr{Ret: Base{Tag: Int}, Args: []Type{Ptr{Elem: CompositeRef{ID: 3}}, Array{Elem: EnumRef{ID: 4}, Len: 2}}}

	var refs []ID
	Walk(fp, func(t Type) bool {
		switch t := t.(type) {
		case CompositeRef:
			refs = append(refs, t.ID)
		case EnumRef:
			refs = append(refs, t.ID)
		}
		return true
	})
	assert.Equal(t, []ID{3, 4}, refs)

	// Test: returning false prunes the subtree
	count := 0
	Walk(fp, func(t Type) bool {
		count++
		_, isPtr := t.(Ptr)
		return !isPtr
	})
	assert.Equal(t, 5, count)
}

func TestMap_RewritesRefs(t *testing.T) {
	t.Parallel()

	in := FuncProto{Ret: Ptr{Elem: CompositeRef{ID: 1}}, Args: []Type{Named{Name: Name{Text: "size_type", ID: 2}}}}
	out := Map(in, func(t Type) Type {
		if ref, ok := t.(CompositeRef); ok {
			return Named{Name: Name{Text: "ext.Node", ID: ref.ID}, External: true}
		}
		return t
	})

	proto, ok := out.(FuncProto)
	require.True(t, ok)
	assert.Equal(t, Ptr{Elem: Named{Name: Name{Text: "ext.Node", ID: 1}, External: true}}, proto.Ret)
	assert.Equal(t, in.Args[0], proto.Args[0])
}

func TestRefID(t *testing.T) {
	t.Parallel()

	id, ok := RefID(Array{Elem: Array{Elem: CompositeRef{ID: 7}, Len: 2}, Len: 3})
	assert.True(t, ok)
	assert.Equal(t, ID(7), id)

	// Test: pointers are not by-value references
	_, ok = RefID(Ptr{Elem: CompositeRef{ID: 7}})
	assert.False(t, ok)

	// Test: external names have no local ID
	_, ok = RefID(Named{Name: Name{Text: "other.T"}, External: true})
	assert.False(t, ok)
}

func TestFormat(t *testing.T) {
	t.Parallel()

	names := map[ID]string{1: "Node"}
	nameOf := func(id ID) string { return names[id] }

	assert.Equal(t, "record Node *", Format(Ptr{Elem: CompositeRef{ID: 1}}, nameOf))
	assert.Equal(t, "char[]", Format(Array{Elem: Base{Tag: CharS}}, nil))
	assert.Equal(t, "void (*)(int, ...)", Format(FuncPtr{Ret: Void{}, Args: []Type{Base{Tag: Int}}, Variadic: true}, nil))
	assert.Equal(t, "enum #4", Format(EnumRef{ID: 4}, nil))
}

func TestName_DistinctByID(t *testing.T) {
	t.Parallel()

	seen := map[Name]bool{}
	seen[Name{ID: 2}] = true
	seen[Name{ID: 3}] = true
	assert.Len(t, seen, 2)
	assert.True(t, Name{ID: 2}.IsAnonymous())
	assert.Equal(t, "<anonymous#2>", Name{ID: 2}.String())
}

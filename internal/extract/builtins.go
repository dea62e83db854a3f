package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/mvp-joe/cbind/internal/cast"
	"github.com/mvp-joe/cbind/internal/cdecl"
)

// Shape identifies a declaration across runs: where it is, what it is
// called and what kind of cursor declares it.
type Shape struct {
	Loc      cdecl.Location  `json:"location" yaml:"location"`
	Spelling string          `json:"spelling" yaml:"spelling"`
	Kind     cast.CursorKind `json:"kind" yaml:"kind"`
}

func (s Shape) String() string {
	return fmt.Sprintf("%s %s at %s", s.Kind, s.Spelling, s.Loc)
}

// ShapeOf returns the shape of a cursor.
func ShapeOf(c *cast.Cursor) Shape {
	return Shape{Loc: location(c.Loc), Spelling: c.Spelling, Kind: c.Kind}
}

// BuiltinEntry binds a declaration shape to a name defined outside this run.
// Type is optional and carried into the Builtin global as is.
type BuiltinEntry struct {
	Shape Shape
	Name  string
	Type  cdecl.Type
}

// BuiltinResolver matches cursors against builtin entries by exact shape.
// A nil resolver matches nothing.
type BuiltinResolver struct {
	entries map[Shape]BuiltinEntry
	order   []Shape
}

// NewBuiltinResolver indexes entries. The first entry for a shape wins.
func NewBuiltinResolver(entries []BuiltinEntry) *BuiltinResolver {
	r := &BuiltinResolver{entries: make(map[Shape]BuiltinEntry, len(entries))}
	for _, e := range entries {
		if _, ok := r.entries[e.Shape]; ok {
			continue
		}
		r.entries[e.Shape] = e
		r.order = append(r.order, e.Shape)
	}
	return r
}

// Resolve returns the entry matching the cursor's shape.
func (r *BuiltinResolver) Resolve(c *cast.Cursor) (BuiltinEntry, bool) {
	if r == nil {
		return BuiltinEntry{}, false
	}
	e, ok := r.entries[ShapeOf(c)]
	return e, ok
}

// Len returns the number of distinct shapes.
func (r *BuiltinResolver) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}

// Entries returns the entries in insertion order.
func (r *BuiltinResolver) Entries() []BuiltinEntry {
	if r == nil {
		return nil
	}
	out := make([]BuiltinEntry, 0, len(r.order))
	for _, s := range r.order {
		out = append(out, r.entries[s])
	}
	return out
}

// Fingerprint is a stable digest of the shape to name and type bindings,
// used to key cached results.
func (r *BuiltinResolver) Fingerprint() string {
	if r.Len() == 0 {
		return ""
	}
	keys := make([]string, 0, len(r.order))
	for _, s := range r.order {
		e := r.entries[s]
		keys = append(keys, fmt.Sprintf("%s\x00%s\x00%s", s, e.Name, cdecl.Format(e.Type, nil)))
	}
	sort.Strings(keys)
	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func location(l cast.Location) cdecl.Location {
	return cdecl.Location{File: l.File, Line: l.Line, Column: l.Column}
}

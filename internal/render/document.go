// Package render turns extraction results into JSON, YAML or text.
package render

import (
	"github.com/mvp-joe/cbind/internal/cdecl"
	"github.com/mvp-joe/cbind/internal/extract"
)

// Document is the serializable form of one result.
type Document struct {
	Source      string          `json:"source,omitempty" yaml:"source,omitempty"`
	Globals     []GlobalDoc     `json:"globals" yaml:"globals"`
	Nested      []GlobalDoc     `json:"nested,omitempty" yaml:"nested,omitempty"`
	Diagnostics []DiagnosticDoc `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
	Warnings    []string        `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// GlobalDoc is one global. Fields that do not apply to the variant are omitted.
type GlobalDoc struct {
	ID         cdecl.ID         `json:"id" yaml:"id"`
	Kind       string           `json:"kind" yaml:"kind"`
	Name       string           `json:"name,omitempty" yaml:"name,omitempty"`
	Location   *cdecl.Location  `json:"location,omitempty" yaml:"location,omitempty"`
	Type       string           `json:"type,omitempty" yaml:"type,omitempty"`
	Const      bool             `json:"const,omitempty" yaml:"const,omitempty"`
	Size       *int64           `json:"size,omitempty" yaml:"size,omitempty"`
	Align      *int64           `json:"align,omitempty" yaml:"align,omitempty"`
	Opaque     bool             `json:"opaque,omitempty" yaml:"opaque,omitempty"`
	Irregular  bool             `json:"irregular,omitempty" yaml:"irregular,omitempty"`
	Members    []MemberDoc      `json:"members,omitempty" yaml:"members,omitempty"`
	Underlying string           `json:"underlying,omitempty" yaml:"underlying,omitempty"`
	Items      []cdecl.EnumItem `json:"items,omitempty" yaml:"items,omitempty"`
}

// MemberDoc is one member of a composite. Offsets are in bits.
type MemberDoc struct {
	Name   string `json:"name,omitempty" yaml:"name,omitempty"`
	Type   string `json:"type" yaml:"type"`
	Offset int64  `json:"offset" yaml:"offset"`
	Width  int    `json:"width,omitempty" yaml:"width,omitempty"`
	Owned  bool   `json:"owned,omitempty" yaml:"owned,omitempty"`
}

// DiagnosticDoc is one skipped declaration.
type DiagnosticDoc struct {
	Location    cdecl.Location `json:"location" yaml:"location"`
	Name        string         `json:"name,omitempty" yaml:"name,omitempty"`
	Kind        string         `json:"kind" yaml:"kind"`
	Message     string         `json:"message" yaml:"message"`
	Unsupported bool           `json:"unsupported,omitempty" yaml:"unsupported,omitempty"`
}

// NewDocument converts a result.
func NewDocument(source string, r *extract.Result) Document {
	doc := Document{Source: source, Globals: []GlobalDoc{}}
	for _, id := range r.TopLevel {
		doc.Globals = append(doc.Globals, newGlobalDoc(r, id))
	}
	for _, id := range r.Nested {
		doc.Nested = append(doc.Nested, newGlobalDoc(r, id))
	}
	for _, d := range r.Diagnostics {
		doc.Diagnostics = append(doc.Diagnostics, DiagnosticDoc{
			Location:    d.Loc,
			Name:        d.Name,
			Kind:        d.Kind.String(),
			Message:     d.Err.Error(),
			Unsupported: d.Unsupported(),
		})
	}
	for _, w := range r.Warnings {
		doc.Warnings = append(doc.Warnings, w.String())
	}
	return doc
}

func newGlobalDoc(r *extract.Result, id cdecl.ID) GlobalDoc {
	g := r.Global(id)
	gd := GlobalDoc{ID: id, Kind: cdecl.Variant(g), Name: g.GlobalName().Text}
	if loc := cdecl.LocationOf(g); loc.File != "" {
		gd.Location = &loc
	}
	if t := cdecl.TypeOf(g); t != nil {
		gd.Type = cdecl.Format(t, r.NameOf)
	}

	switch g := g.(type) {
	case *cdecl.Var:
		gd.Const = g.Const
	case *cdecl.Composite:
		m := r.MembersOf[id]
		gd.Opaque = m.Opaque
		gd.Irregular = m.Irregular
		if !m.Opaque {
			size, align := g.Layout.Size, g.Layout.Align
			gd.Size, gd.Align = &size, &align
		}
		for _, mem := range m.Fields {
			md := MemberDoc{Name: mem.MemberName(), Type: cdecl.Format(mem.MemberType(), r.NameOf)}
			switch f := mem.(type) {
			case cdecl.Field:
				md.Offset = f.Offset
				md.Owned = f.Owned
			case cdecl.Bitfield:
				md.Offset = f.Offset
				md.Width = f.Width
			}
			gd.Members = append(gd.Members, md)
		}
	case *cdecl.Enum:
		items := r.EnumItemsOf[id]
		gd.Items = items.Items
		if items.Underlying != nil {
			gd.Underlying = cdecl.Format(items.Underlying, r.NameOf)
		}
	}
	return gd
}

package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

// ErrUnknownFormat is returned for an output format other than json, yaml or text.
var ErrUnknownFormat = errors.New("unknown output format")

// Format is an output encoding.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
	Text Format = "text"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case JSON, YAML, Text:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q (want json, yaml or text)", ErrUnknownFormat, s)
}

// Options control rendering.
type Options struct {
	Format Format

	// Color enables ANSI colors in text output.
	Color bool
}

// Write renders docs to w. JSON and YAML emit a single document for one
// input and a list otherwise.
func Write(w io.Writer, opts Options, docs ...Document) error {
	if opts.Format == Text || opts.Format == "" {
		return writeText(w, opts.Color, docs)
	}
	var v any = docs
	if len(docs) == 1 {
		v = docs[0]
	}
	return WriteValue(w, opts.Format, v)
}

// WriteValue encodes any value as JSON or YAML.
func WriteValue(w io.Writer, format Format, v any) error {
	switch format {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

type palette struct {
	header, kind, warn, skip *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		header: color.New(color.Bold),
		kind:   color.New(color.FgCyan),
		warn:   color.New(color.FgYellow),
		skip:   color.New(color.FgRed),
	}
	for _, c := range []*color.Color{p.header, p.kind, p.warn, p.skip} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func writeText(w io.Writer, colored bool, docs []Document) error {
	p := newPalette(colored)
	var b strings.Builder
	for i, doc := range docs {
		if i > 0 {
			b.WriteString("\n")
		}
		if doc.Source != "" {
			b.WriteString(p.header.Sprintf("== %s", doc.Source) + "\n")
		}
		for _, g := range doc.Globals {
			writeGlobal(&b, p, g)
		}
		if len(doc.Nested) > 0 {
			b.WriteString(p.header.Sprint("-- nested") + "\n")
			for _, g := range doc.Nested {
				writeGlobal(&b, p, g)
			}
		}
		for _, d := range doc.Diagnostics {
			name := d.Name
			if name == "" {
				name = "<anonymous>"
			}
			fmt.Fprintf(&b, "%s %s: %s %s: %s\n", p.skip.Sprint("skipped"), d.Location, d.Kind, name, d.Message)
		}
		for _, warning := range doc.Warnings {
			fmt.Fprintf(&b, "%s %s\n", p.warn.Sprint("warning"), warning)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeGlobal(b *strings.Builder, p palette, g GlobalDoc) {
	name := g.Name
	if name == "" {
		name = fmt.Sprintf("<anonymous#%d>", g.ID)
	}
	fmt.Fprintf(b, "%s %s", p.kind.Sprint(g.Kind), name)
	switch {
	case g.Kind == "typedef":
		fmt.Fprintf(b, " = %s", g.Type)
	case g.Type != "":
		fmt.Fprintf(b, ": %s", g.Type)
	}
	if g.Const {
		b.WriteString(" const")
	}
	if g.Opaque {
		b.WriteString(" (opaque)")
	} else if g.Size != nil {
		fmt.Fprintf(b, " size=%d align=%d", *g.Size, *g.Align)
	}
	if g.Irregular {
		b.WriteString(" irregular")
	}
	if g.Underlying != "" {
		fmt.Fprintf(b, " : %s", g.Underlying)
	}
	if g.Location != nil {
		fmt.Fprintf(b, " [%s]", g.Location)
	}
	b.WriteString("\n")

	for _, m := range g.Members {
		name := m.Name
		if name == "" {
			name = "_"
		}
		fmt.Fprintf(b, "  %s %s", name, m.Type)
		if m.Width > 0 {
			fmt.Fprintf(b, " : %d", m.Width)
		}
		fmt.Fprintf(b, " @%d\n", m.Offset)
	}
	for _, it := range g.Items {
		fmt.Fprintf(b, "  %s = %d\n", it.Name, it.Value)
	}
}

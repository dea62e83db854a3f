package snapshot

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/mvp-joe/cbind/internal/cast"
	"github.com/mvp-joe/cbind/internal/cdecl"
	"github.com/mvp-joe/cbind/internal/extract"
)

// builtinFile is a hand-written override list:
//
//	[[builtin]]
//	file = "include/foo.h"
//	line = 3
//	column = 16
//	spelling = "Foo"
//	kind = "StructDecl"
//	name = "core.Foo"
//	base = "unsigned long"  # optional, for typedefs of primitive types
type builtinFile struct {
	Builtin []struct {
		File     string `toml:"file"`
		Line     int    `toml:"line"`
		Column   int    `toml:"column"`
		Spelling string `toml:"spelling"`
		Kind     string `toml:"kind"`
		Name     string `toml:"name"`
		Base     string `toml:"base"`
	} `toml:"builtin"`
}

// LoadBuiltinFile reads builtin entries from a TOML file.
func LoadBuiltinFile(path string) ([]extract.BuiltinEntry, error) {
	var doc builtinFile
	meta, err := toml.DecodeFile(path, &doc)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: unknown keys %s", path, strings.Join(keys, ", "))
	}

	entries := make([]extract.BuiltinEntry, 0, len(doc.Builtin))
	for i, b := range doc.Builtin {
		if b.Name == "" || b.Spelling == "" || b.File == "" {
			return nil, fmt.Errorf("%s: builtin %d: file, spelling and name are required", path, i+1)
		}
		kind, err := cast.ParseCursorKind(b.Kind)
		if err != nil {
			return nil, fmt.Errorf("%s: builtin %d: %w", path, i+1, err)
		}
		e := extract.BuiltinEntry{
			Shape: extract.Shape{
				Loc:      cdecl.Location{File: b.File, Line: b.Line, Column: b.Column},
				Spelling: b.Spelling,
				Kind:     kind,
			},
			Name: b.Name,
		}
		if b.Base != "" {
			tag, err := cdecl.ParseBaseTag(b.Base)
			if err != nil {
				return nil, fmt.Errorf("%s: builtin %d: %w", path, i+1, err)
			}
			e.Type = cdecl.Base{Tag: tag}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

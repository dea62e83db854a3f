// Package frontend builds the C AST the extractor consumes, using the
// tree-sitter C grammar behind a small preprocessor. It targets declarations
// found in headers: function bodies are not analyzed.
package frontend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/mvp-joe/cbind/internal/cast"
)

// Options configure how sources are preprocessed.
type Options struct {
	// IncludePaths are searched for <...> includes, and after the including
	// file's directory for "..." includes.
	IncludePaths []string

	// Defines are NAME or NAME=VALUE object macros.
	Defines []string
}

// Parser parses C sources into translation units. It holds no per-parse
// state and is safe for concurrent use.
type Parser struct {
	opts Options
}

// New creates a parser.
func New(opts Options) *Parser {
	return &Parser{opts: opts}
}

// Load reads and preprocesses a file.
func (p *Parser) Load(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return p.LoadSource(filepath.Clean(path), data), nil
}

// LoadSource preprocesses an in-memory buffer. Quoted includes resolve
// relative to the directory of name.
func (p *Parser) LoadSource(name string, src []byte) *Source {
	pp := newPreprocessor(p.opts)
	defer pp.close()
	pp.file(name, src, 0)
	return pp.source(name)
}

// ParseFile loads and parses a file.
func (p *Parser) ParseFile(ctx context.Context, path string) (*cast.TranslationUnit, error) {
	src, err := p.Load(path)
	if err != nil {
		return nil, err
	}
	return p.Parse(ctx, src)
}

// ParseSource loads and parses an in-memory buffer.
func (p *Parser) ParseSource(ctx context.Context, name string, src []byte) (*cast.TranslationUnit, error) {
	return p.Parse(ctx, p.LoadSource(name, src))
}

// complexRe matches the complex keywords tree-sitter does not know.
var complexRe = regexp.MustCompile(`\b(_Complex|__complex__)\b`)

// Parse builds the translation unit for a preprocessed source. Parse errors
// are reported as diagnostics, not as an error.
func (p *Parser) Parse(ctx context.Context, src *Source) (*cast.TranslationUnit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Same-length rewrite keeps every byte offset valid for the original text.
	text := complexRe.ReplaceAllFunc(slices.Clone(src.Text), func(kw []byte) []byte {
		out := []byte("volatile")
		for len(out) < len(kw) {
			out = append(out, ' ')
		}
		return out
	})

	parser := sitter.NewParser()
	defer parser.Close()

	parser.SetLanguage(cLanguage())

	tree := parser.Parse(text, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse %s", src.Name)
	}
	defer tree.Close()

	b := newBuilder(src)
	defer b.close()

	root := tree.RootNode()
	b.syntaxErrors(root)
	for i := 0; i < int(root.NamedChildCount()); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b.topLevel(root.NamedChild(uint(i)), b.tu)
	}

	return &cast.TranslationUnit{
		Cursor:      b.tu,
		Diagnostics: append(slices.Clone(src.Diagnostics), b.diags...),
		Files:       slices.Clone(src.Files),
	}, nil
}

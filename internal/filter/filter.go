// Package filter selects extracted globals by name and source file with
// include and exclude glob patterns.
package filter

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"github.com/mvp-joe/cbind/internal/cdecl"
	"github.com/mvp-joe/cbind/internal/extract"
)

// compiledPattern holds both the pattern string and compiled glob.
type compiledPattern struct {
	pattern string
	glob    glob.Glob
}

// Filter matches globals against include and exclude patterns. A pattern
// containing '/' or ending in ".h" or ".c" matches the declaration's file;
// any other pattern matches its spelling. An empty include list keeps
// everything; excludes win over includes.
type Filter struct {
	include []compiledPattern
	exclude []compiledPattern
}

// New compiles the patterns.
func New(include, exclude []string) (*Filter, error) {
	f := &Filter{}
	var err error
	if f.include, err = compile(include); err != nil {
		return nil, err
	}
	if f.exclude, err = compile(exclude); err != nil {
		return nil, err
	}
	return f, nil
}

func compile(patterns []string) ([]compiledPattern, error) {
	var out []compiledPattern
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		out = append(out, compiledPattern{pattern: pattern, glob: g})
	}
	return out, nil
}

// Empty reports whether the filter keeps everything.
func (f *Filter) Empty() bool {
	return f == nil || (len(f.include) == 0 && len(f.exclude) == 0)
}

// Match reports whether a global with the given spelling declared in file
// passes the filter.
func (f *Filter) Match(name, file string) bool {
	if f.Empty() {
		return true
	}
	file = filepath.ToSlash(file)
	if matchesAny(f.exclude, name, file) {
		return false
	}
	return len(f.include) == 0 || matchesAny(f.include, name, file)
}

func matchesAny(patterns []compiledPattern, name, file string) bool {
	for _, cp := range patterns {
		if isPathPattern(cp.pattern) {
			if file == "" {
				continue
			}
			if cp.glob.Match(file) {
				return true
			}
			// "**/x.h" should also match a bare "x.h".
			if !strings.Contains(file, "/") && strings.HasPrefix(cp.pattern, "**/") {
				if g, err := glob.Compile(strings.TrimPrefix(cp.pattern, "**/"), '/'); err == nil && g.Match(file) {
					return true
				}
			}
			continue
		}
		if name != "" && cp.glob.Match(name) {
			return true
		}
	}
	return false
}

func isPathPattern(p string) bool {
	return strings.Contains(p, "/") || strings.HasSuffix(p, ".h") || strings.HasSuffix(p, ".c")
}

// Apply returns the result with only the matching top-level globals listed.
// Anonymous globals only match file patterns. Builtins match on either
// their spelling or their bound name. Nested globals and the side tables are
// kept so listed globals stay complete.
func (f *Filter) Apply(r *extract.Result) *extract.Result {
	if f.Empty() {
		return r
	}
	return r.Select(func(id cdecl.ID, g cdecl.Global) bool {
		file := r.Shape(id).Loc.File
		if b, ok := g.(*cdecl.Builtin); ok {
			return f.Match(r.Shape(id).Spelling, file) || f.Match(b.Name.Text, file)
		}
		return f.Match(g.GlobalName().Text, file)
	})
}

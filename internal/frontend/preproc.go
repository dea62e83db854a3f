package frontend

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mvp-joe/cbind/internal/cast"
)

// maxIncludeDepth bounds nested includes.
const maxIncludeDepth = 64

// Macro is an object-like or function-like #define.
type Macro struct {
	Name     string
	Body     string
	Function bool
	Loc      cast.Location
}

type lineOrigin struct {
	file string
	line int
}

// Source is a translation unit after the preprocessor subset has run: the
// main file with includes spliced in, directive and inactive lines blanked.
// Every output line maps back to its file and line.
type Source struct {
	Name        string
	Text        []byte
	Files       []string
	Macros      map[string]*Macro
	Diagnostics []cast.Diagnostic

	lines []lineOrigin
}

// Location maps a 0-based row and column of Text to a source location.
func (s *Source) Location(row, col uint) cast.Location {
	if int(row) >= len(s.lines) {
		return cast.Location{File: s.Name, Line: int(row) + 1, Column: int(col) + 1}
	}
	o := s.lines[row]
	return cast.Location{File: o.file, Line: o.line, Column: int(col) + 1}
}

// Digest identifies the preprocessed text together with the macro set.
func (s *Source) Digest() string {
	h := sha256.New()
	h.Write(s.Text)
	for _, f := range s.Files {
		h.Write([]byte{0})
		h.Write([]byte(f))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// knownSystemHeaders are skipped without a diagnostic when they are not on
// the include path; their common typedef names are built into the front end.
var knownSystemHeaders = map[string]bool{
	"stdint.h": true, "stddef.h": true, "stdbool.h": true, "stdarg.h": true,
	"inttypes.h": true, "limits.h": true, "float.h": true, "stdio.h": true,
	"stdlib.h": true, "string.h": true, "wchar.h": true, "uchar.h": true,
	"sys/types.h": true, "stdalign.h": true, "stdnoreturn.h": true, "complex.h": true,
}

var (
	directiveRe = regexp.MustCompile(`^\s*#\s*([A-Za-z_]\w*)?\s*(.*)$`)
	macroNameRe = regexp.MustCompile(`^([A-Za-z_]\w*)(\()?`)
	definedRe   = regexp.MustCompile(`\bdefined\s*(\(\s*([A-Za-z_]\w*)\s*\)|([A-Za-z_]\w*))`)
	identRe     = regexp.MustCompile(`[A-Za-z_]\w*`)
)

type condFrame struct {
	active  bool
	taken   bool
	outer   bool
	seenEls bool
}

type preprocessor struct {
	opts   Options
	eval   *exprEval
	macros map[string]*Macro
	out    bytes.Buffer
	lines  []lineOrigin
	seen   map[string]bool
	files  []string
	diags  []cast.Diagnostic
}

func newPreprocessor(opts Options) *preprocessor {
	pp := &preprocessor{
		opts:   opts,
		macros: map[string]*Macro{},
		seen:   map[string]bool{},
	}
	for name, body := range predefinedMacros {
		pp.macros[name] = &Macro{Name: name, Body: body}
	}
	for _, d := range opts.Defines {
		name, body, ok := strings.Cut(d, "=")
		if !ok {
			body = "1"
		}
		pp.macros[name] = &Macro{Name: name, Body: body}
	}
	pp.eval = newExprEval()
	return pp
}

var predefinedMacros = map[string]string{
	"__STDC__":         "1",
	"__STDC_VERSION__": "201710L",
	"__x86_64__":       "1",
	"__LP64__":         "1",
	"__CBIND__":        "1",
}

func (pp *preprocessor) close() {
	pp.eval.close()
}

func (pp *preprocessor) diag(sev cast.Severity, file string, line int, format string, args ...any) {
	pp.diags = append(pp.diags, cast.Diagnostic{
		Severity: sev,
		Loc:      cast.Location{File: file, Line: line, Column: 1},
		Message:  fmt.Sprintf(format, args...),
	})
}

func (pp *preprocessor) source(name string) *Source {
	return &Source{
		Name:        name,
		Text:        pp.out.Bytes(),
		Files:       pp.files,
		Macros:      pp.macros,
		Diagnostics: pp.diags,
		lines:       pp.lines,
	}
}

func (pp *preprocessor) emit(file string, line int, text string) {
	pp.out.WriteString(text)
	pp.out.WriteByte('\n')
	pp.lines = append(pp.lines, lineOrigin{file: file, line: line})
}

// file preprocesses one file and splices its active lines into the output.
func (pp *preprocessor) file(path string, src []byte, depth int) {
	if depth > maxIncludeDepth {
		pp.diag(cast.SeverityFatal, path, 1, "#include nested too deeply")
		return
	}
	pp.seen[path] = true
	pp.files = append(pp.files, path)

	physical := strings.Split(strings.ReplaceAll(string(src), "\r\n", "\n"), "\n")
	if n := len(physical); n > 0 && physical[n-1] == "" {
		physical = physical[:n-1]
	}

	var stack []condFrame
	active := func() bool {
		return len(stack) == 0 || stack[len(stack)-1].active
	}

	for i := 0; i < len(physical); i++ {
		lineNo := i + 1
		text := physical[i]

		if !strings.HasPrefix(strings.TrimLeft(text, " \t"), "#") {
			if active() {
				pp.emit(path, lineNo, pp.blankEmptyMacros(text))
			} else {
				pp.emit(path, lineNo, "")
			}
			continue
		}

		// Join continuation lines of the directive, keeping one output line per physical line.
		logical := text
		span := 1
		for strings.HasSuffix(logical, "\\") && i+1 < len(physical) {
			i++
			span++
			logical = strings.TrimSuffix(logical, "\\") + " " + physical[i]
		}
		for k := 0; k < span; k++ {
			pp.emit(path, lineNo+k, "")
		}

		m := directiveRe.FindStringSubmatch(stripComments(logical))
		if m == nil {
			continue
		}
		name, rest := m[1], strings.TrimSpace(m[2])

		switch name {
		case "ifdef", "ifndef":
			outer := active()
			_, defined := pp.macros[firstIdent(rest)]
			cond := defined == (name == "ifdef")
			stack = append(stack, condFrame{active: outer && cond, taken: cond, outer: outer})
		case "if":
			outer := active()
			cond := outer && pp.condition(path, lineNo, rest)
			stack = append(stack, condFrame{active: cond, taken: cond, outer: outer})
		case "elif":
			if len(stack) == 0 {
				pp.diag(cast.SeverityError, path, lineNo, "#elif without #if")
				continue
			}
			top := &stack[len(stack)-1]
			if top.taken || !top.outer {
				top.active = false
				continue
			}
			cond := pp.condition(path, lineNo, rest)
			top.active, top.taken = cond, cond
		case "else":
			if len(stack) == 0 {
				pp.diag(cast.SeverityError, path, lineNo, "#else without #if")
				continue
			}
			top := &stack[len(stack)-1]
			if top.seenEls {
				pp.diag(cast.SeverityError, path, lineNo, "#else after #else")
			}
			top.seenEls = true
			top.active = top.outer && !top.taken
			top.taken = true
		case "endif":
			if len(stack) == 0 {
				pp.diag(cast.SeverityError, path, lineNo, "#endif without #if")
				continue
			}
			stack = stack[:len(stack)-1]
		default:
			if !active() {
				continue
			}
			pp.directive(path, lineNo, name, rest, depth)
		}
	}

	if len(stack) > 0 {
		pp.diag(cast.SeverityError, path, len(physical), "unterminated conditional directive")
	}
}

func (pp *preprocessor) directive(path string, lineNo int, name, rest string, depth int) {
	switch name {
	case "include":
		pp.include(path, lineNo, rest, depth)
	case "define":
		m := macroNameRe.FindStringSubmatch(rest)
		if m == nil {
			pp.diag(cast.SeverityError, path, lineNo, "macro name missing")
			return
		}
		body := strings.TrimSpace(rest[len(m[0]):])
		pp.macros[m[1]] = &Macro{
			Name:     m[1],
			Body:     body,
			Function: m[2] != "",
			Loc:      cast.Location{File: path, Line: lineNo, Column: 1},
		}
	case "undef":
		delete(pp.macros, firstIdent(rest))
	case "error":
		pp.diag(cast.SeverityError, path, lineNo, "#error %s", rest)
	case "warning":
		pp.diag(cast.SeverityWarning, path, lineNo, "#warning %s", rest)
	case "", "pragma", "line", "ident":
	default:
		pp.diag(cast.SeverityWarning, path, lineNo, "ignoring unknown directive #%s", name)
	}
}

func (pp *preprocessor) include(from string, lineNo int, rest string, depth int) {
	rest = strings.TrimSpace(rest)
	if len(rest) < 2 {
		pp.diag(cast.SeverityError, from, lineNo, "#include expects \"FILENAME\" or <FILENAME>")
		return
	}
	quoted := rest[0] == '"'
	closer := byte('>')
	if quoted {
		closer = '"'
	} else if rest[0] != '<' {
		pp.diag(cast.SeverityError, from, lineNo, "#include expects \"FILENAME\" or <FILENAME>")
		return
	}
	end := strings.IndexByte(rest[1:], closer)
	if end < 0 {
		pp.diag(cast.SeverityError, from, lineNo, "missing terminating %c character", closer)
		return
	}
	name := rest[1 : end+1]

	var dirs []string
	if quoted {
		dirs = append(dirs, filepath.Dir(from))
	}
	dirs = append(dirs, pp.opts.IncludePaths...)

	for _, dir := range dirs {
		candidate := filepath.Clean(filepath.Join(dir, name))
		data, err := os.ReadFile(candidate)
		if err != nil {
			continue
		}
		if pp.seen[candidate] {
			return
		}
		pp.file(candidate, data, depth+1)
		return
	}

	switch {
	case quoted:
		pp.diag(cast.SeverityError, from, lineNo, "'%s' file not found", name)
	case knownSystemHeaders[name]:
	default:
		pp.diag(cast.SeverityWarning, from, lineNo, "'%s' file not found, skipped", name)
	}
}

// condition evaluates an #if or #elif expression. Identifiers that are not
// macros evaluate to 0.
func (pp *preprocessor) condition(file string, line int, expr string) bool {
	expr = definedRe.ReplaceAllStringFunc(expr, func(s string) string {
		m := definedRe.FindStringSubmatch(s)
		name := m[2]
		if name == "" {
			name = m[3]
		}
		if _, ok := pp.macros[name]; ok {
			return "1"
		}
		return "0"
	})
	v, err := pp.eval.evalText(expr, pp.macroValue, nil)
	if err != nil {
		pp.diag(cast.SeverityError, file, line, "invalid preprocessor expression %q: %v", expr, err)
		return false
	}
	return v != 0
}

// macroValue resolves an identifier inside #if.
func (pp *preprocessor) macroValue(name string, depth int) (int64, bool) {
	m, ok := pp.macros[name]
	if !ok || m.Function {
		return 0, true
	}
	if depth > maxIncludeDepth || strings.TrimSpace(m.Body) == "" {
		return 0, true
	}
	v, err := pp.eval.evalTextDepth(m.Body, pp.macroValue, nil, depth+1)
	if err != nil {
		return 0, false
	}
	return v, true
}

// blankEmptyMacros replaces uses of object macros with an empty body by
// spaces, so annotation macros like API or EXPORT do not reach the parser.
// Columns are preserved.
func (pp *preprocessor) blankEmptyMacros(line string) string {
	if !strings.ContainsAny(line, "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz_") {
		return line
	}
	return identRe.ReplaceAllStringFunc(line, func(id string) string {
		if m, ok := pp.macros[id]; ok && !m.Function && strings.TrimSpace(m.Body) == "" {
			return strings.Repeat(" ", len(id))
		}
		return id
	})
}

func firstIdent(s string) string {
	return identRe.FindString(s)
}

// stripComments drops // and /* */ comments from a directive line.
func stripComments(s string) string {
	var b strings.Builder
	inStr := byte(0)
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case inStr != 0:
			b.WriteByte(ch)
			if ch == '\\' && i+1 < len(s) {
				i++
				b.WriteByte(s[i])
			} else if ch == inStr {
				inStr = 0
			}
		case ch == '"' || ch == '\'':
			inStr = ch
			b.WriteByte(ch)
		case ch == '/' && i+1 < len(s) && s[i+1] == '/':
			return b.String()
		case ch == '/' && i+1 < len(s) && s[i+1] == '*':
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				return b.String()
			}
			b.WriteByte(' ')
			i += end + 3
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

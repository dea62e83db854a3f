package frontend

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

var (
	// ErrNotConstant is returned for expressions that are not integer constants.
	ErrNotConstant = errors.New("expression is not an integer constant")

	errDivideByZero = errors.New("division by zero")
)

// identFunc resolves an identifier in a constant expression.
type identFunc func(name string, depth int) (int64, bool)

// sizeofFunc returns the size of the type spelled by text.
type sizeofFunc func(text string) (int64, bool)

type evalEnv struct {
	ident  identFunc
	sizeOf sizeofFunc
	depth  int
}

// exprEval parses stand-alone expression text (macro bodies, #if lines)
// with its own tree-sitter parser.
type exprEval struct {
	parser *sitter.Parser
}

func newExprEval() *exprEval {
	parser := sitter.NewParser()
	parser.SetLanguage(cLanguage())
	return &exprEval{parser: parser}
}

func (e *exprEval) close() {
	e.parser.Close()
}

func (e *exprEval) evalText(text string, ident identFunc, sizeOf sizeofFunc) (int64, error) {
	return e.evalTextDepth(text, ident, sizeOf, 0)
}

func (e *exprEval) evalTextDepth(text string, ident identFunc, sizeOf sizeofFunc, depth int) (int64, error) {
	if strings.TrimSpace(text) == "" {
		return 0, fmt.Errorf("%w: empty expression", ErrNotConstant)
	}
	src := []byte("int __cbind_expr = (" + text + "\n);")
	tree := e.parser.Parse(src, nil)
	if tree == nil {
		return 0, fmt.Errorf("%w: %q", ErrNotConstant, text)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return 0, fmt.Errorf("%w: syntax error in %q", ErrNotConstant, text)
	}

	var value *sitter.Node
	walkTree(root, func(n *sitter.Node) bool {
		if value != nil {
			return false
		}
		if n.Kind() == "init_declarator" {
			value = n.ChildByFieldName("value")
			return false
		}
		return true
	})
	if value == nil {
		return 0, fmt.Errorf("%w: %q", ErrNotConstant, text)
	}
	return evalNode(value, src, evalEnv{ident: ident, sizeOf: sizeOf, depth: depth})
}

// evalNode folds an integer constant expression.
func evalNode(n *sitter.Node, src []byte, env evalEnv) (int64, error) {
	switch n.Kind() {
	case "number_literal":
		return parseIntLiteral(nodeText(n, src))
	case "char_literal":
		return parseCharLiteral(nodeText(n, src))
	case "true":
		return 1, nil
	case "false", "null":
		return 0, nil
	case "identifier":
		name := nodeText(n, src)
		if env.ident != nil {
			if v, ok := env.ident(name, env.depth); ok {
				return v, nil
			}
		}
		return 0, fmt.Errorf("%w: %s", ErrNotConstant, name)
	case "parenthesized_expression":
		inner := firstNamedChild(n)
		if inner == nil {
			return 0, ErrNotConstant
		}
		return evalNode(inner, src, env)
	case "cast_expression":
		return evalNode(n.ChildByFieldName("value"), src, env)
	case "unary_expression":
		arg, err := evalNode(n.ChildByFieldName("argument"), src, env)
		if err != nil {
			return 0, err
		}
		switch n.ChildByFieldName("operator").Kind() {
		case "-":
			return -arg, nil
		case "+":
			return arg, nil
		case "~":
			return ^arg, nil
		case "!":
			return boolInt(arg == 0), nil
		}
	case "binary_expression":
		return evalBinary(n, src, env)
	case "conditional_expression":
		cond, err := evalNode(n.ChildByFieldName("condition"), src, env)
		if err != nil {
			return 0, err
		}
		if cond != 0 {
			return evalNode(n.ChildByFieldName("consequence"), src, env)
		}
		return evalNode(n.ChildByFieldName("alternative"), src, env)
	case "sizeof_expression":
		target := n.ChildByFieldName("type")
		if target == nil {
			target = n.ChildByFieldName("value")
		}
		if target != nil && env.sizeOf != nil {
			text := strings.TrimSpace(nodeText(target, src))
			text = strings.TrimSuffix(strings.TrimPrefix(text, "("), ")")
			if size, ok := env.sizeOf(strings.TrimSpace(text)); ok {
				return size, nil
			}
		}
		return 0, fmt.Errorf("%w: cannot size %q", ErrNotConstant, nodeText(n, src))
	}
	return 0, fmt.Errorf("%w: %s", ErrNotConstant, nodeText(n, src))
}

func evalBinary(n *sitter.Node, src []byte, env evalEnv) (int64, error) {
	op := n.ChildByFieldName("operator").Kind()
	l, err := evalNode(n.ChildByFieldName("left"), src, env)
	if err != nil {
		return 0, err
	}
	// Short-circuit before evaluating the right side.
	switch {
	case op == "&&" && l == 0:
		return 0, nil
	case op == "||" && l != 0:
		return 1, nil
	}
	r, err := evalNode(n.ChildByFieldName("right"), src, env)
	if err != nil {
		return 0, err
	}
	switch op {
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "/":
		if r == 0 {
			return 0, errDivideByZero
		}
		return l / r, nil
	case "%":
		if r == 0 {
			return 0, errDivideByZero
		}
		return l % r, nil
	case "<<":
		return l << (uint64(r) & 63), nil
	case ">>":
		return l >> (uint64(r) & 63), nil
	case "&":
		return l & r, nil
	case "|":
		return l | r, nil
	case "^":
		return l ^ r, nil
	case "<":
		return boolInt(l < r), nil
	case ">":
		return boolInt(l > r), nil
	case "<=":
		return boolInt(l <= r), nil
	case ">=":
		return boolInt(l >= r), nil
	case "==":
		return boolInt(l == r), nil
	case "!=":
		return boolInt(l != r), nil
	case "&&", "||":
		return boolInt(r != 0), nil
	}
	return 0, fmt.Errorf("%w: operator %s", ErrNotConstant, op)
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// parseIntLiteral parses a C integer literal with optional u/l suffixes.
// The grammar folds a leading sign into the literal token, so "-1" and
// "+0x10" arrive here whole. Values above the int64 range keep their two's
// complement bit pattern.
func parseIntLiteral(text string) (int64, error) {
	s := strings.ReplaceAll(strings.TrimSpace(text), "'", "")
	neg := false
	for len(s) > 0 && (s[0] == '-' || s[0] == '+') {
		if s[0] == '-' {
			neg = !neg
		}
		s = strings.TrimSpace(s[1:])
	}
	v, err := parseUnsignedLiteral(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrNotConstant, text)
	}
	if neg {
		return -v, nil
	}
	return v, nil
}

func parseUnsignedLiteral(s string) (int64, error) {
	s = strings.TrimRight(s, "uUlLzZ")
	if len(s) > 1 && s[0] == '0' && s[1] >= '0' && s[1] <= '9' {
		s = "0o" + s[1:]
	}
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, err
	}
	return int64(v), nil
}

var simpleEscapes = map[byte]int64{
	'n': '\n', 't': '\t', 'r': '\r', '0': 0, 'a': '\a', 'b': '\b',
	'f': '\f', 'v': '\v', '\\': '\\', '\'': '\'', '"': '"', '?': '?',
}

// parseCharLiteral returns the value of a single-character constant.
func parseCharLiteral(text string) (int64, error) {
	start := strings.IndexByte(text, '\'')
	end := strings.LastIndexByte(text, '\'')
	if start < 0 || end <= start+1 {
		return 0, fmt.Errorf("%w: %s", ErrNotConstant, text)
	}
	body := text[start+1 : end]
	if body[0] != '\\' {
		r := []rune(body)
		return int64(r[0]), nil
	}
	if len(body) < 2 {
		return 0, fmt.Errorf("%w: %s", ErrNotConstant, text)
	}
	esc := body[1:]
	switch {
	case esc[0] == 'x':
		v, err := strconv.ParseUint(esc[1:], 16, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s", ErrNotConstant, text)
		}
		return int64(v), nil
	case esc[0] >= '0' && esc[0] <= '7':
		v, err := strconv.ParseUint(esc, 8, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s", ErrNotConstant, text)
		}
		return int64(v), nil
	}
	if v, ok := simpleEscapes[esc[0]]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrNotConstant, text)
}

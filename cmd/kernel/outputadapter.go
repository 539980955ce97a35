package main

import (
	"strings"

	"github.com/go-python/gpython/ast"
	"github.com/go-python/gpython/parser"
)

// rewriteTrailingExpr implements the "if the last top-level statement is
// an expression, capture its value" rule from . gpython's RunString
// always executes in exec mode, which discards a bare expression's
// value, so this rewrites the source text to assign that value to
// __cell_result__ before execution; the caller reads it back out of
// globals afterward and clears it.
//
// The rewrite only recognizes a trailing expression that occupies its
// own final source line (the overwhelmingly common case: `z` or
// `df.head` alone on the last line of a cell) — a multi-line trailing
// expression is executed normally without its value being captured.
func rewriteTrailingExpr(code string) (rewritten string, captured bool) {
	tree, err := parser.ParseString(code, "exec")
	if err != nil {
		return code, false
	}
	module, ok := tree.(*ast.Module)
	if !ok || len(module.Body) == 0 {
		return code, false
	}
	if _, ok := module.Body[len(module.Body)-1].(*ast.ExprStatement); !ok {
		return code, false
	}

	lines   := strings.Split(code, "\n")
	lastIdx := len(lines) - 1
	for     lastIdx >= 0 && strings.TrimSpace(lines[lastIdx]) == "" {
		lastIdx--
	}
	if lastIdx < 0 {
		return code, false
	}
	candidate := lines[lastIdx]

	if _, err := parser.ParseString(candidate, "eval"); err != nil {
		return code, false
	}

	prefix    := strings.Join(lines[:lastIdx], "\n")
	rewritten = prefix + "\n__cell_result__ = (" + candidate + ")"
	return rewritten, true
}

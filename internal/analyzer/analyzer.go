// Package analyzer implements the Dependency Analyzer component
//: a pure function from cell source text to (reads,
// writes), with no side effects and no panics on malformed input.
//
// Python-like sources are parsed with github.com/go-python/gpython's
// parser/ast packages (the only pack dependency capable of producing a
// real Python AST); the scope-stack walk itself — module vs function vs
// lambda vs comprehension scoping, the read/write classification rules —
// is this package's own logic, since no retrieved repo analyzes Python.
// SQL-like sources are scanned with a small state-machine regex that
// skips placeholders found inside string literals.
package analyzer

import (
	"regexp"

	"github.com/go-python/gpython/ast"
	"github.com/go-python/gpython/parser"
)

// Result is the extracted dependency surface of one cell.
type Result struct {
	Reads  []string
	Writes []string
}

// Analyze dispatches on cellType and returns reads/writes deterministically.
// Unparseable or unsupported input yields an empty Result, never an error:
// the cell is expected to fail at execution time instead.
func Analyze(cellType string, source string) Result {
	switch cellType {
	case   "sql":
		return analyzeSQL(source)
	default:
		return analyzePython(source)
	}
}

// analyzePython walks a Python AST tracking a stack of lexical scopes.
func analyzePython(source string) Result {
	tree, err := parser.ParseString(source, "exec")
	if err != nil {
		return Result{}
	}
	module, ok := tree.(*ast.Module)
	if !ok {
		return Result{}
	}

	w := newWalker()
	w.pushScope(scopeModule)
	w.walkStmts(module.Body)
	w.popScope()

	return Result{
		Reads: setToSlice(w.moduleReads),
		Writes: setToSlice(w.moduleWrites),
	}
}

// sqlPlaceholder matches {name} style placeholders; the scanner below is
// responsible for excluding matches that fall inside a string literal.
var sqlPlaceholder = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// analyzeSQL extracts {name} placeholders as reads, ignoring any that
// appear inside single- or double-quoted string literals. SQL cells never
// produce writes.
func analyzeSQL(source string) Result {
	reads := make(map[string]struct{})

	var inString byte // 0 = not in string, else the quote char
	runes := []rune(source)
	segmentStart := 0

	flushSegment := func(end int) {
		segment := string(runes[segmentStart:end])
		for _, m := range sqlPlaceholder.FindAllStringSubmatch(segment, -1) {
			reads[m[1]] = struct{}{}
		}
	}

	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case inString == 0 && (c == '\'' || c == '"'):
			flushSegment(i)
			inString = byte(c)
			segmentStart = i + 1
		case inString != 0 && byte(c) == inString:
			// Closing quote; the string body is dropped, never scanned.
			inString = 0
			segmentStart = i + 1
		}
	}
	if inString == 0 {
		flushSegment(len(runes))
	}

	return Result{Reads: setToSlice(reads)}
}

func setToSlice(m map[string]struct{}) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

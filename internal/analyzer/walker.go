package analyzer

import "github.com/go-python/gpython/ast"

// scopeKind distinguishes the module scope (whose reads/writes are the
// ones this package reports) from nested function/lambda/comprehension
// scopes, whose own locals must not leak into the module-level Result.
type scopeKind int

const (
	scopeModule scopeKind = iota
	scopeFunction
)

// scope tracks names bound and read within one lexical level, plus any
// names a nested function pulled in via `global`/`nonlocal`.
type scope struct {
	kind scopeKind
	locals map[string]struct{}
	reads map[string]struct{}
	writes map[string]struct{}
	// globals holds names this scope declared `global`: reads/writes of
	// those names are attributed to the module scope, not this one.
	globals map[string]struct{}
}

func newScopeFrame(kind scopeKind) *scope {
	return &scope{
		kind: kind,
		locals: make(map[string]struct{}),
		reads: make(map[string]struct{}),
		writes: make(map[string]struct{}),
		globals: make(map[string]struct{}),
	}
}

// walker performs a single top-down pass over the module body, keeping a
// stack of scope frames. Only the module frame's reads/writes are
// reported: names local to a nested function are never dependencies of
// the cell as a whole, since a caller outside the function cannot
// observe them. A name read inside a function that resolves to a
// module-level binding (the common "closes over a prior cell's
// variable" case) is recorded as a module-level read.
type walker struct {
	stack []*scope
	moduleReads map[string]struct{}
	moduleWrites map[string]struct{}
}

func newWalker() *walker {
	return &walker{
		moduleReads: make(map[string]struct{}),
		moduleWrites: make(map[string]struct{}),
	}
}

func (w *walker) pushScope(kind scopeKind) {
	w.stack = append(w.stack, newScopeFrame(kind))
}

func (w *walker) popScope() {
	s := w.stack[len(w.stack)-1]
	w.stack = w.stack[:len(w.stack)-1]

	if s.kind == scopeModule {
		for n := range s.reads {
			w.moduleReads[n] = struct{}{}
		}
		for n := range s.writes {
			w.moduleWrites[n] = struct{}{}
		}
		return
	}

	// A nested scope's unresolved reads (names neither a local nor a
	// parameter of that scope) are free variables: they resolve to an
	// enclosing scope, ultimately the module, so they propagate upward
	// as reads on whichever frame receives them via resolveRead/resolveWrite.
}

func (w *walker) top() *scope {
	return w.stack[len(w.stack)-1]
}

// resolveWrite records name as bound in the current scope, unless that
// name was declared `global`/`nonlocal`, in which case the write belongs
// to the module scope.
func (w *walker) resolveWrite(name string) {
	s := w.top()
	if _, isGlobal := s.globals[name]; isGlobal {
		w.moduleWrites[name] = struct{}{}
		return
	}
	s.locals[name] = struct{}{}
	s.writes[name] = struct{}{}
}

// resolveRead records a use of name, walking outward through the scope
// stack. A name bound in an enclosing function, lambda or comprehension
// scope is internal and not reported. A name bound in the module scope is
// still reported as a module read, even when this cell bound it earlier.
// If no scope binds it, it is a free variable: attribute the read to the module scope (the cell depends on
// some earlier cell's variable of this name, or on a builtin — analyzer
// output is a superset-safe over-approximation in the builtin case,
// which is resolved at execution time instead,).
func (w *walker) resolveRead(name string) {
	for i := len(w.stack) - 1; i >= 0; i-- {
		s := w.stack[i]
		if _, bound := s.locals[name]; bound {
			if i == 0 {
				w.moduleReads[name] = struct{}{}
			}
			return
		}
	}
	w.moduleReads[name] = struct{}{}
}

func (w *walker) declareGlobal(names []string) {
	s := w.top()
	for _, n := range names {
		s.globals[n] = struct{}{}
	}
}

// walkStmts dispatches over a statement list in source order so that a
// name's first occurrence determines whether a later read inside the
// same scope sees it as already-local.
func (w *walker) walkStmts(stmts []ast.Stmt) {
	for _, s := range stmts {
		w.walkStmt(s)
	}
}

func (w *walker) walkStmt(s ast.Stmt) {
	switch n := s.(type) {
	case *ast.ExprStatement:
		w.walkExpr(n.Value)
	case *ast.Assign:
		w.walkExpr(n.Value)
		for _, t := range n.Targets {
			w.walkTarget(t)
		}
	case *ast.AugAssign:
		// Augmented assignment both reads and writes the target name.
		w.walkTargetRead(n.Target)
		w.walkExpr(n.Value)
		w.walkTarget(n.Target)
	case *ast.AnnAssign:
		if n.Value != nil {
			w.walkExpr(n.Value)
		}
		w.walkTarget(n.Target)
	case *ast.If:
		w.walkExpr(n.Test)
		w.walkStmts(n.Body)
		w.walkStmts(n.Orelse)
	case *ast.While:
		w.walkExpr(n.Test)
		w.walkStmts(n.Body)
		w.walkStmts(n.Orelse)
	case *ast.For:
		w.walkExpr(n.Iter)
		w.walkTarget(n.Target)
		w.walkStmts(n.Body)
		w.walkStmts(n.Orelse)
	case *ast.With:
		for _, item := range n.Items {
			w.walkExpr(item.ContextExpr)
			if item.OptionalVars != nil {
				w.walkTarget(item.OptionalVars)
			}
		}
		w.walkStmts(n.Body)
	case *ast.Try:
		w.walkStmts(n.Body)
		for _, h := range n.Handlers {
			if h.ExprType != nil {
				w.walkExpr(h.ExprType)
			}
			if h.Name != "" {
				w.resolveWrite(string(h.Name))
			}
			w.walkStmts(h.Body)
		}
		w.walkStmts(n.Orelse)
		w.walkStmts(n.Finalbody)
	case *ast.FunctionDef:
		w.resolveWrite(string(n.Name))
		w.walkFunctionBody(n.Args, n.Body)
	case *ast.ClassDef:
		w.resolveWrite(string(n.Name))
		for _, b := range n.Bases {
			w.walkExpr(b)
		}
		w.walkStmts(n.Body)
	case *ast.Return:
		if n.Value != nil {
			w.walkExpr(n.Value)
		}
	case *ast.Delete:
		for _, t := range n.Targets {
			w.walkExpr(t)
		}
	case *ast.Global:
		names := make([]string, len(n.Names))
		for i, id := range n.Names {
			names[i] = string(id)
		}
		w.declareGlobal(names)
	case *ast.Nonlocal:
		names := make([]string, len(n.Names))
		for i, id := range n.Names {
			names[i] = string(id)
		}
		w.declareGlobal(names)
	case *ast.Import:
		for _, alias := range n.Names {
			name := string(alias.AsName)
			if name == "" {
				name = string(alias.Name)
			}
			w.resolveWrite(name)
		}
	case *ast.ImportFrom:
		for _, alias := range n.Names {
			name := string(alias.AsName)
			if name == "" {
				name = string(alias.Name)
			}
			w.resolveWrite(name)
		}
	default:
		// Pass, break, raise-with-no-args, and similar statements carry
		// no identifier references worth tracking.
	}
}

// walkFunctionBody opens a nested function scope, binds its parameters
// as locals (never reads, never module-level), walks the body, then
// pops the scope without promoting its locals to the module frame.
func (w *walker) walkFunctionBody(args *ast.Arguments, body []ast.Stmt) {
	w.pushScope(scopeFunction)
	if args != nil {
		bindArgs(w.top(), args)
	}
	w.walkStmts(body)
	w.popScope()
}

func bindArgs(s *scope, args *ast.Arguments) {
	bind := func(params []*ast.Arg) {
		for _, p := range params {
			if p == nil {
				continue
			}
			s.locals[string(p.Arg)] = struct{}{}
		}
	}
	bind(args.Args)
	bind(args.PosonlyArgs)
	bind(args.KwonlyArgs)
	if args.Vararg != nil {
		s.locals[string(args.Vararg.Arg)] = struct{}{}
	}
	if args.Kwarg != nil {
		s.locals[string(args.Kwarg.Arg)] = struct{}{}
	}
}

// walkTarget records an assignment target as a write, recursing into
// tuple/list unpacking targets.
func (w *walker) walkTarget(t ast.Expr) {
	switch n := t.(type) {
	case *ast.Name:
		w.resolveWrite(string(n.Id))
	case *ast.Tuple:
		for _, e := range n.Elts {
			w.walkTarget(e)
		}
	case *ast.List:
		for _, e := range n.Elts {
			w.walkTarget(e)
		}
	case *ast.Starred:
		w.walkTarget(n.Value)
	case *ast.Attribute:
		// `obj.attr = ...` reads obj, doesn't bind a new name.
		w.walkExpr(n.Value)
	case *ast.Subscript:
		w.walkExpr(n.Value)
		w.walkSlice(n.Slice)
	}
}

// walkTargetRead treats an augmented-assignment target as a read
// (x += 1 reads x before writing it).
func (w *walker) walkTargetRead(t ast.Expr) {
	w.walkExpr(t)
}

func (w *walker) walkExpr(e ast.Expr) {
	if e == nil {
		return
	}
	switch n := e.(type) {
	case *ast.Name:
		w.resolveRead(string(n.Id))
	case *ast.BinOp:
		w.walkExpr(n.Left)
		w.walkExpr(n.Right)
	case *ast.UnaryOp:
		w.walkExpr(n.Operand)
	case *ast.BoolOp:
		for _, v := range n.Values {
			w.walkExpr(v)
		}
	case *ast.Compare:
		w.walkExpr(n.Left)
		for _, c := range n.Comparators {
			w.walkExpr(c)
		}
	case *ast.Call:
		w.walkExpr(n.Func)
		for _, a := range n.Args {
			w.walkExpr(a)
		}
		for _, kw := range n.Keywords {
			w.walkExpr(kw.Value)
		}
	case *ast.Attribute:
		w.walkExpr(n.Value)
	case *ast.Subscript:
		w.walkExpr(n.Value)
		w.walkSlice(n.Slice)
	case *ast.Tuple:
		for _, el := range n.Elts {
			w.walkExpr(el)
		}
	case *ast.List:
		for _, el := range n.Elts {
			w.walkExpr(el)
		}
	case *ast.Set:
		for _, el := range n.Elts {
			w.walkExpr(el)
		}
	case *ast.Dict:
		for _, k := range n.Keys {
			w.walkExpr(k)
		}
		for _, v := range n.Values {
			w.walkExpr(v)
		}
	case *ast.IfExp:
		w.walkExpr(n.Test)
		w.walkExpr(n.Body)
		w.walkExpr(n.Orelse)
	case *ast.Lambda:
		w.pushScope(scopeFunction)
		if n.Args != nil {
			bindArgs(w.top(), n.Args)
		}
		w.walkExpr(n.Body)
		w.popScope()
	case *ast.ListComp:
		w.walkComprehension(n.Generators, []ast.Expr{n.Elt})
	case *ast.SetComp:
		w.walkComprehension(n.Generators, []ast.Expr{n.Elt})
	case *ast.GeneratorExp:
		w.walkComprehension(n.Generators, []ast.Expr{n.Elt})
	case *ast.DictComp:
		w.walkComprehension(n.Generators, []ast.Expr{n.Key, n.Value})
	case *ast.Starred:
		w.walkExpr(n.Value)
	case *ast.Await:
		w.walkExpr(n.Value)
	case *ast.Yield:
		if n.Value != nil {
			w.walkExpr(n.Value)
		}
	case *ast.YieldFrom:
		w.walkExpr(n.Value)
	default:
		// Constants (Num/Str/NameConstant/...) carry no identifiers.
	}
}

func (w *walker) walkSlice(s ast.Slicer) {
	switch n := s.(type) {
	case ast.Expr:
		w.walkExpr(n)
	case *ast.Slice:
		w.walkExpr(n.Lower)
		w.walkExpr(n.Upper)
		w.walkExpr(n.Step)
	}
}

// walkComprehension opens a fresh scope for the comprehension's own
// loop variables (Python 3 scoping), walking generators left to right
// and then every result expression (Elt, or Key+Value for dict comps).
func (w *walker) walkComprehension(generators []*ast.Comprehension, results []ast.Expr) {
	w.pushScope(scopeFunction)
	for _, g := range generators {
		w.walkExpr(g.Iter)
		w.walkTarget(g.Target)
		for _, cond := range g.Ifs {
			w.walkExpr(cond)
		}
	}
	for _, r := range results {
		w.walkExpr(r)
	}
	w.popScope()
}

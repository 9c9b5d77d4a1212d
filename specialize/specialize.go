// Package specialize evaluates a resolved program against a concrete
// alphabet, reducing its higher-order, untyped source down to a first-order
// table of tape-IR transformers (spec.md §4.4). It is the compiler's
// central pass: by the time it returns, no closure, lambda, or partially
// applied builtin survives — everything left is a symbol, a primitive
// effect, or a named call.
package specialize

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tmc-lang/tmc/alphabet"
	verr "github.com/tmc-lang/tmc/error"
	"github.com/tmc-lang/tmc/ast"
	"github.com/tmc-lang/tmc/ir"
	"github.com/tmc-lang/tmc/resolve"
)

// Result is what Specialize produces: a named-transformer table and any
// warnings accumulated along the way (AmbiguousMatch, chiefly).
type Result struct {
	Table    *ir.Table
	Warnings []*verr.SpecError
}

// Options controls the two behaviors spec.md §9 leaves as an open
// question or an explicit warn/error choice.
type Options struct {
	// Strict promotes AmbiguousMatch from a warning to an error, and
	// promotes an incompletely covered match-on-tape-read (no `any` arm,
	// some symbols uncovered) from "synthesize a halt-reject transition"
	// to a hard NonExhaustiveRequired-shaped error. See DESIGN.md for the
	// open-question decision this implements.
	Strict bool
}

var builtinArity = map[string]int{"next": 1, "prev": 1, "get": 1, "set": 2}

// Specialize evaluates prog.Body (and everything it transitively reaches)
// under alphabet, returning the compiled transformer table.
func Specialize(prog *resolve.Program, alpha *alphabet.Alphabet, opts Options) (*Result, error) {
	s := &specializer{
		alphabet: alpha,
		opts:     opts,
		table:    ir.NewTable(""),
		fixMemo:  map[string]string{},
	}

	root := newEnv(nil)
	for name, b := range prog.Bindings {
		root.bind(name, b)
	}

	var discard []ir.Node
	v, err := s.evalExpr(prog.Body, root, &discard)
	if err != nil {
		return nil, err
	}
	name, err := s.compileEntry(v)
	if err != nil {
		return nil, err
	}
	s.table.Entry = name

	return &Result{Table: s.table, Warnings: s.warnings}, nil
}

// compileEntry resolves the program's top-level value to the name of a
// defined transformer. A program whose body is `Y self: (x: ...)` reduces
// directly to a callVal, already named and defined by evalFixpoint. A
// program with no self-reference reduces to a bare closureVal instead
// (there is nothing else the top level could be: every builtin needs a
// tape argument, and the only way one comes into scope is through a lambda
// parameter), which this compiles the same way evalFixpoint compiles its
// own closure, just without a recursive name bound inside it.
func (s *specializer) compileEntry(v value) (string, error) {
	switch tv := v.(type) {
	case callVal:
		return tv.name, nil
	case closureVal:
		node, err := s.compileTransformer(tv)
		if err != nil {
			return "", err
		}
		name := s.freshName("entry")
		s.table.Define(name, node)
		return name, nil
	default:
		return "", &verr.SpecError{Cause: verr.ErrNonReducible, Detail: "program body must be a transformer (a lambda or fixpoint over the tape)"}
	}
}

type specializer struct {
	alphabet *alphabet.Alphabet
	opts     Options
	table    *ir.Table
	warnings []*verr.SpecError
	nextID   int
	fixMemo  map[string]string // structural (node, env) fingerprint -> transformer name
}

func (s *specializer) freshName(hint string) string {
	s.nextID++
	return fmt.Sprintf("%s$%d", hint, s.nextID)
}

// fixpointKey fingerprints n together with the bindings reachable through en,
// so two occurrences of the same Y expression under structurally identical
// captured environments compare equal without forcing any thunk (spec.md
// §4.4: "if the same Y expression is encountered twice with identical
// captured environments, reuse n"). Each frame's bindings are written in
// name order so that map iteration order never affects the fingerprint; an
// unforced thunk is identified by its (expr, defining env) pair, since those
// jointly determine what it evaluates to.
func (s *specializer) fixpointKey(n *ast.Fixpoint, en *env) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%p", n)
	for cur := en; cur != nil; cur = cur.parent {
		names := make([]string, 0, len(cur.vars))
		for name := range cur.vars {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "|%s:%s", name, thunkFingerprint(cur.vars[name]))
		}
		b.WriteByte(';')
	}
	return b.String()
}

func thunkFingerprint(th *thunk) string {
	if th.forced {
		return "v:" + valueFingerprint(th.value)
	}
	return fmt.Sprintf("e:%p/%p", th.expr, th.env)
}

func valueFingerprint(v value) string {
	switch tv := v.(type) {
	case callVal:
		return "call:" + tv.name
	case symVal:
		return "sym:" + tv.u.Key()
	case tapeVal:
		return "tape"
	case tapeReadVal:
		return "read"
	case closureVal:
		return fmt.Sprintf("closure:%p/%p", tv.lam, tv.env)
	case builtinVal:
		return fmt.Sprintf("builtin:%s/%d", tv.name, len(tv.args))
	default:
		return fmt.Sprintf("%T", v)
	}
}

func (s *specializer) warn(cause error, row, col int, detail string) {
	s.warnings = append(s.warnings, &verr.SpecError{Cause: cause, Severity: verr.SeverityWarning, Row: row, Col: col, Detail: detail})
}

// --- values ---

type value interface{ isValue() }

type symVal struct{ u alphabet.Union }

func (symVal) isValue() {}

// tapeVal is the symbolic tape cursor token threaded through primitives.
// Its identity carries no information; sequencing is captured entirely by
// the order effects are appended to the active emit slice.
type tapeVal struct{}

func (tapeVal) isValue() {}

// tapeReadVal is what `get t` evaluates to: a marker that can only be
// consumed directly as a match scrutinee, compiling the match to a Branch.
type tapeReadVal struct{}

func (tapeReadVal) isValue() {}

type closureVal struct {
	lam *ast.Lambda
	env *env
}

func (closureVal) isValue() {}

// callVal is what `f` is bound to inside `Y f: body` (spec.md §4.4): a
// reference to the named, possibly-recursive transformer being compiled.
type callVal struct{ name string }

func (callVal) isValue() {}

type builtinVal struct {
	name string
	args []value
}

func (builtinVal) isValue() {}

// --- environment ---

type thunk struct {
	expr   ast.Expr
	env    *env
	forced bool
	value  value
}

type env struct {
	vars   map[string]*thunk
	parent *env
}

func newEnv(parent *env) *env {
	return &env{vars: map[string]*thunk{}, parent: parent}
}

// bind installs b's thunk, unevaluated. A symbol-alias binding (`name ? 'c'`)
// is just sugar for `name = 'c'`: its thunk wraps the literal itself, so the
// alphabet membership check happens lazily, the same way it does for every
// other symbol literal in the program.
func (e *env) bind(name string, b *ast.Binding) {
	if b.IsSymbolAlias() {
		e.vars[name] = &thunk{expr: b.Symbol, env: e}
		return
	}
	e.vars[name] = &thunk{expr: b.Value, env: e}
}

func (e *env) bindValue(name string, expr ast.Expr, scope *env) {
	e.vars[name] = &thunk{expr: expr, env: scope}
}

func (e *env) lookup(name string) (*thunk, bool) {
	for cur := e; cur != nil; cur = cur.parent {
		if t, ok := cur.vars[name]; ok {
			return t, true
		}
	}
	return nil, false
}

// force evaluates th exactly once; subsequent calls return the memoized
// value without re-running th.expr or re-emitting its effects (spec.md
// §4.4, "argument evaluation is by need ... once forced, values are
// memoized per binding").
func (s *specializer) force(th *thunk, emit *[]ir.Node) (value, error) {
	if th.forced {
		return th.value, nil
	}
	v, err := s.evalExpr(th.expr, th.env, emit)
	if err != nil {
		return nil, err
	}
	th.forced = true
	th.value = v
	return v, nil
}

// --- evaluation ---

func (s *specializer) evalExpr(e ast.Expr, en *env, emit *[]ir.Node) (value, error) {
	switch n := e.(type) {
	case *ast.SymbolLit:
		u, err := s.literalUnion(n)
		if err != nil {
			return nil, err
		}
		return symVal{u: u}, nil

	case *ast.Union:
		var u alphabet.Union
		for i, el := range n.Elems {
			v, err := s.evalExpr(el, en, emit)
			if err != nil {
				return nil, err
			}
			sv, ok := v.(symVal)
			if !ok {
				return nil, &verr.SpecError{Cause: verr.ErrNonReducible, Row: el.At().Row, Col: el.At().Col, Detail: "union member did not reduce to a symbol"}
			}
			if i == 0 {
				u = sv.u
			} else {
				u = u.Or(sv.u)
			}
		}
		return symVal{u: u}, nil

	case *ast.Ident:
		if _, ok := builtinArity[n.Name]; ok {
			return builtinVal{name: n.Name}, nil
		}
		th, ok := en.lookup(n.Name)
		if !ok {
			return nil, &verr.SpecError{Cause: verr.ErrInternal, Row: n.Pos.Row, Col: n.Pos.Col, Detail: fmt.Sprintf("%q escaped name resolution unbound", n.Name)}
		}
		return s.force(th, emit)

	case *ast.Lambda:
		return closureVal{lam: n, env: en}, nil

	case *ast.App:
		fn, err := s.evalExpr(n.Fn, en, emit)
		if err != nil {
			return nil, err
		}
		return s.apply(fn, n.Arg, en, emit, n.Pos)

	case *ast.LetGroup:
		inner := newEnv(en)
		for _, b := range n.Bindings {
			inner.bind(b.Name, b)
		}
		return s.evalExpr(n.Body, inner, emit)

	case *ast.Match:
		return s.evalMatch(n, en, emit)

	case *ast.Fixpoint:
		return s.evalFixpoint(n, en)

	default:
		return nil, &verr.SpecError{Cause: verr.ErrInternal, Detail: fmt.Sprintf("unknown expression node %T", e)}
	}
}

func (s *specializer) literalUnion(lit *ast.SymbolLit) (alphabet.Union, error) {
	if lit.Blank {
		return s.alphabet.Single(alphabet.Blank)
	}
	u, err := s.alphabet.Single(lit.Char)
	if err != nil {
		return alphabet.Union{}, &verr.SpecError{Cause: verr.ErrAlphabetUnknownSymbol, Row: lit.Pos.Row, Col: lit.Pos.Col, Detail: fmt.Sprintf("%q", lit.Char)}
	}
	return u, nil
}

// apply evaluates argExpr (eagerly for builtins, lazily for closures) and
// applies fn to it.
func (s *specializer) apply(fn value, argExpr ast.Expr, callerEnv *env, emit *[]ir.Node, pos ast.Position) (value, error) {
	switch f := fn.(type) {
	case closureVal:
		extended := newEnv(f.env)
		extended.bindValue(f.lam.Param, argExpr, callerEnv)
		return s.evalExpr(f.lam.Body, extended, emit)

	case callVal:
		argVal, err := s.evalExpr(argExpr, callerEnv, emit)
		if err != nil {
			return nil, err
		}
		if _, ok := argVal.(tapeVal); !ok {
			return nil, &verr.SpecError{Cause: verr.ErrNonReducible, Row: pos.Row, Col: pos.Col, Detail: "recursive call argument is not a tape value"}
		}
		*emit = append(*emit, ir.NewCall(f.name))
		return tapeVal{}, nil

	case builtinVal:
		argVal, err := s.evalExpr(argExpr, callerEnv, emit)
		if err != nil {
			return nil, err
		}
		args := append(append([]value{}, f.args...), argVal)
		arity := builtinArity[f.name]
		if len(args) < arity {
			return builtinVal{name: f.name, args: args}, nil
		}
		return s.applyBuiltin(f.name, args, emit, pos)

	default:
		return nil, &verr.SpecError{Cause: verr.ErrNonReducible, Row: pos.Row, Col: pos.Col, Detail: "application of a non-function value"}
	}
}

func (s *specializer) applyBuiltin(name string, args []value, emit *[]ir.Node, pos ast.Position) (value, error) {
	switch name {
	case "next":
		if err := requireTape(args[0], pos); err != nil {
			return nil, err
		}
		*emit = append(*emit, &ir.MoveRight{})
		return tapeVal{}, nil
	case "prev":
		if err := requireTape(args[0], pos); err != nil {
			return nil, err
		}
		*emit = append(*emit, &ir.MoveLeft{})
		return tapeVal{}, nil
	case "get":
		if err := requireTape(args[0], pos); err != nil {
			return nil, err
		}
		return tapeReadVal{}, nil
	case "set":
		sv, ok := args[0].(symVal)
		if !ok {
			return nil, &verr.SpecError{Cause: verr.ErrNonReducible, Row: pos.Row, Col: pos.Col, Detail: "set's first argument must be a symbol or union"}
		}
		if err := requireTape(args[1], pos); err != nil {
			return nil, err
		}
		*emit = append(*emit, ir.NewWrite(sv.u))
		return tapeVal{}, nil
	default:
		return nil, &verr.SpecError{Cause: verr.ErrInternal, Detail: fmt.Sprintf("unknown builtin %q", name)}
	}
}

func requireTape(v value, pos ast.Position) error {
	switch v.(type) {
	case tapeVal:
		return nil
	default:
		return &verr.SpecError{Cause: verr.ErrNonReducible, Row: pos.Row, Col: pos.Col, Detail: "expected a tape value"}
	}
}

// --- match ---

// evalMatch dispatches on what the scrutinee reduced to. A symVal scrutinee
// (a symbol literal or alias, known at specialization time) picks its arm
// statically, the same way an ordinary `if` would constant-fold: only the
// winning arm's body is ever specialized, and the others are never visited.
// A tapeReadVal scrutinee (`get t`) can't be resolved until the machine
// actually runs, so it compiles to an ir.Branch covering every symbol of Σ.
func (s *specializer) evalMatch(n *ast.Match, en *env, emit *[]ir.Node) (value, error) {
	scrutinee, err := s.evalExpr(n.Scrutinee, en, emit)
	if err != nil {
		return nil, err
	}
	switch sv := scrutinee.(type) {
	case symVal:
		return s.evalMatchStatic(n, sv.u, en, emit)
	case tapeReadVal:
		return s.evalMatchBranch(n, en, emit)
	default:
		return nil, &verr.SpecError{Cause: verr.ErrNonReducible, Row: n.Pos.Row, Col: n.Pos.Col, Detail: "match scrutinee is neither a symbol nor a tape read"}
	}
}

func (s *specializer) patternUnion(p ast.Pattern, en *env) (alphabet.Union, error) {
	var discard []ir.Node
	var u alphabet.Union
	for i, el := range p.Elems {
		v, err := s.evalExpr(el, en, &discard)
		if err != nil {
			return alphabet.Union{}, err
		}
		sv, ok := v.(symVal)
		if !ok {
			return alphabet.Union{}, &verr.SpecError{Cause: verr.ErrNonReducible, Row: el.At().Row, Col: el.At().Col, Detail: "pattern element is not a symbol"}
		}
		if i == 0 {
			u = sv.u
		} else {
			u = u.Or(sv.u)
		}
	}
	return u, nil
}

func (s *specializer) evalMatchStatic(n *ast.Match, scrutinee alphabet.Union, en *env, emit *[]ir.Node) (value, error) {
	for _, arm := range n.Arms {
		if arm.Pattern.Any {
			return s.evalExpr(arm.Body, en, emit)
		}
		u, err := s.patternUnion(arm.Pattern, en)
		if err != nil {
			return nil, err
		}
		if !u.And(scrutinee).IsEmpty() {
			return s.evalExpr(arm.Body, en, emit)
		}
	}
	return nil, &verr.SpecError{Cause: verr.ErrNonExhaustiveRequired, Row: n.Pos.Row, Col: n.Pos.Col, Detail: "no arm covers the matched symbol"}
}

// evalMatchBranch compiles a match on a tape read into one freshly named
// transformer holding an ir.Branch, and appends a call to it. Each arm's
// body is specialized at most once (bodyCache), no matter how many symbols
// of Σ resolve to it, and an `any` arm only ever wins for symbols no earlier
// arm already claimed.
func (s *specializer) evalMatchBranch(n *ast.Match, en *env, emit *[]ir.Node) (value, error) {
	patterns := make([]alphabet.Union, len(n.Arms))
	hasAny := false
	for i, arm := range n.Arms {
		if arm.Pattern.Any {
			hasAny = true
			continue
		}
		u, err := s.patternUnion(arm.Pattern, en)
		if err != nil {
			return nil, err
		}
		patterns[i] = u
	}

	seen := s.alphabet.Empty()
	for i, arm := range n.Arms {
		if arm.Pattern.Any {
			continue
		}
		if overlap := patterns[i].And(seen); !overlap.IsEmpty() {
			if s.opts.Strict {
				return nil, &verr.SpecError{Cause: verr.ErrAmbiguousMatch, Row: arm.Pos.Row, Col: arm.Pos.Col, Detail: overlap.String()}
			}
			s.warn(verr.ErrAmbiguousMatch, arm.Pos.Row, arm.Pos.Col, overlap.String())
		}
		seen = seen.Or(patterns[i])
	}

	bodyCache := map[int]ir.Node{}
	compileArm := func(armIdx int) (ir.Node, error) {
		if node, ok := bodyCache[armIdx]; ok {
			return node, nil
		}
		var armEmit []ir.Node
		v, err := s.evalExpr(n.Arms[armIdx].Body, en, &armEmit)
		if err != nil {
			return nil, err
		}
		node, err := s.finish(v, armEmit)
		if err != nil {
			return nil, err
		}
		bodyCache[armIdx] = node
		return node, nil
	}

	covered := s.alphabet.Empty()
	var cases []ir.Case
	for _, sym := range s.alphabet.Symbols() {
		winner := -1
		for i, arm := range n.Arms {
			if arm.Pattern.Any || patterns[i].Contains(rune(sym)) {
				winner = i
				break
			}
		}
		if winner == -1 {
			continue
		}
		node, err := compileArm(winner)
		if err != nil {
			return nil, err
		}
		one, _ := s.alphabet.Single(rune(sym))
		covered = covered.Or(one)
		cases = append(cases, ir.Case{Symbol: sym, Node: node})
	}

	if covered.Len() < s.alphabet.Len() && !hasAny {
		if s.opts.Strict {
			return nil, &verr.SpecError{Cause: verr.ErrNonExhaustiveRequired, Row: n.Pos.Row, Col: n.Pos.Col, Detail: "match on a tape read leaves symbols uncovered and has no 'any' arm"}
		}
		s.warn(verr.ErrNonExhaustiveRequired, n.Pos.Row, n.Pos.Col, "uncovered symbols reject")
	}

	name := s.freshName("match")
	s.table.Define(name, ir.NewBranch(cases))
	*emit = append(*emit, ir.NewCall(name))
	return tapeVal{}, nil
}

// --- fixpoint ---

// evalFixpoint compiles `Y self: (x: body)` into a single named transformer:
// self is bound to a call to that transformer's own name before body is
// specialized, so every recursive `self ...` inside it becomes an ir.Call
// rather than an infinite inline unfolding. The formal parameter x is bound
// directly to the nominal tape value — it never carries data of its own, so
// there is nothing to specialize per call site, only per definition.
func (s *specializer) evalFixpoint(n *ast.Fixpoint, en *env) (value, error) {
	key := s.fixpointKey(n, en)
	if name, ok := s.fixMemo[key]; ok {
		return callVal{name: name}, nil
	}

	name := s.freshName("fix")
	// Reserve the name before specializing the body: if the body somehow
	// re-enters this exact (expression, environment) pair before returning,
	// the memo hit above short-circuits it instead of expanding forever.
	s.fixMemo[key] = name

	inner := newEnv(en)
	inner.vars[n.Self] = &thunk{forced: true, value: callVal{name: name}}

	var discard []ir.Node
	v, err := s.evalExpr(n.Body, inner, &discard)
	if err != nil {
		return nil, err
	}
	cv, ok := v.(closureVal)
	if !ok {
		return nil, &verr.SpecError{Cause: verr.ErrNonReducible, Row: n.Pos.Row, Col: n.Pos.Col, Detail: "fixpoint body must be a lambda over the tape"}
	}

	node, err := s.compileTransformer(cv)
	if err != nil {
		return nil, err
	}
	s.table.Define(name, node)
	return callVal{name: name}, nil
}

// compileTransformer binds cv's formal parameter to the nominal tape value
// and specializes its body once, producing the ir.Node that becomes some
// transformer's definition in the table. Used both for a top-level
// non-recursive program and for the closure a Fixpoint wraps.
func (s *specializer) compileTransformer(cv closureVal) (ir.Node, error) {
	bodyEnv := newEnv(cv.env)
	bodyEnv.vars[cv.lam.Param] = &thunk{forced: true, value: tapeVal{}}
	var emit []ir.Node
	bv, err := s.evalExpr(cv.lam.Body, bodyEnv, &emit)
	if err != nil {
		return nil, err
	}
	return s.finish(bv, emit)
}

// finish closes out a straight-line computation: emit holds the primitive
// effects produced so far, and v is the value the body reduced to. A tail
// Call already appended itself to emit and returns a fresh tapeVal, so the
// only case that needs an explicit Halt appended is reaching the end of a
// body with no further instruction — a symbol value at this position is
// also invalid, since a transformer's body must end in a tape operation,
// not a bare symbol.
func (s *specializer) finish(v value, emit []ir.Node) (ir.Node, error) {
	switch v.(type) {
	case tapeVal:
		if len(emit) > 0 {
			if _, ok := emit[len(emit)-1].(*ir.Call); ok {
				return ir.NewSeq(emit...), nil
			}
		}
		return ir.NewSeq(append(emit, ir.HaltAccept)...), nil
	default:
		return nil, &verr.SpecError{Cause: verr.ErrNonReducible, Detail: "transformer body did not reduce to a tape value"}
	}
}

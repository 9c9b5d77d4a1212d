// Package parser turns a tmc token stream into an ast.File (spec.md §4.2).
// Like vartan's grammar/lexical/parser and spec/parser packages, this is a
// hand-written recursive-descent parser that raises errors by panicking
// with a sentinel and recovering at the Parse boundary, rather than
// threading an error return through every call.
package parser

import (
	"fmt"
	"io"

	"github.com/tmc-lang/tmc/ast"
	verr "github.com/tmc-lang/tmc/error"
	"github.com/tmc-lang/tmc/lexer"
)

var errParse = fmt.Errorf("parse error")

type parser struct {
	lex       *lexer.Lexer
	buf       []*lexer.Token // lookahead queue, front is buf[0]
	errCause  error
	errDetail string
	errRow    int
	errCol    int
}

// Parse reads one complete tmc source file.
func Parse(src io.Reader) (f *ast.File, retErr error) {
	p := &parser{lex: lexer.New(src)}

	defer func() {
		v := recover()
		if v == nil {
			return
		}
		if v != errParse {
			panic(v)
		}
		retErr = &verr.SpecError{Cause: p.errCause, Row: p.errRow, Col: p.errCol, Detail: p.errDetail}
	}()

	return p.parseFile(), nil
}

func (p *parser) parseFile() *ast.File {
	pos := p.peekPos()
	var imports []*ast.Import
	for p.peekKind() == lexer.KindKWImport {
		imports = append(imports, p.parseImport())
	}
	bindings, body := p.parseLetGroup()
	return &ast.File{Imports: imports, Bindings: bindings, Body: body, Pos: pos}
}

func (p *parser) parseImport() *ast.Import {
	tok := p.expect(lexer.KindKWImport)
	str := p.expect(lexer.KindString)
	return &ast.Import{Path: str.Text, Pos: astPos(tok)}
}

// parseLetGroup parses `let binding (',' binding)* ',' 'in' expr`.
func (p *parser) parseLetGroup() ([]*ast.Binding, ast.Expr) {
	p.expect(lexer.KindKWLet)
	var bindings []*ast.Binding
	for {
		bindings = append(bindings, p.parseBinding())
		if !p.consume(lexer.KindComma) {
			p.raise(verr.ErrUnexpectedToken, "expected ',' between bindings or before 'in'")
		}
		if p.consume(lexer.KindKWIn) {
			break
		}
	}
	body := p.parseExpr()
	return bindings, body
}

func (p *parser) parseBinding() *ast.Binding {
	nameTok := p.expect(lexer.KindIdent)
	switch {
	case p.consume(lexer.KindEquals):
		val := p.parseExpr()
		return &ast.Binding{Name: nameTok.Text, Value: val, Pos: astPos(nameTok)}
	case p.consume(lexer.KindQuestion):
		symTok := p.expect(lexer.KindSymbol)
		return &ast.Binding{Name: nameTok.Text, Symbol: symbolLitOf(symTok), Pos: astPos(nameTok)}
	default:
		p.raise(verr.ErrUnexpectedToken, "expected '=' or '?' after binding name")
		panic("unreachable")
	}
}

// parseExpr parses `lambda | match | app`, with lambda extending as far
// right as possible and application binding tighter than union.
func (p *parser) parseExpr() ast.Expr {
	if p.peekKind() == lexer.KindIdent && p.peekIsLambda() {
		return p.parseLambda()
	}
	if p.peekKind() == lexer.KindKWMatch {
		return p.parseMatch()
	}
	if p.peekKind() == lexer.KindKWLet {
		pos := p.peekPos()
		bindings, body := p.parseLetGroup()
		return ast.NewLetGroup(pos, bindings, body)
	}
	return p.parseUnion()
}

// peekIsLambda looks two tokens ahead without consuming: ident ':' marks a
// lambda, anything else means the ident starts an application/atom.
func (p *parser) peekIsLambda() bool {
	first := p.peek()
	second := p.peekSecond()
	return first.Kind == lexer.KindIdent && second.Kind == lexer.KindColon
}

func (p *parser) parseLambda() ast.Expr {
	nameTok := p.expect(lexer.KindIdent)
	p.expect(lexer.KindColon)
	if p.peekKind() == lexer.KindEOF {
		p.raise(verr.ErrExpectedExprAfterColon, "")
	}
	body := p.parseExpr()
	return ast.NewLambda(astPos(nameTok), nameTok.Text, body)
}

func (p *parser) parseMatch() ast.Expr {
	tok := p.expect(lexer.KindKWMatch)
	scrutinee := p.parseExpr()
	p.expect(lexer.KindLBrace)
	var arms []*ast.MatchArm
	for {
		arms = append(arms, p.parseArm())
		if !p.consume(lexer.KindComma) {
			break
		}
		if p.peekKind() == lexer.KindRBrace {
			break
		}
	}
	p.expect(lexer.KindRBrace)
	return ast.NewMatch(astPos(tok), scrutinee, arms)
}

func (p *parser) parseArm() *ast.MatchArm {
	pos := p.peekPos()
	pat := p.parsePattern()
	p.expect(lexer.KindGreater)
	body := p.parseExpr()
	return &ast.MatchArm{Pattern: pat, Body: body, Pos: pos}
}

// parsePattern parses `symLit ('|' symLit)* | ident`.
func (p *parser) parsePattern() ast.Pattern {
	pos := p.peekPos()
	if p.peekKind() == lexer.KindKWAny {
		p.next()
		return ast.Pattern{Any: true, Pos: pos}
	}
	if p.peekKind() == lexer.KindIdent {
		tok := p.next()
		return ast.Pattern{Elems: []ast.Expr{ast.NewIdent(astPos(tok), tok.Text)}, Pos: pos}
	}
	var elems []ast.Expr
	elems = append(elems, p.parseSymbolLit())
	for p.consume(lexer.KindPipe) {
		elems = append(elems, p.parseSymbolLit())
	}
	return ast.Pattern{Elems: elems, Pos: pos}
}

func (p *parser) parseSymbolLit() ast.Expr {
	tok := p.expect(lexer.KindSymbol)
	return symbolLitOf(tok)
}

// parseUnion parses `app ('|' app)*`, reduced into a single ast.Union node
// when more than one operand is present.
func (p *parser) parseUnion() ast.Expr {
	pos := p.peekPos()
	left := p.parseApp()
	if p.peekKind() != lexer.KindPipe {
		return left
	}
	elems := []ast.Expr{left}
	for p.consume(lexer.KindPipe) {
		elems = append(elems, p.parseApp())
	}
	return ast.NewUnion(pos, elems)
}

// parseApp parses `atom (atom)*`, left-associative.
func (p *parser) parseApp() ast.Expr {
	left := p.parseAtom()
	for p.startsAtom() {
		pos := left.At()
		right := p.parseAtom()
		left = ast.NewApp(pos, left, right)
	}
	return left
}

func (p *parser) startsAtom() bool {
	switch p.peekKind() {
	case lexer.KindIdent, lexer.KindSymbol, lexer.KindKWY, lexer.KindLParen:
		return true
	default:
		return false
	}
}

func (p *parser) parseAtom() ast.Expr {
	switch p.peekKind() {
	case lexer.KindIdent:
		tok := p.next()
		return ast.NewIdent(astPos(tok), tok.Text)
	case lexer.KindSymbol:
		return p.parseSymbolLit()
	case lexer.KindKWY:
		return p.parseFixpoint()
	case lexer.KindLParen:
		p.next()
		e := p.parseExpr()
		p.expect(lexer.KindRParen)
		return e
	default:
		p.raise(verr.ErrUnexpectedToken, fmt.Sprintf("unexpected %v while parsing an expression", p.peek().Kind))
		panic("unreachable")
	}
}

// parseFixpoint parses `'Y' ident ':' expr`.
func (p *parser) parseFixpoint() ast.Expr {
	tok := p.expect(lexer.KindKWY)
	nameTok := p.expect(lexer.KindIdent)
	p.expect(lexer.KindColon)
	body := p.parseExpr()
	return ast.NewFixpoint(astPos(tok), nameTok.Text, body)
}

func symbolLitOf(tok *lexer.Token) *ast.SymbolLit {
	return ast.NewSymbolLit(astPos(tok), tok.Blank, tok.Char)
}

func astPos(tok *lexer.Token) ast.Position {
	return ast.Position{Row: tok.Row, Col: tok.Col}
}

// --- token plumbing, in the style of vartan's consume/expect/raiseParseError ---

// fill ensures the lookahead queue holds at least n+1 tokens.
func (p *parser) fill(n int) {
	for len(p.buf) <= n {
		t, err := p.lex.Next()
		if err != nil {
			se, ok := err.(*verr.SpecError)
			if ok {
				p.errCause, p.errDetail, p.errRow, p.errCol = se.Cause, se.Detail, se.Row, se.Col
				panic(errParse)
			}
			panic(err)
		}
		p.buf = append(p.buf, t)
	}
}

func (p *parser) next() *lexer.Token {
	p.fill(0)
	t := p.buf[0]
	p.buf = p.buf[1:]
	return t
}

func (p *parser) peek() *lexer.Token {
	p.fill(0)
	return p.buf[0]
}

func (p *parser) peekSecond() *lexer.Token {
	p.fill(1)
	return p.buf[1]
}

func (p *parser) peekKind() lexer.Kind {
	return p.peek().Kind
}

func (p *parser) peekPos() ast.Position {
	return astPos(p.peek())
}

func (p *parser) consume(k lexer.Kind) bool {
	if p.peekKind() != k {
		return false
	}
	p.next()
	return true
}

func (p *parser) expect(k lexer.Kind) *lexer.Token {
	if p.peekKind() != k {
		p.raise(verr.ErrUnexpectedToken, fmt.Sprintf("expected %v, got %v", k, p.peekKind()))
	}
	return p.next()
}

func (p *parser) raise(cause error, detail string) {
	pos := p.peekPos()
	p.errCause = cause
	p.errDetail = detail
	p.errRow = pos.Row
	p.errCol = pos.Col
	panic(errParse)
}

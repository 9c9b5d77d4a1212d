// Package lexer tokenizes tmc source text (spec.md §4.1). It follows the
// same hand-rolled, rune-buffered scanning style as vartan's
// grammar/lexical/parser lexer: a one-rune pushback buffer built on
// bufio.Reader, rather than a generated/table-driven scanner, since the
// token set here is small and fixed.
package lexer

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode"

	verr "github.com/tmc-lang/tmc/error"
)

type Kind string

const (
	KindIdent  Kind = "ident"
	KindSymbol Kind = "symbol"
	KindString Kind = "string"

	KindColon    Kind = ":"
	KindComma    Kind = ","
	KindPipe     Kind = "|"
	KindEquals   Kind = "="
	KindQuestion Kind = "?"
	KindGreater  Kind = ">"
	KindLBrace   Kind = "{"
	KindRBrace   Kind = "}"
	KindLParen   Kind = "("
	KindRParen   Kind = ")"

	KindKWLet    Kind = "let"
	KindKWIn     Kind = "in"
	KindKWMatch  Kind = "match"
	KindKWImport Kind = "import"
	KindKWY      Kind = "Y"
	KindKWAny    Kind = "any"

	KindEOF Kind = "eof"
)

var keywords = map[string]Kind{
	"let":    KindKWLet,
	"in":     KindKWIn,
	"match":  KindKWMatch,
	"import": KindKWImport,
	"Y":      KindKWY,
	"any":    KindKWAny,
}

// Token is one lexical unit. Only the fields relevant to Kind are
// meaningful: Text for KindIdent, Char/Blank for KindSymbol, Text for
// KindString.
type Token struct {
	Kind  Kind
	Text  string
	Char  rune
	Blank bool
	Row   int
	Col   int
}

const nullRune = rune(-1)

// Lexer scans one file's worth of tmc source.
type Lexer struct {
	src *bufio.Reader

	row, col int

	peeked     rune
	peekedOK   bool
	lastRow    int
	lastCol    int
}

func New(src io.Reader) *Lexer {
	return &Lexer{
		src:    bufio.NewReader(src),
		row:    1,
		col:    0,
		peeked: nullRune,
	}
}

func (l *Lexer) read() (rune, bool) {
	if l.peekedOK {
		r := l.peeked
		l.peekedOK = false
		l.advancePos(r)
		return r, true
	}
	r, _, err := l.src.ReadRune()
	if err != nil {
		return 0, false
	}
	l.advancePos(r)
	return r, true
}

func (l *Lexer) advancePos(r rune) {
	l.lastRow, l.lastCol = l.row, l.col
	if r == '\n' {
		l.row++
		l.col = 0
	} else {
		l.col++
	}
}

func (l *Lexer) unread(r rune) {
	l.peeked = r
	l.peekedOK = true
	l.row, l.col = l.lastRow, l.lastCol
}

// Next returns the next token, or a *verr.SpecError wrapping
// ErrUnterminatedSymbol or ErrUnknownChar.
func (l *Lexer) Next() (*Token, error) {
	for {
		r, ok := l.read()
		if !ok {
			return &Token{Kind: KindEOF, Row: l.row, Col: l.col}, nil
		}
		if unicode.IsSpace(r) {
			continue
		}
		if r == '#' {
			l.skipToEOL()
			continue
		}
		startRow, startCol := l.row, l.col

		switch {
		case r == '\'':
			return l.lexQuoted(startRow, startCol)
		case r == ':':
			return &Token{Kind: KindColon, Row: startRow, Col: startCol}, nil
		case r == ',':
			return &Token{Kind: KindComma, Row: startRow, Col: startCol}, nil
		case r == '|':
			return &Token{Kind: KindPipe, Row: startRow, Col: startCol}, nil
		case r == '=':
			return &Token{Kind: KindEquals, Row: startRow, Col: startCol}, nil
		case r == '?':
			return &Token{Kind: KindQuestion, Row: startRow, Col: startCol}, nil
		case r == '>':
			return &Token{Kind: KindGreater, Row: startRow, Col: startCol}, nil
		case r == '{':
			return &Token{Kind: KindLBrace, Row: startRow, Col: startCol}, nil
		case r == '}':
			return &Token{Kind: KindRBrace, Row: startRow, Col: startCol}, nil
		case r == '(':
			return &Token{Kind: KindLParen, Row: startRow, Col: startCol}, nil
		case r == ')':
			return &Token{Kind: KindRParen, Row: startRow, Col: startCol}, nil
		case isIdentStart(r):
			return l.lexIdent(r, startRow, startCol), nil
		default:
			return nil, &verr.SpecError{Cause: verr.ErrUnknownChar, Row: startRow, Col: startCol, Detail: fmt.Sprintf("%q", r)}
		}
	}
}

func (l *Lexer) skipToEOL() {
	for {
		r, ok := l.read()
		if !ok || r == '\n' {
			return
		}
	}
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentCont(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func (l *Lexer) lexIdent(first rune, row, col int) *Token {
	var b strings.Builder
	b.WriteRune(first)
	for {
		r, ok := l.read()
		if !ok {
			break
		}
		if !isIdentCont(r) {
			l.unread(r)
			break
		}
		b.WriteRune(r)
	}
	text := b.String()
	if kw, ok := keywords[text]; ok {
		return &Token{Kind: kw, Text: text, Row: row, Col: col}
	}
	return &Token{Kind: KindIdent, Text: text, Row: row, Col: col}
}

// lexQuoted reads everything up to the next ', the single quoting rule that
// covers both symbol literals and import path strings (spec.md §4.1-§4.2
// give these distinct token kinds, but the source surface syntax quotes
// both the same way: 'c' for a symbol, 'path/to/file.tmc' for an import).
// A zero-length body is the blank symbol ''; a one-rune body is a symbol
// literal; anything longer is a string, which is only legal as the operand
// of `import`, a restriction the parser enforces, not the lexer.
func (l *Lexer) lexQuoted(row, col int) (*Token, error) {
	var b strings.Builder
	n := 0
	for {
		r, ok := l.read()
		if !ok {
			return nil, &verr.SpecError{Cause: verr.ErrUnterminatedSymbol, Row: row, Col: col}
		}
		if r == '\'' {
			break
		}
		b.WriteRune(r)
		n++
	}
	switch n {
	case 0:
		return &Token{Kind: KindSymbol, Blank: true, Row: row, Col: col}, nil
	case 1:
		return &Token{Kind: KindSymbol, Char: []rune(b.String())[0], Row: row, Col: col}, nil
	default:
		return &Token{Kind: KindString, Text: b.String(), Row: row, Col: col}, nil
	}
}

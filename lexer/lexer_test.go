package lexer

import (
	"errors"
	"strings"
	"testing"

	verr "github.com/tmc-lang/tmc/error"
)

func tokenKinds(t *testing.T, src string) []Kind {
	t.Helper()
	l := New(strings.NewReader(src))
	var kinds []Kind
	for {
		tok, err := l.Next()
		if err != nil {
			t.Fatalf("unexpected lex error: %v", err)
		}
		kinds = append(kinds, tok.Kind)
		if tok.Kind == KindEOF {
			return kinds
		}
	}
}

func TestNextLexesPunctuationAndKeywords(t *testing.T) {
	kinds := tokenKinds(t, "let x = y, in match x { any > x }")
	want := []Kind{
		KindKWLet, KindIdent, KindEquals, KindIdent, KindComma, KindKWIn,
		KindKWMatch, KindIdent, KindLBrace, KindKWAny, KindGreater, KindIdent, KindRBrace,
		KindEOF,
	}
	if len(kinds) != len(want) {
		t.Fatalf("got %d tokens %v, want %d %v", len(kinds), kinds, len(want), want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("token %d: got %v, want %v", i, kinds[i], want[i])
		}
	}
}

func TestNextLexesSymbolLiterals(t *testing.T) {
	l := New(strings.NewReader("'0' '' 'xy'"))

	tok, err := l.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok.Kind != KindSymbol || tok.Blank || tok.Char != '0' {
		t.Fatalf("got %+v, want symbol '0'", tok)
	}

	tok, err = l.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok.Kind != KindSymbol || !tok.Blank {
		t.Fatalf("got %+v, want blank symbol", tok)
	}

	tok, err = l.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok.Kind != KindString || tok.Text != "xy" {
		t.Fatalf("got %+v, want string \"xy\"", tok)
	}
}

func TestNextSkipsCommentsAndWhitespace(t *testing.T) {
	kinds := tokenKinds(t, "  # a comment\n\tlet # trailing\nin")
	want := []Kind{KindKWLet, KindKWIn, KindEOF}
	if len(kinds) != len(want) {
		t.Fatalf("got %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("token %d: got %v, want %v", i, kinds[i], want[i])
		}
	}
}

func TestNextReportsUnterminatedSymbol(t *testing.T) {
	l := New(strings.NewReader("'0"))
	_, err := l.Next()
	if err == nil {
		t.Fatal("expected an error")
	}
	var se *verr.SpecError
	if !errors.As(err, &se) || !errors.Is(se.Cause, verr.ErrUnterminatedSymbol) {
		t.Fatalf("got %v, want ErrUnterminatedSymbol", err)
	}
}

func TestNextReportsUnknownChar(t *testing.T) {
	l := New(strings.NewReader("@"))
	_, err := l.Next()
	if err == nil {
		t.Fatal("expected an error")
	}
	var se *verr.SpecError
	if !errors.As(err, &se) || !errors.Is(se.Cause, verr.ErrUnknownChar) {
		t.Fatalf("got %v, want ErrUnknownChar", err)
	}
}

func TestNextTracksRowAndCol(t *testing.T) {
	l := New(strings.NewReader("let\nin"))

	tok, err := l.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok.Row != 1 || tok.Col != 1 {
		t.Fatalf("got row=%d col=%d, want row=1 col=1", tok.Row, tok.Col)
	}

	tok, err = l.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok.Row != 2 {
		t.Fatalf("got row=%d, want row=2", tok.Row)
	}
}

func TestNextRecognizesIdentifiersWithDigitsAndUnderscores(t *testing.T) {
	l := New(strings.NewReader("foo_2 _bar"))

	tok, err := l.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok.Kind != KindIdent || tok.Text != "foo_2" {
		t.Fatalf("got %+v, want ident foo_2", tok)
	}

	tok, err = l.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok.Kind != KindIdent || tok.Text != "_bar" {
		t.Fatalf("got %+v, want ident _bar", tok)
	}
}

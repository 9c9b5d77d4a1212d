// Package alphabet represents the tape alphabet Σ and canonical unions
// (non-empty subsets of Σ) over it. It is the tmc analogue of vartan's
// grammar/symbol package: a dense numeric encoding of a small, closed set
// of names, plus a table mapping between the encoding and source text.
package alphabet

import (
	"fmt"
	"sort"
	"strings"

	verr "github.com/tmc-lang/tmc/error"
)

// Blank is the distinguished blank symbol, always present in Σ regardless
// of what the user supplies on the command line.
const Blank = rune(0x2423) // ␣, never a printable symbol a user can type

// Symbol is a single character of Σ, including Blank.
type Symbol rune

func (s Symbol) String() string {
	if s == Symbol(Blank) {
		return "''"
	}
	return string(rune(s))
}

// Alphabet is the finite, ordered set Σ a program is compiled against. It
// is built once, from the command line (and optionally a config file), and
// passed read-only through every later pass — mirroring vartan's
// SymbolTable, which is built by one writer and handed to readers.
type Alphabet struct {
	symbols []Symbol // index 0 is always Blank
	index   map[Symbol]int
}

// New builds an Alphabet from the user-supplied symbols (Σ \ {␣}). Each
// entry must be exactly one rune, printable, non-whitespace, and not the
// blank placeholder or the reserved '#' math placeholder (spec.md §6,
// PlaceholderCollision). A duplicate entry is ignored after its first
// occurrence; the caller is expected to have already validated flag syntax.
func New(userSymbols []string) (*Alphabet, error) {
	a := &Alphabet{
		symbols: []Symbol{Symbol(Blank)},
		index:   map[Symbol]int{Symbol(Blank): 0},
	}
	for _, s := range userSymbols {
		r, err := singleRune(s)
		if err != nil {
			return nil, err
		}
		if r == Blank {
			return nil, fmt.Errorf("%w: '%c' is the implicit blank symbol and must not be supplied", errPlaceholder, r)
		}
		if r == '#' {
			return nil, fmt.Errorf("%w: '#' is reserved", errPlaceholder)
		}
		if _, dup := a.index[Symbol(r)]; dup {
			continue
		}
		a.index[Symbol(r)] = len(a.symbols)
		a.symbols = append(a.symbols, Symbol(r))
	}
	return a, nil
}

func singleRune(s string) (rune, error) {
	rs := []rune(s)
	if len(rs) != 1 {
		return 0, fmt.Errorf("%w: alphabet entries must be exactly one character, got %q", errPlaceholder, s)
	}
	r := rs[0]
	if r <= ' ' || r == 0x7f {
		return 0, fmt.Errorf("%w: alphabet entries must be printable non-whitespace characters, got %q", errPlaceholder, s)
	}
	return r, nil
}

// errPlaceholder is the error package's ErrPlaceholderCollision sentinel, so
// callers can test every rejection New reports with errors.Is against
// error.ErrPlaceholderCollision (error is a leaf package tmc-wide, so
// importing it here creates no cycle).
var errPlaceholder = verr.ErrPlaceholderCollision

// Contains reports whether r is a member of Σ.
func (a *Alphabet) Contains(r rune) bool {
	_, ok := a.index[Symbol(r)]
	return ok
}

// Symbols returns Σ in index order: Blank first, then the user symbols in
// the order New first saw them.
func (a *Alphabet) Symbols() []Symbol {
	out := make([]Symbol, len(a.symbols))
	copy(out, a.symbols)
	return out
}

// Len returns |Σ|.
func (a *Alphabet) Len() int {
	return len(a.symbols)
}

// Full returns the union denoting all of Σ (the value of the `any` wildcard).
func (a *Alphabet) Full() Union {
	bits := make([]bool, len(a.symbols))
	for i := range bits {
		bits[i] = true
	}
	return Union{owner: a, bits: bits}
}

// Single returns the one-element union {r}. r must be a member of Σ.
func (a *Alphabet) Single(r rune) (Union, error) {
	i, ok := a.index[Symbol(r)]
	if !ok {
		return Union{}, fmt.Errorf("%w: %q", errUnknownSymbol, string(r))
	}
	bits := make([]bool, len(a.symbols))
	bits[i] = true
	return Union{owner: a, bits: bits}, nil
}

var errUnknownSymbol = fmt.Errorf("symbol is not a member of the alphabet")

// ErrUnknownSymbol lets callers test whether an error from Single/Union ops
// was a genuine AlphabetUnknownSymbol condition.
func ErrUnknownSymbol() error { return errUnknownSymbol }

// Empty returns the empty union over a, the identity of Or and the zero
// value for building up a union incrementally. An Empty union is never a
// valid pattern on its own (unions are non-empty by construction per
// spec.md §3) but is a convenient accumulator before the first Or.
func (a *Alphabet) Empty() Union {
	return Union{owner: a, bits: make([]bool, len(a.symbols))}
}

// Union is a canonical (deduplicated, order-independent) non-empty subset
// of Σ. Two unions over the same Alphabet compare equal with == only if
// built through identical Or/Single/Full calls in different orders is NOT
// guaranteed by Go's == on slices, so Union intentionally exposes Equal
// instead, mirroring the way vartan's symbol.Symbol relies on a canonical
// numeric encoding rather than structural slice comparison.
type Union struct {
	owner *Alphabet
	bits  []bool
}

// Or returns the union of u and v (both must share the same owner Alphabet).
func (u Union) Or(v Union) Union {
	bits := make([]bool, len(u.bits))
	for i := range bits {
		bits[i] = u.bits[i] || v.bits[i]
	}
	return Union{owner: u.owner, bits: bits}
}

// And returns the intersection of u and v.
func (u Union) And(v Union) Union {
	bits := make([]bool, len(u.bits))
	for i := range bits {
		bits[i] = u.bits[i] && v.bits[i]
	}
	return Union{owner: u.owner, bits: bits}
}

// Sub returns u with every symbol of v removed (set difference), used to
// synthesize the default/uncovered arm of a Branch.
func (u Union) Sub(v Union) Union {
	bits := make([]bool, len(u.bits))
	for i := range bits {
		bits[i] = u.bits[i] && !v.bits[i]
	}
	return Union{owner: u.owner, bits: bits}
}

// IsEmpty reports whether u has no members.
func (u Union) IsEmpty() bool {
	for _, b := range u.bits {
		if b {
			return false
		}
	}
	return true
}

// Len returns |u|.
func (u Union) Len() int {
	n := 0
	for _, b := range u.bits {
		if b {
			n++
		}
	}
	return n
}

// Contains reports whether r is a member of u.
func (u Union) Contains(r rune) bool {
	i, ok := u.owner.index[Symbol(r)]
	if !ok {
		return false
	}
	return u.bits[i]
}

// Single reports the sole member of u and true, iff |u| == 1.
func (u Union) Single() (Symbol, bool) {
	if u.Len() != 1 {
		return 0, false
	}
	for i, b := range u.bits {
		if b {
			return u.owner.symbols[i], true
		}
	}
	return 0, false
}

// Members returns the members of u in the owner Alphabet's index order
// (the order of Symbols).
func (u Union) Members() []Symbol {
	var out []Symbol
	for i, b := range u.bits {
		if b {
			out = append(out, u.owner.symbols[i])
		}
	}
	return out
}

// Equal reports whether u and v denote the same canonical set. This is the
// structural-equality hook spec.md §3 requires ("a union is stored
// canonically ... so structural equality is decidable").
func (u Union) Equal(v Union) bool {
	if len(u.bits) != len(v.bits) {
		return false
	}
	for i := range u.bits {
		if u.bits[i] != v.bits[i] {
			return false
		}
	}
	return true
}

// Key returns a string uniquely identifying u's member set, suitable for
// use as a map key (e.g. in Branch's symbol->node table, or in the
// specializer's structural memoization fingerprint).
func (u Union) Key() string {
	var b strings.Builder
	for i, bit := range u.bits {
		if bit {
			fmt.Fprintf(&b, "%d,", i)
		}
	}
	return b.String()
}

func (u Union) String() string {
	ms := u.Members()
	ss := make([]string, len(ms))
	for i, s := range ms {
		ss[i] = s.String()
	}
	sort.Strings(ss)
	return strings.Join(ss, "|")
}

// Package ir defines the first-order tape intermediate representation the
// specializer emits and the state-graph builder consumes. Every Node here
// describes one step of a tape-transforming computation that no longer
// carries any higher-order structure; closures and lambdas never survive
// into this package (spec.md §3, "Lifecycle").
package ir

import "github.com/tmc-lang/tmc/alphabet"

// Node is implemented by every tape-IR variant. Like ast.Expr, it is a
// closed sum type: callers type-switch on the concrete type rather than
// dispatching through an interface method, since the state-graph builder
// needs to pattern-match structurally, not just walk generically.
type Node interface {
	node()
}

type base struct{}

func (base) node() {}

// MoveLeft moves the tape head one cell left, leaving the symbol under it
// unchanged.
type MoveLeft struct{ base }

// MoveRight moves the tape head one cell right, leaving the symbol under
// it unchanged.
type MoveRight struct{ base }

// Read is a no-op on the tape; it exists only so a Branch lowering has
// something to consume as its scrutinee (spec.md §4.5 calls it "a no-op;
// it exists only as a scrutinee").
type Read struct{ base }

// Write overwrites the symbol under the head with Union's single member.
// |Union| > 1 is only valid directly inside a Branch case; a standalone
// Write with a multi-symbol union is NonSingletonWrite.
type Write struct {
	base
	Union alphabet.Union
}

func NewWrite(u alphabet.Union) *Write { return &Write{Union: u} }

// Seq threads control through Nodes in order.
type Seq struct {
	base
	Nodes []Node
}

func NewSeq(nodes ...Node) *Seq { return &Seq{Nodes: nodes} }

// Case is one arm of a Branch: reaching this case means the symbol under
// the head is exactly Symbol.
type Case struct {
	Symbol alphabet.Symbol
	Node   Node
}

// Branch dispatches on the symbol currently under the head. Cases may omit
// symbols of Σ: the specializer leaves an uncovered symbol out, and the
// graph builder sends every omitted symbol to the reject halt state
// (spec.md §4.4, NonExhaustiveRequired / the open question on synthesizing
// halt-reject).
type Branch struct {
	base
	Cases []Case
}

func NewBranch(cases []Case) *Branch { return &Branch{Cases: cases} }

// Call invokes the named transformer from the sibling Table. Tail calls
// and non-tail calls are not distinguished here, and the graph builder
// does not tell them apart either: it compiles every Call against the
// continuation that follows it, and a tail call is simply one whose
// continuation is the enclosing transformer's own.
type Call struct {
	base
	Name string
}

func NewCall(name string) *Call { return &Call{Name: name} }

// Halt transitions to the distinguished accept state, or to the reject
// state when Reject is set.
type Halt struct {
	base
	Reject bool
}

var (
	HaltAccept = &Halt{Reject: false}
	HaltReject = &Halt{Reject: true}
)

// Table maps a transformer's stable name (allocated by the specializer
// for each distinct Y fixpoint or top-level binding that denotes a tape
// transformer) to its compiled body. Entry is the name of the
// transformer the program starts in.
type Table struct {
	Entry  string
	Bodies map[string]Node
}

func NewTable(entry string) *Table {
	return &Table{Entry: entry, Bodies: map[string]Node{}}
}

func (t *Table) Define(name string, n Node) {
	t.Bodies[name] = n
}

func (t *Table) Lookup(name string) (Node, bool) {
	n, ok := t.Bodies[name]
	return n, ok
}

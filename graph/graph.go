// Package graph lowers a transformer table of tape-IR nodes (spec.md §4.5)
// into a Turing state graph: a total transition function over Σ, reachable
// from one start state, with one accept and one reject halt state.
//
// The lowering is continuation-passing: building a node takes the state its
// control should flow to once the node completes (its continuation) and
// returns the entry state for the node. A tail Call and a non-tail Call are
// built identically — the only difference is what continuation the caller
// happened to pass in — which is what lets one code path implement both the
// direct state-identity case and the continuation-duplicating case spec.md
// §4.5 calls out separately.
package graph

import (
	"fmt"
	"sort"

	"github.com/tmc-lang/tmc/alphabet"
	verr "github.com/tmc-lang/tmc/error"
	"github.com/tmc-lang/tmc/ir"
)

type Move int

const (
	MoveNone Move = iota
	MoveLeft
	MoveRight
)

func (m Move) String() string {
	switch m {
	case MoveLeft:
		return "l"
	case MoveRight:
		return "r"
	default:
		return "*"
	}
}

// Transition is one row of δ: reading Read, write Write, move Move, and go
// to state Next.
type Transition struct {
	Read  alphabet.Symbol
	Write alphabet.Symbol
	Move  Move
	Next  string
}

// State is one Turing state: its ID and its transition for every symbol of
// Σ it handles. Halt states are not stored as State values; transitions
// name them only by ID (Graph.Accept, Graph.Reject). Every state in
// Graph.States has a Trans map total over Σ (the invariant spec.md §3 and
// §8 name).
type State struct {
	ID    string
	Trans map[alphabet.Symbol]Transition
}

// Graph is a complete, deduplicated Turing state graph ready for emission.
type Graph struct {
	Start       string
	Accept      string
	Reject      string
	States      map[string]*State
	DedupMerges int
}

const (
	haltAccept = "halt"
	haltReject = "halt-reject"
)

type callKey struct {
	name string
	cont string
}

type builder struct {
	table    *ir.Table
	alphabet *alphabet.Alphabet
	states   map[string]*State
	alias    map[string]string
	callMemo map[callKey]string
	nextID   int
}

// Build lowers table to a deduplicated Graph over alphabet. table.Entry
// names the transformer the program starts in; its body is built with the
// program's implicit top-level continuation, global accept.
func Build(table *ir.Table, alpha *alphabet.Alphabet) (*Graph, error) {
	b := &builder{
		table:    table,
		alphabet: alpha,
		states:   map[string]*State{},
		alias:    map[string]string{},
		callMemo: map[callKey]string{},
	}
	entryBody, ok := table.Lookup(table.Entry)
	if !ok {
		return nil, &verr.SpecError{Cause: verr.ErrInternal, Detail: fmt.Sprintf("entry transformer %q has no body", table.Entry)}
	}
	entry, err := b.build(entryBody, haltAccept)
	if err != nil {
		return nil, err
	}
	entry = b.resolve(entry)
	b.resolveAll()

	g := &Graph{Start: entry, Accept: haltAccept, Reject: haltReject, States: b.states}
	g.rename()
	merges := g.dedup()
	g.DedupMerges = merges
	return g, nil
}

func (b *builder) newState() string {
	id := fmt.Sprintf("n%d", b.nextID)
	b.nextID++
	b.states[id] = &State{ID: id, Trans: map[alphabet.Symbol]Transition{}}
	return id
}

// build returns the entry state for node, wired so that control reaching
// the natural end of node proceeds to cont (a state ID, possibly
// haltAccept/haltReject).
func (b *builder) build(node ir.Node, cont string) (string, error) {
	switch n := node.(type) {
	case *ir.MoveLeft:
		return b.buildCopyThrough(MoveLeft, cont), nil
	case *ir.MoveRight:
		return b.buildCopyThrough(MoveRight, cont), nil
	case *ir.Read:
		return cont, nil
	case *ir.Write:
		sym, ok := n.Union.Single()
		if !ok {
			return "", &verr.SpecError{Cause: verr.ErrNonSingletonWrite, Detail: n.Union.String()}
		}
		return b.buildWrite(sym, cont), nil
	case *ir.Seq:
		c := cont
		for i := len(n.Nodes) - 1; i >= 0; i-- {
			var err error
			c, err = b.build(n.Nodes[i], c)
			if err != nil {
				return "", err
			}
		}
		return c, nil
	case *ir.Branch:
		return b.buildBranch(n, cont)
	case *ir.Call:
		return b.buildCall(n, cont)
	case *ir.Halt:
		// Halt-reject is always the literal program-level rejection. An
		// accepting Halt means "this transformer is done", which is the
		// global accept state only when cont is itself the top-level
		// continuation; inside a non-tail Call's continuation-specialized
		// copy, cont is the caller's resumption point instead, which is
		// exactly what lets one code path build both tail and non-tail
		// calls (see the package doc comment).
		if n.Reject {
			return haltReject, nil
		}
		return cont, nil
	default:
		return "", &verr.SpecError{Cause: verr.ErrInternal, Detail: fmt.Sprintf("unknown tape-IR node %T", node)}
	}
}

func (b *builder) buildCopyThrough(move Move, cont string) string {
	id := b.newState()
	st := b.states[id]
	for _, sym := range b.alphabet.Symbols() {
		st.Trans[sym] = Transition{Read: sym, Write: sym, Move: move, Next: cont}
	}
	return id
}

func (b *builder) buildWrite(sym alphabet.Symbol, cont string) string {
	id := b.newState()
	st := b.states[id]
	for _, read := range b.alphabet.Symbols() {
		st.Trans[read] = Transition{Read: read, Write: sym, Move: MoveNone, Next: cont}
	}
	return id
}

func (b *builder) buildBranch(n *ir.Branch, cont string) (string, error) {
	bySymbol := map[alphabet.Symbol]ir.Node{}
	for _, c := range n.Cases {
		bySymbol[c.Symbol] = c.Node
	}
	id := b.newState()
	st := b.states[id]
	for _, sym := range b.alphabet.Symbols() {
		caseNode, ok := bySymbol[sym]
		if !ok {
			caseNode = ir.HaltReject
		}
		child, err := b.build(caseNode, cont)
		if err != nil {
			return "", err
		}
		st.Trans[sym] = Transition{Read: sym, Write: sym, Move: MoveNone, Next: child}
	}
	return id, nil
}

func (b *builder) buildCall(n *ir.Call, cont string) (string, error) {
	key := callKey{name: n.Name, cont: cont}
	if id, ok := b.callMemo[key]; ok {
		return id, nil
	}
	id := b.newState()
	b.callMemo[key] = id
	body, ok := b.table.Lookup(n.Name)
	if !ok {
		return "", &verr.SpecError{Cause: verr.ErrInternal, Detail: fmt.Sprintf("call to undefined transformer %q", n.Name)}
	}
	real, err := b.build(body, cont)
	if err != nil {
		return "", err
	}
	b.alias[id] = real
	return id, nil
}

func (b *builder) resolve(id string) string {
	for {
		r, ok := b.alias[id]
		if !ok {
			return id
		}
		id = r
	}
}

// resolveAll rewrites every Next pointer to its canonical (non-alias)
// target and drops the now-unreferenced alias placeholder states.
func (b *builder) resolveAll() {
	for _, st := range b.states {
		for sym, tr := range st.Trans {
			tr.Next = b.resolve(tr.Next)
			st.Trans[sym] = tr
		}
	}
	for id := range b.alias {
		delete(b.states, id)
	}
}

// rename replaces the builder's internal n0, n1, ... identifiers with the
// awmorp-visible names: the entry state becomes "0", halt/halt-reject keep
// their fixed names, everything else gets a stable sequential name assigned
// in breadth-first order from the start state (spec.md §4.6).
func (g *Graph) rename() {
	order := []string{g.Start}
	seen := map[string]bool{g.Start: true}
	for i := 0; i < len(order); i++ {
		st := g.States[order[i]]
		if st == nil {
			continue
		}
		nexts := make([]string, 0, len(st.Trans))
		for _, sym := range symbolsOf(st.Trans) {
			nexts = append(nexts, st.Trans[sym].Next)
		}
		for _, next := range nexts {
			if next == g.Accept || next == g.Reject || seen[next] {
				continue
			}
			seen[next] = true
			order = append(order, next)
		}
	}

	names := map[string]string{g.Start: "0", g.Accept: g.Accept, g.Reject: g.Reject}
	n := 1
	for _, id := range order {
		if id == g.Start {
			continue
		}
		names[id] = fmt.Sprintf("%d", n)
		n++
	}

	renamed := map[string]*State{}
	for oldID, st := range g.States {
		newID, ok := names[oldID]
		if !ok {
			continue // unreachable state, dropped
		}
		ns := &State{ID: newID, Trans: map[alphabet.Symbol]Transition{}}
		for sym, tr := range st.Trans {
			tr.Next = names[tr.Next]
			ns.Trans[sym] = tr
		}
		renamed[newID] = ns
	}
	g.States = renamed
	g.Start = "0"
}

func symbolsOf(m map[alphabet.Symbol]Transition) []alphabet.Symbol {
	out := make([]alphabet.Symbol, 0, len(m))
	for s := range m {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// dedup merges structurally identical states to a fixed point (spec.md
// §4.5, §8): states are equivalent if, for every symbol, they write the
// same symbol, move the same direction, and their successors are
// themselves equivalent. This is standard DFA-minimization partition
// refinement, which terminates because each round either shrinks the
// partition or leaves it unchanged, in which case it has converged.
func (g *Graph) dedup() int {
	ids := make([]string, 0, len(g.States)+2)
	for id := range g.States {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	class := map[string]int{g.Accept: -1, g.Reject: -2}
	for _, id := range ids {
		class[id] = 0
	}

	for {
		sig := map[string]string{}
		for _, id := range ids {
			sig[id] = signature(g.States[id], class, g.alphabetSymbols())
		}
		next := map[string]int{g.Accept: -1, g.Reject: -2}
		assigned := map[string]int{}
		n := 0
		for _, id := range ids {
			key := sig[id]
			cls, ok := assigned[key]
			if !ok {
				cls = n
				assigned[key] = cls
				n++
			}
			next[id] = cls
		}
		changed := false
		for _, id := range ids {
			if class[id] != next[id] {
				changed = true
				break
			}
		}
		class = next
		if !changed {
			break
		}
	}

	// The start state must keep the name "0" (spec.md §4.6), so its class
	// always picks it as the representative regardless of string order.
	representative := map[int]string{-1: g.Accept, -2: g.Reject}
	startClass := class[g.Start]
	representative[startClass] = g.Start
	for _, id := range ids {
		c := class[id]
		if c == startClass {
			continue
		}
		if cur, ok := representative[c]; !ok || id < cur {
			representative[c] = id
		}
	}

	merges := 0
	newStates := map[string]*State{}
	for _, id := range ids {
		rep := representative[class[id]]
		if rep != id {
			merges++
			continue
		}
		st := g.States[id]
		ns := &State{ID: id, Trans: map[alphabet.Symbol]Transition{}}
		for sym, tr := range st.Trans {
			tr.Next = representative[class[tr.Next]]
			ns.Trans[sym] = tr
		}
		newStates[id] = ns
	}
	g.States = newStates
	g.Start = representative[class[g.Start]]
	return merges
}

func (g *Graph) alphabetSymbols() []alphabet.Symbol {
	var syms []alphabet.Symbol
	for _, st := range g.States {
		for sym := range st.Trans {
			syms = append(syms, sym)
		}
		break
	}
	sort.Slice(syms, func(i, j int) bool { return syms[i] < syms[j] })
	return syms
}

func signature(st *State, class map[string]int, symbols []alphabet.Symbol) string {
	var b []byte
	for _, sym := range symbols {
		tr, ok := st.Trans[sym]
		if !ok {
			b = append(b, 'x', ',')
			continue
		}
		b = append(b, []byte(fmt.Sprintf("%c:%d:%d,", rune(tr.Write), tr.Move, class[tr.Next]))...)
	}
	return string(b)
}

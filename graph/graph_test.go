package graph

import (
	"testing"

	"github.com/tmc-lang/tmc/alphabet"
	"github.com/tmc-lang/tmc/ir"
)

func mustAlphabet(t *testing.T, syms ...string) *alphabet.Alphabet {
	t.Helper()
	a, err := alphabet.New(syms)
	if err != nil {
		t.Fatalf("alphabet.New: %v", err)
	}
	return a
}

func mustSingle(t *testing.T, a *alphabet.Alphabet, r rune) alphabet.Union {
	t.Helper()
	u, err := a.Single(r)
	if err != nil {
		t.Fatalf("Single(%q): %v", r, err)
	}
	return u
}

// TestBuildBoolNot builds the graph for a program that reads one symbol and
// writes its boolean negation, then halts (spec.md §8 scenario 3).
func TestBuildBoolNot(t *testing.T) {
	a := mustAlphabet(t, "0", "1")
	zero := mustSingle(t, a, '0')
	one := mustSingle(t, a, '1')

	tbl := ir.NewTable("main")
	tbl.Define("main", ir.NewBranch([]ir.Case{
		{Symbol: alphabet.Symbol('0'), Node: ir.NewSeq(ir.NewWrite(one), ir.HaltAccept)},
		{Symbol: alphabet.Symbol('1'), Node: ir.NewSeq(ir.NewWrite(zero), ir.HaltAccept)},
	}))

	g, err := Build(tbl, a)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if g.Start != "0" {
		t.Fatalf("expected start state %q, got %q", "0", g.Start)
	}
	start := g.States[g.Start]
	if start == nil {
		t.Fatalf("missing start state")
	}
	for _, sym := range a.Symbols() {
		tr, ok := start.Trans[sym]
		if !ok {
			t.Fatalf("start state has no transition on %v", sym)
		}
		if tr.Read != sym {
			t.Fatalf("transition on %v reads %v", sym, tr.Read)
		}
	}
	tr0 := start.Trans[alphabet.Symbol('0')]
	next0 := g.States[tr0.Next]
	if next0 == nil {
		t.Fatalf("missing state after reading 0")
	}
	for _, sym := range a.Symbols() {
		wtr := next0.Trans[sym]
		if wtr.Write != alphabet.Symbol('1') {
			t.Fatalf("expected write '1' after reading 0, got %v", wtr.Write)
		}
		if wtr.Next != g.Accept {
			t.Fatalf("expected transition to accept, got %v", wtr.Next)
		}
	}
}

// TestBuildTailRecursionProducesCycle builds a transformer that moves right
// forever (an infinite loop under direct tail recursion) and checks that
// the graph builder closes the cycle rather than unfolding it.
func TestBuildTailRecursionProducesCycle(t *testing.T) {
	a := mustAlphabet(t, "0")

	tbl := ir.NewTable("loop")
	tbl.Define("loop", ir.NewSeq(&ir.MoveRight{}, ir.NewCall("loop")))

	g, err := Build(tbl, a)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	start := g.States[g.Start]
	if start == nil {
		t.Fatalf("missing start state")
	}
	for _, sym := range a.Symbols() {
		tr := start.Trans[sym]
		if tr.Next != g.Start {
			t.Fatalf("expected self-loop back to %q, got %q", g.Start, tr.Next)
		}
	}
	if len(g.States) != 1 {
		t.Fatalf("expected the tail-recursive loop to collapse to 1 state, got %d", len(g.States))
	}
}

// TestBuildRejectsNonSingletonWrite exercises the builder's own defense
// against a Write IR node carrying more than one symbol outside a Branch.
func TestBuildRejectsNonSingletonWrite(t *testing.T) {
	a := mustAlphabet(t, "0", "1")
	both := mustSingle(t, a, '0').Or(mustSingle(t, a, '1'))

	tbl := ir.NewTable("main")
	tbl.Define("main", ir.NewWrite(both))

	_, err := Build(tbl, a)
	if err == nil {
		t.Fatalf("expected NonSingletonWrite")
	}
}

// TestBuildNonTailCallDuplicatesUnderContinuation exercises the
// (callee, continuation) memoization: a transformer called twice with two
// different continuations gets two distinct compiled copies.
func TestBuildNonTailCallDuplicatesUnderContinuation(t *testing.T) {
	a := mustAlphabet(t, "0")

	tbl := ir.NewTable("main")
	tbl.Define("step", &ir.MoveRight{})
	tbl.Define("main", ir.NewSeq(
		ir.NewCall("step"),
		&ir.MoveLeft{},
		ir.NewCall("step"),
		ir.HaltAccept,
	))

	g, err := Build(tbl, a)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// "step" is called twice with two different continuations (one
	// followed by MoveLeft, one followed by Halt), so it must be compiled
	// twice: the graph has 3 non-halt states (two "step" copies plus the
	// MoveLeft state), not 2.
	if len(g.States) != 3 {
		t.Fatalf("expected 3 states from two distinct continuations of 'step', got %d", len(g.States))
	}
}

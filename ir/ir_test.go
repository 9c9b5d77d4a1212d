package ir

import (
	"testing"

	"github.com/tmc-lang/tmc/alphabet"
)

func TestTableDefineLookup(t *testing.T) {
	tbl := NewTable("main")
	body := NewSeq(&MoveRight{}, HaltAccept)
	tbl.Define("main", body)

	got, ok := tbl.Lookup("main")
	if !ok {
		t.Fatalf("expected %q to be defined", "main")
	}
	if got != Node(body) {
		t.Fatalf("Lookup returned a different node than Define stored")
	}
	if _, ok := tbl.Lookup("missing"); ok {
		t.Fatalf("expected %q to be undefined", "missing")
	}
}

func TestBranchCasesCarryUnion(t *testing.T) {
	a, err := alphabet.New([]string{"0", "1"})
	if err != nil {
		t.Fatalf("alphabet.New: %v", err)
	}
	zero, err := a.Single('0')
	if err != nil {
		t.Fatalf("Single('0'): %v", err)
	}
	one, err := a.Single('1')
	if err != nil {
		t.Fatalf("Single('1'): %v", err)
	}
	br := NewBranch([]Case{
		{Symbol: alphabet.Symbol('0'), Node: NewWrite(one)},
		{Symbol: alphabet.Symbol('1'), Node: NewWrite(zero)},
	})
	if len(br.Cases) != 2 {
		t.Fatalf("expected 2 cases, got %d", len(br.Cases))
	}
}

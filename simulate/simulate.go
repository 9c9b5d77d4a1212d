// Package simulate runs a compiled awmorp table against a literal tape, the
// same role vartan's tester package plays for grammars: build something
// runnable, drive it against sample input, and diff the actual outcome
// against what the case expected.
package simulate

import (
	"fmt"
	"strings"

	"github.com/tmc-lang/tmc/emit"
)

// Tape is a doubly-infinite cell array implemented as a sparse map around
// an explicit starting window, with every unvisited cell defaulting to
// blank. head is the cursor's absolute offset from cell 0 of the initial
// input.
type Tape struct {
	cells map[int]rune
	blank rune
	head  int
	min   int
	max   int
}

// NewTape seeds a tape with input starting at offset 0.
func NewTape(input string, blank rune) *Tape {
	t := &Tape{cells: map[int]rune{}, blank: blank}
	for i, r := range []rune(input) {
		t.cells[i] = r
	}
	t.max = len([]rune(input)) - 1
	return t
}

func (t *Tape) Read() rune {
	if r, ok := t.cells[t.head]; ok {
		return r
	}
	return t.blank
}

func (t *Tape) Write(r rune) {
	t.cells[t.head] = r
	if r == t.blank {
		return
	}
	if t.head < t.min {
		t.min = t.head
	}
	if t.head > t.max {
		t.max = t.head
	}
}

func (t *Tape) MoveLeft()  { t.head-- }
func (t *Tape) MoveRight() { t.head++ }

// String renders the tape from the lowest to the highest cell that held an
// input symbol or had a non-blank symbol written to it. A blank written
// inside that range (an erased cell) still renders as a blank; a blank
// written onto a cell outside it, as every transition that only reads a
// blank cell does, does not widen the range.
func (t *Tape) String() string {
	if len(t.cells) == 0 {
		return ""
	}
	var b strings.Builder
	for i := t.min; i <= t.max; i++ {
		if r, ok := t.cells[i]; ok {
			b.WriteRune(r)
		} else {
			b.WriteRune(t.blank)
		}
	}
	return b.String()
}

// Result is the outcome of running a table to a halt state or to the step
// budget.
type Result struct {
	Accepted    bool
	Steps       int
	FinalTape   string
	RanOutOfGas bool
}

// Run drives tbl from its start state over a tape seeded with input until
// it reaches Accept, Reject, or maxSteps elapses (spec.md §8, "halting
// decidability at compile time" covers the compiled graph's totality, not
// runaway loops introduced by bad input — maxSteps is this package's own
// safety valve, not a compiler guarantee).
func Run(tbl *emit.Table, input string, blank rune, maxSteps int) (*Result, error) {
	tape := NewTape(input, blank)
	state := tbl.Start
	for step := 0; step < maxSteps; step++ {
		if state == tbl.Accept {
			return &Result{Accepted: true, Steps: step, FinalTape: tape.String()}, nil
		}
		if state == tbl.Reject {
			return &Result{Accepted: false, Steps: step, FinalTape: tape.String()}, nil
		}
		read := glyph(tape.Read(), blank)
		row, ok := tbl.Lookup(state, read)
		if !ok {
			return nil, fmt.Errorf("state %q has no transition for symbol %q", state, read)
		}
		tape.Write(unglyph(row.Write, blank))
		switch row.Move {
		case "l":
			tape.MoveLeft()
		case "r":
			tape.MoveRight()
		}
		state = row.Next
	}
	return &Result{RanOutOfGas: true, Steps: maxSteps, FinalTape: tape.String()}, nil
}

func glyph(r, blank rune) string {
	if r == blank {
		return "_"
	}
	return string(r)
}

func unglyph(s string, blank rune) rune {
	if s == "_" {
		return blank
	}
	rs := []rune(s)
	return rs[0]
}

// Case is one named scenario: run input through tbl and check it reaches
// the expected halt state with the expected tape contents.
type Case struct {
	Name       string
	Input      string
	WantAccept bool
	WantTape   string
}

// CaseResult mirrors vartan's tester.TestResult: the case it ran, what
// actually happened, and a human-readable pass/fail line.
type CaseResult struct {
	Case   *Case
	Got    *Result
	Err    error
	Failed string // empty on success, otherwise what didn't match
}

func (r *CaseResult) String() string {
	if r.Err != nil {
		return fmt.Sprintf("FAIL %s: %v", r.Case.Name, r.Err)
	}
	if r.Failed != "" {
		return fmt.Sprintf("FAIL %s: %s", r.Case.Name, r.Failed)
	}
	return fmt.Sprintf("PASS %s", r.Case.Name)
}

// RunCases runs every case against tbl and reports pass/fail for each,
// grounded on vartan's Tester.Run/runTest split (build once, drive every
// case, collect one TestResult-shaped value per case).
func RunCases(tbl *emit.Table, blank rune, cases []*Case, maxSteps int) []*CaseResult {
	results := make([]*CaseResult, len(cases))
	for i, c := range cases {
		res, err := Run(tbl, c.Input, blank, maxSteps)
		cr := &CaseResult{Case: c, Got: res, Err: err}
		if err == nil {
			switch {
			case res.RanOutOfGas:
				cr.Failed = fmt.Sprintf("ran out of gas after %d steps", res.Steps)
			case res.Accepted != c.WantAccept:
				cr.Failed = fmt.Sprintf("accepted=%v, want %v", res.Accepted, c.WantAccept)
			case res.FinalTape != c.WantTape:
				cr.Failed = fmt.Sprintf("tape=%q, want %q", res.FinalTape, c.WantTape)
			}
		}
		results[i] = cr
	}
	return results
}
